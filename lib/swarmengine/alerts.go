package swarmengine

import (
	"context"
	"io"

	"github.com/gobtfs/btfs/lib/swarmfs"
)

// Attach wires core as the reactor this Session drives. Must be
// called once, after WaitMetadata and before Start.
func (s *Session) Attach(core *swarmfs.Core) {
	s.core = core
}

// Start launches the alert-pump goroutine, which drains the torrent's
// piece-state-change subscription and turns each state change that
// reports a complete piece into the pair of Core calls libtorrent's alert dispatch would
// have produced: piece_finished_alert (Core.OnPieceFinished), then
// read_piece_alert (Core.OnReadPieceDelivered) once the piece's bytes
// have actually been read back off disk/network via the engine's
// pull-based reader.
//
// Start returns immediately. Stop must be called before Session.Close
// to join the pump goroutine and guarantee the pump makes no further
// Core calls after Core.Shutdown runs.
func (s *Session) Start(ctx context.Context) {
	pumpCtx, cancel := context.WithCancel(ctx)
	s.pumpCancel = cancel

	s.pumpDone.Add(1)
	go s.runAlertPump(pumpCtx)
}

// Stop cancels the alert pump and waits for it to exit, then shuts
// down core so that any Read still blocked in Core.Read is woken with
// swarmfs.ErrClosed instead of left waiting forever (spec's "Open
// question — concurrent teardown", resolved in SPEC_FULL.md §5).
func (s *Session) Stop() {
	if s.pumpCancel != nil {
		s.pumpCancel()
	}
	s.pumpDone.Wait()
	if s.core != nil {
		s.core.Shutdown()
	}
}

func (s *Session) runAlertPump(ctx context.Context) {
	defer s.pumpDone.Done()

	sub := s.torrent.SubscribePieceStateChanges()
	defer sub.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case change, ok := <-sub.Values:
			if !ok {
				return
			}
			if !change.Complete {
				continue
			}

			s.core.OnPieceFinished(change.Index)
			s.deliverPiece(change.Index)
		}
	}
}

// deliverPiece performs the pull-based read anacrolix/torrent exposes
// (Torrent.NewReader, seek, ReadFull) in place of libtorrent's
// push-based read_piece_alert, then hands the bytes to Core exactly
// as that alert's handler would have.
func (s *Session) deliverPiece(piece int) {
	length := s.PieceLength(piece)
	if length <= 0 {
		return
	}

	info := s.torrent.Info()
	offset := info.PieceLength * int64(piece)

	buf := make([]byte, length)

	reader := s.torrent.NewReader()
	defer reader.Close()

	if _, err := reader.Seek(offset, io.SeekStart); err != nil {
		s.logger.Error("seeking to piece for delivery", "piece", piece, "error", err)
		return
	}
	if _, err := io.ReadFull(reader, buf); err != nil {
		s.logger.Error("reading piece for delivery", "piece", piece, "error", err)
		return
	}

	s.core.OnReadPieceDelivered(piece, buf)
}
