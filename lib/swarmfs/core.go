package swarmfs

import (
	"context"
	"errors"
	"sync"
)

// ErrClosed is returned by Read when Shutdown has been (or is
// concurrently being) called. A Read in flight at teardown is woken
// with this error rather than left blocked forever — the resolution
// to the "concurrent teardown" question: the swarm engine is the only
// other writer into Core, so once it stops, nothing will
// ever satisfy a pending Read's remaining parts.
var ErrClosed = errors.New("swarmfs: reactor closed")

// Core is the read–piece reactor (spec §4.3). One mutex and one
// condition variable guard the set of in-flight Reads and the
// sliding-window cursor, scoped to one mounted torrent per Core. The
// directory index is held here too but is immutable and read without
// the mutex (see Index).
//
// FUSE worker goroutines call Read and block on the condition
// variable. The swarm engine calls OnPieceFinished from its alert pump
// and OnReadPieceDelivered from the pump or from a delivery goroutine
// started by PieceSource.RequestPiece.
type Core struct {
	mu   sync.Mutex
	cond *sync.Cond

	index     *Index
	source    PieceSource
	scheduler scheduler

	reads  map[*Read]struct{}
	closed bool
}

// NewCore builds a reactor over index, backed by source. source must
// already have metadata (NumPieces > 0); Core does not itself wait for
// metadata — cmd/btfs calls Session.WaitMetadata (lib/swarmengine)
// before building the index and the Core.
func NewCore(index *Index, source PieceSource) *Core {
	c := &Core{
		index:  index,
		source: source,
		reads:  make(map[*Read]struct{}),
	}
	c.cond = sync.NewCond(&c.mu)
	return c
}

// Index returns the reactor's directory index, for use by the FUSE
// glue's Lookup/Readdir/Getattr/Open handlers. The index is immutable,
// so this needs no locking.
func (c *Core) Index() *Index {
	return c.index
}

// Source returns the PieceSource backing this reactor, for use by the
// FUSE glue when constructing a Read. Set once at NewCore and never
// reassigned, so this needs no locking either.
func (c *Core) Source() PieceSource {
	return c.source
}

// Read drives r to completion and returns the number of bytes filled.
// It implements spec §4.3's five-step protocol: an empty r returns
// immediately; otherwise it registers r, re-steers the scheduler's
// window to r's first piece, triggers delivery of any already-had
// pieces, and blocks on the condition variable until every part of r
// is filled, the reactor is closed, or ctx is canceled.
//
// A partial byte count (Size() at the time of return) is always valid
// to use even when err is non-nil — the caller decides whether a
// short read from cancellation or teardown should surface to the FUSE
// client as an error or as fewer bytes than requested.
func (c *Core) Read(ctx context.Context, r *Read) (int, error) {
	if r.Finished() {
		return r.Size(), nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return 0, ErrClosed
	}

	c.reads[r] = struct{}{}
	defer delete(c.reads, r)

	if piece, ok := r.FirstPiece(); ok {
		c.scheduler.Jump(c.source, piece, r.Size())
	}
	r.Trigger(c.source)

	// A context watcher goroutine is the only way to make a
	// sync.Cond.Wait respect cancellation: Wait itself has no
	// context-aware variant. It exits once ctx.Done() fires or once the
	// deferred close(done) runs as Read returns; either way it leaks no
	// goroutine past this call.
	if ctx != nil {
		done := make(chan struct{})
		defer close(done)
		go func() {
			select {
			case <-ctx.Done():
				c.mu.Lock()
				c.cond.Broadcast()
				c.mu.Unlock()
			case <-done:
			}
		}()
	}

	for !r.Finished() && !c.closed {
		if ctx != nil && ctx.Err() != nil {
			return r.Size(), ctx.Err()
		}
		c.cond.Wait()
	}

	if c.closed && !r.Finished() {
		return r.Size(), ErrClosed
	}
	return r.Size(), nil
}

// OnPieceFinished is called by the engine's alert pump when piece has
// been fully verified and stored (libtorrent's piece_finished_alert).
// It triggers delivery for every active Read waiting on that piece and
// advances the scheduler past it, per spec §4.4.
func (c *Core) OnPieceFinished(piece int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}

	for r := range c.reads {
		r.Trigger(c.source)
	}
	c.scheduler.Advance(c.source)
}

// OnReadPieceDelivered is called by the engine's alert pump when the
// bytes of piece are available (libtorrent's read_piece_alert). It
// copies those bytes into every active Read with an unfilled part in
// that piece and wakes any goroutine blocked in Read whose Read just
// became (or may have become) finished.
func (c *Core) OnReadPieceDelivered(piece int, buf []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}

	woke := false
	for r := range c.reads {
		if r.Copy(piece, buf) {
			woke = true
		}
	}
	if woke {
		c.cond.Broadcast()
	}
}

// Shutdown marks the reactor closed and wakes every Read blocked in
// Read, which then return ErrClosed. Callers (lib/swarmengine, from
// its mount teardown path) must call Shutdown only after the alert
// pump has stopped delivering further OnPieceFinished/
// OnReadPieceDelivered calls, so that a Read cannot be woken into
// believing it is closed and then immediately re-triggered.
func (c *Core) Shutdown() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closed = true
	c.cond.Broadcast()
}
