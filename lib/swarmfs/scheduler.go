package swarmfs

// HeadBytes is the size of the hot window directly ahead of the
// scheduler's cursor, which receives PriorityHigh. Pieces beyond it,
// out to the end of the current request, receive PriorityLow (spec
// §4.4). 2MiB covers a few seconds of sequential playback at typical
// swarm throughput without requesting so far ahead that a seek
// elsewhere wastes bandwidth already spent on the old window.
const HeadBytes = 2 * 1024 * 1024

// scheduler holds the single sliding-window cursor (spec §9 "Single
// global state" — cursor is part of Core, not a field callers touch
// directly). It has no mutex of its own; Core.mu guards it.
type scheduler struct {
	cursor int
}

// Jump re-steers the window to start at the first not-yet-had piece at
// or after piece, widening PriorityHigh across the first HeadBytes of
// missing piece-bytes from there and PriorityLow across the remainder
// of hintSize bytes beyond that. Core.Read calls this for every Read
// that has at least one part, with the Read's first piece (spec §4.4's
// "seek re-steer").
func (s *scheduler) Jump(source PieceSource, piece int, hintSize int) {
	s.cursor = advanceToUnfinished(source, piece)
	s.raiseWindow(source, hintSize)
}

// Advance re-applies the window from the current cursor, skipping past
// pieces that have since completed. The alert pump calls this after
// every piece_finished event (spec §4.4 "on each piece completion,
// advance the cursor past newly finished pieces").
func (s *scheduler) Advance(source PieceSource) {
	s.cursor = advanceToUnfinished(source, s.cursor)
	s.raiseWindow(source, 0)
}

// advanceToUnfinished walks forward from piece while the engine
// already has each piece, stopping at the first not-yet-had piece or
// at the end of the torrent.
func advanceToUnfinished(source PieceSource, piece int) int {
	numPieces := source.NumPieces()
	for piece < numPieces && source.HavePiece(piece) {
		piece++
	}
	return piece
}

// raiseWindow sets PriorityHigh across the hot window starting at
// s.cursor, spanning at least HeadBytes of missing piece-bytes (spec
// §4.4 step 3), and PriorityLow across the cold tail after it, which
// spends a budget of hintSize minus HeadBytes missing piece-bytes,
// leaving already-had pieces untouched. An
// already-had piece is skipped without spending any of the
// head/tail budget, mirroring the original's move_to_next_unfinished
// — otherwise a completed piece interleaved with missing ones would
// shrink the hot window below HeadBytes of actual missing data.
func (s *scheduler) raiseWindow(source PieceSource, hintSize int) {
	numPieces := source.NumPieces()
	if numPieces == 0 {
		return
	}

	piece := s.cursor
	headRemaining := HeadBytes

	for piece < numPieces && headRemaining > 0 {
		if !source.HavePiece(piece) {
			source.SetPiecePriority(piece, PriorityHigh)
			source.RequestPiece(piece)
			headRemaining -= source.PieceLength(piece)
		}
		piece++
	}

	tailRemaining := hintSize - HeadBytes

	for piece < numPieces && tailRemaining > 0 {
		if !source.HavePiece(piece) {
			source.SetPiecePriority(piece, PriorityLow)
			tailRemaining -= source.PieceLength(piece)
		}
		piece++
	}
}
