package swarmfs

import "testing"

func manyPieces(n, pieceLength int) [][]byte {
	pieces := make([][]byte, n)
	for i := range pieces {
		pieces[i] = pieceOfBytes(pieceLength, byte(i))
	}
	return pieces
}

func TestSchedulerJumpRaisesHeadWindow(t *testing.T) {
	const pieceLength = 1024
	source := newFakeSource(pieceLength, manyPieces(10, pieceLength))

	var s scheduler
	s.Jump(source, 0, 4*pieceLength)

	headPieces := HeadBytes / pieceLength
	for i := 0; i < headPieces && i < 10; i++ {
		if got := source.priorityOf(i); got != PriorityHigh {
			t.Errorf("priority(%d) = %v, want PriorityHigh", i, got)
		}
	}
}

func TestSchedulerJumpRaisesTailToLow(t *testing.T) {
	const pieceLength = 512 * 1024 // small enough that head window is a few pieces
	numPieces := (HeadBytes / pieceLength) + 6
	source := newFakeSource(pieceLength, manyPieces(numPieces, pieceLength))

	var s scheduler
	s.Jump(source, 0, HeadBytes+3*pieceLength)

	headPieces := HeadBytes / pieceLength
	tailPiece := headPieces + 1
	if tailPiece < numPieces {
		if got := source.priorityOf(tailPiece); got != PriorityLow {
			t.Errorf("priority(%d) = %v, want PriorityLow", tailPiece, got)
		}
	}
}

func TestSchedulerJumpSkipsAlreadyHavePieces(t *testing.T) {
	const pieceLength = 1024
	source := newFakeSource(pieceLength, manyPieces(10, pieceLength))
	source.setHave(0, true)
	source.setHave(1, true)

	var s scheduler
	s.Jump(source, 0, 4*pieceLength)

	if got := source.priorityOf(0); got != PriorityNone {
		t.Errorf("priority(0) = %v, want untouched (PriorityNone)", got)
	}
	if got := source.priorityOf(2); got != PriorityHigh {
		t.Errorf("priority(2) = %v, want PriorityHigh", got)
	}
}

func TestSchedulerAdvanceMovesCursorPastFinishedPieces(t *testing.T) {
	const pieceLength = 1024
	source := newFakeSource(pieceLength, manyPieces(10, pieceLength))

	var s scheduler
	s.Jump(source, 0, pieceLength)

	source.setHave(0, true)
	source.setHave(1, true)

	s.Advance(source)

	if s.cursor != 2 {
		t.Fatalf("cursor = %d, want 2 after advancing past two finished pieces", s.cursor)
	}
}

func TestSchedulerCursorMonotonicUnderRepeatedAdvance(t *testing.T) {
	const pieceLength = 1024
	source := newFakeSource(pieceLength, manyPieces(5, pieceLength))

	var s scheduler
	s.Jump(source, 0, pieceLength)

	last := s.cursor
	for i := 0; i < 5; i++ {
		source.setHave(i, true)
		s.Advance(source)
		if s.cursor < last {
			t.Fatalf("cursor moved backward: %d -> %d", last, s.cursor)
		}
		last = s.cursor
	}
}

func TestSchedulerJumpAdvancesCursorPastPresentPieces(t *testing.T) {
	const pieceLength = 1024
	source := newFakeSource(pieceLength, manyPieces(60, pieceLength))
	for i := 50; i < 53; i++ {
		source.setHave(i, true)
	}

	var s scheduler
	s.Jump(source, 50, pieceLength)

	if s.cursor != 53 {
		t.Fatalf("cursor = %d, want 53 (first not-yet-present piece >= 50)", s.cursor)
	}
}

func TestSchedulerRaiseWindowSkipsPresentPiecesWithoutSpendingBudget(t *testing.T) {
	const pieceLength = 1024 * 1024 // 1MiB, so HeadBytes covers exactly two missing pieces
	source := newFakeSource(pieceLength, manyPieces(5, pieceLength))
	source.setHave(1, true) // missing, have, missing, missing, missing

	var s scheduler
	s.Jump(source, 0, pieceLength)

	for _, piece := range []int{0, 2} {
		if got := source.priorityOf(piece); got != PriorityHigh {
			t.Errorf("priority(%d) = %v, want PriorityHigh", piece, got)
		}
	}
	if got := source.priorityOf(3); got == PriorityHigh {
		t.Errorf("priority(3) = %v, want untouched — the already-have piece 1 must not have consumed head budget that piece 3 needed", got)
	}
}

func TestSchedulerJumpAtEndOfTorrentIsNoop(t *testing.T) {
	const pieceLength = 1024
	source := newFakeSource(pieceLength, manyPieces(3, pieceLength))

	var s scheduler
	s.Jump(source, 3, pieceLength) // past the last piece

	// Nothing should panic, and no priorities should be set on
	// out-of-range pieces.
	if len(source.priorities) != 0 {
		t.Fatalf("priorities = %v, want none set past end of torrent", source.priorities)
	}
}
