package swarmfs

import "sync"

// fakeSource is a PieceSource backed by plain byte slices, one per
// piece, with no network and no concurrency of its own. Tests drive
// "delivery" explicitly by passing pieceBytes to Core.OnReadPieceDelivered
// or Read.Copy, which mimics what the engine façade's alert pump would
// do once a piece finishes.
type fakeSource struct {
	mu sync.Mutex

	pieceLength int
	pieces      [][]byte // full contents of each piece
	have        []bool

	files []fakeFile

	requested  map[int]int // piece -> request count
	priorities map[int]Priority
}

type fakeFile struct {
	size int64
	// pieceOffset is the absolute byte offset of this file's first
	// byte, within the flattened piece space.
	pieceOffset int64
}

// newFakeSource builds a source with the given piece length and one
// piece per entry of pieceData. Files are registered with
// addFile.
func newFakeSource(pieceLength int, pieceData [][]byte) *fakeSource {
	return &fakeSource{
		pieceLength: pieceLength,
		pieces:      pieceData,
		have:        make([]bool, len(pieceData)),
		requested:   make(map[int]int),
		priorities:  make(map[int]Priority),
	}
}

// addFile registers a file of size bytes starting at absolute offset
// and returns its fileIndex.
func (f *fakeSource) addFile(offset, size int64) int {
	f.files = append(f.files, fakeFile{size: size, pieceOffset: offset})
	return len(f.files) - 1
}

// setHave marks piece as already verified and stored.
func (f *fakeSource) setHave(piece int, have bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.have[piece] = have
}

func (f *fakeSource) NumPieces() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.pieces)
}

func (f *fakeSource) PieceLength(piece int) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	if piece < 0 || piece >= len(f.pieces) {
		return 0
	}
	return len(f.pieces[piece])
}

func (f *fakeSource) HavePiece(piece int) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if piece < 0 || piece >= len(f.have) {
		return false
	}
	return f.have[piece]
}

func (f *fakeSource) MapFile(fileIndex int, offset, length int64) (piece, start, partLength int) {
	f.mu.Lock()
	defer f.mu.Unlock()

	file := f.files[fileIndex]
	abs := file.pieceOffset + offset

	piece = int(abs / int64(f.pieceLength))
	start = int(abs % int64(f.pieceLength))

	remaining := len(f.pieces[piece]) - start
	partLength = remaining
	if int64(partLength) > length {
		partLength = int(length)
	}
	return piece, start, partLength
}

func (f *fakeSource) FileSize(fileIndex int) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.files[fileIndex].size
}

func (f *fakeSource) RequestPiece(piece int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requested[piece]++
}

func (f *fakeSource) SetPiecePriority(piece int, priority Priority) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.priorities[piece] = priority
}

func (f *fakeSource) priorityOf(piece int) Priority {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.priorities[piece]
}

func (f *fakeSource) requestCount(piece int) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requested[piece]
}

func (f *fakeSource) pieceBytes(piece int) []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pieces[piece]
}
