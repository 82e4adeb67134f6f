package swarmfs

// Priority is a piece download priority on the 0..7 scale the
// underlying swarm engine exposes. 0 disables fetch entirely.
type Priority int

const (
	// PriorityNone disables download of a piece. Every file starts
	// here; only a Read raises priorities.
	PriorityNone Priority = 0
	// PriorityLow marks a piece as wanted but not urgent — the cold
	// tail of the current request, beyond the hot window.
	PriorityLow Priority = 1
	// PriorityHigh marks a piece as wanted immediately — the hot
	// window directly ahead of the scheduler's cursor.
	PriorityHigh Priority = 7
)

// PieceSource is the seam between the reactor and the swarm engine.
// It is implemented by lib/swarmengine.Session. All methods must be
// safe to call while Core's mutex is held by the caller; none of them
// may themselves block on network I/O — RequestPiece only schedules a
// delivery, it does not wait for one.
type PieceSource interface {
	// NumPieces returns the total piece count. Valid only once torrent
	// metadata has been received; implementations should block callers
	// out of metadata-dependent paths until then (spec's "calls block
	// on the Reactor mutex until setup completes").
	NumPieces() int

	// PieceLength returns the byte length of the given piece. The
	// final piece of a torrent is often shorter than the rest.
	PieceLength(piece int) int

	// HavePiece reports whether the engine has already verified and
	// stored this piece.
	HavePiece(piece int) bool

	// MapFile resolves length bytes of fileIndex starting at offset to
	// a single piece-relative region. The caller is responsible for
	// looping when the requested range spans multiple pieces — MapFile
	// itself addresses only as much as fits in one piece starting at
	// offset.
	MapFile(fileIndex int, offset, length int64) (piece, start, partLength int)

	// FileSize returns the total size of fileIndex in bytes.
	FileSize(fileIndex int) int64

	// RequestPiece asks the engine to deliver the bytes of piece via
	// OnReadPieceDelivered, if the piece is already marked have. It is
	// a scheduling hint, not a wait — idempotent, and safe to call for
	// a piece that is already in flight or already delivered.
	RequestPiece(piece int)

	// SetPiecePriority raises or lowers the download priority of a
	// single piece.
	SetPiecePriority(piece int, priority Priority)
}
