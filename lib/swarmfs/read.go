package swarmfs

// PiecePart is one piece-aligned slice of a Read. A Read over a range
// that spans piece boundaries decomposes into one PiecePart per piece
// touched.
type PiecePart struct {
	// Piece is the absolute piece index this part belongs to.
	Piece int
	// Start is the byte offset within the piece where this part
	// begins.
	Start int
	// Length is the number of bytes this part covers.
	Length int
	// dest is the slice of the caller's output buffer this part fills.
	// len(dest) == Length.
	dest []byte
	// filled reports whether Copy has already written this part.
	filled bool
}

// Read is one (file, offset, length) request, decomposed into
// piece-aligned Parts against the caller's destination buffer (spec
// §4.2). A Read is driven to completion by repeated calls to Trigger
// and Copy from Core; it does not fetch or block on anything itself.
type Read struct {
	fileIndex int
	parts     []PiecePart
}

// NewRead builds a Read for size bytes of fileIndex starting at
// offset, to be copied into dest. size is clamped to the file's actual
// length (spec §4.2's "tail truncation" edge case) so that a request
// past end-of-file, or one that overruns it, never walks off the end
// of a piece it doesn't own.
func NewRead(source PieceSource, fileIndex int, offset, size int64, dest []byte) *Read {
	fileSize := source.FileSize(fileIndex)
	if offset >= fileSize {
		return &Read{fileIndex: fileIndex}
	}
	if offset+size > fileSize {
		size = fileSize - offset
	}
	if size > int64(len(dest)) {
		size = int64(len(dest))
	}

	r := &Read{fileIndex: fileIndex}

	written := int64(0)
	for written < size {
		piece, start, partLength := source.MapFile(fileIndex, offset+written, size-written)
		if partLength <= 0 {
			break
		}

		r.parts = append(r.parts, PiecePart{
			Piece:  piece,
			Start:  start,
			Length: partLength,
			dest:   dest[written : written+int64(partLength)],
		})
		written += int64(partLength)
	}

	return r
}

// Trigger asks source to deliver the piece of every unfilled part whose
// piece source already has; parts whose piece is still missing are
// left to the scheduler's priorities. It is idempotent and safe to
// call repeatedly — once per entry into the reactor's wait loop, per
// spec §4.3.
func (r *Read) Trigger(source PieceSource) {
	for i := range r.parts {
		if r.parts[i].filled {
			continue
		}
		if source.HavePiece(r.parts[i].Piece) {
			source.RequestPiece(r.parts[i].Piece)
		}
	}
}

// Copy fills every unfilled part belonging to piece from buf, which
// must hold the full piece's bytes starting at offset 0 within the
// piece. It reports whether any part was filled, so callers can avoid
// a spurious wakeup broadcast when the delivered piece touches none of
// this Read's parts.
func (r *Read) Copy(piece int, buf []byte) (filledAny bool) {
	for i := range r.parts {
		part := &r.parts[i]
		if part.filled || part.Piece != piece {
			continue
		}
		if part.Start+part.Length > len(buf) {
			continue
		}
		copy(part.dest, buf[part.Start:part.Start+part.Length])
		part.filled = true
		filledAny = true
	}
	return filledAny
}

// Finished reports whether every part of the Read has been filled. A
// Read with zero parts (an empty or wholly out-of-range request) is
// finished immediately.
func (r *Read) Finished() bool {
	for i := range r.parts {
		if !r.parts[i].filled {
			return false
		}
	}
	return true
}

// Size returns the total number of bytes this Read covers across all
// parts — the value returned to the FUSE caller once Finished.
func (r *Read) Size() int {
	total := 0
	for i := range r.parts {
		total += r.parts[i].Length
	}
	return total
}

// FirstPiece returns the piece index of the Read's first part, and
// whether the Read has any parts at all. The scheduler (C4) uses this
// to steer its cursor to where a new Read begins.
func (r *Read) FirstPiece() (piece int, ok bool) {
	if len(r.parts) == 0 {
		return 0, false
	}
	return r.parts[0].Piece, true
}
