package swarmfs

import (
	"errors"
	"strings"
)

// Errors returned by Index lookups. The FUSE glue (lib/swarmfs/fuse)
// maps these onto syscall errno values.
var (
	ErrNoEntry      = errors.New("no such entry")
	ErrNotDirectory = errors.New("not a directory")
	ErrIsDirectory  = errors.New("is a directory")
	ErrAccessDenied = errors.New("access denied")
)

// TorrentFile is one entry in a torrent's file list. Immutable once
// built into an Index.
type TorrentFile struct {
	// Path is POSIX, with a leading "/" (e.g. "/a/b/c.bin").
	Path string
	// Size is the file length in bytes.
	Size int64
	// FileIndex is the stable integer the engine uses to address this
	// file (PieceSource.MapFile's fileIndex argument).
	FileIndex int
}

// Index is the directory tree built once from a torrent's flat file
// list (spec §4.1). It is immutable after construction; concurrent
// reads from multiple FUSE worker goroutines are safe without external
// locking, and lib/swarmfs/fuse reads it through Core.Index without
// taking Core's mutex.
type Index struct {
	// dirs maps a directory's full path to the set of its immediate
	// children's names (both files and subdirectories).
	dirs map[string]map[string]struct{}
	// files maps a file's full path to its TorrentFile.
	files map[string]TorrentFile
}

// NewIndex builds an Index from a torrent's file list. Every file's
// path prefix chain is inserted as a directory, and "/" is always
// present even if files is empty.
func NewIndex(files []TorrentFile) *Index {
	ix := &Index{
		dirs:  map[string]map[string]struct{}{"/": {}},
		files: make(map[string]TorrentFile, len(files)),
	}

	for _, file := range files {
		segments := splitPath(file.Path)
		if len(segments) == 0 {
			continue
		}

		parent := "/"
		for i, segment := range segments {
			ix.ensureDir(parent)
			ix.dirs[parent][segment] = struct{}{}

			if i == len(segments)-1 {
				break
			}

			if parent == "/" {
				parent = "/" + segment
			} else {
				parent = parent + "/" + segment
			}
			ix.ensureDir(parent)
		}

		ix.files["/"+strings.Join(segments, "/")] = file
	}

	return ix
}

func (ix *Index) ensureDir(path string) {
	if _, ok := ix.dirs[path]; !ok {
		ix.dirs[path] = map[string]struct{}{}
	}
}

// splitPath splits a POSIX path on "/", dropping empty segments (so
// leading/trailing/doubled slashes are tolerated).
func splitPath(path string) []string {
	raw := strings.Split(path, "/")
	segments := make([]string, 0, len(raw))
	for _, s := range raw {
		if s != "" {
			segments = append(segments, s)
		}
	}
	return segments
}

// IsDir reports whether path names a directory.
func (ix *Index) IsDir(path string) bool {
	_, ok := ix.dirs[path]
	return ok
}

// IsFile reports whether path names a file.
func (ix *Index) IsFile(path string) bool {
	_, ok := ix.files[path]
	return ok
}

// Getattr returns the mode and size for path. This layer reports only
// isDir/size; lib/swarmfs/fuse applies the concrete mode bits
// (drwxr-xr-x, 0755, for directories; -r--r--r--, 0444, for files).
func (ix *Index) Getattr(path string) (isDir bool, size int64, err error) {
	if path == "/" {
		return true, 0, nil
	}
	if ix.IsDir(path) {
		return true, 0, nil
	}
	if file, ok := ix.files[path]; ok {
		return false, file.Size, nil
	}
	return false, 0, ErrNoEntry
}

// Readdir returns the immediate child names of path, not including "."
// or "..". Callers that need a POSIX directory stream add those
// themselves; lib/swarmfs/fuse passes these names to go-fuse without
// adding them.
func (ix *Index) Readdir(path string) ([]string, error) {
	children, ok := ix.dirs[path]
	if !ok {
		if ix.IsFile(path) {
			return nil, ErrNotDirectory
		}
		return nil, ErrNoEntry
	}

	names := make([]string, 0, len(children))
	for name := range children {
		names = append(names, name)
	}
	return names, nil
}

// Open returns the TorrentFile at path, rejecting directories and
// anything but read-only access. writable reports whether the FUSE
// open request asked for write access.
func (ix *Index) Open(path string, writable bool) (TorrentFile, error) {
	if ix.IsDir(path) {
		return TorrentFile{}, ErrIsDirectory
	}
	file, ok := ix.files[path]
	if !ok {
		return TorrentFile{}, ErrNoEntry
	}
	if writable {
		return TorrentFile{}, ErrAccessDenied
	}
	return file, nil
}
