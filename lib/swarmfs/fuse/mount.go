package fuse

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"syscall"
	"time"

	"github.com/gobtfs/btfs/lib/swarmfs"
	gofuse "github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"
)

// Options configures the FUSE mount.
type Options struct {
	// Mountpoint is the directory where the filesystem is mounted.
	// Created if it does not already exist.
	Mountpoint string

	// Core is the read–piece reactor backing every path lookup and
	// read. Required.
	Core *swarmfs.Core

	// AllowOther permits other users (including root) to access the
	// mount. Requires user_allow_other in /etc/fuse.conf.
	AllowOther bool

	// Logger receives diagnostic messages. If nil, a text logger
	// writing error-level messages to stderr is used.
	Logger *slog.Logger
}

// Mount mounts the swarm filesystem at the configured mountpoint. The
// caller must call Unmount on the returned Server when done.
func Mount(options Options) (*fuse.Server, error) {
	if options.Mountpoint == "" {
		return nil, fmt.Errorf("mountpoint is required")
	}
	if options.Core == nil {
		return nil, fmt.Errorf("core is required")
	}
	if options.Logger == nil {
		options.Logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelError,
		}))
	}

	if err := os.MkdirAll(options.Mountpoint, 0o755); err != nil {
		return nil, fmt.Errorf("creating mountpoint %s: %w", options.Mountpoint, err)
	}

	root := &dirNode{options: &options, path: "/"}

	entryTimeout := 1 * time.Second
	attrTimeout := 1 * time.Second
	negativeTimeout := 100 * time.Millisecond

	server, err := gofuse.Mount(options.Mountpoint, root, &gofuse.Options{
		EntryTimeout:    &entryTimeout,
		AttrTimeout:     &attrTimeout,
		NegativeTimeout: &negativeTimeout,
		MountOptions: fuse.MountOptions{
			FsName:     "btfs",
			Name:       "btfs",
			AllowOther: options.AllowOther,
			// The content behind any given file is not known
			// complete to the kernel ahead of a Read — a page
			// cached on a prior, only-partially-delivered read
			// would go stale once more pieces arrive.
			Options: []string{"ro"},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("mounting FUSE filesystem at %s: %w", options.Mountpoint, err)
	}

	options.Logger.Info("btfs filesystem mounted", "mountpoint", options.Mountpoint)
	return server, nil
}

// dirNode is a directory in the swarm's file tree. path is the full
// POSIX path of this directory within the torrent ("/" for the root).
type dirNode struct {
	gofuse.Inode
	options *Options
	path    string
}

var _ gofuse.InodeEmbedder = (*dirNode)(nil)
var _ gofuse.NodeLookuper = (*dirNode)(nil)
var _ gofuse.NodeReaddirer = (*dirNode)(nil)
var _ gofuse.NodeGetattrer = (*dirNode)(nil)

func (d *dirNode) Getattr(ctx context.Context, f gofuse.FileHandle, out *fuse.AttrOut) syscall.Errno {
	out.Mode = syscall.S_IFDIR | 0o755
	return 0
}

func (d *dirNode) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*gofuse.Inode, syscall.Errno) {
	childPath := joinPath(d.path, name)

	isDir, size, err := d.options.Core.Index().Getattr(childPath)
	if err != nil {
		if errors.Is(err, swarmfs.ErrNoEntry) {
			return nil, syscall.ENOENT
		}
		d.options.Logger.Error("getattr failed", "path", childPath, "error", err)
		return nil, syscall.EIO
	}

	if isDir {
		child := d.NewPersistentInode(ctx, &dirNode{options: d.options, path: childPath}, gofuse.StableAttr{Mode: syscall.S_IFDIR})
		out.Mode = syscall.S_IFDIR | 0o755
		return child, 0
	}

	file, err := d.options.Core.Index().Open(childPath, false)
	if err != nil {
		d.options.Logger.Error("open failed during lookup", "path", childPath, "error", err)
		return nil, syscall.EIO
	}

	child := d.NewPersistentInode(ctx, &fileNode{options: d.options, file: file}, gofuse.StableAttr{Mode: syscall.S_IFREG})
	out.Mode = syscall.S_IFREG | 0o444
	out.Size = uint64(size)
	return child, 0
}

func (d *dirNode) Readdir(ctx context.Context) (gofuse.DirStream, syscall.Errno) {
	names, err := d.options.Core.Index().Readdir(d.path)
	if err != nil {
		if errors.Is(err, swarmfs.ErrNoEntry) {
			return nil, syscall.ENOENT
		}
		d.options.Logger.Error("readdir failed", "path", d.path, "error", err)
		return nil, syscall.EIO
	}

	entries := make([]fuse.DirEntry, 0, len(names))
	for _, name := range names {
		childPath := joinPath(d.path, name)
		isDir, _, err := d.options.Core.Index().Getattr(childPath)
		if err != nil {
			continue
		}
		mode := uint32(syscall.S_IFREG)
		if isDir {
			mode = syscall.S_IFDIR
		}
		entries = append(entries, fuse.DirEntry{Name: name, Mode: mode})
	}

	return &sliceDirStream{entries: entries}, 0
}

// fileNode is a regular file backed by one file of the torrent. Reads
// go through the shared Core, which blocks until the swarm engine
// delivers the requested pieces.
type fileNode struct {
	gofuse.Inode
	options *Options
	file    swarmfs.TorrentFile
}

var _ gofuse.InodeEmbedder = (*fileNode)(nil)
var _ gofuse.NodeGetattrer = (*fileNode)(nil)
var _ gofuse.NodeOpener = (*fileNode)(nil)
var _ gofuse.NodeReader = (*fileNode)(nil)

func (n *fileNode) Getattr(ctx context.Context, f gofuse.FileHandle, out *fuse.AttrOut) syscall.Errno {
	out.Mode = syscall.S_IFREG | 0o444
	out.Size = uint64(n.file.Size)
	return 0
}

func (n *fileNode) Open(ctx context.Context, flags uint32) (gofuse.FileHandle, uint32, syscall.Errno) {
	writable := flags&(syscall.O_WRONLY|syscall.O_RDWR) != 0
	if _, err := n.options.Core.Index().Open(n.file.Path, writable); err != nil {
		if errors.Is(err, swarmfs.ErrAccessDenied) {
			return nil, 0, syscall.EACCES
		}
		n.options.Logger.Error("open failed", "path", n.file.Path, "error", err)
		return nil, 0, syscall.EIO
	}
	// Content behind this file is delivered piece by piece as the
	// swarm downloads it, so the kernel page cache is not enabled
	// here (no fuse.FOPEN_KEEP_CACHE) — a page cached from a read
	// before the piece completed would never be invalidated.
	return nil, 0, 0
}

func (n *fileNode) Read(ctx context.Context, f gofuse.FileHandle, dest []byte, off int64) (fuse.ReadResult, syscall.Errno) {
	source := n.options.Core.Source()
	r := swarmfs.NewRead(source, n.file.FileIndex, off, int64(len(dest)), dest)

	bytesRead, err := n.options.Core.Read(ctx, r)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, syscall.EINTR
		}
		if errors.Is(err, swarmfs.ErrClosed) {
			return nil, syscall.EIO
		}
		n.options.Logger.Error("read failed", "path", n.file.Path, "offset", off, "error", err)
		return nil, syscall.EIO
	}

	return fuse.ReadResultData(dest[:bytesRead]), 0
}

// joinPath appends name to parent, which is always a directory path
// ("/" or "/a/b" with no trailing slash).
func joinPath(parent, name string) string {
	if parent == "/" {
		return "/" + name
	}
	return parent + "/" + name
}

// sliceDirStream implements gofuse.DirStream from a slice of entries.
type sliceDirStream struct {
	entries []fuse.DirEntry
	index   int
}

func (s *sliceDirStream) HasNext() bool {
	return s.index < len(s.entries)
}

func (s *sliceDirStream) Next() (fuse.DirEntry, syscall.Errno) {
	if s.index >= len(s.entries) {
		return fuse.DirEntry{}, syscall.EINVAL
	}
	entry := s.entries[s.index]
	s.index++
	return entry, 0
}

func (s *sliceDirStream) Close() {}
