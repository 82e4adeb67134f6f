package swarmfs

import (
	"errors"
	"testing"
)

func buildTestIndex() *Index {
	return NewIndex([]TorrentFile{
		{Path: "/a/b/c.bin", Size: 100, FileIndex: 0},
		{Path: "/a/d.bin", Size: 200, FileIndex: 1},
		{Path: "/e.bin", Size: 300, FileIndex: 2},
	})
}

func TestIndexGetattrRoot(t *testing.T) {
	ix := buildTestIndex()

	isDir, _, err := ix.Getattr("/")
	if err != nil {
		t.Fatalf("Getattr(/): %v", err)
	}
	if !isDir {
		t.Fatalf("Getattr(/): expected directory")
	}
}

func TestIndexGetattrNestedDirectory(t *testing.T) {
	ix := buildTestIndex()

	isDir, _, err := ix.Getattr("/a/b")
	if err != nil {
		t.Fatalf("Getattr(/a/b): %v", err)
	}
	if !isDir {
		t.Fatalf("Getattr(/a/b): expected directory")
	}
}

func TestIndexGetattrFile(t *testing.T) {
	ix := buildTestIndex()

	isDir, size, err := ix.Getattr("/a/b/c.bin")
	if err != nil {
		t.Fatalf("Getattr(/a/b/c.bin): %v", err)
	}
	if isDir {
		t.Fatalf("Getattr(/a/b/c.bin): expected file, got directory")
	}
	if size != 100 {
		t.Fatalf("Getattr(/a/b/c.bin): size = %d, want 100", size)
	}
}

func TestIndexGetattrMissing(t *testing.T) {
	ix := buildTestIndex()

	_, _, err := ix.Getattr("/nope")
	if !errors.Is(err, ErrNoEntry) {
		t.Fatalf("Getattr(/nope): err = %v, want ErrNoEntry", err)
	}
}

func TestIndexReaddirRoot(t *testing.T) {
	ix := buildTestIndex()

	names, err := ix.Readdir("/")
	if err != nil {
		t.Fatalf("Readdir(/): %v", err)
	}

	want := map[string]bool{"a": true, "e.bin": true}
	if len(names) != len(want) {
		t.Fatalf("Readdir(/) = %v, want keys of %v", names, want)
	}
	for _, n := range names {
		if !want[n] {
			t.Errorf("Readdir(/) unexpected entry %q", n)
		}
	}
}

func TestIndexReaddirNested(t *testing.T) {
	ix := buildTestIndex()

	names, err := ix.Readdir("/a")
	if err != nil {
		t.Fatalf("Readdir(/a): %v", err)
	}

	want := map[string]bool{"b": true, "d.bin": true}
	if len(names) != len(want) {
		t.Fatalf("Readdir(/a) = %v, want keys of %v", names, want)
	}
}

func TestIndexReaddirOnFile(t *testing.T) {
	ix := buildTestIndex()

	_, err := ix.Readdir("/e.bin")
	if !errors.Is(err, ErrNotDirectory) {
		t.Fatalf("Readdir(/e.bin): err = %v, want ErrNotDirectory", err)
	}
}

func TestIndexOpenFile(t *testing.T) {
	ix := buildTestIndex()

	file, err := ix.Open("/e.bin", false)
	if err != nil {
		t.Fatalf("Open(/e.bin): %v", err)
	}
	if file.FileIndex != 2 || file.Size != 300 {
		t.Fatalf("Open(/e.bin) = %+v, want FileIndex=2 Size=300", file)
	}
}

func TestIndexOpenDirectoryDenied(t *testing.T) {
	ix := buildTestIndex()

	_, err := ix.Open("/a", false)
	if !errors.Is(err, ErrIsDirectory) {
		t.Fatalf("Open(/a): err = %v, want ErrIsDirectory", err)
	}
}

func TestIndexOpenWriteDenied(t *testing.T) {
	ix := buildTestIndex()

	_, err := ix.Open("/e.bin", true)
	if !errors.Is(err, ErrAccessDenied) {
		t.Fatalf("Open(/e.bin, writable): err = %v, want ErrAccessDenied", err)
	}
}

func TestIndexEmpty(t *testing.T) {
	ix := NewIndex(nil)

	isDir, _, err := ix.Getattr("/")
	if err != nil || !isDir {
		t.Fatalf("Getattr(/) on empty index: isDir=%v err=%v", isDir, err)
	}

	names, err := ix.Readdir("/")
	if err != nil {
		t.Fatalf("Readdir(/) on empty index: %v", err)
	}
	if len(names) != 0 {
		t.Fatalf("Readdir(/) on empty index = %v, want none", names)
	}
}
