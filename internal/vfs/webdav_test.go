package vfs

import (
	"context"
	"testing"

	"github.com/bytescope/bytescope/internal/rio"
	"github.com/bytescope/bytescope/internal/rio/plugins"
)

func newTestGuarded(t *testing.T) *rio.Guarded {
	t.Helper()
	eng := rio.NewEngine(plugins.Malloc{})
	if _, err := eng.Open("malloc://0x100", rio.Read|rio.Write); err != nil {
		t.Fatalf("Open: %v", err)
	}
	return rio.NewGuarded(eng)
}

func TestWebdavHandlerReadWriteRoundTrip(t *testing.T) {
	g := newTestGuarded(t)
	fs := &memWebdavFS{eng: g}
	ctx := context.Background()

	f, err := fs.OpenFile(ctx, "/mem", 0, 0)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	if _, err := f.Write([]byte("hello")); err != nil {
		t.Fatalf("Write: %v", err)
	}

	f2, err := fs.OpenFile(ctx, "/mem", 0, 0)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	buf := make([]byte, 5)
	if _, err := f2.Read(buf); err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(buf) != "hello" {
		t.Fatalf("got %q, want %q", buf, "hello")
	}
}

func TestWebdavHandlerStatRoot(t *testing.T) {
	g := newTestGuarded(t)
	fs := &memWebdavFS{eng: g}
	fi, err := fs.Stat(context.Background(), "/")
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if !fi.IsDir() {
		t.Fatalf("expected root to report as a directory")
	}
}

func TestWebdavHandlerUnknownPath(t *testing.T) {
	g := newTestGuarded(t)
	fs := &memWebdavFS{eng: g}
	if _, err := fs.Stat(context.Background(), "/nope"); err == nil {
		t.Fatalf("expected an error for an unknown path")
	}
}

func TestMemFSAttrs(t *testing.T) {
	g := newTestGuarded(t)
	fs := &memFS{eng: g}
	attrs := fs.attrs(memInode)
	if attrs.Size != memSize {
		t.Fatalf("Size = %d, want %d", attrs.Size, memSize)
	}
}
