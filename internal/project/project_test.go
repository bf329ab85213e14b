package project

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/bytescope/bytescope/internal/rio"
	"github.com/bytescope/bytescope/internal/rio/plugins"
)

func newTestEngine() *rio.Engine {
	return rio.NewEngine(plugins.Malloc{})
}

// TestSaveLoadRoundTrip exercises spec.md §8 scenario 2: serialize, close
// all descriptors, deserialize, and expect the same files/maps listing.
// Descriptors are reopened by URI, so the malloc:// buffer comes back
// zeroed rather than holding the bytes written before Save.
func TestSaveLoadRoundTrip(t *testing.T) {
	eng := newTestEngine()
	h, err := eng.Open("malloc://0x100", rio.Read|rio.Write)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	paddr, ok := eng.PhyToHndl(0)
	_ = paddr
	if !ok {
		t.Fatalf("expected descriptor at paddr 0")
	}
	if _, err := eng.Pwrite(0, []byte("hello")); err != nil {
		t.Fatalf("Pwrite: %v", err)
	}
	if err := eng.Map(0, 0x8000, 0x100); err != nil {
		t.Fatalf("Map: %v", err)
	}

	path := filepath.Join(t.TempDir(), "session.proj")
	if err := Save(eng, path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	eng.CloseAll()
	if len(eng.Descriptors()) != 0 {
		t.Fatalf("expected no descriptors after CloseAll")
	}

	if err := Load(eng, path); err != nil {
		t.Fatalf("Load: %v", err)
	}

	descs := eng.Descriptors()
	if len(descs) != 1 || descs[0].Handle != h {
		t.Fatalf("descriptor listing did not reproduce: %+v", descs)
	}

	buf := make([]byte, 5)
	if _, err := eng.Pread(0, buf); err != nil {
		t.Fatalf("Pread: %v", err)
	}
	if string(buf) != "\x00\x00\x00\x00\x00" {
		t.Fatalf("got %q, want %q", buf, "\x00\x00\x00\x00\x00")
	}

	gotPaddr, ok := eng.VirToPhy(0x8000)
	if !ok || gotPaddr != 0 {
		t.Fatalf("VirToPhy after reload = %d, %v", gotPaddr, ok)
	}
}

func TestLoadMissingFile(t *testing.T) {
	eng := newTestEngine()
	if err := Load(eng, filepath.Join(os.TempDir(), "does-not-exist.proj")); err == nil {
		t.Fatalf("expected an error loading a nonexistent project file")
	}
}
