package rio

import (
	"bytes"
	"strconv"
	"strings"
	"testing"

	"github.com/bytescope/bytescope/internal/ioerr"
)

// memPlugin is a minimal in-memory test plugin: URIs of the form
// "mem://<name>/<size>" allocate a zeroed buffer of that many bytes,
// writable unless perm lacks Write/Cow. It stands in for the real
// malloc:// plugin in tests that only care about table/registry
// behavior, the way rio/src/io.rs's tests use a trivial in-memory
// descriptor.
type memPlugin struct{}

func (memPlugin) Metadata() Metadata { return Metadata{Name: "mem", Version: "v1.0.0"} }
func (memPlugin) AcceptURI(uri string) bool { return strings.HasPrefix(uri, "mem://") }

func (memPlugin) Open(uri string, perm Permission) (OpenResult, error) {
	rest := strings.TrimPrefix(uri, "mem://")
	parts := strings.SplitN(rest, "/", 2)
	if len(parts) != 2 {
		return OpenResult{}, ioerr.Custom("mem: expected mem://<name>/<size>")
	}
	size, err := strconv.ParseUint(parts[1], 0, 64)
	if err != nil {
		return OpenResult{}, ioerr.Custom("mem: bad size")
	}
	return OpenResult{
		Name: parts[0],
		Raddr: 0,
		Size: size,
		Perm: perm,
		Ops:  &memOps{buf: make([]byte, size)},
	}, nil
}

type memOps struct {
	buf []byte
}

func (m *memOps) Read(raddr uint64, buf []byte) (int, error) {
	if raddr+uint64(len(buf)) > uint64(len(m.buf)) {
		return 0, ioerr.UnexpectedEOF()
	}
	return copy(buf, m.buf[raddr:]), nil
}

func (m *memOps) Write(raddr uint64, buf []byte) (int, error) {
	if raddr+uint64(len(buf)) > uint64(len(m.buf)) {
		return 0, ioerr.UnexpectedEOF()
	}
	return copy(m.buf[raddr:], buf), nil
}

func newTestEngine() *Engine {
	return NewEngine(memPlugin{})
}

func TestOpenCloseAssignsSmallestHandle(t *testing.T) {
	e := newTestEngine()
	h1, err := e.Open("mem://a/16", Read|Write)
	if err != nil {
		t.Fatal(err)
	}
	h2, err := e.Open("mem://b/16", Read|Write)
	if err != nil {
		t.Fatal(err)
	}
	if h1 != 0 || h2 != 1 {
		t.Fatalf("handles = %d,%d want 0,1", h1, h2)
	}
	if err := e.Close(h1); err != nil {
		t.Fatal(err)
	}
	h3, err := e.Open("mem://c/16", Read|Write)
	if err != nil {
		t.Fatal(err)
	}
	if h3 != 0 {
		t.Fatalf("handle reuse: got %d want 0", h3)
	}
}

func TestOpenAtOverlapRejected(t *testing.T) {
	e := newTestEngine()
	if _, err := e.OpenAt("mem://a/0x100", Read, 0); err != nil {
		t.Fatal(err)
	}
	if _, err := e.OpenAt("mem://b/0x10", Read, 0x50); err != ioerr.ErrAddressesOverlap {
		t.Fatalf("err = %v, want AddressesOverlapError", err)
	}
	if _, err := e.OpenAt("mem://c/0x10", Read, 0x100); err != nil {
		t.Fatalf("adjacent open_at should succeed: %v", err)
	}
}

func TestPluginNotFound(t *testing.T) {
	e := NewEngine(nil)
	if _, err := e.Open("mem://a/16", Read); err != ioerr.ErrPluginNotFound {
		t.Fatalf("err = %v, want IoPluginNotFoundError", err)
	}
}

func TestPreadPwriteRoundTrip(t *testing.T) {
	e := newTestEngine()
	if _, err := e.OpenAt("mem://a/0x10", Read|Write, 0); err != nil {
		t.Fatal(err)
	}
	data := []byte{1, 2, 3, 4}
	if _, err := e.Pwrite(4, data); err != nil {
		t.Fatal(err)
	}
	got := make([]byte, 4)
	if _, err := e.Pread(4, got); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, data) {
		t.Fatalf("got %v want %v", got, data)
	}
}

func TestPreadFanOutAcrossDescriptors(t *testing.T) {
	e := newTestEngine()
	if _, err := e.OpenAt("mem://a/0x10", Read|Write, 0); err != nil {
		t.Fatal(err)
	}
	if _, err := e.OpenAt("mem://b/0x10", Read|Write, 0x10); err != nil {
		t.Fatal(err)
	}
	if _, err := e.Pwrite(0xc, []byte{0xaa, 0xbb, 0xcc, 0xdd, 0xee, 0xff, 0x11, 0x22}); err != nil {
		t.Fatal(err)
	}
	got := make([]byte, 8)
	if _, err := e.Pread(0xc, got); err != nil {
		t.Fatal(err)
	}
	want := []byte{0xaa, 0xbb, 0xcc, 0xdd, 0xee, 0xff, 0x11, 0x22}
	if !bytes.Equal(got, want) {
		t.Fatalf("got %v want %v", got, want)
	}
}

func TestPreadGapFails(t *testing.T) {
	e := newTestEngine()
	if _, err := e.OpenAt("mem://a/0x10", Read, 0); err != nil {
		t.Fatal(err)
	}
	if _, err := e.OpenAt("mem://b/0x10", Read, 0x20); err != nil {
		t.Fatal(err)
	}
	got := make([]byte, 0x20)
	if _, err := e.Pread(0, got); !ioerr.IsUnexpectedEOF(err) {
		t.Fatalf("err = %v, want UnexpectedEof-wrapped Parse", err)
	}
}

func TestPwriteRequiresPermission(t *testing.T) {
	e := newTestEngine()
	if _, err := e.OpenAt("mem://a/0x10", Read, 0); err != nil {
		t.Fatal(err)
	}
	if _, err := e.Pwrite(0, []byte{1}); err == nil {
		t.Fatal("expected PermissionDenied")
	}
}

func TestPhyToHndlAndIsPhy(t *testing.T) {
	e := newTestEngine()
	h, _ := e.OpenAt("mem://a/0x10", Read, 0x100)
	got, ok := e.PhyToHndl(0x108)
	if !ok || got != h {
		t.Fatalf("PhyToHndl = %d,%v want %d,true", got, ok, h)
	}
	if !e.IsPhy(0x100, 0x10) {
		t.Fatal("IsPhy should be true for backed range")
	}
	if e.IsPhy(0x100, 0x11) {
		t.Fatal("IsPhy should be false past descriptor end")
	}
}

// Concrete scenario 1 from the engine's functional surface: map a
// scratch buffer, write through physical, read back through virtual.
func TestMapVreadScenario(t *testing.T) {
	e := newTestEngine()
	if _, err := e.OpenAt("mem://a/0x5000", Read|Write, 0); err != nil {
		t.Fatal(err)
	}
	if err := e.Map(0x0, 0x500, 0x500); err != nil {
		t.Fatal(err)
	}
	data := []byte{0x12, 0x34, 0x56, 0x78, 0x9a, 0xbc, 0xde}
	if _, err := e.Pwrite(0, data); err != nil {
		t.Fatal(err)
	}
	got := make([]byte, len(data))
	if _, err := e.Vread(0x500, got); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, data) {
		t.Fatalf("Vread = %v want %v", got, data)
	}
}

func TestCloseDropsOwnedMappings(t *testing.T) {
	e := newTestEngine()
	h, _ := e.OpenAt("mem://a/0x100", Read|Write, 0)
	if err := e.Map(0, 0x1000, 0x100); err != nil {
		t.Fatal(err)
	}
	if !e.IsVir(0x1000, 0x100) {
		t.Fatal("expected mapping to be visible before close")
	}
	if err := e.Close(h); err != nil {
		t.Fatal(err)
	}
	if e.IsVir(0x1000, 0x100) {
		t.Fatal("mapping should have been dropped when its descriptor closed")
	}
}
