package plugins

import (
	"bytes"
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"

	"github.com/cavaliercoder/go-cpio"
	"github.com/klauspost/compress/gzip"

	"github.com/bytescope/bytescope/internal/rio"
)

func TestMallocAllocatesZeroedBuffer(t *testing.T) {
	res, err := Malloc{}.Open("malloc://0x10", rio.Read|rio.Write)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if res.Size != 0x10 {
		t.Fatalf("Size = %d, want 16", res.Size)
	}
	buf := make([]byte, 16)
	if _, err := res.Ops.Read(0, buf); err != nil {
		t.Fatalf("Read: %v", err)
	}
	for _, b := range buf {
		if b != 0 {
			t.Fatalf("expected zeroed buffer, got %v", buf)
		}
	}
}

func TestB64Decodes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.b64")
	payload := []byte("hello, bytescope")
	if err := os.WriteFile(path, []byte(base64.StdEncoding.EncodeToString(payload)), 0644); err != nil {
		t.Fatal(err)
	}
	res, err := B64{}.Open("b64://"+path, rio.Read)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	buf := make([]byte, len(payload))
	if _, err := res.Ops.Read(0, buf); err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !bytes.Equal(buf, payload) {
		t.Fatalf("got %q, want %q", buf, payload)
	}
}

func TestGzInflates(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.gz")
	payload := []byte("gzip round trip payload")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	zw := gzip.NewWriter(f)
	if _, err := zw.Write(payload); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	f.Close()

	res, err := Gz{}.Open("gz://"+path, rio.Read)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	buf := make([]byte, len(payload))
	if _, err := res.Ops.Read(0, buf); err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !bytes.Equal(buf, payload) {
		t.Fatalf("got %q, want %q", buf, payload)
	}
}

func TestCpioReadsNamedEntry(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "archive.cpio")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	w := cpio.NewWriter(f)
	payload := []byte("member contents")
	if err := w.WriteHeader(&cpio.Header{Name: "member.bin", Size: int64(len(payload)), Mode: 0644}); err != nil {
		t.Fatal(err)
	}
	if _, err := w.Write(payload); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	f.Close()

	res, err := Cpio{}.Open("cpio://"+path+"!member.bin", rio.Read)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	buf := make([]byte, len(payload))
	if _, err := res.Ops.Read(0, buf); err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !bytes.Equal(buf, payload) {
		t.Fatalf("got %q, want %q", buf, payload)
	}
}

func TestCpioMissingEntry(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "archive.cpio")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	w := cpio.NewWriter(f)
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	f.Close()

	if _, err := (Cpio{}).Open("cpio://"+path+"!missing", rio.Read); err == nil {
		t.Fatalf("expected an error for a missing entry")
	}
}

func TestSrecRoundTripsThroughWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "image.srec")
	content := "S00600004844521B\n" +
		"S1130000285F245F2212226A000424290008237C2A\n" +
		"S9030000FC\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	res, err := Srec{}.Open("srec://"+path, rio.Read|rio.Write)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if res.Size != 16 {
		t.Fatalf("Size = %d, want 16", res.Size)
	}

	if _, err := res.Ops.Write(0, []byte{0xAB, 0xCD}); err != nil {
		t.Fatalf("Write: %v", err)
	}

	rewritten, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Contains(rewritten, []byte("S0")) {
		t.Fatalf("rewritten file missing header record: %s", rewritten)
	}
	if !bytes.Contains(rewritten, []byte("abcd")) {
		t.Fatalf("rewritten file missing new bytes: %s", rewritten)
	}
}

func TestIhexRoundTripsThroughWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "image.hex")
	content := ":10000000214601360121470136007EFE09D2190040\n" +
		":00000001FF\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	res, err := Ihex{}.Open("ihex://"+path, rio.Read|rio.Write)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if res.Size != 16 {
		t.Fatalf("Size = %d, want 16", res.Size)
	}

	if _, err := res.Ops.Write(0, []byte{0xFE, 0xED}); err != nil {
		t.Fatalf("Write: %v", err)
	}

	rewritten, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Contains(rewritten, []byte("FEED")) {
		t.Fatalf("rewritten file missing new bytes: %s", rewritten)
	}
	if !bytes.Contains(rewritten, []byte(":00000001FF")) {
		t.Fatalf("rewritten file missing EOF record: %s", rewritten)
	}
}
