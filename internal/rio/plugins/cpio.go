package plugins

import (
	"bytes"
	"io"
	"os"
	"strings"

	"github.com/cavaliercoder/go-cpio"

	"github.com/bytescope/bytescope/internal/ioerr"
	"github.com/bytescope/bytescope/internal/rio"
)

// Cpio exposes one entry of a POSIX/SVR4 cpio archive as a byte source:
// cpio://<archive>!<entry>. Read-only; the entry is decoded into memory
// once at open.
type Cpio struct{}

func (Cpio) Metadata() rio.Metadata {
	return rio.Metadata{Name: "cpio", Desc: "cpio archive member byte source", Version: "v1.0.0"}
}

func (Cpio) AcceptURI(uri string) bool { return strings.HasPrefix(uri, "cpio://") }

func (Cpio) Open(uri string, perm rio.Permission) (rio.OpenResult, error) {
	body := strings.TrimPrefix(uri, "cpio://")
	archive, entry, ok := strings.Cut(body, "!")
	if !ok {
		return rio.OpenResult{}, ioerr.Custom("cpio: expected cpio://<archive>!<entry>")
	}
	f, err := os.Open(archive)
	if err != nil {
		if os.IsPermission(err) {
			return rio.OpenResult{}, ioerr.PermissionDenied(err.Error())
		}
		return rio.OpenResult{}, &ioerr.Parse{Err: err}
	}
	defer f.Close()

	r := cpio.NewReader(f)
	for {
		hdr, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return rio.OpenResult{}, ioerr.Custom("cpio: " + err.Error())
		}
		if hdr.Name != entry {
			continue
		}
		var buf bytes.Buffer
		if _, err := io.Copy(&buf, r); err != nil {
			return rio.OpenResult{}, &ioerr.Parse{Err: err}
		}
		return rio.OpenResult{
			Name:  entry,
			Raddr: 0,
			Size:  uint64(buf.Len()),
			Perm:  perm,
			Ops:   &bufferOps{buf: buf.Bytes()},
		}, nil
	}
	return rio.OpenResult{}, ioerr.Custom("cpio: entry not found: " + entry)
}
