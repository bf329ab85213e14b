package plugins

import (
	"bytes"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/gzip"

	"github.com/bytescope/bytescope/internal/ioerr"
	"github.com/bytescope/bytescope/internal/rio"
)

// Gz inflates the underlying file into a byte buffer, read-only — the
// sibling of B64 for gzip-compressed artifacts. Uses
// klauspost/compress/gzip rather than the standard library's
// compress/gzip; this plugin is the only user of that library in the
// repo.
type Gz struct{}

func (Gz) Metadata() rio.Metadata {
	return rio.Metadata{Name: "gz", Desc: "gzip-wrapped byte source", Version: "v1.0.0"}
}

func (Gz) AcceptURI(uri string) bool { return strings.HasPrefix(uri, "gz://") }

func (Gz) Open(uri string, perm rio.Permission) (rio.OpenResult, error) {
	path := strings.TrimPrefix(uri, "gz://")
	f, err := os.Open(path)
	if err != nil {
		if os.IsPermission(err) {
			return rio.OpenResult{}, ioerr.PermissionDenied(err.Error())
		}
		return rio.OpenResult{}, &ioerr.Parse{Err: err}
	}
	defer f.Close()

	zr, err := gzip.NewReader(f)
	if err != nil {
		return rio.OpenResult{}, ioerr.Custom("gz: " + err.Error())
	}
	defer zr.Close()

	var out bytes.Buffer
	if _, err := io.Copy(&out, zr); err != nil {
		return rio.OpenResult{}, &ioerr.Parse{Err: err}
	}
	buf := out.Bytes()
	return rio.OpenResult{
		Name:  path,
		Raddr: 0,
		Size:  uint64(len(buf)),
		Perm:  perm,
		Ops:   &bufferOps{buf: buf},
	}, nil
}
