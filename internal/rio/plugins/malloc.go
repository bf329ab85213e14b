package plugins

import (
	"strconv"
	"strings"

	"github.com/bytescope/bytescope/internal/ioerr"
	"github.com/bytescope/bytescope/internal/rio"
)

// Malloc is the scratch-buffer plugin: malloc://<size> allocates a
// zero-initialized anonymous buffer of the given size.
type Malloc struct{}

func (Malloc) Metadata() rio.Metadata {
	return rio.Metadata{Name: "malloc", Desc: "zero-initialized scratch buffer", Version: "v1.0.0"}
}

func (Malloc) AcceptURI(uri string) bool { return strings.HasPrefix(uri, "malloc://") }

func (Malloc) Open(uri string, perm rio.Permission) (rio.OpenResult, error) {
	body := strings.TrimPrefix(uri, "malloc://")
	size, err := parseSize(body)
	if err != nil {
		return rio.OpenResult{}, ioerr.Custom("malloc: bad size " + body)
	}
	return rio.OpenResult{
		Name:  "malloc",
		Raddr: 0,
		Size:  size,
		Perm:  perm,
		Ops:   &bufferOps{buf: make([]byte, size)},
	}, nil
}

// parseSize accepts hex (0x…), binary (0b…), octal (leading 0), or
// decimal, matching the malloc:// URI convention.
func parseSize(s string) (uint64, error) {
	switch {
	case strings.HasPrefix(s, "0x"), strings.HasPrefix(s, "0X"):
		return strconv.ParseUint(s[2:], 16, 64)
	case strings.HasPrefix(s, "0b"), strings.HasPrefix(s, "0B"):
		return strconv.ParseUint(s[2:], 2, 64)
	case strings.HasPrefix(s, "0") && len(s) > 1:
		return strconv.ParseUint(s[1:], 8, 64)
	default:
		return strconv.ParseUint(s, 10, 64)
	}
}
