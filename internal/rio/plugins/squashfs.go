package plugins

import (
	"io"
	"os"
	"strings"

	"golang.org/x/exp/mmap"

	"github.com/bytescope/bytescope/internal/ioerr"
	"github.com/bytescope/bytescope/internal/rio"
	"github.com/bytescope/bytescope/internal/squashfs"
)

// Squashfs exposes one file inside a read-only SquashFS image as a byte
// source: squashfs://<image>!<path>. The image is mmapped once at open
// and handed to squashfs.NewReader, which reads the superblock and
// directory/inode tables straight out of the mapping; the looked-up
// file's extent is then copied out into a buffer so the rest of the
// fan-out/read path sees an ordinary in-memory descriptor.
type Squashfs struct{}

func (Squashfs) Metadata() rio.Metadata {
	return rio.Metadata{Name: "squashfs", Desc: "SquashFS image member byte source", Version: "v1.0.0"}
}

func (Squashfs) AcceptURI(uri string) bool { return strings.HasPrefix(uri, "squashfs://") }

func (Squashfs) Open(uri string, perm rio.Permission) (rio.OpenResult, error) {
	body := strings.TrimPrefix(uri, "squashfs://")
	image, path, ok := strings.Cut(body, "!")
	if !ok {
		return rio.OpenResult{}, ioerr.Custom("squashfs: expected squashfs://<image>!<path>")
	}

	ra, err := mmap.Open(image)
	if err != nil {
		if os.IsPermission(err) {
			return rio.OpenResult{}, ioerr.PermissionDenied(err.Error())
		}
		return rio.OpenResult{}, &ioerr.Parse{Err: err}
	}
	defer ra.Close()

	r, err := squashfs.NewReader(ra)
	if err != nil {
		return rio.OpenResult{}, err
	}

	inode, err := r.LookupPath(strings.TrimPrefix(path, "/"))
	if err != nil {
		return rio.OpenResult{}, err
	}
	fr, err := r.FileReader(inode)
	if err != nil {
		return rio.OpenResult{}, err
	}
	buf, err := io.ReadAll(fr)
	if err != nil {
		return rio.OpenResult{}, &ioerr.Parse{Err: err}
	}

	return rio.OpenResult{
		Name:  path,
		Raddr: 0,
		Size:  uint64(len(buf)),
		Perm:  perm,
		Ops:   &bufferOps{buf: buf},
	}, nil
}
