package plugins

import (
	"io"
	"os"
	"strings"

	"golang.org/x/sys/unix"

	"github.com/bytescope/bytescope/internal/ioerr"
	"github.com/bytescope/bytescope/internal/rio"
)

// File is the default, fallback plugin: it accepts file://… or any URI
// without a recognized scheme, per rio::plugin's raw-file provider.
// Read-only opens are served from a read-only mmap; COW opens clone that
// mmap into a private heap buffer immediately (so the descriptor does
// not hold a dangling view if the file is later truncated); writable,
// non-COW opens use positional ReadAt/WriteAt against the open file.
type File struct{}

func (File) Metadata() rio.Metadata {
	return rio.Metadata{Name: "file", Desc: "raw file byte source", Version: "v1.0.0"}
}

func (File) AcceptURI(uri string) bool {
	return strings.HasPrefix(uri, "file://") || !strings.Contains(uri, "://")
}

func (File) Open(uri string, perm rio.Permission) (rio.OpenResult, error) {
	path := strings.TrimPrefix(uri, "file://")
	flag := os.O_RDONLY
	if perm.Has(rio.Write) {
		flag = os.O_RDWR
	}
	f, err := os.OpenFile(path, flag, 0)
	if err != nil {
		if os.IsPermission(err) {
			return rio.OpenResult{}, ioerr.PermissionDenied(err.Error())
		}
		return rio.OpenResult{}, &ioerr.Parse{Err: err}
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return rio.OpenResult{}, &ioerr.Parse{Err: err}
	}
	size := uint64(info.Size())

	switch {
	case perm.Has(rio.Write) && !perm.Has(rio.Cow):
		return rio.OpenResult{Name: path, Raddr: 0, Size: size, Perm: perm, Ops: &fileOps{f: f}}, nil
	case perm.Has(rio.Cow):
		data, err := mmapRead(f, size)
		f.Close()
		if err != nil {
			return rio.OpenResult{}, &ioerr.Parse{Err: err}
		}
		buf := make([]byte, len(data))
		copy(buf, data)
		unix.Munmap(data)
		return rio.OpenResult{Name: path, Raddr: 0, Size: size, Perm: perm, Ops: &bufferOps{buf: buf}}, nil
	default:
		data, err := mmapRead(f, size)
		if err != nil {
			f.Close()
			return rio.OpenResult{}, &ioerr.Parse{Err: err}
		}
		return rio.OpenResult{Name: path, Raddr: 0, Size: size, Perm: perm, Ops: &mmapOps{data: data, f: f}}, nil
	}
}

func mmapRead(f *os.File, size uint64) ([]byte, error) {
	if size == 0 {
		return nil, nil
	}
	return unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ, unix.MAP_SHARED)
}

// fileOps backs a writable, non-COW file with plain positional I/O.
type fileOps struct {
	f *os.File
}

func (o *fileOps) Read(raddr uint64, buf []byte) (int, error) {
	n, err := o.f.ReadAt(buf, int64(raddr))
	if err != nil && err != io.EOF {
		return n, &ioerr.Parse{Err: err}
	}
	if n < len(buf) {
		return n, ioerr.UnexpectedEOF()
	}
	return n, nil
}

func (o *fileOps) Write(raddr uint64, buf []byte) (int, error) {
	n, err := o.f.WriteAt(buf, int64(raddr))
	if err != nil {
		return n, &ioerr.Parse{Err: err}
	}
	return n, nil
}

func (o *fileOps) Close() error { return o.f.Close() }

// mmapOps backs a read-only file with a read-only memory mapping.
type mmapOps struct {
	data []byte
	f    *os.File
}

func (o *mmapOps) Read(raddr uint64, buf []byte) (int, error) {
	if raddr > uint64(len(o.data)) || raddr+uint64(len(buf)) > uint64(len(o.data)) {
		return 0, ioerr.UnexpectedEOF()
	}
	return copy(buf, o.data[raddr:]), nil
}

func (o *mmapOps) Write(raddr uint64, buf []byte) (int, error) {
	return 0, ioerr.PermissionDenied("file opened read-only")
}

func (o *mmapOps) Close() error {
	if o.data != nil {
		unix.Munmap(o.data)
	}
	return o.f.Close()
}
