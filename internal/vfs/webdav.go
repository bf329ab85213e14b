package vfs

import (
	"context"
	"io"
	"net/http"
	"os"
	"path"
	"time"

	"golang.org/x/net/webdav"

	"github.com/bytescope/bytescope/internal/ioerr"
	"github.com/bytescope/bytescope/internal/rio"
)

// WebdavHandler serves the same single-file "mem" view as Mount, over
// HTTP, for inspection without a kernel FUSE mount.
func WebdavHandler(eng *rio.Guarded) http.Handler {
	return &webdav.Handler{
		FileSystem: &memWebdavFS{eng: eng},
		LockSystem: webdav.NewMemLS(),
	}
}

type memWebdavFS struct{ eng *rio.Guarded }

func (fs *memWebdavFS) Mkdir(ctx context.Context, name string, perm os.FileMode) error {
	return ioerr.Custom("webdav: mem is a fixed single-file tree")
}

func (fs *memWebdavFS) RemoveAll(ctx context.Context, name string) error {
	return ioerr.Custom("webdav: mem is a fixed single-file tree")
}

func (fs *memWebdavFS) Rename(ctx context.Context, oldName, newName string) error {
	return ioerr.Custom("webdav: mem is a fixed single-file tree")
}

func (fs *memWebdavFS) Stat(ctx context.Context, name string) (os.FileInfo, error) {
	switch path.Clean("/" + name) {
	case "/":
		return rootFileInfo{}, nil
	case "/" + memName:
		return memFileInfo{}, nil
	}
	return nil, os.ErrNotExist
}

func (fs *memWebdavFS) OpenFile(ctx context.Context, name string, flag int, perm os.FileMode) (webdav.File, error) {
	switch path.Clean("/" + name) {
	case "/":
		return &memWebdavFile{isDir: true}, nil
	case "/" + memName:
		return &memWebdavFile{eng: fs.eng}, nil
	}
	return nil, os.ErrNotExist
}

type rootFileInfo struct{}

func (rootFileInfo) Name() string       { return "/" }
func (rootFileInfo) Size() int64        { return 0 }
func (rootFileInfo) Mode() os.FileMode  { return os.ModeDir | 0555 }
func (rootFileInfo) ModTime() time.Time { return time.Time{} }
func (rootFileInfo) IsDir() bool        { return true }
func (rootFileInfo) Sys() interface{}   { return nil }

type memFileInfo struct{}

func (memFileInfo) Name() string       { return memName }
func (memFileInfo) Size() int64        { return memSize }
func (memFileInfo) Mode() os.FileMode  { return 0644 }
func (memFileInfo) ModTime() time.Time { return time.Time{} }
func (memFileInfo) IsDir() bool        { return false }
func (memFileInfo) Sys() interface{}   { return nil }

// memWebdavFile implements webdav.File (http.File + io.Writer) over the
// engine's physical address space, tracking a seek position the way an
// ordinary os.File would.
type memWebdavFile struct {
	eng   *rio.Guarded
	isDir bool
	pos   int64
}

func (f *memWebdavFile) Close() error { return nil }

func (f *memWebdavFile) Read(p []byte) (int, error) {
	if f.isDir {
		return 0, os.ErrInvalid
	}
	n, err := f.eng.Pread(uint64(f.pos), p)
	f.pos += int64(n)
	if err != nil {
		if ioerr.IsUnexpectedEOF(err) {
			return n, io.EOF
		}
		return n, err
	}
	return n, nil
}

func (f *memWebdavFile) Write(p []byte) (int, error) {
	if f.isDir {
		return 0, os.ErrInvalid
	}
	n, err := f.eng.Pwrite(uint64(f.pos), p)
	f.pos += int64(n)
	return n, err
}

func (f *memWebdavFile) Seek(offset int64, whence int) (int64, error) {
	switch whence {
	case io.SeekStart:
		f.pos = offset
	case io.SeekCurrent:
		f.pos += offset
	case io.SeekEnd:
		f.pos = memSize + offset
	}
	return f.pos, nil
}

func (f *memWebdavFile) Readdir(count int) ([]os.FileInfo, error) {
	if !f.isDir {
		return nil, os.ErrInvalid
	}
	return []os.FileInfo{memFileInfo{}}, nil
}

func (f *memWebdavFile) Stat() (os.FileInfo, error) {
	if f.isDir {
		return rootFileInfo{}, nil
	}
	return memFileInfo{}, nil
}
