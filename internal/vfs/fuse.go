// Package vfs exposes an engine's physical address space as a single
// addressable file, through a FUSE mount and a WebDAV handler sharing the
// same read/write semantics. Adapted from the teacher's internal/fuse
// package-store filesystem, trimmed down to the one file this system
// needs: the whole of physical memory.
package vfs

import (
	"context"
	"os"
	"time"

	"github.com/jacobsa/fuse"
	"github.com/jacobsa/fuse/fuseops"
	"github.com/jacobsa/fuse/fuseutil"
	"golang.org/x/xerrors"

	"github.com/bytescope/bytescope/internal/ioerr"
	"github.com/bytescope/bytescope/internal/rio"
)

const (
	rootInode = fuseops.RootInodeID
	memInode  = fuseops.RootInodeID + 1
	memName   = "mem"
)

// memSize is large enough to cover any paddr a real session is likely to
// reach; reads past the last descriptor surface as EIO rather than
// growing the file, matching Engine.Pread's own AddressNotFound arm.
const memSize = 1 << 40

type memFS struct {
	fuseutil.NotImplementedFileSystem

	eng *rio.Guarded
}

func (fs *memFS) GetInodeAttributes(ctx context.Context, op *fuseops.GetInodeAttributesOp) error {
	op.Attributes = fs.attrs(op.Inode)
	return nil
}

func (fs *memFS) attrs(inode fuseops.InodeID) fuseops.InodeAttributes {
	now := time.Now()
	if inode == rootInode {
		return fuseops.InodeAttributes{Nlink: 1, Mode: os.ModeDir | 0555, Atime: now, Mtime: now, Ctime: now}
	}
	return fuseops.InodeAttributes{Size: memSize, Nlink: 1, Mode: 0644, Atime: now, Mtime: now, Ctime: now}
}

func (fs *memFS) LookUpInode(ctx context.Context, op *fuseops.LookUpInodeOp) error {
	if op.Parent != rootInode || op.Name != memName {
		return fuse.ENOENT
	}
	op.Entry.Child = memInode
	op.Entry.Attributes = fs.attrs(memInode)
	return nil
}

func (fs *memFS) OpenDir(ctx context.Context, op *fuseops.OpenDirOp) error { return nil }

func (fs *memFS) ReadDir(ctx context.Context, op *fuseops.ReadDirOp) error {
	if op.Inode != rootInode {
		return fuse.EIO
	}
	entries := []fuseutil.Dirent{
		{Offset: 1, Inode: memInode, Name: memName, Type: fuseutil.DT_File},
	}
	if op.Offset > fuseops.DirOffset(len(entries)) {
		return nil
	}
	for _, e := range entries[op.Offset:] {
		n := fuseutil.WriteDirent(op.Dst[op.BytesRead:], e)
		if n == 0 {
			break
		}
		op.BytesRead += n
	}
	return nil
}

func (fs *memFS) OpenFile(ctx context.Context, op *fuseops.OpenFileOp) error {
	if op.Inode != memInode {
		return fuse.ENOENT
	}
	return nil
}

func (fs *memFS) ReadFile(ctx context.Context, op *fuseops.ReadFileOp) error {
	if op.Inode != memInode {
		return fuse.EIO
	}
	n, err := fs.eng.Pread(uint64(op.Offset), op.Dst)
	op.BytesRead = n
	if err == nil {
		return nil
	}
	if ioerr.IsUnexpectedEOF(err) {
		return nil // short read at the tail of backed memory, not an error
	}
	return fuse.EIO
}

func (fs *memFS) WriteFile(ctx context.Context, op *fuseops.WriteFileOp) error {
	if op.Inode != memInode {
		return fuse.EIO
	}
	if _, err := fs.eng.Pwrite(uint64(op.Offset), op.Data); err != nil {
		return fuse.EIO
	}
	return nil
}

func (fs *memFS) SetInodeAttributes(ctx context.Context, op *fuseops.SetInodeAttributesOp) error {
	op.Attributes = fs.attrs(op.Inode)
	return nil
}

func (fs *memFS) FlushFile(ctx context.Context, op *fuseops.FlushFileOp) error  { return nil }
func (fs *memFS) ReleaseFileHandle(ctx context.Context, op *fuseops.ReleaseFileHandleOp) error {
	return nil
}

// Mount serves a single file named "mem" at mountpoint, whose contents are
// eng's entire physical address space. The returned unmount func unmounts
// and then waits for the server to exit; the mount is also unmounted when
// ctx is cancelled.
func Mount(ctx context.Context, eng *rio.Guarded, mountpoint string) (unmount func() error, err error) {
	server := fuseutil.NewFileSystemServer(&memFS{eng: eng})
	mfs, err := fuse.Mount(mountpoint, server, &fuse.MountConfig{
		FSName: "bytescope",
		Options: map[string]string{
			"allow_other": "",
		},
	})
	if err != nil {
		return nil, xerrors.Errorf("fuse.Mount: %w", err)
	}
	unmount = func() error {
		if err := fuse.Unmount(mountpoint); err != nil {
			return err
		}
		return mfs.Join(context.Background())
	}
	go func() {
		<-ctx.Done()
		fuse.Unmount(mountpoint)
	}()
	return unmount, nil
}
