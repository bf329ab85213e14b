package squashfs

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/bytescope/bytescope/internal/ioerr"
)

type Reader struct {
	r     io.ReaderAt
	super superblock
}

func NewReader(r io.ReaderAt) (*Reader, error) {
	var sb superblock

	if err := binary.Read(io.NewSectionReader(r, 0, int64(binary.Size(sb))), binary.LittleEndian, &sb); err != nil {
		return nil, &ioerr.Parse{Err: fmt.Errorf("reading superblock: %w", err)}
	}

	if got, want := sb.Magic, uint32(magic); got != want {
		return nil, ioerr.Custom(fmt.Sprintf("invalid magic (not a SquashFS image?): got %x, want %x", got, want))
	}

	return &Reader{
		r:     r,
		super: sb,
	}, nil
}

func (r *Reader) inode(i Inode) (blockoffset int64, offset int64) {
	return int64(i >> 16), int64(i & 0xFFFF)
}

type blockReader struct {
	r   io.ReadSeeker
	buf *bytes.Buffer

	off int64
}

func (br *blockReader) Read(p []byte) (n int, err error) {
	n, err = br.buf.Read(p)
	if err == io.EOF {
		br.buf.Reset()
		var l uint16
		if err := binary.Read(br.r, binary.LittleEndian, &l); err != nil {
			return 0, &ioerr.Parse{Err: err}
		}
		l &= 0x7FFF
		if _, err := io.CopyN(br.buf, br.r, int64(l)); err != nil {
			return 0, &ioerr.Parse{Err: err}
		}
		n, err = br.buf.Read(p)
	}
	return n, err
}

func (r *Reader) blockReader(blockoffset, offset int64) (io.Reader, error) {
	br := &blockReader{
		r:   io.NewSectionReader(r.r, blockoffset, 5500*1024*1024),
		buf: bytes.NewBuffer(make([]byte, 0, metadataBlockSize)),
		off: blockoffset,
	}
	if _, err := io.CopyN(ioutil.Discard, br, offset); err != nil {
		return nil, &ioerr.Parse{Err: err}
	}
	return br, nil
}

// readInode decodes the inode at i, returning one of the *InodeHeader
// types defined in format.go. The type tag is read once to select the
// header shape, then re-spliced onto the stream via io.MultiReader so
// the header's own binary.Read sees it again from the start.
func (r *Reader) readInode(i Inode) (interface{}, error) {
	blockoffset, offset := r.inode(i)
	br, err := r.blockReader(r.super.InodeTableStart+blockoffset, offset)
	if err != nil {
		return nil, err
	}

	var inodeType uint16
	typeBuf := bytes.NewBuffer(make([]byte, 0, binary.Size(inodeType)))
	if err := binary.Read(io.TeeReader(br, typeBuf), binary.LittleEndian, &inodeType); err != nil {
		return nil, &ioerr.Parse{Err: err}
	}
	br = io.MultiReader(typeBuf, br)

	switch inodeType {
	case dirType:
		var di dirInodeHeader
		if err := binary.Read(br, binary.LittleEndian, &di); err != nil {
			return nil, &ioerr.Parse{Err: err}
		}
		return di, nil

	case fileType:
		var ri regInodeHeader
		if err := binary.Read(br, binary.LittleEndian, &ri); err != nil {
			return nil, &ioerr.Parse{Err: err}
		}
		return ri, nil

	case symlinkType:
		var si symlinkInodeHeader
		if err := binary.Read(br, binary.LittleEndian, &si); err != nil {
			return nil, &ioerr.Parse{Err: err}
		}
		return si, nil

	case ldirType:
		var di ldirInodeHeader
		if err := binary.Read(br, binary.LittleEndian, &di); err != nil {
			return nil, &ioerr.Parse{Err: err}
		}
		return di, nil

	case lregType:
		var di lregInodeHeader
		if err := binary.Read(br, binary.LittleEndian, &di); err != nil {
			return nil, &ioerr.Parse{Err: err}
		}
		return di, nil

		// TODO: blkdevType, chrdevType, fifoType, socketType and their
		// l-variants (sparse files, xattrs) are not yet decoded.
	}
	return nil, ioerr.Custom(fmt.Sprintf("unknown inode type %d", inodeType))
}

func (r *Reader) RootInode() Inode {
	return r.super.RootInode
}

func (r *Reader) Stat(name string, i Inode) (os.FileInfo, error) {
	inode, err := r.readInode(i)
	if err != nil {
		return nil, err
	}
	switch x := inode.(type) {
	case dirInodeHeader:
		return &FileInfo{
			name:    name,
			size:    int64(x.FileSize),
			mode:    os.ModeDir | os.FileMode(x.Mode),
			modTime: time.Unix(int64(x.Mtime), 0),
			Inode:   i,
		}, nil

	case ldirInodeHeader:
		return &FileInfo{
			name:    name,
			size:    int64(x.FileSize),
			mode:    os.ModeDir | os.FileMode(x.Mode),
			modTime: time.Unix(int64(x.Mtime), 0),
			Inode:   i,
		}, nil

	case regInodeHeader:
		mode := os.FileMode(x.Mode & 0777)
		if x.Mode&syscall.S_ISUID != 0 {
			mode |= os.ModeSetuid
		}
		return &FileInfo{
			name:    name,
			size:    int64(x.FileSize),
			mode:    mode,
			modTime: time.Unix(int64(x.Mtime), 0),
			Inode:   i,
		}, nil

	case lregInodeHeader:
		mode := os.FileMode(x.Mode & 0777)
		if x.Mode&syscall.S_ISUID != 0 {
			mode |= os.ModeSetuid
		}
		return &FileInfo{
			name:    name,
			size:    int64(x.FileSize),
			mode:    mode,
			modTime: time.Unix(int64(x.Mtime), 0),
			Inode:   i,
		}, nil

	case symlinkInodeHeader:
		return &FileInfo{
			name:    name,
			size:    int64(x.SymlinkSize),
			mode:    os.ModeSymlink | os.FileMode(x.Mode),
			modTime: time.Unix(int64(x.Mtime), 0),
			Inode:   i,
		}, nil
	}

	return nil, ioerr.Custom(fmt.Sprintf("unknown inode type %T", inode))
}

func (r *Reader) ReadLink(i Inode) (string, error) {
	blockoffset, offset := r.inode(i)
	br, err := r.blockReader(r.super.InodeTableStart+blockoffset, offset)
	if err != nil {
		return "", err
	}

	var inodeType uint16
	typeBuf := bytes.NewBuffer(make([]byte, 0, binary.Size(inodeType)))
	if err := binary.Read(io.TeeReader(br, typeBuf), binary.LittleEndian, &inodeType); err != nil {
		return "", &ioerr.Parse{Err: err}
	}
	br = io.MultiReader(typeBuf, br)

	if inodeType != symlinkType {
		return "", ioerr.Custom(fmt.Sprintf("invalid inode type: got %d instead of symlink", inodeType))
	}
	var si symlinkInodeHeader
	if err := binary.Read(br, binary.LittleEndian, &si); err != nil {
		return "", &ioerr.Parse{Err: err}
	}

	// Assumption: r.r is positioned right after the inode
	buf := make([]byte, si.SymlinkSize)
	if _, err := br.Read(buf); err != nil {
		return "", &ioerr.Parse{Err: err}
	}
	return string(buf), nil
}

func (r *Reader) FileReader(inode Inode) (*io.SectionReader, error) {
	i, err := r.readInode(inode)
	if err != nil {
		return nil, err
	}
	// TODO(compression): read the blocksizes to read compressed blocks
	switch ri := i.(type) {
	case regInodeHeader:
		off := int64(ri.StartBlock) + int64(ri.Offset)
		return io.NewSectionReader(r.r, off, int64(ri.FileSize)), nil
	case lregInodeHeader:
		off := int64(ri.StartBlock) + int64(ri.Offset)
		return io.NewSectionReader(r.r, off, int64(ri.FileSize)), nil
	default:
		return nil, ioerr.Custom("non-file inode type")
	}
}

func (r *Reader) lookupComponent(parent Inode, component string) (Inode, error) {
	rfis, err := r.readdir(parent, false)
	if err != nil {
		return 0, err
	}
	for _, rfi := range rfis {
		if rfi.Name() == component {
			return rfi.Sys().(*FileInfo).Inode, nil
		}
	}
	return 0, ioerr.ErrAddressNotFound
}

// LookupPath walks path component by component from the root inode,
// resolving symlinks as it goes. A missing component or dangling
// symlink is reported as ioerr.ErrAddressNotFound, matching every other
// byte source's not-found error.
func (r *Reader) LookupPath(path string) (Inode, error) {
	inode := r.RootInode()
	parts := strings.Split(path, "/")
	for idx, part := range parts {
		var err error
		inode, err = r.lookupComponent(inode, part)
		if err != nil {
			if errors.Is(err, ioerr.ErrAddressNotFound) {
				return 0, ioerr.ErrAddressNotFound
			}
			return 0, err
		}
		fi, err := r.Stat("", inode)
		if err != nil {
			return 0, err
		}
		if fi.Mode()&os.ModeSymlink > 0 {
			target, err := r.ReadLink(inode)
			if err != nil {
				return 0, err
			}
			target = filepath.Clean(filepath.Join(append(parts[:idx] /* parent */, target)...))
			return r.LookupPath(target)
		}
	}
	return inode, nil
}

func (r *Reader) Readdir(dirInode Inode) ([]os.FileInfo, error) {
	return r.readdir(dirInode, true)
}

func (r *Reader) readdir(dirInode Inode, stat bool) ([]os.FileInfo, error) {
	i, err := r.readInode(dirInode)
	if err != nil {
		return nil, err
	}
	var (
		startBlock int64
		fileSize   int64
		offset     int64
	)
	switch x := i.(type) {
	case dirInodeHeader:
		startBlock = int64(x.StartBlock)
		fileSize = int64(x.FileSize)
		offset = int64(x.Offset)

	case ldirInodeHeader:
		startBlock = int64(x.StartBlock)
		fileSize = int64(x.FileSize)
		offset = int64(x.Offset)

	default:
		return nil, ioerr.Custom(fmt.Sprintf("unknown directory inode type %T", i))
	}

	br, err := r.blockReader(r.super.DirectoryTableStart+startBlock, offset)
	if err != nil {
		return nil, err
	}

	// See also https://elixir.bootlin.com/linux/v4.18.9/source/fs/squashfs/dir.c#L63
	limit := fileSize - int64(len(".")) - int64(len(".."))
	br = io.LimitReader(br, limit)

	var fis []os.FileInfo
	for {
		var dh dirHeader
		if err := binary.Read(br, binary.LittleEndian, &dh); err != nil {
			if err == io.EOF {
				return fis, nil
			}
			return nil, &ioerr.Parse{Err: err}
		}
		dh.Count++ // SquashFS stores count-1

		for i := 0; i < int(dh.Count); i++ {
			var de dirEntry
			if err := binary.Read(br, binary.LittleEndian, &de); err != nil {
				return nil, &ioerr.Parse{Err: err}
			}
			de.Size++ // SquashFS stores size-1
			name := make([]byte, de.Size)
			if _, err := io.ReadFull(br, name); err != nil {
				return nil, &ioerr.Parse{Err: err}
			}

			var fi os.FileInfo
			if stat {
				var err error
				fi, err = r.Stat(string(name), Inode(int64(dh.StartBlock)<<16|int64(de.Offset)))
				if err != nil {
					return nil, err
				}
			} else {
				fi = &FileInfo{
					name:  string(name),
					Inode: Inode(int64(dh.StartBlock)<<16 | int64(de.Offset)),
				}
			}
			fis = append(fis, fi)
		}
	}
}

type FileInfo struct {
	name    string
	size    int64
	mode    os.FileMode
	modTime time.Time
	Inode   Inode
}

func (fi *FileInfo) Name() string       { return fi.name }
func (fi *FileInfo) Size() int64        { return fi.size }
func (fi *FileInfo) Mode() os.FileMode  { return fi.mode }
func (fi *FileInfo) IsDir() bool        { return fi.mode.IsDir() }
func (fi *FileInfo) ModTime() time.Time { return fi.modTime }
func (fi *FileInfo) Sys() interface{}   { return fi }

func (r *Reader) ReadXattrs(inode Inode) ([]Xattr, error) {
	i, err := r.readInode(inode)
	if err != nil {
		return nil, err
	}
	var xid uint32
	switch x := i.(type) {
	case regInodeHeader,
		dirInodeHeader,
		ldirInodeHeader,
		symlinkInodeHeader:
		return nil, nil // no extended attributes

	case lregInodeHeader:
		if x.Xattr == invalidXattr {
			return nil, nil // file has no extended attributes
		}
		xid = x.Xattr

	default:
		return nil, ioerr.Custom(fmt.Sprintf("unknown inode type %T", i))
	}

	const idEntriesPerBlock = 512 // = 8192 / 16 /* sizeof(xattrId) */
	block := xid / idEntriesPerBlock
	offset := (xid % idEntriesPerBlock) * 16
	br := io.Reader(io.NewSectionReader(r.r, r.super.XattrIdTableStart, int64(16 /* sizeof(xattrTableHeader) */ +(block+1)*4 /* sizeof(uint32) */)))
	var tableHeader xattrTableHeader
	if err := binary.Read(br, binary.LittleEndian, &tableHeader); err != nil {
		return nil, &ioerr.Parse{Err: err}
	}
	// index starts here
	if _, err := io.CopyN(ioutil.Discard, br, int64(block*4 /* sizeof(uint32) */)); err != nil {
		return nil, &ioerr.Parse{Err: err}
	}
	var blockOffset uint32
	if err := binary.Read(br, binary.LittleEndian, &blockOffset); err != nil {
		return nil, &ioerr.Parse{Err: err}
	}
	br, err = r.blockReader(int64(blockOffset), int64(offset))
	if err != nil {
		return nil, err
	}
	var id xattrId
	if err := binary.Read(br, binary.LittleEndian, &id); err != nil {
		return nil, &ioerr.Parse{Err: err}
	}

	var xattrs []Xattr
	for i := 0; i < int(id.Count); i++ {
		blockoffset, offset := r.inode(Inode(id.Xattr))
		br, err = r.blockReader(int64(tableHeader.XattrTableStart)+blockoffset, offset)
		if err != nil {
			return nil, err
		}
		var typ, nameSize uint16
		if err := binary.Read(br, binary.LittleEndian, &typ); err != nil {
			return nil, &ioerr.Parse{Err: err}
		}
		if err := binary.Read(br, binary.LittleEndian, &nameSize); err != nil {
			return nil, &ioerr.Parse{Err: err}
		}
		name := make([]byte, nameSize)
		if _, err := io.ReadFull(br, name); err != nil {
			return nil, &ioerr.Parse{Err: err}
		}
		var valSize uint32
		if err := binary.Read(br, binary.LittleEndian, &valSize); err != nil {
			return nil, &ioerr.Parse{Err: err}
		}
		val := make([]byte, valSize)
		if _, err := io.ReadFull(br, val); err != nil {
			return nil, &ioerr.Parse{Err: err}
		}
		xattrs = append(xattrs, Xattr{
			Type:     typ,
			FullName: xattrPrefix[int(typ)] + string(name),
			Value:    val,
		})
	}

	return xattrs, nil
}
