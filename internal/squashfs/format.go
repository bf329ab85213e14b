package squashfs

import "encoding/binary"

// Inode is a block number + offset within that block, packed into a
// single reference the way the directory table stores it.
type Inode int64

const (
	invalidFragment = 0xFFFFFFFF
	invalidXattr    = 0xFFFFFFFF
)

const (
	magic             = 0x73717368
	dataBlockSize     = 131072
	metadataBlockSize = 8192
	majorVersion      = 4
	minorVersion      = 0
)

// superblock mirrors the on-disk SquashFS superblock. Field docs partly
// follow https://dr-emann.github.io/squashfs/squashfs.html#_the_superblock.
type superblock struct {
	Magic               uint32
	Inodes              uint32
	MkfsTime            int32
	BlockSize           uint32
	Fragments           uint32
	Compression         uint16
	BlockLog            uint16
	Flags               uint16
	NoIds               uint16
	Major               uint16
	Minor               uint16
	RootInode           Inode
	BytesUsed           int64
	IdTableStart        int64
	XattrIdTableStart   int64
	InodeTableStart     int64
	DirectoryTableStart int64
	FragmentTableStart  int64
	LookupTableStart    int64
}

const (
	dirType = 1 + iota
	fileType
	symlinkType
	blkdevType
	chrdevType
	fifoType
	socketType
	// larger types cover extended variants: sparse files, xattrs, etc.
	ldirType
	lregType
	lsymlinkType
	lblkdevType
	lchrdevType
	lfifoType
	lsocketType
)

// inodeHeader is the common prefix shared by every inode variant.
// https://dr-emann.github.io/squashfs/squashfs.html#_common_inode_header
type inodeHeader struct {
	InodeType   uint16
	Mode        uint16
	Uid         uint16
	Gid         uint16
	Mtime       int32
	InodeNumber uint32
}

// regInodeHeader is fileType: a plain file whose contents fit without
// extended fields.
type regInodeHeader struct {
	inodeHeader
	StartBlock uint32
	Fragment   uint32
	Offset     uint32
	FileSize   uint32
	// followed by a uint32 array of compressed block sizes
}

// lregInodeHeader is lregType: a file carrying the extended fields
// (sparse accounting, link count, xattr reference) regular files skip.
type lregInodeHeader struct {
	inodeHeader
	StartBlock uint64
	FileSize   uint64
	Sparse     uint64
	Nlink      uint32
	Fragment   uint32
	Offset     uint32
	Xattr      uint32
	// followed by a uint32 array of compressed block sizes
}

// symlinkInodeHeader is symlinkType.
type symlinkInodeHeader struct {
	inodeHeader
	Nlink       uint32
	SymlinkSize uint32
	// followed by SymlinkSize bytes, not null-terminated
}

// devInodeHeader covers chrdevType and blkdevType.
type devInodeHeader struct {
	inodeHeader
	Nlink uint32
	Rdev  uint32
}

// ipcInodeHeader covers fifoType and socketType.
type ipcInodeHeader struct {
	inodeHeader
	Nlink uint32
}

// dirInodeHeader is dirType.
type dirInodeHeader struct {
	inodeHeader
	StartBlock  uint32
	Nlink       uint32
	FileSize    uint16
	Offset      uint16
	ParentInode uint32
}

// ldirInodeHeader is ldirType, the extended directory variant carrying
// a directory index.
type ldirInodeHeader struct {
	inodeHeader
	Nlink       uint32
	FileSize    uint32
	StartBlock  uint32
	ParentInode uint32
	Icount      uint16
	Offset      uint16
	Xattr       uint32
}

// dirHeader precedes a run of dirEntry records in the directory table.
// https://dr-emann.github.io/squashfs/squashfs.html#_directory_table
type dirHeader struct {
	Count       uint32
	StartBlock  uint32
	InodeOffset uint32
}

func (d *dirHeader) Unmarshal(b []byte) {
	_ = b[11]
	e := binary.LittleEndian
	d.Count = e.Uint32(b)
	d.StartBlock = e.Uint32(b[4:])
	d.InodeOffset = e.Uint32(b[8:])
}

// dirEntry is one entry in a directory listing.
type dirEntry struct {
	Offset      uint16
	InodeNumber int16
	EntryType   uint16
	Size        uint16
	// followed by Size+1 bytes holding the entry name
}

func (d *dirEntry) Unmarshal(b []byte) {
	_ = b[7]
	e := binary.LittleEndian
	d.Offset = e.Uint16(b)
	d.InodeNumber = int16(e.Uint16(b[2:]))
	d.EntryType = e.Uint16(b[4:])
	d.Size = e.Uint16(b[6:])
}

const (
	XattrTypeUser = iota
	XattrTypeTrusted
	XattrTypeSecurity
)

var xattrPrefix = map[int]string{
	XattrTypeUser:     "user.",
	XattrTypeTrusted:  "trusted.",
	XattrTypeSecurity: "security.",
}

// Xattr is one decoded extended attribute.
type Xattr struct {
	Type     uint16
	FullName string
	Value    []byte
}

// xattrId indexes into the xattr value table: Xattr is the byte offset
// of the first key/value pair for an inode, Count how many follow.
type xattrId struct {
	Xattr uint64
	Count uint32
	Size  uint32
}

// xattrTableHeader is the fixed record at the start of the xattr id
// table, pointing at the xattr key/value blocks that precede it.
type xattrTableHeader struct {
	XattrTableStart uint64
	XattrIds        uint32
	Unused          uint32
}
