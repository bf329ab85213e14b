package rio

import (
	"math"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/bytescope/bytescope/internal/ioerr"
)

// Descriptor is one open byte source placed at a physical address.
// Grounded on rio::desc::RIODesc (rio/src/desc.rs): handle, permission,
// base address, size, and an owned operations object.
type Descriptor struct {
	Handle uint64
	Name   string
	URI    string
	Perm   Permission
	Paddr  uint64
	Raddr  uint64
	Size   uint64
	Ops    Operations
}

func (d *Descriptor) end() uint64 { return d.Paddr + d.Size }

func (d *Descriptor) contains(paddr uint64) bool {
	return paddr >= d.Paddr && paddr < d.end()
}

// Table is the ordered collection of open descriptors: the physical
// address space's directory. Grounded on the descriptor bookkeeping in
// rio::io::RIO (rio/src/io.rs) — hndl_pool placement, handle allocation,
// and the pread/pwrite fan-out loop.
type Table struct {
	plugins  []Plugin
	fallback Plugin
	descs    []*Descriptor // sorted by Paddr, pairwise non-overlapping
	byHandle map[uint64]*Descriptor
}

// NewTable builds a table dispatching to plugins in order, falling back
// to fallback (typically the raw-file plugin) when none of them accept a
// URI. A plugin whose advertised Metadata carries a malformed version is
// dropped at registration rather than left to fail some later version
// comparison.
func NewTable(fallback Plugin, plugins ...Plugin) *Table {
	valid := make([]Plugin, 0, len(plugins))
	for _, p := range plugins {
		if p.Metadata().Valid() {
			valid = append(valid, p)
		}
	}
	return &Table{
		plugins:  valid,
		fallback: fallback,
		byHandle: make(map[uint64]*Descriptor),
	}
}

func (t *Table) dispatch(uri string) (Plugin, error) {
	for _, p := range t.plugins {
		if p.AcceptURI(uri) {
			return p, nil
		}
	}
	if t.fallback != nil && t.fallback.AcceptURI(uri) {
		return t.fallback, nil
	}
	return nil, ioerr.ErrPluginNotFound
}

func (t *Table) allocHandle() uint64 {
	for h := uint64(0); ; h++ {
		if _, used := t.byHandle[h]; !used {
			return h
		}
	}
}

// indexAtOrAfter returns the index of the first descriptor with
// Paddr >= paddr.
func (t *Table) indexAtOrAfter(paddr uint64) int {
	return sort.Search(len(t.descs), func(i int) bool { return t.descs[i].Paddr >= paddr })
}

// place finds the lowest paddr such that [paddr, paddr+size) fits in a
// gap between consecutive descriptors, or after the last one.
func (t *Table) place(size uint64) (uint64, error) {
	prevEnd := uint64(0)
	for _, d := range t.descs {
		if d.Paddr-prevEnd >= size {
			return prevEnd, nil
		}
		if d.end() > prevEnd {
			prevEnd = d.end()
		}
	}
	if size > 0 && prevEnd > math.MaxUint64-size+1 {
		return 0, ioerr.ErrTooManyFiles
	}
	return prevEnd, nil
}

func (t *Table) overlapsAny(paddr, size uint64) bool {
	hi := paddr + size
	for _, d := range t.descs {
		if paddr < d.end() && d.Paddr < hi {
			return true
		}
	}
	return false
}

func (t *Table) insertAt(paddr uint64, uri string, res OpenResult) *Descriptor {
	d := &Descriptor{
		Handle: t.allocHandle(),
		Name:   res.Name,
		URI:    uri,
		Perm:   res.Perm,
		Paddr:  paddr,
		Raddr:  res.Raddr,
		Size:   res.Size,
		Ops:    res.Ops,
	}
	idx := t.indexAtOrAfter(paddr)
	t.descs = append(t.descs, nil)
	copy(t.descs[idx+1:], t.descs[idx:])
	t.descs[idx] = d
	t.byHandle[d.Handle] = d
	return d
}

// Open dispatches uri to the first accepting plugin, then places the
// resulting descriptor at the lowest fitting gap.
func (t *Table) Open(uri string, perm Permission) (*Descriptor, error) {
	plugin, err := t.dispatch(uri)
	if err != nil {
		return nil, err
	}
	res, err := plugin.Open(uri, perm)
	if err != nil {
		return nil, err
	}
	paddr, err := t.place(res.Size)
	if err != nil {
		return nil, err
	}
	return t.insertAt(paddr, uri, res), nil
}

// OpenAt is Open, but the descriptor is forced to paddr = at; it fails
// with AddressesOverlapError if any live descriptor intersects that
// range.
func (t *Table) OpenAt(uri string, perm Permission, at uint64) (*Descriptor, error) {
	plugin, err := t.dispatch(uri)
	if err != nil {
		return nil, err
	}
	res, err := plugin.Open(uri, perm)
	if err != nil {
		return nil, err
	}
	if t.overlapsAny(at, res.Size) {
		return nil, ioerr.ErrAddressesOverlap
	}
	return t.insertAt(at, uri, res), nil
}

// closer is implemented by plugin Operations that own an OS resource
// (an open file, an mmap) which must be released when the descriptor is
// dropped. Plugins with nothing to release need not implement it.
type closer interface {
	Close() error
}

// Close removes the descriptor with handle h, releasing its operations
// object if it owns a closeable resource. It reports whether a
// descriptor was found.
func (t *Table) Close(h uint64) (*Descriptor, bool) {
	d, ok := t.byHandle[h]
	if !ok {
		return nil, false
	}
	delete(t.byHandle, h)
	idx := t.indexAtOrAfter(d.Paddr)
	t.descs = append(t.descs[:idx], t.descs[idx+1:]...)
	if c, ok := d.Ops.(closer); ok {
		_ = c.Close()
	}
	return d, true
}

// CloseAll drops every descriptor, releasing each one's resources. The
// underlying Close calls are independent (one per descriptor, touching
// disjoint OS resources) so they run concurrently via an errgroup rather
// than one at a time.
func (t *Table) CloseAll() {
	var g errgroup.Group
	for _, d := range t.descs {
		d := d
		if c, ok := d.Ops.(closer); ok {
			g.Go(func() error {
				_ = c.Close()
				return nil
			})
		}
	}
	_ = g.Wait()
	t.descs = nil
	t.byHandle = make(map[uint64]*Descriptor)
}

// Descriptors returns the live descriptors in ascending paddr order. The
// slice is owned by the caller; mutating it does not affect the table.
func (t *Table) Descriptors() []*Descriptor {
	out := make([]*Descriptor, len(t.descs))
	copy(out, t.descs)
	return out
}

// PhyToHndl returns the handle of the descriptor containing paddr, if
// any.
func (t *Table) PhyToHndl(paddr uint64) (uint64, bool) {
	d := t.descriptorAt(paddr)
	if d == nil {
		return 0, false
	}
	return d.Handle, true
}

// IsPhy reports whether [paddr, paddr+size) is fully covered by a single
// contiguous run of descriptors with no gaps.
func (t *Table) IsPhy(paddr, size uint64) bool {
	if size == 0 {
		return false
	}
	_, _, err := t.locate(paddr, size)
	return err == nil
}

func (t *Table) descriptorAt(paddr uint64) *Descriptor {
	idx := t.indexAtOrAfter(paddr + 1)
	if idx == 0 {
		return nil
	}
	d := t.descs[idx-1]
	if d.contains(paddr) {
		return d
	}
	return nil
}

// locate finds the first descriptor containing paddr and verifies the
// request of length size does not run past a gap, returning the starting
// index and the request size.
func (t *Table) locate(paddr, size uint64) (int, uint64, error) {
	idx := t.indexAtOrAfter(paddr + 1)
	if idx == 0 {
		return 0, 0, ioerr.ErrAddressNotFound
	}
	idx--
	if !t.descs[idx].contains(paddr) {
		return 0, 0, ioerr.ErrAddressNotFound
	}
	cur := paddr
	need := size
	i := idx
	for need > 0 {
		if i >= len(t.descs) || t.descs[i].Paddr != cur {
			return 0, 0, ioerr.UnexpectedEOF()
		}
		d := t.descs[i]
		avail := d.end() - cur
		if avail >= need {
			return idx, size, nil
		}
		need -= avail
		cur = d.end()
		i++
	}
	return idx, size, nil
}

// Pread reads len(buf) bytes starting at paddr, fanning out across
// descriptors in ascending order and requiring each to begin exactly
// where the previous one ended.
func (t *Table) Pread(paddr uint64, buf []byte) (int, error) {
	if len(buf) == 0 {
		return 0, nil
	}
	idx, _, err := t.locate(paddr, uint64(len(buf)))
	if err != nil {
		return 0, err
	}
	total := 0
	cur := paddr
	remaining := buf
	for i := idx; len(remaining) > 0; i++ {
		d := t.descs[i]
		segSize := d.end() - cur
		if segSize > uint64(len(remaining)) {
			segSize = uint64(len(remaining))
		}
		raddr := d.Raddr + (cur - d.Paddr)
		n, err := d.Ops.Read(raddr, remaining[:segSize])
		total += n
		if err != nil {
			return total, err
		}
		remaining = remaining[segSize:]
		cur += segSize
	}
	return total, nil
}

// Pwrite writes buf starting at paddr, with the same fan-out as Pread,
// additionally checking WRITE/COW permission per descriptor.
func (t *Table) Pwrite(paddr uint64, buf []byte) (int, error) {
	if len(buf) == 0 {
		return 0, nil
	}
	idx, _, err := t.locate(paddr, uint64(len(buf)))
	if err != nil {
		return 0, err
	}
	total := 0
	cur := paddr
	remaining := buf
	for i := idx; len(remaining) > 0; i++ {
		d := t.descs[i]
		if !d.Perm.Has(Write) && !d.Perm.Has(Cow) {
			return total, ioerr.PermissionDenied("source " + d.Name + " is not writable")
		}
		segSize := d.end() - cur
		if segSize > uint64(len(remaining)) {
			segSize = uint64(len(remaining))
		}
		raddr := d.Raddr + (cur - d.Paddr)
		n, err := d.Ops.Write(raddr, remaining[:segSize])
		total += n
		if err != nil {
			return total, err
		}
		remaining = remaining[segSize:]
		cur += segSize
	}
	return total, nil
}
