package rio

import (
	"github.com/bytescope/bytescope/internal/ioerr"
	"github.com/bytescope/bytescope/internal/ist"
	"github.com/bytescope/bytescope/internal/trace"
)

// Engine ties the descriptor table and map registry into the single
// surface the rest of the system drives: open/open_at/close/pread/pwrite
// on the physical side, map/unmap/vread/vwrite on the virtual side.
// Grounded on rio::io::RIO (rio/src/io.rs), which is exactly this
// composition in the original.
//
// Engine performs no locking: it is not safe for concurrent mutation. See
// Guarded for a mutex-wrapped deployment.
type Engine struct {
	table    *Table
	registry Registry
}

// NewEngine builds an engine dispatching Open/OpenAt to plugins in order,
// falling back to fallback when none claim a URI.
func NewEngine(fallback Plugin, plugins ...Plugin) *Engine {
	return &Engine{table: NewTable(fallback, plugins...)}
}

// Open places a newly opened source at the lowest fitting physical
// address and returns its handle.
func (e *Engine) Open(uri string, perm Permission) (uint64, error) {
	d, err := e.table.Open(uri, perm)
	if err != nil {
		return 0, err
	}
	return d.Handle, nil
}

// OpenAt places a newly opened source at exactly paddr = at.
func (e *Engine) OpenAt(uri string, perm Permission, at uint64) (uint64, error) {
	d, err := e.table.OpenAt(uri, perm, at)
	if err != nil {
		return 0, err
	}
	return d.Handle, nil
}

// Close removes the descriptor for handle h and every mapping whose
// physical range it alone backs.
func (e *Engine) Close(h uint64) error {
	d, ok := e.table.Close(h)
	if !ok {
		return ioerr.ErrHandleNotFound
	}
	e.registry.unmapDescriptor(d.Paddr, d.Size)
	return nil
}

// CloseAll drops every descriptor and every mapping.
func (e *Engine) CloseAll() {
	e.table.CloseAll()
	e.registry = Registry{}
}

// Pread reads len(buf) bytes from physical address paddr.
func (e *Engine) Pread(paddr uint64, buf []byte) (int, error) {
	ev := trace.Event("pread", 0)
	defer ev.Done()
	return e.table.Pread(paddr, buf)
}

// Pwrite writes buf to physical address paddr.
func (e *Engine) Pwrite(paddr uint64, buf []byte) (int, error) {
	ev := trace.Event("pwrite", 0)
	defer ev.Done()
	return e.table.Pwrite(paddr, buf)
}

// Map registers a new virtual mapping over [paddr, paddr+size).
func (e *Engine) Map(paddr, vaddr, size uint64) error {
	ev := trace.Event("map", 0)
	defer ev.Done()
	return e.registry.Map(paddr, vaddr, size)
}

// Unmap removes the virtual range [vaddr, vaddr+size), which must be
// fully covered with no holes.
func (e *Engine) Unmap(vaddr, size uint64) error {
	ev := trace.Event("unmap", 0)
	defer ev.Done()
	return e.registry.Unmap(vaddr, size)
}

// Vread reads len(buf) bytes from virtual address vaddr, decomposing the
// request across however many mappings back it.
func (e *Engine) Vread(vaddr uint64, buf []byte) (int, error) {
	ev := trace.Event("vread", 0)
	defer ev.Done()
	frags, ok := e.registry.SplitVaddrRange(vaddr, uint64(len(buf)))
	if !ok {
		return 0, ioerr.ErrAddressNotFound
	}
	total := 0
	for _, f := range frags {
		off := f.Vaddr - vaddr
		n, err := e.table.Pread(f.Paddr, buf[off:off+f.Size])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// Vwrite writes buf to virtual address vaddr, decomposing the request
// across however many mappings back it.
func (e *Engine) Vwrite(vaddr uint64, buf []byte) (int, error) {
	ev := trace.Event("vwrite", 0)
	defer ev.Done()
	frags, ok := e.registry.SplitVaddrRange(vaddr, uint64(len(buf)))
	if !ok {
		return 0, ioerr.ErrAddressNotFound
	}
	total := 0
	for _, f := range frags {
		off := f.Vaddr - vaddr
		n, err := e.table.Pwrite(f.Paddr, buf[off:off+f.Size])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// IsPhy reports whether [paddr, paddr+size) is backed with no gaps.
func (e *Engine) IsPhy(paddr, size uint64) bool { return e.table.IsPhy(paddr, size) }

// IsVir reports whether [vaddr, vaddr+size) is fully tiled by mappings.
func (e *Engine) IsVir(vaddr, size uint64) bool { return e.registry.IsVir(vaddr, size) }

// PhyToHndl returns the handle of the descriptor containing paddr.
func (e *Engine) PhyToHndl(paddr uint64) (uint64, bool) { return e.table.PhyToHndl(paddr) }

// VirToPhy translates a virtual address through the first mapping that
// covers it.
func (e *Engine) VirToPhy(vaddr uint64) (uint64, bool) { return e.registry.VirToPhy(vaddr) }

// RevQuery returns every vaddr currently translating to paddr, ascending.
func (e *Engine) RevQuery(paddr uint64) []uint64 { return e.registry.RevQuery(paddr) }

// Descriptors returns the live descriptors in ascending paddr order, for
// listing (the CLI's "files" verb, project save).
func (e *Engine) Descriptors() []*Descriptor { return e.table.Descriptors() }

// RegistryEntries exposes the map registry's forward and reverse trees
// for listing ("maps" verb) and persistence.
func (e *Engine) RegistryEntries() (forward, reverse []ist.Entry[Mapping]) {
	return e.registry.Entries()
}

// LoadRegistryEntries rehydrates the map registry from previously
// exported entries. CloseAll should be called first if reloading into an
// engine that already holds state.
func (e *Engine) LoadRegistryEntries(forward, reverse []ist.Entry[Mapping]) {
	e.registry.LoadEntries(forward, reverse)
}
