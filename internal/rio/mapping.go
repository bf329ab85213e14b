package rio

import (
	"sort"

	"github.com/bytescope/bytescope/internal/ioerr"
	"github.com/bytescope/bytescope/internal/ist"
)

// Mapping is a (paddr, vaddr, size) triple, the atom of virtual-to-physical
// translation. It is a plain comparable value, not a pointer: per the
// "duplicated value with equality by (vaddr, size)" choice in the design
// notes, the same Mapping value is inserted into both the forward and
// reverse trees, and Go's structural == is the equality the design notes
// ask for.
type Mapping struct {
	Paddr uint64
	Vaddr uint64
	Size  uint64
}

func (m Mapping) vaddrHi() uint64 { return m.Vaddr + m.Size - 1 }
func (m Mapping) paddrHi() uint64 { return m.Paddr + m.Size - 1 }

// Registry is the map registry: a forward tree (vaddr -> Mapping) and a
// reverse tree (paddr -> Mapping), kept in sync so each Mapping appears in
// exactly one interval of each. Grounded on io::mapsquery::RIOMapQuery
// (io/src/mapsquery.rs).
type Registry struct {
	forward ist.Tree[Mapping]
	reverse ist.Tree[Mapping]
}

// Map inserts a new mapping, rejecting it if the virtual range overlaps
// any existing mapping.
func (r *Registry) Map(paddr, vaddr, size uint64) error {
	if size == 0 {
		return ioerr.Custom("map: zero-size mapping")
	}
	if len(r.forward.Overlap(vaddr, vaddr+size-1)) > 0 {
		return ioerr.ErrAddressesOverlap
	}
	m := Mapping{Paddr: paddr, Vaddr: vaddr, Size: size}
	r.forward.Insert(m.Vaddr, m.vaddrHi(), m)
	r.reverse.Insert(m.Paddr, m.paddrHi(), m)
	return nil
}

// sortedForwardOverlap returns the mappings overlapping [lo,hi] in
// ascending vaddr order.
func (r *Registry) sortedForwardOverlap(lo, hi uint64) []Mapping {
	ms := r.forward.Overlap(lo, hi)
	sort.Slice(ms, func(i, j int) bool { return ms[i].Vaddr < ms[j].Vaddr })
	return ms
}

// splitVaddrRange tiles [vaddr, vaddr+size) with the fragments of
// overlapping mappings, clipped to the query. When sparse is false, gaps
// make it fail (ok = false); when sparse is true, gaps are skipped.
func (r *Registry) splitVaddrRange(vaddr, size uint64, sparse bool) ([]Mapping, bool) {
	hi := vaddr + size - 1
	cursor := vaddr
	var frags []Mapping
	for _, m := range r.sortedForwardOverlap(vaddr, hi) {
		fLo, fHi := m.Vaddr, m.vaddrHi()
		if fLo < vaddr {
			fLo = vaddr
		}
		if fHi > hi {
			fHi = hi
		}
		if fLo > cursor {
			if !sparse {
				return nil, false
			}
		}
		off := fLo - m.Vaddr
		frags = append(frags, Mapping{
			Paddr: m.Paddr + off,
			Vaddr: fLo,
			Size:  fHi - fLo + 1,
		})
		cursor = fHi + 1
	}
	if !sparse && cursor <= hi {
		return nil, false
	}
	return frags, true
}

// SplitVaddrRange tiles [vaddr, vaddr+size) with fragments of the
// mappings it intersects, failing (ok=false) unless the tiling is
// gap-free.
func (r *Registry) SplitVaddrRange(vaddr, size uint64) ([]Mapping, bool) {
	return r.splitVaddrRange(vaddr, size, false)
}

// SplitVaddrSparseRange is SplitVaddrRange but tolerates gaps, simply
// omitting them from the result.
func (r *Registry) SplitVaddrSparseRange(vaddr, size uint64) []Mapping {
	frags, _ := r.splitVaddrRange(vaddr, size, true)
	return frags
}

// computeRemnants returns the 0, 1, or 2 smaller mappings left over when
// [fragLo,fragHi] (a sub-range of orig's vaddr extent) is carved out of
// orig. The same arithmetic produces valid remnants whether applied to
// orig's forward (vaddr-keyed) or reverse (paddr-keyed) entry, since both
// advance by the same offset from orig's base.
func computeRemnants(orig Mapping, fragLo, fragHi uint64) []Mapping {
	var out []Mapping
	origHi := orig.vaddrHi()
	if fragLo > orig.Vaddr {
		out = append(out, Mapping{Paddr: orig.Paddr, Vaddr: orig.Vaddr, Size: fragLo - orig.Vaddr})
	}
	if fragHi < origHi {
		off := fragHi + 1 - orig.Vaddr
		out = append(out, Mapping{Paddr: orig.Paddr + off, Vaddr: orig.Vaddr + off, Size: origHi - fragHi})
	}
	return out
}

// Unmap removes [vaddr, vaddr+size) from the virtual address space. The
// region must be fully covered by forward entries with no holes.
func (r *Registry) Unmap(vaddr, size uint64) error {
	if size == 0 {
		return ioerr.Custom("unmap: zero-size range")
	}
	hi := vaddr + size - 1
	if _, ok := r.SplitVaddrRange(vaddr, size); !ok {
		return ioerr.ErrAddressNotFound
	}
	for _, orig := range r.sortedForwardOverlap(vaddr, hi) {
		fragLo, fragHi := orig.Vaddr, orig.vaddrHi()
		if fragLo < vaddr {
			fragLo = vaddr
		}
		if fragHi > hi {
			fragHi = hi
		}
		r.forward.Delete(orig.Vaddr, orig.vaddrHi())

		pLo := orig.Paddr + (fragLo - orig.Vaddr)
		pHi := orig.Paddr + (fragHi - orig.Vaddr)
		remnants := computeRemnants(orig, fragLo, fragHi)

		for _, m := range r.reverse.Overlap(pLo, pHi) {
			if m.Paddr > pLo || m.paddrHi() < pHi {
				continue // not enveloping the fragment's paddr range
			}
			r.reverse.DeleteValue(m.Paddr, m.paddrHi(), func(v Mapping) bool { return v == m })
			if m == orig {
				for _, rem := range remnants {
					r.reverse.Insert(rem.Paddr, rem.paddrHi(), rem)
				}
			} else {
				r.reverse.Insert(m.Paddr, m.paddrHi(), m)
			}
		}
		for _, rem := range remnants {
			r.forward.Insert(rem.Vaddr, rem.vaddrHi(), rem)
		}
	}
	return nil
}

// RevQuery returns every vaddr currently translating to paddr, ascending.
func (r *Registry) RevQuery(paddr uint64) []uint64 {
	var out []uint64
	for _, m := range r.reverse.At(paddr) {
		out = append(out, m.Vaddr+(paddr-m.Paddr))
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// VirToPhy translates v through the first mapping whose range contains
// it.
func (r *Registry) VirToPhy(v uint64) (uint64, bool) {
	hits := r.forward.At(v)
	if len(hits) == 0 {
		return 0, false
	}
	m := hits[0]
	return m.Paddr + (v - m.Vaddr), true
}

// IsVir reports whether [vaddr, vaddr+size) is fully tiled by mappings.
func (r *Registry) IsVir(vaddr, size uint64) bool {
	if size == 0 {
		return false
	}
	_, ok := r.SplitVaddrRange(vaddr, size)
	return ok
}

// unmapDescriptor removes every mapping whose physical range is enveloped
// by [paddr, paddr+size), used when a descriptor is closed.
func (r *Registry) unmapDescriptor(paddr, size uint64) {
	if size == 0 {
		return
	}
	for _, m := range r.reverse.DeleteEnvelop(paddr, paddr+size-1) {
		r.forward.Delete(m.Vaddr, m.vaddrHi())
	}
}

// Entries exposes the registry's two trees for serialization, matching
// the "(size, then size triples of key/value/augmentation) per tree"
// contract.
func (r *Registry) Entries() (forward, reverse []ist.Entry[Mapping]) {
	return r.forward.Entries(), r.reverse.Entries()
}

// LoadEntries rehydrates the registry from previously exported entries,
// bypassing Map's overlap checks since the data was already validated
// when first mapped.
func (r *Registry) LoadEntries(forward, reverse []ist.Entry[Mapping]) {
	for _, e := range forward {
		for _, v := range e.Values {
			r.forward.Insert(e.Key.Lo, e.Key.Hi, v)
		}
	}
	for _, e := range reverse {
		for _, v := range e.Values {
			r.reverse.Insert(e.Key.Lo, e.Key.Hi, v)
		}
	}
}
