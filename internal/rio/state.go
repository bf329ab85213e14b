package rio

import "github.com/bytescope/bytescope/internal/ist"

// descState is the serializable projection of a Descriptor: everything
// needed to reopen it at the same physical address, but not the live
// Operations object (an open file handle is not something gob can carry
// across a save/load boundary — it is reconstructed by reopening URI).
type descState struct {
	Paddr uint64
	URI   string
	Perm  Permission
}

// State is the whole engine's serializable projection, matching the
// "general-purpose binary encoder" contract: the descriptor table as an
// ordered list of (paddr, uri, perm), and the map registry's two trees as
// (key, augmentation, values) triples.
type State struct {
	Descriptors    []descState
	ForwardEntries []ist.Entry[Mapping]
	ReverseEntries []ist.Entry[Mapping]
}

// MarshalState exports the engine's state for an external encoder (see
// internal/project) to serialize.
func (e *Engine) MarshalState() State {
	descs := e.table.Descriptors()
	out := State{Descriptors: make([]descState, len(descs))}
	for i, d := range descs {
		out.Descriptors[i] = descState{Paddr: d.Paddr, URI: d.URI, Perm: d.Perm}
	}
	out.ForwardEntries, out.ReverseEntries = e.registry.Entries()
	return out
}

// UnmarshalState rebuilds the engine from a previously exported State.
// Descriptors are reopened in paddr order through the engine's own
// plugin table, then the map registry is rehydrated directly (its
// mappings reference paddrs the freshly reopened descriptors now back).
func (e *Engine) UnmarshalState(s State) error {
	e.CloseAll()
	for _, d := range s.Descriptors {
		if _, err := e.table.OpenAt(d.URI, d.Perm, d.Paddr); err != nil {
			return err
		}
	}
	e.registry.LoadEntries(s.ForwardEntries, s.ReverseEntries)
	return nil
}
