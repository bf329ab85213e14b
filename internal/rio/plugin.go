// Package rio is the addressing-and-I/O engine: a descriptor table placing
// pluggable byte sources in a synthetic 64-bit physical address space, a
// map registry projecting a virtual address space onto it, and the
// pread/pwrite/vread/vwrite façade that fans requests out across both.
//
// The layering mirrors rio/src/io.rs, rio/src/desc.rs, rio/src/plugin.rs
// and io/src/mapsquery.rs in the retrieval pack's original_source: this
// package is the Go reassembly of those four files into one engine.
package rio

import "golang.org/x/mod/semver"

// Permission is a bitset of the access modes a byte source grants.
type Permission uint8

const (
	Read Permission = 1 << iota
	Write
	Cow
)

// Has reports whether p grants every bit set in flag.
func (p Permission) Has(flag Permission) bool { return p&flag == flag }

// Metadata is the static description a plugin reports about itself,
// independent of any particular opened source.
type Metadata struct {
	Name    string
	Desc    string
	Author  string
	License string
	Version string
}

// Valid reports whether Version is empty or parses as semver. Plugins with malformed
// versions are rejected at registration time rather than failing later in
// some unrelated comparison.
func (m Metadata) Valid() bool {
	return m.Version == "" || semver.IsValid(m.Version)
}

// Operations is what an opened descriptor exposes to the engine: byte
// access relative to the plugin's own natural address space.
type Operations interface {
	// Read fills buf starting at raddr, returning the number of bytes
	// read. A short read at end of source is reported as an error.
	Read(raddr uint64, buf []byte) (int, error)
	// Write stores buf starting at raddr, returning the number of bytes
	// written. Implementations that lack write support return
	// ioerr.PermissionDenied.
	Write(raddr uint64, buf []byte) (int, error)
}

// OpenResult is what a plugin reports back from Open: enough for the
// descriptor table to place the source in the physical address space.
type OpenResult struct {
	Name  string
	Raddr uint64
	Size  uint64
	Perm  Permission
	Ops   Operations
}

// Plugin is a byte-source provider behind a URI scheme.
type Plugin interface {
	Metadata() Metadata
	// AcceptURI reports whether this plugin claims the URI.
	AcceptURI(uri string) bool
	// Open parses uri and returns a ready-to-place source. perm is the
	// permission the caller requested; a plugin backed by a read-only
	// file rejects a requested Write that it cannot honor.
	Open(uri string, perm Permission) (OpenResult, error)
}
