// Package ioerr defines the error kinds shared by every layer of the
// addressing engine: descriptor table, map registry, and byte-source
// plugins. It mirrors the rair-core IoError enum (rio/src/desc.rs,
// rio/src/io.rs) one arm at a time, rather than inventing a new taxonomy.
package ioerr

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
)

// Kind identifies a structural or plugin error without carrying a message,
// so callers can compare with errors.Is against the package-level sentinels
// below.
type Kind int

const (
	// AddressNotFound is returned when a physical or virtual address has no
	// backing descriptor or mapping.
	AddressNotFound Kind = iota
	// AddressesOverlapError is returned when a placement or mapping request
	// would overlap an existing descriptor or mapping.
	AddressesOverlapError
	// IoPluginNotFoundError is returned when no registered plugin (and not
	// the fallback raw-file plugin) accepts a URI.
	IoPluginNotFoundError
	// TooManyFilesError is returned by Open when no gap in the physical
	// address space fits a new descriptor. Handle allocation never reports
	// exhaustion, so OpenAt does not return this code.
	TooManyFilesError
	// HndlNotFoundError is returned when an operation names a handle that is
	// not currently open.
	HndlNotFoundError
)

var kindText = map[Kind]string{
	AddressNotFound:        "address not found",
	AddressesOverlapError:  "addresses overlap",
	IoPluginNotFoundError:  "no IO plugin accepts this URI",
	TooManyFilesError:      "too many open files",
	HndlNotFoundError:      "handle not found",
}

func (k Kind) Error() string { return kindText[k] }

// sentinel errors usable with errors.Is; Kind itself implements error so
// these are just the Kind values re-exported as the idiomatic entry point.
var (
	ErrAddressNotFound       error = AddressNotFound
	ErrAddressesOverlap      error = AddressesOverlapError
	ErrPluginNotFound        error = IoPluginNotFoundError
	ErrTooManyFiles          error = TooManyFilesError
	ErrHandleNotFound        error = HndlNotFoundError
)

// Custom wraps an ad hoc message, matching IoError::Custom(String).
type Custom string

func (c Custom) Error() string { return string(c) }

// Parse wraps an underlying *fs.PathError/io error, matching
// IoError::Parse(io::Error). The common cases (UnexpectedEof,
// PermissionDenied) are constructed with the helpers below so callers can
// still match on errors.Is(err, io.ErrUnexpectedEOF) or
// errors.Is(err, fs.ErrPermission).
type Parse struct {
	Err error
}

func (p *Parse) Error() string  { return fmt.Sprintf("parse: %v", p.Err) }
func (p *Parse) Unwrap() error  { return p.Err }

// UnexpectedEOF builds the Parse(UnexpectedEof) arm used whenever a read or
// write request runs past the last contiguous descriptor or mapping.
func UnexpectedEOF() error {
	return &Parse{Err: io.ErrUnexpectedEOF}
}

// PermissionDenied builds the Parse(PermissionDenied) arm used when a
// plugin lacks WRITE/COW for a write request.
func PermissionDenied(msg string) error {
	return &Parse{Err: fmt.Errorf("%s: %w", msg, fs.ErrPermission)}
}

// IsUnexpectedEOF reports whether err is (or wraps) the UnexpectedEof arm.
func IsUnexpectedEOF(err error) bool {
	return errors.Is(err, io.ErrUnexpectedEOF)
}
