// Package project persists and restores an engine's state: the
// descriptor table and map registry, gob-encoded and zlib-compressed,
// matching the "general-purpose binary encoder, wrapped in zlib"
// external collaborator the addressing core delegates serialization to.
package project

import (
	"bytes"
	"compress/zlib"
	"encoding/gob"
	"io"
	"os"

	"github.com/google/renameio"

	"github.com/bytescope/bytescope/internal/ioerr"
	"github.com/bytescope/bytescope/internal/rio"
)

// Save writes eng's current state to path, atomically.
func Save(eng *rio.Engine, path string) error {
	var raw bytes.Buffer
	if err := gob.NewEncoder(&raw).Encode(eng.MarshalState()); err != nil {
		return ioerr.Custom("project: encode: " + err.Error())
	}

	var compressed bytes.Buffer
	zw := zlib.NewWriter(&compressed)
	if _, err := zw.Write(raw.Bytes()); err != nil {
		return ioerr.Custom("project: compress: " + err.Error())
	}
	if err := zw.Close(); err != nil {
		return ioerr.Custom("project: compress: " + err.Error())
	}

	return renameio.WriteFile(path, compressed.Bytes(), 0644)
}

// Load replaces eng's state with whatever was previously Saved at path.
// Every descriptor is reopened through eng's own plugin table, so the
// plugins registered on Load need not match those used at Save time in
// identity, only in URI-scheme coverage.
func Load(eng *rio.Engine, path string) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsPermission(err) {
			return ioerr.PermissionDenied(err.Error())
		}
		return &ioerr.Parse{Err: err}
	}
	defer f.Close()

	zr, err := zlib.NewReader(f)
	if err != nil {
		return ioerr.Custom("project: decompress: " + err.Error())
	}
	defer zr.Close()

	var raw bytes.Buffer
	if _, err := io.Copy(&raw, zr); err != nil {
		return ioerr.Custom("project: decompress: " + err.Error())
	}

	var state rio.State
	if err := gob.NewDecoder(&raw).Decode(&state); err != nil {
		return ioerr.Custom("project: decode: " + err.Error())
	}

	return eng.UnmarshalState(state)
}
