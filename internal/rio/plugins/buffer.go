// Package plugins collects the byte-source providers the engine
// dispatches to: raw files, in-memory scratch, wrapped encodings, archive
// members, and the sparse record-based codecs. Each is grounded on the
// matching plugin in rio/src/plugin.rs and io/src/plugins/*.rs from the
// retrieval pack's original_source.
package plugins

import "github.com/bytescope/bytescope/internal/ioerr"

// bufferOps backs a plugin with a flat in-memory byte slice: the shape
// shared by malloc://, b64://, gz://, and cpio:// once their underlying
// bytes are decoded into memory.
type bufferOps struct {
	buf []byte
}

func (b *bufferOps) Read(raddr uint64, out []byte) (int, error) {
	if raddr > uint64(len(b.buf)) || raddr+uint64(len(out)) > uint64(len(b.buf)) {
		return 0, ioerr.UnexpectedEOF()
	}
	return copy(out, b.buf[raddr:]), nil
}

func (b *bufferOps) Write(raddr uint64, in []byte) (int, error) {
	if raddr > uint64(len(b.buf)) || raddr+uint64(len(in)) > uint64(len(b.buf)) {
		return 0, ioerr.UnexpectedEOF()
	}
	return copy(b.buf[raddr:], in), nil
}
