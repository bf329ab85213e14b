package plugins

import (
	"bufio"
	"bytes"
	"encoding/hex"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/google/renameio"

	"github.com/bytescope/bytescope/internal/ioerr"
	"github.com/bytescope/bytescope/internal/rio"
)

// Ihex is the Intel-HEX-equivalent plugin: same sparse byte-map
// representation and rewrite discipline as Srec, over `:LLAAAATT[DD…]CC`
// records instead of Motorola's `S<k>`. Record type 04 carries the upper
// 16 bits of a 32-bit address (extended linear address); 05 carries an
// optional start address; 01 ends parsing, matching srec's S7/S8/S9.
type Ihex struct{}

func (Ihex) Metadata() rio.Metadata {
	return rio.Metadata{Name: "ihex", Desc: "Intel HEX byte source", Version: "v1.0.0"}
}

func (Ihex) AcceptURI(uri string) bool { return strings.HasPrefix(uri, "ihex://") }

func (Ihex) Open(uri string, perm rio.Permission) (rio.OpenResult, error) {
	path := strings.TrimPrefix(uri, "ihex://")
	f, err := os.Open(path)
	if err != nil {
		if os.IsPermission(err) {
			return rio.OpenResult{}, ioerr.PermissionDenied(err.Error())
		}
		return rio.OpenResult{}, &ioerr.Parse{Err: err}
	}
	defer f.Close()

	s := &ihexSource{path: path, perm: perm, data: make(map[uint64]byte)}
	if err := s.parse(f); err != nil {
		return rio.OpenResult{}, err
	}
	base, size := s.extent()
	return rio.OpenResult{Name: path, Raddr: base, Size: size, Perm: perm, Ops: s}, nil
}

type ihexSource struct {
	path  string
	perm  rio.Permission
	data  map[uint64]byte
	start *uint64
}

func (s *ihexSource) extent() (base, size uint64) {
	if len(s.data) == 0 {
		return 0, 0
	}
	lo, hi := ^uint64(0), uint64(0)
	for k := range s.data {
		if k < lo {
			lo = k
		}
		if k > hi {
			hi = k
		}
	}
	return lo, hi - lo + 1
}

func (s *ihexSource) Read(raddr uint64, buf []byte) (int, error) {
	for i := range buf {
		buf[i] = s.data[raddr+uint64(i)]
	}
	return len(buf), nil
}

func (s *ihexSource) Write(raddr uint64, buf []byte) (int, error) {
	for i, b := range buf {
		s.data[raddr+uint64(i)] = b
	}
	if s.perm.Has(rio.Write) {
		if err := s.save(); err != nil {
			return 0, err
		}
	}
	return len(buf), nil
}

func ihexLineError(n int) error {
	return ioerr.Custom(fmt.Sprintf("Invalid IHEX record at line: %d", n))
}

func (s *ihexSource) parse(f *os.File) error {
	sc := bufio.NewScanner(f)
	sc.Split(scanRecordLines)
	lineNo := 0
	upper := uint64(0)
loop:
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if line[0] != ':' {
			return ihexLineError(lineNo)
		}
		body := line[1:]
		if len(body) < 10 {
			return ihexLineError(lineNo)
		}
		count, err := strconv.ParseUint(body[0:2], 16, 8)
		if err != nil {
			return ihexLineError(lineNo)
		}
		if len(body) != 2+4+2+int(count)*2+2 {
			return ihexLineError(lineNo)
		}
		addr16, err := strconv.ParseUint(body[2:6], 16, 16)
		if err != nil {
			return ihexLineError(lineNo)
		}
		recType, err := strconv.ParseUint(body[6:8], 16, 8)
		if err != nil {
			return ihexLineError(lineNo)
		}
		dataHex := body[8 : 8+int(count)*2]
		data, err := hex.DecodeString(dataHex)
		if err != nil {
			return ihexLineError(lineNo)
		}
		// checksum (trailing 2 hex chars) deliberately unvalidated, matching
		// srec's accept-corrupted-checksums behavior.
		switch recType {
		case 0x00:
			base := upper<<16 | addr16
			for i, b := range data {
				s.data[base+uint64(i)] = b
			}
		case 0x01:
			break loop
		case 0x04:
			if len(data) == 2 {
				upper = uint64(data[0])<<8 | uint64(data[1])
			}
		case 0x05:
			if len(data) == 4 {
				v := uint64(data[0])<<24 | uint64(data[1])<<16 | uint64(data[2])<<8 | uint64(data[3])
				s.start = &v
			}
		case 0x02, 0x03:
			// segment-address records, parsed but unused by this engine
		}
	}
	if err := sc.Err(); err != nil {
		return &ioerr.Parse{Err: err}
	}
	return nil
}

func ihexChecksum(bs ...byte) byte {
	sum := 0
	for _, b := range bs {
		sum += int(b)
	}
	return byte((0x100 - (sum & 0xFF)) & 0xFF)
}

func writeIhexRecord(w *bytes.Buffer, recType byte, addr16 uint16, data []byte) {
	count := byte(len(data))
	head := []byte{count, byte(addr16 >> 8), byte(addr16), recType}
	cs := ihexChecksum(append(append([]byte{}, head...), data...)...)
	fmt.Fprintf(w, ":%02x%04x%02x%s%02x\n", count, addr16, recType, hex.EncodeToString(data), cs)
}

// save rewrites the file from the in-memory sparse map: 16-byte data
// records in ascending order, an extended linear address record whenever
// the upper 16 bits of the address change, an optional start linear
// address record, then the end-of-file record.
func (s *ihexSource) save() error {
	var buf bytes.Buffer
	keys := make([]uint64, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	upper := uint64(0xFFFFFFFFFFFFFFFF) // sentinel: no extended-address record emitted yet
	for i := 0; i < len(keys); {
		runStart := i
		i++
		for i < len(keys) && keys[i] == keys[i-1]+1 && i-runStart < 16 &&
			keys[i]>>16 == run0Upper(keys[runStart]) {
			i++
		}
		run := keys[runStart:i]
		hi := run[0] >> 16
		if hi != upper {
			writeIhexRecord(&buf, 0x04, 0, []byte{byte(hi >> 8), byte(hi)})
			upper = hi
		}
		data := make([]byte, len(run))
		for j, k := range run {
			data[j] = s.data[k]
		}
		writeIhexRecord(&buf, 0x00, uint16(run[0]&0xFFFF), data)
	}

	if s.start != nil {
		v := *s.start
		writeIhexRecord(&buf, 0x05, 0, []byte{byte(v >> 24), byte(v >> 16), byte(v >> 8), byte(v)})
	}
	writeIhexRecord(&buf, 0x01, 0, nil)

	return renameio.WriteFile(s.path, buf.Bytes(), 0644)
}

func run0Upper(k uint64) uint64 { return k >> 16 }
