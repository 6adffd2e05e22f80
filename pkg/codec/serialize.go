package codec

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/cespare/xxhash/v2"
	"github.com/dennwc/varint"

	"github.com/grafana/linemap/pkg/linemap"
)

const (
	magic         = "LMAP"
	formatVersion = 1

	headerSize   = len(magic) + 2
	checksumSize = 8
)

// serialize lays the map out as
//
//	magic | u16 version
//	uvarint n | n * (token, address, name)             ordered by token
//	uvarint n | n * (address delta, line, file, object) ordered by address
//	uvarint n | n * name                                 in index order
//	u64 xxhash of everything above
//
// Integers are little endian, strings are uvarint length prefixed.
func serialize(m *linemap.LineMap) []byte {
	buf := make([]byte, 0, estimateSize(m))
	buf = append(buf, magic...)
	buf = binary.LittleEndian.AppendUint16(buf, formatVersion)

	symbols := m.SortedSymbols()
	buf = binary.AppendUvarint(buf, uint64(len(symbols)))
	for _, s := range symbols {
		buf = binary.AppendUvarint(buf, s.Token)
		buf = binary.AppendUvarint(buf, s.Address)
		buf = appendString(buf, s.Name)
	}

	buf = binary.AppendUvarint(buf, uint64(len(m.AddressToLine)))
	var prev uint64
	for _, e := range m.AddressToLine {
		buf = binary.AppendUvarint(buf, e.Address-prev)
		buf = binary.AppendUvarint(buf, uint64(e.Line))
		buf = binary.AppendUvarint(buf, uint64(e.FileIndex))
		buf = appendString(buf, e.ObjectName)
		prev = e.Address
	}

	names := m.Names.Names()
	buf = binary.AppendUvarint(buf, uint64(len(names)))
	for _, n := range names {
		buf = appendString(buf, n)
	}

	return binary.LittleEndian.AppendUint64(buf, xxhash.Sum64(buf))
}

func appendString(buf []byte, s string) []byte {
	buf = binary.AppendUvarint(buf, uint64(len(s)))
	return append(buf, s...)
}

func estimateSize(m *linemap.LineMap) int {
	return headerSize + checksumSize + 16*len(m.Symbols) + 8*len(m.AddressToLine) + 32*m.Names.Len()
}

func deserialize(b []byte) (*linemap.LineMap, error) {
	if len(b) < headerSize+checksumSize {
		return nil, errTruncated
	}
	if string(b[:len(magic)]) != magic {
		return nil, errBadMagic
	}
	if v := binary.LittleEndian.Uint16(b[len(magic):headerSize]); v != formatVersion {
		return nil, fmt.Errorf("unsupported format version %d", v)
	}
	body, sum := b[:len(b)-checksumSize], binary.LittleEndian.Uint64(b[len(b)-checksumSize:])
	if xxhash.Sum64(body) != sum {
		return nil, errChecksum
	}

	d := decoder{buf: body[headerSize:]}
	m := linemap.New()

	n := d.count()
	var prevToken uint64
	for i := 0; i < n && d.err == nil; i++ {
		s := linemap.Symbol{Token: d.uvarint(), Address: d.uvarint(), Name: d.string()}
		if d.err == nil && i > 0 && s.Token <= prevToken {
			d.fail(fmt.Errorf("symbol token %#x out of order", s.Token))
		}
		prevToken = s.Token
		m.Symbols[s.Token] = s
	}

	n = d.count()
	if d.err == nil && n > 0 {
		m.AddressToLine = make([]linemap.LineEntry, 0, n)
	}
	var addr uint64
	for i := 0; i < n && d.err == nil; i++ {
		delta := d.uvarint()
		if addr+delta < addr {
			d.fail(fmt.Errorf("line entry %d: address overflow", i))
		}
		addr += delta
		m.AddressToLine = append(m.AddressToLine, linemap.LineEntry{
			Address:    addr,
			Line:       d.uint32(),
			FileIndex:  d.uint32(),
			ObjectName: d.string(),
		})
	}

	n = d.count()
	var names []string
	for i := 0; i < n && d.err == nil; i++ {
		names = append(names, d.string())
	}
	if d.err != nil {
		return nil, d.err
	}
	if len(d.buf) != 0 {
		return nil, errTrailingData
	}
	m.Names = linemap.NewNameTable(names...)
	if m.Names.Len() != len(names) {
		return nil, fmt.Errorf("duplicate entries in name table")
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// decoder consumes a byte slice and keeps the first error. Every read after
// a failure returns a zero value.
type decoder struct {
	buf []byte
	err error
}

func (d *decoder) fail(err error) {
	if d.err == nil {
		d.err = err
	}
}

func (d *decoder) uvarint() uint64 {
	if d.err != nil {
		return 0
	}
	v, n := varint.Uvarint(d.buf)
	if n <= 0 {
		d.fail(errTruncated)
		return 0
	}
	d.buf = d.buf[n:]
	return v
}

func (d *decoder) uint32() uint32 {
	v := d.uvarint()
	if v > math.MaxUint32 {
		d.fail(fmt.Errorf("value %d overflows uint32", v))
		return 0
	}
	return uint32(v)
}

// count reads an element count. Each element takes at least one byte, which
// bounds the count by the remaining input.
func (d *decoder) count() int {
	v := d.uvarint()
	if v > uint64(len(d.buf)) {
		d.fail(fmt.Errorf("element count %d exceeds payload", v))
		return 0
	}
	return int(v)
}

func (d *decoder) string() string {
	l := d.uvarint()
	if d.err != nil {
		return ""
	}
	if l > uint64(len(d.buf)) {
		d.fail(errTruncated)
		return ""
	}
	s := string(d.buf[:l])
	d.buf = d.buf[l:]
	return s
}
