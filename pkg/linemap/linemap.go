// Package linemap implements a compact, portable line map: the function
// symbol table and the address ordered line index of a single module, used
// to turn a function token and instruction offset back into a source file
// and line once the debug symbol database is gone.
//
// A LineMap is mutated only while it is being built. Once built (or
// decoded) it is treated as immutable and may be shared between goroutines
// without locking.
package linemap

import (
	"fmt"
	"sort"
)

// ModuleID identifies a single compiled module (executable or library).
type ModuleID string

func (id ModuleID) String() string { return string(id) }

// Symbol is a function-level debug symbol.
type Symbol struct {
	Token   uint64
	Name    string
	Address uint64
}

// LineEntry records the address at which a source line begins.
type LineEntry struct {
	Address    uint64
	Line       uint32
	FileIndex  uint32
	ObjectName string
}

// LineMap is the unit of build, encoding and caching.
type LineMap struct {
	Symbols       map[uint64]Symbol
	AddressToLine []LineEntry
	Names         NameTable
}

func New() *LineMap {
	return &LineMap{Symbols: make(map[uint64]Symbol)}
}

// File returns the file name a line entry points to.
func (m *LineMap) File(e LineEntry) string {
	return m.Names.Get(e.FileIndex)
}

// SortedSymbols returns the symbols ordered by token.
func (m *LineMap) SortedSymbols() []Symbol {
	res := make([]Symbol, 0, len(m.Symbols))
	for _, s := range m.Symbols {
		res = append(res, s)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Token < res[j].Token })
	return res
}

// Validate checks the structural invariants of a finalized map.
func (m *LineMap) Validate() error {
	for token, s := range m.Symbols {
		if s.Token != token {
			return fmt.Errorf("symbol %q keyed by token %#x has token %#x", s.Name, token, s.Token)
		}
	}
	names := uint32(m.Names.Len())
	for i, e := range m.AddressToLine {
		if i > 0 && e.Address <= m.AddressToLine[i-1].Address {
			return fmt.Errorf("line entry %d: address %#x not above previous %#x", i, e.Address, m.AddressToLine[i-1].Address)
		}
		if e.FileIndex >= names {
			return fmt.Errorf("line entry %d: file index %d out of range (%d names)", i, e.FileIndex, names)
		}
	}
	return nil
}

// finalize orders the line index by address and drops exact address
// duplicates, keeping the first record seen for an address.
func (m *LineMap) finalize() {
	sort.SliceStable(m.AddressToLine, func(i, j int) bool {
		return m.AddressToLine[i].Address < m.AddressToLine[j].Address
	})
	lines := m.AddressToLine
	if len(lines) < 2 {
		return
	}
	n := 1
	for i := 1; i < len(lines); i++ {
		if lines[i].Address == lines[n-1].Address {
			continue
		}
		lines[n] = lines[i]
		n++
	}
	clear(lines[n:])
	m.AddressToLine = lines[:n]
}
