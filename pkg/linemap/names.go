package linemap

import (
	"slices"
	"strings"
)

const ellipsis = "..."

// NameTable is an ordered list of distinct file names. Line entries refer to
// names by index.
type NameTable struct {
	names []string
	index map[string]uint32
}

// NewNameTable creates a table holding names in the given order. Duplicates
// keep their first index.
func NewNameTable(names ...string) NameTable {
	var t NameTable
	for _, n := range names {
		t.Add(n)
	}
	return t
}

// Add returns the index of name, appending it if it is not present yet.
func (t *NameTable) Add(name string) uint32 {
	if i, ok := t.index[name]; ok {
		return i
	}
	if t.index == nil {
		t.index = make(map[string]uint32)
	}
	i := uint32(len(t.names))
	t.names = append(t.names, name)
	t.index[name] = i
	return i
}

// Lookup returns the index of name.
func (t NameTable) Lookup(name string) (uint32, bool) {
	i, ok := t.index[name]
	return i, ok
}

// Get returns the name at index i, or an empty string if i is out of range.
func (t NameTable) Get(i uint32) string {
	if int(i) >= len(t.names) {
		return ""
	}
	return t.names[i]
}

func (t NameTable) Len() int { return len(t.names) }

// Names returns a copy of the names in index order.
func (t NameTable) Names() []string { return slices.Clone(t.names) }

func (t NameTable) Equal(o NameTable) bool { return slices.Equal(t.names, o.names) }

// CompactPath shortens a source path to at most its last two directories
// and the file name, prefixed with an ellipsis:
//
//	\a\b\c\d\file.cs -> ...\c\d\file.cs
//	\b\file.cs       -> ...\b\file.cs
//	file.cs          -> file.cs
//
// The separator of the input is kept. Backslashes win when both are present.
func CompactPath(path string) string {
	sep := "\\"
	if !strings.Contains(path, sep) {
		if !strings.Contains(path, "/") {
			return path
		}
		sep = "/"
	}
	parts := strings.Split(path, sep)
	last := len(parts) - 1
	switch {
	case last > 2:
		return strings.Join([]string{ellipsis, parts[last-2], parts[last-1], parts[last]}, sep)
	case last > 1:
		return strings.Join([]string{ellipsis, parts[last-1], parts[last]}, sep)
	default:
		return parts[last]
	}
}
