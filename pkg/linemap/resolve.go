package linemap

import "sort"

// Location is a resolved source position.
type Location struct {
	File string
	Line uint32
}

// Resolve maps a function token and an instruction offset inside that
// function to the nearest preceding recorded source line. Offsets that fall
// between two recorded line starts resolve to the earlier one.
//
// The returned error is always a *NotFound.
func (m *LineMap) Resolve(token, offset uint64) (Location, error) {
	return Resolve(m, token, offset)
}

func Resolve(m *LineMap, token, offset uint64) (Location, error) {
	target, err := targetAddress(m, token, offset)
	if err != nil {
		return Location{}, err
	}
	lines := m.AddressToLine
	i := sort.Search(len(lines), func(i int) bool {
		return lines[i].Address > target
	})
	i--
	if i < 0 {
		return Location{}, &NotFound{Reason: BeforeFirstLine, Token: token, Offset: offset}
	}
	return Location{File: m.File(lines[i]), Line: lines[i].Line}, nil
}

// ResolveLinear gives the same answers as Resolve by scanning the line index
// backwards. It is meant for tooling paths only.
func ResolveLinear(m *LineMap, token, offset uint64) (Location, error) {
	target, err := targetAddress(m, token, offset)
	if err != nil {
		return Location{}, err
	}
	for i := len(m.AddressToLine) - 1; i >= 0; i-- {
		if e := m.AddressToLine[i]; e.Address <= target {
			return Location{File: m.File(e), Line: e.Line}, nil
		}
	}
	return Location{}, &NotFound{Reason: BeforeFirstLine, Token: token, Offset: offset}
}

func targetAddress(m *LineMap, token, offset uint64) (uint64, error) {
	if m == nil {
		return 0, &NotFound{Reason: UnknownToken, Token: token, Offset: offset}
	}
	sym, ok := m.Symbols[token]
	if !ok {
		return 0, &NotFound{Reason: UnknownToken, Token: token, Offset: offset}
	}
	return sym.Address + offset, nil
}
