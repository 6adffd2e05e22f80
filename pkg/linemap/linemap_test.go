package linemap

import (
	"testing"

	"github.com/go-kit/log"
	"github.com/stretchr/testify/require"
)

func nopLogger() log.Logger { return log.NewNopLogger() }

func TestLineMap_Validate(t *testing.T) {
	m := resolveTestMap()
	require.NoError(t, m.Validate())

	m.AddressToLine[1].Address = 10
	require.Error(t, m.Validate())

	m = resolveTestMap()
	m.AddressToLine[2].FileIndex = 1
	require.Error(t, m.Validate())

	m = resolveTestMap()
	m.Symbols[7] = Symbol{Token: 8}
	require.Error(t, m.Validate())
}

func TestLineMap_SortedSymbols(t *testing.T) {
	m := New()
	for _, tok := range []uint64{30, 10, 20} {
		m.Symbols[tok] = Symbol{Token: tok}
	}
	var got []uint64
	for _, s := range m.SortedSymbols() {
		got = append(got, s.Token)
	}
	require.Equal(t, []uint64{10, 20, 30}, got)
}
