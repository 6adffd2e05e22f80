package linemap

import (
	"context"
	"errors"
	"testing"

	"github.com/go-kit/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grafana/linemap/pkg/debuginfo"
)

type fakeSession struct {
	symbols []debuginfo.RawSymbol
	lines   []debuginfo.RawLine

	symbolsErr error
	linesErr   error
	closed     int
}

func (s *fakeSession) EnumerateSymbols(fn func(debuginfo.RawSymbol) bool) error {
	for _, sym := range s.symbols {
		if !fn(sym) {
			break
		}
	}
	return s.symbolsErr
}

func (s *fakeSession) EnumerateLines(fn func(debuginfo.RawLine) bool) error {
	for _, l := range s.lines {
		if !fn(l) {
			break
		}
	}
	return s.linesErr
}

func (s *fakeSession) Close() error {
	s.closed++
	return nil
}

func providerOf(s *fakeSession, openErr error) debuginfo.Provider {
	return debuginfo.ProviderFunc(func(context.Context, string) (debuginfo.Session, error) {
		if openErr != nil {
			return nil, openErr
		}
		return s, nil
	})
}

func fn(token uint64, name string, addr uint64) debuginfo.RawSymbol {
	return debuginfo.RawSymbol{Name: name, Address: addr, Value: token, Flags: debuginfo.FunctionToken}
}

func line(addr uint64, n uint32, file string) debuginfo.RawLine {
	return debuginfo.RawLine{Object: "App.Program", FileName: file, Line: n, Address: addr}
}

func TestBuild(t *testing.T) {
	s := &fakeSession{
		symbols: []debuginfo.RawSymbol{
			fn(0x06000001, "Main", 0),
			{Name: "local", Value: 7, Flags: debuginfo.FlagLocal | debuginfo.FlagValuePresent},
			{Name: "thunk", Value: 8, Flags: debuginfo.FlagThunk},
			fn(0x06000002, "Run", 100),
			fn(0x06000001, "Shadow", 200),
		},
		lines: []debuginfo.RawLine{
			line(130, 31, `C:\src\app\Program.cs`),
			line(0, 10, `C:\src\app\Program.cs`),
			line(130, 99, `C:\src\app\Other.cs`),
			line(140, debuginfo.SentinelLine, `C:\src\app\Program.cs`),
			line(100, 30, `C:\src\app\Program.cs`),
			line(12, 11, `C:\src\lib\Util.cs`),
		},
	}
	m, err := Build(context.Background(), log.NewNopLogger(), providerOf(s, nil), "app.exe")
	require.NoError(t, err)
	require.Equal(t, 1, s.closed)
	require.NoError(t, m.Validate())

	require.Equal(t, map[uint64]Symbol{
		0x06000001: {Token: 0x06000001, Name: "Main", Address: 0},
		0x06000002: {Token: 0x06000002, Name: "Run", Address: 100},
	}, m.Symbols)

	// Other.cs stays interned even though its only line lost the address tie
	require.Equal(t, []string{`...\src\app\Program.cs`, `...\src\app\Other.cs`, `...\src\lib\Util.cs`}, m.Names.Names())
	require.Equal(t, []LineEntry{
		{Address: 0, Line: 10, FileIndex: 0, ObjectName: "App.Program"},
		{Address: 12, Line: 11, FileIndex: 2, ObjectName: "App.Program"},
		{Address: 100, Line: 30, FileIndex: 0, ObjectName: "App.Program"},
		// first record for address 130 wins
		{Address: 130, Line: 31, FileIndex: 0, ObjectName: "App.Program"},
	}, m.AddressToLine)
}

func TestBuild_SentinelNeverStored(t *testing.T) {
	s := &fakeSession{
		lines: []debuginfo.RawLine{
			line(10, debuginfo.SentinelLine, "a.cs"),
			line(20, 2, "a.cs"),
			line(30, debuginfo.SentinelLine, "b.cs"),
		},
	}
	m, err := Build(context.Background(), log.NewNopLogger(), providerOf(s, nil), "m")
	require.NoError(t, err)
	require.Len(t, m.AddressToLine, 1)
	for _, e := range m.AddressToLine {
		assert.NotEqual(t, uint32(debuginfo.SentinelLine), e.Line)
	}
	// the sentinel record does not intern its file either
	require.Equal(t, []string{"a.cs"}, m.Names.Names())
}

func TestBuild_Failures(t *testing.T) {
	boom := errors.New("boom")
	for _, tc := range []struct {
		name    string
		session *fakeSession
		openErr error
		reason  BuildReason
		closed  int
	}{
		{name: "open", session: &fakeSession{}, openErr: boom, reason: SessionInitFailed, closed: 0},
		{name: "symbols", session: &fakeSession{symbols: []debuginfo.RawSymbol{fn(1, "a", 0)}, symbolsErr: boom}, reason: SymbolEnumFailed, closed: 1},
		{name: "lines", session: &fakeSession{lines: []debuginfo.RawLine{line(1, 1, "a")}, linesErr: boom}, reason: LineEnumFailed, closed: 1},
	} {
		t.Run(tc.name, func(t *testing.T) {
			m, err := Build(context.Background(), log.NewNopLogger(), providerOf(tc.session, tc.openErr), "m")
			require.Nil(t, m)
			var bf *BuildFailure
			require.ErrorAs(t, err, &bf)
			require.Equal(t, tc.reason, bf.Reason)
			require.Equal(t, ModuleID("m"), bf.Module)
			require.ErrorIs(t, err, boom)
			require.Equal(t, tc.closed, tc.session.closed)
		})
	}
}

func TestBuild_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := &fakeSession{symbols: []debuginfo.RawSymbol{fn(1, "a", 0)}}
	m, err := Build(ctx, log.NewNopLogger(), providerOf(s, nil), "m")
	require.Nil(t, m)
	require.ErrorIs(t, err, context.Canceled)
	var bf *BuildFailure
	require.ErrorAs(t, err, &bf)
	require.Equal(t, SymbolEnumFailed, bf.Reason)
	require.Equal(t, 1, s.closed)
}

func TestBuilder_Finish(t *testing.T) {
	b := NewBuilder(log.NewNopLogger())
	b.AddLine(line(30, 3, "x/y.go"))
	b.AddLine(line(10, 1, "x/y.go"))
	b.AddLine(line(10, 7, "x/z.go"))
	b.AddLine(line(20, 2, "x/y.go"))
	m := b.Finish()
	require.NoError(t, m.Validate())
	require.Equal(t, []uint32{1, 2, 3}, []uint32{m.AddressToLine[0].Line, m.AddressToLine[1].Line, m.AddressToLine[2].Line})
	// names are interned before deduplication
	require.Equal(t, []string{"y.go", "z.go"}, m.Names.Names())
}
