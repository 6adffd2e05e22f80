package stacktrace

import (
	"bytes"
	"context"
	"fmt"
	"testing"

	"github.com/go-kit/log"
	"github.com/stretchr/testify/require"

	"github.com/grafana/linemap/pkg/linemap"
)

type mapsFunc func(context.Context, linemap.ModuleID) (*linemap.LineMap, error)

func (f mapsFunc) Get(ctx context.Context, module linemap.ModuleID) (*linemap.LineMap, error) {
	return f(ctx, module)
}

func testMaps() LineMaps {
	m := linemap.New()
	m.Symbols[0x06000001] = linemap.Symbol{Token: 0x06000001, Name: "Main", Address: 100}
	m.Names = linemap.NewNameTable(`...\src\app\Program.cs`)
	m.AddressToLine = []linemap.LineEntry{
		{Address: 100, Line: 12},
		{Address: 110, Line: 13},
		{Address: 130, Line: 15},
	}
	return mapsFunc(func(_ context.Context, module linemap.ModuleID) (*linemap.LineMap, error) {
		if module != "app.exe" {
			return nil, fmt.Errorf("line map not available: %s", module)
		}
		return m, nil
	})
}

func TestSymbolizer(t *testing.T) {
	s := NewSymbolizer(log.NewNopLogger(), testMaps())
	frames := []Frame{
		{Module: "app.exe", Function: "App.Program.Main", Token: 0x06000001, Offset: 12},
		{Module: "app.exe", Function: "App.Program.Main", Token: 0x06000001, Offset: OffsetUnknown},
		{Module: "app.exe", Function: "App.Program.Gone", Token: 0x06000009, Offset: 3},
		{Module: "lib.dll", Function: "Lib.Util.Run", Token: 0x06000001, Offset: 0},
	}
	got := s.Symbolize(context.Background(), frames)
	require.Len(t, got, 4)

	require.True(t, got[0].Resolved)
	require.Equal(t, linemap.Location{File: `...\src\app\Program.cs`, Line: 13}, got[0].Location)
	for _, l := range got[1:] {
		require.False(t, l.Resolved)
		require.Equal(t, linemap.Location{File: UnknownFile}, l.Location)
	}
}

func TestFormat(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteTrace(&buf, []Located{
		{
			Frame:    Frame{Function: "App.Program.Main(args As String[])", Offset: 42},
			Location: linemap.Location{File: `...\src\app\Program.cs`, Line: 13},
			Resolved: true,
		},
		{
			Frame:    Frame{Function: "App.Program.Run()", Offset: OffsetUnknown},
			Location: linemap.Location{File: UnknownFile},
		},
		{
			Frame:    Frame{Offset: 12345},
			Location: linemap.Location{File: "main.go", Line: 1},
		},
	}))
	require.Equal(t, "App.Program.Main(args As String[])\n"+
		"   : Source File - ...\\src\\app\\Program.cs: line 13, IL 0042\n"+
		"App.Program.Run()\n"+
		"   : Source File - <unknown>\n"+
		"   : Source File - main.go: line 1, IL 12345\n", buf.String())
}
