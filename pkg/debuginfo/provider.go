// Package debuginfo describes the source of raw symbol and line records a
// line map is built from, and ships a DWARF backed implementation of it.
package debuginfo

import (
	"context"
	"errors"
)

// SentinelLine marks the end of a group of line records. It is not a real
// source line and must never reach a line map.
const SentinelLine = 0xFEEFEE

// Flags is the flag set attached to an enumerated symbol record. The values
// mirror the native symbol-info flags so records read from a native
// provider can be passed through unchanged.
type Flags uint32

const (
	FlagValuePresent  Flags = 0x1
	FlagRegister      Flags = 0x8
	FlagRegRelative   Flags = 0x10
	FlagFrameRelative Flags = 0x20
	FlagParameter     Flags = 0x40
	FlagLocal         Flags = 0x80
	FlagConstant      Flags = 0x100
	FlagFunction      Flags = 0x800
	FlagVirtual       Flags = 0x1000
	FlagThunk         Flags = 0x2000
	FlagTLSRelative   Flags = 0x4000
	FlagSlot          Flags = 0x8000
	FlagILRelative    Flags = 0x10000
	FlagMetadata      Flags = 0x20000
	FlagClrToken      Flags = 0x40000
)

// FunctionToken is the exact flag set of a function-level symbol that
// carries a stable token.
const FunctionToken = FlagClrToken | FlagMetadata

// IsFunctionToken reports whether the record describes a token-bearing
// function. Locals, registers, thunks and the like carry extra bits and are
// rejected.
func (f Flags) IsFunctionToken() bool {
	return f == FunctionToken
}

// RawSymbol is a symbol record as produced by the provider.
type RawSymbol struct {
	Name    string
	Address uint64
	// Value holds the token for token-bearing symbols.
	Value uint64
	Flags Flags
}

// RawLine is a line record as produced by the provider. Address is the
// offset at which Line begins.
type RawLine struct {
	Object   string
	FileName string
	Line     uint32
	Address  uint64
}

var (
	// ErrModuleNotFound is returned by Open when the module can not be located.
	ErrModuleNotFound = errors.New("module not found")
	// ErrNoDebugInfo is returned by Open when the module carries no usable
	// debug information.
	ErrNoDebugInfo = errors.New("no debug information")
	// ErrSessionClosed is returned when a closed session is used.
	ErrSessionClosed = errors.New("session closed")
)

// Provider opens enumeration sessions for modules.
type Provider interface {
	Open(ctx context.Context, module string) (Session, error)
}

// Session is a stateful enumeration handle scoped to a single module. It is
// owned by one build at a time and must not be used concurrently. Close
// releases everything the session holds and is safe to call more than once.
//
// The enumeration callbacks return false to stop early; that is not an error.
type Session interface {
	EnumerateSymbols(fn func(RawSymbol) bool) error
	EnumerateLines(fn func(RawLine) bool) error
	Close() error
}

// ProviderFunc adapts a function to the Provider interface.
type ProviderFunc func(ctx context.Context, module string) (Session, error)

func (f ProviderFunc) Open(ctx context.Context, module string) (Session, error) {
	return f(ctx, module)
}
