package linemap

import (
	"context"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/grafana/linemap/pkg/debuginfo"
)

// Builder normalizes raw provider records into a LineMap. A Builder is used
// for a single build and is not safe for concurrent use.
type Builder struct {
	logger log.Logger
	m      *LineMap

	duplicateTokens int
	skippedSymbols  int
	skippedLines    int
}

func NewBuilder(logger log.Logger) *Builder {
	return &Builder{logger: logger, m: New()}
}

// AddSymbol accepts token-bearing function symbols and discards every other
// flavor. The first symbol seen for a token wins.
func (b *Builder) AddSymbol(s debuginfo.RawSymbol) {
	if !s.Flags.IsFunctionToken() {
		b.skippedSymbols++
		return
	}
	if prev, ok := b.m.Symbols[s.Value]; ok {
		b.duplicateTokens++
		level.Warn(b.logger).Log("msg", "duplicate symbol token, keeping first",
			"token", s.Value, "kept", prev.Name, "dropped", s.Name)
		return
	}
	b.m.Symbols[s.Value] = Symbol{Token: s.Value, Name: s.Name, Address: s.Address}
}

// AddLine records a line entry, dropping end-of-group sentinels.
func (b *Builder) AddLine(l debuginfo.RawLine) {
	if l.Line == debuginfo.SentinelLine {
		b.skippedLines++
		return
	}
	idx := b.m.Names.Add(CompactPath(l.FileName))
	b.m.AddressToLine = append(b.m.AddressToLine, LineEntry{
		Address:    l.Address,
		Line:       l.Line,
		FileIndex:  idx,
		ObjectName: l.Object,
	})
}

// Finish sorts and deduplicates the line index and hands over the map. The
// builder must not be used afterwards.
func (b *Builder) Finish() *LineMap {
	m := b.m
	b.m = nil
	m.finalize()
	return m
}

// Build enumerates the debug information of module through provider and
// returns the normalized line map. The provider session is always closed,
// and a failed build never returns a partial map.
func Build(ctx context.Context, logger log.Logger, provider debuginfo.Provider, module ModuleID) (_ *LineMap, err error) {
	logger = log.With(logger, "module", module)
	b := NewBuilder(logger)
	defer func() {
		var symbols, lines, names int
		if b.m != nil {
			symbols, lines, names = len(b.m.Symbols), len(b.m.AddressToLine), b.m.Names.Len()
		}
		lvl := level.Info
		if err != nil {
			lvl = level.Error
		}
		lvl(logger).Log("msg", "line map enumeration done",
			"symbols", symbols,
			"lines", lines,
			"names", names,
			"skipped_symbols", b.skippedSymbols,
			"skipped_lines", b.skippedLines,
			"duplicate_tokens", b.duplicateTokens,
			"err", err)
	}()

	session, err := provider.Open(ctx, string(module))
	if err != nil {
		return nil, &BuildFailure{Module: module, Reason: SessionInitFailed, Err: err}
	}
	defer func() {
		if cerr := session.Close(); cerr != nil {
			level.Warn(logger).Log("msg", "failed to close debug info session", "err", cerr)
		}
	}()

	var ctxErr error
	err = session.EnumerateSymbols(func(s debuginfo.RawSymbol) bool {
		if ctxErr = ctx.Err(); ctxErr != nil {
			return false
		}
		b.AddSymbol(s)
		return true
	})
	if err == nil {
		err = ctxErr
	}
	if err != nil {
		return nil, &BuildFailure{Module: module, Reason: SymbolEnumFailed, Err: err}
	}

	err = session.EnumerateLines(func(l debuginfo.RawLine) bool {
		if ctxErr = ctx.Err(); ctxErr != nil {
			return false
		}
		b.AddLine(l)
		return true
	})
	if err == nil {
		err = ctxErr
	}
	if err != nil {
		return nil, &BuildFailure{Module: module, Reason: LineEnumFailed, Err: err}
	}

	m := b.m
	m.finalize()
	return m, nil
}
