package debuginfo

import (
	"context"
	"debug/dwarf"
	"debug/elf"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

// DWARFProvider reads symbols and line tables from the DWARF sections of ELF
// modules. A module is identified by its path on disk.
//
// Subprograms become token-bearing function symbols: the token is the DIE
// offset, which is stable for a given build of the module. Variables and
// parameters are reported as locals so that consumers can filter them out.
type DWARFProvider struct {
	logger log.Logger
}

func NewDWARFProvider(logger log.Logger) *DWARFProvider {
	return &DWARFProvider{logger: log.With(logger, "component", "dwarf-provider")}
}

func (p *DWARFProvider) Open(ctx context.Context, module string) (Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, err := os.Stat(module); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrModuleNotFound, module)
		}
		return nil, err
	}
	f, err := elf.Open(module)
	if err != nil {
		return nil, fmt.Errorf("open elf %s: %w", module, err)
	}
	data, err := f.DWARF()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("%w: %s: %v", ErrNoDebugInfo, module, err)
	}
	level.Debug(p.logger).Log("msg", "opened dwarf session", "module", module)
	return &dwarfSession{
		logger: p.logger,
		module: module,
		file:   f,
		data:   data,
	}, nil
}

type dwarfSession struct {
	logger log.Logger
	module string
	file   *elf.File
	data   *dwarf.Data
	closed bool
}

func (s *dwarfSession) EnumerateSymbols(fn func(RawSymbol) bool) error {
	if s.closed {
		return ErrSessionClosed
	}
	r := s.data.Reader()
	for {
		e, err := r.Next()
		if err != nil {
			return fmt.Errorf("read dwarf entry: %w", err)
		}
		if e == nil {
			return nil
		}
		sym, ok := symbolFromEntry(e)
		if !ok {
			continue
		}
		if !fn(sym) {
			return nil
		}
	}
}

func symbolFromEntry(e *dwarf.Entry) (RawSymbol, bool) {
	name, _ := e.Val(dwarf.AttrName).(string)
	switch e.Tag {
	case dwarf.TagSubprogram:
		low, ok := e.Val(dwarf.AttrLowpc).(uint64)
		if !ok {
			// abstract or declaration-only entry
			return RawSymbol{}, false
		}
		if name == "" {
			name, _ = e.Val(dwarf.AttrLinkageName).(string)
		}
		if name == "" {
			return RawSymbol{}, false
		}
		return RawSymbol{
			Name:    name,
			Address: low,
			Value:   uint64(e.Offset),
			Flags:   FunctionToken,
		}, true
	case dwarf.TagVariable:
		return RawSymbol{Name: name, Value: uint64(e.Offset), Flags: FlagLocal | FlagValuePresent}, true
	case dwarf.TagFormalParameter:
		return RawSymbol{Name: name, Value: uint64(e.Offset), Flags: FlagParameter | FlagValuePresent}, true
	}
	return RawSymbol{}, false
}

func (s *dwarfSession) EnumerateLines(fn func(RawLine) bool) error {
	if s.closed {
		return ErrSessionClosed
	}
	r := s.data.Reader()
	for {
		cu, err := r.Next()
		if err != nil {
			return fmt.Errorf("read compile unit: %w", err)
		}
		if cu == nil {
			return nil
		}
		if cu.Tag != dwarf.TagCompileUnit {
			r.SkipChildren()
			continue
		}
		r.SkipChildren()

		lr, err := s.data.LineReader(cu)
		if err != nil {
			return fmt.Errorf("create line reader: %w", err)
		}
		if lr == nil {
			continue
		}
		object, _ := cu.Val(dwarf.AttrName).(string)
		cont, err := enumerateUnitLines(lr, object, fn)
		if err != nil {
			return err
		}
		if !cont {
			return nil
		}
	}
}

func enumerateUnitLines(lr *dwarf.LineReader, object string, fn func(RawLine) bool) (bool, error) {
	var entry dwarf.LineEntry
	for {
		if err := lr.Next(&entry); err != nil {
			if err == io.EOF {
				return true, nil
			}
			return false, fmt.Errorf("read line entry: %w", err)
		}
		line := RawLine{Object: object, Address: entry.Address}
		switch {
		case entry.EndSequence:
			line.Line = SentinelLine
		case !entry.IsStmt:
			continue
		default:
			if entry.File != nil {
				line.FileName = entry.File.Name
			}
			line.Line = uint32(entry.Line)
		}
		if !fn(line) {
			return false, nil
		}
	}
}

func (s *dwarfSession) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	level.Debug(s.logger).Log("msg", "closed dwarf session", "module", s.module)
	return s.file.Close()
}
