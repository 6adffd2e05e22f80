// Package stacktrace attaches source locations to captured stack frames
// using the line maps of the modules they belong to.
package stacktrace

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/grafana/linemap/pkg/linemap"
)

// OffsetUnknown marks a frame without an instruction offset.
const OffsetUnknown = -1

// UnknownFile is reported for frames that cannot be resolved.
const UnknownFile = "<unknown>"

// Frame is a captured stack frame: the function token and the instruction
// offset inside that function.
type Frame struct {
	Module   linemap.ModuleID
	Function string
	Token    uint64
	Offset   int64
}

// Located is a frame with its source location. Resolved is false when the
// location is the placeholder.
type Located struct {
	Frame
	Location linemap.Location
	Resolved bool
}

// LineMaps returns the line map of a module.
type LineMaps interface {
	Get(ctx context.Context, module linemap.ModuleID) (*linemap.LineMap, error)
}

type Symbolizer struct {
	logger log.Logger
	maps   LineMaps
}

func NewSymbolizer(logger log.Logger, maps LineMaps) *Symbolizer {
	return &Symbolizer{logger: log.With(logger, "component", "stacktrace-symbolizer"), maps: maps}
}

// Locate resolves a single frame. It never fails: frames without a usable
// line map, with an unknown token or offset, or before the first recorded
// line get the placeholder location.
func (s *Symbolizer) Locate(ctx context.Context, f Frame) Located {
	placeholder := Located{Frame: f, Location: linemap.Location{File: UnknownFile}}
	if f.Offset < 0 {
		return placeholder
	}
	m, err := s.maps.Get(ctx, f.Module)
	if err != nil {
		level.Debug(s.logger).Log("msg", "no line map for frame", "module", f.Module, "function", f.Function, "err", err)
		return placeholder
	}
	loc, err := m.Resolve(f.Token, uint64(f.Offset))
	if err != nil {
		level.Debug(s.logger).Log("msg", "frame not resolved", "module", f.Module, "function", f.Function, "err", err)
		return placeholder
	}
	return Located{Frame: f, Location: loc, Resolved: true}
}

func (s *Symbolizer) Symbolize(ctx context.Context, frames []Frame) []Located {
	res := make([]Located, len(frames))
	for i, f := range frames {
		res[i] = s.Locate(ctx, f)
	}
	return res
}

// Format renders a frame as
//
//	Function
//	   : Source File - file: line N, IL 0042
//
// The line is omitted when it is zero, the IL offset when it is unknown.
func Format(l Located) string {
	var sb strings.Builder
	if l.Function != "" {
		sb.WriteString(l.Function)
		sb.WriteByte('\n')
	}
	sb.WriteString("   : Source File - ")
	sb.WriteString(l.Location.File)
	if l.Location.Line != 0 {
		fmt.Fprintf(&sb, ": line %d", l.Location.Line)
	}
	if l.Offset != OffsetUnknown {
		fmt.Fprintf(&sb, ", IL %04d", l.Offset)
	}
	sb.WriteByte('\n')
	return sb.String()
}

func WriteTrace(w io.Writer, frames []Located) error {
	for _, f := range frames {
		if _, err := io.WriteString(w, Format(f)); err != nil {
			return err
		}
	}
	return nil
}
