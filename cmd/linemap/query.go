package main

import (
	"context"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/lo"
	"gopkg.in/alecthomas/kingpin.v2"

	"github.com/grafana/linemap/pkg/codec"
	"github.com/grafana/linemap/pkg/linemap"
	"github.com/grafana/linemap/pkg/registry"
	"github.com/grafana/linemap/pkg/resource"
	"github.com/grafana/linemap/pkg/stacktrace"
)

// session bundles the store, codec and registry a query command works with.
type session struct {
	store    resource.Store
	codec    *codec.Codec
	registry *registry.Registry
}

func openSession(cfg *config) (*session, error) {
	c, err := codec.New(cfg.Codec)
	if err != nil {
		return nil, err
	}
	store, err := resource.NewStore(cfg.Storage, nil)
	if err != nil {
		return nil, err
	}
	r, err := registry.New(logger, cfg.Registry, store, c, prometheus.NewRegistry())
	if err != nil {
		store.Close()
		return nil, err
	}
	return &session{store: store, codec: c, registry: r}, nil
}

func (s *session) Close() error { return s.store.Close() }

type reportParams struct {
	module string
}

func addReportParams(cmd *kingpin.CmdClause) *reportParams {
	p := &reportParams{}
	cmd.Arg("module", "Module id.").Required().StringVar(&p.module)
	return p
}

func report(ctx context.Context, cfg *config, p *reportParams) error {
	s, err := openSession(cfg)
	if err != nil {
		return err
	}
	defer s.Close()
	m, err := s.registry.Get(ctx, linemap.ModuleID(p.module))
	if err != nil {
		return err
	}
	return linemap.WriteReport(output(ctx), m)
}

type inspectParams struct {
	module string
	top    int
}

func addInspectParams(cmd *kingpin.CmdClause) *inspectParams {
	p := &inspectParams{}
	cmd.Arg("module", "Module id.").Required().StringVar(&p.module)
	cmd.Flag("top", "Number of source files to list, by line entries.").Default("10").IntVar(&p.top)
	return p
}

func inspect(ctx context.Context, cfg *config, p *inspectParams) error {
	s, err := openSession(cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	id := linemap.ModuleID(p.module)
	blob, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	m, err := s.codec.Decode(blob)
	if err != nil {
		return err
	}
	return writeSummary(output(ctx), id, len(blob), m, p.top)
}

type fileCount struct {
	file  string
	lines int
}

func topFiles(m *linemap.LineMap, n int) []fileCount {
	counts := lo.CountValuesBy(m.AddressToLine, m.File)
	res := lo.MapToSlice(counts, func(file string, lines int) fileCount {
		return fileCount{file: file, lines: lines}
	})
	slices.SortFunc(res, func(a, b fileCount) int {
		if a.lines != b.lines {
			return b.lines - a.lines
		}
		return strings.Compare(a.file, b.file)
	})
	if n >= 0 && len(res) > n {
		res = res[:n]
	}
	return res
}

func writeSummary(w io.Writer, id linemap.ModuleID, size int, m *linemap.LineMap, top int) error {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Module", "Size", "Symbols", "Lines", "Files"})
	table.Append([]string{
		string(id),
		humanize.Bytes(uint64(size)),
		strconv.Itoa(len(m.Symbols)),
		strconv.Itoa(len(m.AddressToLine)),
		strconv.Itoa(m.Names.Len()),
	})
	table.Render()

	files := topFiles(m, top)
	if len(files) == 0 {
		return nil
	}
	table = tablewriter.NewWriter(w)
	table.SetHeader([]string{"File", "Line entries"})
	for _, f := range files {
		table.Append([]string{f.file, strconv.Itoa(f.lines)})
	}
	table.Render()
	return nil
}

type resolveParams struct {
	module string
	frames []string
}

func addResolveParams(cmd *kingpin.CmdClause) *resolveParams {
	p := &resolveParams{}
	cmd.Arg("module", "Module id.").Required().StringVar(&p.module)
	cmd.Arg("frames", "Frames as <token>:<offset>, e.g. 0x06000001:42.").Required().StringsVar(&p.frames)
	return p
}

func parseFrame(module linemap.ModuleID, s string) (stacktrace.Frame, error) {
	token, offset, ok := strings.Cut(s, ":")
	if !ok {
		return stacktrace.Frame{}, fmt.Errorf("invalid frame %q, expected <token>:<offset>", s)
	}
	t, err := strconv.ParseUint(token, 0, 64)
	if err != nil {
		return stacktrace.Frame{}, fmt.Errorf("invalid frame token %q: %w", token, err)
	}
	o, err := strconv.ParseInt(offset, 0, 64)
	if err != nil || o < 0 {
		return stacktrace.Frame{}, fmt.Errorf("invalid frame offset %q", offset)
	}
	return stacktrace.Frame{Module: module, Function: s, Token: t, Offset: o}, nil
}

func resolve(ctx context.Context, cfg *config, p *resolveParams) error {
	id := linemap.ModuleID(p.module)
	frames := make([]stacktrace.Frame, 0, len(p.frames))
	for _, s := range p.frames {
		f, err := parseFrame(id, s)
		if err != nil {
			return err
		}
		frames = append(frames, f)
	}

	s, err := openSession(cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	symbolizer := stacktrace.NewSymbolizer(logger, s.registry)
	unresolved := color.New(color.FgYellow)
	out := output(ctx)
	for _, l := range symbolizer.Symbolize(ctx, frames) {
		if l.Resolved {
			fmt.Fprint(out, stacktrace.Format(l))
			continue
		}
		unresolved.Fprint(out, stacktrace.Format(l))
	}
	return nil
}

type preloadParams struct {
	modules []string
}

func addPreloadParams(cmd *kingpin.CmdClause) *preloadParams {
	p := &preloadParams{}
	cmd.Arg("modules", "Module ids.").Required().StringsVar(&p.modules)
	return p
}

func preload(ctx context.Context, cfg *config, p *preloadParams) error {
	s, err := openSession(cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	ids := lo.Map(p.modules, func(m string, _ int) linemap.ModuleID { return linemap.ModuleID(m) })
	err = s.registry.Preload(ctx, ids...)
	out := output(ctx)
	for _, id := range s.registry.Modules() {
		fmt.Fprintf(out, "loaded %s\n", id)
	}
	return err
}

func deleteLineMap(ctx context.Context, cfg *config, module string) error {
	store, err := resource.NewStore(cfg.Storage, nil)
	if err != nil {
		return err
	}
	defer store.Close()
	return store.Delete(ctx, linemap.ModuleID(module))
}
