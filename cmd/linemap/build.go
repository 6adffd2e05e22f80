package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/go-kit/log/level"
	"gopkg.in/alecthomas/kingpin.v2"

	"github.com/grafana/linemap/pkg/codec"
	"github.com/grafana/linemap/pkg/debuginfo"
	"github.com/grafana/linemap/pkg/linemap"
	"github.com/grafana/linemap/pkg/resource"
)

const reportExt = ".linemapreport"

type buildParams struct {
	path     string
	moduleID string
	file     bool
	report   bool
}

func addBuildParams(cmd *kingpin.CmdClause) *buildParams {
	p := &buildParams{}
	cmd.Arg("module", "Path to an ELF module with DWARF debug information.").Required().ExistingFileVar(&p.path)
	cmd.Flag("module-id", "Id to store the line map under. Defaults to the module file name, or the module path for the sidecar backend.").StringVar(&p.moduleID)
	cmd.Flag("file", "Write a <module>"+resource.SidecarExt+" sidecar file instead of using the configured store.").BoolVar(&p.file)
	cmd.Flag("report", "Also write a <module>"+reportExt+" text report.").BoolVar(&p.report)
	return p
}

// storeModuleID picks the id a module's line map is stored under.
func storeModuleID(cfg *config, path, override string) linemap.ModuleID {
	switch {
	case override != "":
		return linemap.ModuleID(override)
	case cfg.Storage.Backend == resource.Sidecar:
		return linemap.ModuleID(path)
	}
	return linemap.ModuleID(filepath.Base(path))
}

func build(ctx context.Context, cfg *config, p *buildParams) error {
	if p.file {
		cfg.Storage.Backend = resource.Sidecar
	}
	m, err := linemap.Build(ctx, logger, debuginfo.NewDWARFProvider(logger), linemap.ModuleID(p.path))
	if err != nil {
		return err
	}

	c, err := codec.New(cfg.Codec)
	if err != nil {
		return err
	}
	blob, err := c.Encode(m)
	if err != nil {
		return err
	}

	store, err := resource.NewStore(cfg.Storage, nil)
	if err != nil {
		return err
	}
	defer store.Close()

	id := storeModuleID(cfg, p.path, p.moduleID)
	if err = store.Put(ctx, id, blob); err != nil {
		return fmt.Errorf("store line map: %w", err)
	}
	level.Info(logger).Log("msg", "line map stored", "module", id, "backend", cfg.Storage.Backend, "size", humanize.Bytes(uint64(len(blob))))

	out := output(ctx)
	fmt.Fprintf(out, "Retrieved %d symbols\n", len(m.Symbols))
	fmt.Fprintf(out, "Retrieved %d lines\n", len(m.AddressToLine))
	fmt.Fprintf(out, "Retrieved %d strings\n", m.Names.Len())
	fmt.Fprintf(out, "Stored %s line map for %s\n", humanize.Bytes(uint64(len(blob))), id)

	if p.report {
		return writeReportFile(p.path+reportExt, m)
	}
	return nil
}

func writeReportFile(path string, m *linemap.LineMap) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return linemap.WriteReport(f, m)
}
