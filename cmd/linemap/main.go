package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/prometheus/common/version"
	"gopkg.in/alecthomas/kingpin.v2"
)

var globals struct {
	verbose    bool
	configFile string
	expandEnv  bool
	backend    string
	directory  string
}

var (
	consoleOutput = os.Stderr
	logger        = log.NewLogfmtLogger(consoleOutput)
)

func main() {
	ctx := withOutput(context.Background(), os.Stdout)

	app := kingpin.New(filepath.Base(os.Args[0]), "Builds, stores and queries line maps: compact address to source line tables embedded next to compiled modules.").UsageWriter(os.Stdout)
	app.Version(version.Print("linemap"))
	app.HelpFlag.Short('h')
	app.Flag("verbose", "Enable verbose logging.").Short('v').Default("0").BoolVar(&globals.verbose)
	app.Flag("config.file", "Optional YAML configuration file.").StringVar(&globals.configFile)
	app.Flag("config.expand-env", "Expand ${VAR} references in the configuration file.").Default("false").BoolVar(&globals.expandEnv)
	app.Flag("storage.backend", "Override the configured storage backend.").EnumVar(&globals.backend, "filesystem", "inmemory", "bolt", "sidecar")
	app.Flag("storage.directory", "Override the configured storage directory.").StringVar(&globals.directory)

	buildCmd := app.Command("build", "Build the line map of a module from its debug information and store it.")
	buildParams := addBuildParams(buildCmd)

	reportCmd := app.Command("report", "Print the stored line map of a module.")
	reportParams := addReportParams(reportCmd)

	inspectCmd := app.Command("inspect", "Summarize the stored line map of a module.")
	inspectParams := addInspectParams(inspectCmd)

	resolveCmd := app.Command("resolve", "Resolve function token and offset pairs to source lines.")
	resolveParams := addResolveParams(resolveCmd)

	preloadCmd := app.Command("preload", "Load and verify the line maps of several modules.")
	preloadParams := addPreloadParams(preloadCmd)

	deleteCmd := app.Command("delete", "Remove the stored line map of a module.")
	deleteModule := deleteCmd.Arg("module", "Module id.").Required().String()

	parsedCmd := kingpin.MustParse(app.Parse(os.Args[1:]))

	if !globals.verbose {
		logger = level.NewFilter(logger, level.AllowInfo())
	}

	cfg, err := loadConfig(globals.configFile, globals.expandEnv)
	if err != nil {
		os.Exit(checkError(err))
	}
	if globals.backend != "" {
		cfg.Storage.Backend = globals.backend
	}
	if globals.directory != "" {
		cfg.Storage.Directory = globals.directory
	}

	switch parsedCmd {
	case buildCmd.FullCommand():
		os.Exit(checkError(build(ctx, cfg, buildParams)))
	case reportCmd.FullCommand():
		os.Exit(checkError(report(ctx, cfg, reportParams)))
	case inspectCmd.FullCommand():
		os.Exit(checkError(inspect(ctx, cfg, inspectParams)))
	case resolveCmd.FullCommand():
		os.Exit(checkError(resolve(ctx, cfg, resolveParams)))
	case preloadCmd.FullCommand():
		os.Exit(checkError(preload(ctx, cfg, preloadParams)))
	case deleteCmd.FullCommand():
		os.Exit(checkError(deleteLineMap(ctx, cfg, *deleteModule)))
	default:
		level.Error(logger).Log("msg", "unknown command", "cmd", parsedCmd)
	}
}

func checkError(err error) int {
	if err == nil {
		return 0
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	return 1
}

type contextKey uint8

const (
	contextKeyOutput contextKey = iota
)

func withOutput(ctx context.Context, w io.Writer) context.Context {
	return context.WithValue(ctx, contextKeyOutput, w)
}

func output(ctx context.Context) io.Writer {
	if w, ok := ctx.Value(contextKeyOutput).(io.Writer); ok {
		return w
	}
	return os.Stdout
}
