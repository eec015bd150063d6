package main

import (
	"github.com/urfave/cli/v3"

	"github.com/samcharles93/tensile/internal/ingest"
	"github.com/samcharles93/tensile/pkg/tracefmt"
)

var (
	configFile    string
	backendName   string
	outputDir     string
	optimizeAlpha bool
	optimizeBeta  bool
	workers       int64
	jsonOutput    bool
	logLevel      string
	logFormat     string
	debug         bool
)

func traceFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{
			Name:        "optimize-alpha",
			Usage:       "keep alpha types from traces instead of forcing them to C's type",
			Destination: &optimizeAlpha,
		},
		&cli.BoolFlag{
			Name:        "optimize-beta",
			Usage:       "keep beta types from traces instead of forcing them to C's type",
			Destination: &optimizeBeta,
		},
		&cli.Int64Flag{
			Name:        "workers",
			Aliases:     []string{"j"},
			Usage:       "trace files decoded concurrently (0 = GOMAXPROCS)",
			Destination: &workers,
		},
	}
}

func jsonFlag() cli.Flag {
	return &cli.BoolFlag{
		Name:        "json",
		Usage:       "print machine-readable JSON",
		Destination: &jsonOutput,
	}
}

func backendFlag() cli.Flag {
	return &cli.StringFlag{
		Name:        "backend",
		Aliases:     []string{"b"},
		Usage:       "generated code target (hip, opencl)",
		Value:       "hip",
		Destination: &backendName,
	}
}

func loggingFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "config",
			Usage:       "path to config.yaml (default: $XDG_CONFIG_HOME/tensile/config.yaml)",
			Destination: &configFile,
		},
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "log level (debug, info, warn, error)",
			Value:       "info",
			Destination: &logLevel,
		},
		&cli.StringFlag{
			Name:        "log-format",
			Usage:       "log format (auto, pretty, json, text)",
			Value:       "auto",
			Destination: &logFormat,
		},
		&cli.BoolFlag{
			Name:        "debug",
			Usage:       "enable debug logging (shorthand for --log-level=debug)",
			Destination: &debug,
		},
	}
}

// ingestOptions builds ingestion options from the trace flags.
func ingestOptions() ingest.Options {
	return ingest.Options{
		Workers: int(workers),
		Trace: tracefmt.Options{
			OptimizeAlpha: optimizeAlpha,
			OptimizeBeta:  optimizeBeta,
		},
	}
}
