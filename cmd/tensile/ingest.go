package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/goccy/go-json"
	"github.com/urfave/cli/v3"

	"github.com/samcharles93/tensile/internal/benchdb"
	"github.com/samcharles93/tensile/internal/ingest"
	"github.com/samcharles93/tensile/internal/logger"
)

func ingestCmd() *cli.Command {
	var exportPath string

	return &cli.Command{
		Name:      "ingest",
		Usage:     "Build a benchmark database from trace files",
		ArgsUsage: "[trace.xml | dir]...",
		Flags: append(traceFlags(),
			jsonFlag(),
			&cli.StringFlag{
				Name:        "export",
				Aliases:     []string{"o"},
				Usage:       "write the database as JSON to this file",
				Destination: &exportPath,
			},
		),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			applyTraceConfig(cmd, cfg)

			db, err := loadDatabase(ctx, cmd.Args().Slice())
			if err != nil {
				return err
			}
			if exportPath != "" {
				if err := exportDatabase(exportPath, db); err != nil {
					return cli.Exit(fmt.Sprintf("error: %v", err), 1)
				}
				logger.FromContext(ctx).Info("database exported", "path", exportPath)
			}
			return printStats(os.Stdout, db.Stats(), jsonOutput)
		},
	}
}

// loadDatabase ingests the trace inputs and logs files that were skipped.
func loadDatabase(ctx context.Context, args []string) (*benchdb.Database, error) {
	paths, err := resolveInputs(args)
	if err != nil {
		return nil, cli.Exit(fmt.Sprintf("error: %v", err), 1)
	}
	db, failed, err := ingest.Files(ctx, paths, ingestOptions())
	if err != nil {
		return nil, cli.Exit(fmt.Sprintf("error: %v", err), 1)
	}
	warnFailed(ctx, failed)
	return db, nil
}

func warnFailed(ctx context.Context, failed []ingest.FileError) {
	log := logger.FromContext(ctx)
	for _, fe := range failed {
		log.Warn("trace skipped", "path", fe.Path, "error", fe.Err)
	}
}

func exportDatabase(path string, db *benchdb.Database) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return db.WriteJSON(f)
}

func printStats(w io.Writer, st benchdb.Stats, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(st)
	}
	_, err := fmt.Fprintf(w,
		"profiles:      %d\nexact matches: %d\nproblems:      %d\nsolutions:     %d\ntimings:       %d\nvalid:         %d\ninvalid:       %d\n",
		st.Profiles, st.ExactMatches, st.Problems, st.Solutions, st.Timings, st.Valid, st.Invalid)
	return err
}
