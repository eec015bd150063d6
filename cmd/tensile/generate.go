package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/tensile/internal/benchdb"
	"github.com/samcharles93/tensile/internal/codegen"
	"github.com/samcharles93/tensile/internal/logger"
	"github.com/samcharles93/tensile/pkg/contraction"
)

func generateCmd() *cli.Command {
	var fastest bool

	return &cli.Command{
		Name:      "generate",
		Usage:     "Write solution sources for benchmarked solutions",
		ArgsUsage: "[trace.xml | dir]...",
		Flags: append(traceFlags(),
			backendFlag(),
			&cli.StringFlag{
				Name:        "out",
				Usage:       "output directory (default: $TENSILE_OUT_DIR or ./out)",
				Destination: &outputDir,
			},
			&cli.BoolFlag{
				Name:        "fastest",
				Usage:       "only generate the fastest valid solution of each problem",
				Destination: &fastest,
			},
		),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			applyTraceConfig(cmd, cfg)
			applyGenerateConfig(cmd, cfg)

			b, ok := contraction.ParseBackend(backendName)
			if !ok {
				return cli.Exit(fmt.Sprintf("error: unknown backend %q", backendName), 1)
			}
			dir, err := resolveOutDir(outputDir)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			db, err := loadDatabase(ctx, cmd.Args().Slice())
			if err != nil {
				return err
			}

			rep, err := generateAll(ctx, db, codegen.New(b, nil), dir, fastest)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			logger.FromContext(ctx).Info("generated solutions",
				"dir", dir,
				"backend", b,
				"written", rep.Written,
				"duplicates", rep.Duplicates,
				"skipped", rep.Skipped,
			)
			return nil
		},
	}
}

type generateReport struct {
	Written    int
	Duplicates int
	Skipped    int
}

// generateAll writes every stored solution, or the fastest valid one per
// problem, into dir. Solutions sharing a name are written once. Incomplete
// solutions, and solutions that compiled out arguments their problem
// needs, are logged and skipped.
func generateAll(ctx context.Context, db *benchdb.Database, w *codegen.SolutionWriter, dir string, fastest bool) (generateReport, error) {
	log := logger.FromContext(ctx)
	var rep generateReport
	seen := make(map[string]bool)

	for _, prof := range db.Profiles() {
		matches, err := db.ExactMatches(prof.ID)
		if err != nil {
			return rep, err
		}
		for _, m := range matches {
			problems, err := db.Problems(m.ID, -1)
			if err != nil {
				return rep, err
			}
			for _, p := range problems {
				if err := ctx.Err(); err != nil {
					return rep, err
				}
				sols, err := db.Solutions(m.ID, p.ID)
				if err != nil {
					return rep, err
				}
				if fastest {
					sols = fastestValid(sols)
				}
				for _, e := range sols {
					if err := codegen.CheckCompatible(e.Solution, p.Problem); err != nil {
						log.Warn("solution skipped", "match", m.ID, "problem", p.Problem, "error", err)
						rep.Skipped++
						continue
					}
					a, err := w.Generate(e.Solution)
					if errors.Is(err, codegen.ErrIncompleteSolution) || errors.Is(err, codegen.ErrInvalidName) {
						log.Warn("solution skipped", "match", m.ID, "problem", p.Problem, "error", err)
						rep.Skipped++
						continue
					}
					if err != nil {
						return rep, err
					}
					if seen[a.Name] {
						rep.Duplicates++
						continue
					}
					if err := a.Write(dir); err != nil {
						return rep, err
					}
					seen[a.Name] = true
					rep.Written++
				}
			}
		}
	}
	return rep, nil
}

// fastestValid keeps the first timed solution not marked invalid. Entries
// arrive fastest mean first.
func fastestValid(sols []benchdb.SolutionEntry) []benchdb.SolutionEntry {
	for _, e := range sols {
		if len(e.Benchmark.Times) > 0 && e.Benchmark.ValidationStatus != contraction.ValidationInvalid {
			return []benchdb.SolutionEntry{e}
		}
	}
	return nil
}
