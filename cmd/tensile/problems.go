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
)

func problemsCmd() *cli.Command {
	return &cli.Command{
		Name:      "problems",
		Usage:     "List the problems traced for each exact match",
		ArgsUsage: "[trace.xml | dir]...",
		Flags:     append(traceFlags(), jsonFlag()),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			applyTraceConfig(cmd, cfg)

			paths, err := resolveInputs(cmd.Args().Slice())
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			tree, failed, err := ingest.ProblemFiles(ctx, paths, ingestOptions())
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			warnFailed(ctx, failed)
			return printTree(os.Stdout, tree, jsonOutput)
		},
	}
}

type treeGroupJSON struct {
	ID       string   `json:"id"`
	Profile  string   `json:"profile"`
	Match    string   `json:"match"`
	Problems []string `json:"problems"`
}

func printTree(w io.Writer, tree *benchdb.ProblemTree, asJSON bool) error {
	groups := tree.Groups()
	if asJSON {
		out := make([]treeGroupJSON, 0, len(groups))
		for _, g := range groups {
			tg := treeGroupJSON{ID: g.ID, Profile: g.Profile.LibString(), Match: g.Match.LibString()}
			for _, p := range g.Problems {
				tg.Problems = append(tg.Problems, p.String())
			}
			out = append(out, tg)
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}
	for _, g := range groups {
		if _, err := fmt.Fprintf(w, "%s  %s\n", g.ID, g.Match); err != nil {
			return err
		}
		for _, p := range g.Problems {
			if _, err := fmt.Fprintf(w, "  %s\n", p); err != nil {
				return err
			}
		}
	}
	return nil
}
