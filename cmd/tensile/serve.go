package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"
	"github.com/urfave/cli/v3"

	"github.com/samcharles93/tensile/internal/api"
	"github.com/samcharles93/tensile/internal/benchdb"
	"github.com/samcharles93/tensile/internal/codegen"
	"github.com/samcharles93/tensile/internal/ingest"
	"github.com/samcharles93/tensile/internal/logger"
	"github.com/samcharles93/tensile/pkg/contraction"
)

func serveCmd() *cli.Command {
	var (
		addr        string
		readTimeout time.Duration
		withTree    bool
	)

	return &cli.Command{
		Name:      "serve",
		Usage:     "Serve a benchmark database over HTTP",
		ArgsUsage: "[trace.xml | dir]...",
		Flags: append(traceFlags(),
			backendFlag(),
			&cli.StringFlag{
				Name:        "addr",
				Usage:       "listen address",
				Value:       "127.0.0.1:8080",
				Destination: &addr,
			},
			&cli.DurationFlag{
				Name:        "read-timeout",
				Usage:       "read timeout",
				Value:       30 * time.Second,
				Destination: &readTimeout,
			},
			&cli.BoolFlag{
				Name:        "problems",
				Usage:       "also build the problem tree from the same traces",
				Destination: &withTree,
			},
		),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			applyTraceConfig(cmd, cfg)
			applyServeConfig(cmd, cfg, &addr)
			log := logger.FromContext(ctx)

			b, ok := contraction.ParseBackend(backendName)
			if !ok {
				return cli.Exit(fmt.Sprintf("error: unknown backend %q", backendName), 1)
			}
			paths, err := resolveInputs(cmd.Args().Slice())
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			db, failed, err := ingest.Files(ctx, paths, ingestOptions())
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			warnFailed(ctx, failed)

			var tree *benchdb.ProblemTree
			if withTree {
				tree, failed, err = ingest.ProblemFiles(ctx, paths, ingestOptions())
				if err != nil {
					return cli.Exit(fmt.Sprintf("error: %v", err), 1)
				}
				warnFailed(ctx, failed)
			}

			server := api.NewServer(db, tree, codegen.New(b, nil))
			e := echo.New()
			e.Use(middleware.RequestLogger())
			e.Use(middleware.Recover())
			server.Register(e)
			log.Info("starting server", "address", addr, "backend", b, "solutions", db.Stats().Solutions)
			sc := echo.StartConfig{
				Address: addr,
				BeforeServeFunc: func(srv *http.Server) error {
					srv.ReadHeaderTimeout = readTimeout
					return nil
				},
			}
			return sc.Start(ctx, e)
		},
	}
}
