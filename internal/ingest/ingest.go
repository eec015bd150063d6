// Package ingest builds benchmark databases and problem trees from many
// trace files at once. Each file is decoded into its own structure on a
// worker; the parts are merged serially in input order.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/samcharles93/tensile/internal/benchdb"
	"github.com/samcharles93/tensile/internal/indexing"
	"github.com/samcharles93/tensile/internal/logger"
	"github.com/samcharles93/tensile/pkg/tracefmt"
)

// TraceExt is the extension picked up when a directory is given.
const TraceExt = ".xml"

// Options configure an ingestion run.
type Options struct {
	// Workers bounds concurrent file decodes. Zero or less uses GOMAXPROCS.
	Workers int
	// Trace configures every decoder. Mode is set by the entry point. A nil
	// Resolver uses indexing.Default.
	Trace tracefmt.Options
}

func (o Options) workers() int {
	if o.Workers > 0 {
		return o.Workers
	}
	return runtime.GOMAXPROCS(0)
}

func (o Options) trace(mode tracefmt.Mode) tracefmt.Options {
	t := o.Trace
	t.Mode = mode
	if t.Resolver == nil {
		t.Resolver = indexing.Default
	}
	return t
}

// FileError reports an input file whose records were skipped, or whose
// validation reports conflicted within the file or with earlier files.
type FileError struct {
	Path string
	Err  error
}

func (e FileError) Error() string { return e.Path + ": " + e.Err.Error() }

func (e FileError) Unwrap() error { return e.Err }

// Expand replaces each directory in paths with its trace files in sorted
// order. Other paths are kept as given.
func Expand(paths []string) ([]string, error) {
	var out []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("ingest: %w", err)
		}
		if !info.IsDir() {
			out = append(out, p)
			continue
		}
		entries, err := os.ReadDir(p)
		if err != nil {
			return nil, fmt.Errorf("ingest: %w", err)
		}
		var files []string
		for _, e := range entries {
			if e.Type().IsRegular() && strings.EqualFold(filepath.Ext(e.Name()), TraceExt) {
				files = append(files, filepath.Join(p, e.Name()))
			}
		}
		slices.Sort(files)
		out = append(out, files...)
	}
	return out, nil
}

// Files decodes timing and validation records from paths into a single
// database. Malformed files are reported in the returned FileErrors and
// contribute nothing. Validation conflicts are reported too, but the file's
// records are kept, so the result does not depend on how records are split
// across files. The error is non-nil only when paths cannot be expanded or
// ctx ends.
func Files(ctx context.Context, paths []string, opts Options) (*benchdb.Database, []FileError, error) {
	topts := opts.trace(tracefmt.ModeSolutions)
	return run(ctx, paths, opts, topts,
		func() *benchdb.Database { return benchdb.New(topts.Resolver) },
		func(db *benchdb.Database) tracefmt.Handler { return db.TraceHandler() },
		(*benchdb.Database).Merge,
	)
}

// ProblemFiles collects the distinct problems of paths into a problem tree.
func ProblemFiles(ctx context.Context, paths []string, opts Options) (*benchdb.ProblemTree, []FileError, error) {
	return run(ctx, paths, opts, opts.trace(tracefmt.ModeProblems),
		benchdb.NewProblemTree,
		(*benchdb.ProblemTree).TraceHandler,
		func(dst, src *benchdb.ProblemTree) error {
			dst.Merge(src)
			return nil
		},
	)
}

func run[T any](
	ctx context.Context,
	paths []string,
	opts Options,
	topts tracefmt.Options,
	newPart func() T,
	handler func(T) tracefmt.Handler,
	merge func(dst, src T) error,
) (T, []FileError, error) {
	var zero T
	files, err := Expand(paths)
	if err != nil {
		return zero, nil, err
	}

	log := logger.FromContext(ctx).With("run", uuid.NewString())
	start := time.Now()
	log.Info("ingest started", "files", len(files), "workers", opts.workers())

	parts := make([]T, len(files))
	errs := make([]error, len(files))
	conflicts := make([]error, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.workers())
	for i, path := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			part := newPart()
			h := handler(part)
			n, err := decodeFile(gctx, path, topts, h)
			if err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				errs[i] = err
				return nil
			}
			if c, ok := h.(conflictReporter); ok {
				conflicts[i] = c.Conflicts()
			}
			parts[i] = part
			log.Debug("trace decoded", "path", path, "records", n)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return zero, nil, fmt.Errorf("ingest: %w", err)
	}

	out := newPart()
	var failed []FileError
	for i, path := range files {
		if errs[i] != nil {
			filesFailed.Inc()
			failed = append(failed, FileError{Path: path, Err: errs[i]})
			log.Warn("trace skipped", "path", path, "error", errs[i])
			continue
		}
		if err := errors.Join(conflicts[i], merge(out, parts[i])); err != nil {
			failed = append(failed, FileError{Path: path, Err: err})
			log.Warn("trace merged with conflicts", "path", path, "error", err)
		}
	}
	log.Info("ingest finished", "files", len(files), "failed", len(failed), "elapsed", time.Since(start))
	return out, failed, nil
}

// conflictReporter is implemented by handlers that keep going past
// integrity conflicts.
type conflictReporter interface {
	Conflicts() error
}

func decodeFile(ctx context.Context, path string, opts tracefmt.Options, h tracefmt.Handler) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	c := &counter{next: h}
	if err := tracefmt.Decode(ctxReader{ctx: ctx, r: f}, opts, c); err != nil {
		return c.n, err
	}
	return c.n, nil
}

// ctxReader stops a decode once ctx ends.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (r ctxReader) Read(p []byte) (int, error) {
	if err := r.ctx.Err(); err != nil {
		return 0, err
	}
	return r.r.Read(p)
}
