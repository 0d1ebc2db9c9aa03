package build

import (
	"context"
	"fmt"
	"runtime"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/qntx/sumx/internal/logging"
	"github.com/qntx/sumx/internal/zig"
)

// Runner builds several targets with bounded parallelism.
type Runner struct {
	Root string
	Jobs int
	Log  *zap.Logger

	// EnsureZig resolves a Zig installation. Defaults to zig.Ensure.
	EnsureZig func(ctx context.Context, version string) (string, error)

	// Hooks, called from worker goroutines.
	OnStart func(idx, total int, o *Options)
	OnDone  func(res *Result, o *Options, err error)

	configure func(*Builder)
}

// Run normalizes, validates and builds every target. It returns results in
// input order; the first failure cancels builds that have not started.
func (r *Runner) Run(ctx context.Context, targets []*Options) ([]*Result, error) {
	log := logging.OrNop(r.Log)

	for _, o := range targets {
		o.Normalize()
		if err := o.Validate(); err != nil {
			return nil, fmt.Errorf("%s: %w", o.Name, err)
		}
	}

	zigPaths, err := r.resolveZig(ctx, targets)
	if err != nil {
		return nil, err
	}

	jobs := r.Jobs
	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}

	results := make([]*Result, len(targets))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(jobs)

	for i, o := range targets {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if r.OnStart != nil {
				r.OnStart(i, len(targets), o)
			}

			var zigPath string
			if o.CrossCgo() {
				zigPath = zigPaths[o.ZigVersion]
			}
			b := New(r.Root, zigPath, o, log.With(zap.String("target", o.Name)))
			if r.configure != nil {
				r.configure(b)
			}

			res, err := b.Run(gctx)
			if r.OnDone != nil {
				r.OnDone(res, o, err)
			}
			if err != nil {
				return fmt.Errorf("%s: %w", o.Name, err)
			}
			results[i] = res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// resolveZig fetches each needed Zig version once, before any build starts,
// so parallel builds never race on the download.
func (r *Runner) resolveZig(ctx context.Context, targets []*Options) (map[string]string, error) {
	ensure := r.EnsureZig
	if ensure == nil {
		ensure = zig.Ensure
	}

	paths := make(map[string]string)
	for _, o := range targets {
		if !o.CrossCgo() {
			continue
		}
		if _, ok := paths[o.ZigVersion]; ok {
			continue
		}
		path, err := ensure(ctx, o.ZigVersion)
		if err != nil {
			return nil, fmt.Errorf("zig: %w", err)
		}
		paths[o.ZigVersion] = path
	}
	return paths, nil
}
