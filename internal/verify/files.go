package verify

import (
	"context"
	"fmt"
	"runtime"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/qntx/sumx/internal/host"
	"github.com/qntx/sumx/internal/logging"
)

// Files loads each WebAssembly artifact in its own runtime and verifies it.
// Reports are returned in the order of paths. A load failure aborts the
// remaining work; check failures do not.
func Files(ctx context.Context, paths []string, limit int, log *zap.Logger) ([]*Report, error) {
	log = logging.OrNop(log)
	if limit <= 0 {
		limit = runtime.GOMAXPROCS(0)
	}

	reports := make([]*Report, len(paths))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for i, path := range paths {
		g.Go(func() error {
			m, err := host.LoadFile(ctx, path, host.WithLogger(log.With(zap.String("artifact", path))))
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			defer m.Close(ctx)

			reports[i] = Run(ctx, path, m)
			log.Debug("verified", zap.String("artifact", path), zap.Bool("ok", reports[i].OK()))
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return reports, nil
}
