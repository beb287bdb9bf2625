package runner

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/uiflow/uiflow/pkg/schema"
)

// RunAll executes scenarios with at most cfg.Workers running
// concurrently. Each scenario owns its own browser context, artifact
// directory and variable environment; the only shared state is the
// immutable step registry. Result order follows input order.
func (r *Runner) RunAll(ctx context.Context, scenarios []*schema.Scenario, cfg Config) ([]*ScenarioResult, error) {
	cfg = cfg.withDefaults()
	results := make([]*ScenarioResult, len(scenarios))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Workers)

	for i, scenario := range scenarios {
		g.Go(func() error {
			res, err := r.Run(gctx, scenario, cfg)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, nil
}
