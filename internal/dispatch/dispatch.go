// Package dispatch provides a fire-and-collect pattern for callers that
// submit N independent trial computations and block until every one of
// them completes. No retry, no partial results, no ordering guarantee
// among workers; each unit owns its own state.
package dispatch

import (
	"context"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/tunelab/trialrun/internal/pkg/errors"
)

// Unit is one independent computation producing a scalar result.
type Unit func(ctx context.Context) (float64, error)

// Config configures a Pool.
type Config struct {
	// SubmitRate limits how many units are launched per second.
	// Zero means unlimited.
	SubmitRate float64

	// Burst is the maximum submission burst size. Defaults to 1 when a
	// rate is set.
	Burst int

	// MaxConcurrent caps the number of units running at once.
	// Zero means unlimited.
	MaxConcurrent int
}

// Pool submits units and gathers their results.
type Pool struct {
	limiter       *rate.Limiter
	maxConcurrent int
}

// NewPool creates a pool.
func NewPool(cfg Config) *Pool {
	var limiter *rate.Limiter
	if cfg.SubmitRate > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.SubmitRate), burst)
	}

	return &Pool{
		limiter:       limiter,
		maxConcurrent: cfg.MaxConcurrent,
	}
}

// Collect submits every unit and blocks until all complete. Results are
// indexed by submission position. Any unit failure fails the whole batch
// and cancels the units still running.
func (p *Pool) Collect(ctx context.Context, units []Unit) ([]float64, error) {
	if len(units) == 0 {
		return nil, nil
	}

	results := make([]float64, len(units))

	g, ctx := errgroup.WithContext(ctx)
	if p.maxConcurrent > 0 {
		g.SetLimit(p.maxConcurrent)
	}

	for i, unit := range units {
		i, unit := i, unit
		if p.limiter != nil {
			if err := p.limiter.Wait(ctx); err != nil {
				// The wait usually aborts because a unit already failed
				// and canceled the batch; that unit's error is the one
				// worth reporting.
				if waitErr := g.Wait(); waitErr != nil {
					return nil, waitErr
				}
				return nil, errors.Wrap(errors.CodeInternal, "batch submission aborted", err)
			}
		}

		g.Go(func() error {
			v, err := unit(ctx)
			if err != nil {
				return err
			}
			results[i] = v
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
