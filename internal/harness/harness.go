// Package harness orchestrates one trial execution: resolve identity, run
// the trial computation, fan the resulting metric out to the configured
// sinks, then hold the process open long enough for the sidecar metrics
// collector to observe the result.
package harness

import (
	"context"
	"time"

	"github.com/tunelab/trialrun/internal/config"
	"github.com/tunelab/trialrun/internal/katib"
	"github.com/tunelab/trialrun/internal/pkg/logger"
	"github.com/tunelab/trialrun/internal/sink"
)

// MetricName is the objective metric every trial reports.
const MetricName = "loss"

// Objective computes the scalar objective value for a trial. The harness is
// agnostic to what it does; it only needs one float64 back. Non-finite
// values pass through unfiltered.
type Objective func(ctx context.Context, cfg *config.Config) (float64, error)

// DefaultObjective is the placeholder trial computation: the square of the
// configured hyperparameter.
func DefaultObjective(ctx context.Context, cfg *config.Config) (float64, error) {
	h := cfg.Nested.Hyperparameter
	return h * h, nil
}

// Harness runs a single trial. Strictly linear and single-threaded; every
// failure is terminal.
type Harness struct {
	cfg       *config.Config
	log       *logger.Logger
	env       map[string]string
	objective Objective
	sinks     []sink.Sink // injected sinks override the configured set
}

// Option configures a Harness.
type Option func(*Harness)

// WithEnv supplies the environment mapping used for identity resolution
// instead of the real process environment.
func WithEnv(env map[string]string) Option {
	return func(h *Harness) { h.env = env }
}

// WithObjective replaces the trial computation.
func WithObjective(obj Objective) Option {
	return func(h *Harness) { h.objective = obj }
}

// WithSinks bypasses sink construction and uses the given sinks. The
// harness takes ownership and closes them.
func WithSinks(sinks []sink.Sink) Option {
	return func(h *Harness) { h.sinks = sinks }
}

// New creates a trial harness.
func New(cfg *config.Config, log *logger.Logger, opts ...Option) *Harness {
	if log == nil {
		log = logger.Default()
	}

	h := &Harness{
		cfg:       cfg,
		log:       log,
		objective: DefaultObjective,
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.env == nil {
		h.env = katib.Environ()
	}
	return h
}

// Run executes the trial. On success it returns after the settling
// interval has elapsed; on failure it returns immediately with the error,
// after marking and closing any opened sinks.
func (h *Harness) Run(ctx context.Context) (err error) {
	// Resolve identity. Absence is a valid state: the worker may be running
	// outside a search-controlled trial context.
	info, err := katib.FromEnv(h.env)
	if err != nil {
		return err
	}

	log := h.log
	if info != nil {
		log = log.WithTrial(info.TrialName)
		log.Info("trial identity resolved",
			"experiment", info.ExperimentName,
			"namespace", info.Namespace,
			"experiment_url", info.ExperimentURL(),
		)
	} else {
		log.Info("no trial identity in environment, running standalone")
	}

	// Build sinks. All precondition checks (tracking without identity,
	// events without an event dir) fail here, before any computation runs.
	sinks := h.sinks
	if sinks == nil {
		sinks, err = sink.New(ctx, h.cfg, info, log)
		if err != nil {
			return err
		}
	}
	closed := false
	defer func() {
		if !closed {
			if closeErr := sink.CloseAll(sinks, err != nil); closeErr != nil && err == nil {
				err = closeErr
			}
		}
	}()

	// Run the trial computation.
	value, err := h.objective(ctx, h.cfg)
	if err != nil {
		return err
	}
	log.Info("trial computation finished", "value", value)

	// Record hyperparameters on every sink that accepts them, then the
	// objective metric on every sink. Sinks are independent; order among
	// them carries no meaning.
	params := map[string]float64{
		"nested.hyperparameter": h.cfg.Nested.Hyperparameter,
	}
	for _, s := range sinks {
		if pr, ok := s.(sink.ParamRecorder); ok {
			if err = pr.RecordParams(ctx, params); err != nil {
				return err
			}
		}
	}

	metric := sink.Metric{Name: MetricName, Value: value, Step: 0}
	for _, s := range sinks {
		if err = s.Record(ctx, metric); err != nil {
			return err
		}
	}
	log.Info("metric recorded", "metric", MetricName, "value", value, "sinks", len(sinks))

	// Release sink resources before the settling wait: the tracking run
	// only lives for the recording step, and the event file must be
	// complete before the sidecar scrapes it.
	closed = true
	if err = sink.CloseAll(sinks, false); err != nil {
		return err
	}

	// Hold the process open so the sidecar collector, which attaches by
	// pid after startup, has a chance to scrape the result. A blind delay:
	// no synchronization channel to the sidecar exists, so this mitigates
	// the exit race without guaranteeing against it.
	return h.settle(ctx)
}

func (h *Harness) settle(ctx context.Context) error {
	if h.cfg.Settle <= 0 {
		return nil
	}

	h.log.Debug("settling before exit", "interval", h.cfg.Settle)
	select {
	case <-time.After(h.cfg.Settle):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
