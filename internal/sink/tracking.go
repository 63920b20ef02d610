package sink

import (
	"context"
	"strconv"
	"sync"

	"github.com/tunelab/trialrun/internal/katib"
	"github.com/tunelab/trialrun/internal/mlflow"
	"github.com/tunelab/trialrun/internal/pkg/errors"
)

// TrackingSink records metrics, params and tags to a run on an
// MLflow-compatible tracking server. The run is opened when the sink is
// constructed and marked FINISHED (or FAILED, see MarkFailed) when the sink
// is closed, so the remote resource is never left permanently in progress.
type TrackingSink struct {
	client *mlflow.Client
	runID  string

	mu     sync.Mutex
	failed bool
	closed bool
}

// OpenTrackingSink resolves the experiment for the trial, opens a run named
// after the trial and attaches the resolved identity tags.
//
// The experiment lives at `<pathPrefix>/<experimentName>`; the tracking
// store does not auto-create ancestors, so the parent path is created first.
func OpenTrackingSink(ctx context.Context, client *mlflow.Client, info *katib.TrialInfo, pathPrefix string) (*TrackingSink, error) {
	if info == nil {
		return nil, errors.PreconditionError("tracking sink requires a resolved trial identity")
	}

	exp, err := client.EnsureExperiment(ctx, pathPrefix+"/"+info.ExperimentName)
	if err != nil {
		return nil, errors.SinkError("tracking", err)
	}

	run, err := client.CreateRun(ctx, exp.ExperimentID, info.TrialName, info.Tags())
	if err != nil {
		return nil, errors.SinkError("tracking", err)
	}

	return &TrackingSink{
		client: client,
		runID:  run.RunID,
	}, nil
}

// Name implements Sink.
func (s *TrackingSink) Name() string { return "tracking" }

// RunID returns the id of the open run.
func (s *TrackingSink) RunID() string { return s.runID }

// Record logs one step-indexed metric on the run.
func (s *TrackingSink) Record(ctx context.Context, m Metric) error {
	if err := s.client.LogMetric(ctx, s.runID, m.Name, m.Value, m.Step); err != nil {
		return errors.SinkError("tracking", err)
	}
	return nil
}

// RecordParams logs hyperparameter values as run parameters.
func (s *TrackingSink) RecordParams(ctx context.Context, params map[string]float64) error {
	for k, v := range params {
		value := strconv.FormatFloat(v, 'g', -1, 64)
		if err := s.client.LogParam(ctx, s.runID, k, value); err != nil {
			return errors.SinkError("tracking", err)
		}
	}
	return nil
}

// RecordTags sets additional tags on the run.
func (s *TrackingSink) RecordTags(ctx context.Context, tags map[string]string) error {
	for k, v := range tags {
		if err := s.client.SetTag(ctx, s.runID, k, v); err != nil {
			return errors.SinkError("tracking", err)
		}
	}
	return nil
}

// MarkFailed records that the trial failed, so Close transitions the run to
// FAILED instead of FINISHED.
func (s *TrackingSink) MarkFailed() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failed = true
}

// Close marks the run complete. Uses a fresh context so the run status is
// still updated when the trial's context was canceled by the failure that
// is being reported.
func (s *TrackingSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	status := mlflow.StatusFinished
	if s.failed {
		status = mlflow.StatusFailed
	}

	if err := s.client.UpdateRun(context.Background(), s.runID, status); err != nil {
		return errors.SinkError("tracking", err)
	}
	return nil
}
