// Package sink provides metric sink implementations for trial workers.
// Each sink records a single named scalar metric at a given step; some
// variants additionally accept hyperparameter records and string tags.
package sink

import "context"

// Metric is one scalar observation produced by a trial computation.
type Metric struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
	Step  int64   `json:"step"`
}

// Sink records metrics to some downstream system. Implementations own
// their underlying resource (file handle, remote run, producer connection)
// and must release it in Close on every exit path.
type Sink interface {
	// Name identifies the sink variant in errors and logs.
	Name() string

	// Record records one metric. Failures are fatal to the trial: they
	// propagate and are never retried, so a failed sink can not silently
	// corrupt the search controller's view of trial quality.
	Record(ctx context.Context, m Metric) error

	// Close releases the sink's underlying resource.
	Close() error
}

// ParamRecorder is implemented by sinks that accept hyperparameter records.
type ParamRecorder interface {
	RecordParams(ctx context.Context, params map[string]float64) error
}

// TagRecorder is implemented by sinks that accept string tags.
type TagRecorder interface {
	RecordTags(ctx context.Context, tags map[string]string) error
}

// FailureMarker is implemented by sinks whose downstream resource carries a
// terminal status (e.g. a tracking run). When the trial fails after the sink
// was opened, the harness marks the sink failed before closing it so the
// remote resource is not left permanently in progress or falsely finished.
type FailureMarker interface {
	MarkFailed()
}

// CloseAll closes every sink, marking failure-aware sinks first when the
// trial failed. The first close error is returned; remaining sinks are
// still closed.
func CloseAll(sinks []Sink, failed bool) error {
	var firstErr error
	for _, s := range sinks {
		if failed {
			if fm, ok := s.(FailureMarker); ok {
				fm.MarkFailed()
			}
		}
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
