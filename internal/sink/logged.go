package sink

import (
	"context"

	"github.com/tunelab/trialrun/internal/pkg/logger"
)

// LoggedSink wraps another sink and logs every record that flows through
// it. Useful when debugging what a trial actually reported.
type LoggedSink struct {
	inner Sink
	log   *logger.Logger
}

// NewLoggedSink creates a logged sink that wraps an inner sink.
func NewLoggedSink(inner Sink, log *logger.Logger) *LoggedSink {
	if log == nil {
		log = logger.Default()
	}
	return &LoggedSink{
		inner: inner,
		log:   log.WithSink(inner.Name()),
	}
}

// Name implements Sink.
func (s *LoggedSink) Name() string { return s.inner.Name() }

// Record logs the metric and delegates to the inner sink.
func (s *LoggedSink) Record(ctx context.Context, m Metric) error {
	s.log.Debug("recording metric",
		"name", m.Name,
		"value", m.Value,
		"step", m.Step,
	)
	return s.inner.Record(ctx, m)
}

// RecordParams logs and delegates when the inner sink accepts params.
func (s *LoggedSink) RecordParams(ctx context.Context, params map[string]float64) error {
	pr, ok := s.inner.(ParamRecorder)
	if !ok {
		return nil
	}
	s.log.Debug("recording params", "count", len(params))
	return pr.RecordParams(ctx, params)
}

// RecordTags logs and delegates when the inner sink accepts tags.
func (s *LoggedSink) RecordTags(ctx context.Context, tags map[string]string) error {
	tr, ok := s.inner.(TagRecorder)
	if !ok {
		return nil
	}
	s.log.Debug("recording tags", "count", len(tags))
	return tr.RecordTags(ctx, tags)
}

// MarkFailed delegates to the inner sink when it is failure-aware.
func (s *LoggedSink) MarkFailed() {
	if fm, ok := s.inner.(FailureMarker); ok {
		fm.MarkFailed()
	}
}

// Close delegates to the inner sink.
func (s *LoggedSink) Close() error {
	return s.inner.Close()
}
