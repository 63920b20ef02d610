package sink

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/tunelab/trialrun/internal/pkg/errors"
)

// EventFileName is the scalar event file created under the configured
// event directory. The sidecar collector tails this file by path.
const EventFileName = "scalars.jsonl"

// Event record types written to the scalar event file.
const (
	eventTypeScalar  = "scalar"
	eventTypeHParams = "hparams"
)

// scalarEvent is one line of the event file.
type scalarEvent struct {
	Type      string             `json:"type"`
	Name      string             `json:"name,omitempty"`
	Value     float64            `json:"value"`
	Step      int64              `json:"step"`
	Params    map[string]float64 `json:"params,omitempty"`
	Timestamp time.Time          `json:"timestamp"`
}

// EventWriter appends scalar metric points to a JSON-lines event file under
// a configured directory. Each record is synced to disk immediately so the
// sidecar log-tailer always sees complete, well-formed lines.
type EventWriter struct {
	path    string
	mu      sync.Mutex
	file    *os.File
	encoder *json.Encoder
}

// NewEventWriter opens (creating if needed) the scalar event file under dir.
func NewEventWriter(dir string) (*EventWriter, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errors.Wrap(errors.CodeSink, "failed to create event directory", err)
	}

	path := filepath.Join(dir, EventFileName)
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, errors.Wrap(errors.CodeSink, "failed to open event file", err)
	}

	return &EventWriter{
		path:    path,
		file:    file,
		encoder: json.NewEncoder(file),
	}, nil
}

// Name implements Sink.
func (w *EventWriter) Name() string { return "events" }

// Path returns the event file path.
func (w *EventWriter) Path() string { return w.path }

// Record appends one scalar point and syncs it to disk.
func (w *EventWriter) Record(ctx context.Context, m Metric) error {
	return w.write(scalarEvent{
		Type:      eventTypeScalar,
		Name:      m.Name,
		Value:     m.Value,
		Step:      m.Step,
		Timestamp: time.Now(),
	})
}

// RecordParams appends one hyperparameter record.
func (w *EventWriter) RecordParams(ctx context.Context, params map[string]float64) error {
	return w.write(scalarEvent{
		Type:      eventTypeHParams,
		Params:    params,
		Timestamp: time.Now(),
	})
}

func (w *EventWriter) write(ev scalarEvent) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return errors.New(errors.CodeSink, "event writer is closed")
	}

	if err := w.encoder.Encode(ev); err != nil {
		return errors.Wrap(errors.CodeSink, "failed to encode event", err)
	}

	// Flush so a partially-observed file never ends mid-record
	if err := w.file.Sync(); err != nil {
		return errors.Wrap(errors.CodeSink, "failed to sync event file", err)
	}

	return nil
}

// Close flushes and releases the file handle.
func (w *EventWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return nil
	}

	err := w.file.Close()
	w.file = nil
	w.encoder = nil
	if err != nil {
		return errors.Wrap(errors.CodeSink, "failed to close event file", err)
	}
	return nil
}
