package sink

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/tunelab/trialrun/internal/pkg/errors"
)

// StdoutSink writes one deterministic `name=value` line per metric to
// standard output, for workers whose sidecar collector scrapes stdout
// rather than a metrics side-channel.
type StdoutSink struct {
	w io.Writer
}

// NewStdoutSink creates a stdout sink.
func NewStdoutSink() *StdoutSink {
	return &StdoutSink{w: os.Stdout}
}

// NewWriterSink creates a plain-text sink writing to w.
func NewWriterSink(w io.Writer) *StdoutSink {
	return &StdoutSink{w: w}
}

// Name implements Sink.
func (s *StdoutSink) Name() string { return "stdout" }

// Record writes the metric line.
func (s *StdoutSink) Record(ctx context.Context, m Metric) error {
	line := m.Name + "=" + strconv.FormatFloat(m.Value, 'g', -1, 64) + "\n"
	if _, err := fmt.Fprint(s.w, line); err != nil {
		return errors.Wrap(errors.CodeSink, "failed to write metric line", err)
	}
	return nil
}

// Close is a no-op: the sink does not own stdout.
func (s *StdoutSink) Close() error {
	return nil
}
