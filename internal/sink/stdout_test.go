package sink

import (
	"bytes"
	"context"
	"testing"
)

func TestStdoutSink_Line(t *testing.T) {
	tests := []struct {
		name   string
		metric Metric
		want   string
	}{
		{"whole value", Metric{Name: "loss", Value: 9.0, Step: 0}, "loss=9\n"},
		{"fractional value", Metric{Name: "loss", Value: 0.25, Step: 0}, "loss=0.25\n"},
		{"other metric name", Metric{Name: "accuracy", Value: 0.5, Step: 3}, "accuracy=0.5\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			s := NewWriterSink(&buf)

			if err := s.Record(context.Background(), tt.metric); err != nil {
				t.Fatalf("Record() error = %v", err)
			}
			if buf.String() != tt.want {
				t.Errorf("output = %q, want %q", buf.String(), tt.want)
			}
		})
	}
}

func TestStdoutSink_Close(t *testing.T) {
	s := NewStdoutSink()
	if err := s.Close(); err != nil {
		t.Errorf("Close() error = %v, want nil (sink does not own stdout)", err)
	}
}
