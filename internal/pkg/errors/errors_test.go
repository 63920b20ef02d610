package errors

import (
	stderrors "errors"
	"fmt"
	"testing"
)

func TestAppError_Error(t *testing.T) {
	t.Run("WithoutWrapped", func(t *testing.T) {
		err := New(CodeValidation, "trial name is malformed")
		want := "VALIDATION_ERROR: trial name is malformed"
		if err.Error() != want {
			t.Errorf("Error() = %q, want %q", err.Error(), want)
		}
	})

	t.Run("WithWrapped", func(t *testing.T) {
		inner := stderrors.New("disk full")
		err := Wrap(CodeSink, "write failed", inner)
		want := "SINK_ERROR: write failed: disk full"
		if err.Error() != want {
			t.Errorf("Error() = %q, want %q", err.Error(), want)
		}
	})
}

func TestUnwrap(t *testing.T) {
	inner := stderrors.New("connection refused")
	err := Wrap(CodeUnavailable, "tracking server unreachable", inner)

	if !stderrors.Is(err, inner) {
		t.Error("errors.Is should find the wrapped error")
	}
}

func TestExitCodes(t *testing.T) {
	tests := []struct {
		code string
		want int
	}{
		{CodeConfiguration, 2},
		{CodeValidation, 3},
		{CodePrecondition, 4},
		{CodeSink, 5},
		{CodeInternal, 1},
		{CodeTimeout, 1},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			if got := New(tt.code, "boom").ExitCode(); got != tt.want {
				t.Errorf("ExitCode() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestExitCodeOf(t *testing.T) {
	if got := ExitCodeOf(stderrors.New("plain")); got != 1 {
		t.Errorf("ExitCodeOf(plain error) = %d, want 1", got)
	}

	wrapped := fmt.Errorf("outer: %w", PreconditionError("missing event dir"))
	if got := ExitCodeOf(wrapped); got != 4 {
		t.Errorf("ExitCodeOf(wrapped precondition) = %d, want 4", got)
	}
}

func TestCodeChecks(t *testing.T) {
	err := ValidationError("environment variable `KATIB_BASE_URL` may not be empty")

	if !IsValidation(err) {
		t.Error("IsValidation should be true")
	}
	if IsConfiguration(err) {
		t.Error("IsConfiguration should be false")
	}
	if CodeOf(err) != CodeValidation {
		t.Errorf("CodeOf = %s, want %s", CodeOf(err), CodeValidation)
	}
	if CodeOf(stderrors.New("plain")) != CodeInternal {
		t.Error("plain errors should map to CodeInternal")
	}
}

func TestSinkError(t *testing.T) {
	inner := stderrors.New("broken pipe")
	err := SinkError("events", inner)

	if err.Code != CodeSink {
		t.Errorf("Code = %s, want %s", err.Code, CodeSink)
	}
	if err.Details["sink"] != "events" {
		t.Errorf("Details[sink] = %q, want %q", err.Details["sink"], "events")
	}
	if !stderrors.Is(err, inner) {
		t.Error("wrapped cause should be reachable")
	}
}
