// Package katib provides structured access to the trial identity that a
// Katib search controller passes to worker processes through environment
// variables.
package katib

import (
	"fmt"
	"os"
	"strings"

	"github.com/tunelab/trialrun/internal/pkg/errors"
)

// Environment variable keys set by the search controller on every trial pod.
const (
	EnvBaseURL   = "KATIB_BASE_URL"
	EnvNamespace = "KATIB_NAMESPACE"
	EnvTrialName = "KATIB_TRIAL_NAME"
)

// Tag keys attached to a tracking run for a resolved trial.
const (
	TagNamespace      = "katib.namespace"
	TagExperimentName = "katib.experiment.name"
	TagExperimentURL  = "katib.experiment.url"
	TagTrialName      = "katib.trial.name"
)

// TrialInfo identifies one trial of one search experiment. It is resolved
// once at startup and never mutated.
type TrialInfo struct {
	BaseURL        string
	Namespace      string
	ExperimentName string
	TrialName      string
}

// ExperimentURL returns the search controller UI URL for the experiment this
// trial belongs to.
func (t *TrialInfo) ExperimentURL() string {
	return fmt.Sprintf("%s/katib/experiment/%s", t.BaseURL, t.ExperimentName)
}

// Tags returns run metadata for a tracking-service recorder. Always exactly
// four entries.
func (t *TrialInfo) Tags() map[string]string {
	return map[string]string{
		TagNamespace:      t.Namespace,
		TagExperimentName: t.ExperimentName,
		TagExperimentURL:  t.ExperimentURL(),
		TagTrialName:      t.TrialName,
	}
}

// FromEnv resolves trial identity from the provided environment mapping.
//
// Returns (nil, nil) when none of KATIB_BASE_URL, KATIB_NAMESPACE and
// KATIB_TRIAL_NAME are set: the worker is running outside a search-controlled
// trial context, which is a valid state, not an error.
//
// If any of the three is set, all of them must be set and non-empty, and the
// trial name must encode an experiment name as its prefix before the final
// `-<suffix>` segment.
func FromEnv(env map[string]string) (*TrialInfo, error) {
	baseURL, hasBaseURL := env[EnvBaseURL]
	namespace, hasNamespace := env[EnvNamespace]
	trialName, hasTrialName := env[EnvTrialName]

	if !hasBaseURL && !hasNamespace && !hasTrialName {
		return nil, nil
	}
	if !hasBaseURL || !hasNamespace || !hasTrialName {
		return nil, errors.ConfigurationError(fmt.Sprintf(
			"expected all environment variables `%s`, `%s` and `%s` to be set when any one of them is set",
			EnvBaseURL, EnvNamespace, EnvTrialName,
		))
	}
	if baseURL == "" {
		return nil, emptyVarError(EnvBaseURL)
	}
	if namespace == "" {
		return nil, emptyVarError(EnvNamespace)
	}
	if trialName == "" {
		return nil, emptyVarError(EnvTrialName)
	}

	experimentName, ok := experimentNameOf(trialName)
	if !ok {
		return nil, errors.ValidationError(fmt.Sprintf(
			"environment variable `%s` must contain experiment name", EnvTrialName,
		)).WithDetail("variable", EnvTrialName)
	}

	return &TrialInfo{
		BaseURL:        baseURL,
		Namespace:      namespace,
		ExperimentName: experimentName,
		TrialName:      trialName,
	}, nil
}

// experimentNameOf derives the experiment name from a trial name by trimming
// the trailing `-<suffix>` segment after the last `-`. The left part must be
// non-empty.
func experimentNameOf(trialName string) (string, bool) {
	idx := strings.LastIndex(trialName, "-")
	if idx <= 0 {
		return "", false
	}
	return trialName[:idx], true
}

func emptyVarError(key string) *errors.AppError {
	return errors.ValidationError(fmt.Sprintf(
		"environment variable `%s` may not be empty", key,
	)).WithDetail("variable", key)
}

// Environ snapshots the real process environment into the mapping shape that
// FromEnv consumes.
func Environ() map[string]string {
	env := make(map[string]string)
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			env[k] = v
		}
	}
	return env
}
