package katib

import (
	"strings"
	"testing"

	"github.com/tunelab/trialrun/internal/pkg/errors"
)

func fullEnv() map[string]string {
	return map[string]string{
		EnvBaseURL:   "https://katib.example.com",
		EnvNamespace: "research",
		EnvTrialName: "sweep-7",
	}
}

func TestFromEnv_AllAbsent(t *testing.T) {
	info, err := FromEnv(map[string]string{})
	if err != nil {
		t.Fatalf("FromEnv() error = %v, want nil", err)
	}
	if info != nil {
		t.Fatalf("FromEnv() = %+v, want nil outside a trial context", info)
	}
}

func TestFromEnv_PartialPresence(t *testing.T) {
	tests := []struct {
		name string
		keep []string
	}{
		{"only base url", []string{EnvBaseURL}},
		{"only namespace", []string{EnvNamespace}},
		{"only trial name", []string{EnvTrialName}},
		{"base url and namespace", []string{EnvBaseURL, EnvNamespace}},
		{"base url and trial name", []string{EnvBaseURL, EnvTrialName}},
		{"namespace and trial name", []string{EnvNamespace, EnvTrialName}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := map[string]string{}
			full := fullEnv()
			for _, k := range tt.keep {
				env[k] = full[k]
			}

			_, err := FromEnv(env)
			if err == nil {
				t.Fatal("FromEnv() should fail on partial presence")
			}
			if !errors.IsConfiguration(err) {
				t.Errorf("error code = %s, want %s", errors.CodeOf(err), errors.CodeConfiguration)
			}
		})
	}
}

func TestFromEnv_EmptyValues(t *testing.T) {
	for _, key := range []string{EnvBaseURL, EnvNamespace, EnvTrialName} {
		t.Run(key, func(t *testing.T) {
			env := fullEnv()
			env[key] = ""

			_, err := FromEnv(env)
			if err == nil {
				t.Fatal("FromEnv() should fail on empty value")
			}
			if !errors.IsValidation(err) {
				t.Errorf("error code = %s, want %s", errors.CodeOf(err), errors.CodeValidation)
			}
			if !strings.Contains(err.Error(), key) {
				t.Errorf("error %q should name the offending variable %s", err.Error(), key)
			}
		})
	}
}

func TestFromEnv_ExperimentNameDerivation(t *testing.T) {
	tests := []struct {
		trialName string
		want      string
	}{
		{"sweep-7", "sweep"},
		{"lr-sweep-42", "lr-sweep"},
		{"a-b", "a"},
	}

	for _, tt := range tests {
		t.Run(tt.trialName, func(t *testing.T) {
			env := fullEnv()
			env[EnvTrialName] = tt.trialName

			info, err := FromEnv(env)
			if err != nil {
				t.Fatalf("FromEnv() error = %v", err)
			}
			if info.ExperimentName != tt.want {
				t.Errorf("ExperimentName = %q, want %q", info.ExperimentName, tt.want)
			}
		})
	}
}

func TestFromEnv_UnderivableExperimentName(t *testing.T) {
	for _, trialName := range []string{"trial", "-7"} {
		t.Run(trialName, func(t *testing.T) {
			env := fullEnv()
			env[EnvTrialName] = trialName

			_, err := FromEnv(env)
			if err == nil {
				t.Fatal("FromEnv() should fail when no experiment name is derivable")
			}
			if !errors.IsValidation(err) {
				t.Errorf("error code = %s, want %s", errors.CodeOf(err), errors.CodeValidation)
			}
		})
	}
}

func TestExperimentURL(t *testing.T) {
	info, err := FromEnv(fullEnv())
	if err != nil {
		t.Fatalf("FromEnv() error = %v", err)
	}

	want := "https://katib.example.com/katib/experiment/sweep"
	if got := info.ExperimentURL(); got != want {
		t.Errorf("ExperimentURL() = %q, want %q", got, want)
	}
}

func TestTags(t *testing.T) {
	info, err := FromEnv(fullEnv())
	if err != nil {
		t.Fatalf("FromEnv() error = %v", err)
	}

	tags := info.Tags()
	if len(tags) != 4 {
		t.Fatalf("Tags() returned %d entries, want 4", len(tags))
	}

	want := map[string]string{
		TagNamespace:      "research",
		TagExperimentName: "sweep",
		TagExperimentURL:  "https://katib.example.com/katib/experiment/sweep",
		TagTrialName:      "sweep-7",
	}
	for k, v := range want {
		if tags[k] != v {
			t.Errorf("Tags()[%s] = %q, want %q", k, tags[k], v)
		}
	}
}
