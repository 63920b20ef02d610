// Package mlflow provides a minimal HTTP client for the MLflow tracking
// REST API, covering only what a single-shot trial worker needs: resolve an
// experiment, open a run, record params/tags/metrics, close the run.
package mlflow

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Run statuses understood by the tracking service.
const (
	StatusRunning  = "RUNNING"
	StatusFinished = "FINISHED"
	StatusFailed   = "FAILED"
)

// ErrorCodeNotFound is returned by the tracking service when a resource
// (e.g. an experiment looked up by name) does not exist.
const ErrorCodeNotFound = "RESOURCE_DOES_NOT_EXIST"

// Client is an HTTP client for an MLflow-compatible tracking server.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Config configures the client.
type Config struct {
	// BaseURL is the base URL of the tracking server.
	BaseURL string

	// Timeout is the request timeout.
	Timeout time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		BaseURL: "http://localhost:5000",
		Timeout: 30 * time.Second,
	}
}

// New creates a new tracking client.
func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:5000"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// APIError is an error response from the tracking server.
type APIError struct {
	Code    string `json:"error_code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsNotFound reports whether err is a tracking-server not-found error.
func IsNotFound(err error) bool {
	apiErr, ok := err.(*APIError)
	return ok && apiErr.Code == ErrorCodeNotFound
}

// Experiment is a named group of runs on the tracking server.
type Experiment struct {
	ExperimentID string `json:"experiment_id"`
	Name         string `json:"name"`
}

// RunInfo identifies an open run on the tracking server.
type RunInfo struct {
	RunID        string `json:"run_id"`
	ExperimentID string `json:"experiment_id"`
	Status       string `json:"status"`
}

// RunTag is the key/value shape the runs API uses for tags.
type RunTag struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Mkdirs creates the given workspace directory and all its ancestors.
// Idempotent: succeeds when the directory already exists. The tracking
// store does not auto-create experiment ancestors, so this must be called
// before creating an experiment under a nested path.
func (c *Client) Mkdirs(ctx context.Context, path string) error {
	req := map[string]string{"path": path}
	return c.post(ctx, "/api/2.0/workspace/mkdirs", req, nil)
}

// GetExperimentByName looks up an experiment by its full path name.
func (c *Client) GetExperimentByName(ctx context.Context, name string) (*Experiment, error) {
	var resp struct {
		Experiment Experiment `json:"experiment"`
	}
	path := "/api/2.0/mlflow/experiments/get-by-name?experiment_name=" + url.QueryEscape(name)
	if err := c.get(ctx, path, &resp); err != nil {
		return nil, err
	}
	return &resp.Experiment, nil
}

// CreateExperiment creates an experiment and returns its id.
func (c *Client) CreateExperiment(ctx context.Context, name string) (string, error) {
	req := map[string]string{"name": name}
	var resp struct {
		ExperimentID string `json:"experiment_id"`
	}
	if err := c.post(ctx, "/api/2.0/mlflow/experiments/create", req, &resp); err != nil {
		return "", err
	}
	return resp.ExperimentID, nil
}

// EnsureExperiment resolves the experiment at path, creating its parent
// directories and the experiment itself when missing.
func (c *Client) EnsureExperiment(ctx context.Context, path string) (*Experiment, error) {
	if parent := parentPath(path); parent != "" {
		if err := c.Mkdirs(ctx, parent); err != nil {
			return nil, fmt.Errorf("creating parent directories for %s: %w", path, err)
		}
	}

	exp, err := c.GetExperimentByName(ctx, path)
	if err == nil {
		return exp, nil
	}
	if !IsNotFound(err) {
		return nil, err
	}

	id, err := c.CreateExperiment(ctx, path)
	if err != nil {
		return nil, err
	}
	return &Experiment{ExperimentID: id, Name: path}, nil
}

// CreateRun opens a run under the given experiment.
func (c *Client) CreateRun(ctx context.Context, experimentID, runName string, tags map[string]string) (*RunInfo, error) {
	req := struct {
		ExperimentID string   `json:"experiment_id"`
		RunName      string   `json:"run_name"`
		StartTime    int64    `json:"start_time"`
		Tags         []RunTag `json:"tags,omitempty"`
	}{
		ExperimentID: experimentID,
		RunName:      runName,
		StartTime:    time.Now().UnixMilli(),
		Tags:         toRunTags(tags),
	}

	var resp struct {
		Run struct {
			Info RunInfo `json:"info"`
		} `json:"run"`
	}
	if err := c.post(ctx, "/api/2.0/mlflow/runs/create", req, &resp); err != nil {
		return nil, err
	}
	return &resp.Run.Info, nil
}

// LogMetric records a step-indexed metric value on a run.
func (c *Client) LogMetric(ctx context.Context, runID, key string, value float64, step int64) error {
	req := struct {
		RunID     string  `json:"run_id"`
		Key       string  `json:"key"`
		Value     float64 `json:"value"`
		Timestamp int64   `json:"timestamp"`
		Step      int64   `json:"step"`
	}{
		RunID:     runID,
		Key:       key,
		Value:     value,
		Timestamp: time.Now().UnixMilli(),
		Step:      step,
	}
	return c.post(ctx, "/api/2.0/mlflow/runs/log-metric", req, nil)
}

// LogParam records a run parameter.
func (c *Client) LogParam(ctx context.Context, runID, key, value string) error {
	req := struct {
		RunID string `json:"run_id"`
		Key   string `json:"key"`
		Value string `json:"value"`
	}{RunID: runID, Key: key, Value: value}
	return c.post(ctx, "/api/2.0/mlflow/runs/log-parameter", req, nil)
}

// SetTag sets a tag on a run.
func (c *Client) SetTag(ctx context.Context, runID, key, value string) error {
	req := struct {
		RunID string `json:"run_id"`
		Key   string `json:"key"`
		Value string `json:"value"`
	}{RunID: runID, Key: key, Value: value}
	return c.post(ctx, "/api/2.0/mlflow/runs/set-tag", req, nil)
}

// UpdateRun transitions a run to the given terminal status.
func (c *Client) UpdateRun(ctx context.Context, runID, status string) error {
	req := struct {
		RunID   string `json:"run_id"`
		Status  string `json:"status"`
		EndTime int64  `json:"end_time"`
	}{RunID: runID, Status: status, EndTime: time.Now().UnixMilli()}
	return c.post(ctx, "/api/2.0/mlflow/runs/update", req, nil)
}

func toRunTags(tags map[string]string) []RunTag {
	if len(tags) == 0 {
		return nil
	}
	out := make([]RunTag, 0, len(tags))
	for k, v := range tags {
		out = append(out, RunTag{Key: k, Value: v})
	}
	return out
}

func parentPath(path string) string {
	idx := strings.LastIndex(path, "/")
	if idx <= 0 {
		return ""
	}
	return path[:idx]
}

// get performs a GET request.
func (c *Client) get(ctx context.Context, path string, result interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	return c.do(req, result)
}

// post performs a POST request.
func (c *Client) post(ctx context.Context, path string, body, result interface{}) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	return c.do(req, result)
}

// do executes a request.
func (c *Client) do(req *http.Request, result interface{}) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var apiErr APIError
		if err := json.Unmarshal(body, &apiErr); err != nil || apiErr.Code == "" {
			return fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(body))
		}
		return &apiErr
	}

	if result != nil && len(body) > 0 {
		if err := json.Unmarshal(body, result); err != nil {
			return fmt.Errorf("failed to unmarshal response: %w", err)
		}
	}

	return nil
}
