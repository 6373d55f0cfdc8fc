// Package sandbox executes participant-submitted visualization code in a
// Python subprocess and captures stdout, stderr and at most one rendered plot
// per cell.
//
// One interpreter is spawned per call, so the plotting library's global state
// (style registry, open figures) is isolated between concurrent executions by
// construction. A slot semaphore bounds the number of live interpreters and a
// wall-clock timeout bounds hangs.
package sandbox

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"time"

	"go.uber.org/zap"
)

//go:embed harness.py
var harnessSource string

// Result is the captured output of one executed code body or cell.
type Result struct {
	Stdout string  `json:"stdout"`
	Stderr string  `json:"stderr"`
	Plot   *string `json:"plot"` // base64 PNG, nil when nothing was drawn
}

type harnessRequest struct {
	Mode    string   `json:"mode"`
	Code    string   `json:"code,omitempty"`
	Cells   []string `json:"cells,omitempty"`
	Dataset string   `json:"dataset,omitempty"`
}

type harnessResponse struct {
	Results []Result `json:"results"`
}

// Runner shells out to a Python interpreter running the embedded harness.
type Runner struct {
	python  string
	dataset string
	timeout time.Duration
	slots   chan struct{}
	log     *zap.Logger
}

// Option configures a Runner.
type Option func(*Runner)

// WithPython overrides the interpreter binary (default python3).
func WithPython(bin string) Option { return func(r *Runner) { r.python = bin } }

// WithDataset sets the CSV preloaded as df/df_wage in notebook cells.
func WithDataset(path string) Option { return func(r *Runner) { r.dataset = path } }

// WithTimeout bounds the wall-clock duration of one execution.
func WithTimeout(d time.Duration) Option { return func(r *Runner) { r.timeout = d } }

// WithLogger attaches a logger (default is a nop logger).
func WithLogger(l *zap.Logger) Option { return func(r *Runner) { r.log = l } }

// WithMaxConcurrent bounds the number of live interpreters.
func WithMaxConcurrent(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.slots = make(chan struct{}, n)
		}
	}
}

// New constructs a Runner with defaults taken from the environment:
//
//	VIZLAB_SANDBOX_PYTHON: interpreter binary (default python3)
//	VIZLAB_SANDBOX_DATASET: shared CSV preloaded as df (optional)
//	VIZLAB_SANDBOX_TIMEOUT_SECONDS: execution timeout (default 30)
//	VIZLAB_SANDBOX_MAX_CONCURRENT: interpreter slot count (default 4)
func New(opts ...Option) *Runner {
	r := &Runner{
		python:  envOr("VIZLAB_SANDBOX_PYTHON", "python3"),
		dataset: os.Getenv("VIZLAB_SANDBOX_DATASET"),
		timeout: envDurationSeconds("VIZLAB_SANDBOX_TIMEOUT_SECONDS", 30*time.Second),
		slots:   make(chan struct{}, envInt("VIZLAB_SANDBOX_MAX_CONCURRENT", 4)),
		log:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RunSingle executes one code body against a fresh plotting namespace.
// User-code faults land in Result.Stderr with a "Code Error:" prefix and are
// never returned as errors; the error return covers sandbox faults only
// (missing interpreter, timeout, protocol corruption).
func (r *Runner) RunSingle(ctx context.Context, code string) (Result, error) {
	results, err := r.invoke(ctx, harnessRequest{Mode: "single", Code: code})
	if err != nil {
		return Result{}, err
	}
	if len(results) != 1 {
		return Result{}, fmt.Errorf("sandbox: expected 1 result, got %d", len(results))
	}
	return results[0], nil
}

// RunCells executes an ordered cell sequence against one shared namespace,
// notebook-style: variables persist across cells, figures do not, and a
// failing cell does not abort the cells after it.
func (r *Runner) RunCells(ctx context.Context, cells []string) ([]Result, error) {
	if len(cells) == 0 {
		return []Result{}, nil
	}
	return r.invoke(ctx, harnessRequest{Mode: "cells", Cells: cells, Dataset: r.dataset})
}

func (r *Runner) invoke(ctx context.Context, req harnessRequest) ([]Result, error) {
	select {
	case r.slots <- struct{}{}:
		defer func() { <-r.slots }()
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	execCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("sandbox: encode request: %w", err)
	}

	cmd := exec.CommandContext(execCtx, r.python, "-c", harnessSource)
	cmd.Stdin = bytes.NewReader(payload)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	runErr := cmd.Run()
	elapsed := time.Since(start)
	r.log.Debug("sandbox execution finished",
		zap.String("mode", req.Mode),
		zap.Duration("elapsed", elapsed),
		zap.Bool("ok", runErr == nil))

	if execCtx.Err() == context.DeadlineExceeded {
		return nil, fmt.Errorf("sandbox: execution exceeded %s", r.timeout)
	}
	if runErr != nil {
		return nil, fmt.Errorf("sandbox: interpreter failed: %w (stderr: %s)", runErr, truncate(stderr.String(), 512))
	}

	var resp harnessResponse
	if err := json.Unmarshal(stdout.Bytes(), &resp); err != nil {
		return nil, fmt.Errorf("sandbox: decode harness output: %w", err)
	}
	return resp.Results, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}

func envDurationSeconds(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return time.Duration(n) * time.Second
		}
	}
	return fallback
}
