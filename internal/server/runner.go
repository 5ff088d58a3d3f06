// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package server

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/pdiddy/litreview/internal/pipeline"
	"github.com/pdiddy/litreview/internal/protocol"
)

// Runner executes one review for the HTTP surface.
type Runner interface {
	Run(ctx context.Context, req pipeline.Request) (protocol.Result, error)
}

// InProcessRunner runs the pipeline in the server process.
type InProcessRunner struct {
	Pipeline *pipeline.Pipeline
}

// Run implements Runner.
func (r *InProcessRunner) Run(ctx context.Context, req pipeline.Request) (protocol.Result, error) {
	res, err := r.Pipeline.Run(ctx, req)
	if err != nil {
		return protocol.Result{}, err
	}
	return res.Output(req), nil
}

// ExecRunner runs the review command as a subprocess and parses the result
// blocks it prints.
type ExecRunner struct {
	// Binary is the litreview executable.
	Binary string

	// ConfigFile is passed as --config when set.
	ConfigFile string
}

// Run implements Runner.
func (r *ExecRunner) Run(ctx context.Context, req pipeline.Request) (protocol.Result, error) {
	cmd := exec.CommandContext(ctx, r.Binary, r.args(req)...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	runErr := cmd.Run()

	res, err := protocol.Parse(stdout.String())
	if err == nil {
		return res, nil
	}
	var payload *protocol.ErrorPayload
	if errors.As(err, &payload) {
		return protocol.Result{}, payload
	}
	if runErr != nil {
		return protocol.Result{}, eris.Wrapf(runErr, "review command failed: %s", tail(stderr.String(), 500))
	}
	return protocol.Result{}, eris.Wrap(err, "parsing review output")
}

func (r *ExecRunner) args(req pipeline.Request) []string {
	args := []string{"review", "--topic", req.Topic}
	if r.ConfigFile != "" {
		args = append(args, "--config", r.ConfigFile)
	}
	for _, t := range req.Include {
		args = append(args, "--include", t)
	}
	for _, t := range req.Exclude {
		args = append(args, "--exclude", t)
	}
	if req.MaxPapers > 0 {
		args = append(args, "--max-papers", strconv.Itoa(req.MaxPapers))
	}
	if req.YearFrom > 0 {
		args = append(args, "--year-from", strconv.Itoa(req.YearFrom))
	}
	if req.YearTo > 0 {
		args = append(args, "--year-to", strconv.Itoa(req.YearTo))
	}
	if req.Deterministic {
		args = append(args, "--deterministic")
	}
	if req.ClassifyOnly {
		args = append(args, "--classify-only")
	}
	return args
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}
