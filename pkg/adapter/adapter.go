// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package adapter defines the Tool Adapter contract: the four
// operations a concrete security tool implements, plus the generic
// execute() helper every adapter shares for spawning, timing out, and
// recovering from a missing executable.
package adapter

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"

	rferrors "github.com/reconflow/reconflow/pkg/errors"
)

// Category classifies a tool for display and future policy use
// (spec.md §4.4 does not require enforcement, only the label).
type Category string

const (
	CategoryRecon        Category = "reconnaissance"
	CategoryScanning     Category = "scanning"
	CategoryExploitation Category = "exploitation"
)

// Metadata describes one registered tool.
type Metadata struct {
	Name            string
	Category        Category
	Description     string
	Executable      string
	RequiresRoot    bool
	DefaultTimeout  time.Duration
	SupportsParallel bool
}

// Adapter is the four-operation contract every concrete tool
// implements (spec.md §4.4): Metadata describes the tool, Validate
// rejects bad parameters before anything is spawned, BuildArgv turns
// parameters into a subprocess argument vector, and Parse turns raw
// stdout/stderr/exit-code into the structured Output map a Task
// Result carries.
type Adapter interface {
	Metadata() Metadata
	Validate(params map[string]any) error
	BuildArgv(params map[string]any) ([]string, error)
	Parse(stdout, stderr string, exitCode int) (map[string]any, error)
}

// Result is what Execute returns: everything a TaskResult needs to be
// built from, without Execute itself knowing about workflow.TaskResult.
type Result struct {
	Data        map[string]any
	RawOutput   string
	Stderr      string
	ExitCode    int
	Duration    time.Duration
	ToolMissing bool
	Err         error
}

// Execute is the one generic operation every adapter shares: validate,
// build the argv, spawn it under ctx with the given timeout, and parse
// the result. It never panics; every failure mode becomes a typed
// error in Result.Err (spec.md §4.4, §7 Adapter errors).
func Execute(ctx context.Context, a Adapter, params map[string]any, timeout time.Duration) Result {
	meta := a.Metadata()

	if err := a.Validate(params); err != nil {
		return Result{Err: &rferrors.InvalidParametersError{Tool: meta.Name}}
	}

	argv, err := a.BuildArgv(params)
	if err != nil {
		return Result{Err: &rferrors.InvalidParametersError{Tool: meta.Name}}
	}

	runCtx := ctx
	var cancel context.CancelFunc
	if timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(runCtx, meta.Executable, argv...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	duration := time.Since(start)

	switch {
	case errors.Is(runErr, exec.ErrNotFound):
		return Result{Duration: duration, ToolMissing: true,
			Err: &rferrors.ToolMissingError{Tool: meta.Name, Executable: meta.Executable}}
	case runCtx.Err() == context.DeadlineExceeded:
		return Result{Duration: duration,
			Err: &rferrors.TimeoutError{Tool: meta.Name, Duration: timeout, Cause: runErr}}
	}

	var exitCode int
	if exitErr, ok := runErr.(*exec.ExitError); ok {
		exitCode = exitErr.ExitCode()
	} else if runErr != nil {
		var pathErr *exec.Error
		if errors.As(runErr, &pathErr) {
			return Result{Duration: duration, ToolMissing: true,
				Err: &rferrors.ToolMissingError{Tool: meta.Name, Executable: meta.Executable}}
		}
		return Result{Duration: duration, Err: &rferrors.SpawnFailedError{Tool: meta.Name, Cause: runErr}}
	}

	data, parseErr := func() (parsed map[string]any, err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("parser panicked: %v", r)
			}
		}()
		return a.Parse(stdout.String(), stderr.String(), exitCode)
	}()
	if parseErr != nil {
		return Result{RawOutput: stdout.String(), Stderr: stderr.String(), ExitCode: exitCode, Duration: duration,
			Err: &rferrors.ParseFailedError{Tool: meta.Name, Cause: parseErr}}
	}

	res := Result{
		Data:      data,
		RawOutput: stdout.String(),
		Stderr:    stderr.String(),
		ExitCode:  exitCode,
		Duration:  duration,
	}
	if exitCode != 0 {
		res.Err = &rferrors.NonZeroExitError{Tool: meta.Name, ExitCode: exitCode}
	}
	return res
}
