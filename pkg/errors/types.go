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

// Package errors defines the typed error kinds surfaced by the workflow
// engine, grouped the way the engine's own documentation groups them:
// validation, scheduling, adapter, processor, and driver errors.
package errors

import (
	"fmt"
	"time"
)

// --- Validation errors (rejected before a Run Record is created) ---

// BadIdentifierError reports a task_id or workflow_id outside the
// allowed alphabet (alphanumerics, '-', '_', '.').
type BadIdentifierError struct {
	Field string
	Value string
}

func (e *BadIdentifierError) Error() string {
	return fmt.Sprintf("invalid identifier for %s: %q", e.Field, e.Value)
}

// UnknownDependencyError reports a depends_on entry that names a task
// not present in the workflow.
type UnknownDependencyError struct {
	TaskID  string
	Missing string
}

func (e *UnknownDependencyError) Error() string {
	return fmt.Sprintf("task %q depends on unknown task %q", e.TaskID, e.Missing)
}

// CircularDependencyError reports the first back-edge found by the
// cycle-detection DFS, with the path from entry to the offending node.
type CircularDependencyError struct {
	Cycle []string
}

func (e *CircularDependencyError) Error() string {
	return fmt.Sprintf("circular dependency: %v", e.Cycle)
}

// MissingFieldError reports a task-type-specific required field left
// empty (e.g. MERGE with no merge_sources, TOOL with no tool name).
type MissingFieldError struct {
	TaskID string
	Field  string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("task %q missing required field %q", e.TaskID, e.Field)
}

// InvalidEnumError reports a value outside a closed set (merge
// strategy, task type, output format, ...).
type InvalidEnumError struct {
	TaskID string
	Field  string
	Value  string
	Allow  []string
}

func (e *InvalidEnumError) Error() string {
	return fmt.Sprintf("task %q field %q has invalid value %q (allowed: %v)", e.TaskID, e.Field, e.Value, e.Allow)
}

// --- Scheduling errors (converted into failed Task Results, never abort a run) ---

// DependencyFailedError marks a task that was never run because a
// non-optional dependency is in the failed set.
type DependencyFailedError struct {
	TaskID   string
	FailedOn string
}

func (e *DependencyFailedError) Error() string {
	return fmt.Sprintf("Dependency failed: task %q depends on failed task %q", e.TaskID, e.FailedOn)
}

// AllRemainingBlockedError reports the scheduler closing out the run
// because the ready set is empty but tasks remain.
type AllRemainingBlockedError struct {
	TaskIDs []string
}

func (e *AllRemainingBlockedError) Error() string {
	return fmt.Sprintf("all remaining tasks unreachable: %v", e.TaskIDs)
}

// --- Adapter errors ---

// InvalidParametersError is returned by execute() when an adapter's
// validate() rejects the supplied parameters.
type InvalidParametersError struct {
	Tool string
}

func (e *InvalidParametersError) Error() string {
	return "Invalid parameters"
}

// ToolMissingError is a soft failure: the adapter's executable was not
// found on PATH. Dependents marked optional survive it.
type ToolMissingError struct {
	Tool       string
	Executable string
}

func (e *ToolMissingError) Error() string {
	return fmt.Sprintf("tool %q not found: please ensure %s is installed and on PATH", e.Tool, e.Executable)
}

// IsUserVisible implements UserVisibleError: a missing tool is always
// something the operator needs to act on, not an internal detail.
func (e *ToolMissingError) IsUserVisible() bool { return true }

// UserMessage implements UserVisibleError.
func (e *ToolMissingError) UserMessage() string {
	return fmt.Sprintf("the %q tool adapter could not find its executable on PATH", e.Tool)
}

// Suggestion implements UserVisibleError.
func (e *ToolMissingError) Suggestion() string {
	return fmt.Sprintf("install %s and ensure it is on your PATH, then re-run the pipeline", e.Executable)
}

// TimeoutError represents a subprocess that exceeded its configured
// timeout and was terminated.
type TimeoutError struct {
	Tool     string
	Duration time.Duration
	Cause    error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("tool %q timed out after %v", e.Tool, e.Duration)
}

func (e *TimeoutError) Unwrap() error { return e.Cause }

// SpawnFailedError represents any other subprocess spawn failure.
type SpawnFailedError struct {
	Tool  string
	Cause error
}

func (e *SpawnFailedError) Error() string {
	return fmt.Sprintf("tool %q failed to start: %v", e.Tool, e.Cause)
}

func (e *SpawnFailedError) Unwrap() error { return e.Cause }

// ParseFailedError represents a parser panic/crash, treated as an
// adapter crash rather than a silent empty result.
type ParseFailedError struct {
	Tool  string
	Cause error
}

func (e *ParseFailedError) Error() string {
	return fmt.Sprintf("tool %q output parse failed: %v", e.Tool, e.Cause)
}

func (e *ParseFailedError) Unwrap() error { return e.Cause }

// NonZeroExitError represents a subprocess that exited non-zero.
type NonZeroExitError struct {
	Tool     string
	ExitCode int
}

func (e *NonZeroExitError) Error() string {
	return fmt.Sprintf("tool %q exited with code %d", e.Tool, e.ExitCode)
}

// --- Processor errors (FILE_OUTPUT, JSON_AGGREGATE, MERGE) ---

// SourceNotFoundError reports a source_task that has no recorded
// output in the current run.
type SourceNotFoundError struct {
	TaskID     string
	SourceTask string
}

func (e *SourceNotFoundError) Error() string {
	return fmt.Sprintf("task %q: source task %q has no output", e.TaskID, e.SourceTask)
}

// FieldNotFoundError reports a source_field absent from a source
// task's output map.
type FieldNotFoundError struct {
	TaskID     string
	SourceTask string
	Field      string
}

func (e *FieldNotFoundError) Error() string {
	return fmt.Sprintf("task %q: field %q not found in output of %q", e.TaskID, e.Field, e.SourceTask)
}

// SourceNotCompletedError fails a MERGE task whose source did not
// complete successfully.
type SourceNotCompletedError struct {
	TaskID     string
	SourceTask string
}

func (e *SourceNotCompletedError) Error() string {
	return fmt.Sprintf("Source task %q did not complete successfully", e.SourceTask)
}

// WriteFailedError fails FILE_OUTPUT/JSON_AGGREGATE tasks (and is
// logged as a warning, not a failure, for TOOL/MERGE artifact writes).
type WriteFailedError struct {
	Path  string
	Cause error
}

func (e *WriteFailedError) Error() string {
	return fmt.Sprintf("write to %q failed: %v", e.Path, e.Cause)
}

func (e *WriteFailedError) Unwrap() error { return e.Cause }

// --- Driver errors ---

// InternalError wraps any uncaught condition in the Driver itself
// (not a task failure); it ends the run Failed.
type InternalError struct {
	Context string
	Cause   error
}

func (e *InternalError) Error() string {
	if e.Context != "" {
		return fmt.Sprintf("internal error (%s): %v", e.Context, e.Cause)
	}
	return fmt.Sprintf("internal error: %v", e.Cause)
}

func (e *InternalError) Unwrap() error { return e.Cause }

// --- Store errors ---

// NotFoundError represents a Run-State Store lookup miss (run, step,
// or registered tool not found).
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// ConfigError represents configuration problems (missing settings,
// invalid config values).
type ConfigError struct {
	Key    string
	Reason string
	Cause  error
}

func (e *ConfigError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("config error at %s: %s", e.Key, e.Reason)
	}
	return fmt.Sprintf("config error: %s", e.Reason)
}

func (e *ConfigError) Unwrap() error { return e.Cause }
