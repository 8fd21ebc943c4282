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

// Package workflow implements the reconnaissance pipeline execution
// engine: the task DAG model, dependency scheduler, parameter
// resolver, result merger, built-in processors, and the execution
// driver that ties them together.
package workflow

import "time"

// TaskType is the tagged-union discriminant for a Task Definition.
// The Scheduler inspects it only to treat a MERGE task's
// merge_sources as dependencies; the Driver dispatches on it.
type TaskType string

const (
	TaskTypeTool          TaskType = "TOOL"
	TaskTypeMerge         TaskType = "MERGE"
	TaskTypeFileOutput    TaskType = "FILE_OUTPUT"
	TaskTypeJSONAggregate TaskType = "JSON_AGGREGATE"
	TaskTypeWebCrawl      TaskType = "WEB_CRAWL"
	TaskTypeExploitLookup TaskType = "EXPLOIT_LOOKUP"
)

// MergeStrategy is the closed set of collision policies a MERGE task
// may declare.
type MergeStrategy string

const (
	MergeCombine MergeStrategy = "combine"
	MergeReplace MergeStrategy = "replace"
	MergeAppend  MergeStrategy = "append"
)

// OutputFormat is the closed set of serialization formats a
// FILE_OUTPUT task may write.
type OutputFormat string

const (
	FormatTxt  OutputFormat = "txt"
	FormatJSON OutputFormat = "json"
)

// TaskStatus is a task's lifecycle state within a run.
type TaskStatus string

const (
	TaskPending   TaskStatus = "pending"
	TaskRunning   TaskStatus = "running"
	TaskCompleted TaskStatus = "completed"
	TaskFailed    TaskStatus = "failed"
	TaskSkipped   TaskStatus = "skipped"
	TaskCancelled TaskStatus = "cancelled"
)

// RunStatus is a run's top-level lifecycle state.
type RunStatus string

const (
	RunPending   RunStatus = "pending"
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
	RunPartial   RunStatus = "partial"
	RunCancelled RunStatus = "cancelled"
)

// TaskResult is the in-memory record of one task's execution, keyed
// by task id within a run. The Driver exclusively owns this map;
// the Scheduler and Resolver only read it.
type TaskResult struct {
	TaskID        string
	Status        TaskStatus
	Output        map[string]any
	RawOutput     string
	Errors        []string
	ExecutionTime time.Duration
	Timestamp     time.Time
	RetryCount    int
	ExitCode      int
	ToolMissing   bool
}

// Succeeded reports whether the task completed with status completed.
func (r *TaskResult) Succeeded() bool {
	return r != nil && r.Status == TaskCompleted
}

// RunRecord is the durable, one-per-submitted-workflow-execution row
// persisted via the Run-State Store.
type RunRecord struct {
	RunID        string
	UserID       string
	WorkflowName string
	Target       string
	Status       RunStatus
	StartedAt    time.Time
	CompletedAt  time.Time
	ResultsBlob  string
}

// StepRecord is the durable, one-per-task-execution row.
type StepRecord struct {
	StepID      string
	RunID       string
	TaskName    string
	ToolOrType  string
	Status      TaskStatus
	StartedAt   time.Time
	CompletedAt time.Time
	Output      string
	Errors      string
}
