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

package workflow

import (
	"gopkg.in/yaml.v3"
)

// Bounds on task fields (spec.md §3).
const (
	MinPriority = 1
	MaxPriority = 10

	DefaultTimeoutSeconds = 300
	MinTimeoutSeconds     = 10
	MaxTimeoutSeconds     = 7200

	MinMaxParallelTasks = 1
	MaxMaxParallelTasks = 20

	MaxRetriesBound = 5
)

// RetryPolicy is carried on every Task Definition but is a declared
// field reserved for future extension: implementations must accept it
// but may no-op (spec.md §4.9). This engine does not retry.
type RetryPolicy struct {
	MaxRetries   int  `yaml:"max_retries"`
	DelaySeconds int  `yaml:"delay_seconds"`
	OnTimeout    bool `yaml:"on_timeout"`
	OnError      bool `yaml:"on_error"`
}

// JSONAggregateSection is one entry in a JSON_AGGREGATE task's
// sections list.
type JSONAggregateSection struct {
	Name       string `yaml:"name"`
	SourceTask string `yaml:"source_task"`
	SourceField string `yaml:"source_field"`
	Optional   bool   `yaml:"optional"`
}

// TaskDefinition is a tagged-union over TaskType (spec.md §3, §9
// Design Notes "Task polymorphism"). All type-specific fields are
// flattened onto one struct with yaml tags, matching the Workflow
// Definition YAML's flat task shape; of the type-specific fields the
// Scheduler reads only a MERGE task's merge_sources (as extra
// dependencies), while the Driver dispatches on Type and reads the rest.
type TaskDefinition struct {
	// Common fields.
	TaskID      string   `yaml:"task_id"`
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	Type        TaskType `yaml:"task_type"`
	DependsOn   []string `yaml:"depends_on"`
	Priority    int      `yaml:"priority"`
	Timeout     int      `yaml:"timeout"`
	Optional    bool     `yaml:"optional"`
	Retry       RetryPolicy `yaml:"retry"`

	// declOrder is the zero-based position the task appeared in the
	// workflow's task list, used as the Scheduler's priority tie-break.
	declOrder int

	// TOOL fields.
	Tool       string         `yaml:"tool,omitempty"`
	Parameters map[string]any `yaml:"parameters,omitempty"`

	// MERGE fields.
	MergeSources  []string      `yaml:"merge_sources,omitempty"`
	MergeField    string        `yaml:"merge_field,omitempty"`
	DedupeKey     string        `yaml:"dedupe_key,omitempty"`
	MergeStrategy MergeStrategy `yaml:"merge_strategy,omitempty"`

	// FILE_OUTPUT fields.
	SourceTask   string       `yaml:"source_task,omitempty"`
	SourceField  string       `yaml:"source_field,omitempty"`
	OutputFile   string       `yaml:"output_file,omitempty"`
	ExtractField string       `yaml:"extract_field,omitempty"`
	Format       OutputFormat `yaml:"format,omitempty"`

	// JSON_AGGREGATE fields.
	Sections        []JSONAggregateSection `yaml:"sections,omitempty"`
	IncludeMetadata *bool                  `yaml:"include_metadata,omitempty"`
}

// includeMetadata resolves the default-true semantics of
// include_metadata (spec.md §4.7).
func (t *TaskDefinition) includeMetadata() bool {
	if t.IncludeMetadata == nil {
		return true
	}
	return *t.IncludeMetadata
}

// WorkflowDefinition is the top-level, immutable-after-validation
// submission unit (spec.md §3).
type WorkflowDefinition struct {
	WorkflowID       string           `yaml:"workflow_id"`
	Name             string           `yaml:"name"`
	Description      string           `yaml:"description"`
	Target           string           `yaml:"target"`
	Tasks            []TaskDefinition `yaml:"tasks"`
	StopOnFailure    bool             `yaml:"stop_on_failure"`
	MaxParallelTasks int              `yaml:"max_parallel_tasks"`
}

// ParseDefinition parses a YAML document into a WorkflowDefinition,
// applies defaults, and validates it. A YAML error or one of the
// validation error types in pkg/errors (BadIdentifierError,
// MissingFieldError, ...) aborts before any Run Record exists.
func ParseDefinition(data []byte) (*WorkflowDefinition, error) {
	var def WorkflowDefinition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, err
	}
	def.ApplyDefaults()
	if err := def.Validate(); err != nil {
		return nil, err
	}
	return &def, nil
}

// ApplyDefaults fills in every field spec.md §3 declares a default
// for: task priority, timeout, max_parallel_tasks, dedupe_key,
// declaration order.
func (d *WorkflowDefinition) ApplyDefaults() {
	if d.MaxParallelTasks == 0 {
		d.MaxParallelTasks = 1
	}
	for i := range d.Tasks {
		t := &d.Tasks[i]
		t.declOrder = i
		if t.Type == "" {
			t.Type = TaskTypeTool
		}
		if t.Priority == 0 {
			t.Priority = MinPriority
		}
		if t.Timeout == 0 {
			t.Timeout = DefaultTimeoutSeconds
		}
		if t.Type == TaskTypeMerge && t.DedupeKey == "" {
			t.DedupeKey = "name"
		}
		if t.Type == TaskTypeFileOutput && t.Format == "" {
			t.Format = FormatTxt
		}
	}
}

// TaskByID returns the task with the given id, or nil.
func (d *WorkflowDefinition) TaskByID(id string) *TaskDefinition {
	for i := range d.Tasks {
		if d.Tasks[i].TaskID == id {
			return &d.Tasks[i]
		}
	}
	return nil
}
