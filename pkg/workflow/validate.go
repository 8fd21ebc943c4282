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
	"regexp"

	rferrors "github.com/reconflow/reconflow/pkg/errors"
)

var identifierPattern = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)

func validIdentifier(s string) bool {
	return s != "" && identifierPattern.MatchString(s)
}

// Validate runs every invariant spec.md §4.1 names, in the order a
// reader would expect to hit them: identifiers, uniqueness, required
// fields, dependency existence, then cycle detection last (since it
// needs a fully-formed graph of existing edges to walk).
func (d *WorkflowDefinition) Validate() error {
	if !validIdentifier(d.WorkflowID) {
		return &rferrors.BadIdentifierError{Field: "workflow_id", Value: d.WorkflowID}
	}
	if len(d.Tasks) == 0 {
		return &rferrors.MissingFieldError{TaskID: d.WorkflowID, Field: "tasks"}
	}
	if d.MaxParallelTasks < MinMaxParallelTasks || d.MaxParallelTasks > MaxMaxParallelTasks {
		return &rferrors.InvalidEnumError{TaskID: d.WorkflowID, Field: "max_parallel_tasks"}
	}

	seen := make(map[string]bool, len(d.Tasks))
	for _, t := range d.Tasks {
		if !validIdentifier(t.TaskID) {
			return &rferrors.BadIdentifierError{Field: "task_id", Value: t.TaskID}
		}
		if seen[t.TaskID] {
			return &rferrors.BadIdentifierError{Field: "task_id (duplicate)", Value: t.TaskID}
		}
		seen[t.TaskID] = true

		if t.Priority < MinPriority || t.Priority > MaxPriority {
			return &rferrors.InvalidEnumError{TaskID: t.TaskID, Field: "priority"}
		}
		if t.Timeout < MinTimeoutSeconds || t.Timeout > MaxTimeoutSeconds {
			return &rferrors.InvalidEnumError{TaskID: t.TaskID, Field: "timeout"}
		}
		if t.Retry.MaxRetries < 0 || t.Retry.MaxRetries > MaxRetriesBound {
			return &rferrors.InvalidEnumError{TaskID: t.TaskID, Field: "retry.max_retries"}
		}

		if err := validateTaskFields(&t); err != nil {
			return err
		}
	}

	for _, t := range d.Tasks {
		deps := t.DependsOn
		if t.Type == TaskTypeMerge {
			deps = append(append([]string{}, deps...), t.MergeSources...)
		}
		for _, dep := range deps {
			if !seen[dep] {
				return &rferrors.UnknownDependencyError{TaskID: t.TaskID, Missing: dep}
			}
		}
	}

	if cycle := findCycle(d); cycle != nil {
		return &rferrors.CircularDependencyError{Cycle: cycle}
	}

	return nil
}

// validateTaskFields checks the task-type-specific required fields
// table in spec.md §3.
func validateTaskFields(t *TaskDefinition) error {
	switch t.Type {
	case TaskTypeTool:
		if t.Tool == "" {
			return &rferrors.MissingFieldError{TaskID: t.TaskID, Field: "tool"}
		}
	case TaskTypeMerge:
		if len(t.MergeSources) == 0 {
			return &rferrors.MissingFieldError{TaskID: t.TaskID, Field: "merge_sources"}
		}
		switch t.MergeStrategy {
		case MergeCombine, MergeReplace, MergeAppend:
		default:
			return &rferrors.InvalidEnumError{
				TaskID: t.TaskID, Field: "merge_strategy", Value: string(t.MergeStrategy),
				Allow: []string{string(MergeCombine), string(MergeReplace), string(MergeAppend)},
			}
		}
	case TaskTypeFileOutput:
		if t.SourceTask == "" {
			return &rferrors.MissingFieldError{TaskID: t.TaskID, Field: "source_task"}
		}
		if t.SourceField == "" {
			return &rferrors.MissingFieldError{TaskID: t.TaskID, Field: "source_field"}
		}
		if t.OutputFile == "" {
			return &rferrors.MissingFieldError{TaskID: t.TaskID, Field: "output_file"}
		}
		switch t.Format {
		case FormatTxt, FormatJSON:
		default:
			return &rferrors.InvalidEnumError{
				TaskID: t.TaskID, Field: "format", Value: string(t.Format),
				Allow: []string{string(FormatTxt), string(FormatJSON)},
			}
		}
	case TaskTypeJSONAggregate:
		if t.OutputFile == "" {
			return &rferrors.MissingFieldError{TaskID: t.TaskID, Field: "output_file"}
		}
		if len(t.Sections) == 0 {
			return &rferrors.MissingFieldError{TaskID: t.TaskID, Field: "sections"}
		}
		for _, s := range t.Sections {
			if s.Name == "" || s.SourceTask == "" || s.SourceField == "" {
				return &rferrors.MissingFieldError{TaskID: t.TaskID, Field: "sections[].name/source_task/source_field"}
			}
		}
	case TaskTypeWebCrawl, TaskTypeExploitLookup:
		// Adapter-specific, out of core scope (spec.md §3) — no
		// structural requirement enforced here.
	default:
		return &rferrors.InvalidEnumError{TaskID: t.TaskID, Field: "task_type", Value: string(t.Type)}
	}
	return nil
}

// dfsColor marks cycle-detection DFS node state.
type dfsColor int

const (
	white dfsColor = iota // unvisited
	gray                  // on-stack
	black                 // done
)

// findCycle runs a three-color DFS over the dependency graph and
// returns the path from entry to the first back-edge encountered, or
// nil if the graph is acyclic (spec.md §4.1).
func findCycle(d *WorkflowDefinition) []string {
	color := make(map[string]dfsColor, len(d.Tasks))
	adj := make(map[string][]string, len(d.Tasks))
	order := make([]string, 0, len(d.Tasks))
	for _, t := range d.Tasks {
		order = append(order, t.TaskID)
		deps := t.DependsOn
		if t.Type == TaskTypeMerge {
			deps = append(append([]string{}, deps...), t.MergeSources...)
		}
		adj[t.TaskID] = deps
	}

	var stack []string
	var cycle []string

	var visit func(id string) bool
	visit = func(id string) bool {
		color[id] = gray
		stack = append(stack, id)
		for _, dep := range adj[id] {
			switch color[dep] {
			case gray:
				// Back-edge found: report the path from dep's first
				// occurrence on the stack through to id, then back to dep.
				start := 0
				for i, s := range stack {
					if s == dep {
						start = i
						break
					}
				}
				cycle = append(append([]string{}, stack[start:]...), dep)
				return true
			case white:
				if visit(dep) {
					return true
				}
			}
		}
		stack = stack[:len(stack)-1]
		color[id] = black
		return false
	}

	for _, id := range order {
		if color[id] == white {
			if visit(id) {
				return cycle
			}
		}
	}
	return nil
}
