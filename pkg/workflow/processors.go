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
	"encoding/json"
	"fmt"
	"strings"
	"time"

	rferrors "github.com/reconflow/reconflow/pkg/errors"
)

// ArtifactWriter is the narrow file-persistence seam the processors
// need; pkg/artifact supplies the run-scoped implementation, tests use
// an in-memory stand-in.
type ArtifactWriter interface {
	WriteFile(relPath string, data []byte) error
}

// RunFileOutput implements the FILE_OUTPUT task type (spec.md §4.7,
// first form): navigate to source_task's source_field, optionally
// project each element through extract_field, and write the result
// as either a newline-delimited text file or a JSON array.
func RunFileOutput(t *TaskDefinition, results ResultLookup, writer ArtifactWriter) (map[string]any, error) {
	source, ok := results.Lookup(t.SourceTask)
	if !ok || source == nil {
		return nil, &rferrors.SourceNotFoundError{TaskID: t.TaskID, SourceTask: t.SourceTask}
	}
	if !source.Succeeded() {
		return nil, &rferrors.SourceNotCompletedError{TaskID: t.TaskID, SourceTask: t.SourceTask}
	}

	field, ok := lookupField(source.Output, t.SourceField)
	if !ok {
		return nil, &rferrors.FieldNotFoundError{TaskID: t.TaskID, SourceTask: t.SourceTask, Field: t.SourceField}
	}

	items := asList(field)
	if t.ExtractField != "" {
		projected := make([]any, 0, len(items))
		for _, item := range items {
			if m, ok := item.(map[string]any); ok {
				if v, ok := m[t.ExtractField]; ok {
					projected = append(projected, v)
					continue
				}
			}
			projected = append(projected, item)
		}
		items = projected
	}

	var data []byte
	var err error
	switch t.Format {
	case FormatJSON:
		data, err = json.MarshalIndent(items, "", "  ")
	default:
		lines := make([]string, len(items))
		for i, item := range items {
			lines[i] = fmt.Sprintf("%v", item)
		}
		data = []byte(strings.Join(lines, "\n"))
		if len(lines) > 0 {
			data = append(data, '\n')
		}
	}
	if err != nil {
		return nil, &rferrors.WriteFailedError{Path: t.OutputFile, Cause: err}
	}

	if err := writer.WriteFile(t.OutputFile, data); err != nil {
		return nil, &rferrors.WriteFailedError{Path: t.OutputFile, Cause: err}
	}

	return map[string]any{"file": t.OutputFile, "count": len(items)}, nil
}

// RunJSONAggregate implements the JSON_AGGREGATE task type (spec.md
// §4.7, second form): collect one section per entry, keyed by section
// name, from each named source task's output, and write one JSON
// document. A non-optional section whose source is missing or
// incomplete fails the task; an optional one is simply omitted.
func RunJSONAggregate(t *TaskDefinition, results ResultLookup, writer ArtifactWriter) (map[string]any, error) {
	aggregate := make(map[string]any, len(t.Sections))

	for _, sec := range t.Sections {
		source, ok := results.Lookup(sec.SourceTask)
		if !ok || source == nil || !source.Succeeded() {
			if sec.Optional {
				continue
			}
			return nil, &rferrors.SourceNotCompletedError{TaskID: t.TaskID, SourceTask: sec.SourceTask}
		}
		field, ok := lookupField(source.Output, sec.SourceField)
		if !ok {
			if sec.Optional {
				continue
			}
			return nil, &rferrors.FieldNotFoundError{TaskID: t.TaskID, SourceTask: sec.SourceTask, Field: sec.SourceField}
		}
		aggregate[sec.Name] = field
	}

	if t.includeMetadata() {
		aggregate["_metadata"] = map[string]any{
			"workflow_task": t.TaskID,
			"generated_at":  time.Now().UTC().Format(time.RFC3339),
			"sections":      len(t.Sections),
		}
	}

	data, err := json.MarshalIndent(aggregate, "", "  ")
	if err != nil {
		return nil, &rferrors.WriteFailedError{Path: t.OutputFile, Cause: err}
	}
	if err := writer.WriteFile(t.OutputFile, data); err != nil {
		return nil, &rferrors.WriteFailedError{Path: t.OutputFile, Cause: err}
	}

	return map[string]any{"file": t.OutputFile, "sections": aggregate}, nil
}

// lookupField fetches a single top-level key out of a task's Output.
// Dotted sub-paths are not supported here (only by the Resolver's
// ${...} syntax); processors reference one flat field per spec.md.
func lookupField(output map[string]any, field string) (any, bool) {
	v, ok := output[field]
	return v, ok
}

// asList coerces a field value into a slice, wrapping a scalar as a
// single-element list so FILE_OUTPUT always writes something sane.
func asList(v any) []any {
	switch val := v.(type) {
	case []any:
		return val
	case nil:
		return nil
	default:
		if list, ok := asAnyList(val); ok {
			return list
		}
		return []any{val}
	}
}
