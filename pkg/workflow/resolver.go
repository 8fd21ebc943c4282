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
	"fmt"
	"log/slog"
	"strconv"
	"strings"
)

// refPrefix and refSuffix delimit a whole parameter value of the form
// ${task_id.segment.segment...} (spec.md §4.5). Partial-string
// interpolation is out of scope: a reference only resolves when it is
// the entire string value.
const (
	refPrefix = "${"
	refSuffix = "}"
)

// ResultLookup is the minimal view the Resolver needs into completed
// task output, satisfied by the Driver's result map.
type ResultLookup interface {
	Lookup(taskID string) (*TaskResult, bool)
}

// resultMap adapts a plain map[string]*TaskResult to ResultLookup.
type resultMap map[string]*TaskResult

func (m resultMap) Lookup(taskID string) (*TaskResult, bool) {
	r, ok := m[taskID]
	return r, ok
}

// NewResultLookup wraps a results map for use with ResolveParameters.
func NewResultLookup(results map[string]*TaskResult) ResultLookup {
	return resultMap(results)
}

// ResolveParameters walks a TOOL task's parameters map and substitutes
// every whole-string ${task_id.segment.segment} reference with the
// value found by walking into the referenced task's Output. Only
// exact whole-string values are recognized; references inside a
// larger string (e.g. "prefix-${x}-suffix") are left untouched, per
// spec.md §4.5. A reference to a segment path that does not resolve
// yields an empty list and a warning log line, never an error.
func ResolveParameters(params map[string]any, results ResultLookup, logger *slog.Logger) map[string]any {
	if params == nil {
		return nil
	}
	out := make(map[string]any, len(params))
	for k, v := range params {
		out[k] = resolveValue(v, results, logger)
	}
	return out
}

func resolveValue(v any, results ResultLookup, logger *slog.Logger) any {
	switch val := v.(type) {
	case string:
		if ref, ok := parseReference(val); ok {
			return resolveReference(ref, results, logger)
		}
		return val
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = resolveValue(item, results, logger)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = resolveValue(item, results, logger)
		}
		return out
	default:
		return val
	}
}

// parseReference reports whether s is entirely one ${...} reference
// and, if so, returns its inner path split on '.'.
func parseReference(s string) ([]string, bool) {
	if !strings.HasPrefix(s, refPrefix) || !strings.HasSuffix(s, refSuffix) {
		return nil, false
	}
	inner := s[len(refPrefix) : len(s)-len(refSuffix)]
	if inner == "" {
		return nil, false
	}
	return strings.Split(inner, "."), true
}

// resolveReference walks path[1:] into the Output of the task named
// by path[0]. Missing task, missing segment, or a non-navigable
// intermediate value all resolve to an empty list plus a warning.
func resolveReference(path []string, results ResultLookup, logger *slog.Logger) any {
	taskID := path[0]
	result, ok := results.Lookup(taskID)
	if !ok || result == nil {
		warnUnresolved(logger, path, fmt.Sprintf("task %q has no result", taskID))
		return []any{}
	}

	var cur any = map[string]any(result.Output)
	for _, seg := range path[1:] {
		next, ok := navigate(cur, seg)
		if !ok {
			warnUnresolved(logger, path, fmt.Sprintf("segment %q not found", seg))
			return []any{}
		}
		cur = next
	}
	return cur
}

// navigate steps one segment into cur, supporting map key lookup and
// numeric list indexing.
func navigate(cur any, seg string) (any, bool) {
	switch c := cur.(type) {
	case map[string]any:
		v, ok := c[seg]
		return v, ok
	case []any:
		idx, err := strconv.Atoi(seg)
		if err != nil || idx < 0 || idx >= len(c) {
			return nil, false
		}
		return c[idx], true
	default:
		return nil, false
	}
}

func warnUnresolved(logger *slog.Logger, path []string, reason string) {
	if logger == nil {
		return
	}
	logger.Warn("parameter reference did not resolve",
		slog.String("reference", "${"+strings.Join(path, ".")+"}"),
		slog.String("reason", reason))
}
