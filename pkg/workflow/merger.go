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

import "fmt"

// MergeTask combines the named list field across every source task's
// output into one deduplicated list, keyed by dedupe_key, per the
// task's merge_strategy (spec.md §4.5 step 3):
//
//   - combine: union by dedupe_key; on a collision, union ips[] and
//     asns[] (scalars treated as singletons) and fill any other field
//     not already set on the accumulated record;
//   - replace: last source wins per colliding dedupe_key value; keys
//     that never collide keep their one contributing source's item;
//   - append: concatenate every source's list, keep duplicates.
//
// Only optional sources that failed or produced no usable list are
// skipped; a missing non-optional source is the caller's concern
// (the Scheduler already fails the MERGE task in that case).
func MergeTask(t *TaskDefinition, results ResultLookup) (map[string]any, error) {
	field := t.MergeField
	dedupeKey := t.DedupeKey
	if dedupeKey == "" {
		dedupeKey = "name"
	}

	var items []any
	var err error
	switch t.MergeStrategy {
	case MergeReplace:
		items, err = mergeReplace(t, results, field, dedupeKey)
	case MergeAppend:
		items, err = mergeAppend(t, results, field)
	case MergeCombine, "":
		items, err = mergeCombine(t, results, field, dedupeKey)
	default:
		return nil, fmt.Errorf("unknown merge strategy %q", t.MergeStrategy)
	}
	if err != nil {
		return nil, err
	}
	return map[string]any{"merged_data": items}, nil
}

// sourceList extracts a source task's merge payload (spec.md §4.5 step
// 1): output[field] if field is set, else the whole output map. The
// whole-output fallback only ever yields a usable list if an adapter
// returns a bare list rather than a map, which none of this engine's
// adapters do — every shipped pipeline sets merge_field explicitly, so
// in practice an empty merge_field always skips the source.
func sourceList(results ResultLookup, source, field string) ([]any, bool) {
	r, ok := results.Lookup(source)
	if !ok || r == nil || !r.Succeeded() {
		return nil, false
	}
	if field == "" {
		return asAnyList(any(r.Output))
	}
	raw, ok := r.Output[field]
	if !ok {
		return nil, false
	}
	return asAnyList(raw)
}

// asAnyList normalizes a merge field's value to []any. Tool adapters
// build their output with concrete element types (e.g.
// []map[string]any), while a round-trip through JSON (Step Record
// persistence, test fixtures) decodes to []any; both are accepted.
func asAnyList(raw any) ([]any, bool) {
	switch v := raw.(type) {
	case []any:
		return v, true
	case []map[string]any:
		out := make([]any, len(v))
		for i, m := range v {
			out[i] = m
		}
		return out, true
	default:
		return nil, false
	}
}

// mergeAccumulator keeps the merged items' first-insertion order while
// letting later steps update or overwrite an entry by its dedupe key.
type mergeAccumulator struct {
	order []string
	items map[string]map[string]any
}

func newMergeAccumulator() *mergeAccumulator {
	return &mergeAccumulator{items: make(map[string]map[string]any)}
}

func (a *mergeAccumulator) values() []any {
	out := make([]any, 0, len(a.order))
	for _, k := range a.order {
		out = append(out, a.items[k])
	}
	return out
}

func cloneItem(item map[string]any) map[string]any {
	out := make(map[string]any, len(item))
	for k, v := range item {
		out[k] = v
	}
	return out
}

// keyedItems walks a source task's list, skipping items that aren't
// maps or that lack dedupe_key (spec.md §4.5 step 2), yielding each
// item's key value alongside the item itself.
func keyedItems(results ResultLookup, t *TaskDefinition, field, dedupeKey string) []struct {
	key  string
	item map[string]any
} {
	var out []struct {
		key  string
		item map[string]any
	}
	for _, src := range t.MergeSources {
		list, ok := sourceList(results, src, field)
		if !ok {
			continue
		}
		for _, raw := range list {
			item, ok := raw.(map[string]any)
			if !ok {
				continue
			}
			keyVal, ok := item[dedupeKey]
			if !ok {
				continue
			}
			out = append(out, struct {
				key  string
				item map[string]any
			}{key: fmt.Sprintf("%v", keyVal), item: item})
		}
	}
	return out
}

func mergeCombine(t *TaskDefinition, results ResultLookup, field, dedupeKey string) ([]any, error) {
	acc := newMergeAccumulator()
	for _, ki := range keyedItems(results, t, field, dedupeKey) {
		existing, present := acc.items[ki.key]
		if !present {
			acc.items[ki.key] = cloneItem(ki.item)
			acc.order = append(acc.order, ki.key)
			continue
		}
		unionListField(existing, ki.item, "ips")
		unionListField(existing, ki.item, "asns")
		for k, v := range ki.item {
			if k == "ips" || k == "asns" {
				continue
			}
			if _, set := existing[k]; !set {
				existing[k] = v
			}
		}
	}
	return acc.values(), nil
}

func mergeReplace(t *TaskDefinition, results ResultLookup, field, dedupeKey string) ([]any, error) {
	acc := newMergeAccumulator()
	for _, ki := range keyedItems(results, t, field, dedupeKey) {
		if _, present := acc.items[ki.key]; !present {
			acc.order = append(acc.order, ki.key)
		}
		acc.items[ki.key] = cloneItem(ki.item)
	}
	return acc.values(), nil
}

func mergeAppend(t *TaskDefinition, results ResultLookup, field string) ([]any, error) {
	var merged []any
	for _, src := range t.MergeSources {
		list, ok := sourceList(results, src, field)
		if !ok {
			continue
		}
		merged = append(merged, list...)
	}
	return merged, nil
}

// unionListField unions a possibly-scalar list field from src into
// dst in place, treating scalars as singleton lists and keeping
// first-seen order (spec.md §4.5 step 3).
func unionListField(dst, src map[string]any, field string) {
	merged := toSingletonList(dst[field])
	seen := make(map[string]bool, len(merged))
	for _, v := range merged {
		seen[fmt.Sprintf("%v", v)] = true
	}
	for _, v := range toSingletonList(src[field]) {
		key := fmt.Sprintf("%v", v)
		if seen[key] {
			continue
		}
		seen[key] = true
		merged = append(merged, v)
	}
	if len(merged) > 0 {
		dst[field] = merged
	}
}

func toSingletonList(v any) []any {
	if v == nil {
		return nil
	}
	if list, ok := asAnyList(v); ok {
		return list
	}
	return []any{v}
}
