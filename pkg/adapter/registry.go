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

package adapter

import (
	"sort"
	"sync"

	rferrors "github.com/reconflow/reconflow/pkg/errors"
)

// Registry is the central lookup from a TOOL task's `tool` name to a
// concrete Adapter instance, grounded on the original tool registry's
// register/get_tool/list_tools shape.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Adapter
}

// NewRegistry returns an empty Registry. Callers populate it (see
// pkg/adapter/tools for the built-in set) rather than the Registry
// reaching into a fixed import list itself.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Adapter)}
}

// Register adds or replaces the adapter for a tool name.
func (r *Registry) Register(name string, a Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[name] = a
}

// Get returns the adapter registered for name, or a NotFoundError.
func (r *Registry) Get(name string) (Adapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.tools[name]
	if !ok {
		return nil, &rferrors.NotFoundError{Resource: "tool", ID: name}
	}
	return a, nil
}

// List returns every registered tool's metadata, sorted by name.
func (r *Registry) List() []Metadata {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Metadata, 0, len(r.tools))
	for _, a := range r.tools {
		out = append(out, a.Metadata())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
