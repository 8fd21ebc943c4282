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

package store

import (
	"context"
	"sort"
	"sync"

	rferrors "github.com/reconflow/reconflow/pkg/errors"
	"github.com/reconflow/reconflow/pkg/workflow"
)

// MemoryStore is a process-local Store, used by `run` when no store
// path (or ":memory:") is configured, and by tests; state does not
// survive process exit.
type MemoryStore struct {
	mu    sync.RWMutex
	runs  map[string]*workflow.RunRecord
	steps map[string][]*workflow.StepRecord
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		runs:  make(map[string]*workflow.RunRecord),
		steps: make(map[string][]*workflow.StepRecord),
	}
}

func (m *MemoryStore) CreateRun(_ context.Context, run *workflow.RunRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *run
	m.runs[run.RunID] = &cp
	return nil
}

func (m *MemoryStore) UpdateRun(_ context.Context, run *workflow.RunRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.runs[run.RunID]; !ok {
		return &rferrors.NotFoundError{Resource: "run", ID: run.RunID}
	}
	cp := *run
	m.runs[run.RunID] = &cp
	return nil
}

func (m *MemoryStore) GetRun(_ context.Context, runID string) (*workflow.RunRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.runs[runID]
	if !ok {
		return nil, &rferrors.NotFoundError{Resource: "run", ID: runID}
	}
	cp := *r
	return &cp, nil
}

func (m *MemoryStore) ListRuns(_ context.Context, limit int) ([]*workflow.RunRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*workflow.RunRecord, 0, len(m.runs))
	for _, r := range m.runs {
		cp := *r
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryStore) CreateStep(_ context.Context, step *workflow.StepRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *step
	m.steps[step.RunID] = append(m.steps[step.RunID], &cp)
	return nil
}

func (m *MemoryStore) UpdateStep(_ context.Context, step *workflow.StepRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.steps[step.RunID] {
		if s.StepID == step.StepID {
			*s = *step
			return nil
		}
	}
	return &rferrors.NotFoundError{Resource: "step", ID: step.StepID}
}

func (m *MemoryStore) ListSteps(_ context.Context, runID string) ([]*workflow.StepRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	steps := m.steps[runID]
	out := make([]*workflow.StepRecord, len(steps))
	for i, s := range steps {
		cp := *s
		out[i] = &cp
	}
	return out, nil
}

func (m *MemoryStore) Close() error { return nil }
