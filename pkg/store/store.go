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

// Package store persists Run Records and Step Records (spec.md §3,
// §4.8): one row per submitted workflow execution and one row per task
// execution within it.
package store

import (
	"context"

	"github.com/reconflow/reconflow/pkg/workflow"
)

// Store is the Run-State Store contract. Both the sqlite-backed and
// in-memory implementations satisfy it, so the Driver and CLI never
// depend on a concrete backend.
type Store interface {
	CreateRun(ctx context.Context, run *workflow.RunRecord) error
	UpdateRun(ctx context.Context, run *workflow.RunRecord) error
	GetRun(ctx context.Context, runID string) (*workflow.RunRecord, error)
	ListRuns(ctx context.Context, limit int) ([]*workflow.RunRecord, error)

	CreateStep(ctx context.Context, step *workflow.StepRecord) error
	UpdateStep(ctx context.Context, step *workflow.StepRecord) error
	ListSteps(ctx context.Context, runID string) ([]*workflow.StepRecord, error)

	Close() error
}
