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
	"context"
	"time"

	"github.com/reconflow/reconflow/pkg/adapter"
)

// AdapterToolExecutor bridges the Driver's local ToolExecutor contract
// to a concrete pkg/adapter.Registry, so pkg/workflow depends on
// adapter.Adapter/Execute but never on a storage or CLI package.
type AdapterToolExecutor struct {
	registry *adapter.Registry
}

// NewAdapterToolExecutor wraps registry for use as DriverOptions.Tools.
func NewAdapterToolExecutor(registry *adapter.Registry) *AdapterToolExecutor {
	return &AdapterToolExecutor{registry: registry}
}

// Resolve looks up tool and returns a closure over the concrete
// Adapter plus its metadata, satisfying ToolExecutor.
func (e *AdapterToolExecutor) Resolve(tool string) (ExecuteFunc, Metadata, error) {
	a, err := e.registry.Get(tool)
	if err != nil {
		return nil, Metadata{}, err
	}
	meta := a.Metadata()

	run := func(ctx context.Context, params map[string]any, timeout time.Duration) ExecResult {
		res := adapter.Execute(ctx, a, params, timeout)
		return ExecResult{
			Data:        res.Data,
			RawOutput:   res.RawOutput,
			Stderr:      res.Stderr,
			ExitCode:    res.ExitCode,
			Duration:    res.Duration,
			ToolMissing: res.ToolMissing,
			Err:         res.Err,
		}
	}
	return run, Metadata{Name: meta.Name, DefaultTimeout: meta.DefaultTimeout}, nil
}
