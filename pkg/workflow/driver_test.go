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

package workflow_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reconflow/reconflow/pkg/workflow"
)

// fakeTools is a minimal workflow.ToolExecutor: every registered tool
// name maps to a canned ExecResult, mirroring the teacher's
// MockExecutionAdapter pattern of scripting adapter behavior per test.
type fakeTools struct {
	results map[string]workflow.ExecResult
}

func (f *fakeTools) Resolve(tool string) (workflow.ExecuteFunc, workflow.Metadata, error) {
	res, ok := f.results[tool]
	if !ok {
		return nil, workflow.Metadata{}, fmt.Errorf("unregistered tool %q", tool)
	}
	run := func(ctx context.Context, params map[string]any, timeout time.Duration) workflow.ExecResult {
		return res
	}
	return run, workflow.Metadata{Name: tool, DefaultTimeout: 30 * time.Second}, nil
}

func buildDef(stopOnFailure bool, tasks ...workflow.TaskDefinition) *workflow.WorkflowDefinition {
	def := &workflow.WorkflowDefinition{
		WorkflowID:    "wf-test",
		Name:          "test workflow",
		Tasks:         tasks,
		StopOnFailure: stopOnFailure,
	}
	def.ApplyDefaults()
	return def
}

func TestDriverRunCompletesSimpleWorkflow(t *testing.T) {
	def := buildDef(false,
		workflow.TaskDefinition{TaskID: "subfinder", Type: workflow.TaskTypeTool, Tool: "subfinder"},
	)
	tools := &fakeTools{results: map[string]workflow.ExecResult{
		"subfinder": {Data: map[string]any{"subdomains": []any{"a.example.com"}}},
	}}
	driver := workflow.NewDriver(def, workflow.DriverOptions{Tools: tools})

	summary, err := driver.Run(context.Background(), "example.com", "user-1")
	require.NoError(t, err)
	assert.Equal(t, workflow.RunCompleted, summary.Status)
	require.Contains(t, summary.Results, "subfinder")
	assert.Equal(t, workflow.TaskCompleted, summary.Results["subfinder"].Status)
	assert.NotEmpty(t, summary.RunID)
}

func TestDriverRunEmitsMonotonicProgressPercent(t *testing.T) {
	def := buildDef(false,
		workflow.TaskDefinition{TaskID: "subfinder", Type: workflow.TaskTypeTool, Tool: "subfinder"},
		workflow.TaskDefinition{TaskID: "httpx", Type: workflow.TaskTypeTool, Tool: "httpx", DependsOn: []string{"subfinder"}},
	)
	tools := &fakeTools{results: map[string]workflow.ExecResult{
		"subfinder": {Data: map[string]any{"subdomains": []any{"a.example.com"}}},
		"httpx":     {Data: map[string]any{"live_urls": []any{"https://a.example.com"}}},
	}}

	emitter := workflow.NewEventEmitter(false)
	var mu sync.Mutex
	var taskProgress []float64
	var runCompletedProgress float64
	emitter.On(workflow.EventTaskCompleted, func(_ context.Context, e *workflow.Event) error {
		mu.Lock()
		defer mu.Unlock()
		taskProgress = append(taskProgress, e.ProgressPercent)
		return nil
	})
	emitter.On(workflow.EventRunCompleted, func(_ context.Context, e *workflow.Event) error {
		mu.Lock()
		defer mu.Unlock()
		runCompletedProgress = e.ProgressPercent
		return nil
	})

	driver := workflow.NewDriver(def, workflow.DriverOptions{Tools: tools, Emitter: emitter, MaxParallelTasks: 1})
	summary, err := driver.Run(context.Background(), "example.com", "user-1")
	require.NoError(t, err)
	assert.Equal(t, workflow.RunCompleted, summary.Status)

	require.Len(t, taskProgress, 2)
	assert.InDelta(t, 50.0, taskProgress[0], 0.01)
	assert.InDelta(t, 100.0, taskProgress[1], 0.01)
	assert.InDelta(t, 100.0, runCompletedProgress, 0.01)
}

func TestDriverRunFailsOnNonOptionalTaskFailure(t *testing.T) {
	def := buildDef(false,
		workflow.TaskDefinition{TaskID: "broken", Type: workflow.TaskTypeTool, Tool: "broken"},
	)
	tools := &fakeTools{results: map[string]workflow.ExecResult{
		"broken": {Err: fmt.Errorf("exit status 1")},
	}}
	driver := workflow.NewDriver(def, workflow.DriverOptions{Tools: tools})

	summary, err := driver.Run(context.Background(), "example.com", "user-1")
	require.NoError(t, err)
	assert.Equal(t, workflow.RunFailed, summary.Status)
	assert.Equal(t, workflow.TaskFailed, summary.Results["broken"].Status)
}

func TestDriverRunPartialWhenOnlyOptionalTaskFails(t *testing.T) {
	def := buildDef(false,
		workflow.TaskDefinition{TaskID: "required", Type: workflow.TaskTypeTool, Tool: "required"},
		workflow.TaskDefinition{TaskID: "nice_to_have", Type: workflow.TaskTypeTool, Tool: "nice_to_have", Optional: true},
	)
	tools := &fakeTools{results: map[string]workflow.ExecResult{
		"required":     {Data: map[string]any{}},
		"nice_to_have": {Err: fmt.Errorf("tool not found")},
	}}
	driver := workflow.NewDriver(def, workflow.DriverOptions{Tools: tools})

	summary, err := driver.Run(context.Background(), "example.com", "user-1")
	require.NoError(t, err)
	assert.Equal(t, workflow.RunPartial, summary.Status)
}

// Optional bypass: v depends on failed u but is optional, so it still
// runs to completion instead of being auto-failed by the dependency
// rule. u itself is non-optional, so the run's overall status is still
// failed — the bypass only changes v's own fate, not u's.
func TestDriverOptionalBypassEndToEnd(t *testing.T) {
	def := buildDef(false,
		workflow.TaskDefinition{TaskID: "u", Type: workflow.TaskTypeTool, Tool: "u"},
		workflow.TaskDefinition{TaskID: "v", Type: workflow.TaskTypeTool, Tool: "v", DependsOn: []string{"u"}, Optional: true},
	)
	tools := &fakeTools{results: map[string]workflow.ExecResult{
		"u": {Err: fmt.Errorf("boom")},
		"v": {Data: map[string]any{"ok": true}},
	}}
	driver := workflow.NewDriver(def, workflow.DriverOptions{Tools: tools})

	summary, err := driver.Run(context.Background(), "example.com", "user-1")
	require.NoError(t, err)
	assert.Equal(t, workflow.RunFailed, summary.Status)
	assert.Equal(t, workflow.TaskFailed, summary.Results["u"].Status)
	require.Contains(t, summary.Results, "v")
	assert.Equal(t, workflow.TaskCompleted, summary.Results["v"].Status)
}

// "follow_up" only becomes ready in the poll after "broken" and "gate"
// finish, so it's still outstanding when the stop_on_failure check
// fires at the end of that first batch and must be cancelled instead
// of dispatched.
func TestDriverStopOnFailureCancelsRemainingTasks(t *testing.T) {
	def := buildDef(true,
		workflow.TaskDefinition{TaskID: "broken", Type: workflow.TaskTypeTool, Tool: "broken", Priority: 10},
		workflow.TaskDefinition{TaskID: "gate", Type: workflow.TaskTypeTool, Tool: "gate", Priority: 5},
		workflow.TaskDefinition{TaskID: "follow_up", Type: workflow.TaskTypeTool, Tool: "follow_up", DependsOn: []string{"gate"}},
	)
	tools := &fakeTools{results: map[string]workflow.ExecResult{
		"broken":    {Err: fmt.Errorf("boom")},
		"gate":      {Data: map[string]any{}},
		"follow_up": {Data: map[string]any{}},
	}}
	driver := workflow.NewDriver(def, workflow.DriverOptions{Tools: tools, MaxParallelTasks: 1})

	summary, err := driver.Run(context.Background(), "example.com", "user-1")
	require.NoError(t, err)
	assert.Equal(t, workflow.RunFailed, summary.Status)
	require.Contains(t, summary.Results, "follow_up")
	assert.Equal(t, workflow.TaskCancelled, summary.Results["follow_up"].Status)
}

func TestDriverDependencyFailurePropagatesWithoutRunning(t *testing.T) {
	def := buildDef(false,
		workflow.TaskDefinition{TaskID: "u", Type: workflow.TaskTypeTool, Tool: "u"},
		workflow.TaskDefinition{TaskID: "w", Type: workflow.TaskTypeTool, Tool: "w", DependsOn: []string{"u"}},
	)
	tools := &fakeTools{results: map[string]workflow.ExecResult{
		"u": {Err: fmt.Errorf("boom")},
		"w": {Data: map[string]any{}},
	}}
	driver := workflow.NewDriver(def, workflow.DriverOptions{Tools: tools})

	summary, err := driver.Run(context.Background(), "example.com", "user-1")
	require.NoError(t, err)
	assert.Equal(t, workflow.RunFailed, summary.Status)
	require.Contains(t, summary.Results, "w")
	assert.Equal(t, workflow.TaskFailed, summary.Results["w"].Status)
	require.Len(t, summary.Results["w"].Errors, 1)
}

func TestDriverCancelMarksOutstandingTasksCancelled(t *testing.T) {
	def := buildDef(false,
		workflow.TaskDefinition{TaskID: "only", Type: workflow.TaskTypeTool, Tool: "only"},
	)
	tools := &fakeTools{results: map[string]workflow.ExecResult{
		"only": {Data: map[string]any{}},
	}}
	driver := workflow.NewDriver(def, workflow.DriverOptions{Tools: tools})
	driver.Cancel()

	summary, err := driver.Run(context.Background(), "example.com", "user-1")
	require.NoError(t, err)
	assert.Equal(t, workflow.RunCancelled, summary.Status)
	assert.Equal(t, workflow.TaskCancelled, summary.Results["only"].Status)
}

func TestDriverMergeTaskRequiresAllSourcesSucceeded(t *testing.T) {
	def := buildDef(false,
		workflow.TaskDefinition{TaskID: "a", Type: workflow.TaskTypeTool, Tool: "a"},
		workflow.TaskDefinition{
			TaskID: "merge", Type: workflow.TaskTypeMerge,
			MergeSources: []string{"a"}, MergeStrategy: workflow.MergeCombine, Optional: true,
		},
	)
	tools := &fakeTools{results: map[string]workflow.ExecResult{
		"a": {Err: fmt.Errorf("boom")},
	}}
	driver := workflow.NewDriver(def, workflow.DriverOptions{Tools: tools})

	summary, err := driver.Run(context.Background(), "example.com", "user-1")
	require.NoError(t, err)
	// merge depends on a (failed) and is optional, so the scheduler's
	// bypass rule lets it run; MergeTask itself then has no succeeded
	// source, so executeMerge fails it explicitly.
	require.Contains(t, summary.Results, "merge")
	assert.Equal(t, workflow.TaskFailed, summary.Results["merge"].Status)
}
