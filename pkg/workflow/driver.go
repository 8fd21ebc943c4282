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
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/reconflow/reconflow/pkg/artifact"
	rferrors "github.com/reconflow/reconflow/pkg/errors"
)

// RunStore is the slice of the Run-State Store the Driver needs
// (spec.md §4.8): create/update the one Run Record and its Step
// Records. Declared here, rather than imported from pkg/store, so
// pkg/workflow never depends on a storage backend; pkg/store.Store
// satisfies this interface structurally.
type RunStore interface {
	CreateRun(ctx context.Context, run *RunRecord) error
	UpdateRun(ctx context.Context, run *RunRecord) error
	CreateStep(ctx context.Context, step *StepRecord) error
	UpdateStep(ctx context.Context, step *StepRecord) error
}

// ToolExecutor is the slice of pkg/adapter.Registry/Execute the
// Driver needs, declared locally for the same reason as RunStore.
// *AdapterToolExecutor (tools.go) satisfies it by wrapping an
// *adapter.Registry and adapter.Execute; it is passed in as
// DriverOptions.Tools.
type ToolExecutor interface {
	Resolve(tool string) (ExecuteFunc, Metadata, error)
}

// ExecuteFunc runs one adapter invocation and reports back a
// normalized outcome; it is the shape of adapter.Execute with the
// concrete Adapter already closed over by the ToolExecutor.
type ExecuteFunc func(ctx context.Context, params map[string]any, timeout time.Duration) ExecResult

// ExecResult mirrors pkg/adapter.Result without pkg/workflow needing
// to import pkg/adapter.
type ExecResult struct {
	Data        map[string]any
	RawOutput   string
	Stderr      string
	ExitCode    int
	Duration    time.Duration
	ToolMissing bool
	Err         error
}

// Metadata mirrors the fields of a registered tool the Driver itself
// consumes (its configured default timeout).
type Metadata struct {
	Name           string
	DefaultTimeout time.Duration
}

// ArtifactSink is what the Driver asks of the Artifact Persister: a
// file writer (used by FILE_OUTPUT/JSON_AGGREGATE and to stash raw/
// parsed tool output) plus the subdomain-set writer the Merger's
// companion lists are generated from.
type ArtifactSink interface {
	ArtifactWriter
	WriteRaw(tool, ext, content string) (string, error)
	WriteParsed(tool string, parsed any) (string, error)
	WriteSubdomains(records []artifact.SubdomainRecord) (map[string]string, error)
}

// DriverOptions configures one Driver. Nil Store/Tracer/Limiter/
// Metrics/Emitter/Artifacts are all valid: each is a no-op in that
// case, so a Driver can run with nothing but a registry and a logger
// (as the unit tests do).
type DriverOptions struct {
	Store            RunStore
	Tools            ToolExecutor
	Artifacts        ArtifactSink
	Emitter          *EventEmitter
	Logger           *slog.Logger
	Tracer           trace.Tracer
	SpawnLimiter     *rate.Limiter
	MaxParallelTasks int
	DefaultTimeout   time.Duration
	Metrics          DriverMetrics
}

// DriverMetrics is the slice of internal/metrics.Collectors the
// Driver updates, declared locally to avoid an import of a
// prometheus-specific package from the execution core.
type DriverMetrics interface {
	ObserveTask(tool string, status TaskStatus, duration time.Duration)
	SetRunsActive(n int)
}

// Driver executes one WorkflowDefinition to completion, owning every
// piece of per-step housekeeping spec.md §4.8 reserves to it: Run/Step
// Record writes, progress events, and the in-memory TaskResult map.
type Driver struct {
	def  *WorkflowDefinition
	opts DriverOptions
	sch  *Scheduler

	mu        sync.Mutex
	results   map[string]*TaskResult
	completed map[string]bool
	failed    map[string]bool
	cancelled map[string]bool

	cancelRequested bool
}

// NewDriver builds a Driver for def. def must already be validated
// (see (*WorkflowDefinition).Validate).
func NewDriver(def *WorkflowDefinition, opts DriverOptions) *Driver {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.MaxParallelTasks <= 0 {
		opts.MaxParallelTasks = def.MaxParallelTasks
	}
	if opts.MaxParallelTasks <= 0 {
		opts.MaxParallelTasks = 1
	}
	return &Driver{
		def:       def,
		opts:      opts,
		sch:       NewScheduler(def),
		results:   make(map[string]*TaskResult),
		completed: make(map[string]bool),
		failed:    make(map[string]bool),
		cancelled: make(map[string]bool),
	}
}

// Cancel requests that the run stop: tasks already dispatched to an
// adapter run to completion, but no task not yet handed to a
// processor is started (spec.md §4.8, Running -> Cancelled).
func (d *Driver) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cancelRequested = true
}

// RunSummary is what Run returns once the workflow reaches a terminal
// state.
type RunSummary struct {
	RunID   string
	Status  RunStatus
	Results map[string]*TaskResult
}

// Run drives the workflow against target to completion, persisting a
// Run Record and one Step Record per task via opts.Store (if set),
// emitting progress events via opts.Emitter (if set), and recording
// one otel span per run and per task via opts.Tracer (if set).
//
// The loop is the Scheduler poll/dispatch/collect cycle spec.md §4.2
// and §4.8 describe: poll for the ready set, immediately settle any
// dependency-failed or dependency-cancelled tasks, launch up to
// MaxParallelTasks ready tasks concurrently (one synchronously if
// MaxParallelTasks is 1, matching "the highest-priority ready task is
// executed to completion before the next poll"), and repeat until
// every task is terminal or the Scheduler's stuck-closeout fires.
func (d *Driver) Run(ctx context.Context, target, userID string) (*RunSummary, error) {
	runID := uuid.NewString()
	logger := d.opts.Logger.With(slog.String("run_id", runID), slog.String("workflow_id", d.def.WorkflowID))

	runCtx, runSpan := safeStartSpan(ctx, d.opts.Tracer, "workflow.run",
		trace.WithAttributes(
			attribute.String("run_id", runID),
			attribute.String("workflow_id", d.def.WorkflowID),
			attribute.String("target", target),
		))
	defer safeEndSpan(runSpan)

	run := &RunRecord{
		RunID:        runID,
		UserID:       userID,
		WorkflowName: d.def.Name,
		Target:       target,
		Status:       RunRunning,
		StartedAt:    time.Now(),
	}
	if err := d.createRun(runCtx, run); err != nil {
		safeRecordError(runSpan, err)
		return nil, &rferrors.InternalError{Context: "create run record", Cause: err}
	}
	if d.opts.Metrics != nil {
		d.opts.Metrics.SetRunsActive(1)
		defer d.opts.Metrics.SetRunsActive(0)
	}
	d.emit(runCtx, &Event{Type: EventRunStarted, RunID: runID, Message: "run started"})

	status, runErr := d.loop(runCtx, logger, runID)

	run.Status = status
	run.CompletedAt = time.Now()
	if blob, err := json.Marshal(d.snapshotResults()); err == nil {
		run.ResultsBlob = string(blob)
	}
	if err := d.updateRun(runCtx, run); err != nil {
		logger.Warn("failed to persist final run status", slog.String("error", err.Error()))
	}

	if runErr != nil {
		safeRecordError(runSpan, runErr)
		safeSetStatus(runSpan, codes.Error, runErr.Error())
	} else {
		safeSetStatus(runSpan, codes.Ok, string(status))
	}
	safeSetAttributes(runSpan, attribute.String("status", string(status)))

	d.emit(runCtx, &Event{Type: EventRunCompleted, RunID: runID, RunStatus: status, Message: "run completed", ProgressPercent: 100})

	return &RunSummary{RunID: runID, Status: status, Results: d.snapshotResults()}, runErr
}

// loop is the Scheduler poll/dispatch/collect cycle. It returns the
// run's terminal status and, only for a Driver-level failure distinct
// from any task failure, a non-nil error (spec.md §4.8, §4.9).
func (d *Driver) loop(ctx context.Context, logger *slog.Logger, runID string) (RunStatus, error) {
	sem := make(chan struct{}, d.opts.MaxParallelTasks)

	for {
		if d.isCancelled() {
			d.cancelRemaining(ctx, runID)
			return RunCancelled, nil
		}

		completed, failed, cancelled := d.snapshotSets()
		if d.sch.Done(completed, failed, cancelled) {
			break
		}

		ready, newlyFailed, newlyCancelled := d.sch.Poll(completed, failed, cancelled)

		for _, n := range newlyFailed {
			d.settleBlocked(ctx, runID, n, TaskFailed, &rferrors.DependencyFailedError{TaskID: n.TaskID, FailedOn: n.FailedOn})
		}
		for _, n := range newlyCancelled {
			d.settleBlocked(ctx, runID, n, TaskCancelled, nil)
		}

		if len(ready) == 0 {
			if len(newlyFailed) > 0 || len(newlyCancelled) > 0 {
				continue
			}
			completed, failed, cancelled = d.snapshotSets()
			stuck := d.sch.RemainingStuck(completed, failed, cancelled, ready, newlyFailed, newlyCancelled)
			if len(stuck) == 0 {
				break
			}
			logger.Warn("scheduler stuck, closing out remaining tasks as failed",
				slog.Any("task_ids", stuck))
			for _, id := range stuck {
				t := d.def.TaskByID(id)
				if t == nil {
					continue
				}
				d.settleBlocked(ctx, runID, FailureNotice{TaskID: id, FailedOn: ""}, TaskFailed,
					&rferrors.AllRemainingBlockedError{TaskIDs: stuck})
			}
			continue
		}

		var wg sync.WaitGroup
		for _, t := range ready {
			if d.isCancelled() {
				break
			}
			t := t
			sem <- struct{}{}
			wg.Add(1)
			go func() {
				defer wg.Done()
				defer func() { <-sem }()
				d.runTask(ctx, runID, t, logger)
			}()
			if d.opts.MaxParallelTasks <= 1 {
				wg.Wait()
			}
		}
		wg.Wait()

		if d.def.StopOnFailure && d.anyNonOptionalFailure() {
			logger.Warn("non-optional task failed, stop_on_failure set: cancelling remaining tasks")
			d.cancelRemaining(ctx, runID)
			return RunFailed, nil
		}
	}

	// Final status per spec.md §7: completed (nothing failed), failed
	// (some non-optional task failed), partial (only optional tasks
	// failed, everything else reached a terminal non-failed state).
	if d.anyNonOptionalFailure() {
		return RunFailed, nil
	}
	_, failed, _ := d.snapshotSets()
	if len(failed) == 0 {
		return RunCompleted, nil
	}
	return RunPartial, nil
}

// anyNonOptionalFailure reports whether the failed set contains a
// task not marked optional (spec.md §7's distinction between `failed`
// and `partial`).
func (d *Driver) anyNonOptionalFailure() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	for id := range d.failed {
		t := d.def.TaskByID(id)
		if t != nil && !t.Optional {
			return true
		}
	}
	return false
}

// settleBlocked records a task the Scheduler never ran: either failed
// purely by dependency propagation, or cancelled because its
// dependency was cancelled. It still gets a Step Record and a
// task_completed event, matching "insert the Step Record ... on
// completion" for every task, run or not.
func (d *Driver) settleBlocked(ctx context.Context, runID string, n FailureNotice, status TaskStatus, err error) {
	t := d.def.TaskByID(n.TaskID)
	if t == nil {
		return
	}
	now := time.Now()
	result := &TaskResult{
		TaskID:    n.TaskID,
		Status:    status,
		Output:    map[string]any{},
		Timestamp: now,
	}
	if err != nil {
		result.Errors = []string{err.Error()}
	}

	d.mu.Lock()
	d.results[n.TaskID] = result
	switch status {
	case TaskFailed:
		d.failed[n.TaskID] = true
	case TaskCancelled:
		d.cancelled[n.TaskID] = true
	}
	d.mu.Unlock()

	step := &StepRecord{
		StepID:      uuid.NewString(),
		RunID:       runID,
		TaskName:    t.TaskID,
		ToolOrType:  string(t.Type),
		Status:      status,
		StartedAt:   now,
		CompletedAt: now,
	}
	if err != nil {
		step.Errors = err.Error()
	}
	if e := d.createStep(ctx, step); e != nil {
		d.opts.Logger.Warn("failed to persist blocked step", slog.String("task_id", n.TaskID), slog.String("error", e.Error()))
	}

	if d.opts.Metrics != nil {
		d.opts.Metrics.ObserveTask(metricLabel(t), status, 0)
	}
	d.emit(ctx, &Event{Type: EventTaskCompleted, RunID: runID, TaskID: n.TaskID, Status: status, Message: err2msg(err), ProgressPercent: d.progressPercent()})
}

func err2msg(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// runTask performs the per-step housekeeping spec.md §4.8 assigns the
// Driver: insert the Step Record before invoking the processor, run
// it, then record status/output/errors, emit the event exactly once,
// and write the TaskResult.
func (d *Driver) runTask(ctx context.Context, runID string, t *TaskDefinition, logger *slog.Logger) {
	taskLogger := logger.With(slog.String("task_id", t.TaskID), slog.String("task_type", string(t.Type)))

	taskCtx, span := safeStartSpan(ctx, d.opts.Tracer, "workflow.task",
		trace.WithAttributes(
			attribute.String("task_id", t.TaskID),
			attribute.String("task_type", string(t.Type)),
		))
	defer safeEndSpan(span)

	startedAt := time.Now()
	step := &StepRecord{
		StepID:     uuid.NewString(),
		RunID:      runID,
		TaskName:   t.TaskID,
		ToolOrType: string(t.Type),
		Status:     TaskRunning,
		StartedAt:  startedAt,
	}
	if err := d.createStep(taskCtx, step); err != nil {
		taskLogger.Warn("failed to persist step start", slog.String("error", err.Error()))
	}
	d.emit(taskCtx, &Event{Type: EventTaskStarted, RunID: runID, TaskID: t.TaskID, Message: "task started"})

	lookup := NewResultLookup(d.snapshotResults())
	result := d.execute(taskCtx, t, lookup, taskLogger)
	result.Timestamp = time.Now()

	d.mu.Lock()
	d.results[t.TaskID] = result
	switch result.Status {
	case TaskCompleted:
		d.completed[t.TaskID] = true
	case TaskFailed:
		d.failed[t.TaskID] = true
	case TaskCancelled:
		d.cancelled[t.TaskID] = true
	}
	d.mu.Unlock()

	step.Status = result.Status
	step.CompletedAt = result.Timestamp
	if data, err := json.Marshal(result.Output); err == nil {
		step.Output = string(data)
	}
	if len(result.Errors) > 0 {
		step.Errors = result.Errors[0]
	}
	if err := d.updateStep(taskCtx, step); err != nil {
		taskLogger.Warn("failed to persist step completion", slog.String("error", err.Error()))
	}

	if d.opts.Metrics != nil {
		d.opts.Metrics.ObserveTask(metricLabel(t), result.Status, result.ExecutionTime)
	}

	if len(result.Errors) > 0 {
		safeRecordError(span, fmt.Errorf("%s", result.Errors[0]))
	}
	safeSetStatus(span, statusCode(result.Status), string(result.Status))
	safeSetAttributes(span, attribute.String("status", string(result.Status)))

	d.emit(taskCtx, &Event{Type: EventTaskCompleted, RunID: runID, TaskID: t.TaskID, Status: result.Status, Message: firstError(result.Errors), ProgressPercent: d.progressPercent()})
}

// metricLabel is the `tool` label value for a task's metrics: the
// tool name for TOOL/WEB_CRAWL/EXPLOIT_LOOKUP tasks, otherwise the
// task type (MERGE, FILE_OUTPUT, JSON_AGGREGATE never name a tool).
func metricLabel(t *TaskDefinition) string {
	if t.Tool != "" {
		return t.Tool
	}
	return string(t.Type)
}

func statusCode(status TaskStatus) codes.Code {
	if status == TaskCompleted {
		return codes.Ok
	}
	return codes.Error
}

func firstError(errs []string) string {
	if len(errs) == 0 {
		return ""
	}
	return errs[0]
}

// execute dispatches a single task to the processor its Type names
// (spec.md §4.8's Driver dispatch; the Scheduler reads Type only to
// treat a MERGE task's merge_sources as dependencies). WEB_CRAWL and EXPLOIT_LOOKUP are adapter-backed exactly like
// TOOL — their semantics are tool-specific and out of this core's
// scope, but their dispatch path through the Tool Adapter Registry is
// identical, keyed by the task's Tool field.
func (d *Driver) execute(ctx context.Context, t *TaskDefinition, lookup ResultLookup, logger *slog.Logger) *TaskResult {
	switch t.Type {
	case TaskTypeTool, TaskTypeWebCrawl, TaskTypeExploitLookup:
		return d.executeTool(ctx, t, lookup, logger)
	case TaskTypeMerge:
		return d.executeMerge(ctx, t, lookup, logger)
	case TaskTypeFileOutput:
		return d.executeProcessor(t, logger, func() (map[string]any, error) {
			return RunFileOutput(t, lookup, d.artifactWriter())
		})
	case TaskTypeJSONAggregate:
		return d.executeProcessor(t, logger, func() (map[string]any, error) {
			return RunJSONAggregate(t, lookup, d.artifactWriter())
		})
	default:
		return failResult(t.TaskID, fmt.Errorf("unsupported task type %q", t.Type))
	}
}

func (d *Driver) executeTool(ctx context.Context, t *TaskDefinition, lookup ResultLookup, logger *slog.Logger) *TaskResult {
	if d.opts.Tools == nil {
		return failResult(t.TaskID, fmt.Errorf("no tool executor configured"))
	}

	toolName := t.Tool
	if toolName == "" {
		toolName = string(t.Type)
	}
	run, meta, err := d.opts.Tools.Resolve(toolName)
	if err != nil {
		return failResult(t.TaskID, err)
	}

	params := ResolveParameters(t.Parameters, lookup, logger)

	timeout := time.Duration(t.Timeout) * time.Second
	if timeout <= 0 {
		timeout = meta.DefaultTimeout
	}
	if timeout <= 0 {
		timeout = d.opts.DefaultTimeout
	}

	if d.opts.SpawnLimiter != nil {
		if err := d.opts.SpawnLimiter.Wait(ctx); err != nil {
			return failResult(t.TaskID, err)
		}
	}

	res := run(ctx, params, timeout)

	if d.opts.Artifacts != nil {
		d.persistBestEffort(toolName, res, logger)
	}

	result := &TaskResult{
		TaskID:        t.TaskID,
		Output:        res.Data,
		RawOutput:     res.RawOutput,
		ExecutionTime: res.Duration,
		ExitCode:      res.ExitCode,
		ToolMissing:   res.ToolMissing,
	}
	if res.Stderr != "" {
		result.Errors = append(result.Errors, res.Stderr)
	}

	switch {
	case res.Err == nil:
		result.Status = TaskCompleted
	default:
		result.Status = TaskFailed
		result.Errors = append([]string{res.Err.Error()}, result.Errors...)
	}
	if result.Output == nil {
		result.Output = map[string]any{}
	}
	return result
}

// persistBestEffort mirrors spec.md §4.6's "all writes are
// best-effort from the engine's point of view" for TOOL/adapter
// output: a write failure is logged, never failing the task.
func (d *Driver) persistBestEffort(tool string, res ExecResult, logger *slog.Logger) {
	if res.RawOutput != "" {
		if _, err := d.opts.Artifacts.WriteRaw(tool, "txt", res.RawOutput); err != nil {
			logger.Warn("failed to persist raw tool output", slog.String("tool", tool), slog.String("error", err.Error()))
		}
	}
	if res.Data != nil {
		if _, err := d.opts.Artifacts.WriteParsed(tool, res.Data); err != nil {
			logger.Warn("failed to persist parsed tool output", slog.String("tool", tool), slog.String("error", err.Error()))
		}
	}
}

// executeMerge implements spec.md §4.5/§4.6's MERGE task: verify
// every merge source completed before delegating to MergeTask, then
// direct the Artifact Persister to write the merged subdomain set and
// its companion lists.
func (d *Driver) executeMerge(ctx context.Context, t *TaskDefinition, lookup ResultLookup, logger *slog.Logger) *TaskResult {
	for _, src := range t.MergeSources {
		r, ok := lookup.Lookup(src)
		if !ok || r == nil || !r.Succeeded() {
			return failResult(t.TaskID, &rferrors.SourceNotCompletedError{TaskID: t.TaskID, SourceTask: src})
		}
	}

	merged, err := MergeTask(t, lookup)
	if err != nil {
		return failResult(t.TaskID, err)
	}

	items, _ := merged["merged_data"].([]any)
	output := map[string]any{
		"merged_data": items,
		"item_count":  len(items),
	}

	if d.opts.Artifacts != nil {
		records := toSubdomainRecords(items)
		paths, err := d.opts.Artifacts.WriteSubdomains(records)
		if err != nil {
			logger.Warn("failed to persist merged artifact set", slog.String("task_id", t.TaskID), slog.String("error", err.Error()))
		} else {
			output["output_files"] = paths
		}
	}

	return &TaskResult{TaskID: t.TaskID, Status: TaskCompleted, Output: output}
}

func (d *Driver) executeProcessor(t *TaskDefinition, logger *slog.Logger, run func() (map[string]any, error)) *TaskResult {
	output, err := run()
	if err != nil {
		return failResult(t.TaskID, err)
	}
	if output == nil {
		output = map[string]any{}
	}
	return &TaskResult{TaskID: t.TaskID, Status: TaskCompleted, Output: output}
}

// toSubdomainRecords adapts a merged item list (decoded tool/merge
// output, each item normally a map[string]any) into the Artifact
// Persister's SubdomainRecord schema (spec.md §4.6). Items that don't
// carry a name are skipped; everything else degrades gracefully
// rather than panicking on an unexpected shape.
func toSubdomainRecords(items []any) []artifact.SubdomainRecord {
	records := make([]artifact.SubdomainRecord, 0, len(items))
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		name, _ := m["name"].(string)
		if name == "" {
			continue
		}
		rec := artifact.SubdomainRecord{
			Name: name,
			IPs:  toStringList(m["ips"]),
			ASNs: toStringList(m["asns"]),
		}
		if source, ok := m["source"].(string); ok {
			rec.Source = source
		}
		if ports, ok := m["ports"].(map[string]any); ok {
			rec.Ports = make(map[string]string, len(ports))
			for k, v := range ports {
				rec.Ports[k] = fmt.Sprintf("%v", v)
			}
		}
		records = append(records, rec)
	}
	return records
}

func toStringList(v any) []string {
	switch val := v.(type) {
	case []any:
		out := make([]string, 0, len(val))
		for _, item := range val {
			out = append(out, fmt.Sprintf("%v", item))
		}
		return out
	case []string:
		return val
	case string:
		if val == "" {
			return nil
		}
		return []string{val}
	default:
		return nil
	}
}

func failResult(taskID string, err error) *TaskResult {
	return &TaskResult{
		TaskID: taskID,
		Status: TaskFailed,
		Output: map[string]any{},
		Errors: []string{err.Error()},
	}
}

func (d *Driver) artifactWriter() ArtifactWriter {
	if d.opts.Artifacts == nil {
		return noopWriter{}
	}
	return d.opts.Artifacts
}

type noopWriter struct{}

func (noopWriter) WriteFile(string, []byte) error { return nil }

func (d *Driver) isCancelled() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cancelRequested
}

// cancelRemaining marks every non-terminal task cancelled, with Step
// Records and events, honoring "outstanding tasks not yet handed to
// adapters are marked cancelled" (spec.md §4.8).
func (d *Driver) cancelRemaining(ctx context.Context, runID string) {
	completed, failed, cancelled := d.snapshotSets()
	for i := range d.def.Tasks {
		id := d.def.Tasks[i].TaskID
		if completed[id] || failed[id] || cancelled[id] {
			continue
		}
		d.settleBlocked(ctx, runID, FailureNotice{TaskID: id}, TaskCancelled, nil)
	}
}

func (d *Driver) snapshotSets() (completed, failed, cancelled map[string]bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	completed = copySet(d.completed)
	failed = copySet(d.failed)
	cancelled = copySet(d.cancelled)
	return
}

// progressPercent reports the share of this run's tasks that have
// reached a terminal state, 0-100 (spec.md §2/§6's progress_percent).
func (d *Driver) progressPercent() float64 {
	total := len(d.def.Tasks)
	if total == 0 {
		return 100
	}
	completed, failed, cancelled := d.snapshotSets()
	done := len(completed) + len(failed) + len(cancelled)
	return float64(done) / float64(total) * 100
}

func (d *Driver) snapshotResults() map[string]*TaskResult {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make(map[string]*TaskResult, len(d.results))
	for k, v := range d.results {
		out[k] = v
	}
	return out
}

func copySet(in map[string]bool) map[string]bool {
	out := make(map[string]bool, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func (d *Driver) emit(ctx context.Context, e *Event) {
	if d.opts.Emitter == nil {
		return
	}
	if err := d.opts.Emitter.Emit(ctx, e); err != nil {
		d.opts.Logger.Warn("event listener returned an error", slog.String("event", string(e.Type)), slog.String("error", err.Error()))
	}
}

func (d *Driver) createRun(ctx context.Context, run *RunRecord) error {
	if d.opts.Store == nil {
		return nil
	}
	return d.opts.Store.CreateRun(ctx, run)
}

func (d *Driver) updateRun(ctx context.Context, run *RunRecord) error {
	if d.opts.Store == nil {
		return nil
	}
	return d.opts.Store.UpdateRun(ctx, run)
}

func (d *Driver) createStep(ctx context.Context, step *StepRecord) error {
	if d.opts.Store == nil {
		return nil
	}
	return d.opts.Store.CreateStep(ctx, step)
}

func (d *Driver) updateStep(ctx context.Context, step *StepRecord) error {
	if d.opts.Store == nil {
		return nil
	}
	return d.opts.Store.UpdateStep(ctx, step)
}

// --- otel span helpers, adapted from the panic-recovery wrapping
// pattern the daemon runner uses around every span call, so that an
// otel SDK misconfiguration or exporter panic never takes a scan
// down with it. ---

func safeStartSpan(ctx context.Context, tracer trace.Tracer, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	if tracer == nil {
		return ctx, nil
	}
	defer func() {
		if r := recover(); r != nil {
			slog.Warn("panic during span start", "error", r, "span_name", name)
		}
	}()
	return tracer.Start(ctx, name, opts...)
}

func safeEndSpan(span trace.Span) {
	if span == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			slog.Warn("panic during span end", "error", r)
		}
	}()
	span.End()
}

func safeSetAttributes(span trace.Span, attrs ...attribute.KeyValue) {
	if span == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			slog.Warn("panic during set attributes", "error", r)
		}
	}()
	span.SetAttributes(attrs...)
}

func safeRecordError(span trace.Span, err error) {
	if span == nil || err == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			slog.Warn("panic during record error", "error", r)
		}
	}()
	span.RecordError(err)
}

func safeSetStatus(span trace.Span, code codes.Code, message string) {
	if span == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			slog.Warn("panic during set status", "error", r)
		}
	}()
	span.SetStatus(code, message)
}
