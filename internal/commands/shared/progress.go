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

package shared

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/reconflow/reconflow/pkg/workflow"
)

// ProgressPrinter renders a run's lifecycle events as they stream from
// the Execution Driver's EventEmitter. It falls back to plain,
// unstyled lines when out isn't a terminal-backed writer; lipgloss
// styles degrade gracefully on their own, so no TTY detection is
// needed here beyond what the styles already do.
type ProgressPrinter struct {
	mu      sync.Mutex
	out     io.Writer
	started map[string]time.Time
}

// NewProgressPrinter returns a ProgressPrinter writing to out.
func NewProgressPrinter(out io.Writer) *ProgressPrinter {
	return &ProgressPrinter{out: out, started: make(map[string]time.Time)}
}

// Listener returns an workflow.EventListener suitable for
// EventEmitter.On, registered once per event type the caller cares
// about (run_started, task_started, task_completed, run_completed).
func (p *ProgressPrinter) Listener() workflow.EventListener {
	return func(_ context.Context, e *workflow.Event) error {
		p.mu.Lock()
		defer p.mu.Unlock()

		switch e.Type {
		case workflow.EventRunStarted:
			fmt.Fprintf(p.out, "%s run %s\n", Header.Render("▶"), Muted.Render(e.RunID))
		case workflow.EventTaskStarted:
			p.started[e.TaskID] = time.Now()
			fmt.Fprintf(p.out, "  %s %s...\n", StatusInfo.Render(SymbolRunning), e.TaskID)
		case workflow.EventTaskCompleted:
			dur := ""
			if t, ok := p.started[e.TaskID]; ok {
				dur = Muted.Render(fmt.Sprintf(" (%s)", time.Since(t).Round(time.Millisecond)))
			}
			line := fmt.Sprintf("  %s %s%s %s", RenderTaskStatus(e.Status), e.TaskID, dur, Muted.Render(fmt.Sprintf("[%.0f%%]", e.ProgressPercent)))
			if e.Message != "" && e.Status != workflow.TaskCompleted {
				line += Muted.Render(": " + e.Message)
			}
			fmt.Fprintln(p.out, line)
		case workflow.EventRunCompleted:
			fmt.Fprintf(p.out, "%s run %s finished: %s\n", Header.Render("■"), Muted.Render(e.RunID), RenderRunStatus(e.RunStatus))
		}
		return nil
	}
}
