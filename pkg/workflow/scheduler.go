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

import "sort"

// Scheduler computes the ready set for an immutable WorkflowDefinition
// given the evolving completed/failed/cancelled sets (spec.md §4.2).
// It holds no execution state of its own.
type Scheduler struct {
	def *WorkflowDefinition
}

// NewScheduler builds a Scheduler over a validated WorkflowDefinition.
func NewScheduler(def *WorkflowDefinition) *Scheduler {
	return &Scheduler{def: def}
}

// Disposition is the immediate outcome the Scheduler assigns to a
// task on one poll, before the Driver ever hands it to a processor.
type Disposition int

const (
	dispPending Disposition = iota
	dispReady
	dispFailedDependency
	dispCancelledDependency
)

// FailureNotice records a task the Scheduler is marking failed or
// cancelled purely due to a dependency's terminal state, without ever
// running it (spec.md §4.2, §4.9).
type FailureNotice struct {
	TaskID   string
	FailedOn string // the dependency that caused it
}

// Poll classifies every task against the current completed/failed/
// cancelled sets and returns:
//   - ready: tasks eligible to run now, ordered by priority descending
//     then declaration order (the Scheduler's tie-break);
//   - newlyFailed: tasks immediately failed with "Dependency failed"
//     because a non-optional dependency is in failed;
//   - newlyCancelled: tasks whose dependency was cancelled, so they
//     are cancelled too (never failed, per spec.md §5).
//
// Optional bypass: if a task is marked optional, a failed dependency
// does not fail it and does not block it — it is treated as satisfied
// for readiness purposes, matching the worked example in spec.md §8
// ("Optional bypass") where v (optional, depends on failed u) still
// runs.
func (s *Scheduler) Poll(completed, failed, cancelled map[string]bool) (ready []*TaskDefinition, newlyFailed, newlyCancelled []FailureNotice) {
	for i := range s.def.Tasks {
		t := &s.def.Tasks[i]
		if completed[t.TaskID] || failed[t.TaskID] || cancelled[t.TaskID] {
			continue
		}

		deps := t.DependsOn
		if t.Type == TaskTypeMerge {
			deps = append(append([]string{}, deps...), t.MergeSources...)
		}

		var failingDep, cancelledDep string
		allSatisfied := true
		for _, dep := range deps {
			switch {
			case cancelled[dep]:
				cancelledDep = dep
			case completed[dep]:
				// satisfied
			case failed[dep]:
				if t.Optional {
					// bypass: treat as satisfied
					continue
				}
				failingDep = dep
			default:
				allSatisfied = false
			}
		}

		switch {
		case failingDep != "":
			newlyFailed = append(newlyFailed, FailureNotice{TaskID: t.TaskID, FailedOn: failingDep})
		case cancelledDep != "":
			newlyCancelled = append(newlyCancelled, FailureNotice{TaskID: t.TaskID, FailedOn: cancelledDep})
		case allSatisfied:
			ready = append(ready, t)
		}
	}

	sort.SliceStable(ready, func(i, j int) bool {
		if ready[i].Priority != ready[j].Priority {
			return ready[i].Priority > ready[j].Priority
		}
		return ready[i].declOrder < ready[j].declOrder
	})

	return ready, newlyFailed, newlyCancelled
}

// Done reports whether every task has reached a terminal state.
func (s *Scheduler) Done(completed, failed, cancelled map[string]bool) bool {
	return len(completed)+len(failed)+len(cancelled) >= len(s.def.Tasks)
}

// RemainingStuck returns the task ids that are neither terminal nor
// ready nor newly (un)blocked by this poll — the defensive closeout
// spec.md §4.2 describes ("the Scheduler marks all remaining tasks
// failed ... and terminates"). In a correctly-validated acyclic graph
// under single-worker semantics this set is normally empty; it exists
// as a backstop against an otherwise-unreachable scheduling deadlock.
func (s *Scheduler) RemainingStuck(completed, failed, cancelled map[string]bool, ready []*TaskDefinition, newlyFailed, newlyCancelled []FailureNotice) []string {
	accounted := make(map[string]bool, len(s.def.Tasks))
	for _, t := range ready {
		accounted[t.TaskID] = true
	}
	for _, f := range newlyFailed {
		accounted[f.TaskID] = true
	}
	for _, c := range newlyCancelled {
		accounted[c.TaskID] = true
	}
	var stuck []string
	for _, t := range s.def.Tasks {
		if completed[t.TaskID] || failed[t.TaskID] || cancelled[t.TaskID] || accounted[t.TaskID] {
			continue
		}
		stuck = append(stuck, t.TaskID)
	}
	return stuck
}
