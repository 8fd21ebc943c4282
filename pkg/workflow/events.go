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
	"fmt"
	"sync"
	"time"
)

// EventType identifies one kind of progress event a run emits.
type EventType string

const (
	// EventRunStarted is emitted once, when a run transitions pending -> running.
	EventRunStarted EventType = "run_started"

	// EventTaskStarted is emitted when a task begins executing.
	EventTaskStarted EventType = "task_started"

	// EventTaskCompleted is emitted when a task reaches a terminal state
	// (completed, failed, skipped, or cancelled).
	EventTaskCompleted EventType = "task_completed"

	// EventRunCompleted is emitted once, when a run reaches a terminal status.
	EventRunCompleted EventType = "run_completed"
)

// Event is one progress notification for a run, consumed by CLI
// progress rendering and by anything else observing a live run.
type Event struct {
	Type      EventType
	RunID     string
	Timestamp time.Time
	TaskID    string     // set for task_started/task_completed
	Status    TaskStatus // set for task_completed
	RunStatus RunStatus  // set for run_completed
	Message   string

	// ProgressPercent is the share of the run's tasks that have reached
	// a terminal state (completed, failed, or cancelled), 0-100. Set on
	// task_completed and run_completed (spec.md §2/§6).
	ProgressPercent float64
}

// EventListener handles one emitted event. A returned error is
// collected but never stops the run or other listeners.
type EventListener func(ctx context.Context, event *Event) error

// EventEmitter fans a run's events out to registered listeners.
type EventEmitter struct {
	mu        sync.RWMutex
	listeners map[EventType][]EventListener
	async     bool
}

// NewEventEmitter builds an EventEmitter. When async is true, listeners
// for one event run concurrently; Emit still returns only once every
// listener has finished, so a slow listener delays the caller either
// way.
func NewEventEmitter(async bool) *EventEmitter {
	return &EventEmitter{
		listeners: make(map[EventType][]EventListener),
		async:     async,
	}
}

// On registers a listener for the given event type.
func (e *EventEmitter) On(eventType EventType, listener EventListener) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.listeners[eventType] = append(e.listeners[eventType], listener)
}

// Emit dispatches event to every listener registered for its type.
func (e *EventEmitter) Emit(ctx context.Context, event *Event) error {
	if event == nil {
		return fmt.Errorf("event cannot be nil")
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	e.mu.RLock()
	listeners := make([]EventListener, len(e.listeners[event.Type]))
	copy(listeners, e.listeners[event.Type])
	e.mu.RUnlock()

	if e.async {
		return e.emitAsync(ctx, event, listeners)
	}
	return e.emitSync(ctx, event, listeners)
}

func (e *EventEmitter) emitSync(ctx context.Context, event *Event, listeners []EventListener) error {
	var lastErr error
	for _, l := range listeners {
		if err := l(ctx, event); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

func (e *EventEmitter) emitAsync(ctx context.Context, event *Event, listeners []EventListener) error {
	var wg sync.WaitGroup
	errCh := make(chan error, len(listeners))
	for _, l := range listeners {
		wg.Add(1)
		go func(listener EventListener) {
			defer wg.Done()
			if err := listener(ctx, event); err != nil {
				errCh <- err
			}
		}(l)
	}
	wg.Wait()
	close(errCh)

	var lastErr error
	for err := range errCh {
		lastErr = err
	}
	return lastErr
}
