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
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reconflow/reconflow/pkg/workflow"
)

func TestEventEmitterDispatchesToRegisteredType(t *testing.T) {
	emitter := workflow.NewEventEmitter(false)

	var taskStarted, taskCompleted int32
	emitter.On(workflow.EventTaskStarted, func(ctx context.Context, e *workflow.Event) error {
		atomic.AddInt32(&taskStarted, 1)
		return nil
	})
	emitter.On(workflow.EventTaskCompleted, func(ctx context.Context, e *workflow.Event) error {
		atomic.AddInt32(&taskCompleted, 1)
		return nil
	})

	require.NoError(t, emitter.Emit(context.Background(), &workflow.Event{Type: workflow.EventTaskStarted, TaskID: "a"}))
	assert.EqualValues(t, 1, atomic.LoadInt32(&taskStarted))
	assert.EqualValues(t, 0, atomic.LoadInt32(&taskCompleted))
}

func TestEventEmitterStampsTimestamp(t *testing.T) {
	emitter := workflow.NewEventEmitter(false)
	e := &workflow.Event{Type: workflow.EventRunStarted}
	require.NoError(t, emitter.Emit(context.Background(), e))
	assert.False(t, e.Timestamp.IsZero())
}

func TestEventEmitterNilEvent(t *testing.T) {
	emitter := workflow.NewEventEmitter(false)
	assert.Error(t, emitter.Emit(context.Background(), nil))
}

func TestEventEmitterCollectsErrorsWithoutStopping(t *testing.T) {
	emitter := workflow.NewEventEmitter(false)
	var calls int32
	emitter.On(workflow.EventRunCompleted, func(ctx context.Context, e *workflow.Event) error {
		atomic.AddInt32(&calls, 1)
		return errors.New("listener one failed")
	})
	emitter.On(workflow.EventRunCompleted, func(ctx context.Context, e *workflow.Event) error {
		atomic.AddInt32(&calls, 1)
		return nil
	})

	err := emitter.Emit(context.Background(), &workflow.Event{Type: workflow.EventRunCompleted})
	assert.Error(t, err)
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
}

func TestEventEmitterAsyncRunsListenersConcurrently(t *testing.T) {
	emitter := workflow.NewEventEmitter(true)
	start := make(chan struct{})
	done := make(chan struct{}, 2)

	for i := 0; i < 2; i++ {
		emitter.On(workflow.EventTaskStarted, func(ctx context.Context, e *workflow.Event) error {
			<-start
			done <- struct{}{}
			return nil
		})
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- emitter.Emit(context.Background(), &workflow.Event{Type: workflow.EventTaskStarted})
	}()

	close(start)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("first listener never ran")
	}
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("second listener never ran")
	}
	require.NoError(t, <-errCh)
}
