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

package metrics_test

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reconflow/reconflow/internal/metrics"
	"github.com/reconflow/reconflow/pkg/workflow"
)

func TestObserveTaskIncrementsCounterByStatus(t *testing.T) {
	c := metrics.NewCollectors()

	c.ObserveTask("subfinder", workflow.TaskCompleted, time.Second)
	c.ObserveTask("subfinder", workflow.TaskCompleted, time.Second)
	c.ObserveTask("nmap", workflow.TaskFailed, time.Second)

	assert.Equal(t, float64(2), testutil.ToFloat64(c.TasksTotal.WithLabelValues(string(workflow.TaskCompleted))))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.TasksTotal.WithLabelValues(string(workflow.TaskFailed))))
}

func TestObserveTaskSkipsDurationWhenZero(t *testing.T) {
	c := metrics.NewCollectors()

	c.ObserveTask("subfinder", workflow.TaskCompleted, 0)

	assert.Equal(t, 0, testutil.CollectAndCount(c.TaskDuration))
}

func TestObserveTaskRecordsDurationWhenPositive(t *testing.T) {
	c := metrics.NewCollectors()

	c.ObserveTask("subfinder", workflow.TaskCompleted, 2*time.Second)

	assert.Equal(t, 1, testutil.CollectAndCount(c.TaskDuration))
}

func TestSetRunsActiveSetsGauge(t *testing.T) {
	c := metrics.NewCollectors()

	c.SetRunsActive(3)
	assert.Equal(t, float64(3), testutil.ToFloat64(c.RunsActive))

	c.SetRunsActive(0)
	assert.Equal(t, float64(0), testutil.ToFloat64(c.RunsActive))
}

func TestMustRegisterRegistersAllCollectors(t *testing.T) {
	c := metrics.NewCollectors()
	reg := prometheus.NewRegistry()

	require.NotPanics(t, func() { c.MustRegister(reg) })

	mfs, err := reg.Gather()
	require.NoError(t, err)

	var names []string
	for _, mf := range mfs {
		names = append(names, mf.GetName())
	}
	assert.Contains(t, names, "reconflow_runs_active")
}
