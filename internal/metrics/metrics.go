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

// Package metrics exposes the Driver's prometheus collectors: a
// per-status task counter, a task duration histogram, and a gauge of
// runs currently executing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/reconflow/reconflow/pkg/workflow"
)

// Collectors groups the metrics the Driver updates as it executes
// tasks and runs. Construct one with NewCollectors and register it
// with a prometheus.Registerer (the default registry, or a dedicated
// one for the `run --metrics-addr` HTTP server).
type Collectors struct {
	TasksTotal     *prometheus.CounterVec
	TaskDuration   *prometheus.HistogramVec
	RunsActive     prometheus.Gauge
}

// NewCollectors builds an unregistered Collectors set.
func NewCollectors() *Collectors {
	return &Collectors{
		TasksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reconflow_tasks_total",
			Help: "Total number of tasks executed, by terminal status.",
		}, []string{"status"}),
		TaskDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "reconflow_task_duration_seconds",
			Help:    "Task execution duration in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 14),
		}, []string{"tool"}),
		RunsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "reconflow_runs_active",
			Help: "Number of workflow runs currently executing.",
		}),
	}
}

// MustRegister registers every collector with reg, panicking on
// duplicate registration (mirrors prometheus.MustRegister's contract).
func (c *Collectors) MustRegister(reg prometheus.Registerer) {
	reg.MustRegister(c.TasksTotal, c.TaskDuration, c.RunsActive)
}

// ObserveTask implements workflow.DriverMetrics: the Driver calls this
// once per terminal task, run or not.
func (c *Collectors) ObserveTask(tool string, status workflow.TaskStatus, duration time.Duration) {
	c.TasksTotal.WithLabelValues(string(status)).Inc()
	if duration > 0 {
		c.TaskDuration.WithLabelValues(tool).Observe(duration.Seconds())
	}
}

// SetRunsActive implements workflow.DriverMetrics.
func (c *Collectors) SetRunsActive(n int) {
	c.RunsActive.Set(float64(n))
}
