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

// Package run implements `reconflow run`.
package run

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/reconflow/reconflow/internal/cli"
	"github.com/reconflow/reconflow/internal/commands/shared"
	"github.com/reconflow/reconflow/internal/config"
	"github.com/reconflow/reconflow/internal/metrics"
	"github.com/reconflow/reconflow/internal/pipelines"
	"github.com/reconflow/reconflow/pkg/adapter"
	"github.com/reconflow/reconflow/pkg/adapter/tools"
	"github.com/reconflow/reconflow/pkg/artifact"
	rflog "github.com/reconflow/reconflow/internal/log"
	"github.com/reconflow/reconflow/pkg/store"
	"github.com/reconflow/reconflow/pkg/workflow"
)

type options struct {
	target         string
	dataRoot       string
	maxParallel    int
	stopOnFailure  bool
	userID         string
	metricsAddr    string
}

// NewCommand builds the `reconflow run <pipeline> --target <target>` command.
func NewCommand() *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use:   "run <pipeline>",
		Short: "Run a reconnaissance pipeline against a target",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipeline(cmd, args[0], &opts)
		},
	}

	cmd.Flags().StringVar(&opts.target, "target", "", "target host or domain to scan (required)")
	cmd.Flags().StringVar(&opts.dataRoot, "data-root", "", "override the configured artifact data root")
	cmd.Flags().IntVar(&opts.maxParallel, "max-parallel", 0, "override the pipeline's max_parallel_tasks")
	cmd.Flags().BoolVar(&opts.stopOnFailure, "stop-on-failure", false, "cancel remaining tasks once a non-optional task has failed")
	cmd.Flags().StringVar(&opts.userID, "user", "", "user identifier recorded on the run")
	cmd.Flags().StringVar(&opts.metricsAddr, "metrics-addr", "", "serve Prometheus /metrics on this address while running")
	_ = cmd.MarkFlagRequired("target")

	return cmd
}

func runPipeline(cmd *cobra.Command, name string, opts *options) error {
	cfg, err := config.Load(cli.ConfigPath())
	if err != nil {
		return shared.NewInvalidWorkflowError("loading configuration", err)
	}

	dataRoot := cfg.DataRoot
	if opts.dataRoot != "" {
		dataRoot = opts.dataRoot
	}

	data, err := pipelines.Load(name)
	if err != nil {
		return shared.NewInvalidWorkflowError("loading pipeline "+name, err)
	}
	data = pipelines.Render(data, name, opts.target)
	def, err := workflow.ParseDefinition(data)
	if err != nil {
		return shared.NewInvalidWorkflowError("parsing pipeline "+name, err)
	}
	if opts.stopOnFailure {
		def.StopOnFailure = true
	}
	// Only an explicit --max-parallel overrides the pipeline's own
	// max_parallel_tasks; the engine-wide config default must not
	// silently clamp every pipeline down to it.
	if opts.maxParallel > 0 {
		def.MaxParallelTasks = opts.maxParallel
	}
	if err := def.Validate(); err != nil {
		return shared.NewInvalidWorkflowError("pipeline "+name+" is invalid", err)
	}

	logger := rflog.New(&rflog.Config{Level: cfg.LogLevel, Format: rflog.Format(cfg.LogFormat)})

	registry := adapter.NewRegistry()
	tools.RegisterAll(registry)

	dbPath := cfg.StorePath
	var runStore workflow.RunStore
	if dbPath == ":memory:" || dbPath == "" {
		runStore = store.NewMemoryStore()
	} else {
		sqliteStore, err := store.Open(store.Config{Path: dbPath, MaxOpenConns: 4})
		if err != nil {
			return shared.NewExecutionError("opening run state store", err)
		}
		defer sqliteStore.Close()
		runStore = sqliteStore
	}

	persister := artifact.NewPersister(dataRoot, opts.target)
	if err := persister.EnsureLayout(); err != nil {
		return shared.NewExecutionError("preparing artifact directory", err)
	}

	collectors := metrics.NewCollectors()
	metricsAddr := cfg.MetricsAddr
	if opts.metricsAddr != "" {
		metricsAddr = opts.metricsAddr
	}
	if metricsAddr != "" {
		reg := prometheus.NewRegistry()
		collectors.MustRegister(reg)
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		go func() {
			_ = http.ListenAndServe(metricsAddr, mux)
		}()
	}

	emitter := workflow.NewEventEmitter(false)
	printer := shared.NewProgressPrinter(os.Stdout)
	emitter.On(workflow.EventRunStarted, printer.Listener())
	emitter.On(workflow.EventTaskStarted, printer.Listener())
	emitter.On(workflow.EventTaskCompleted, printer.Listener())
	emitter.On(workflow.EventRunCompleted, printer.Listener())

	driver := workflow.NewDriver(def, workflow.DriverOptions{
		Store:            runStore,
		Tools:            workflow.NewAdapterToolExecutor(registry),
		Artifacts:        persister,
		Emitter:          emitter,
		Logger:           logger,
		SpawnLimiter:     rate.NewLimiter(rate.Limit(cfg.SpawnRatePerSecond), 1),
		MaxParallelTasks: def.MaxParallelTasks,
		DefaultTimeout:   cfg.DefaultTimeout,
		Metrics:          collectors,
	})

	start := time.Now()
	summary, err := driver.Run(cmd.Context(), opts.target, opts.userID)
	if err != nil {
		return shared.NewExecutionError("running pipeline "+name, err)
	}

	cmd.Println(fmt.Sprintf("%d tasks in %s", len(summary.Results), time.Since(start).Round(time.Millisecond)))

	switch summary.Status {
	case workflow.RunCompleted:
		return nil
	case workflow.RunPartial:
		return shared.NewExecutionError("run "+summary.RunID+" completed with failures", nil)
	default:
		return shared.NewExecutionError("run "+summary.RunID+" ended as "+string(summary.Status), nil)
	}
}
