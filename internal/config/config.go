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

// Package config loads reconflow's engine-wide settings: where
// artifacts and the state database live, and the defaults applied to
// workflows that don't set their own.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	rferrors "github.com/reconflow/reconflow/pkg/errors"
)

// Config is reconflow's engine-wide configuration.
type Config struct {
	// DataRoot is where scan artifacts are written (spec.md §6).
	// Environment: RECONFLOW_DATA_ROOT
	DataRoot string `yaml:"data_root"`

	// StorePath is the Run-State Store's sqlite database file, or
	// ":memory:" to disable durability.
	// Environment: RECONFLOW_STORE_PATH
	StorePath string `yaml:"store_path"`

	// DefaultTimeout is handed to the Driver as its last-resort task
	// timeout. Parsed pipelines already give every task a timeout (300
	// seconds when the YAML sets none), so it only applies to a task
	// whose timeout is still zero.
	DefaultTimeout time.Duration `yaml:"default_timeout"`

	// MaxParallelTasks is loaded but not applied by the `run` command:
	// a pipeline's own max_parallel_tasks (1 when unset), or an
	// explicit --max-parallel, decides its concurrency.
	MaxParallelTasks int `yaml:"max_parallel_tasks"`

	// SpawnRatePerSecond bounds how often the Driver starts new tool
	// subprocesses (golang.org/x/time/rate token bucket).
	SpawnRatePerSecond float64 `yaml:"spawn_rate_per_second"`

	// LogLevel is one of trace/debug/info/warn/error.
	// Environment: RECONFLOW_LOG_LEVEL
	LogLevel string `yaml:"log_level"`

	// LogFormat is "json" or "text".
	// Environment: LOG_FORMAT
	LogFormat string `yaml:"log_format"`

	// MetricsAddr, if non-empty, is the address the `run` command
	// serves /metrics on (e.g. "127.0.0.1:9090"). Empty disables it.
	MetricsAddr string `yaml:"metrics_addr"`
}

// Default returns the configuration used when no file or environment
// override is present.
func Default() *Config {
	return &Config{
		DataRoot:           defaultDataRoot(),
		StorePath:          defaultStorePath(),
		DefaultTimeout:     300 * time.Second,
		MaxParallelTasks:   1,
		SpawnRatePerSecond: 2,
		LogLevel:           "info",
		LogFormat:          "text",
	}
}

// Load reads Default(), overlays a YAML file at path (if non-empty and
// present), then overlays environment variables.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, &rferrors.ConfigError{Key: "path", Reason: "failed to read config file", Cause: err}
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, &rferrors.ConfigError{Key: "path", Reason: "failed to parse config file", Cause: err}
		}
	}

	applyEnv(cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("RECONFLOW_DATA_ROOT"); v != "" {
		cfg.DataRoot = v
	}
	if v := os.Getenv("RECONFLOW_STORE_PATH"); v != "" {
		cfg.StorePath = v
	}
	if v := os.Getenv("RECONFLOW_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}
	if v := os.Getenv("RECONFLOW_MAX_PARALLEL_TASKS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxParallelTasks = n
		}
	}
}

// ConfigDir returns the XDG config directory for reconflow
// (~/.config/reconflow, respecting XDG_CONFIG_HOME), creating it if
// needed.
func ConfigDir() (string, error) {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, ".config")
	}
	dir := filepath.Join(base, "reconflow")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", err
	}
	return dir, nil
}

func defaultDataRoot() string {
	dir, err := ConfigDir()
	if err != nil {
		return "data"
	}
	return filepath.Join(dir, "data")
}

func defaultStorePath() string {
	dir, err := ConfigDir()
	if err != nil {
		return "reconflow.db"
	}
	return filepath.Join(dir, "reconflow.db")
}
