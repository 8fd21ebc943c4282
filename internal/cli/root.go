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

// Package cli builds reconflow's root Cobra command and carries the
// version metadata injected at build time via ldflags.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/reconflow/reconflow/internal/commands/shared"
)

var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"

	configPath string
)

// ConfigPath returns the value of the global --config flag, or "" if unset.
func ConfigPath() string { return configPath }

// SetVersion records build-time version metadata for `reconflow version`.
func SetVersion(v, c, d string) {
	version, commit, buildDate = v, c, d
}

// GetVersion returns the recorded build-time version metadata.
func GetVersion() (v, c, d string) {
	return version, commit, buildDate
}

// NewRootCommand builds the bare `reconflow` command with its global
// flags; subcommands are attached by main.go.
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "reconflow",
		Short:         "Orchestrate security reconnaissance pipelines",
		Long:          `reconflow runs DAG-shaped reconnaissance pipelines over a set of tool adapters (subfinder, amass, httpx, nuclei, nmap), merging and persisting their output.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version,
	}

	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a reconflow config file")

	return cmd
}

// HandleExitError prints err (if any) and exits the process with its
// carried exit code; see internal/commands/shared.ExitError.
func HandleExitError(err error) {
	shared.HandleExitError(err)
}
