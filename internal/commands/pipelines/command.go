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

// Package pipelines implements `reconflow pipelines`.
package pipelines

import (
	"fmt"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/reconflow/reconflow/internal/commands/shared"
	pipelinespkg "github.com/reconflow/reconflow/internal/pipelines"
)

// NewCommand builds the `reconflow pipelines` command group.
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pipelines",
		Short: "Inspect the embedded prebuilt pipelines",
	}
	cmd.AddCommand(newListCommand(), newShowCommand(), newPickCommand())
	return cmd
}

func newListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the embedded prebuilt pipelines",
		RunE: func(cmd *cobra.Command, args []string) error {
			all, err := pipelinespkg.List()
			if err != nil {
				return shared.NewExecutionError("listing pipelines", err)
			}
			for _, p := range all {
				cmd.Printf("%s  %s\n", shared.Bold.Render(p.Name), shared.Muted.Render(p.Description))
			}
			return nil
		},
	}
}

func newShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show <name>",
		Short: "Print a prebuilt pipeline's YAML",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := pipelinespkg.Load(args[0])
			if err != nil {
				return shared.NewInvalidWorkflowError("loading pipeline "+args[0], err)
			}
			cmd.Print(string(data))
			return nil
		},
	}
}

func newPickCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "pick",
		Short: "Interactively choose a prebuilt pipeline",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPick(cmd)
		},
	}
}

func runPick(cmd *cobra.Command) error {
	all, err := pipelinespkg.List()
	if err != nil {
		return shared.NewExecutionError("listing pipelines", err)
	}
	if len(all) == 0 {
		return shared.NewExecutionError("no pipelines available", nil)
	}

	options := make([]huh.Option[string], 0, len(all))
	for _, p := range all {
		label := p.Name
		if p.Description != "" {
			label = fmt.Sprintf("%s - %s", p.Name, p.Description)
		}
		options = append(options, huh.NewOption(label, p.Name))
	}

	var selected string
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Select a pipeline:").
				Options(options...).
				Value(&selected),
		),
	)
	if err := form.Run(); err != nil {
		return shared.NewExecutionError("picking a pipeline", err)
	}

	cmd.Println(shared.RenderOK(fmt.Sprintf("selected %s", selected)))
	cmd.Printf("run it with: reconflow run %s --target <target>\n", selected)
	return nil
}
