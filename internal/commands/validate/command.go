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

// Package validate implements `reconflow validate`.
package validate

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/reconflow/reconflow/internal/commands/shared"
	"github.com/reconflow/reconflow/internal/pipelines"
	"github.com/reconflow/reconflow/pkg/workflow"
)

// NewCommand builds the `reconflow validate <pipeline>` command. name
// is either a registered prebuilt pipeline name or a path to a YAML
// file on disk (see pipelines.Load).
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <pipeline>",
		Short: "Validate a pipeline definition without running it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, args[0])
		},
	}
	return cmd
}

func run(cmd *cobra.Command, path string) error {
	data, err := pipelines.Load(path)
	if err != nil {
		return shared.NewInvalidWorkflowError("loading "+path, err)
	}

	def, err := workflow.ParseDefinition(data)
	if err != nil {
		cmd.Println(shared.RenderError(fmt.Sprintf("%s is invalid: %v", path, err)))
		return shared.NewInvalidWorkflowError(path+" failed validation", err)
	}

	cmd.Println(shared.RenderOK(fmt.Sprintf("%s is valid (%d tasks)", path, len(def.Tasks))))
	return nil
}
