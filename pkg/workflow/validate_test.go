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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	rferrors "github.com/reconflow/reconflow/pkg/errors"
	"github.com/reconflow/reconflow/pkg/workflow"
)

func validWorkflow() *workflow.WorkflowDefinition {
	def := &workflow.WorkflowDefinition{
		WorkflowID: "recon-run",
		Tasks: []workflow.TaskDefinition{
			{TaskID: "subfinder", Type: workflow.TaskTypeTool, Tool: "subfinder"},
			{TaskID: "httpx", Type: workflow.TaskTypeTool, Tool: "httpx", DependsOn: []string{"subfinder"}},
		},
	}
	def.ApplyDefaults()
	return def
}

func TestValidateAcceptsWellFormedWorkflow(t *testing.T) {
	def := validWorkflow()
	assert.NoError(t, def.Validate())
}

func TestValidateRejectsBadWorkflowID(t *testing.T) {
	def := validWorkflow()
	def.WorkflowID = "has a space"
	err := def.Validate()
	require.Error(t, err)
	var target *rferrors.BadIdentifierError
	assert.ErrorAs(t, err, &target)
}

func TestValidateRejectsNoTasks(t *testing.T) {
	def := &workflow.WorkflowDefinition{WorkflowID: "empty"}
	def.ApplyDefaults()
	err := def.Validate()
	require.Error(t, err)
	var target *rferrors.MissingFieldError
	assert.ErrorAs(t, err, &target)
}

func TestValidateRejectsDuplicateTaskID(t *testing.T) {
	def := validWorkflow()
	def.Tasks = append(def.Tasks, workflow.TaskDefinition{TaskID: "subfinder", Type: workflow.TaskTypeTool, Tool: "amass"})
	err := def.Validate()
	require.Error(t, err)
	var target *rferrors.BadIdentifierError
	assert.ErrorAs(t, err, &target)
}

func TestValidateRejectsUnknownDependency(t *testing.T) {
	def := validWorkflow()
	def.Tasks[1].DependsOn = []string{"nonexistent"}
	err := def.Validate()
	require.Error(t, err)
	var target *rferrors.UnknownDependencyError
	assert.ErrorAs(t, err, &target)
}

func TestValidateRejectsCycle(t *testing.T) {
	def := &workflow.WorkflowDefinition{
		WorkflowID: "cyclic",
		Tasks: []workflow.TaskDefinition{
			{TaskID: "a", Type: workflow.TaskTypeTool, Tool: "x", DependsOn: []string{"b"}},
			{TaskID: "b", Type: workflow.TaskTypeTool, Tool: "x", DependsOn: []string{"a"}},
		},
	}
	def.ApplyDefaults()
	err := def.Validate()
	require.Error(t, err)
	var target *rferrors.CircularDependencyError
	assert.ErrorAs(t, err, &target)
}

func TestValidateRejectsMergeWithNoSources(t *testing.T) {
	def := &workflow.WorkflowDefinition{
		WorkflowID: "wf",
		Tasks: []workflow.TaskDefinition{
			{TaskID: "merge", Type: workflow.TaskTypeMerge, MergeStrategy: workflow.MergeCombine},
		},
	}
	def.ApplyDefaults()
	err := def.Validate()
	require.Error(t, err)
	var target *rferrors.MissingFieldError
	assert.ErrorAs(t, err, &target)
}

func TestValidateRejectsInvalidMergeStrategy(t *testing.T) {
	def := &workflow.WorkflowDefinition{
		WorkflowID: "wf",
		Tasks: []workflow.TaskDefinition{
			{TaskID: "a", Type: workflow.TaskTypeTool, Tool: "x"},
			{TaskID: "merge", Type: workflow.TaskTypeMerge, MergeSources: []string{"a"}, MergeStrategy: "bogus"},
		},
	}
	def.ApplyDefaults()
	err := def.Validate()
	require.Error(t, err)
	var target *rferrors.InvalidEnumError
	assert.ErrorAs(t, err, &target)
}

func TestValidateRejectsUnknownTaskType(t *testing.T) {
	def := &workflow.WorkflowDefinition{
		WorkflowID: "wf",
		Tasks: []workflow.TaskDefinition{
			{TaskID: "weird", Type: "NOT_A_TYPE"},
		},
	}
	def.ApplyDefaults()
	// ApplyDefaults only fills Type when it is empty; an explicitly
	// bogus type is left alone for Validate to reject.
	err := def.Validate()
	require.Error(t, err)
	var target *rferrors.InvalidEnumError
	assert.ErrorAs(t, err, &target)
}

func TestValidateMergeDependsOnMergeSourcesForCycleDetection(t *testing.T) {
	def := &workflow.WorkflowDefinition{
		WorkflowID: "wf",
		Tasks: []workflow.TaskDefinition{
			{TaskID: "merge", Type: workflow.TaskTypeMerge, MergeSources: []string{"consumer"}, MergeStrategy: workflow.MergeCombine},
			{TaskID: "consumer", Type: workflow.TaskTypeTool, Tool: "x", DependsOn: []string{"merge"}},
		},
	}
	def.ApplyDefaults()
	err := def.Validate()
	require.Error(t, err)
	var target *rferrors.CircularDependencyError
	assert.ErrorAs(t, err, &target)
}
