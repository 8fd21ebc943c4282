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

// Package shared holds CLI rendering and exit-code helpers common to
// every reconflow subcommand.
package shared

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/reconflow/reconflow/pkg/workflow"
)

// CLI style colors, using lipgloss.
var (
	StatusOK    = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))  // green
	StatusWarn  = lipgloss.NewStyle().Foreground(lipgloss.Color("214")) // orange
	StatusError = lipgloss.NewStyle().Foreground(lipgloss.Color("196")) // red
	StatusInfo  = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))  // blue
	Muted       = lipgloss.NewStyle().Foreground(lipgloss.Color("245")) // gray
	Bold        = lipgloss.NewStyle().Bold(true)
	Header      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
)

// Symbols for status indicators.
const (
	SymbolOK      = "✓"
	SymbolWarn    = "⚠"
	SymbolError   = "✗"
	SymbolRunning = "●"
	SymbolInfo    = "•"
)

// RenderOK renders a success message with a green checkmark.
func RenderOK(msg string) string {
	return StatusOK.Render(SymbolOK) + " " + msg
}

// RenderWarn renders a warning message with an orange symbol.
func RenderWarn(msg string) string {
	return StatusWarn.Render(SymbolWarn) + " " + msg
}

// RenderError renders an error message with a red X.
func RenderError(msg string) string {
	return StatusError.Render(SymbolError) + " " + msg
}

// RenderTaskStatus renders a task's terminal status with its matching
// symbol and color, for `run`'s progress output.
func RenderTaskStatus(status workflow.TaskStatus) string {
	switch status {
	case workflow.TaskCompleted:
		return StatusOK.Render(SymbolOK)
	case workflow.TaskFailed:
		return StatusError.Render(SymbolError)
	case workflow.TaskCancelled, workflow.TaskSkipped:
		return StatusWarn.Render(SymbolWarn)
	case workflow.TaskRunning:
		return StatusInfo.Render(SymbolRunning)
	default:
		return Muted.Render(SymbolInfo)
	}
}

// RenderRunStatus renders a run's terminal status with its matching color.
func RenderRunStatus(status workflow.RunStatus) string {
	switch status {
	case workflow.RunCompleted:
		return StatusOK.Render(string(status))
	case workflow.RunFailed:
		return StatusError.Render(string(status))
	case workflow.RunPartial, workflow.RunCancelled:
		return StatusWarn.Render(string(status))
	default:
		return Muted.Render(string(status))
	}
}
