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

package shared

import (
	"errors"
	"fmt"
	"os"

	rferrors "github.com/reconflow/reconflow/pkg/errors"
)

// Exit codes for the reconflow CLI.
const (
	ExitSuccess         = 0
	ExitExecutionFailed = 1
	ExitInvalidWorkflow = 2
	ExitUsageError      = 3
)

// ExitError is an error that carries a process exit code.
type ExitError struct {
	Code    int
	Message string
	Cause   error
}

func (e *ExitError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error { return e.Cause }

// NewExecutionError wraps a workflow-run failure as an ExitError.
func NewExecutionError(msg string, cause error) *ExitError {
	return &ExitError{Code: ExitExecutionFailed, Message: msg, Cause: cause}
}

// NewInvalidWorkflowError wraps a validation failure as an ExitError.
func NewInvalidWorkflowError(msg string, cause error) *ExitError {
	return &ExitError{Code: ExitInvalidWorkflow, Message: msg, Cause: cause}
}

// HandleExitError prints err and exits with its carried code, or
// ExitExecutionFailed for any other non-nil error.
func HandleExitError(err error) {
	if err == nil {
		return
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		if msg := exitErr.Error(); msg != "" {
			fmt.Fprintln(os.Stderr, RenderError(msg))
		}
		printUserVisibleSuggestion(err)
		os.Exit(exitErr.Code)
	}
	fmt.Fprintln(os.Stderr, RenderError(err.Error()))
	printUserVisibleSuggestion(err)
	os.Exit(ExitExecutionFailed)
}

// printUserVisibleSuggestion walks the error chain for a
// rferrors.UserVisibleError and prints its Suggestion, if any.
func printUserVisibleSuggestion(err error) {
	for err != nil {
		if userErr, ok := err.(rferrors.UserVisibleError); ok {
			if userErr.IsUserVisible() {
				if s := userErr.Suggestion(); s != "" {
					fmt.Fprintln(os.Stderr, Muted.Render("suggestion: "+s))
				}
			}
			return
		}
		err = errors.Unwrap(err)
	}
}
