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

package errors_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	rferrors "github.com/reconflow/reconflow/pkg/errors"
)

func TestValidationErrorsMessages(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{"BadIdentifier", &rferrors.BadIdentifierError{Field: "task_id", Value: "bad id!"}, `invalid identifier for task_id: "bad id!"`},
		{"UnknownDependency", &rferrors.UnknownDependencyError{TaskID: "b", Missing: "a"}, `task "b" depends on unknown task "a"`},
		{"MissingField", &rferrors.MissingFieldError{TaskID: "m", Field: "merge_sources"}, `task "m" missing required field "merge_sources"`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.err.Error(); got != tc.want {
				t.Errorf("got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestCircularDependencyError(t *testing.T) {
	err := &rferrors.CircularDependencyError{Cycle: []string{"a", "b", "a"}}
	if err.Error() == "" {
		t.Error("expected non-empty message")
	}
}

func TestDependencyFailedError(t *testing.T) {
	err := &rferrors.DependencyFailedError{TaskID: "y", FailedOn: "x"}
	if got := err.Error(); !strings.Contains(got, "Dependency failed") {
		t.Errorf("expected message to contain 'Dependency failed', got %q", got)
	}
}

func TestToolMissingError(t *testing.T) {
	err := &rferrors.ToolMissingError{Tool: "amass", Executable: "amass"}
	if got := err.Error(); !strings.Contains(got, "not found") {
		t.Errorf("expected message to mention 'not found', got %q", got)
	}
}

func TestToolMissingErrorIsUserVisible(t *testing.T) {
	err := &rferrors.ToolMissingError{Tool: "nuclei", Executable: "nuclei"}

	var userErr rferrors.UserVisibleError = err
	if !userErr.IsUserVisible() {
		t.Error("expected IsUserVisible to return true")
	}
	if got := userErr.UserMessage(); !strings.Contains(got, "nuclei") {
		t.Errorf("expected user message to mention the tool name, got %q", got)
	}
	if got := userErr.Suggestion(); !strings.Contains(got, "nuclei") {
		t.Errorf("expected suggestion to mention the executable name, got %q", got)
	}
}

func TestTimeoutErrorUnwrap(t *testing.T) {
	cause := errors.New("context deadline exceeded")
	err := &rferrors.TimeoutError{Tool: "nuclei", Duration: 900 * time.Second, Cause: cause}
	if errors.Unwrap(err) != cause {
		t.Error("expected Unwrap to return cause")
	}
}

func TestSourceNotCompletedError(t *testing.T) {
	err := &rferrors.SourceNotCompletedError{TaskID: "merge_subdomains", SourceTask: "enum_amass"}
	want := `Source task "enum_amass" did not complete successfully`
	if got := err.Error(); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestInternalErrorUnwrap(t *testing.T) {
	cause := errors.New("panic recovered")
	err := &rferrors.InternalError{Context: "driver loop", Cause: cause}
	if errors.Unwrap(err) != cause {
		t.Error("expected Unwrap to return cause")
	}
	if got := err.Error(); !strings.Contains(got, "driver loop") {
		t.Errorf("expected context in message, got %q", got)
	}
}

func TestNotFoundError(t *testing.T) {
	err := &rferrors.NotFoundError{Resource: "tool", ID: "masscan"}
	want := "tool not found: masscan"
	if got := err.Error(); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}
