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

	rferrors "github.com/reconflow/reconflow/pkg/errors"
)

func TestWrap(t *testing.T) {
	t.Run("wraps error with context", func(t *testing.T) {
		original := errors.New("original error")
		wrapped := rferrors.Wrap(original, "additional context")

		if wrapped == nil {
			t.Fatal("Wrap should not return nil for non-nil error")
		}
		msg := wrapped.Error()
		if !strings.Contains(msg, "additional context") {
			t.Errorf("wrapped error should contain context, got: %s", msg)
		}
		if !strings.Contains(msg, "original error") {
			t.Errorf("wrapped error should contain original message, got: %s", msg)
		}
	})

	t.Run("returns nil for nil error", func(t *testing.T) {
		if wrapped := rferrors.Wrap(nil, "context"); wrapped != nil {
			t.Errorf("Wrap(nil, _) should return nil, got: %v", wrapped)
		}
	})

	t.Run("preserves error chain", func(t *testing.T) {
		original := errors.New("root cause")
		wrapped := rferrors.Wrap(original, "context")

		if !errors.Is(wrapped, original) {
			t.Error("wrapped error should match original with errors.Is")
		}
	})
}

func TestWrapf(t *testing.T) {
	t.Run("wraps error with formatted context", func(t *testing.T) {
		original := errors.New("executable not found")
		wrapped := rferrors.Wrapf(original, "spawning tool %s", "subfinder")

		msg := wrapped.Error()
		if !strings.Contains(msg, "spawning tool subfinder") {
			t.Errorf("wrapped error should contain formatted context, got: %s", msg)
		}
		if !strings.Contains(msg, "executable not found") {
			t.Errorf("wrapped error should contain original message, got: %s", msg)
		}
	})

	t.Run("returns nil for nil error", func(t *testing.T) {
		if wrapped := rferrors.Wrapf(nil, "loading %s", "x"); wrapped != nil {
			t.Errorf("Wrapf(nil, _, _) should return nil, got: %v", wrapped)
		}
	})
}

func TestIsAs(t *testing.T) {
	t.Run("Is finds error in chain", func(t *testing.T) {
		target := &rferrors.BadIdentifierError{Field: "task_id", Value: "bad id"}
		wrapped := rferrors.Wrap(target, "wrapper")

		if !rferrors.Is(wrapped, target) {
			t.Error("Is should find target error in chain")
		}
	})

	t.Run("As extracts typed error from chain", func(t *testing.T) {
		original := &rferrors.MissingFieldError{TaskID: "merge_subdomains", Field: "merge_sources"}
		wrapped := rferrors.Wrap(original, "validation failed")

		var target *rferrors.MissingFieldError
		if !rferrors.As(wrapped, &target) {
			t.Fatal("As should extract MissingFieldError from chain")
		}
		if target.TaskID != "merge_subdomains" {
			t.Errorf("extracted error TaskID = %q, want %q", target.TaskID, "merge_subdomains")
		}
	})

	t.Run("As returns false for different error type", func(t *testing.T) {
		err := &rferrors.BadIdentifierError{Field: "task_id"}
		var target *rferrors.NotFoundError
		if rferrors.As(err, &target) {
			t.Error("As should return false when error type doesn't match")
		}
	})

	t.Run("extracts all adapter error types", func(t *testing.T) {
		tests := []struct {
			name   string
			err    error
			target interface{}
		}{
			{"ToolMissingError", &rferrors.ToolMissingError{Tool: "amass"}, &rferrors.ToolMissingError{}},
			{"TimeoutError", &rferrors.TimeoutError{Tool: "nuclei"}, &rferrors.TimeoutError{}},
			{"NonZeroExitError", &rferrors.NonZeroExitError{Tool: "nmap", ExitCode: 1}, &rferrors.NonZeroExitError{}},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				wrapped := rferrors.Wrap(tt.err, "wrapper")
				if !rferrors.As(wrapped, &tt.target) {
					t.Errorf("As should extract %s from chain", tt.name)
				}
			})
		}
	})
}

func TestUnwrap(t *testing.T) {
	t.Run("unwraps single level", func(t *testing.T) {
		original := errors.New("original")
		wrapped := rferrors.Wrap(original, "wrapper")

		if unwrapped := rferrors.Unwrap(wrapped); unwrapped != original {
			t.Errorf("Unwrap should return original error, got: %v", unwrapped)
		}
	})

	t.Run("returns nil for nil error", func(t *testing.T) {
		if unwrapped := rferrors.Unwrap(nil); unwrapped != nil {
			t.Errorf("Unwrap(nil) should return nil, got: %v", unwrapped)
		}
	})
}

func TestNew(t *testing.T) {
	t.Run("creates new error", func(t *testing.T) {
		err := rferrors.New("test error")
		if err == nil || err.Error() != "test error" {
			t.Fatalf("New should create error with matching message, got: %v", err)
		}
	})
}
