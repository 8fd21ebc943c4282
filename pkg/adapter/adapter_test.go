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

package adapter_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reconflow/reconflow/pkg/adapter"
	rferrors "github.com/reconflow/reconflow/pkg/errors"
)

// scriptedAdapter is a fake Adapter driven by closures, mirroring the
// teacher's MockExecutionAdapter for scripting adapter behavior in
// tests without spawning a real security tool.
type scriptedAdapter struct {
	meta      adapter.Metadata
	validate  func(map[string]any) error
	buildArgv func(map[string]any) ([]string, error)
	parse     func(stdout, stderr string, exitCode int) (map[string]any, error)
}

func (s *scriptedAdapter) Metadata() adapter.Metadata { return s.meta }
func (s *scriptedAdapter) Validate(params map[string]any) error {
	if s.validate != nil {
		return s.validate(params)
	}
	return nil
}
func (s *scriptedAdapter) BuildArgv(params map[string]any) ([]string, error) {
	return s.buildArgv(params)
}
func (s *scriptedAdapter) Parse(stdout, stderr string, exitCode int) (map[string]any, error) {
	return s.parse(stdout, stderr, exitCode)
}

func TestExecuteSuccess(t *testing.T) {
	a := &scriptedAdapter{
		meta:      adapter.Metadata{Name: "echoer", Executable: "sh"},
		buildArgv: func(map[string]any) ([]string, error) { return []string{"-c", "echo hello"}, nil },
		parse: func(stdout, stderr string, exitCode int) (map[string]any, error) {
			return map[string]any{"line": stdout}, nil
		},
	}

	res := adapter.Execute(context.Background(), a, nil, time.Second)
	require.NoError(t, res.Err)
	assert.Equal(t, "hello\n", res.Data["line"])
	assert.Equal(t, 0, res.ExitCode)
}

func TestExecuteValidateRejectsParameters(t *testing.T) {
	a := &scriptedAdapter{
		meta:     adapter.Metadata{Name: "strict"},
		validate: func(map[string]any) error { return fmt.Errorf("missing target") },
	}
	res := adapter.Execute(context.Background(), a, nil, time.Second)
	var target *rferrors.InvalidParametersError
	assert.ErrorAs(t, res.Err, &target)
}

func TestExecuteToolMissing(t *testing.T) {
	a := &scriptedAdapter{
		meta:      adapter.Metadata{Name: "ghost", Executable: "definitely-not-a-real-binary-xyz"},
		buildArgv: func(map[string]any) ([]string, error) { return nil, nil },
	}
	res := adapter.Execute(context.Background(), a, nil, time.Second)
	var target *rferrors.ToolMissingError
	assert.ErrorAs(t, res.Err, &target)
	assert.True(t, res.ToolMissing)
}

func TestExecuteNonZeroExit(t *testing.T) {
	a := &scriptedAdapter{
		meta:      adapter.Metadata{Name: "failer", Executable: "sh"},
		buildArgv: func(map[string]any) ([]string, error) { return []string{"-c", "exit 3"}, nil },
		parse: func(stdout, stderr string, exitCode int) (map[string]any, error) {
			return map[string]any{}, nil
		},
	}
	res := adapter.Execute(context.Background(), a, nil, time.Second)
	var target *rferrors.NonZeroExitError
	require.ErrorAs(t, res.Err, &target)
	assert.Equal(t, 3, res.ExitCode)
}

func TestExecuteTimeout(t *testing.T) {
	a := &scriptedAdapter{
		meta:      adapter.Metadata{Name: "slow", Executable: "sh"},
		buildArgv: func(map[string]any) ([]string, error) { return []string{"-c", "sleep 2"}, nil },
		parse: func(stdout, stderr string, exitCode int) (map[string]any, error) {
			return map[string]any{}, nil
		},
	}
	res := adapter.Execute(context.Background(), a, nil, 50*time.Millisecond)
	var target *rferrors.TimeoutError
	assert.ErrorAs(t, res.Err, &target)
}

func TestExecuteParseFailure(t *testing.T) {
	a := &scriptedAdapter{
		meta:      adapter.Metadata{Name: "badparser", Executable: "sh"},
		buildArgv: func(map[string]any) ([]string, error) { return []string{"-c", "echo not-json"}, nil },
		parse: func(stdout, stderr string, exitCode int) (map[string]any, error) {
			return nil, fmt.Errorf("unexpected output shape")
		},
	}
	res := adapter.Execute(context.Background(), a, nil, time.Second)
	var target *rferrors.ParseFailedError
	assert.ErrorAs(t, res.Err, &target)
}
