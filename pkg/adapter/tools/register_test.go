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

package tools_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reconflow/reconflow/pkg/adapter"
	"github.com/reconflow/reconflow/pkg/adapter/tools"
)

func TestRegisterAllRegistersEveryBuiltinTool(t *testing.T) {
	reg := adapter.NewRegistry()
	tools.RegisterAll(reg)

	for _, name := range []string{"subfinder", "amass", "httpx", "nuclei", "nmap"} {
		_, err := reg.Get(name)
		require.NoError(t, err, "expected %s to be registered", name)
	}

	list := reg.List()
	assert.Len(t, list, 5)
}
