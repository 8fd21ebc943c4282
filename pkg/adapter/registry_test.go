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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reconflow/reconflow/pkg/adapter"
	rferrors "github.com/reconflow/reconflow/pkg/errors"
)

func TestRegistryRegisterAndGet(t *testing.T) {
	reg := adapter.NewRegistry()
	subfinder := &scriptedAdapter{meta: adapter.Metadata{Name: "subfinder"}}
	reg.Register("subfinder", subfinder)

	got, err := reg.Get("subfinder")
	require.NoError(t, err)
	assert.Same(t, adapter.Adapter(subfinder), got)
}

func TestRegistryGetUnknownTool(t *testing.T) {
	reg := adapter.NewRegistry()
	_, err := reg.Get("nonexistent")
	require.Error(t, err)
	var target *rferrors.NotFoundError
	assert.ErrorAs(t, err, &target)
}

func TestRegistryListSortedByName(t *testing.T) {
	reg := adapter.NewRegistry()
	reg.Register("nuclei", &scriptedAdapter{meta: adapter.Metadata{Name: "nuclei"}})
	reg.Register("amass", &scriptedAdapter{meta: adapter.Metadata{Name: "amass"}})
	reg.Register("httpx", &scriptedAdapter{meta: adapter.Metadata{Name: "httpx"}})

	list := reg.List()
	require.Len(t, list, 3)
	assert.Equal(t, []string{"amass", "httpx", "nuclei"}, []string{list[0].Name, list[1].Name, list[2].Name})
}

func TestRegistryRegisterReplacesExisting(t *testing.T) {
	reg := adapter.NewRegistry()
	first := &scriptedAdapter{meta: adapter.Metadata{Name: "subfinder", Executable: "v1"}}
	second := &scriptedAdapter{meta: adapter.Metadata{Name: "subfinder", Executable: "v2"}}
	reg.Register("subfinder", first)
	reg.Register("subfinder", second)

	got, err := reg.Get("subfinder")
	require.NoError(t, err)
	assert.Equal(t, "v2", got.Metadata().Executable)
}
