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

	"github.com/reconflow/reconflow/pkg/adapter/tools"
)

func TestNmapValidateAcceptsTargetOrDomain(t *testing.T) {
	var n tools.Nmap
	assert.NoError(t, n.Validate(map[string]any{"target": "10.0.0.1"}))
	assert.NoError(t, n.Validate(map[string]any{"domain": "example.com"}))
	assert.Error(t, n.Validate(map[string]any{}))
}

func TestNmapBuildArgvScanTypes(t *testing.T) {
	var n tools.Nmap
	argv, err := n.BuildArgv(map[string]any{"target": "10.0.0.1", "scan_type": "quick"})
	require.NoError(t, err)
	assert.Contains(t, argv, "-F")
	assert.Contains(t, argv, "10.0.0.1")
}

func TestNmapParseXML(t *testing.T) {
	var n tools.Nmap
	xml := `<?xml version="1.0"?>
<nmaprun>
  <host>
    <address addr="10.0.0.1" addrtype="ipv4"/>
    <hostnames><hostname name="host.local"/></hostnames>
    <ports>
      <port portid="22" protocol="tcp">
        <state state="open"/>
        <service name="ssh" version="8.2"/>
      </port>
      <port portid="9999" protocol="tcp">
        <state state="closed"/>
        <service name="unknown"/>
      </port>
    </ports>
  </host>
</nmaprun>`

	out, err := n.Parse(xml, "", 0)
	require.NoError(t, err)
	assert.Equal(t, 1, out["total_hosts"])

	hosts, ok := out["hosts"].([]map[string]any)
	require.True(t, ok)
	require.Len(t, hosts, 1)
	assert.Equal(t, "10.0.0.1", hosts[0]["ip"])
	ports := hosts[0]["ports"].([]map[string]any)
	require.Len(t, ports, 1)
	assert.Equal(t, 22, ports[0]["port"])
}

func TestNmapParseInvalidXML(t *testing.T) {
	var n tools.Nmap
	_, err := n.Parse("not xml", "", 0)
	assert.Error(t, err)
}
