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

// Package pipelines embeds reconflow's prebuilt pipeline definitions
// so `reconflow run`/`reconflow pipelines` work offline, with no
// dependency on a filesystem layout outside the binary.
package pipelines

import (
	"embed"
	"fmt"
	"sort"
	"strings"
)

//go:embed *.yaml
var embeddedFS embed.FS

// Pipeline describes one embedded prebuilt pipeline.
type Pipeline struct {
	Name        string
	Description string
	FilePath    string
}

var descriptions = map[string]string{
	"subdomain_enum": "Multi-tool subdomain discovery, merge/dedupe, then HTTP validation",
	"port_scan":      "Staged nmap reconnaissance: quick scan, full scan, then service detection",
	"vuln_scan":      "HTTP probe followed by a Nuclei vulnerability sweep",
}

// List returns every embedded pipeline, sorted by name.
func List() ([]Pipeline, error) {
	entries, err := embeddedFS.ReadDir(".")
	if err != nil {
		return nil, fmt.Errorf("reading embedded pipelines: %w", err)
	}

	var out []Pipeline
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".yaml") {
			continue
		}
		name := strings.TrimSuffix(entry.Name(), ".yaml")
		out = append(out, Pipeline{
			Name:        name,
			Description: descriptions[name],
			FilePath:    entry.Name(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Load returns the raw YAML for a named pipeline, or a local path's
// contents if name looks like a filesystem path rather than a
// registered pipeline name.
func Load(name string) ([]byte, error) {
	if strings.HasSuffix(name, ".yaml") || strings.HasSuffix(name, ".yml") || strings.ContainsAny(name, "/\\") {
		return loadPath(name)
	}
	data, err := embeddedFS.ReadFile(name + ".yaml")
	if err != nil {
		return nil, fmt.Errorf("pipeline %q not found: %w", name, err)
	}
	return data, nil
}

// Render substitutes the literal text placeholders "${target}" and
// "${workflow_id}" in a pipeline's raw YAML with target and a
// workflow id built from the pipeline name and the target (dots
// replaced by underscores), before the document ever reaches
// workflow.ParseDefinition. This is a plain text substitution done at
// load time, distinct from the Parameter Resolver's
// "${task_id.segment}" syntax, which only resolves after parsing and
// only against other tasks' output.
func Render(data []byte, pipelineName, target string) []byte {
	id := pipelineName + "_" + strings.ReplaceAll(target, ".", "_")
	s := string(data)
	s = strings.ReplaceAll(s, "${workflow_id}", id)
	s = strings.ReplaceAll(s, "${target}", target)
	return []byte(s)
}
