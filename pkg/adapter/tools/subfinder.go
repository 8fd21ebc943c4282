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

// Package tools holds the built-in Tool Adapters the Tool Registry
// ships with: one file per tool, each implementing pkg/adapter.Adapter.
package tools

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/reconflow/reconflow/pkg/adapter"
	rferrors "github.com/reconflow/reconflow/pkg/errors"
)

// Subfinder wraps ProjectDiscovery's subfinder subdomain enumerator.
type Subfinder struct{}

func (Subfinder) Metadata() adapter.Metadata {
	return adapter.Metadata{
		Name:             "subfinder",
		Category:         adapter.CategoryRecon,
		Description:      "fast passive subdomain enumeration",
		Executable:       "subfinder",
		DefaultTimeout:   300 * time.Second,
		SupportsParallel: true,
	}
}

func (Subfinder) Validate(params map[string]any) error {
	if _, ok := params["domain"].(string); !ok {
		return &rferrors.InvalidParametersError{Tool: "subfinder"}
	}
	return nil
}

func (Subfinder) BuildArgv(params map[string]any) ([]string, error) {
	domain := params["domain"].(string)
	argv := []string{"-d", domain, "-json", "-silent"}
	if truthy(params["all"]) {
		argv = append(argv, "-all")
	}
	if truthy(params["recursive"]) {
		argv = append(argv, "-recursive")
	}
	return argv, nil
}

func (Subfinder) Parse(stdout, stderr string, exitCode int) (map[string]any, error) {
	type line struct {
		Host   string `json:"host"`
		Source string `json:"source"`
	}
	var subdomains []map[string]any
	seen := make(map[string]bool)
	var unique []string

	for _, l := range strings.Split(strings.TrimSpace(stdout), "\n") {
		if l == "" {
			continue
		}
		var rec line
		if err := json.Unmarshal([]byte(l), &rec); err != nil {
			continue
		}
		if rec.Host == "" {
			continue
		}
		subdomains = append(subdomains, map[string]any{"name": rec.Host, "source": rec.Source})
		if !seen[rec.Host] {
			seen[rec.Host] = true
			unique = append(unique, rec.Host)
		}
	}

	return map[string]any{
		"subdomains":        subdomains,
		"unique_subdomains": unique,
		"count":             len(unique),
	}, nil
}

// truthy reads an optional boolean flag parameter, defaulting to false
// for anything unset or mistyped.
func truthy(v any) bool {
	b, ok := v.(bool)
	return ok && b
}
