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

package tools

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/reconflow/reconflow/pkg/adapter"
	rferrors "github.com/reconflow/reconflow/pkg/errors"
)

// Amass wraps OWASP Amass's in-depth DNS enumeration.
type Amass struct{}

func (Amass) Metadata() adapter.Metadata {
	return adapter.Metadata{
		Name:           "amass",
		Category:       adapter.CategoryRecon,
		Description:    "in-depth DNS enumeration and network mapping",
		Executable:     "amass",
		DefaultTimeout: 900 * time.Second,
	}
}

func (Amass) Validate(params map[string]any) error {
	if _, ok := params["domain"].(string); !ok {
		return &rferrors.InvalidParametersError{Tool: "amass"}
	}
	return nil
}

func (Amass) BuildArgv(params map[string]any) ([]string, error) {
	domain := params["domain"].(string)
	argv := []string{"enum", "-d", domain, "-json", "/dev/stdout"}
	if truthy(params["passive"]) {
		argv = append(argv, "-passive")
	}
	if truthy(params["active"]) {
		argv = append(argv, "-active")
	}
	if truthy(params["brute"]) {
		argv = append(argv, "-brute")
	}
	return argv, nil
}

func (Amass) Parse(stdout, stderr string, exitCode int) (map[string]any, error) {
	type address struct {
		IP  string `json:"ip"`
		ASN int    `json:"asn"`
	}
	type record struct {
		Name      string    `json:"name"`
		Source    string    `json:"source"`
		Addresses []address `json:"addresses"`
	}

	byName := make(map[string]map[string]any)
	var order []string

	for _, l := range strings.Split(strings.TrimSpace(stdout), "\n") {
		if l == "" {
			continue
		}
		var rec record
		if err := json.Unmarshal([]byte(l), &rec); err != nil {
			continue
		}
		if rec.Name == "" {
			continue
		}

		ipSet := make(map[string]bool)
		asnSet := make(map[string]bool)
		for _, a := range rec.Addresses {
			if a.IP != "" {
				ipSet[a.IP] = true
			}
			if a.ASN != 0 {
				asnSet[fmt.Sprintf("AS%d", a.ASN)] = true
			}
		}

		entry, exists := byName[rec.Name]
		if !exists {
			entry = map[string]any{
				"name":   rec.Name,
				"ips":    []string{},
				"asns":   []string{},
				"source": rec.Source,
			}
			byName[rec.Name] = entry
			order = append(order, rec.Name)
		}
		entry["ips"] = unionStrings(entry["ips"].([]string), ipSet)
		entry["asns"] = unionStrings(entry["asns"].([]string), asnSet)
	}

	subdomains := make([]map[string]any, 0, len(order))
	for _, name := range order {
		subdomains = append(subdomains, byName[name])
	}

	return map[string]any{
		"subdomains": subdomains,
		"count":      len(subdomains),
	}, nil
}

// unionStrings merges set into existing, deduplicated, preserving
// existing's order and appending new members in no particular order.
func unionStrings(existing []string, set map[string]bool) []string {
	seen := make(map[string]bool, len(existing))
	out := make([]string, 0, len(existing)+len(set))
	for _, v := range existing {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	for v := range set {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}
