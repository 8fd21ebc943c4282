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
	"strings"
	"time"

	"github.com/reconflow/reconflow/pkg/adapter"
	rferrors "github.com/reconflow/reconflow/pkg/errors"
)

// Nuclei wraps ProjectDiscovery's nuclei vulnerability scanner.
type Nuclei struct{}

func (Nuclei) Metadata() adapter.Metadata {
	return adapter.Metadata{
		Name:           "nuclei",
		Category:       adapter.CategoryScanning,
		Description:    "fast template-driven vulnerability scanner",
		Executable:     "nuclei",
		DefaultTimeout: 900 * time.Second,
	}
}

func (Nuclei) Validate(params map[string]any) error {
	if _, ok := params["url"]; ok {
		return nil
	}
	if _, ok := params["urls"]; ok {
		return nil
	}
	return &rferrors.InvalidParametersError{Tool: "nuclei"}
}

func (Nuclei) BuildArgv(params map[string]any) ([]string, error) {
	argv := []string{"-json", "-silent"}
	if url, ok := params["url"].(string); ok {
		argv = append(argv, "-u", url)
	} else if urls := hostList(params["urls"]); len(urls) > 0 {
		argv = append(argv, "-u", strings.Join(urls, ","))
	}

	templates := []string{"cves", "vulnerabilities"}
	if raw, ok := params["templates"].([]any); ok && len(raw) > 0 {
		templates = toStringSlice(raw)
	}
	for _, t := range templates {
		argv = append(argv, "-t", t)
	}

	severity := []string{"critical", "high", "medium"}
	if raw, ok := params["severity"].([]any); ok && len(raw) > 0 {
		severity = toStringSlice(raw)
	}
	argv = append(argv, "-severity", strings.Join(severity, ","))

	return argv, nil
}

func (Nuclei) Parse(stdout, stderr string, exitCode int) (map[string]any, error) {
	type info struct {
		Name     string `json:"name"`
		Severity string `json:"severity"`
	}
	type record struct {
		TemplateID string `json:"template-id"`
		Info       info   `json:"info"`
		Host       string `json:"host"`
		MatchedAt  string `json:"matched-at"`
	}

	var findings []map[string]any
	counts := map[string]int{"critical": 0, "high": 0, "medium": 0, "low": 0}

	for _, l := range strings.Split(strings.TrimSpace(stdout), "\n") {
		if l == "" {
			continue
		}
		var rec record
		if err := json.Unmarshal([]byte(l), &rec); err != nil {
			continue
		}
		findings = append(findings, map[string]any{
			"template":   rec.TemplateID,
			"name":       rec.Info.Name,
			"severity":   rec.Info.Severity,
			"host":       rec.Host,
			"matched_at": rec.MatchedAt,
		})
		if _, tracked := counts[rec.Info.Severity]; tracked {
			counts[rec.Info.Severity]++
		}
	}

	return map[string]any{
		"findings":        findings,
		"total_findings":  len(findings),
		"severity_counts": counts,
	}, nil
}

func toStringSlice(raw []any) []string {
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
