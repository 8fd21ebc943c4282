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
	"strconv"
	"strings"
	"time"

	"github.com/reconflow/reconflow/pkg/adapter"
	rferrors "github.com/reconflow/reconflow/pkg/errors"
)

// Httpx wraps ProjectDiscovery's httpx HTTP probe.
type Httpx struct{}

func (Httpx) Metadata() adapter.Metadata {
	return adapter.Metadata{
		Name:             "httpx",
		Category:         adapter.CategoryRecon,
		Description:      "fast HTTP probe over live hosts",
		Executable:       "httpx",
		DefaultTimeout:   300 * time.Second,
		SupportsParallel: true,
	}
}

func (Httpx) Validate(params map[string]any) error {
	if _, ok := params["url"]; ok {
		return nil
	}
	if _, ok := params["urls"]; ok {
		return nil
	}
	return &rferrors.InvalidParametersError{Tool: "httpx"}
}

func (Httpx) BuildArgv(params map[string]any) ([]string, error) {
	argv := []string{"-json", "-silent"}
	if url, ok := params["url"].(string); ok {
		argv = append(argv, "-u", url)
	}
	if urls := hostList(params["urls"]); len(urls) > 0 {
		argv = append(argv, "-u", strings.Join(urls, ","))
	}
	if truthy(params["status_code"]) {
		argv = append(argv, "-status-code")
	}
	if truthy(params["tech_detect"]) {
		argv = append(argv, "-tech-detect")
	}
	if truthy(params["title"]) {
		argv = append(argv, "-title")
	}
	threads := 50
	if t, ok := params["threads"].(int); ok {
		threads = t
	}
	argv = append(argv, "-threads", strconv.Itoa(threads))
	return argv, nil
}

func (Httpx) Parse(stdout, stderr string, exitCode int) (map[string]any, error) {
	type record struct {
		URL    string   `json:"url"`
		Status int      `json:"status_code"`
		Title  string   `json:"title"`
		Tech   []string `json:"tech"`
	}
	var results []map[string]any
	var liveURLs []string

	for _, l := range strings.Split(strings.TrimSpace(stdout), "\n") {
		if l == "" {
			continue
		}
		var rec record
		if err := json.Unmarshal([]byte(l), &rec); err != nil {
			continue
		}
		results = append(results, map[string]any{
			"url":          rec.URL,
			"status_code":  rec.Status,
			"title":        rec.Title,
			"technologies": rec.Tech,
		})
		if rec.URL != "" {
			liveURLs = append(liveURLs, rec.URL)
		}
	}

	return map[string]any{
		"results":   results,
		"total":     len(results),
		"live_urls": liveURLs,
	}, nil
}

// hostList normalizes a `urls` parameter into a flat list of hostnames
// or URLs: a merged subdomain set resolves to []any of
// map[string]any{"name": ...} (the Merger's output shape), while a
// caller may also pass plain strings directly.
func hostList(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		switch val := item.(type) {
		case string:
			if val != "" {
				out = append(out, val)
			}
		case map[string]any:
			if name, ok := val["name"].(string); ok && name != "" {
				out = append(out, name)
			}
		}
	}
	return out
}
