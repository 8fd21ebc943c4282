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

// Package artifact lays out and writes the on-disk scan directory
// (spec.md §6): raw tool output, parsed results, dedicated lists, and
// the final merged subdomain record set, all rooted under one
// target-token directory per run.
package artifact

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"

	rferrors "github.com/reconflow/reconflow/pkg/errors"
)

// Persister writes run artifacts under <dataRoot>/scans/<targetToken>/.
type Persister struct {
	root string // <dataRoot>/scans/<targetToken>
}

// NewPersister derives the target token from target (scheme, path, and
// port stripped, per spec.md §6) and returns a Persister rooted at
// <dataRoot>/scans/<token>.
func NewPersister(dataRoot, target string) *Persister {
	token := TargetToken(target)
	return &Persister{root: filepath.Join(dataRoot, "scans", token)}
}

// TargetToken strips scheme, path, and port from a target string,
// matching the Driver's canonical "domain token" derivation (spec.md §3).
func TargetToken(target string) string {
	t := target
	t = strings.TrimPrefix(t, "https://")
	t = strings.TrimPrefix(t, "http://")
	if i := strings.Index(t, "/"); i >= 0 {
		t = t[:i]
	}
	if i := strings.Index(t, ":"); i >= 0 {
		t = t[:i]
	}
	return t
}

// EnsureLayout creates the four top-level subdirectories spec.md §6
// names (raw, parsed, lists, final), each containing per-tool
// subdirectories are created lazily by WriteRaw/WriteParsed.
func (p *Persister) EnsureLayout() error {
	for _, dir := range []string{"raw", "parsed", "lists", "final"} {
		if err := os.MkdirAll(filepath.Join(p.root, dir), 0o755); err != nil {
			return &rferrors.WriteFailedError{Path: filepath.Join(p.root, dir), Cause: err}
		}
	}
	return nil
}

// WriteFile implements workflow.ArtifactWriter: relPath is resolved
// against the persister's root, and parent directories are created as
// needed. This is how FILE_OUTPUT and JSON_AGGREGATE tasks land their
// output on disk.
func (p *Persister) WriteFile(relPath string, data []byte) error {
	path := filepath.Join(p.root, relPath)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// WriteRaw saves a tool's raw stdout under raw/<tool>/output.<ext>.
func (p *Persister) WriteRaw(tool, ext, content string) (string, error) {
	rel := filepath.Join("raw", tool, "output."+ext)
	if err := p.WriteFile(rel, []byte(content)); err != nil {
		return "", &rferrors.WriteFailedError{Path: rel, Cause: err}
	}
	return filepath.Join(p.root, rel), nil
}

// WriteParsed saves a tool's structured output under parsed/<tool>/results.json.
func (p *Persister) WriteParsed(tool string, parsed any) (string, error) {
	data, err := json.MarshalIndent(parsed, "", "  ")
	if err != nil {
		return "", &rferrors.WriteFailedError{Path: tool, Cause: err}
	}
	rel := filepath.Join("parsed", tool, "results.json")
	if err := p.WriteFile(rel, data); err != nil {
		return "", &rferrors.WriteFailedError{Path: rel, Cause: err}
	}
	return filepath.Join(p.root, rel), nil
}

// SubdomainRecord is one entry of final/subdomains.json (spec.md §6).
type SubdomainRecord struct {
	Name   string            `json:"name"`
	IPs    []string          `json:"ips,omitempty"`
	ASNs   []string          `json:"asns,omitempty"`
	Source string            `json:"source,omitempty"`
	Ports  map[string]string `json:"ports,omitempty"`
}

// WriteSubdomains writes the merged subdomain record set to
// final/subdomains.json and the subdomains/ips/asns lists under
// lists/, mirroring the grounding implementation's _save_merged_results.
// It returns the set of file paths it wrote, keyed by artifact name.
func (p *Persister) WriteSubdomains(records []SubdomainRecord) (map[string]string, error) {
	written := make(map[string]string)

	finalData, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return nil, &rferrors.WriteFailedError{Path: "final/subdomains.json", Cause: err}
	}
	if err := p.WriteFile(filepath.Join("final", "subdomains.json"), finalData); err != nil {
		return nil, &rferrors.WriteFailedError{Path: "final/subdomains.json", Cause: err}
	}
	written["combined_json"] = filepath.Join(p.root, "final", "subdomains.json")

	var names []string
	ipSet := make(map[string]bool)
	asnSet := make(map[string]bool)
	for _, r := range records {
		if r.Name != "" {
			names = append(names, r.Name)
		}
		for _, ip := range r.IPs {
			ipSet[ip] = true
		}
		for _, asn := range r.ASNs {
			asnSet[asn] = true
		}
	}

	if len(names) > 0 {
		path, err := p.writeList("subdomains", names)
		if err != nil {
			return nil, err
		}
		written["subdomains_list"] = path
	}
	if len(ipSet) > 0 {
		path, err := p.writeList("ips", sortedKeys(ipSet))
		if err != nil {
			return nil, err
		}
		written["ips_list"] = path
	}
	if len(asnSet) > 0 {
		path, err := p.writeList("asns", sortedKeys(asnSet))
		if err != nil {
			return nil, err
		}
		written["asns_list"] = path
	}

	return written, nil
}

func (p *Persister) writeList(name string, values []string) (string, error) {
	sorted := append([]string{}, values...)
	sort.Strings(sorted)
	rel := filepath.Join("lists", name+".txt")
	content := strings.Join(sorted, "\n") + "\n"
	if err := p.WriteFile(rel, []byte(content)); err != nil {
		return "", &rferrors.WriteFailedError{Path: rel, Cause: err}
	}
	return filepath.Join(p.root, rel), nil
}

func sortedKeys(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
