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
	"encoding/xml"
	"fmt"
	"time"

	"github.com/reconflow/reconflow/pkg/adapter"
	rferrors "github.com/reconflow/reconflow/pkg/errors"
)

// Nmap wraps the nmap network scanner, parsing its XML (-oX -) output.
type Nmap struct{}

func (Nmap) Metadata() adapter.Metadata {
	return adapter.Metadata{
		Name:           "nmap",
		Category:       adapter.CategoryScanning,
		Description:    "network exploration and security auditing",
		Executable:     "nmap",
		RequiresRoot:   true,
		DefaultTimeout: 600 * time.Second,
	}
}

func (Nmap) Validate(params map[string]any) error {
	if _, ok := params["target"]; ok {
		return nil
	}
	if _, ok := params["domain"]; ok {
		return nil
	}
	return &rferrors.InvalidParametersError{Tool: "nmap"}
}

func (Nmap) BuildArgv(params map[string]any) ([]string, error) {
	argv := []string{"-oX", "-"}

	switch params["scan_type"] {
	case "quick":
		argv = append(argv, "-T4", "-F")
	case "stealth":
		argv = append(argv, "-sS", "-T2")
	default:
		argv = append(argv, "-sV", "-sC")
	}

	if ports, ok := params["ports"].(string); ok && ports != "" {
		argv = append(argv, "-p", ports)
	}

	switch target := params["target"].(type) {
	case string:
		argv = append(argv, target)
	case []any:
		argv = append(argv, toStringSlice(target)...)
	default:
		if domain, ok := params["domain"].(string); ok {
			argv = append(argv, domain)
		}
	}

	return argv, nil
}

type nmapRun struct {
	XMLName xml.Name   `xml:"nmaprun"`
	Hosts   []nmapHost `xml:"host"`
}

type nmapHost struct {
	Addresses []nmapAddress `xml:"address"`
	Hostnames struct {
		Hostname []nmapHostname `xml:"hostname"`
	} `xml:"hostnames"`
	Ports struct {
		Port []nmapPort `xml:"port"`
	} `xml:"ports"`
}

type nmapAddress struct {
	Addr     string `xml:"addr,attr"`
	AddrType string `xml:"addrtype,attr"`
}

type nmapHostname struct {
	Name string `xml:"name,attr"`
}

type nmapPort struct {
	PortID   int    `xml:"portid,attr"`
	Protocol string `xml:"protocol,attr"`
	State    struct {
		State string `xml:"state,attr"`
	} `xml:"state"`
	Service struct {
		Name    string `xml:"name,attr"`
		Version string `xml:"version,attr"`
	} `xml:"service"`
}

func (Nmap) Parse(stdout, stderr string, exitCode int) (map[string]any, error) {
	var run nmapRun
	if err := xml.Unmarshal([]byte(stdout), &run); err != nil {
		return nil, fmt.Errorf("parse nmap xml: %w", err)
	}

	var hosts []map[string]any
	ipPortMap := make(map[string]map[string]string)

	for _, h := range run.Hosts {
		var ip, hostname string
		for _, a := range h.Addresses {
			if a.AddrType == "ipv4" {
				ip = a.Addr
			}
		}
		if ip == "" {
			continue
		}
		if len(h.Hostnames.Hostname) > 0 {
			hostname = h.Hostnames.Hostname[0].Name
		}

		var ports []map[string]any
		portMap := make(map[string]string)
		for _, p := range h.Ports.Port {
			if p.State.State != "open" {
				continue
			}
			service := p.Service.Name
			if service == "" {
				service = "unknown"
			}
			desc := service
			if p.Service.Version != "" {
				desc = fmt.Sprintf("%s %s", service, p.Service.Version)
			}
			ports = append(ports, map[string]any{
				"port":     p.PortID,
				"protocol": p.Protocol,
				"service":  service,
				"version":  p.Service.Version,
			})
			portMap[fmt.Sprintf("%d", p.PortID)] = desc
		}

		if len(ports) > 0 {
			hosts = append(hosts, map[string]any{
				"ip":       ip,
				"hostname": hostname,
				"ports":    ports,
			})
			ipPortMap[ip] = portMap
		}
	}

	ipPortMapAny := make(map[string]any, len(ipPortMap))
	for ip, m := range ipPortMap {
		ipPortMapAny[ip] = m
	}

	return map[string]any{
		"hosts":       hosts,
		"total_hosts": len(hosts),
		"ip_port_map": ipPortMapAny,
	}, nil
}
