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

import "github.com/reconflow/reconflow/pkg/adapter"

// RegisterAll registers every built-in Tool Adapter with reg, keyed by
// its Metadata().Name. Called by the `run` command before it builds
// the Driver.
func RegisterAll(reg *adapter.Registry) {
	for _, a := range []adapter.Adapter{
		Subfinder{},
		Amass{},
		Httpx{},
		Nuclei{},
		Nmap{},
	} {
		reg.Register(a.Metadata().Name, a)
	}
}
