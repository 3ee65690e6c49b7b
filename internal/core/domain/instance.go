// Copyright 2025.
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

package domain

// Well-known EC2 instance lifecycle states. State is kept as a plain string
// so values outside this set pass through untouched.
const (
	StatePending    = "pending"
	StateRunning    = "running"
	StateStopping   = "stopping"
	StateStopped    = "stopped"
	StateTerminated = "terminated"
)

// Instance is an immutable snapshot of an EC2 instance as returned by the
// fetcher. Identity is ID. Optional fields are empty strings when absent.
type Instance struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Type      string `json:"type"`
	State     string `json:"state"`
	PublicIP  string `json:"public_ip,omitempty"`
	PrivateIP string `json:"private_ip,omitempty"`
	Region    string `json:"region"`
	KeyName   string `json:"key_name,omitempty"`
}

// IsRunning reports whether the instance is in a state that accepts SSH.
func (i Instance) IsRunning() bool {
	return i.State == StateRunning
}

// HasPublicIP reports whether the instance has a public address assigned.
func (i Instance) HasPublicIP() bool {
	return i.PublicIP != ""
}

// DisplayName returns the Name tag, falling back to the instance ID when the
// tag is missing.
func (i Instance) DisplayName() string {
	if i.Name != "" {
		return i.Name
	}
	return i.ID
}
