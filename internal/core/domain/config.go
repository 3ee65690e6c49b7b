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

// ConfigVersion is the current configuration schema version.
const ConfigVersion = 2

// DefaultSSHPort is the port used when a profile does not override it.
const DefaultSSHPort = 22

// MatchConditions maps condition keys to expected values. All conditions
// must hold for a rule to fire (AND semantics). Unknown keys are ignored.
type MatchConditions map[string]string

// ConnectionProfile defines bastion/proxy configuration for reaching
// instances without direct exposure. A profile with no BastionHost and no
// ProxyCommand means a direct connection.
type ConnectionProfile struct {
	Name         string `yaml:"name"`
	BastionHost  string `yaml:"bastion_host,omitempty"`
	BastionUser  string `yaml:"bastion_user,omitempty"`
	BastionKey   string `yaml:"bastion_key,omitempty"`
	ProxyCommand string `yaml:"proxy_command,omitempty"`
	SSHPort      int    `yaml:"ssh_port,omitempty"`
}

// Port returns the profile's SSH port, defaulting to 22.
func (p ConnectionProfile) Port() int {
	if p.SSHPort == 0 {
		return DefaultSSHPort
	}
	return p.SSHPort
}

// ConnectionRule binds match conditions to a named profile. ProfileName may
// dangle; resolution logs and moves on to the next rule.
type ConnectionRule struct {
	Name            string          `yaml:"name"`
	MatchConditions MatchConditions `yaml:"match_conditions"`
	ProfileName     string          `yaml:"profile_name"`
}

// ScanRule adds paths and commands to the scan of every matching instance.
type ScanRule struct {
	Name            string          `yaml:"name"`
	MatchConditions MatchConditions `yaml:"match_conditions"`
	ScanPaths       []string        `yaml:"scan_paths,omitempty"`
	ScanCommands    []string        `yaml:"scan_commands,omitempty"`
}

// Config is the application configuration document.
type Config struct {
	Version            int                 `yaml:"version"`
	DefaultKey         string              `yaml:"default_key,omitempty"`
	InstanceKeys       map[string]string   `yaml:"instance_keys,omitempty"`
	DefaultUsername    string              `yaml:"default_username"`
	CacheTTLSeconds    int                 `yaml:"cache_ttl_seconds"`
	DefaultScanPaths   []string            `yaml:"default_scan_paths"`
	ScanRules          []ScanRule          `yaml:"scan_rules,omitempty"`
	ConnectionProfiles []ConnectionProfile `yaml:"connection_profiles,omitempty"`
	ConnectionRules    []ConnectionRule    `yaml:"connection_rules,omitempty"`
}

// DefaultConfig returns the configuration used when no config file exists
// or the existing one cannot be parsed.
func DefaultConfig() Config {
	return Config{
		Version:          ConfigVersion,
		InstanceKeys:     map[string]string{},
		DefaultUsername:  "ec2-user",
		CacheTTLSeconds:  3600,
		DefaultScanPaths: []string{"~/"},
	}
}

// Username returns the configured default SSH username, falling back to
// ec2-user when unset.
func (c Config) Username() string {
	if c.DefaultUsername == "" {
		return "ec2-user"
	}
	return c.DefaultUsername
}
