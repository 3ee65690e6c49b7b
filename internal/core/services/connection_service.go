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

package services

import (
	"fmt"
	"strings"

	"github.com/hkoosha/ec2ssh/internal/core/domain"
	"go.uber.org/zap"
)

// defaultBastionUser is used for the bastion hop when the profile leaves
// bastion_user unset.
const defaultBastionUser = "ec2-user"

type connectionService struct {
	logger *zap.SugaredLogger
}

// NewConnectionService creates a connection resolver. Rules and profiles are
// passed per call so the resolver always sees the current config snapshot.
func NewConnectionService(logger *zap.SugaredLogger) *connectionService {
	return &connectionService{logger: logger}
}

// ResolveProfile returns the profile of the first rule whose conditions
// match the instance, or nil for a direct connection. A rule referencing a
// missing profile is logged and skipped; later rules still get a chance.
func (c *connectionService) ResolveProfile(
	instance domain.Instance,
	rules []domain.ConnectionRule,
	profiles []domain.ConnectionProfile,
) *domain.ConnectionProfile {
	for _, rule := range rules {
		if !MatchesConditions(instance, rule.MatchConditions) {
			continue
		}
		for i := range profiles {
			if profiles[i].Name == rule.ProfileName {
				c.logger.Infow("instance matched connection rule",
					"instance", instance.ID, "rule", rule.Name, "profile", profiles[i].Name)
				p := profiles[i]
				return &p
			}
		}
		c.logger.Warnw("connection rule references missing profile",
			"rule", rule.Name, "profile", rule.ProfileName)
	}
	c.logger.Debugw("no connection rule matched, using direct connection",
		"instance", instance.ID)
	return nil
}

// TargetHost picks the address to connect to. Behind a bastion the private
// IP is preferred; direct connections prefer the public IP. An empty return
// means the instance has no reachable address.
func (c *connectionService) TargetHost(instance domain.Instance, profile *domain.ConnectionProfile) string {
	if profile != nil && profile.BastionHost != "" {
		if instance.PrivateIP != "" {
			return instance.PrivateIP
		}
		return instance.PublicIP
	}
	if instance.PublicIP != "" {
		return instance.PublicIP
	}
	return instance.PrivateIP
}

// ProxyArgs builds the SSH client option flags for the profile's proxy
// configuration, in precedence order: explicit proxy_command, bastion with a
// dedicated key (synthesized ProxyCommand, since -J cannot carry a distinct
// identity for the hop), plain -J jump, or nothing.
func (c *connectionService) ProxyArgs(profile *domain.ConnectionProfile) []string {
	if profile == nil {
		return []string{}
	}

	if profile.ProxyCommand != "" {
		return []string{"-o", "ProxyCommand=" + profile.ProxyCommand}
	}

	if profile.BastionHost != "" && profile.BastionKey != "" {
		user := profile.BastionUser
		if user == "" {
			user = defaultBastionUser
		}
		parts := []string{
			"ssh",
			"-i", ExpandKeyPath(profile.BastionKey),
			"-o", "StrictHostKeyChecking=no",
			"-o", "IdentitiesOnly=yes",
		}
		if profile.Port() != domain.DefaultSSHPort {
			parts = append(parts, "-p", fmt.Sprintf("%d", profile.Port()))
		}
		parts = append(parts, "-W", "%h:%p", user+"@"+profile.BastionHost)
		return []string{"-o", "ProxyCommand=" + strings.Join(parts, " ")}
	}

	if jump := c.ProxyJumpString(profile); jump != "" {
		return []string{"-J", jump}
	}

	return []string{}
}

// ProxyJumpString formats the profile as a -J destination:
// [user@]host[:port]. Empty when no bastion host is configured.
func (c *connectionService) ProxyJumpString(profile *domain.ConnectionProfile) string {
	if profile == nil || profile.BastionHost == "" {
		return ""
	}

	var b strings.Builder
	if profile.BastionUser != "" {
		b.WriteString(profile.BastionUser)
		b.WriteString("@")
	}
	b.WriteString(profile.BastionHost)
	if profile.Port() != domain.DefaultSSHPort {
		fmt.Fprintf(&b, ":%d", profile.Port())
	}
	return b.String()
}
