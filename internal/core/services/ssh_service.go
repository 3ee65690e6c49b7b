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
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/hkoosha/ec2ssh/internal/core/domain"
	"github.com/hkoosha/ec2ssh/internal/core/ports"
	"go.uber.org/zap"
)

// ExpandKeyPath expands a leading ~ and environment variables in a key path.
func ExpandKeyPath(keyPath string) string {
	expanded := os.ExpandEnv(keyPath)
	if expanded == "~" || strings.HasPrefix(expanded, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			expanded = filepath.Join(home, strings.TrimPrefix(expanded[1:], "/"))
		}
	}
	return expanded
}

// SSHOptions describes one ssh invocation. ProxyArgs, when set, wins over
// the legacy single ProxyJump string.
type SSHOptions struct {
	Host          string
	User          string
	KeyPath       string
	ProxyJump     string
	ProxyArgs     []string
	RemoteCommand string
}

type sshService struct {
	logger   *zap.SugaredLogger
	executor ports.CommandExecutor
	sshDir   string

	// newSSHCommand builds the interactive session command; replaced in tests.
	newSSHCommand func(argv []string) *exec.Cmd
}

// NewSSHService creates the SSH command builder and key manager.
func NewSSHService(logger *zap.SugaredLogger, executor ports.CommandExecutor) *sshService {
	sshDir := ""
	if home, err := os.UserHomeDir(); err == nil {
		sshDir = filepath.Join(home, ".ssh")
	}
	return &sshService{
		logger:   logger,
		executor: executor,
		sshDir:   sshDir,
		newSSHCommand: func(argv []string) *exec.Cmd {
			return exec.Command(argv[0], argv[1:]...) // #nosec G204 -- argv is built, never a shell string
		},
	}
}

// BuildSSHCommand builds an ssh argument vector. It is never joined into a
// shell string. Host key checking is disabled and known-hosts persistence
// discarded on purpose: cloud instances recycle IPs constantly and the churn
// would otherwise make every reconnect a manual confirmation. A supplied key
// is always paired with IdentitiesOnly=yes, otherwise agents that offer
// every loaded key first trip the server's auth-attempt cap.
func (s *sshService) BuildSSHCommand(opts SSHOptions) []string {
	cmd := []string{
		"ssh",
		"-o", "StrictHostKeyChecking=no",
		"-o", "UserKnownHostsFile=/dev/null",
	}

	if len(opts.ProxyArgs) > 0 {
		cmd = append(cmd, opts.ProxyArgs...)
	} else if opts.ProxyJump != "" {
		cmd = append(cmd, "-J", opts.ProxyJump)
	}

	if opts.KeyPath != "" {
		cmd = append(cmd, "-o", "IdentitiesOnly=yes", "-i", ExpandKeyPath(opts.KeyPath))
	}

	cmd = append(cmd, opts.User+"@"+opts.Host)

	if opts.RemoteCommand != "" {
		cmd = append(cmd, opts.RemoteCommand)
	}

	s.logger.Debugw("built ssh command", "argv", strings.Join(cmd, " "))
	return cmd
}

// KeyPath returns the key configured for the instance, falling back to the
// default key. Empty when nothing is configured.
func (s *sshService) KeyPath(cfg domain.Config, instanceID string) string {
	if key, ok := cfg.InstanceKeys[instanceID]; ok && key != "" {
		return key
	}
	return cfg.DefaultKey
}

// DiscoverKey looks for a key file in ~/.ssh matching the AWS key-pair name.
// Exact filename patterns are tried first, then a case-insensitive substring
// match over all available keys.
func (s *sshService) DiscoverKey(keyName string) string {
	if keyName == "" || s.sshDir == "" {
		return ""
	}
	if _, err := os.Stat(s.sshDir); err != nil {
		return ""
	}

	patterns := []string{
		keyName,
		keyName + ".pem",
		"id_rsa_" + keyName,
		keyName + "_id_rsa",
		"aws_" + keyName,
		keyName + "_aws",
	}
	for _, pattern := range patterns {
		for _, candidate := range []string{pattern, pattern + ".pem"} {
			path := filepath.Join(s.sshDir, candidate)
			if info, err := os.Stat(path); err == nil && info.Mode().IsRegular() {
				s.logger.Infow("discovered ssh key", "key_name", keyName, "path", path)
				return path
			}
		}
	}

	lowered := strings.ToLower(keyName)
	for _, path := range s.ListAvailableKeys() {
		stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		if strings.Contains(strings.ToLower(stem), lowered) {
			s.logger.Infow("fuzzy matched ssh key", "key_name", keyName, "path", path)
			return path
		}
	}

	s.logger.Debugw("no matching ssh key found", "key_name", keyName)
	return ""
}

// ListAvailableKeys lists likely private key files in ~/.ssh.
func (s *sshService) ListAvailableKeys() []string {
	if s.sshDir == "" {
		return nil
	}
	patterns := []string{"*.pem", "id_*", "*_id_rsa", "*_rsa", "aws_*"}

	seen := make(map[string]struct{})
	var keys []string
	for _, pattern := range patterns {
		matches, err := filepath.Glob(filepath.Join(s.sshDir, pattern))
		if err != nil {
			continue
		}
		for _, m := range matches {
			if strings.HasSuffix(m, ".pub") {
				continue
			}
			info, err := os.Stat(m)
			if err != nil || !info.Mode().IsRegular() {
				continue
			}
			if _, dup := seen[m]; dup {
				continue
			}
			seen[m] = struct{}{}
			keys = append(keys, m)
		}
	}
	return keys
}

// KeyPermissionsOK reports whether the key file is restricted to its owner
// (0600 or 0400), which ssh requires.
func (s *sshService) KeyPermissionsOK(keyPath string) bool {
	info, err := os.Stat(ExpandKeyPath(keyPath))
	if err != nil {
		return false
	}
	perm := info.Mode().Perm()
	return perm == 0o600 || perm == 0o400
}

// FixKeyPermissions chmods the key file to 0600.
func (s *sshService) FixKeyPermissions(keyPath string) error {
	expanded := ExpandKeyPath(keyPath)
	if err := os.Chmod(expanded, 0o600); err != nil {
		return fmt.Errorf("failed to fix key permissions: %w", err)
	}
	s.logger.Infow("fixed key permissions", "path", expanded)
	return nil
}

// AgentRunning reports whether an ssh-agent is available to this process.
func (s *sshService) AgentRunning() bool {
	return os.Getenv("SSH_AGENT_PID") != "" || os.Getenv("SSH_AUTH_SOCK") != ""
}

// AddKeyToAgent loads the key into the running agent after checking that it
// exists and has usable permissions.
func (s *sshService) AddKeyToAgent(ctx context.Context, keyPath string) error {
	expanded := ExpandKeyPath(keyPath)
	if _, err := os.Stat(expanded); err != nil {
		return fmt.Errorf("key file not found: %s", expanded)
	}
	if !s.KeyPermissionsOK(expanded) {
		return fmt.Errorf("key file %s must have 600 or 400 permissions", expanded)
	}

	res, err := s.executor.Run(ctx, []string{"ssh-add", expanded}, 10*time.Second)
	if err != nil {
		return fmt.Errorf("failed to run ssh-add: %w", err)
	}
	if res.ExitCode != 0 {
		if strings.Contains(res.Stderr, "Could not open a connection to your authentication agent") {
			return fmt.Errorf("ssh agent is not running")
		}
		return fmt.Errorf("ssh-add failed: %s", strings.TrimSpace(res.Stderr))
	}
	s.logger.Infow("added key to ssh agent", "path", expanded)
	return nil
}

// Connect runs an interactive ssh session with std streams attached. A
// remote-initiated disconnect after a successful session is not an error.
func (s *sshService) Connect(argv []string) error {
	cmd := s.newSSHCommand(argv)
	if cmd == nil {
		return fmt.Errorf("could not create ssh command")
	}

	var stderr strings.Builder
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = io.MultiWriter(os.Stderr, &stderr)

	s.logger.Infow("session start", "target", argv[len(argv)-1])
	if err := cmd.Run(); err != nil {
		if isRemoteDisconnectError(err, stderr.String()) {
			s.logger.Infow("session closed by remote host")
			return nil
		}
		s.logger.Errorw("session failed", "error", err)
		return err
	}
	s.logger.Infow("session end")
	return nil
}

// isRemoteDisconnectError reports whether the ssh exit was caused by the
// remote side ending an otherwise healthy session (ssh exits 255 for these).
func isRemoteDisconnectError(err error, stderr string) bool {
	exitErr, ok := err.(*exec.ExitError)
	if !ok || exitErr.ExitCode() != 255 {
		return false
	}
	lowered := strings.ToLower(stderr)
	return strings.Contains(lowered, "closed by remote host") ||
		strings.Contains(lowered, "connection reset by peer")
}
