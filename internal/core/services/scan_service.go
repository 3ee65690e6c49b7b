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
	"strings"
	"time"

	"github.com/hkoosha/ec2ssh/internal/core/domain"
	"github.com/hkoosha/ec2ssh/internal/core/ports"
	"go.uber.org/zap"
)

const (
	pathScanTimeout    = 30 * time.Second
	commandScanTimeout = 60 * time.Second
)

type scanService struct {
	logger     *zap.SugaredLogger
	executor   ports.CommandExecutor
	connection *connectionService
	ssh        *sshService
}

// NewScanService creates the scan engine. It orchestrates the matcher,
// connection resolver and command builder; persisting results is the
// caller's job.
func NewScanService(
	logger *zap.SugaredLogger,
	executor ports.CommandExecutor,
	connection *connectionService,
	ssh *sshService,
) *scanService {
	return &scanService{
		logger:     logger,
		executor:   executor,
		connection: connection,
		ssh:        ssh,
	}
}

// ScanConfigFor merges the default scan paths with the paths and commands of
// every scan rule matching the instance. Both lists are de-duplicated while
// preserving first-seen order.
func (s *scanService) ScanConfigFor(instance domain.Instance, cfg domain.Config) (paths, commands []string) {
	paths = append(paths, cfg.DefaultScanPaths...)

	for _, rule := range cfg.ScanRules {
		if MatchesConditions(instance, rule.MatchConditions) {
			paths = append(paths, rule.ScanPaths...)
			commands = append(commands, rule.ScanCommands...)
		}
	}

	return dedupe(paths), dedupe(commands)
}

// ScanInstance scans a single instance per its matching rules. Non-running
// instances are skipped without any network attempt. Each path/command
// failure is isolated; the scan continues and returns whatever succeeded.
func (s *scanService) ScanInstance(ctx context.Context, instance domain.Instance, cfg domain.Config) []domain.ScanResult {
	if !instance.IsRunning() {
		s.logger.Infow("skipping scan, instance not running",
			"instance", instance.ID, "state", instance.State)
		return []domain.ScanResult{}
	}

	paths, commands := s.ScanConfigFor(instance, cfg)
	if len(paths) == 0 && len(commands) == 0 {
		s.logger.Infow("no scan config for instance", "instance", instance.ID)
		return []domain.ScanResult{}
	}

	profile := s.connection.ResolveProfile(instance, cfg.ConnectionRules, cfg.ConnectionProfiles)
	host := s.connection.TargetHost(instance, profile)
	if host == "" {
		s.logger.Warnw("no reachable host for instance", "instance", instance.ID)
		return []domain.ScanResult{}
	}
	proxyArgs := s.connection.ProxyArgs(profile)

	keyPath := s.ssh.KeyPath(cfg, instance.ID)
	if keyPath == "" && instance.KeyName != "" {
		keyPath = s.ssh.DiscoverKey(instance.KeyName)
	}

	opts := SSHOptions{
		Host:      host,
		User:      cfg.Username(),
		KeyPath:   keyPath,
		ProxyArgs: proxyArgs,
	}

	results := make([]domain.ScanResult, 0, len(paths)+len(commands))
	for _, path := range paths {
		if result, ok := s.runPathScan(ctx, path, opts); ok {
			results = append(results, result)
		}
	}
	for _, command := range commands {
		if result, ok := s.runCommandScan(ctx, command, opts); ok {
			results = append(results, result)
		}
	}

	s.logger.Infow("scan finished", "instance", instance.ID, "results", len(results))
	return results
}

// runPathScan lists a remote path. Remote stderr is discarded so a missing
// path yields empty output instead of noise.
func (s *scanService) runPathScan(ctx context.Context, path string, opts SSHOptions) (domain.ScanResult, bool) {
	opts.RemoteCommand = "ls -la " + shellQuote(path) + " 2>/dev/null"
	argv := s.ssh.BuildSSHCommand(opts)

	res, err := s.executor.Run(ctx, argv, pathScanTimeout)
	if err != nil {
		s.logger.Errorw("path scan failed", "path", path, "host", opts.Host, "error", err)
		return domain.ScanResult{}, false
	}

	content := strings.TrimSpace(res.Stdout)
	if res.ExitCode != 0 || content == "" {
		s.logger.Debugw("path scan produced no output",
			"path", path, "host", opts.Host, "exit_code", res.ExitCode)
		return domain.ScanResult{}, false
	}

	return domain.ScanResult{
		Source:    domain.SourcePathPrefix + path,
		Content:   content,
		Timestamp: time.Now(),
	}, true
}

// runCommandScan executes a configured command verbatim on the remote host.
func (s *scanService) runCommandScan(ctx context.Context, command string, opts SSHOptions) (domain.ScanResult, bool) {
	opts.RemoteCommand = command
	argv := s.ssh.BuildSSHCommand(opts)

	res, err := s.executor.Run(ctx, argv, commandScanTimeout)
	if err != nil {
		s.logger.Errorw("command scan failed", "command", command, "host", opts.Host, "error", err)
		return domain.ScanResult{}, false
	}

	content := strings.TrimSpace(res.Stdout)
	if res.ExitCode != 0 || content == "" {
		if stderr := strings.TrimSpace(res.Stderr); stderr != "" {
			s.logger.Warnw("command scan stderr",
				"command", command, "host", opts.Host, "stderr", stderr)
		}
		return domain.ScanResult{}, false
	}

	return domain.ScanResult{
		Source:    domain.SourceCommandPrefix + command,
		Content:   content,
		Timestamp: time.Now(),
	}, true
}

func dedupe(items []string) []string {
	seen := make(map[string]struct{}, len(items))
	out := make([]string, 0, len(items))
	for _, item := range items {
		if _, dup := seen[item]; dup {
			continue
		}
		seen[item] = struct{}{}
		out = append(out, item)
	}
	return out
}

// shellQuote single-quotes a string for the remote shell, matching POSIX
// quoting rules. The argv itself never passes through a local shell; this
// protects only the path embedded in the remote ls command.
func shellQuote(s string) string {
	if s == "" {
		return "''"
	}
	if !strings.ContainsAny(s, " \t\n'\"\\$`&;|<>()*?[]#~=%!{}") {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'"'"'`) + "'"
}
