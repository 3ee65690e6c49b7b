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

	"github.com/hkoosha/ec2ssh/internal/core/ports"
	"go.uber.org/zap"
)

// transferTimeout bounds a single scp run.
const transferTimeout = 300 * time.Second

// TransferOptions describes one scp invocation.
type TransferOptions struct {
	Host      string
	User      string
	KeyPath   string
	ProxyJump string
	ProxyArgs []string
}

type scpService struct {
	logger   *zap.SugaredLogger
	executor ports.CommandExecutor
}

// NewSCPService creates the file transfer command builder.
func NewSCPService(logger *zap.SugaredLogger, executor ports.CommandExecutor) *scpService {
	return &scpService{logger: logger, executor: executor}
}

// BuildUploadCommand builds `scp [options] <local> <user>@<host>:<remote>`.
func (s *scpService) BuildUploadCommand(localPath, remotePath string, opts TransferOptions) []string {
	cmd := s.baseArgs(opts)
	cmd = append(cmd, ExpandKeyPath(localPath))
	cmd = append(cmd, opts.User+"@"+opts.Host+":"+remotePath)
	s.logger.Debugw("built scp upload command", "argv", strings.Join(cmd, " "))
	return cmd
}

// BuildDownloadCommand builds `scp [options] <user>@<host>:<remote> <local>`.
func (s *scpService) BuildDownloadCommand(remotePath, localPath string, opts TransferOptions) []string {
	cmd := s.baseArgs(opts)
	cmd = append(cmd, opts.User+"@"+opts.Host+":"+remotePath)
	cmd = append(cmd, ExpandKeyPath(localPath))
	s.logger.Debugw("built scp download command", "argv", strings.Join(cmd, " "))
	return cmd
}

// ExecuteTransfer runs a built scp command with the transfer timeout.
func (s *scpService) ExecuteTransfer(ctx context.Context, argv []string) (ports.ExecResult, error) {
	s.logger.Infow("executing transfer", "argv", strings.Join(argv, " "))
	res, err := s.executor.Run(ctx, argv, transferTimeout)
	if err != nil {
		s.logger.Errorw("transfer failed", "error", err)
		return res, err
	}
	if res.ExitCode != 0 {
		s.logger.Errorw("transfer exited nonzero", "exit_code", res.ExitCode, "stderr", res.Stderr)
	} else {
		s.logger.Infow("transfer completed")
	}
	return res, nil
}

// baseArgs carries the same safety options as the ssh builder: disabled host
// key checking for ephemeral cloud IPs, and IdentitiesOnly whenever a key is
// supplied to avoid agent-key exhaustion lockouts.
func (s *scpService) baseArgs(opts TransferOptions) []string {
	cmd := []string{
		"scp",
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

	return cmd
}
