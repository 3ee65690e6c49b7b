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

package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"

	"github.com/hkoosha/ec2ssh/internal/core/ports"
	"go.uber.org/zap"
)

type systemExecutor struct {
	logger *zap.SugaredLogger
}

// NewSystemExecutor creates the subprocess runner. It only ever receives an
// argument vector, never a shell string.
func NewSystemExecutor(logger *zap.SugaredLogger) *systemExecutor {
	return &systemExecutor{logger: logger}
}

// Run executes argv with an optional timeout. Launch failures and timeouts
// return an error; a nonzero exit is reported through the result.
func (e *systemExecutor) Run(ctx context.Context, argv []string, timeout time.Duration) (ports.ExecResult, error) {
	if len(argv) == 0 {
		return ports.ExecResult{}, errors.New("empty command")
	}

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...) // #nosec G204 -- argv is built by the command builders
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := ports.ExecResult{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}

	if ctxErr := ctx.Err(); errors.Is(ctxErr, context.DeadlineExceeded) {
		e.logger.Warnw("command timed out", "command", argv[0], "timeout", timeout)
		return result, fmt.Errorf("command %s timed out after %s", argv[0], timeout)
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
			return result, nil
		}
		return result, fmt.Errorf("failed to run %s: %w", argv[0], err)
	}

	return result, nil
}
