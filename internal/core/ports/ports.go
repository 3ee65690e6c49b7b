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

package ports

import (
	"context"
	"time"

	"github.com/hkoosha/ec2ssh/internal/core/domain"
)

// InstanceFetcher lists EC2 instances from the cloud. Implementations may
// fail on network/credential errors; callers treat failure as "no new data".
type InstanceFetcher interface {
	FetchAllInstances(ctx context.Context) ([]domain.Instance, error)
}

// InstanceCache is a TTL-based persisted snapshot of the last fetch.
type InstanceCache interface {
	// LoadFresh returns the cached instances only while the record is
	// younger than the TTL, nil otherwise.
	LoadFresh() []domain.Instance
	// LoadAny returns cached instances regardless of age, nil only when no
	// readable record exists.
	LoadAny() []domain.Instance
	// Save atomically replaces the record, stamping it with the current time.
	Save(instances []domain.Instance) error
	// Age returns the time since the last save, ok=false when absent.
	Age() (time.Duration, bool)
	// Invalidate deletes the record to force a fresh fetch.
	Invalidate() error
}

// KeywordStore persists scan results per instance and makes them searchable.
type KeywordStore interface {
	SaveResults(serverID string, results []domain.ScanResult) error
	GetResults(serverID string) []domain.ScanResult
	Search(query string) []domain.SearchMatch
	PruneStale(activeIDs []string) (int, error)
	ServerIDs() []string
	Clear() error
}

// CommandHistory persists per-instance and global command history plus named
// saved commands.
type CommandHistory interface {
	AddToHistory(instanceID, command string) error
	InstanceHistory(instanceID string) []string
	GlobalHistory() []string
	SaveCommand(name, command string) error
	SavedCommands() []domain.SavedCommand
	DeleteSavedCommand(name string) (bool, error)
}

// ExecResult is the captured outcome of a finished subprocess.
type ExecResult struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// CommandExecutor runs an argument vector, never a shell string. A zero
// timeout means no deadline. An error is returned only for launch failures
// and timeouts; a nonzero exit is reported through ExecResult.
type CommandExecutor interface {
	Run(ctx context.Context, argv []string, timeout time.Duration) (ExecResult, error)
}

// ConfigRepository loads and saves the application configuration document.
type ConfigRepository interface {
	Load() (domain.Config, error)
	Save(cfg domain.Config) error
}
