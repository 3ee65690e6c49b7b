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

package file

import (
	"encoding/json"
	"os"

	"github.com/hkoosha/ec2ssh/internal/core/domain"
	"go.uber.org/zap"
)

const (
	maxGlobalHistory   = 200
	maxInstanceHistory = 50

	// globalHistoryKey keys the cross-instance history inside the same map
	// as per-instance history. Instance ids never start with an underscore.
	globalHistoryKey = "_global"
)

type historyDocument struct {
	SavedCommands []domain.SavedCommand `json:"saved_commands"`
	History       map[string][]string   `json:"history"`
}

type commandHistory struct {
	filePath string
	logger   *zap.SugaredLogger
}

// NewCommandHistory creates the persistent command history and saved
// command store.
func NewCommandHistory(logger *zap.SugaredLogger, filePath string) *commandHistory {
	return &commandHistory{filePath: filePath, logger: logger}
}

// AddToHistory records a command in the per-instance and global histories.
// Consecutive duplicates collapse; both histories are trimmed to their caps.
func (h *commandHistory) AddToHistory(instanceID, command string) error {
	doc := h.load()

	doc.History[instanceID] = appendTrimmed(doc.History[instanceID], command, maxInstanceHistory)
	doc.History[globalHistoryKey] = appendTrimmed(doc.History[globalHistoryKey], command, maxGlobalHistory)

	return h.save(doc)
}

// InstanceHistory returns the command history for one instance, oldest first.
func (h *commandHistory) InstanceHistory(instanceID string) []string {
	return h.load().History[instanceID]
}

// GlobalHistory returns the command history across all instances.
func (h *commandHistory) GlobalHistory() []string {
	return h.load().History[globalHistoryKey]
}

// SaveCommand stores a named favorite, replacing any existing entry with the
// same name.
func (h *commandHistory) SaveCommand(name, command string) error {
	doc := h.load()

	kept := doc.SavedCommands[:0]
	for _, saved := range doc.SavedCommands {
		if saved.Name != name {
			kept = append(kept, saved)
		}
	}
	doc.SavedCommands = append(kept, domain.SavedCommand{Name: name, Command: command})

	if err := h.save(doc); err != nil {
		return err
	}
	h.logger.Infow("saved command", "name", name, "command", command)
	return nil
}

// SavedCommands lists all named favorites.
func (h *commandHistory) SavedCommands() []domain.SavedCommand {
	return h.load().SavedCommands
}

// DeleteSavedCommand removes a favorite by name, reporting whether it existed.
func (h *commandHistory) DeleteSavedCommand(name string) (bool, error) {
	doc := h.load()

	kept := make([]domain.SavedCommand, 0, len(doc.SavedCommands))
	for _, saved := range doc.SavedCommands {
		if saved.Name != name {
			kept = append(kept, saved)
		}
	}
	if len(kept) == len(doc.SavedCommands) {
		return false, nil
	}

	doc.SavedCommands = kept
	if err := h.save(doc); err != nil {
		return false, err
	}
	h.logger.Infow("deleted saved command", "name", name)
	return true, nil
}

func appendTrimmed(history []string, command string, limit int) []string {
	if len(history) == 0 || history[len(history)-1] != command {
		history = append(history, command)
	}
	if len(history) > limit {
		history = history[len(history)-limit:]
	}
	return history
}

func (h *commandHistory) load() historyDocument {
	doc := historyDocument{History: map[string][]string{}}

	data, err := os.ReadFile(h.filePath)
	if err != nil {
		if !os.IsNotExist(err) {
			h.logger.Errorw("failed to read command history", "error", err)
		}
		return doc
	}

	if err := json.Unmarshal(data, &doc); err != nil {
		h.logger.Errorw("failed to parse command history", "error", err)
		return historyDocument{History: map[string][]string{}}
	}
	if doc.History == nil {
		doc.History = map[string][]string{}
	}
	return doc
}

func (h *commandHistory) save(doc historyDocument) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	if err := atomicWrite(h.filePath, data); err != nil {
		h.logger.Errorw("failed to write command history", "error", err)
		return err
	}
	return nil
}
