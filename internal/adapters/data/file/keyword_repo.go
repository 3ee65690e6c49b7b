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
	"sort"
	"strings"

	"github.com/hkoosha/ec2ssh/internal/core/domain"
	"go.uber.org/zap"
)

// searchMatchLines caps the number of matching lines returned per stored
// result, keeping search output scannable.
const searchMatchLines = 5

type keywordStore struct {
	filePath string
	logger   *zap.SugaredLogger
}

// NewKeywordStore creates the JSON-file backed scan result store. The
// document maps instance id to its latest scan results; an unreadable file
// is treated as an empty store.
func NewKeywordStore(logger *zap.SugaredLogger, filePath string) *keywordStore {
	return &keywordStore{filePath: filePath, logger: logger}
}

// SaveResults overwrites the stored results for the instance wholesale.
func (k *keywordStore) SaveResults(serverID string, results []domain.ScanResult) error {
	data := k.load()
	data[serverID] = results
	if err := k.save(data); err != nil {
		return err
	}
	k.logger.Infow("saved scan results", "instance", serverID, "count", len(results))
	return nil
}

// GetResults returns the stored results for the instance, empty if none.
func (k *keywordStore) GetResults(serverID string) []domain.ScanResult {
	results, ok := k.load()[serverID]
	if !ok {
		return []domain.ScanResult{}
	}
	return results
}

// Search scans every stored result's content for the query,
// case-insensitively. The returned content holds only the lines that contain
// the query, capped at a handful per result.
func (k *keywordStore) Search(query string) []domain.SearchMatch {
	queryLower := strings.ToLower(query)
	matches := []domain.SearchMatch{}

	for serverID, results := range k.load() {
		for _, result := range results {
			if !strings.Contains(strings.ToLower(result.Content), queryLower) {
				continue
			}

			var matching []string
			for _, line := range strings.Split(result.Content, "\n") {
				if strings.Contains(strings.ToLower(line), queryLower) {
					matching = append(matching, line)
					if len(matching) == searchMatchLines {
						break
					}
				}
			}

			matches = append(matches, domain.SearchMatch{
				ServerID:  serverID,
				Source:    result.Source,
				Content:   strings.Join(matching, "\n"),
				MatchType: "keyword",
				Timestamp: result.Timestamp,
			})
		}
	}

	// Map iteration order varies between runs; sort for stable output.
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].ServerID != matches[j].ServerID {
			return matches[i].ServerID < matches[j].ServerID
		}
		return matches[i].Source < matches[j].Source
	})
	return matches
}

// PruneStale removes entries for instances not in activeIDs and returns how
// many were removed.
func (k *keywordStore) PruneStale(activeIDs []string) (int, error) {
	active := make(map[string]struct{}, len(activeIDs))
	for _, id := range activeIDs {
		active[id] = struct{}{}
	}

	data := k.load()
	pruned := 0
	for id := range data {
		if _, ok := active[id]; !ok {
			delete(data, id)
			pruned++
		}
	}

	if pruned > 0 {
		if err := k.save(data); err != nil {
			return 0, err
		}
		k.logger.Infow("pruned stale keyword entries", "count", pruned)
	}
	return pruned, nil
}

// ServerIDs lists every instance id with stored results.
func (k *keywordStore) ServerIDs() []string {
	data := k.load()
	ids := make([]string, 0, len(data))
	for id := range data {
		ids = append(ids, id)
	}
	return ids
}

// Clear drops all stored results.
func (k *keywordStore) Clear() error {
	return k.save(map[string][]domain.ScanResult{})
}

func (k *keywordStore) load() map[string][]domain.ScanResult {
	data, err := os.ReadFile(k.filePath)
	if err != nil {
		if !os.IsNotExist(err) {
			k.logger.Errorw("failed to read keyword store", "error", err)
		}
		return map[string][]domain.ScanResult{}
	}

	var store map[string][]domain.ScanResult
	if err := json.Unmarshal(data, &store); err != nil {
		k.logger.Errorw("failed to parse keyword store", "error", err)
		return map[string][]domain.ScanResult{}
	}
	if store == nil {
		k.logger.Warnw("keyword store document is null, treating as empty")
		return map[string][]domain.ScanResult{}
	}
	return store
}

func (k *keywordStore) save(store map[string][]domain.ScanResult) error {
	data, err := json.MarshalIndent(store, "", "  ")
	if err != nil {
		return err
	}
	if err := atomicWrite(k.filePath, data); err != nil {
		k.logger.Errorw("failed to write keyword store", "error", err)
		return err
	}
	return nil
}
