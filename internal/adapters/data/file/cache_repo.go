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
	"time"

	"github.com/hkoosha/ec2ssh/internal/core/domain"
	"go.uber.org/zap"
)

type cacheRecord struct {
	Timestamp time.Time         `json:"timestamp"`
	Instances []domain.Instance `json:"instances"`
}

type instanceCache struct {
	filePath string
	ttl      time.Duration
	logger   *zap.SugaredLogger

	// now is replaced in tests to step past the TTL without sleeping.
	now func() time.Time
}

// NewInstanceCache creates the TTL-based instance cache backed by a single
// JSON record. A missing or unparsable file behaves exactly like an absent
// record; the cache self-heals on the next save.
func NewInstanceCache(logger *zap.SugaredLogger, filePath string, ttl time.Duration) *instanceCache {
	return &instanceCache{
		filePath: filePath,
		ttl:      ttl,
		logger:   logger,
		now:      time.Now,
	}
}

// LoadFresh returns the cached instances only while the record is younger
// than the TTL.
func (c *instanceCache) LoadFresh() []domain.Instance {
	record, ok := c.read()
	if !ok {
		return nil
	}
	age := c.now().Sub(record.Timestamp)
	if age >= c.ttl {
		c.logger.Debugw("cache expired", "age", age, "ttl", c.ttl)
		return nil
	}
	return record.Instances
}

// LoadAny returns cached instances regardless of freshness. Nil only when no
// readable record exists.
func (c *instanceCache) LoadAny() []domain.Instance {
	record, ok := c.read()
	if !ok {
		return nil
	}
	return record.Instances
}

// Save atomically replaces the record with timestamp = now. Readers keep
// seeing the old record until the rename lands.
func (c *instanceCache) Save(instances []domain.Instance) error {
	if instances == nil {
		// A nil slice marshals to JSON null, which read() would treat as an
		// absent record; an empty fleet must still round-trip.
		instances = []domain.Instance{}
	}
	record := cacheRecord{Timestamp: c.now(), Instances: instances}
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return err
	}
	if err := atomicWrite(c.filePath, data); err != nil {
		c.logger.Errorw("failed to write cache file", "error", err)
		return err
	}
	c.logger.Debugw("cached instances", "count", len(instances))
	return nil
}

// Age returns the time since the last save, ok=false when absent or corrupt.
func (c *instanceCache) Age() (time.Duration, bool) {
	record, ok := c.read()
	if !ok {
		return 0, false
	}
	return c.now().Sub(record.Timestamp), true
}

// Invalidate deletes the record to force a fresh fetch.
func (c *instanceCache) Invalidate() error {
	err := os.Remove(c.filePath)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	c.logger.Debugw("cache invalidated")
	return nil
}

func (c *instanceCache) read() (cacheRecord, bool) {
	data, err := os.ReadFile(c.filePath)
	if err != nil {
		if !os.IsNotExist(err) {
			c.logger.Errorw("failed to read cache file", "error", err)
		}
		return cacheRecord{}, false
	}

	var record cacheRecord
	if err := json.Unmarshal(data, &record); err != nil {
		// Corrupt cache is treated as absent; the next save overwrites it.
		c.logger.Errorw("failed to parse cache file", "error", err)
		return cacheRecord{}, false
	}
	if record.Timestamp.IsZero() || record.Instances == nil {
		c.logger.Warnw("cache file missing timestamp or instances")
		return cacheRecord{}, false
	}
	return record, true
}
