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
	"time"

	"github.com/hkoosha/ec2ssh/internal/core/domain"
	"github.com/hkoosha/ec2ssh/internal/core/ports"
	"go.uber.org/zap"
)

type instanceService struct {
	logger  *zap.SugaredLogger
	fetcher ports.InstanceFetcher
	cache   ports.InstanceCache
}

// NewInstanceService creates the cached instance lister.
func NewInstanceService(
	logger *zap.SugaredLogger,
	fetcher ports.InstanceFetcher,
	cache ports.InstanceCache,
) *instanceService {
	return &instanceService{logger: logger, fetcher: fetcher, cache: cache}
}

// ListInstances returns the current instance set. A fresh cache read avoids
// the network entirely; on a fetch failure the last-known data is served
// stale rather than losing the view.
func (s *instanceService) ListInstances(ctx context.Context, forceRefresh bool) ([]domain.Instance, error) {
	if !forceRefresh {
		if instances := s.cache.LoadFresh(); instances != nil {
			s.logger.Debugw("serving instances from cache", "count", len(instances))
			return instances, nil
		}
	}

	instances, err := s.fetcher.FetchAllInstances(ctx)
	if err != nil {
		s.logger.Warnw("instance fetch failed, falling back to cache", "error", err)
		if stale := s.cache.LoadAny(); stale != nil {
			return stale, nil
		}
		return nil, fmt.Errorf("failed to fetch instances and no cached data available: %w", err)
	}

	if err := s.cache.Save(instances); err != nil {
		s.logger.Errorw("failed to save instance cache", "error", err)
	}

	s.logger.Infow("fetched instances", "count", len(instances))
	return instances, nil
}

// CacheAge reports how old the cached instance data is, ok=false when no
// cache exists.
func (s *instanceService) CacheAge() (time.Duration, bool) {
	return s.cache.Age()
}

// InvalidateCache forces the next listing to hit the fetcher.
func (s *instanceService) InvalidateCache() error {
	return s.cache.Invalidate()
}
