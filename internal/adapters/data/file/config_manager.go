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
	"os"
	"path/filepath"

	"github.com/hkoosha/ec2ssh/internal/core/domain"
	"gopkg.in/yaml.v3"
)

type configManager struct {
	filePath string
}

// NewConfigManager creates the YAML configuration repository.
func NewConfigManager(filePath string) *configManager {
	return &configManager{filePath: filePath}
}

// Load reads the config document. A missing file is seeded with defaults; a
// corrupt file yields defaults plus the parse error so the caller can log it.
func (cm *configManager) Load() (domain.Config, error) {
	if _, err := os.Stat(cm.filePath); os.IsNotExist(err) {
		defaultConfig := domain.DefaultConfig()
		// Best effort seed; defaults are still usable if the save fails.
		_ = cm.Save(defaultConfig)
		return defaultConfig, nil
	}

	data, err := os.ReadFile(cm.filePath)
	if err != nil {
		return domain.DefaultConfig(), err
	}

	var config domain.Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return domain.DefaultConfig(), err
	}

	if config.InstanceKeys == nil {
		config.InstanceKeys = map[string]string{}
	}
	if config.CacheTTLSeconds == 0 {
		config.CacheTTLSeconds = domain.DefaultConfig().CacheTTLSeconds
	}

	return config, nil
}

// Save writes the config document, creating the directory if needed.
func (cm *configManager) Save(config domain.Config) error {
	if err := os.MkdirAll(filepath.Dir(cm.filePath), 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return err
	}

	return os.WriteFile(cm.filePath, data, 0o600)
}
