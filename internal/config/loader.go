// SPDX-License-Identifier: MIT

package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Loader resolves configuration with precedence ENV > file > defaults.
type Loader struct {
	path    string
	version string
}

// NewLoader creates a loader for the given optional config file path.
func NewLoader(path, version string) *Loader {
	return &Loader{path: path, version: version}
}

// Load produces the effective configuration. A missing path is not an error;
// a present but unreadable or malformed file is.
func (l *Loader) Load() (AppConfig, error) {
	cfg := Defaults()
	cfg.Version = l.version

	if l.path != "" {
		data, err := os.ReadFile(l.path)
		if err != nil {
			return AppConfig{}, fmt.Errorf("read config file %s: %w", l.path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return AppConfig{}, fmt.Errorf("parse config file %s: %w", l.path, err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return AppConfig{}, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}
