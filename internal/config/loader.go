// SPDX-License-Identifier: Apache-2.0

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Loader loads configuration with the precedence ENV > file > defaults.
type Loader struct {
	configPath string
	version    string
}

// NewLoader returns a Loader. configPath may be empty for ENV-only operation.
func NewLoader(configPath, version string) *Loader {
	return &Loader{configPath: configPath, version: version}
}

// Load produces the effective configuration.
func (l *Loader) Load() (Config, error) {
	cfg := Defaults()

	if l.configPath != "" {
		fileCfg, err := loadFile(l.configPath)
		if err != nil {
			return Config{}, err
		}
		cfg = merge(cfg, fileCfg)
	}

	cfg = FromEnv(cfg)
	cfg.Version = l.version
	return cfg, nil
}

// loadFile reads a YAML config file. Unknown keys are rejected so typos fail
// loudly instead of silently falling back to defaults.
func loadFile(path string) (Config, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- operator-provided config path
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		if errors.Is(err, io.EOF) {
			// Empty config file: defaults apply.
			return Config{}, nil
		}
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

// merge overlays non-zero file values onto the defaults.
func merge(base, file Config) Config {
	if file.BuildPath != "" {
		base.BuildPath = file.BuildPath
	}
	if file.Build {
		base.Build = true
	}
	if file.Commit {
		base.Commit = true
	}
	if file.TargetPath != "" {
		base.TargetPath = file.TargetPath
	}
	if file.DataDir != "" {
		base.DataDir = file.DataDir
	}
	if file.SnapshotKeep != 0 {
		base.SnapshotKeep = file.SnapshotKeep
	}
	if file.UpdateInterval != 0 {
		base.UpdateInterval = file.UpdateInterval
	}
	if file.WatchBuild {
		base.WatchBuild = true
	}
	if file.ListenAddr != "" {
		base.ListenAddr = file.ListenAddr
	}
	if file.UpdateRateLimit != 0 {
		base.UpdateRateLimit = file.UpdateRateLimit
	}
	if file.CacheTTL != 0 {
		base.CacheTTL = file.CacheTTL
	}
	if file.CacheBackend != "" {
		base.CacheBackend = file.CacheBackend
	}
	if file.RedisAddr != "" {
		base.RedisAddr = file.RedisAddr
	}
	if file.RedisPassword != "" {
		base.RedisPassword = file.RedisPassword
	}
	if file.RedisDB != 0 {
		base.RedisDB = file.RedisDB
	}
	if file.LogLevel != "" {
		base.LogLevel = file.LogLevel
	}
	if file.LogService != "" {
		base.LogService = file.LogService
	}
	return base
}
