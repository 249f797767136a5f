// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"os"
)

var (
	// ErrBuildPathMissing reports a build directory that does not exist.
	ErrBuildPathMissing = errors.New("config: build directory does not exist")
	// ErrTargetPathMissing reports a target path that does not exist.
	ErrTargetPathMissing = errors.New("config: target path does not exist")
)

// Validate checks the parts of the configuration every mode depends on.
func Validate(cfg Config) error {
	switch cfg.CacheBackend {
	case "memory", "redis", "off":
	default:
		return fmt.Errorf("config: unknown cache backend %q", cfg.CacheBackend)
	}
	if cfg.CacheBackend == "redis" && cfg.RedisAddr == "" {
		return fmt.Errorf("config: cache backend redis requires APILIST_REDIS_ADDR")
	}
	if cfg.UpdateRateLimit <= 0 {
		return fmt.Errorf("config: update rate limit must be positive, got %d", cfg.UpdateRateLimit)
	}
	if cfg.SnapshotKeep < 0 {
		return fmt.Errorf("config: snapshot keep must not be negative, got %d", cfg.SnapshotKeep)
	}
	if cfg.UpdateInterval < 0 {
		return fmt.Errorf("config: update interval must not be negative, got %s", cfg.UpdateInterval)
	}
	return nil
}

// ValidateUpdatePaths checks the paths one update cycle needs. The sentinel
// errors preserve the distinct failure modes callers map to exit codes.
func ValidateUpdatePaths(cfg Config) error {
	if cfg.BuildPath == "" {
		return fmt.Errorf("%w: no build path configured", ErrBuildPathMissing)
	}
	if _, err := os.Stat(cfg.BuildPath); err != nil {
		return fmt.Errorf("%w: checked %s", ErrBuildPathMissing, cfg.BuildPath)
	}
	if _, err := os.Stat(cfg.TargetPath); err != nil {
		return fmt.Errorf("%w: checked %s", ErrTargetPathMissing, cfg.TargetPath)
	}
	return nil
}
