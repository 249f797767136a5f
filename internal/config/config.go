// SPDX-License-Identifier: Apache-2.0

// Package config loads the updater configuration with the precedence
// ENV > config file > defaults.
package config

import (
	"time"
)

// Config is the effective configuration of the updater.
type Config struct {
	// External project checkout
	BuildPath string `yaml:"buildPath"` // chromium build directory (e.g. src/out/Default)
	Build     bool   `yaml:"build"`     // rebuild the list target before extracting
	Commit    bool   `yaml:"commit"`    // git commit after a successful extraction

	// Target repository hosting chromium_api_list.csv
	TargetPath string `yaml:"targetPath"`

	// Local state
	DataDir      string `yaml:"dataDir"`      // snapshot archive and auto-loaded config
	SnapshotKeep int    `yaml:"snapshotKeep"` // generations retained, 0 disables pruning

	// Periodic updates and build watching
	UpdateInterval time.Duration `yaml:"updateInterval"` // 0 disables the ticker
	WatchBuild     bool          `yaml:"watchBuild"`     // react to build output changes

	// HTTP API
	ListenAddr      string        `yaml:"listenAddr"`
	UpdateRateLimit int           `yaml:"updateRateLimit"` // POST /api/update per minute per IP
	CacheTTL        time.Duration `yaml:"cacheTTL"`
	CacheBackend    string        `yaml:"cacheBackend"` // memory | redis | off
	RedisAddr       string        `yaml:"redisAddr"`
	RedisPassword   string        `yaml:"redisPassword"`
	RedisDB         int           `yaml:"redisDB"`

	// Logging
	LogLevel   string `yaml:"logLevel"`
	LogService string `yaml:"logService"`

	// Version is injected by the binary, never configured.
	Version string `yaml:"-"`
}

// Defaults returns the built-in defaults.
func Defaults() Config {
	return Config{
		TargetPath:      ".",
		DataDir:         "/var/lib/apilist",
		SnapshotKeep:    50,
		ListenAddr:      ":8080",
		UpdateRateLimit: 10,
		CacheTTL:        5 * time.Minute,
		CacheBackend:    "memory",
		LogLevel:        "info",
		LogService:      "apilist",
	}
}

// FromEnv overlays environment variables onto cfg.
func FromEnv(cfg Config) Config {
	cfg.BuildPath = ParseString("APILIST_BUILD_PATH", cfg.BuildPath)
	cfg.Build = ParseBool("APILIST_BUILD", cfg.Build)
	cfg.Commit = ParseBool("APILIST_COMMIT", cfg.Commit)
	cfg.TargetPath = ParseString("APILIST_TARGET_PATH", cfg.TargetPath)
	cfg.DataDir = ParseString("APILIST_DATA", cfg.DataDir)
	cfg.SnapshotKeep = ParseInt("APILIST_SNAPSHOT_KEEP", cfg.SnapshotKeep)
	cfg.UpdateInterval = ParseDuration("APILIST_UPDATE_INTERVAL", cfg.UpdateInterval)
	cfg.WatchBuild = ParseBool("APILIST_WATCH_BUILD", cfg.WatchBuild)
	cfg.ListenAddr = ParseString("APILIST_LISTEN", cfg.ListenAddr)
	cfg.UpdateRateLimit = ParseInt("APILIST_UPDATE_RATE_LIMIT", cfg.UpdateRateLimit)
	cfg.CacheTTL = ParseDuration("APILIST_CACHE_TTL", cfg.CacheTTL)
	cfg.CacheBackend = ParseString("APILIST_CACHE_BACKEND", cfg.CacheBackend)
	cfg.RedisAddr = ParseString("APILIST_REDIS_ADDR", cfg.RedisAddr)
	cfg.RedisPassword = ParseString("APILIST_REDIS_PASSWORD", cfg.RedisPassword)
	cfg.RedisDB = ParseInt("APILIST_REDIS_DB", cfg.RedisDB)
	cfg.LogLevel = ParseString("APILIST_LOG_LEVEL", cfg.LogLevel)
	cfg.LogService = ParseString("APILIST_LOG_SERVICE", cfg.LogService)
	return cfg
}
