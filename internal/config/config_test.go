// SPDX-License-Identifier: Apache-2.0

package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()
	assert.Equal(t, ".", cfg.TargetPath)
	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, "memory", cfg.CacheBackend)
	assert.Equal(t, 50, cfg.SnapshotKeep)
	assert.False(t, cfg.Build)
	assert.False(t, cfg.Commit)
	assert.Zero(t, cfg.UpdateInterval)
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("APILIST_BUILD_PATH", "/chromium/src/out/Default")
	t.Setenv("APILIST_BUILD", "true")
	t.Setenv("APILIST_COMMIT", "1")
	t.Setenv("APILIST_UPDATE_INTERVAL", "30m")
	t.Setenv("APILIST_SNAPSHOT_KEEP", "7")
	t.Setenv("APILIST_LISTEN", "127.0.0.1:9999")

	cfg := FromEnv(Defaults())
	assert.Equal(t, "/chromium/src/out/Default", cfg.BuildPath)
	assert.True(t, cfg.Build)
	assert.True(t, cfg.Commit)
	assert.Equal(t, 30*time.Minute, cfg.UpdateInterval)
	assert.Equal(t, 7, cfg.SnapshotKeep)
	assert.Equal(t, "127.0.0.1:9999", cfg.ListenAddr)
}

func TestFromEnvInvalidValuesFallBack(t *testing.T) {
	t.Setenv("APILIST_SNAPSHOT_KEEP", "lots")
	t.Setenv("APILIST_BUILD", "perhaps")
	t.Setenv("APILIST_UPDATE_INTERVAL", "soon")

	cfg := FromEnv(Defaults())
	assert.Equal(t, Defaults().SnapshotKeep, cfg.SnapshotKeep)
	assert.False(t, cfg.Build)
	assert.Zero(t, cfg.UpdateInterval)
}

func TestLoaderFileThenEnvPrecedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(
		"buildPath: /from/file\nlistenAddr: \":7000\"\nsnapshotKeep: 3\n"), 0o600))

	t.Setenv("APILIST_LISTEN", ":7001")

	cfg, err := NewLoader(path, "v1.2.3").Load()
	require.NoError(t, err)
	assert.Equal(t, "/from/file", cfg.BuildPath)
	assert.Equal(t, ":7001", cfg.ListenAddr) // ENV wins over file
	assert.Equal(t, 3, cfg.SnapshotKeep)
	assert.Equal(t, "v1.2.3", cfg.Version)
}

func TestLoaderRejectsUnknownKeys(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("buldPath: /typo\n"), 0o600))

	_, err := NewLoader(path, "dev").Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "buldPath")
}

func TestLoaderEmptyFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, nil, 0o600))

	cfg, err := NewLoader(path, "dev").Load()
	require.NoError(t, err)
	assert.Equal(t, Defaults().ListenAddr, cfg.ListenAddr)
}

func TestValidate(t *testing.T) {
	cfg := Defaults()
	assert.NoError(t, Validate(cfg))

	bad := cfg
	bad.CacheBackend = "memcached"
	assert.Error(t, Validate(bad))

	bad = cfg
	bad.CacheBackend = "redis"
	assert.Error(t, Validate(bad)) // redis requires an address
	bad.RedisAddr = "localhost:6379"
	assert.NoError(t, Validate(bad))

	bad = cfg
	bad.UpdateRateLimit = 0
	assert.Error(t, Validate(bad))

	bad = cfg
	bad.SnapshotKeep = -1
	assert.Error(t, Validate(bad))
}

func TestValidateUpdatePaths(t *testing.T) {
	cfg := Defaults()
	cfg.TargetPath = t.TempDir()

	cfg.BuildPath = ""
	assert.ErrorIs(t, ValidateUpdatePaths(cfg), ErrBuildPathMissing)

	cfg.BuildPath = filepath.Join(t.TempDir(), "missing")
	assert.ErrorIs(t, ValidateUpdatePaths(cfg), ErrBuildPathMissing)

	cfg.BuildPath = t.TempDir()
	assert.NoError(t, ValidateUpdatePaths(cfg))

	cfg.TargetPath = filepath.Join(t.TempDir(), "missing")
	assert.ErrorIs(t, ValidateUpdatePaths(cfg), ErrTargetPathMissing)
}

func TestHolderReloadKeepsOldConfigOnFailure(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("listenAddr: \":6000\"\n"), 0o600))

	loader := NewLoader(path, "dev")
	initial, err := loader.Load()
	require.NoError(t, err)

	holder := NewHolder(initial, loader, path)
	assert.Equal(t, ":6000", holder.Current().ListenAddr)

	// Break the file: validation must reject it and keep the old config.
	require.NoError(t, os.WriteFile(path, []byte("cacheBackend: bogus\n"), 0o600))
	require.Error(t, holder.Reload(context.Background()))
	assert.Equal(t, ":6000", holder.Current().ListenAddr)

	// Fix it again.
	require.NoError(t, os.WriteFile(path, []byte("listenAddr: \":6001\"\n"), 0o600))
	require.NoError(t, holder.Reload(context.Background()))
	assert.Equal(t, ":6001", holder.Current().ListenAddr)
}

func TestHolderNotifiesSubscribers(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("listenAddr: \":6100\"\n"), 0o600))

	loader := NewLoader(path, "dev")
	initial, err := loader.Load()
	require.NoError(t, err)

	holder := NewHolder(initial, loader, path)
	ch := make(chan Config, 1)
	holder.Subscribe(ch)

	require.NoError(t, os.WriteFile(path, []byte("listenAddr: \":6200\"\n"), 0o600))
	require.NoError(t, holder.Reload(context.Background()))

	select {
	case cfg := <-ch:
		assert.Equal(t, ":6200", cfg.ListenAddr)
	case <-time.After(time.Second):
		t.Fatal("expected reload notification")
	}
}
