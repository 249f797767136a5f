// SPDX-License-Identifier: Apache-2.0

package main

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/asankah/chromium-api-list/internal/cache"
	"github.com/asankah/chromium-api-list/internal/chromium"
	"github.com/asankah/chromium-api-list/internal/config"
)

const generatedCSV = `interface,name,entity_type,arguments,idl_type,syntactic_form,use_counter,secure_context,high_entropy,source_file,source_line
Screen,availWidth,attribute,,long,Screen.availWidth,,,Direct,screen.idl,12
Navigator,,interface,,,,,,,navigator.idl,10
Navigator,hardwareConcurrency,attribute,,unsigned long,Navigator.hardwareConcurrency,NavigatorHardwareConcurrency,,Direct,navigator.idl,42
`

func writeGeneratedList(t *testing.T, buildDir string) {
	t.Helper()
	path := filepath.Join(buildDir, chromium.APIListFile)
	require.NoError(t, os.WriteFile(path, []byte(generatedCSV), 0o644))
}

func TestRunUpdateCLIPublishesList(t *testing.T) {
	buildDir := t.TempDir()
	targetDir := t.TempDir()
	writeGeneratedList(t, buildDir)

	code := runUpdateCLI([]string{"-C", buildDir, "-t", targetDir})
	require.Equal(t, exitOK, code)

	published, err := os.ReadFile(filepath.Join(targetDir, chromium.APIListTargetFile))
	require.NoError(t, err)

	// Header first, remaining rows sorted.
	want := `interface,name,entity_type,arguments,idl_type,syntactic_form,use_counter,secure_context,high_entropy,source_file,source_line
Navigator,,interface,,,,,,,navigator.idl,10
Navigator,hardwareConcurrency,attribute,,unsigned long,Navigator.hardwareConcurrency,NavigatorHardwareConcurrency,,Direct,navigator.idl,42
Screen,availWidth,attribute,,long,Screen.availWidth,,,Direct,screen.idl,12
`
	assert.Equal(t, want, string(published))
}

func TestRunUpdateCLIBuildPathMissing(t *testing.T) {
	targetDir := t.TempDir()
	code := runUpdateCLI([]string{"-C", filepath.Join(targetDir, "nope"), "-t", targetDir})
	assert.Equal(t, exitBuildPathBad, code)
}

func TestRunUpdateCLITargetPathMissing(t *testing.T) {
	buildDir := t.TempDir()
	writeGeneratedList(t, buildDir)
	code := runUpdateCLI([]string{"-C", buildDir, "-t", filepath.Join(buildDir, "nope")})
	assert.Equal(t, exitTargetPathBad, code)
}

func TestRunUpdateCLIListMissing(t *testing.T) {
	buildDir := t.TempDir()
	targetDir := t.TempDir()
	code := runUpdateCLI([]string{"-C", buildDir, "-t", targetDir})
	assert.Equal(t, exitListMissing, code)
}

func TestRunUpdateCLIListIsDirectory(t *testing.T) {
	buildDir := t.TempDir()
	targetDir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(buildDir, chromium.APIListFile), 0o755))

	code := runUpdateCLI([]string{"-C", buildDir, "-t", targetDir})
	assert.Equal(t, exitListNotRegular, code)
}

func TestRunHealthcheckCLI(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/readyz" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	assert.Equal(t, 0, runHealthcheckCLI([]string{"-addr", srv.URL}))
	assert.Equal(t, 1, runHealthcheckCLI([]string{"-addr", srv.URL, "-mode", "live"}))
	assert.Equal(t, 1, runHealthcheckCLI([]string{"-addr", "http://localhost:1"}))
}

func TestRunStatusCLI(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/status", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"last_run":"2026-08-30T10:00:00Z","entries":4,"high_entropy":2,"interfaces":3,"added":1,"removed":0,"changed":0}`))
	}))
	defer srv.Close()

	assert.Equal(t, 0, runStatusCLI([]string{"-addr", srv.URL}))
	assert.Equal(t, 0, runStatusCLI([]string{"-addr", srv.URL, "-json"}))
	assert.Equal(t, 1, runStatusCLI([]string{"-addr", "http://localhost:1"}))
}

func TestBuildCacheBackends(t *testing.T) {
	cfg := config.Defaults()

	cfg.CacheBackend = "memory"
	c := buildCache(cfg)
	c.Set("k", []byte("v"))
	got, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, []byte("v"), got)

	cfg.CacheBackend = "off"
	c = buildCache(cfg)
	c.Set("k", []byte("v"))
	_, ok = c.Get("k")
	assert.False(t, ok)

	// Unreachable redis falls back to the in-memory cache.
	cfg.CacheBackend = "redis"
	cfg.RedisAddr = "localhost:1"
	c = buildCache(cfg)
	require.NotNil(t, c)
	_, isRedis := c.(*cache.RedisCache)
	assert.False(t, isRedis)
}
