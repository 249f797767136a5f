// SPDX-License-Identifier: Apache-2.0

// Command apilistd maintains the Chromium identifiability API list. It runs
// as a daemon by default: regenerate the list on a schedule or on build
// output changes, publish it atomically, archive generations, and serve the
// current generation over HTTP.
//
// Subcommands:
//
//	apilistd update      one-shot list regeneration (CI / cron)
//	apilistd status      query a running daemon for the last update
//	apilistd healthcheck probe a running daemon (container health checks)
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/asankah/chromium-api-list/internal/api"
	"github.com/asankah/chromium-api-list/internal/cache"
	"github.com/asankah/chromium-api-list/internal/chromium"
	"github.com/asankah/chromium-api-list/internal/config"
	"github.com/asankah/chromium-api-list/internal/health"
	"github.com/asankah/chromium-api-list/internal/jobs"
	apilog "github.com/asankah/chromium-api-list/internal/log"
	"github.com/asankah/chromium-api-list/internal/snapshot"
	"github.com/asankah/chromium-api-list/internal/watch"
)

var (
	version   = "v1.0.0"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "update":
			os.Exit(runUpdateCLI(os.Args[2:]))
		case "status":
			os.Exit(runStatusCLI(os.Args[2:]))
		case "healthcheck":
			os.Exit(runHealthcheckCLI(os.Args[2:]))
		}
	}

	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "", "path to config file (YAML)")
	flag.Parse()

	if *showVersion {
		fmt.Printf("%s (commit: %s, built: %s)\n", version, commit, buildDate)
		os.Exit(0)
	}

	// Local development convenience; missing .env is not an error.
	_ = godotenv.Load()

	// Safe defaults until config is loaded.
	apilog.Configure(apilog.Config{
		Level:   "info",
		Service: "apilist",
		Version: version,
	})
	logger := apilog.WithComponent("daemon")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Config path: explicit via --config, otherwise auto-load
	// ${APILIST_DATA}/config.yaml when it exists.
	effectiveConfigPath := strings.TrimSpace(*configPath)
	if effectiveConfigPath == "" {
		dataDir := strings.TrimSpace(config.ParseString("APILIST_DATA", config.Defaults().DataDir))
		autoPath := filepath.Join(dataDir, "config.yaml")
		if _, err := os.Stat(autoPath); err == nil {
			effectiveConfigPath = autoPath
		}
	}

	loader := config.NewLoader(effectiveConfigPath, version)
	cfg, err := loader.Load()
	if err != nil {
		logger.Fatal().
			Err(err).
			Str(apilog.FieldEvent, "config.load_failed").
			Str(apilog.FieldPath, effectiveConfigPath).
			Msg("failed to load configuration")
	}
	if err := config.Validate(cfg); err != nil {
		logger.Fatal().
			Err(err).
			Str(apilog.FieldEvent, "config.invalid").
			Msg("configuration rejected")
	}

	// Apply the configured level; Configure only runs once.
	apilog.SetLevel(cfg.LogLevel)

	logger.Info().
		Str(apilog.FieldEvent, "startup").
		Str("version", version).
		Str("commit", commit).
		Str("build_date", buildDate).
		Str("addr", cfg.ListenAddr).
		Msg("starting apilistd")
	logger.Info().Msgf("→ Build dir: %s (build: %v)", cfg.BuildPath, cfg.Build)
	logger.Info().Msgf("→ Target: %s", filepath.Join(cfg.TargetPath, chromium.APIListTargetFile))
	logger.Info().Msgf("→ Data dir: %s", cfg.DataDir)
	if cfg.Commit {
		logger.Info().Msg("→ Commit: enabled (updates land in the target repository)")
	}

	holder := config.NewHolder(cfg, loader, effectiveConfigPath)
	if err := holder.StartWatcher(ctx); err != nil {
		logger.Warn().
			Err(err).
			Str(apilog.FieldEvent, "config.watcher_failed").
			Msg("config hot reload unavailable")
	}
	reloads := make(chan config.Config, 1)
	holder.Subscribe(reloads)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case next := <-reloads:
				apilog.SetLevel(next.LogLevel)
			}
		}
	}()

	var store *snapshot.Store
	var snapshots api.SnapshotReader
	if cfg.DataDir != "" {
		store, err = snapshot.Open(filepath.Join(cfg.DataDir, "snapshots"))
		if err != nil {
			logger.Fatal().
				Err(err).
				Str(apilog.FieldEvent, "snapshot.open_failed").
				Msg("failed to open snapshot store")
		}
		defer func() {
			if err := store.Close(); err != nil {
				logger.Warn().Err(err).Msg("snapshot store close failed")
			}
		}()
		snapshots = store
	}

	responseCache := buildCache(cfg)
	if closer, ok := responseCache.(interface{ Close() error }); ok {
		defer func() { _ = closer.Close() }()
	}

	updater := jobs.New(jobs.Config{
		BuildPath:    cfg.BuildPath,
		TargetPath:   cfg.TargetPath,
		Build:        cfg.Build,
		Commit:       cfg.Commit,
		SnapshotKeep: cfg.SnapshotKeep,
	}, snapshotStore(store))

	healthManager := health.NewManager(version)
	healthManager.RegisterChecker(&health.PublishedListChecker{Path: updater.TargetFile()})
	healthManager.RegisterChecker(&health.BuildTreeChecker{Path: cfg.BuildPath})

	server := api.New(cfg, updater, snapshots, responseCache, healthManager)

	if config.ParseBool("APILIST_INITIAL_UPDATE", false) {
		logger.Info().Msg("performing initial list update on startup")
		if _, ran, err := server.RunUpdate(ctx, "startup"); err != nil {
			logger.Error().Err(err).Msg("initial list update failed")
			logger.Warn().Msg("→ serving the previously published generation, if any")
		} else if ran {
			logger.Info().Msg("initial list update completed")
		}
	}

	startTriggers(ctx, cfg, server)

	if err := server.Serve(ctx); err != nil {
		logger.Fatal().
			Err(err).
			Str(apilog.FieldEvent, "server.failed").
			Msg("HTTP server failed")
	}
	logger.Info().Msg("server exiting")
}

// snapshotStore adapts the optional store pointer to the jobs interface
// without smuggling a typed nil into it.
func snapshotStore(store *snapshot.Store) jobs.SnapshotStore {
	if store == nil {
		return nil
	}
	return store
}

func buildCache(cfg config.Config) cache.Cache {
	logger := apilog.WithComponent("cache")
	switch cfg.CacheBackend {
	case "redis":
		c, err := cache.NewRedisCache(cache.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			TTL:      cfg.CacheTTL,
		}, logger)
		if err != nil {
			logger.Warn().
				Err(err).
				Str(apilog.FieldEvent, "cache.redis_unavailable").
				Msg("redis unreachable, falling back to in-memory cache")
			return cache.NewMemoryCache(cfg.CacheTTL)
		}
		return c
	case "off":
		return cache.NewNoOpCache()
	default:
		return cache.NewMemoryCache(cfg.CacheTTL)
	}
}

// startTriggers wires the periodic ticker and the build output watcher to
// the server's update cycle.
func startTriggers(ctx context.Context, cfg config.Config, server *api.Server) {
	trigger := func(ctx context.Context, reason string) {
		if _, _, err := server.RunUpdate(ctx, reason); err != nil {
			logger := apilog.WithComponent("daemon")
			logger.Error().
				Err(err).
				Str("reason", reason).
				Msg("triggered update failed")
		}
	}

	if cfg.WatchBuild {
		listPath := filepath.Join(cfg.BuildPath, chromium.APIListFile)
		watcher := watch.New(listPath, cfg.UpdateInterval, trigger)
		go func() {
			if err := watcher.Start(ctx); err != nil {
				logger := apilog.WithComponent("daemon")
				logger.Warn().
					Err(err).
					Str(apilog.FieldEvent, "watch.unavailable").
					Msg("build output watching disabled")
			}
		}()
		return
	}

	if cfg.UpdateInterval > 0 {
		go func() {
			ticker := time.NewTicker(cfg.UpdateInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					trigger(ctx, "interval")
				}
			}
		}()
	}
}
