// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/asankah/chromium-api-list/internal/config"
	"github.com/asankah/chromium-api-list/internal/jobs"
	apilog "github.com/asankah/chromium-api-list/internal/log"
)

// Exit codes of the one-shot mode. Scripts key off these, keep them stable.
const (
	exitOK             = 0
	exitBuildPathBad   = 1
	exitTargetPathBad  = 2
	exitListMissing    = 3
	exitListNotRegular = 4
)

func runUpdateCLI(args []string) int {
	fs := flag.NewFlagSet("update", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintln(fs.Output(), "Usage: apilistd update [flags]")
		fmt.Fprintln(fs.Output(), "Regenerate chromium_api_list.csv once and exit.")
		fs.PrintDefaults()
	}

	var buildPath, targetPath string
	fs.StringVar(&buildPath, "build-path", "", "chromium build directory (e.g. src/out/Default)")
	fs.StringVar(&buildPath, "C", "", "shorthand for -build-path")
	build := fs.Bool("build", false, "run the list build target before extracting")
	fs.BoolVar(build, "B", false, "shorthand for -build")
	fs.StringVar(&targetPath, "target-path", "", "directory containing chromium_api_list.csv")
	fs.StringVar(&targetPath, "t", "", "shorthand for -target-path")
	commit := fs.Bool("commit", false, "commit an updated list to the target repository")
	verbose := fs.Bool("verbose", false, "verbose logging")
	fs.BoolVar(verbose, "v", false, "shorthand for -verbose")

	if err := fs.Parse(args); err != nil {
		return exitBuildPathBad
	}

	_ = godotenv.Load()

	level := "warn"
	if *verbose {
		level = "debug"
	}
	apilog.Configure(apilog.Config{
		Level:   level,
		Service: "apilist",
		Version: version,
	})
	logger := apilog.WithComponent("update")

	// Flags beat ENV which beats defaults, matching the daemon.
	cfg := config.FromEnv(config.Defaults())
	if buildPath != "" {
		cfg.BuildPath = buildPath
	}
	if targetPath != "" {
		cfg.TargetPath = targetPath
	}
	if *build {
		cfg.Build = true
	}
	if *commit {
		cfg.Commit = true
	}

	if err := config.ValidateUpdatePaths(cfg); err != nil {
		fmt.Fprintln(os.Stderr, err)
		switch {
		case errors.Is(err, config.ErrBuildPathMissing):
			return exitBuildPathBad
		case errors.Is(err, config.ErrTargetPathMissing):
			return exitTargetPathBad
		default:
			return exitBuildPathBad
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	updater := jobs.New(jobs.Config{
		BuildPath:  cfg.BuildPath,
		TargetPath: cfg.TargetPath,
		Build:      cfg.Build,
		Commit:     cfg.Commit,
	}, nil)

	status, err := updater.Run(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		switch {
		case errors.Is(err, jobs.ErrListMissing):
			return exitListMissing
		case errors.Is(err, jobs.ErrListIrregular):
			return exitListNotRegular
		default:
			return exitBuildPathBad
		}
	}

	logger.Info().
		Int(apilog.FieldEntries, status.Entries).
		Str(apilog.FieldRevision, status.Revision).
		Msg("update complete")

	fmt.Printf("Wrote %d entries to %s\n", status.Entries, updater.TargetFile())
	if status.Revision != "" {
		fmt.Printf("Source revision: %s\n", status.Revision)
	}
	if delta := status.Added + status.Removed + status.Changed; delta > 0 {
		fmt.Printf("Delta: +%d -%d ~%d\n", status.Added, status.Removed, status.Changed)
	}
	if cfg.Commit {
		if status.Committed {
			fmt.Println("Committed to target repository.")
		} else {
			fmt.Println("No change to API list.")
		}
	}
	return exitOK
}
