// SPDX-License-Identifier: Apache-2.0

package jobs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/asankah/chromium-api-list/internal/apilist"
	"github.com/asankah/chromium-api-list/internal/chromium"
	xlog "github.com/asankah/chromium-api-list/internal/log"
	"github.com/asankah/chromium-api-list/internal/metrics"
	"github.com/asankah/chromium-api-list/internal/snapshot"
)

// Updater runs update cycles against one build tree and target repository.
type Updater struct {
	cfg   Config
	tree  TreeClient
	repo  RepoClient
	store SnapshotStore // optional
}

// New wires an Updater against the real external project boundary.
func New(cfg Config, store SnapshotStore) *Updater {
	runner := chromium.NewExecRunner()
	return &Updater{
		cfg:   cfg,
		tree:  chromium.NewTree(cfg.BuildPath, runner),
		repo:  chromium.NewTargetRepo(cfg.TargetPath, runner),
		store: store,
	}
}

// NewWithClients wires an Updater with explicit collaborators.
func NewWithClients(cfg Config, tree TreeClient, repo RepoClient, store SnapshotStore) *Updater {
	return &Updater{cfg: cfg, tree: tree, repo: repo, store: store}
}

// TargetFile returns the path of the published list.
func (u *Updater) TargetFile() string {
	return targetFile(u.cfg.TargetPath)
}

// Run performs one complete update cycle and returns its Status. The
// published CSV is always rewritten wholesale; nothing is patched in place.
func (u *Updater) Run(ctx context.Context) (*Status, error) {
	logger := xlog.WithComponentFromContext(ctx, "jobs")
	logger.Info().
		Str(xlog.FieldEvent, "update.start").
		Str(xlog.FieldBuildPath, u.cfg.BuildPath).
		Str(xlog.FieldTargetPath, u.cfg.TargetPath).
		Bool("build", u.cfg.Build).
		Bool("commit", u.cfg.Commit).
		Msg("starting update")

	start := time.Now()
	status, err := u.run(ctx, logger)
	metrics.RecordUpdate(time.Since(start), err)
	if err != nil {
		logger.Error().
			Err(err).
			Str(xlog.FieldEvent, "update.failed").
			Msg("update failed")
		return nil, err
	}

	status.LastRun = start
	status.Duration = time.Since(start).Round(time.Millisecond).String()
	logger.Info().
		Str(xlog.FieldEvent, "update.success").
		Int(xlog.FieldEntries, status.Entries).
		Int("added", status.Added).
		Int("removed", status.Removed).
		Int("changed", status.Changed).
		Bool("committed", status.Committed).
		Msg("update completed")
	return status, nil
}

func (u *Updater) run(ctx context.Context, logger zerolog.Logger) (*Status, error) {
	if u.cfg.Build {
		if err := u.tree.Build(ctx); err != nil {
			metrics.RecordBuildError()
			return nil, err
		}
	}

	raw, err := u.readGeneratedList()
	if err != nil {
		return nil, err
	}

	// Decode first so schema violations surface before anything is published.
	list, err := apilist.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("decode generated list: %w", err)
	}

	var canonical bytes.Buffer
	if err := apilist.Canonicalize(bytes.NewReader(raw), &canonical); err != nil {
		return nil, fmt.Errorf("canonicalize: %w", err)
	}

	status := &Status{
		Entries:     list.Len(),
		HighEntropy: list.HighEntropyCount(),
		Interfaces:  apilist.NewIndex(list).Interfaces(),
	}

	delta := u.diffAgainstPublished(logger, list)
	status.Added = len(delta.Added)
	status.Removed = len(delta.Removed)
	status.Changed = len(delta.Changed)
	metrics.RecordDelta(status.Added, status.Removed, status.Changed)

	if err := writeFileAtomic(ctx, u.TargetFile(), canonical.Bytes()); err != nil {
		return nil, fmt.Errorf("publish list: %w", err)
	}
	logger.Info().
		Str(xlog.FieldEvent, "list.published").
		Str(xlog.FieldPath, u.TargetFile()).
		Int(xlog.FieldEntries, status.Entries).
		Msg("canonical list written")

	u.resolveRevision(ctx, logger, status)
	u.archiveSnapshot(ctx, logger, status, canonical.Bytes())

	if u.cfg.Commit {
		if err := u.commit(ctx, status); err != nil {
			return nil, err
		}
	}

	byType := make(map[string]int, 4)
	for _, e := range list.Entries {
		byType[string(e.EntityType)]++
	}
	metrics.RecordListStats(status.Entries, status.HighEntropy, byType)

	return status, nil
}

// readGeneratedList loads high_entropy_list.csv from the build directory,
// distinguishing a missing file from a wrong file type.
func (u *Updater) readGeneratedList() ([]byte, error) {
	path := u.tree.ListPath()
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: checked %s", ErrListMissing, path)
		}
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%w: %s", ErrListIrregular, path)
	}
	raw, err := os.ReadFile(path) // #nosec G304 -- path is derived from the configured build dir
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return raw, nil
}

// diffAgainstPublished compares the new generation with the currently
// published file. A missing or unreadable previous list just means an empty
// baseline.
func (u *Updater) diffAgainstPublished(logger zerolog.Logger, updated *apilist.List) apilist.Delta {
	prev := &apilist.List{}
	raw, err := os.ReadFile(u.TargetFile()) // #nosec G304 -- path is derived from the configured target dir
	if err == nil {
		if decoded, derr := apilist.Decode(bytes.NewReader(raw)); derr == nil {
			prev = decoded
		} else {
			logger.Warn().
				Err(derr).
				Str(xlog.FieldEvent, "diff.baseline_unreadable").
				Msg("published list does not decode, diffing against empty baseline")
		}
	}
	return apilist.Diff(prev, updated)
}

// resolveRevision annotates the status with git metadata from the build tree.
// Failures are tolerated: a tree without git (or without the footers
// extension) still produces a valid list.
func (u *Updater) resolveRevision(ctx context.Context, logger zerolog.Logger, status *Status) {
	rev, err := u.tree.Revision(ctx)
	if err != nil {
		logger.Warn().
			Err(err).
			Str(xlog.FieldEvent, "revision.unavailable").
			Msg("could not resolve source revision")
		return
	}
	status.Revision = rev

	pos, err := u.tree.CommitPosition(ctx)
	if err != nil {
		logger.Warn().
			Err(err).
			Str(xlog.FieldEvent, "commit_position.unavailable").
			Msg("could not resolve commit position")
		return
	}
	status.CommitPosition = pos
}

func (u *Updater) archiveSnapshot(ctx context.Context, logger zerolog.Logger, status *Status, canonical []byte) {
	if u.store == nil {
		return
	}
	id, err := u.store.Save(ctx, snapshot.Meta{
		Revision:       status.Revision,
		CommitPosition: status.CommitPosition,
		Entries:        status.Entries,
		HighEntropy:    status.HighEntropy,
	}, canonical)
	if err != nil {
		logger.Warn().
			Err(err).
			Str(xlog.FieldEvent, "snapshot.save_failed").
			Msg("snapshot not archived")
		return
	}
	status.SnapshotID = id
	metrics.RecordSnapshot()

	if removed, err := u.store.Prune(ctx, u.cfg.SnapshotKeep); err != nil {
		logger.Warn().
			Err(err).
			Str(xlog.FieldEvent, "snapshot.prune_failed").
			Msg("snapshot pruning failed")
	} else if removed > 0 {
		logger.Debug().
			Int("removed", removed).
			Str(xlog.FieldEvent, "snapshot.pruned").
			Msg("old snapshots removed")
	}
}

// commit requires the git metadata the commit message references. ErrNoChange
// is success: the regenerated list matched the committed one.
func (u *Updater) commit(ctx context.Context, status *Status) error {
	if status.Revision == "" || status.CommitPosition == "" {
		metrics.RecordCommit("error")
		return fmt.Errorf("commit requested but source revision is unavailable")
	}
	err := u.repo.CommitAPIList(ctx, status.CommitPosition, status.Revision)
	switch {
	case errors.Is(err, chromium.ErrNoChange):
		metrics.RecordCommit("noop")
		return nil
	case errors.Is(err, chromium.ErrDirtyTree), errors.Is(err, chromium.ErrUnexpectedChange):
		metrics.RecordCommit("refused")
		return err
	case err != nil:
		metrics.RecordCommit("error")
		return err
	}
	metrics.RecordCommit("committed")
	status.Committed = true
	return nil
}
