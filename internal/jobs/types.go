// SPDX-License-Identifier: Apache-2.0

// Package jobs orchestrates the update cycle: build the external list target,
// extract and canonicalize the CSV, publish it atomically, archive a
// snapshot, and optionally commit it to the target repository.
package jobs

import (
	"context"
	"errors"
	"time"

	"github.com/asankah/chromium-api-list/internal/snapshot"
)

var (
	// ErrListMissing reports that the build directory holds no generated list.
	ErrListMissing = errors.New("jobs: API list file not found")
	// ErrListIrregular reports an unexpected file type at the list path.
	ErrListIrregular = errors.New("jobs: unexpected file type for API list")
)

// Status describes the outcome of the most recent update cycle.
type Status struct {
	LastRun        time.Time `json:"last_run"`
	Duration       string    `json:"duration,omitempty"`
	Entries        int       `json:"entries"`
	HighEntropy    int       `json:"high_entropy"`
	Interfaces     int       `json:"interfaces"`
	Revision       string    `json:"revision,omitempty"`
	CommitPosition string    `json:"commit_position,omitempty"`
	SnapshotID     string    `json:"snapshot_id,omitempty"`
	Added          int       `json:"added"`
	Removed        int       `json:"removed"`
	Changed        int       `json:"changed"`
	Committed      bool      `json:"committed"`
	Error          string    `json:"error,omitempty"`
}

// Config holds the knobs one update cycle needs.
type Config struct {
	BuildPath    string
	TargetPath   string
	Build        bool // rebuild the external target first
	Commit       bool // commit the refreshed list
	SnapshotKeep int  // history retention, 0 disables pruning
}

// TreeClient is the build-tree surface the updater depends on.
// *chromium.Tree implements it.
type TreeClient interface {
	Build(ctx context.Context) error
	ListPath() string
	Revision(ctx context.Context) (string, error)
	CommitPosition(ctx context.Context) (string, error)
}

// RepoClient is the target-repository surface the updater depends on.
// *chromium.TargetRepo implements it.
type RepoClient interface {
	CommitAPIList(ctx context.Context, commitPosition, commitHash string) error
}

// SnapshotStore archives canonical lists. *snapshot.Store implements it.
type SnapshotStore interface {
	Save(ctx context.Context, meta snapshot.Meta, csvData []byte) (string, error)
	Prune(ctx context.Context, keep int) (int, error)
}
