// SPDX-License-Identifier: Apache-2.0

package chromium

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/asankah/chromium-api-list/internal/log"
)

const (
	// APIListBuildTarget is the external build target that emits the list.
	APIListBuildTarget = "generate_high_entropy_list"
	// APIListFile is the file the build target writes into the build directory.
	APIListFile = "high_entropy_list.csv"
	// CommitPositionHeader prefixes the Cr-Commit-Position footer value.
	CommitPositionHeader = "Cr-Commit-Position: "
)

// Tree represents a checkout of the external project with a build directory
// (e.g. src/out/Default) that can produce the API list.
type Tree struct {
	buildPath string
	runner    CommandRunner
}

// NewTree returns a Tree rooted at buildPath.
func NewTree(buildPath string, runner CommandRunner) *Tree {
	if runner == nil {
		runner = NewExecRunner()
	}
	return &Tree{buildPath: buildPath, runner: runner}
}

// BuildPath returns the build directory.
func (t *Tree) BuildPath() string {
	return t.buildPath
}

// ListPath returns where the build target leaves the generated list.
func (t *Tree) ListPath() string {
	return filepath.Join(t.buildPath, APIListFile)
}

// sourceRoot is two levels above the build directory (src/out/Default -> src).
func (t *Tree) sourceRoot() string {
	return filepath.Dir(filepath.Dir(t.buildPath))
}

// Build invokes autoninja on the list target inside the build directory.
func (t *Tree) Build(ctx context.Context) error {
	logger := log.WithComponentFromContext(ctx, "chromium")
	logger.Info().
		Str(log.FieldEvent, "build.start").
		Str("target", APIListBuildTarget).
		Str(log.FieldBuildPath, t.buildPath).
		Msg("invoking autoninja")

	if _, err := t.runner.Run(ctx, t.buildPath, "autoninja", APIListBuildTarget); err != nil {
		return fmt.Errorf("build %s: %w", APIListBuildTarget, err)
	}
	return nil
}

// Revision returns the HEAD commit hash of the build tree.
func (t *Tree) Revision(ctx context.Context) (string, error) {
	out, err := t.runner.Run(ctx, t.buildPath, "git", "rev-parse", "HEAD")
	if err != nil {
		return "", fmt.Errorf("rev-parse: %w", err)
	}
	return strings.TrimSpace(string(out)), nil
}

// CommitPosition returns the Cr-Commit-Position marker of HEAD, read from the
// source root via git footers.
func (t *Tree) CommitPosition(ctx context.Context) (string, error) {
	out, err := t.runner.Run(ctx, t.sourceRoot(), "git", "footers", "--position", "HEAD")
	if err != nil {
		return "", fmt.Errorf("commit position: %w", err)
	}
	pos := strings.TrimSpace(string(out))
	pos = strings.TrimPrefix(pos, CommitPositionHeader)
	return pos, nil
}
