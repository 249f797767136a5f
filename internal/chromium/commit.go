// SPDX-License-Identifier: Apache-2.0

package chromium

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/asankah/chromium-api-list/internal/log"
)

// APIListTargetFile is the canonical file name inside the target repository.
const APIListTargetFile = "chromium_api_list.csv"

var (
	// ErrNoChange reports that the regenerated list is identical to the
	// committed one; committing is a no-op.
	ErrNoChange = errors.New("chromium: no change to API list")
	// ErrDirtyTree reports additional modified files in the target repository.
	ErrDirtyTree = errors.New("chromium: more than one changed file in the repository")
	// ErrUnexpectedChange reports a single change that is not a modification
	// of the API list file.
	ErrUnexpectedChange = errors.New("chromium: unexpected changes in the repository")
)

// TargetRepo is the git repository that receives API list snapshots.
type TargetRepo struct {
	path   string
	runner CommandRunner
}

// NewTargetRepo returns a TargetRepo rooted at path.
func NewTargetRepo(path string, runner CommandRunner) *TargetRepo {
	if runner == nil {
		runner = NewExecRunner()
	}
	return &TargetRepo{path: path, runner: runner}
}

// Path returns the repository root.
func (r *TargetRepo) Path() string {
	return r.path
}

// CommitMessage renders the canonical snapshot commit message.
func CommitMessage(commitPosition, commitHash string) string {
	return fmt.Sprintf(`Blink API list update from %s

Source Chromium revision is https://crrev.com/%s

See https://github.com/asankah/chromium-api-list for details on how the
list was generated.
`, commitPosition, commitHash)
}

// CommitAPIList commits the regenerated list. The working tree must contain
// exactly one change and it must be a modification of the API list file;
// anything else is refused so unrelated edits never ride along.
func (r *TargetRepo) CommitAPIList(ctx context.Context, commitPosition, commitHash string) error {
	logger := log.WithComponentFromContext(ctx, "chromium")

	out, err := r.runner.Run(ctx, r.path, "git", "status", "--porcelain=v1")
	if err != nil {
		return fmt.Errorf("status: %w", err)
	}

	var changes []string
	for _, line := range strings.Split(string(out), "\n") {
		if strings.TrimSpace(line) != "" {
			changes = append(changes, line)
		}
	}

	switch {
	case len(changes) == 0:
		logger.Info().
			Str(log.FieldEvent, "commit.noop").
			Msg("no change to API list")
		return ErrNoChange
	case len(changes) > 1:
		logger.Error().
			Str(log.FieldEvent, "commit.refused").
			Int("changes", len(changes)).
			Msg("more than one changed file, refusing to commit")
		return ErrDirtyTree
	}

	if fields := strings.Fields(changes[0]); len(fields) != 2 || fields[0] != "M" || fields[1] != APIListTargetFile {
		logger.Error().
			Str(log.FieldEvent, "commit.refused").
			Str("change", changes[0]).
			Msg("unexpected change, refusing to commit")
		return fmt.Errorf("%w: %q", ErrUnexpectedChange, changes[0])
	}

	message := CommitMessage(commitPosition, commitHash)
	if _, err := r.runner.Run(ctx, r.path, "git", "commit", "-m", message, "--", APIListTargetFile); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	logger.Info().
		Str(log.FieldEvent, "commit.success").
		Str(log.FieldCommitPosition, commitPosition).
		Str(log.FieldRevision, commitHash).
		Msg("API list committed")
	return nil
}
