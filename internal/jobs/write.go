// SPDX-License-Identifier: Apache-2.0

package jobs

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/google/renameio/v2"

	"github.com/asankah/chromium-api-list/internal/chromium"
	xlog "github.com/asankah/chromium-api-list/internal/log"
)

func targetFile(targetPath string) string {
	return filepath.Join(targetPath, chromium.APIListTargetFile)
}

// writeFileAtomic publishes data with atomic + durable semantics: renameio
// writes a temp file, fsyncs it, and renames it over the destination, so
// readers never observe a half-written list.
func writeFileAtomic(ctx context.Context, path string, data []byte) error {
	logger := xlog.FromContext(ctx)

	pending, err := renameio.NewPendingFile(path)
	if err != nil {
		return fmt.Errorf("create pending file: %w", err)
	}
	defer func() {
		// renameio removes the temp file if it was never committed.
		if err := pending.Cleanup(); err != nil {
			logger.Debug().Err(err).Msg("cleanup pending file")
		}
	}()

	if _, err := pending.Write(data); err != nil {
		return fmt.Errorf("write pending file: %w", err)
	}
	if err := pending.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("atomically replace %s: %w", path, err)
	}
	return nil
}
