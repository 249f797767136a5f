// SPDX-License-Identifier: Apache-2.0

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldRequestID = "request_id"
	FieldUpdateID  = "update_id"

	// Process / pipeline fields
	FieldEvent     = "event"
	FieldComponent = "component"

	// API list fields
	FieldRevision       = "revision"
	FieldCommitPosition = "commit_position"
	FieldEntries        = "entries"
	FieldSnapshotID     = "snapshot_id"

	// Path fields
	FieldPath       = "path"
	FieldBuildPath  = "build_path"
	FieldTargetPath = "target_path"
)
