// SPDX-License-Identifier: MIT

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldSessionID = "session_id"
	FieldRequestID = "request_id"
	FieldFileID    = "file_id"

	// Process fields
	FieldEvent     = "event"
	FieldComponent = "component"
	FieldCommand   = "command"

	// State fields
	FieldOldState = "old_state"
	FieldNewState = "new_state"

	// Platform fields
	FieldBaseURL  = "base_url"
	FieldTypeName = "type_name"
	FieldTypeKind = "type_kind"
)
