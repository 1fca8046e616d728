// SPDX-License-Identifier: MIT

package relay

// EventType discriminates outbound server events.
type EventType string

const (
	EvConnected             EventType = "connected"
	EvLoginSuccess          EventType = "login_success"
	EvLoginFailed           EventType = "login_failed"
	EvMFARequired           EventType = "mfa_required"
	EvMFASuccess            EventType = "mfa_success"
	EvMFAFailed             EventType = "mfa_failed"
	EvDownloadStarted       EventType = "download_started"
	EvDownloadComplete      EventType = "download_complete"
	EvTypesCreationStarted  EventType = "types_creation_started"
	EvTypesCreationComplete EventType = "types_creation_complete"
	EvCompleted             EventType = "completed"
	EvClosed                EventType = "closed"
	EvError                 EventType = "error"
	EvLogMessage            EventType = "log_message"
)

// Event is one outbound message. Empty fields are omitted on the wire.
type Event struct {
	Type      EventType `json:"type"`
	SessionID string    `json:"session_id,omitempty"`
	Message   string    `json:"message,omitempty"`
	Level     string    `json:"level,omitempty"`
}

// Conn is the session's outbound connection handle. Send must preserve the
// order of calls for one session; Close tears the connection down with a
// human-readable reason.
type Conn interface {
	Send(ev Event) error
	Close(reason string) error
}
