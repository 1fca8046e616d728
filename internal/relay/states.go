// SPDX-License-Identifier: MIT

// Package relay implements the session-scoped command relay: a registry of
// client sessions, the login/MFA sequencer, the download-and-create-types
// workflow and the idle reaper that together bridge one bidirectional client
// connection to the platform API.
package relay

// State is the lifecycle state of one session. Transitions happen only while
// the session's single handler processes a command, so no locking guards it.
type State string

const (
	// StateIdleConnected is the state of a freshly registered session.
	StateIdleConnected State = "idle_connected"
	// StateLoginRequired means the last credential submission was refused.
	StateLoginRequired State = "login_required"
	// StateMFARequired means the platform issued a one-time-password challenge.
	StateMFARequired State = "mfa_required"
	// StateAuthenticated means the platform accepted the session's credentials.
	StateAuthenticated State = "authenticated"
	// StateDownloading through StateCreatingTypes are the workflow steps of
	// one download_and_create_types command.
	StateDownloading   State = "downloading"
	StateDownloadOK    State = "download_ok"
	StateCreatingTypes State = "creating_types"
	// StateCompleted means the workflow finished; a new workflow command may
	// run it again.
	StateCompleted State = "completed"
	// StateWorkflowFailed is the retryable terminal state of a failed
	// workflow run.
	StateWorkflowFailed State = "workflow_failed"
)

// permits is the transition table: the states in which each command kind is
// accepted. Commands absent from a state are rejected at the dispatch
// boundary without touching the session.
var permits = map[CommandKind][]State{
	CmdStartLogin: {StateIdleConnected, StateLoginRequired},
	CmdRetryLogin: {StateIdleConnected, StateLoginRequired},
	CmdSubmitMFA:  {StateMFARequired},
	CmdRetryMFA:   {StateMFARequired},
	CmdDownload:   {StateAuthenticated, StateCompleted, StateWorkflowFailed},
	CmdClose: {
		StateIdleConnected, StateLoginRequired, StateMFARequired,
		StateAuthenticated, StateDownloading, StateDownloadOK,
		StateCreatingTypes, StateCompleted, StateWorkflowFailed,
	},
}

// permitted reports whether kind may run in state.
func permitted(kind CommandKind, state State) bool {
	for _, s := range permits[kind] {
		if s == state {
			return true
		}
	}
	return false
}
