// SPDX-License-Identifier: MIT

package relay

import (
	"encoding/json"
	"errors"
	"fmt"
)

// CommandKind discriminates inbound client commands.
type CommandKind string

const (
	CmdStartLogin CommandKind = "start_login"
	CmdRetryLogin CommandKind = "retry_login"
	CmdSubmitMFA  CommandKind = "submit_mfa_code"
	CmdRetryMFA   CommandKind = "retry_mfa"
	CmdDownload   CommandKind = "download_and_create_types"
	CmdClose      CommandKind = "close"
)

// knownKinds is the closed set of command kinds the dispatcher recognizes.
var knownKinds = map[CommandKind]bool{
	CmdStartLogin: true,
	CmdRetryLogin: true,
	CmdSubmitMFA:  true,
	CmdRetryMFA:   true,
	CmdDownload:   true,
	CmdClose:      true,
}

// Command is one decoded client request. Parameters are populated per kind;
// the dispatcher validates presence before acting.
type Command struct {
	Kind     CommandKind `json:"command"`
	BaseURL  string      `json:"base_url,omitempty"`
	Username string      `json:"username,omitempty"`
	Password string      `json:"password,omitempty"`
	Code     string      `json:"code,omitempty"`
	UUID     string      `json:"uuid,omitempty"`
}

var (
	errInvalidJSON    = errors.New("Invalid JSON format")
	errMissingCommand = errors.New("Command field is required")
)

// ParseCommand decodes one inbound text message. The two parse failure modes
// keep the wording clients already match on.
func ParseCommand(data []byte) (*Command, error) {
	var cmd Command
	if err := json.Unmarshal(data, &cmd); err != nil {
		return nil, errInvalidJSON
	}
	if cmd.Kind == "" {
		return nil, errMissingCommand
	}
	return &cmd, nil
}

// unknownKindError keeps the original message shape for unrecognized kinds.
func unknownKindError(kind CommandKind) error {
	return fmt.Errorf("Unknown command: %s", kind)
}
