// SPDX-License-Identifier: MIT

package relay

import (
	"context"

	"github.com/ocel-tools/ocelbridge/internal/celonis"
	"github.com/ocel-tools/ocelbridge/internal/log"
)

// startLogin drives one credential submission. A fresh platform client is
// built per attempt because the credentials and workspace URL travel with
// the command; the previous client, if any, is released first.
func (d *Dispatcher) startLogin(ctx context.Context, s *Session, cmd *Command) string {
	if cmd.BaseURL == "" || cmd.Username == "" || cmd.Password == "" {
		s.emitError("Base URL, username and password are required")
		return outcomeRejected
	}

	client, err := d.newClient(celonis.Config{
		LoginBaseURL: d.loginBase,
		TeamBaseURL:  cmd.BaseURL,
		Username:     cmd.Username,
		Password:     cmd.Password,
		Environment:  d.env,
		Timeout:      d.timeout,
		Log:          s.emitLog,
	})
	if err != nil {
		s.emitError("Login error: " + err.Error())
		return outcomeError
	}
	s.replaceClient(client)

	outcome, reason, err := client.Login(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Str(log.FieldEvent, "auth.login_error").
			Str(log.FieldBaseURL, cmd.BaseURL).Msg("platform login failed")
		s.emitError("Login error: " + err.Error())
		return outcomeError
	}

	switch outcome {
	case celonis.LoginAuthenticated:
		s.state = StateAuthenticated
		s.Emit(Event{Type: EvLoginSuccess})
	case celonis.LoginChallenge:
		s.state = StateMFARequired
		s.Emit(Event{Type: EvMFARequired})
	default:
		s.state = StateLoginRequired
		s.Emit(Event{Type: EvLoginFailed, Message: reason})
	}
	return outcomeOK
}

// submitMFA verifies one challenge code. A refused code keeps the challenge
// pending so the client may retry with retry_mfa.
func (d *Dispatcher) submitMFA(ctx context.Context, s *Session, cmd *Command) string {
	if cmd.Code == "" {
		s.emitError("MFA code is required")
		return outcomeRejected
	}
	if s.client == nil {
		s.emitError("No active MFA session. Please start login first.")
		return outcomeRejected
	}

	ok, err := s.client.SubmitMFA(ctx, cmd.Code)
	if err != nil {
		s.logger.Warn().Err(err).Str(log.FieldEvent, "auth.mfa_error").Msg("platform MFA call failed")
		s.emitError("MFA error: " + err.Error())
		return outcomeError
	}

	if !ok {
		s.Emit(Event{Type: EvMFAFailed, Message: "Invalid MFA code"})
		return outcomeOK
	}
	s.state = StateAuthenticated
	s.Emit(Event{Type: EvMFASuccess})
	return outcomeOK
}
