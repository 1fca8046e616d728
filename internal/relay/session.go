// SPDX-License-Identifier: MIT

package relay

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/ocel-tools/ocelbridge/internal/celonis"
	"github.com/ocel-tools/ocelbridge/internal/log"
	"github.com/ocel-tools/ocelbridge/internal/metrics"
	"github.com/ocel-tools/ocelbridge/internal/ocel"
)

// PlatformClient is the slice of the platform API a session drives. The
// concrete client lives in the celonis package; tests substitute fakes.
type PlatformClient interface {
	Login(ctx context.Context) (celonis.LoginOutcome, string, error)
	SubmitMFA(ctx context.Context, code string) (bool, error)
	CreateObjectTypes(ctx context.Context, decls []ocel.TypeDecl) error
	CreateEventTypes(ctx context.Context, decls []ocel.TypeDecl) error
	Close()
}

// ClientFactory builds a platform client for one login attempt. Credentials
// arrive with the start_login command, so clients are created late and
// replaced on every retry.
type ClientFactory func(cfg celonis.Config) (PlatformClient, error)

// Session is one client conversation. All fields except lastActivity are
// touched only by the session's own handler goroutine, including the
// platform client handle; lastActivity is guarded by the registry mutex
// because the reaper reads it concurrently.
type Session struct {
	ID string

	state        State
	conn         Conn
	client       PlatformClient
	lastActivity time.Time
	logger       zerolog.Logger
}

// State returns the session's current lifecycle state.
func (s *Session) State() State {
	return s.state
}

// Emit sends one event over the session's connection. Send failures are
// swallowed; by the time a send fails the connection is already gone and
// teardown is someone else's job.
func (s *Session) Emit(ev Event) {
	if err := s.conn.Send(ev); err != nil {
		s.logger.Debug().Err(err).Str(log.FieldEvent, "session.emit_dropped").
			Str("event_type", string(ev.Type)).Msg("event dropped, connection gone")
		return
	}
	metrics.EventEmitted(string(ev.Type))
}

// EmitConnected announces the session to a freshly attached client.
func (s *Session) EmitConnected() {
	s.Emit(Event{
		Type:      EvConnected,
		SessionID: s.ID,
		Message:   "Connected with session ID: " + s.ID,
	})
}

func (s *Session) emitError(msg string) {
	s.Emit(Event{Type: EvError, Message: msg})
}

func (s *Session) emitLog(level, msg string) {
	s.Emit(Event{Type: EvLogMessage, Level: level, Message: msg})
}

// replaceClient swaps in a freshly configured platform client, releasing the
// previous one if a retry left it behind.
func (s *Session) replaceClient(c PlatformClient) {
	if s.client != nil {
		s.client.Close()
	}
	s.client = c
}

// Release closes the session's platform client. It must run on the session's
// handler goroutine: Registry.Destroy deliberately leaves the client alone so
// an in-flight command never sees the handle change underneath it. Releasing
// twice, or a session that never logged in, is a no-op.
func (s *Session) Release() {
	if s.client != nil {
		s.client.Close()
		s.client = nil
	}
}
