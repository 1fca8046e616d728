// SPDX-License-Identifier: MIT

package relay

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ocel-tools/ocelbridge/internal/log"
	"github.com/ocel-tools/ocelbridge/internal/metrics"
)

// Registry is the process-wide table of live sessions. It is the only shared
// mutable structure in the relay; handler goroutines and the reaper go
// through the mutex for every access.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Session)}
}

// Create registers a new session for conn and returns it. The caller owns
// announcing it to the client.
func (r *Registry) Create(conn Conn) *Session {
	s := &Session{
		ID:           uuid.NewString(),
		state:        StateIdleConnected,
		conn:         conn,
		lastActivity: time.Now(),
	}
	s.logger = log.WithComponent("relay").With().Str(log.FieldSessionID, s.ID).Logger()

	r.mu.Lock()
	r.sessions[s.ID] = s
	r.mu.Unlock()

	metrics.SessionOpened()
	s.logger.Info().Str(log.FieldEvent, "session.created").Msg("session registered")
	return s
}

// Destroy removes the session from the table. Destroying an unknown or
// already-destroyed session is a no-op. The platform client is not touched
// here: Destroy may run on the reaper goroutine while the session's handler
// is mid-command, so releasing the client stays with the handler via
// Session.Release.
func (r *Registry) Destroy(id string) {
	r.mu.Lock()
	s, ok := r.sessions[id]
	if ok {
		delete(r.sessions, id)
	}
	r.mu.Unlock()

	if !ok {
		return
	}
	metrics.SessionClosed()
	s.logger.Info().Str(log.FieldEvent, "session.destroyed").Msg("session removed")
}

// Touch marks the session active now. Called for every inbound command,
// valid or not.
func (r *Registry) Touch(id string) {
	r.mu.Lock()
	if s, ok := r.sessions[id]; ok {
		s.lastActivity = time.Now()
	}
	r.mu.Unlock()
}

// Len reports the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// expired snapshots the sessions idle for longer than threshold. The caller
// destroys them outside the lock so a slow connection close cannot stall the
// whole table.
func (r *Registry) expired(threshold time.Duration) []*Session {
	cutoff := time.Now().Add(-threshold)

	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*Session
	for _, s := range r.sessions {
		if s.lastActivity.Before(cutoff) {
			out = append(out, s)
		}
	}
	return out
}
