// SPDX-License-Identifier: MIT

package relay

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/goleak"
)

func backdate(r *Registry, s *Session, by time.Duration) {
	r.mu.Lock()
	s.lastActivity = time.Now().Add(-by)
	r.mu.Unlock()
}

func TestReaperEvictsIdleSession(t *testing.T) {
	defer goleak.VerifyNone(t)

	registry := NewRegistry()
	idleConn := &fakeConn{}
	idle := registry.Create(idleConn)
	activeConn := &fakeConn{}
	registry.Create(activeConn)

	backdate(registry, idle, 10*time.Minute)

	reaper := NewReaper(registry, 30*time.Second, 5*time.Minute)
	reaper.Sweep()

	assert.Equal(t, 1, registry.Len())
	assert.Equal(t, 1, idleConn.closeCalls)
	assert.Equal(t, IdleCloseReason, idleConn.closeReason)
	assert.Equal(t, 0, activeConn.closeCalls, "active session must be untouched")
}

func TestTouchPreventsEviction(t *testing.T) {
	defer goleak.VerifyNone(t)

	registry := NewRegistry()
	s := registry.Create(&fakeConn{})

	backdate(registry, s, 10*time.Minute)
	registry.Touch(s.ID)

	NewReaper(registry, 30*time.Second, 5*time.Minute).Sweep()

	assert.Equal(t, 1, registry.Len())
}

func TestReaperRunStopsOnCancel(t *testing.T) {
	defer goleak.VerifyNone(t)

	registry := NewRegistry()
	reaper := NewReaper(registry, 10*time.Millisecond, 5*time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		reaper.Run(ctx)
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("reaper did not stop on context cancellation")
	}
}
