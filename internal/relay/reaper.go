// SPDX-License-Identifier: MIT

package relay

import (
	"context"
	"time"

	"github.com/ocel-tools/ocelbridge/internal/log"
	"github.com/ocel-tools/ocelbridge/internal/metrics"
)

// IdleCloseReason is the close reason clients see when the reaper evicts
// their session.
const IdleCloseReason = "idle timeout"

// Reaper periodically destroys sessions with no inbound command for longer
// than the idle threshold. It is the only component that tears sessions
// down without the client asking.
type Reaper struct {
	registry  *Registry
	interval  time.Duration
	threshold time.Duration
}

func NewReaper(registry *Registry, interval, threshold time.Duration) *Reaper {
	return &Reaper{registry: registry, interval: interval, threshold: threshold}
}

// Run sweeps until ctx is cancelled.
func (r *Reaper) Run(ctx context.Context) {
	logger := log.WithComponent("reaper")
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	logger.Info().Str(log.FieldEvent, "reaper.start").
		Dur("interval", r.interval).Dur("threshold", r.threshold).Msg("idle reaper running")

	for {
		select {
		case <-ctx.Done():
			logger.Info().Str(log.FieldEvent, "reaper.stop").Msg("idle reaper stopped")
			return
		case <-ticker.C:
			r.Sweep()
		}
	}
}

// Sweep destroys every session idle beyond the threshold and closes its
// connection with the idle-timeout reason. Closing the connection ends the
// handler's read loop, which then releases the platform client on its own
// goroutine. Exported so tests can trigger a sweep without waiting out the
// ticker.
func (r *Reaper) Sweep() {
	for _, s := range r.registry.expired(r.threshold) {
		s.logger.Info().Str(log.FieldEvent, "reaper.evict").Msg("evicting idle session")
		r.registry.Destroy(s.ID)
		if err := s.conn.Close(IdleCloseReason); err != nil {
			s.logger.Debug().Err(err).Msg("idle close failed, connection already gone")
		}
		metrics.ReaperEvicted()
	}
}
