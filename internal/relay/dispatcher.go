// SPDX-License-Identifier: MIT

package relay

import (
	"context"
	"time"

	"github.com/ocel-tools/ocelbridge/internal/cache"
	"github.com/ocel-tools/ocelbridge/internal/celonis"
	"github.com/ocel-tools/ocelbridge/internal/log"
	"github.com/ocel-tools/ocelbridge/internal/metrics"
	"github.com/ocel-tools/ocelbridge/internal/storage"
)

const (
	outcomeOK       = "ok"
	outcomeRejected = "rejected"
	outcomeError    = "error"
)

// DispatcherConfig wires the dispatcher's collaborators.
type DispatcherConfig struct {
	Registry *Registry
	Store    storage.BlobStore
	// Cache holds derivations keyed by file identifier so a workflow retry
	// skips re-deriving an unchanged upload. Optional.
	Cache    cache.Cache
	CacheTTL time.Duration
	// LoginBaseURL is the identity service handed to every platform client.
	LoginBaseURL string
	// Environment is the data-pool environment for type creation.
	Environment string
	// PlatformTimeout bounds individual platform API requests.
	PlatformTimeout time.Duration
	// NewClient overrides the platform client constructor. Nil means the
	// real celonis client.
	NewClient ClientFactory
}

// Dispatcher decodes inbound messages, enforces the transition table and
// routes commands to the sequencer or the workflow. One Dispatcher serves
// all sessions; per-session ordering comes from each connection handler
// calling Handle sequentially.
type Dispatcher struct {
	registry  *Registry
	store     storage.BlobStore
	cache     cache.Cache
	cacheTTL  time.Duration
	loginBase string
	env       string
	timeout   time.Duration
	newClient ClientFactory
}

func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	d := &Dispatcher{
		registry:  cfg.Registry,
		store:     cfg.Store,
		cache:     cfg.Cache,
		cacheTTL:  cfg.CacheTTL,
		loginBase: cfg.LoginBaseURL,
		env:       cfg.Environment,
		timeout:   cfg.PlatformTimeout,
		newClient: cfg.NewClient,
	}
	if d.newClient == nil {
		d.newClient = func(cfg celonis.Config) (PlatformClient, error) {
			return celonis.New(cfg)
		}
	}
	return d
}

// Handle processes one raw inbound message for s. It returns true when the
// client asked to close the session; the connection handler then stops
// reading. Every failure below this boundary becomes an error event, never
// a panic or a dropped connection.
func (d *Dispatcher) Handle(ctx context.Context, s *Session, raw []byte) (closed bool) {
	defer func() {
		if rec := recover(); rec != nil {
			s.logger.Error().Str(log.FieldEvent, "dispatch.panic").
				Interface("panic_value", rec).Msg("command handler panicked, tearing session down")
			s.emitError("Unexpected error: internal failure")
			d.registry.Destroy(s.ID)
			s.Release()
			closed = true
		}
	}()

	d.registry.Touch(s.ID)

	cmd, err := ParseCommand(raw)
	if err != nil {
		s.emitError(err.Error())
		metrics.CommandProcessed("invalid", outcomeRejected)
		return false
	}

	logger := s.logger.With().Str(log.FieldCommand, string(cmd.Kind)).Logger()

	if !knownKinds[cmd.Kind] {
		s.emitError(unknownKindError(cmd.Kind).Error())
		metrics.CommandProcessed(string(cmd.Kind), outcomeRejected)
		return false
	}

	if !permitted(cmd.Kind, s.state) {
		logger.Warn().Str(log.FieldEvent, "dispatch.rejected").
			Str(log.FieldOldState, string(s.state)).Msg("command not valid in current state")
		s.emitError("command not valid in current state")
		metrics.CommandProcessed(string(cmd.Kind), outcomeRejected)
		return false
	}

	before := s.state
	var outcome string
	switch cmd.Kind {
	case CmdStartLogin, CmdRetryLogin:
		outcome = d.startLogin(ctx, s, cmd)
	case CmdSubmitMFA, CmdRetryMFA:
		outcome = d.submitMFA(ctx, s, cmd)
	case CmdDownload:
		outcome = d.runWorkflow(ctx, s, cmd)
	case CmdClose:
		s.Emit(Event{Type: EvClosed})
		d.registry.Destroy(s.ID)
		s.Release()
		outcome = outcomeOK
		closed = true
	}

	metrics.CommandProcessed(string(cmd.Kind), outcome)
	if s.state != before {
		logger.Info().Str(log.FieldEvent, "dispatch.transition").
			Str(log.FieldOldState, string(before)).
			Str(log.FieldNewState, string(s.state)).Msg("session state changed")
	}
	return closed
}
