// SPDX-License-Identifier: MIT

package relay

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/ocel-tools/ocelbridge/internal/log"
	"github.com/ocel-tools/ocelbridge/internal/ocel"
	"github.com/ocel-tools/ocelbridge/internal/storage"
)

// runWorkflow executes one download_and_create_types command end to end:
// fetch the upload, derive its type set, submit every definition. Any
// failure lands the session in the retryable workflow_failed state; the
// client recovers by sending the command again.
func (d *Dispatcher) runWorkflow(ctx context.Context, s *Session, cmd *Command) string {
	if cmd.UUID == "" {
		s.emitError("UUID is required")
		return outcomeRejected
	}
	if s.client == nil {
		s.emitError("No active client session. Please login first.")
		return outcomeRejected
	}

	logger := s.logger.With().Str(log.FieldFileID, cmd.UUID).Logger()

	s.state = StateDownloading
	s.Emit(Event{Type: EvDownloadStarted})
	s.emitLog("info", "Downloading jsonocel with UUID: "+cmd.UUID)

	data, err := d.store.Get(ctx, cmd.UUID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			logger.Warn().Str(log.FieldEvent, "workflow.file_missing").Msg("upload not found")
		} else {
			logger.Error().Err(err).Str(log.FieldEvent, "workflow.download_failed").Msg("storage read failed")
		}
		s.state = StateWorkflowFailed
		s.emitError("Processing error: " + err.Error())
		return outcomeError
	}
	s.state = StateDownloadOK
	s.Emit(Event{Type: EvDownloadComplete})

	derivation, err := d.deriveTypes(cmd.UUID, data)
	if err != nil {
		logger.Warn().Err(err).Str(log.FieldEvent, "workflow.parse_failed").Msg("log file rejected")
		s.state = StateWorkflowFailed
		s.emitError("Processing error: " + err.Error())
		return outcomeError
	}
	s.emitLog("info", "Jsonocel file parsed successfully")

	s.state = StateCreatingTypes
	s.Emit(Event{Type: EvTypesCreationStarted})

	if err := s.client.CreateObjectTypes(ctx, derivation.ObjectTypes); err != nil {
		logger.Error().Err(err).Str(log.FieldEvent, "workflow.create_failed").Msg("object type creation failed")
		s.state = StateWorkflowFailed
		s.emitError("Processing error: " + err.Error())
		return outcomeError
	}
	if err := s.client.CreateEventTypes(ctx, derivation.EventTypes); err != nil {
		logger.Error().Err(err).Str(log.FieldEvent, "workflow.create_failed").Msg("event type creation failed")
		s.state = StateWorkflowFailed
		s.emitError("Processing error: " + err.Error())
		return outcomeError
	}

	s.Emit(Event{Type: EvTypesCreationComplete})
	s.state = StateCompleted
	s.Emit(Event{Type: EvCompleted})
	logger.Info().Str(log.FieldEvent, "workflow.completed").
		Int("object_types", len(derivation.ObjectTypes)).
		Int("event_types", len(derivation.EventTypes)).Msg("workflow finished")
	return outcomeOK
}

// deriveTypes parses the raw log and reduces it to the creation set, going
// through the derivation cache when one is configured. The raw bytes always
// come from storage first; only the parse step is skipped on a hit.
func (d *Dispatcher) deriveTypes(fileID string, data []byte) (ocel.Derivation, error) {
	cacheKey := "derive:" + fileID

	if d.cache != nil {
		if cached, ok := d.cache.Get(cacheKey); ok {
			var derivation ocel.Derivation
			if err := json.Unmarshal(cached, &derivation); err == nil {
				return derivation, nil
			}
			d.cache.Delete(cacheKey)
		}
	}

	doc, err := ocel.Parse(data)
	if err != nil {
		return ocel.Derivation{}, err
	}
	derivation := ocel.Derive(doc)

	if d.cache != nil {
		if encoded, err := json.Marshal(derivation); err == nil {
			d.cache.Set(cacheKey, encoded, d.cacheTTL)
		}
	}
	return derivation, nil
}
