// SPDX-License-Identifier: MIT

package log

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
)

func TestContextRoundTrip(t *testing.T) {
	ctx := context.Background()
	ctx = ContextWithRequestID(ctx, "req-1")
	ctx = ContextWithSessionID(ctx, "sess-1")

	if got := RequestIDFromContext(ctx); got != "req-1" {
		t.Errorf("request id = %q, want req-1", got)
	}
	if got := SessionIDFromContext(ctx); got != "sess-1" {
		t.Errorf("session id = %q, want sess-1", got)
	}
}

func TestFromNilContext(t *testing.T) {
	//nolint:staticcheck // nil context is the case under test
	if got := RequestIDFromContext(nil); got != "" {
		t.Errorf("request id from nil ctx = %q, want empty", got)
	}
	if got := SessionIDFromContext(nil); got != "" {
		t.Errorf("session id from nil ctx = %q, want empty", got)
	}
}

func TestWithContextAddsFields(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	ctx := ContextWithSessionID(context.Background(), "sess-42")
	contextual := WithContext(ctx, logger)
	contextual.Info().Msg("hello")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("unmarshal log entry: %v", err)
	}
	if entry[FieldSessionID] != "sess-42" {
		t.Errorf("session_id = %v, want sess-42", entry[FieldSessionID])
	}
}

func TestWithContextNoFields(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	plain := WithContext(context.Background(), logger)
	plain.Info().Msg("plain")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("unmarshal log entry: %v", err)
	}
	if _, ok := entry[FieldSessionID]; ok {
		t.Error("unexpected session_id field on bare context")
	}
}
