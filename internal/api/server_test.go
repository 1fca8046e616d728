// SPDX-License-Identifier: MIT

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ocel-tools/ocelbridge/internal/celonis"
	"github.com/ocel-tools/ocelbridge/internal/config"
	"github.com/ocel-tools/ocelbridge/internal/ocel"
	"github.com/ocel-tools/ocelbridge/internal/relay"
	"github.com/ocel-tools/ocelbridge/internal/storage"
)

// stubPlatform accepts any credentials and records created types.
type stubPlatform struct {
	createdObjects int
	createdEvents  int
}

func (p *stubPlatform) Login(ctx context.Context) (celonis.LoginOutcome, string, error) {
	return celonis.LoginAuthenticated, "", nil
}

func (p *stubPlatform) SubmitMFA(ctx context.Context, code string) (bool, error) {
	return true, nil
}

func (p *stubPlatform) CreateObjectTypes(ctx context.Context, decls []ocel.TypeDecl) error {
	p.createdObjects += len(decls)
	return nil
}

func (p *stubPlatform) CreateEventTypes(ctx context.Context, decls []ocel.TypeDecl) error {
	p.createdEvents += len(decls)
	return nil
}

func (p *stubPlatform) Close() {}

type testEnv struct {
	ts       *httptest.Server
	store    *storage.BadgerStore
	platform *stubPlatform
}

func newTestEnv(t *testing.T, mutate func(*config.AppConfig)) *testEnv {
	t.Helper()

	store, err := storage.OpenBadgerStore("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	cfg := config.Defaults()
	cfg.UploadRateRPM = 1000
	if mutate != nil {
		mutate(&cfg)
	}

	platform := &stubPlatform{}
	registry := relay.NewRegistry()
	dispatcher := relay.NewDispatcher(relay.DispatcherConfig{
		Registry:     registry,
		Store:        store,
		LoginBaseURL: cfg.LoginBaseURL,
		NewClient: func(celonis.Config) (relay.PlatformClient, error) {
			return platform, nil
		},
	})

	srv := NewServer(cfg, store, registry, dispatcher)
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)

	return &testEnv{ts: ts, store: store, platform: platform}
}

func multipartUpload(t *testing.T, url, filename, content string) *http.Response {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = io.WriteString(fw, content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	res, err := http.Post(url+"/cloudflare/upload", mw.FormDataContentType(), &body)
	require.NoError(t, err)
	return res
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t, nil)

	res, err := http.Get(env.ts.URL + "/healthz")
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)
}

func TestReadyz(t *testing.T) {
	env := newTestEnv(t, nil)

	res, err := http.Get(env.ts.URL + "/readyz")
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t, nil)

	res, err := http.Get(env.ts.URL + "/metrics")
	require.NoError(t, err)
	defer res.Body.Close()
	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Contains(t, string(body), "ocelbridge_sessions_total")
}

func TestUploadStoresFileAndReturnsUUID(t *testing.T) {
	env := newTestEnv(t, nil)

	res := multipartUpload(t, env.ts.URL, "log.jsonocel", `{"objectTypes":[]}`)
	defer res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)

	var out map[string]string
	require.NoError(t, json.NewDecoder(res.Body).Decode(&out))
	require.NotEmpty(t, out["uuid"])

	data, err := env.store.Get(context.Background(), out["uuid"])
	require.NoError(t, err)
	assert.Equal(t, `{"objectTypes":[]}`, string(data))
}

func TestUploadRejectsExtension(t *testing.T) {
	env := newTestEnv(t, nil)

	res := multipartUpload(t, env.ts.URL, "notes.txt", "hello")
	defer res.Body.Close()
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
}

func TestUploadRejectsOversize(t *testing.T) {
	env := newTestEnv(t, func(cfg *config.AppConfig) {
		cfg.UploadMaxBytes = 256
	})

	res := multipartUpload(t, env.ts.URL, "big.jsonocel", strings.Repeat("x", 4096))
	defer res.Body.Close()
	assert.Equal(t, http.StatusRequestEntityTooLarge, res.StatusCode)
}

func TestUploadMissingFileField(t *testing.T) {
	env := newTestEnv(t, nil)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("other", "value"))
	require.NoError(t, mw.Close())

	res, err := http.Post(env.ts.URL+"/cloudflare/upload", mw.FormDataContentType(), &body)
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
}

func wsURL(ts *httptest.Server) string {
	return "ws" + strings.TrimPrefix(ts.URL, "http") + "/celonis/ws"
}

func readEvent(t *testing.T, ctx context.Context, conn *websocket.Conn) relay.Event {
	t.Helper()
	var ev relay.Event
	require.NoError(t, wsjson.Read(ctx, conn, &ev))
	return ev
}

// readNonLogEvent skips log_message noise between state events.
func readNonLogEvent(t *testing.T, ctx context.Context, conn *websocket.Conn) relay.Event {
	t.Helper()
	for {
		ev := readEvent(t, ctx, conn)
		if ev.Type != relay.EvLogMessage {
			return ev
		}
	}
}

func TestWebSocketSessionLifecycle(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, wsURL(env.ts), nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")

	connected := readEvent(t, ctx, conn)
	require.Equal(t, relay.EvConnected, connected.Type)
	require.NotEmpty(t, connected.SessionID)
	assert.Contains(t, connected.Message, connected.SessionID)

	err = wsjson.Write(ctx, conn, map[string]string{
		"command":  "start_login",
		"base_url": "https://team.example.test",
		"username": "u",
		"password": "p",
	})
	require.NoError(t, err)
	assert.Equal(t, relay.EvLoginSuccess, readNonLogEvent(t, ctx, conn).Type)

	err = wsjson.Write(ctx, conn, map[string]string{"command": "close"})
	require.NoError(t, err)
	assert.Equal(t, relay.EvClosed, readNonLogEvent(t, ctx, conn).Type)
}

func TestWebSocketFullWorkflow(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	res := multipartUpload(t, env.ts.URL, "log.jsonocel", `{
		"objectTypes": [{"name": "Order", "attributes": []}],
		"eventTypes": [{"name": "Create Order", "attributes": []}]
	}`)
	var uploaded map[string]string
	require.NoError(t, json.NewDecoder(res.Body).Decode(&uploaded))
	res.Body.Close()

	conn, _, err := websocket.Dial(ctx, wsURL(env.ts), nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")

	require.Equal(t, relay.EvConnected, readEvent(t, ctx, conn).Type)

	require.NoError(t, wsjson.Write(ctx, conn, map[string]string{
		"command":  "start_login",
		"base_url": "https://team.example.test",
		"username": "u",
		"password": "p",
	}))
	require.Equal(t, relay.EvLoginSuccess, readNonLogEvent(t, ctx, conn).Type)

	require.NoError(t, wsjson.Write(ctx, conn, map[string]string{
		"command": "download_and_create_types",
		"uuid":    uploaded["uuid"],
	}))

	want := []relay.EventType{
		relay.EvDownloadStarted, relay.EvDownloadComplete,
		relay.EvTypesCreationStarted, relay.EvTypesCreationComplete,
		relay.EvCompleted,
	}
	for _, wantType := range want {
		assert.Equal(t, wantType, readNonLogEvent(t, ctx, conn).Type)
	}
	assert.Equal(t, 1, env.platform.createdObjects)
	assert.Equal(t, 1, env.platform.createdEvents)
}

func TestWebSocketUnknownCommand(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, wsURL(env.ts), nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")

	require.Equal(t, relay.EvConnected, readEvent(t, ctx, conn).Type)

	require.NoError(t, wsjson.Write(ctx, conn, map[string]string{"command": "reboot"}))
	ev := readNonLogEvent(t, ctx, conn)
	assert.Equal(t, relay.EvError, ev.Type)
	assert.Contains(t, ev.Message, "Unknown command")
}
