// SPDX-License-Identifier: MIT

package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/ocel-tools/ocelbridge/internal/log"
	"github.com/ocel-tools/ocelbridge/internal/relay"
)

// wsConn adapts a websocket connection to the relay's Conn contract. Sends
// happen only from the session's handler goroutine, closes may also come
// from the reaper; the websocket library permits that combination.
type wsConn struct {
	ctx  context.Context
	conn *websocket.Conn
}

func (c *wsConn) Send(ev relay.Event) error {
	return wsjson.Write(c.ctx, c.conn, ev)
}

func (c *wsConn) Close(reason string) error {
	return c.conn.Close(websocket.StatusNormalClosure, reason)
}

// handleWS runs one session: accept, register, announce, then read commands
// until the client disconnects, asks to close, or the reaper evicts the
// session.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	logger := log.WithComponentFromContext(r.Context(), "ws")

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: s.cfg.AllowedOrigins,
	})
	if err != nil {
		logger.Warn().Err(err).Str(log.FieldEvent, "ws.accept_failed").Msg("websocket accept failed")
		return
	}

	ctx := r.Context()
	sess := s.registry.Create(&wsConn{ctx: ctx, conn: conn})
	defer func() {
		// Client release belongs to this goroutine; Destroy only drops the
		// table entry so the reaper cannot race an in-flight command.
		s.registry.Destroy(sess.ID)
		sess.Release()
	}()

	sess.EmitConnected()

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			var closeErr websocket.CloseError
			if errors.As(err, &closeErr) || errors.Is(err, context.Canceled) {
				logger.Debug().Str(log.FieldSessionID, sess.ID).
					Str(log.FieldEvent, "ws.closed").Msg("client disconnected")
			} else {
				logger.Debug().Err(err).Str(log.FieldSessionID, sess.ID).
					Str(log.FieldEvent, "ws.read_failed").Msg("read failed, dropping session")
			}
			return
		}

		if s.dispatcher.Handle(ctx, sess, data) {
			_ = conn.Close(websocket.StatusNormalClosure, "closed by client")
			return
		}
	}
}
