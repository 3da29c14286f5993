package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/gin-gonic/gin"
)

const (
	wsPingInterval = 30 * time.Second
	wsWriteTimeout = 10 * time.Second
)

// wsHandler serves GET /ws/:sessionId, an alternative transport to SSE
// offering the same event delivery plus an application-level ping message
// the client can rely on in place of the heartbeat event.
func (s *Server) wsHandler(c *gin.Context) {
	sessionID := c.Param("sessionId")

	if err := s.svc.CheckSessionExists(c.Request.Context(), sessionID); err != nil {
		respondServiceError(c, err)
		return
	}

	conn, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{
		OriginPatterns: s.cfg.Server.AllowedWSOrigins,
	})
	if err != nil {
		slog.Warn("websocket accept failed", "session_id", sessionID, "error", err)
		return
	}
	defer conn.CloseNow()

	lastEventID := c.Query("lastEventId")
	f := filterFromQuery(c)

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	// A disconnect is detected two ways: the client closes the socket (the
	// read loop below returns), or the stream itself ends (workflow
	// completion, supersede, server shutdown). Either one cancels ctx and
	// unwinds the other.
	go readLoop(ctx, cancel, conn)
	go pingLoop(ctx, conn, sessionID)

	emit := func(frame string) error {
		payload := sseFrameToJSON(frame)
		writeCtx, writeCancel := context.WithTimeout(ctx, wsWriteTimeout)
		defer writeCancel()
		return conn.Write(writeCtx, websocket.MessageText, payload)
	}

	err = s.svc.Stream(ctx, sessionID, lastEventID, f, emit)
	cancel()

	if err != nil && !errors.Is(err, context.Canceled) {
		slog.Debug("websocket stream ended", "session_id", sessionID, "error", err)
	}
	_ = conn.Close(websocket.StatusNormalClosure, "stream ended")
}

// readLoop drains inbound frames so the client's own pings/pongs and
// close handshake are serviced; StreamWeaver is currently one-directional
// so message contents beyond control frames are discarded.
func readLoop(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn) {
	defer cancel()
	for {
		_, _, err := conn.Read(ctx)
		if err != nil {
			return
		}
	}
}

// pingLoop sends a {"type":"ping","session_id":...} text message every
// wsPingInterval, which also keeps intermediate proxies from timing out an
// idle connection.
func pingLoop(ctx context.Context, conn *websocket.Conn, sessionID string) {
	ping, _ := json.Marshal(map[string]string{"type": "ping", "session_id": sessionID})
	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
			err := conn.Write(pingCtx, websocket.MessageText, ping)
			cancel()
			if err != nil {
				return
			}
		}
	}
}

// sseFrameToJSON re-encodes an `id:`/`event:`/`data:` SSE frame as a flat
// JSON object for WebSocket clients, which have no native equivalent of
// the SSE wire format.
func sseFrameToJSON(frame string) []byte {
	var id, eventType, data string
	for _, line := range strings.Split(frame, "\n") {
		line = strings.TrimSuffix(line, "\r")
		switch {
		case strings.HasPrefix(line, "id:"):
			id = strings.TrimSpace(strings.TrimPrefix(line, "id:"))
		case strings.HasPrefix(line, "event:"):
			eventType = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			data = strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		}
	}

	msg := struct {
		ID    string          `json:"id,omitempty"`
		Event string          `json:"event"`
		Data  json.RawMessage `json:"data"`
	}{ID: id, Event: eventType, Data: json.RawMessage(data)}

	b, err := json.Marshal(msg)
	if err != nil {
		// data wasn't valid JSON on its own line (shouldn't happen for our
		// own encoder) — fall back to a string payload.
		raw, _ := json.Marshal(data)
		fallback := struct {
			Event string          `json:"event"`
			Data  json.RawMessage `json:"data"`
		}{Event: eventType, Data: raw}
		b, _ = json.Marshal(fallback)
	}
	return b
}
