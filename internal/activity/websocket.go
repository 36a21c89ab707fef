package activity

import (
	"context"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

const (
	backlogSize     = 20
	subscriberQueue = 32
	writeTimeout    = 5 * time.Second
	pingInterval    = 30 * time.Second
)

// WebSocketHandler streams actions over a WebSocket: first the recent
// backlog, oldest first, then live actions as they happen.
type WebSocketHandler struct {
	hub *Hub
}

// NewWebSocketHandler creates a handler for hub.
func NewWebSocketHandler(hub *Hub) *WebSocketHandler {
	return &WebSocketHandler{hub: hub}
}

// ServeHTTP implements http.Handler for WebSocket upgrade.
func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := websocket.Accept(w, r, nil)
	if err != nil {
		slog.Error("Failed to accept WebSocket", "error", err)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "stream ended"); closeErr != nil {
			slog.Debug("Failed to close websocket", "error", closeErr)
		}
	}()

	// The stream is write-only; CloseRead handles control frames and
	// cancels ctx once the client goes away.
	ctx := ws.CloseRead(r.Context())

	id, events := h.hub.Subscribe(subscriberQueue)
	defer h.hub.Unsubscribe(id)
	slog.Info("Activity stream opened", "subscriber", id, "ip", r.RemoteAddr)

	backlog, err := h.hub.Recent(ctx, backlogSize)
	if err != nil {
		slog.Warn("Failed to load activity backlog", "error", err)
	}
	slices.Reverse(backlog)
	for _, a := range backlog {
		if err := writeJSON(ctx, ws, a); err != nil {
			return
		}
	}

	ping := time.NewTicker(pingInterval)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("Activity stream closed", "subscriber", id)
			return
		case a, ok := <-events:
			if !ok {
				return
			}
			if err := writeJSON(ctx, ws, a); err != nil {
				slog.Debug("Activity stream write failed", "subscriber", id, "error", err)
				return
			}
		case <-ping.C:
			pingCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := ws.Ping(pingCtx)
			cancel()
			if err != nil {
				slog.Debug("Activity stream ping failed", "subscriber", id, "error", err)
				return
			}
		}
	}
}

func writeJSON(ctx context.Context, ws *websocket.Conn, v any) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return wsjson.Write(ctx, ws, v)
}
