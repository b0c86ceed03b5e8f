package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
	"github.com/soupnight/souproom/internal/store"
)

// watchCheckInterval is how often the watch loop compares the stored
// version against the last pushed snapshot.
const watchCheckInterval = time.Second

// RegisterWatchRoutes registers the WebSocket session watch endpoint.
// Watch is the push alternative to polling: the server sends a fresh
// session payload whenever the stored version changes. Polling remains
// the fallback path for clients that cannot hold a connection.
func (h *Handler) RegisterWatchRoutes(r chi.Router) {
	r.Get("/ws/sessions/{id}", h.WatchSession)
}

// WatchSession upgrades to a WebSocket and streams session snapshots.
func (h *Handler) WatchSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		Error(w, http.StatusBadRequest, CodeMissingID)
		return
	}

	session, soup, err := h.host.Load(r.Context(), id)
	if err != nil {
		h.writeLoadError(w, id, err)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("Failed to accept watch WebSocket", "error", err, "session_id", id)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "watch ended"); closeErr != nil {
			slog.Debug("Watch close error", "error", closeErr, "session_id", id)
		}
	}()

	// CloseRead cancels the context when the client goes away.
	ctx := ws.CloseRead(r.Context())

	if err := writeJSON(ctx, ws, newSessionPayload(session, soup)); err != nil {
		return
	}
	lastVersion := session.Version

	ticker := time.NewTicker(watchCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		session, soup, err = h.host.Load(ctx, id)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				// Session expired out from under the watcher.
				return
			}
			slog.Warn("Watch reload failed", "error", err, "session_id", id)
			continue
		}
		if session.Version == lastVersion {
			continue
		}

		if err := writeJSON(ctx, ws, newSessionPayload(session, soup)); err != nil {
			return
		}
		lastVersion = session.Version
	}
}

func writeJSON(ctx context.Context, ws *websocket.Conn, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return ws.Write(ctx, websocket.MessageText, data)
}
