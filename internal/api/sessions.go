package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/soupnight/souproom/internal/host"
	"github.com/soupnight/souproom/internal/store"
)

// RegisterSessionRoutes registers the session endpoints.
func (h *Handler) RegisterSessionRoutes(r chi.Router) {
	r.Route("/sessions", func(r chi.Router) {
		r.MethodNotAllowed(MethodNotAllowed)
		r.Post("/", h.CreateSession)
		r.Get("/{id}", h.GetSession)
		r.Post("/{id}/ask", h.Ask)
	})
}

type createSessionBody struct {
	SoupID string `json:"soupId"`
}

// CreateSession allocates a new room. An absent or invalid body is
// tolerated and means "random riddle", matching the original contract.
func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var body createSessionBody
	_ = json.NewDecoder(r.Body).Decode(&body)

	session, soup, err := h.host.CreateSession(r.Context(), body.SoupID)
	if err != nil {
		slog.Error("Failed to create session", "error", err, "soup_id", body.SoupID)
		Error(w, http.StatusInternalServerError, CodeSoupNotFound)
		return
	}

	slog.Info("Session created", "session_id", session.ID, "soup_id", soup.ID)
	JSON(w, http.StatusCreated, newSessionPayload(session, soup))
}

// GetSession returns the current session record. The response carries
// an ETag derived from the stored version; a matching If-None-Match
// short-circuits to 304 with no body.
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
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

	etag := fmt.Sprintf(`"%s-%d"`, session.ID, session.Version)
	if match := r.Header.Get("If-None-Match"); match != "" && strings.Contains(match, etag) {
		w.Header().Set("ETag", etag)
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("ETag", etag)
	JSON(w, http.StatusOK, newSessionPayload(session, soup))
}

type askBody struct {
	Question *string `json:"question"`
}

// Ask submits a player question to the room's host and returns the
// answer plus the updated transcript.
func (h *Handler) Ask(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		Error(w, http.StatusBadRequest, CodeMissingID)
		return
	}

	var body askBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		Error(w, http.StatusBadRequest, CodeInvalidJSON)
		return
	}
	if body.Question == nil {
		Error(w, http.StatusBadRequest, CodeInvalidQuestion)
		return
	}
	if strings.TrimSpace(*body.Question) == "" {
		Error(w, http.StatusBadRequest, CodeEmptyQuestion)
		return
	}

	answer, history, err := h.host.Ask(r.Context(), id, *body.Question)
	if err != nil {
		h.writeAskError(w, id, err)
		return
	}

	JSON(w, http.StatusOK, map[string]interface{}{
		"answer":  answer,
		"history": history,
	})
}

func (h *Handler) writeLoadError(w http.ResponseWriter, id string, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		Error(w, http.StatusNotFound, CodeNotFound)
	case errors.Is(err, host.ErrSoupMissing):
		slog.Error("Session references missing soup", "session_id", id, "error", err)
		Error(w, http.StatusInternalServerError, CodeSoupNotFound)
	default:
		slog.Error("Failed to load session", "session_id", id, "error", err)
		ErrorWithMessage(w, http.StatusInternalServerError, CodeNotFound, err.Error())
	}
}

func (h *Handler) writeAskError(w http.ResponseWriter, id string, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		Error(w, http.StatusNotFound, CodeNotFound)
	case errors.Is(err, host.ErrEmptyQuestion):
		Error(w, http.StatusBadRequest, CodeEmptyQuestion)
	case errors.Is(err, host.ErrSoupMissing):
		slog.Error("Session references missing soup", "session_id", id, "error", err)
		Error(w, http.StatusInternalServerError, CodeSoupNotFound)
	case errors.Is(err, host.ErrConflict):
		slog.Warn("Concurrent ask conflict", "session_id", id)
		Error(w, http.StatusConflict, CodeConflict)
	case errors.Is(err, host.ErrCompletion):
		slog.Error("Completion failed", "session_id", id, "error", err)
		ErrorWithMessage(w, http.StatusInternalServerError, CodeCompletionError, err.Error())
	default:
		slog.Error("Ask failed", "session_id", id, "error", err)
		ErrorWithMessage(w, http.StatusInternalServerError, CodeCompletionError, err.Error())
	}
}
