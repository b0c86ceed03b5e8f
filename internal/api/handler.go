// Package api provides HTTP handlers for the deduction room API.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/soupnight/souproom/internal/domain"
	"github.com/soupnight/souproom/internal/host"
	"github.com/soupnight/souproom/internal/soups"
	"github.com/soupnight/souproom/internal/store"
)

// Error codes returned in {"error": CODE} bodies.
const (
	CodeMissingID        = "MISSING_ID"
	CodeMethodNotAllowed = "METHOD_NOT_ALLOWED"
	CodeNotFound         = "NOT_FOUND"
	CodeSoupNotFound     = "SOUP_NOT_FOUND"
	CodeInvalidJSON      = "INVALID_JSON"
	CodeInvalidQuestion  = "INVALID_QUESTION"
	CodeEmptyQuestion    = "EMPTY_QUESTION"
	CodeCompletionError  = "COMPLETION_ERROR"
	CodeConflict         = "CONFLICT"
)

// Handler serves the session and catalog endpoints.
type Handler struct {
	host    *host.Host
	catalog *soups.Catalog
	repo    store.Repository
}

// NewHandler creates a Handler with its dependencies.
func NewHandler(h *host.Host, catalog *soups.Catalog, repo store.Repository) *Handler {
	return &Handler{host: h, catalog: catalog, repo: repo}
}

// sessionPayload is the wire shape shared by create/get/watch.
type sessionPayload struct {
	SessionID string             `json:"sessionId"`
	Soup      domain.SoupSummary `json:"soup"`
	History   []domain.Turn      `json:"history"`
}

func newSessionPayload(session *domain.Session, soup *domain.Soup) sessionPayload {
	return sessionPayload{
		SessionID: session.ID,
		Soup:      soup.Summary(),
		History:   session.History,
	}
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response with a machine-readable code.
func Error(w http.ResponseWriter, status int, code string) {
	JSON(w, status, map[string]string{"error": code})
}

// ErrorWithMessage writes a JSON error response with a code and a
// human-readable message.
func ErrorWithMessage(w http.ResponseWriter, status int, code, message string) {
	JSON(w, status, map[string]string{"error": code, "message": message})
}

// MethodNotAllowed is the router-level 405 handler, kept JSON-shaped
// like every other error body.
func MethodNotAllowed(w http.ResponseWriter, _ *http.Request) {
	Error(w, http.StatusMethodNotAllowed, CodeMethodNotAllowed)
}

// Health reports service liveness.
func Health(w http.ResponseWriter, _ *http.Request) {
	JSON(w, http.StatusOK, map[string]bool{"ok": true})
}
