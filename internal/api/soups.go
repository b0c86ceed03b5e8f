package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// RegisterSoupRoutes registers the riddle catalog endpoints.
func (h *Handler) RegisterSoupRoutes(r chi.Router) {
	r.Route("/turtle-soups", func(r chi.Router) {
		r.MethodNotAllowed(MethodNotAllowed)
		r.Get("/", h.ListSoups)
		r.Get("/{id}", h.GetSoup)
	})
}

// ListSoups returns the player-visible catalog, never including truths.
func (h *Handler) ListSoups(w http.ResponseWriter, _ *http.Request) {
	JSON(w, http.StatusOK, h.catalog.Summaries())
}

// GetSoup returns one riddle. The truth is withheld unless the caller
// explicitly asks with includeTruth=1.
func (h *Handler) GetSoup(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		Error(w, http.StatusBadRequest, CodeMissingID)
		return
	}

	soup := h.catalog.ByID(id)
	if soup == nil {
		Error(w, http.StatusNotFound, CodeNotFound)
		return
	}

	if r.URL.Query().Get("includeTruth") == "1" {
		JSON(w, http.StatusOK, soup)
		return
	}
	JSON(w, http.StatusOK, soup.Summary())
}
