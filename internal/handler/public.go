package handler

import (
	"log/slog"
	"net/http"

	"github.com/nafisb/snipvault/internal/auth"
	"github.com/nafisb/snipvault/internal/service"
)

// PublicHandler serves the unauthenticated routes under
// /api/public/snippets. Only active public snippets are reachable here;
// private and recycled content 404s regardless of what the caller knows.
type PublicHandler struct {
	service *service.SnippetService
	logger  *slog.Logger
}

func NewPublicHandler(service *service.SnippetService, logger *slog.Logger) *PublicHandler {
	return &PublicHandler{service: service, logger: logger}
}

// HandleList returns every active public snippet.
//
// GET /api/public/snippets
func (h *PublicHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	snippets, err := h.service.GetAllPublicSnippets(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snippets)
}

// HandleGetByID returns one public snippet. These routes run behind
// auth.OptionalAuth, so a logged-in caller is still recognized as an
// owner and can fetch their own private snippet through the public URL.
//
// GET /api/public/snippets/{id}
func (h *PublicHandler) HandleGetByID(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	snippet, err := h.service.GetSnippetByID(r.Context(), r.PathValue("id"), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snippet)
}

// HandleRawFragment serves one public fragment's code as plain text.
//
// GET /api/public/snippets/{id}/{fragmentID}/raw
func (h *PublicHandler) HandleRawFragment(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	writeRawFragment(w, r, h.service, userID)
}
