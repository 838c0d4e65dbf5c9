// Package handler contains the HTTP layer: request parsing, response
// writing, and nothing else. Business rules live in internal/service.
package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/nafisb/snipvault/internal/auth"
	"github.com/nafisb/snipvault/internal/repository"
	"github.com/nafisb/snipvault/internal/service"
)

// SnippetHandler serves the authenticated snippet routes under
// /api/snippets. Every route runs behind auth.RequireAuth, so the user
// ID is always present in the request context.
type SnippetHandler struct {
	service *service.SnippetService
	logger  *slog.Logger
}

func NewSnippetHandler(service *service.SnippetService, logger *slog.Logger) *SnippetHandler {
	return &SnippetHandler{service: service, logger: logger}
}

// HandleList returns the caller's active snippets.
//
// GET /api/snippets
func (h *SnippetHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	snippets, err := h.service.GetAllSnippets(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snippets)
}

// HandleCreate stores a new snippet.
//
// POST /api/snippets
// Body: {"title": ..., "description": ..., "is_public": ...,
//        "categories": [...], "fragments": [{...}]}
func (h *SnippetHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	var in repository.SnippetInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		h.logger.Warn("invalid snippet JSON", slog.String("error", err.Error()))
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "bad_request", Message: "invalid JSON body"})
		return
	}

	snippet, err := h.service.CreateSnippet(r.Context(), in, userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, snippet)
}

// HandleGetByID returns one snippet: the caller's own, or anyone's
// public one. Recycled snippets 404 here even for their owner.
//
// GET /api/snippets/{id}
func (h *SnippetHandler) HandleGetByID(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	snippet, err := h.service.GetSnippetByID(r.Context(), r.PathValue("id"), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snippet)
}

// HandleUpdate rewrites a snippet, replacing fragments and categories
// wholesale.
//
// PUT /api/snippets/{id}
func (h *SnippetHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	var in repository.SnippetInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		h.logger.Warn("invalid snippet JSON", slog.String("error", err.Error()))
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "bad_request", Message: "invalid JSON body"})
		return
	}

	snippet, err := h.service.UpdateSnippet(r.Context(), r.PathValue("id"), in, userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snippet)
}

// HandleDelete permanently removes a snippet, bypassing the recycle bin.
//
// DELETE /api/snippets/{id}
func (h *SnippetHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	snippet, err := h.service.DeleteSnippet(r.Context(), r.PathValue("id"), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, idResponse{ID: snippet.ID})
}

// HandleRecycle soft-deletes a snippet: it goes to the recycle bin with
// a 30-day expiry.
//
// PATCH /api/snippets/{id}/recycle
func (h *SnippetHandler) HandleRecycle(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	snippet, err := h.service.MoveToRecycle(r.Context(), r.PathValue("id"), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, idResponse{ID: snippet.ID})
}

// HandleRestore returns a recycled snippet to the active state. Always
// 200; restoring a snippet that isn't there is a silent no-op.
//
// PATCH /api/snippets/{id}/restore
func (h *SnippetHandler) HandleRestore(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	id := r.PathValue("id")

	if err := h.service.RestoreSnippet(r.Context(), id, userID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, idResponse{ID: id})
}

// HandleListRecycled lists the caller's recycle bin. The expiry sweep
// runs inside the service before the listing, so nothing past its
// 30-day window ever appears here.
//
// GET /api/snippets/recycled
func (h *SnippetHandler) HandleListRecycled(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	snippets, err := h.service.GetRecycledSnippets(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snippets)
}

// HandleRawFragment serves one fragment's code as plain text.
//
// GET /api/snippets/{id}/{fragmentID}/raw
func (h *SnippetHandler) HandleRawFragment(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	writeRawFragment(w, r, h.service, userID)
}

// writeRawFragment resolves {id}/{fragmentID} and writes the fragment
// body as text/plain. Shared with the public handler.
func writeRawFragment(w http.ResponseWriter, r *http.Request, svc *service.SnippetService, userID string) {
	snippet, err := svc.GetSnippetByID(r.Context(), r.PathValue("id"), userID)
	if err != nil {
		writeError(w, err)
		return
	}

	fragmentID, err := strconv.ParseInt(r.PathValue("fragmentID"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "bad_request", Message: "invalid fragment ID"})
		return
	}

	for _, f := range snippet.Fragments {
		if f.ID == fragmentID {
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			w.Write([]byte(f.Code))
			return
		}
	}
	writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "not_found", Message: "fragment not found"})
}
