package fileshandler

import (
	"mime"
	"net/http"
	"os"
	"path/filepath"

	"github.com/go-chi/chi/v5"

	"leavedesk/internal/platform/storage"
	"leavedesk/internal/transport/http/api"
	"leavedesk/internal/transport/http/middleware"
)

type Handler struct {
	Store *storage.Store
}

func NewHandler(store *storage.Store) *Handler {
	return &Handler{Store: store}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/uploads/{ref}", h.handleGet)
}

// handleGet decrypts and serves one stored attachment. Refs are opaque
// generated names, so possession of a ref plus a valid session is the
// access check.
func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	if _, ok := middleware.GetUser(r.Context()); !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", reqID)
		return
	}

	ref := chi.URLParam(r, "ref")
	data, err := h.Store.Load(r.Context(), ref)
	if err != nil {
		if os.IsNotExist(err) {
			api.Fail(w, http.StatusNotFound, "file_not_found", "attachment not found", reqID)
			return
		}
		api.Fail(w, http.StatusInternalServerError, "internal_error", "failed to load attachment", reqID)
		return
	}

	contentType := mime.TypeByExtension(filepath.Ext(ref))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("X-Content-Type-Options", "nosniff")
	_, _ = w.Write(data)
}
