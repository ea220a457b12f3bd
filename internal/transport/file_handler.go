package transport

import (
	"context"
	"io"
	"mime"
	"net/http"
	"path/filepath"

	"artisan-market/internal/middleware"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// BlobFetcher streams a stored blob by its opaque key.
type BlobFetcher interface {
	Fetch(ctx context.Context, key string) (io.ReadCloser, error)
}

// FileHandler serves raw uploaded blobs.
type FileHandler struct {
	blobs  BlobFetcher
	logger *zap.Logger
}

// NewFileHandler creates a new FileHandler
func NewFileHandler(blobs BlobFetcher, logger *zap.Logger) *FileHandler {
	return &FileHandler{blobs: blobs, logger: logger}
}

// RegisterRoutes registers the raw file route
func (h *FileHandler) RegisterRoutes(r chi.Router) {
	r.Get("/uploads/*", h.Serve)
}

// Serve streams a blob to the client. Keys contain slashes, so the route
// uses a wildcard rather than a single path parameter. Storage keys carry
// the uploads/ prefix, which the route match strips.
func (h *FileHandler) Serve(w http.ResponseWriter, r *http.Request) {
	suffix := chi.URLParam(r, "*")
	if suffix == "" {
		middleware.RespondWithError(w, http.StatusBadRequest, "missing file key")
		return
	}
	key := "uploads/" + suffix

	body, err := h.blobs.Fetch(r.Context(), key)
	if err != nil {
		middleware.RespondWithAppError(w, h.logger, err)
		return
	}
	defer body.Close()

	if contentType := mime.TypeByExtension(filepath.Ext(key)); contentType != "" {
		w.Header().Set("Content-Type", contentType)
	} else {
		w.Header().Set("Content-Type", "application/octet-stream")
	}

	if _, err := io.Copy(w, body); err != nil {
		h.logger.Warn("Failed to stream blob", zap.String("key", key), zap.Error(err))
	}
}
