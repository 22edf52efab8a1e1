package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/4ier/logodeth/internal/archive"
)

// Presigner issues download links for archived uploads.
type Presigner interface {
	PresignGet(ctx context.Context, key string) (*archive.SignedURL, error)
}

// ArchiveLinkResponse represents the response for GET /api/v1/admin/archive.
type ArchiveLinkResponse struct {
	URL       string `json:"url"`
	Key       string `json:"key"`
	ExpiresAt string `json:"expires_at"` // ISO 8601 format
}

// ArchiveHandlers holds dependencies for archive HTTP handlers.
type ArchiveHandlers struct {
	presigner Presigner
	logger    *slog.Logger
}

// NewArchiveHandlers creates a new ArchiveHandlers instance.
func NewArchiveHandlers(presigner Presigner, logger *slog.Logger) *ArchiveHandlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &ArchiveHandlers{presigner: presigner, logger: logger}
}

// Link handles GET /api/v1/admin/archive?key=logos/<hash><ext> (admin).
func (h *ArchiveHandlers) Link(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.presigner == nil {
		WriteError(w, ctx, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "Archive not configured")
		return
	}

	key := r.URL.Query().Get("key")
	if key == "" {
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "key is required")
		return
	}

	signed, err := h.presigner.PresignGet(ctx, key)
	if err != nil {
		if errors.Is(err, archive.ErrInvalidHash) {
			WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "Invalid archive key")
			return
		}
		h.logger.ErrorContext(ctx, "failed to presign archive link", "key", key, "error", err)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to generate archive link")
		return
	}

	WriteJSON(w, ctx, http.StatusOK, ArchiveLinkResponse{
		URL:       signed.URL,
		Key:       signed.Key,
		ExpiresAt: signed.ExpiresAt.Format(time.RFC3339),
	})
}
