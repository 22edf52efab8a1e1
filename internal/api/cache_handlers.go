package api

import (
	"log/slog"
	"net/http"

	"github.com/4ier/logodeth/internal/cache"
)

// CacheHandlers expose cache statistics and admin operations.
type CacheHandlers struct {
	store  cache.Store
	logger *slog.Logger
}

// NewCacheHandlers creates cache handlers.
func NewCacheHandlers(store cache.Store, logger *slog.Logger) *CacheHandlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &CacheHandlers{store: store, logger: logger}
}

// Stats handles GET /api/v1/cache/stats.
func (h *CacheHandlers) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.store.Stats(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to read cache stats", "error", err)
		WriteError(w, r.Context(), http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "Cache unavailable")
		return
	}
	WriteJSON(w, r.Context(), http.StatusOK, stats)
}

// Clear handles DELETE /api/v1/cache (admin).
func (h *CacheHandlers) Clear(w http.ResponseWriter, r *http.Request) {
	cleared, err := h.store.Clear(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to clear cache", "error", err)
		WriteError(w, r.Context(), http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "Cache unavailable")
		return
	}
	h.logger.InfoContext(r.Context(), "cache cleared", "cleared", cleared)
	WriteJSON(w, r.Context(), http.StatusOK, map[string]int64{"cleared": cleared})
}

// Delete handles DELETE /api/v1/cache/{hash} (admin).
func (h *CacheHandlers) Delete(w http.ResponseWriter, r *http.Request) {
	hash := r.PathValue("hash")
	deleted, err := h.store.Delete(r.Context(), hash)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to delete cache entry", "image_hash", hash, "error", err)
		WriteError(w, r.Context(), http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "Cache unavailable")
		return
	}
	if !deleted {
		WriteError(w, r.Context(), http.StatusNotFound, ErrCodeNotFound, "No cached result found")
		return
	}
	WriteJSON(w, r.Context(), http.StatusOK, map[string]bool{"deleted": true})
}
