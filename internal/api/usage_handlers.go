package api

import (
	"net/http"

	"github.com/4ier/logodeth/internal/llm"
	"github.com/4ier/logodeth/internal/recognition"
)

// UsageHandlers report spend and provider configuration.
type UsageHandlers struct {
	service   *recognition.Service
	providers llm.ProvidersInfo
}

// NewUsageHandlers creates usage handlers.
func NewUsageHandlers(service *recognition.Service, providers llm.ProvidersInfo) *UsageHandlers {
	return &UsageHandlers{service: service, providers: providers}
}

// Usage handles GET /api/v1/usage.
func (h *UsageHandlers) Usage(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, r.Context(), http.StatusOK, h.service.Usage(recognition.DefaultIdentifier))
}

// Providers handles GET /api/v1/providers.
func (h *UsageHandlers) Providers(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, r.Context(), http.StatusOK, h.providers)
}

// Cleanup handles POST /api/v1/admin/cleanup (admin): spend records from
// past days and months are dropped.
func (h *UsageHandlers) Cleanup(w http.ResponseWriter, r *http.Request) {
	h.service.PruneUsage()
	WriteJSON(w, r.Context(), http.StatusOK, map[string]string{"status": "ok"})
}
