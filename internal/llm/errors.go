package llm

import (
	"fmt"
	"net/http"
)

// maxErrorBody bounds how much of an error response is kept.
const maxErrorBody = 512

// APIError is a non-200 answer from a provider.
type APIError struct {
	Provider   Provider
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	body := e.Body
	if len(body) > maxErrorBody {
		body = body[:maxErrorBody] + "..."
	}
	return fmt.Sprintf("%s API error (%d): %s", e.Provider, e.StatusCode, body)
}

// RateLimited reports whether the provider rejected the call with 429.
func (e *APIError) RateLimited() bool {
	return e.StatusCode == http.StatusTooManyRequests
}
