package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Transport errors.
var (
	ErrTimeout     = errors.New("request timed out")
	ErrUnreachable = errors.New("cannot connect to API server")
)

// maxErrorBody caps how much of an error response is read.
const maxErrorBody = 64 * 1024

// APIError is a non-2xx response from the API.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return e.Message
}

// CORS reports whether the server refused the request's Origin.
func (e *APIError) CORS() bool {
	return e.Status == http.StatusForbidden && strings.Contains(strings.ToLower(e.Message), "origin not allowed")
}

// UnhealthyError is returned when the health gate fails before an upload.
type UnhealthyError struct {
	Status string
	Reason string
}

func (e *UnhealthyError) Error() string {
	reason := e.Reason
	if reason == "" {
		reason = "Unknown error"
	}
	return fmt.Sprintf("API server is %s: %s", e.Status, reason)
}

func classifyTransportError(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrUnreachable, err)
}

// parseAPIError builds an *APIError from a failed response. The message is
// taken from error.message, detail.message, message or detail, in that
// order, falling back to the HTTP status line.
func parseAPIError(resp *http.Response) error {
	apiErr := &APIError{
		Status:  resp.StatusCode,
		Message: fmt.Sprintf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode)),
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil {
		return apiErr
	}

	var body map[string]any
	if err := json.Unmarshal(raw, &body); err != nil {
		if text := strings.TrimSpace(string(raw)); text != "" && resp.StatusCode == http.StatusForbidden {
			apiErr.Message = text
		}
		return apiErr
	}

	if e, ok := body["error"].(map[string]any); ok {
		apiErr.Code, _ = e["code"].(string)
		if msg, ok := e["message"].(string); ok && msg != "" {
			apiErr.Message = msg
			return apiErr
		}
	}
	if d, ok := body["detail"].(map[string]any); ok {
		if msg, ok := d["message"].(string); ok && msg != "" {
			apiErr.Message = msg
			return apiErr
		}
	}
	if msg, ok := body["message"].(string); ok && msg != "" {
		apiErr.Message = msg
		return apiErr
	}
	if msg, ok := body["detail"].(string); ok && msg != "" {
		apiErr.Message = msg
	}
	return apiErr
}

// UserMessage turns an error from this package into the sentence shown to
// a user.
func UserMessage(err error) string {
	var apiErr *APIError
	var unhealthy *UnhealthyError
	switch {
	case errors.As(err, &apiErr) && apiErr.CORS():
		return "API server not accessible due to CORS policy. Please check server configuration."
	case errors.Is(err, ErrTimeout):
		return "Request timed out. The analysis is taking too long. Please try again."
	case errors.Is(err, ErrUnreachable):
		return "Cannot connect to API server. Please check if the backend is running."
	case errors.As(err, &unhealthy) && unhealthy.Status == "unreachable":
		return "API server is unreachable. Please check the server status."
	default:
		return "Recognition failed: " + err.Error()
	}
}
