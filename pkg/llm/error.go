package llm

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrNoChoices is returned when a provider answers without any content.
	ErrNoChoices = errors.New("provider returned no choices")

	// ErrEmptyPrompt is returned for requests without messages.
	ErrEmptyPrompt = errors.New("chat request has no messages")
)

// APIError is a non-2xx answer from a provider API.
type APIError struct {
	Provider   string `json:"provider"`
	StatusCode int    `json:"status_code"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s API error (status %d): %s", e.Provider, e.StatusCode, e.Message)
}

// Retryable reports whether the request may succeed if sent again.
func (e *APIError) Retryable() bool {
	switch e.StatusCode {
	case http.StatusRequestTimeout,
		http.StatusTooEarly,
		http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout,
		499:
		return true
	}
	return false
}

// IsRetryable reports whether err wraps a retryable *APIError.
func IsRetryable(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Retryable()
	}
	return false
}

// ErrorResponse is the JSON error body returned by the researcher API.
type ErrorResponse struct {
	Error string `json:"error"`
}
