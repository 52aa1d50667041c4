package portal

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrInvalidRequest is returned before any network call when input fails validation.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrUnexpectedResponse is returned when the portal answers with something that is not an envelope.
	ErrUnexpectedResponse = errors.New("unexpected portal response")
	// errBaseURLRequired is returned when the client is created without a base URL.
	errBaseURLRequired = errors.New("portal base URL must be provided")
)

// APIError is a request the portal received and declined.
type APIError struct {
	// StatusCode is the HTTP status of the response.
	StatusCode int
	// Message is the portal's human-readable reason, forwarded verbatim.
	Message string
}

// Error implements error.
func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("portal returned %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	}

	return fmt.Sprintf("portal returned %d: %s", e.StatusCode, e.Message)
}

// Unauthorized reports whether the credential was missing, invalid or expired.
func (e *APIError) Unauthorized() bool {
	return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusUnprocessableEntity
}

// ServerFault reports whether the portal failed internally rather than declining the request.
func (e *APIError) ServerFault() bool {
	return e.StatusCode >= http.StatusInternalServerError
}

// AsAPIError extracts an *APIError from err.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}

	return nil, false
}
