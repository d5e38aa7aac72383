package transport

import (
	"errors"
	"fmt"
	"net/http"
)

// maxErrorBody is the number of response body characters shown in
// APIError messages.
const maxErrorBody = 500

// TransportError is returned when a request never produced an HTTP
// response: DNS, connect, TLS, timeout or a cancelled rate-limit wait.
type TransportError struct {
	Method string
	URL    string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("angles request failed | method=%s | url=%s | cause=%v", e.Method, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// APIError is returned for any response with a status outside [200,300).
type APIError struct {
	Method     string
	StatusCode int
	URL        string
	Body       string
}

func (e *APIError) Error() string {
	body := e.Body
	if r := []rune(body); len(r) > maxErrorBody {
		body = string(r[:maxErrorBody]) + "..."
	}

	return fmt.Sprintf(
		"angles api returned error | method=%s | status=%d | url=%s | response=%s",
		e.Method, e.StatusCode, e.URL, body,
	)
}

// IsNotFound reports whether err is an APIError with status 404.
func IsNotFound(err error) bool {
	return StatusCode(err) == http.StatusNotFound
}

// StatusCode returns the HTTP status of an APIError in err's chain, or 0.
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}

	return 0
}
