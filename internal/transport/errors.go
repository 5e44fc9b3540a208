package transport

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/promptdeck/promptdeck/internal/errs"
)

// APIError is a non-2xx response from the backend with whatever structured
// payload it carried. 401s never reach callers raw; the pipeline resolves
// them first.
type APIError struct {
	Status     int
	StatusText string
	Detail     string // server "detail" field
	ErrText    string // server "error" field
	Message    string // server "message" field
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api: %d %s: %s", e.Status, e.StatusText, e.Reason())
}

// Reason picks the most specific human-readable explanation: structured
// detail, then the server's error/message, then the HTTP status text, else a
// generic fallback.
func (e *APIError) Reason() string {
	switch {
	case e.Detail != "":
		return e.Detail
	case e.ErrText != "":
		return e.ErrText
	case e.Message != "":
		return e.Message
	case e.StatusText != "":
		return e.StatusText
	}
	return "request failed"
}

// Unwrap maps well-known statuses to sentinels so callers can use errors.Is
// without inspecting codes.
func (e *APIError) Unwrap() error {
	switch e.Status {
	case http.StatusUnauthorized:
		return errs.ErrUnauthorized
	case http.StatusForbidden:
		return errs.ErrForbidden
	case http.StatusNotFound:
		return errs.ErrNotFound
	}
	return nil
}

// Reason extracts a user-facing failure description from any pipeline error,
// applying the APIError fallback chain when one is present.
func Reason(err error) string {
	if err == nil {
		return ""
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Reason()
	}
	return err.Error()
}
