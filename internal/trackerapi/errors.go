package trackerapi

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/goccy/go-json"
)

const maxErrorBody = 64 << 10

// APIError is a non-2xx response from the tracker API
type APIError struct {
	Status  int
	Message string
}

// Error implements the error interface. The message is the server's detail
// verbatim.
func (e *APIError) Error() string {
	return e.Message
}

// Temporary reports whether the failure is on the server side
func (e *APIError) Temporary() bool {
	return e.Status >= 500 || e.Status == http.StatusTooManyRequests
}

// Message returns the human-readable message of err: the API detail for
// APIError, the error text otherwise
func Message(err error) string {
	if err == nil {
		return ""
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	return err.Error()
}

func newAPIError(resp *http.Response) *APIError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &APIError{Status: resp.StatusCode, Message: errorMessage(resp.StatusCode, body)}
}

// errorMessage extracts {"detail": "..."}; a non-string detail is rendered as
// JSON, an empty body falls back to the status line
func errorMessage(status int, body []byte) string {
	body = bytes.TrimSpace(body)
	if len(body) > 0 {
		var payload struct {
			Detail json.RawMessage `json:"detail"`
		}
		if err := json.Unmarshal(body, &payload); err == nil && len(payload.Detail) > 0 && string(payload.Detail) != "null" {
			var detail string
			if err := json.Unmarshal(payload.Detail, &detail); err == nil {
				return detail
			}
			return string(payload.Detail)
		}
		if text := strings.TrimSpace(string(body)); text != "" && !strings.HasPrefix(text, "{") {
			return text
		}
	}
	return fmt.Sprintf("HTTP %d", status)
}
