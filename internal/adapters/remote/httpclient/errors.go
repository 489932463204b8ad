package httpclient

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/hylla/qboard/internal/app"
)

// StatusError is returned for every non-2xx response.
// It unwraps to the matching app sentinel when one exists.
type StatusError struct {
	StatusCode int
	Code       string
	Message    string
	Method     string
	Path       string
}

// Error returns the error text.
func (e *StatusError) Error() string {
	msg := strings.TrimSpace(e.Message)
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.StatusCode, msg)
}

// Unwrap maps the status code onto app errors.
func (e *StatusError) Unwrap() error {
	switch e.StatusCode {
	case http.StatusUnauthorized:
		return app.ErrUnauthorized
	case http.StatusNotFound:
		return app.ErrNotFound
	case http.StatusConflict, http.StatusPreconditionFailed:
		return app.ErrConflict
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return app.ErrInvalidInput
	default:
		return nil
	}
}

// decodeStatusError reads the structured envelope or the common
// {"message": ..., "error": "..."} shape.
func decodeStatusError(method, path string, status int, body []byte) *StatusError {
	out := &StatusError{StatusCode: status, Method: method, Path: path}
	var payload map[string]any
	if err := sonic.Unmarshal(body, &payload); err != nil {
		out.Message = strings.TrimSpace(string(body))
		return out
	}
	switch v := payload["error"].(type) {
	case map[string]any:
		out.Code, _ = v["code"].(string)
		out.Message, _ = v["message"].(string)
		return out
	case string:
		out.Code = v
	}
	switch v := payload["message"].(type) {
	case string:
		out.Message = v
	case []any:
		parts := make([]string, 0, len(v))
		for _, part := range v {
			if s, ok := part.(string); ok {
				parts = append(parts, s)
			}
		}
		out.Message = strings.Join(parts, "; ")
	}
	return out
}
