package client

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/bytedance/sonic"
)

// HTTPError is returned by the JSON helpers for non 2xx responses.
type HTTPError struct {
	Method     string
	Path       string
	StatusCode int
	// Message is the server supplied explanation when the body carried one.
	Message string
}

func (e *HTTPError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.StatusCode, http.StatusText(e.StatusCode))
}

// IsNotFound reports whether err is an HTTPError with a 404 status.
func IsNotFound(err error) bool {
	return StatusCode(err) == http.StatusNotFound
}

// StatusCode extracts the HTTP status from err, or 0.
func StatusCode(err error) int {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode
	}
	return 0
}

// UserMessage returns text suitable for showing to a user: the server's
// message when one was sent, otherwise the error text.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) && httpErr.Message != "" {
		return httpErr.Message
	}
	return err.Error()
}

func newHTTPError(method, path string, resp *Response) *HTTPError {
	return &HTTPError{
		Method:     method,
		Path:       path,
		StatusCode: resp.StatusCode,
		Message:    serverMessage(resp.Body),
	}
}

// serverMessage pulls message, msg or error out of a JSON error body.
func serverMessage(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	var payload struct {
		Message string `json:"message"`
		Msg     string `json:"msg"`
		Error   any    `json:"error"`
	}
	if err := sonic.ConfigStd.Unmarshal(body, &payload); err != nil {
		text := strings.TrimSpace(string(body))
		if len(text) > 200 || strings.ContainsAny(text, "<{[") {
			return ""
		}
		return text
	}
	switch {
	case payload.Message != "":
		return payload.Message
	case payload.Msg != "":
		return payload.Msg
	}
	if s, ok := payload.Error.(string); ok {
		return s
	}
	return ""
}

// CheckResponse converts a non 2xx response into an *HTTPError.
func CheckResponse(method, path string, resp *Response) error {
	if resp.OK() {
		return nil
	}
	return newHTTPError(method, path, resp)
}
