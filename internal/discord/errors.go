package discord

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// APIError is a non-2xx response from the Discord API. Callers can use
// errors.As to extract it:
//
//	var apiErr *APIError
//	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusForbidden { ... }
type APIError struct {
	Method string `json:"-"`
	Path   string `json:"-"`
	// StatusCode is the HTTP status code of the response.
	StatusCode int `json:"-"`
	// Code is Discord's JSON error code (e.g. 50001 "Missing Access").
	Code int `json:"code"`
	// Message is the human-readable error from the server, or the raw body
	// when the server did not answer with JSON.
	Message string `json:"message"`
	// RetryAfter is set on 429 responses.
	RetryAfter time.Duration `json:"-"`
}

func (e *APIError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("discord: %s %s: %d %s (code %d)", e.Method, e.Path, e.StatusCode, e.Message, e.Code)
	}
	return fmt.Sprintf("discord: %s %s: %d %s", e.Method, e.Path, e.StatusCode, e.Message)
}

// Standard Discord JSON error codes the bot cares about.
const (
	CodeUnknownChannel = 10003
	CodeUnknownMessage = 10008
	CodeMissingAccess  = 50001
	CodeMissingPerms   = 50013
)

func newAPIError(method, path string, status int, body []byte) *APIError {
	apiErr := &APIError{Method: method, Path: path, StatusCode: status}

	var parsed struct {
		Code       int     `json:"code"`
		Message    string  `json:"message"`
		RetryAfter float64 `json:"retry_after"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil || parsed.Message == "" {
		apiErr.Message = http.StatusText(status)
		if len(body) > 0 {
			apiErr.Message = string(body)
		}
		return apiErr
	}
	apiErr.Code = parsed.Code
	apiErr.Message = parsed.Message
	apiErr.RetryAfter = time.Duration(parsed.RetryAfter * float64(time.Second))
	return apiErr
}

// StatusCode returns the HTTP status of err if it wraps an *APIError, or 0.
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

// IsForbidden reports whether err is a 403 from Discord, which is what the
// API answers when the bot lacks access to a channel or its pins.
func IsForbidden(err error) bool {
	return StatusCode(err) == http.StatusForbidden
}

// HasCode reports whether err wraps an *APIError carrying Discord's JSON
// error code.
func HasCode(err error, code int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == code
}
