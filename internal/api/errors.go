// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Error variables for common backend failures.
var (
	// ErrNoCredential is returned by authenticated operations when no token is
	// held. No request is made.
	ErrNoCredential = errors.New("no credential")

	// ErrUnauthorized matches a 401 or 403 response: the backend rejected the
	// token or the login.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrNotFound matches a 404 response, or a 200 carrying an "error" body
	// from the get-conversation endpoint.
	ErrNotFound = errors.New("not found")

	// ErrMalformedResponse indicates a 2xx body that lacks required fields.
	ErrMalformedResponse = errors.New("malformed response")
)

// Error describes a failed backend call. Status is zero when the request never
// produced an HTTP response (DNS, refused connection, timeout, cancellation).
type Error struct {
	Op     string
	Method string
	Path   string
	Status int
	Detail string
	Err    error
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "api: %s", e.Op)
	if e.Status != 0 {
		fmt.Fprintf(&b, ": HTTP %d", e.Status)
	}
	if e.Detail != "" {
		fmt.Fprintf(&b, ": %s", e.Detail)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

// Unwrap returns the underlying cause, if any.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is maps HTTP statuses onto the package sentinels.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrUnauthorized:
		return e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden
	case ErrNotFound:
		return e.Status == http.StatusNotFound
	}
	return false
}

// IsNetwork reports whether err is a backend call that got no HTTP response.
func IsNetwork(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Status == 0
}

// Detail returns the backend-provided message carried by err, if any.
func Detail(err error) string {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Detail
	}
	return ""
}

// maxDetailLen caps free-text error bodies copied into Detail.
const maxDetailLen = 200

// parseDetail extracts a human message from an error body. It understands
// {"detail": "..."}, FastAPI validation lists and {"error": "..."}; other
// bodies are returned as trimmed text.
func parseDetail(body []byte) string {
	var payload struct {
		Detail json.RawMessage `json:"detail"`
		Error  string          `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if len(payload.Detail) > 0 {
			var s string
			if json.Unmarshal(payload.Detail, &s) == nil {
				return s
			}
			var items []struct {
				Msg string `json:"msg"`
			}
			if json.Unmarshal(payload.Detail, &items) == nil {
				msgs := make([]string, 0, len(items))
				for _, it := range items {
					if it.Msg != "" {
						msgs = append(msgs, it.Msg)
					}
				}
				return strings.Join(msgs, "; ")
			}
		}
		return payload.Error
	}

	text := strings.TrimSpace(string(body))
	if runes := []rune(text); len(runes) > maxDetailLen {
		text = string(runes[:maxDetailLen]) + "..."
	}
	return text
}
