// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"encoding/json"
	"io"
	"time"
)

// JSONResponse is the envelope printed by commands run with --json.
type JSONResponse struct {
	Success   bool        `json:"success"`
	Data      interface{} `json:"data"`
	Error     *string     `json:"error"`
	Timestamp string      `json:"timestamp"`
	Command   string      `json:"command,omitempty"`
}

// NewJSONResponse wraps data in a successful envelope.
func NewJSONResponse(command string, data interface{}) *JSONResponse {
	return &JSONResponse{
		Success:   true,
		Data:      data,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Command:   command,
	}
}

// NewJSONErrorResponse wraps err in a failed envelope.
func NewJSONErrorResponse(command string, err error) *JSONResponse {
	msg := err.Error()
	return &JSONResponse{
		Success:   false,
		Error:     &msg,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Command:   command,
	}
}

// Write prints the envelope as indented JSON.
func (r *JSONResponse) Write(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}
