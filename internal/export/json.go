// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"encoding/json"
	"fmt"
)

// JSONExporter writes the transcript as indented JSON. Messages use the
// same role/content shape the backend returns, so an export can be read
// back with the API types.
type JSONExporter struct{}

// NewJSONExporter creates a JSON exporter.
func NewJSONExporter() *JSONExporter {
	return &JSONExporter{}
}

// Export converts a transcript to JSON.
func (e *JSONExporter) Export(t *Transcript) ([]byte, error) {
	if t == nil {
		return nil, fmt.Errorf("transcript is nil")
	}
	out, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(out, '\n'), nil
}

// FileExtension returns the file extension for JSON.
func (e *JSONExporter) FileExtension() string {
	return ".json"
}
