// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jeranaias/chatdesk/internal/model"
	"github.com/jeranaias/chatdesk/internal/util"
)

// =============================================================================
// EXPORT INTERFACE
// =============================================================================

// Exporter renders a transcript in one format.
type Exporter interface {
	// Export converts a transcript to the target format.
	Export(t *Transcript) ([]byte, error)

	// FileExtension returns the file extension, including the dot.
	FileExtension() string
}

// Transcript is the exported view of one conversation. Only messages the
// server confirmed are kept.
type Transcript struct {
	ID       string          `json:"id"`
	Title    string          `json:"title"`
	Exported time.Time       `json:"exported"`
	Messages []model.Message `json:"messages"`
}

// NewTranscript builds a transcript, dropping typing placeholders and
// failure markers.
func NewTranscript(id, title string, msgs []model.Message) *Transcript {
	kept := make([]model.Message, 0, len(msgs))
	for _, m := range msgs {
		if m.IsPlaceholder() || m.IsFailed() {
			continue
		}
		kept = append(kept, m)
	}
	if strings.TrimSpace(title) == "" {
		title = model.DefaultTitle
	}
	return &Transcript{ID: id, Title: title, Exported: time.Now(), Messages: kept}
}

// =============================================================================
// OPTIONS
// =============================================================================

// Options configures export behavior.
type Options struct {
	// IncludeMetadata adds a front matter header to Markdown output.
	IncludeMetadata bool
}

// DefaultOptions returns default export options.
func DefaultOptions() *Options {
	return &Options{IncludeMetadata: true}
}

// Formats lists the accepted format names.
var Formats = []string{"markdown", "json"}

// ForFormat returns the exporter for name ("markdown", "md" or "json").
func ForFormat(name string, opts *Options) (Exporter, error) {
	switch strings.ToLower(name) {
	case "markdown", "md":
		return NewMarkdownExporter(opts), nil
	case "json":
		return NewJSONExporter(), nil
	default:
		return nil, fmt.Errorf("unsupported export format %q (use markdown or json)", name)
	}
}

// =============================================================================
// OUTPUT
// =============================================================================

// Write renders t to w.
func Write(w io.Writer, t *Transcript, e Exporter) error {
	content, err := e.Export(t)
	if err != nil {
		return fmt.Errorf("export failed: %w", err)
	}
	_, err = w.Write(content)
	return err
}

// ToFile renders t into dir and returns the written path. The file name is
// derived from the conversation id, its title and the export time.
func ToFile(t *Transcript, e Exporter, dir string) (string, error) {
	content, err := e.Export(t)
	if err != nil {
		return "", fmt.Errorf("export failed: %w", err)
	}

	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}

	name := fmt.Sprintf("conversation_%s_%s_%s%s",
		sanitizeFilename(t.ID),
		sanitizeFilename(t.Title),
		t.Exported.Format("20060102_150405"),
		e.FileExtension(),
	)
	path := filepath.Join(dir, name)
	if err := util.AtomicWriteFile(path, content, 0o600); err != nil {
		return "", fmt.Errorf("write file: %w", err)
	}
	return path, nil
}

// sanitizeFilename replaces characters that are invalid in file names on
// any platform and limits the length.
func sanitizeFilename(s string) string {
	const maxLen = 50
	runes := []rune(strings.TrimSpace(s))
	if len(runes) > maxLen {
		runes = runes[:maxLen]
	}

	out := make([]rune, 0, len(runes))
	for _, r := range runes {
		switch {
		case strings.ContainsRune(`/\:*?"<>|`, r):
			out = append(out, '-')
		case r == ' ' || r == '\t' || r == '\n' || r == '\r':
			out = append(out, '_')
		case r < 32 || r == 127:
			out = append(out, '-')
		default:
			out = append(out, r)
		}
	}
	if len(out) == 0 {
		return "conversation"
	}
	return string(out)
}
