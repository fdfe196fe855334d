// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"fmt"
	"strings"
	"time"

	"github.com/jeranaias/chatdesk/internal/model"
)

// =============================================================================
// MARKDOWN EXPORTER
// =============================================================================

// MarkdownExporter writes a transcript as a Markdown document.
type MarkdownExporter struct {
	options *Options
}

// NewMarkdownExporter creates a Markdown exporter.
func NewMarkdownExporter(opts *Options) *MarkdownExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &MarkdownExporter{options: opts}
}

// Export converts a transcript to Markdown. Assistant replies are already
// Markdown and are copied as they are.
func (e *MarkdownExporter) Export(t *Transcript) ([]byte, error) {
	if t == nil {
		return nil, fmt.Errorf("transcript is nil")
	}

	var sb strings.Builder

	if e.options.IncludeMetadata {
		sb.WriteString("---\n")
		fmt.Fprintf(&sb, "title: %s\n", escapeYAML(t.Title))
		fmt.Fprintf(&sb, "conversation: %s\n", escapeYAML(t.ID))
		fmt.Fprintf(&sb, "messages: %d\n", len(t.Messages))
		fmt.Fprintf(&sb, "exported: %s\n", t.Exported.Format(time.RFC3339))
		sb.WriteString("generator: chatdesk\n")
		sb.WriteString("---\n\n")
	}

	fmt.Fprintf(&sb, "# %s\n\n", escapeMarkdown(t.Title))

	if len(t.Messages) == 0 {
		sb.WriteString("*No messages.*\n")
		return []byte(sb.String()), nil
	}

	for i, msg := range t.Messages {
		fmt.Fprintf(&sb, "### %s\n\n", roleLabel(msg.Role))
		sb.WriteString(strings.TrimSpace(msg.Content))
		sb.WriteString("\n\n")
		if i < len(t.Messages)-1 {
			sb.WriteString("---\n\n")
		}
	}
	return []byte(strings.TrimRight(sb.String(), "\n") + "\n"), nil
}

// FileExtension returns the file extension for Markdown.
func (e *MarkdownExporter) FileExtension() string {
	return ".md"
}

func roleLabel(role model.Role) string {
	if role == "" {
		return "Unknown"
	}
	return role.DisplayName()
}

// =============================================================================
// ESCAPING HELPERS
// =============================================================================

// escapeMarkdown escapes characters that would break a heading.
func escapeMarkdown(s string) string {
	r := strings.NewReplacer(
		"#", "\\#",
		"*", "\\*",
		"_", "\\_",
		"[", "\\[",
		"]", "\\]",
	)
	return r.Replace(s)
}

// escapeYAML quotes a front matter value when it needs it.
func escapeYAML(s string) string {
	if strings.ContainsAny(s, ":#|>@`\"'[]{}!%&*\n\r\\") || strings.HasPrefix(s, " ") || strings.HasSuffix(s, " ") {
		r := strings.NewReplacer(
			"\\", "\\\\",
			"\"", "\\\"",
			"\n", "\\n",
			"\r", "\\r",
		)
		return "\"" + r.Replace(s) + "\""
	}
	return s
}
