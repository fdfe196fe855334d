// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/glamour"

	"github.com/jeranaias/chatdesk/internal/model"
)

// =============================================================================
// MARKDOWN RENDERING
// =============================================================================

// markdown renders assistant replies. It falls back to plain text when
// output is piped or rendering is disabled.
type markdown struct {
	renderer *glamour.TermRenderer
}

func newMarkdown(w io.Writer, enabled, dark bool) *markdown {
	if !enabled || !colorsEnabled(w) {
		return &markdown{}
	}

	style := "light"
	if dark {
		style = "dark"
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(terminalWidth(w)-4),
	)
	if err != nil {
		return &markdown{}
	}
	return &markdown{renderer: r}
}

// Render returns content ready to print, always ending in a newline.
func (m *markdown) Render(content string) string {
	if m.renderer != nil {
		if out, err := m.renderer.Render(content); err == nil {
			return out
		}
	}
	if !strings.HasSuffix(content, "\n") {
		content += "\n"
	}
	return content
}

// printMessages writes a transcript.
func printMessages(w io.Writer, p palette, md *markdown, msgs []model.Message) {
	for _, m := range msgs {
		switch {
		case m.Role == model.RoleUser:
			fmt.Fprintf(w, "%s %s\n", p.User.Render(m.Role.DisplayName()+":"), m.Content)
		case m.IsFailed():
			fmt.Fprintln(w, p.Error.Render(m.Content))
		default:
			fmt.Fprintln(w, p.Bot.Render(m.Role.DisplayName()+":"))
			fmt.Fprint(w, md.Render(m.Content))
		}
	}
}
