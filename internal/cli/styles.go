// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/chatdesk/internal/ui/styles"
)

// palette is the set of styles shared by every command. It is bound to one
// output stream so piped output stays free of escape codes.
type palette struct {
	Title   lipgloss.Style
	Label   lipgloss.Style
	Value   lipgloss.Style
	Success lipgloss.Style
	Error   lipgloss.Style
	Warning lipgloss.Style
	Dim     lipgloss.Style
	User    lipgloss.Style
	Bot     lipgloss.Style
	Prompt  lipgloss.Style
}

func newPalette(w io.Writer, dark bool) palette {
	r := lipgloss.NewRenderer(w)
	r.SetColorProfile(colorProfile(w))
	r.SetHasDarkBackground(dark)
	c := styles.ColorsFor(dark)

	return palette{
		Title:   r.NewStyle().Bold(true).Foreground(c.Primary),
		Label:   r.NewStyle().Foreground(c.TextMuted).Width(14),
		Value:   r.NewStyle().Foreground(c.Text),
		Success: r.NewStyle().Bold(true).Foreground(c.Success),
		Error:   r.NewStyle().Bold(true).Foreground(c.Error),
		Warning: r.NewStyle().Foreground(c.Warning),
		Dim:     r.NewStyle().Foreground(c.TextMuted),
		User:    r.NewStyle().Bold(true).Foreground(c.User),
		Bot:     r.NewStyle().Bold(true).Foreground(c.Assistant),
		Prompt:  r.NewStyle().Bold(true).Foreground(c.Primary),
	}
}

// field prints an aligned "label value" line.
func (p palette) field(w io.Writer, label string, value interface{}) {
	fmt.Fprintf(w, "%s %s\n", p.Label.Render(label), p.Value.Render(fmt.Sprint(value)))
}
