// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"strings"

	"github.com/charmbracelet/glamour"

	"github.com/jeranaias/chatdesk/internal/model"
	"github.com/jeranaias/chatdesk/internal/ui/styles"
)

// Layout constants. They must match what View renders.
const (
	headerHeight   = 1
	statusHeight   = 1
	composerHeight = 3
	composerChrome = 2 // rounded border, top and bottom
	sidebarWidth   = 30
	sidebarChrome  = 3 // padding both sides plus the right border
	minMainWidth   = 20
)

// =============================================================================
// MARKDOWN
// =============================================================================

// markdownCache renders assistant replies once per width and theme.
type markdownCache struct {
	enabled  bool
	dark     bool
	width    int
	renderer *glamour.TermRenderer
	rendered map[string]string
}

func newMarkdownCache(enabled bool) *markdownCache {
	return &markdownCache{enabled: enabled, rendered: make(map[string]string)}
}

func (c *markdownCache) reset() {
	c.renderer = nil
	c.rendered = make(map[string]string)
}

// render returns content as terminal markdown, or unchanged when rendering
// is off or fails.
func (c *markdownCache) render(content string, width int, dark bool) string {
	if !c.enabled || width < 10 {
		return content
	}
	if c.renderer == nil || c.width != width || c.dark != dark {
		style := "light"
		if dark {
			style = "dark"
		}
		r, err := glamour.NewTermRenderer(
			glamour.WithStandardStyle(style),
			glamour.WithWordWrap(width),
		)
		if err != nil {
			c.enabled = false
			return content
		}
		c.renderer, c.width, c.dark = r, width, dark
		c.rendered = make(map[string]string)
	}

	if out, ok := c.rendered[content]; ok {
		return out
	}
	out, err := c.renderer.Render(content)
	if err != nil {
		return content
	}
	out = strings.Trim(out, "\n")
	c.rendered[content] = out
	return out
}

// =============================================================================
// LAYOUT
// =============================================================================

// showSidebar reports whether the sidebar fits and is open.
func (m Model) showSidebar() bool {
	return m.ui.SidebarOpen && m.width-sidebarWidth >= minMainWidth
}

// mainWidth is the width of the messages column.
func (m Model) mainWidth() int {
	w := m.width
	if m.showSidebar() {
		w -= sidebarWidth
	}
	if w < minMainWidth {
		w = minMainWidth
	}
	return w
}

// layout sizes the widgets to the window.
func (m *Model) layout() {
	if m.width == 0 || m.height == 0 {
		return
	}
	w := m.mainWidth()
	m.composer.SetWidth(w - 4)

	h := m.height - headerHeight - statusHeight - composerHeight - composerChrome
	if h < 1 {
		h = 1
	}
	m.viewport.Width = w
	m.viewport.Height = h

	m.username.Width = 30
	m.password.Width = 30
}

// refreshViewport re-renders the transcript. With toBottom the view
// follows the newest message.
func (m *Model) refreshViewport(toBottom bool) {
	m.viewport.SetContent(m.renderMessages(m.viewport.Width))
	if toBottom {
		m.viewport.GotoBottom()
	}
}

// =============================================================================
// MESSAGES
// =============================================================================

func (m Model) renderMessages(width int) string {
	if m.snap.ActiveID == "" {
		return m.theme.EmptyState.Render("No conversation open. Type a message to start one,\nor pick a conversation from the sidebar.")
	}
	if len(m.snap.Messages) == 0 {
		return m.theme.EmptyState.Render("Empty conversation. Say hello.")
	}

	bubbleWidth := width - 6
	if bubbleWidth < 10 {
		bubbleWidth = 10
	}

	var b strings.Builder
	for i, msg := range m.snap.Messages {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(m.renderMessage(msg, bubbleWidth))
	}
	return b.String()
}

func (m Model) renderMessage(msg model.Message, width int) string {
	t := m.theme
	switch {
	case msg.Role == model.RoleUser:
		return t.UserLabel.Render(msg.Role.DisplayName()) + "\n" +
			t.UserBubble.Width(width).Render(msg.Content)

	case msg.IsPlaceholder():
		return t.AssistantLabel.Render(msg.Role.DisplayName()) + "\n" +
			t.Placeholder.Render(m.spinner.View()+" "+msg.Content)

	case msg.IsFailed():
		text := styles.StatusIndicators.Error + " " + msg.Content
		if m.snap.CanRetry {
			text += "  (C-r to retry)"
		}
		return t.AssistantLabel.Render(msg.Role.DisplayName()) + "\n" + t.Failed.Render(text)

	default:
		body := m.markdown.render(msg.Content, width-2, t.IsDark)
		return t.AssistantLabel.Render(msg.Role.DisplayName()) + "\n" +
			t.AssistantBubble.Width(width).Render(body)
	}
}
