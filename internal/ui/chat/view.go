// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/chatdesk/internal/prefs"
	"github.com/jeranaias/chatdesk/internal/session"
	"github.com/jeranaias/chatdesk/internal/ui/styles"
	"github.com/jeranaias/chatdesk/internal/util"
)

// View renders the whole screen.
func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}
	if !m.snap.Authenticated() {
		return m.renderAuth()
	}

	bodyHeight := m.height - headerHeight - statusHeight
	main := m.renderMain(bodyHeight)

	body := main
	if m.showSidebar() {
		body = lipgloss.JoinHorizontal(lipgloss.Top, m.renderSidebar(bodyHeight), main)
	}
	return lipgloss.JoinVertical(lipgloss.Left, m.renderHeader(), body, m.renderStatusBar())
}

// =============================================================================
// HEADER AND STATUS BAR
// =============================================================================

func (m Model) renderHeader() string {
	t := m.theme
	title := t.HeaderTitle.Render("chatdesk")

	sub := ""
	if m.snap.ActiveTitle != "" {
		sub = m.snap.ActiveTitle
	}
	if m.snap.Credential == session.CredentialUnverified {
		sub += "  (session not verified yet)"
	}
	room := m.width - lipgloss.Width(title) - 4
	if room > 0 && sub != "" {
		title += "  " + t.HeaderSubtitle.Render(util.TruncateWidth(sub, room))
	}
	return t.Header.Width(m.width).MaxHeight(headerHeight).Render(title)
}

func (m Model) renderStatusBar() string {
	t := m.theme
	var left string
	switch {
	case m.flash != "":
		left = t.StatusError.Render(styles.StatusIndicators.Error + " " + m.flash)
	case m.snap.LastError != nil:
		left = t.StatusError.Render(styles.StatusIndicators.Error + " " + m.snap.LastError.Error())
	case m.snap.Busy():
		left = t.StatusBusy.Render(m.spinner.View() + " waiting for reply")
	case m.notice != "":
		left = t.StatusHint.Render(m.notice)
	}

	right := t.StatusHint.Render(m.help.ShortHelpView(m.keys.ShortHelp()))
	gap := m.width - lipgloss.Width(left) - lipgloss.Width(right) - 2
	if gap < 1 {
		right = ""
		gap = m.width - lipgloss.Width(left) - 2
		if gap < 0 {
			left = util.TruncateWidth(left, m.width-2)
			gap = 0
		}
	}
	line := left + strings.Repeat(" ", gap) + right
	return t.StatusBar.Width(m.width).MaxHeight(statusHeight).Render(line)
}

// =============================================================================
// SIDEBAR
// =============================================================================

func (m Model) renderSidebar(height int) string {
	t := m.theme
	inner := sidebarWidth - sidebarChrome
	focused := m.ui.Focus == focusSidebar

	row := func(i int, text string, style lipgloss.Style) string {
		prefix := "  "
		if focused && i == m.ui.SidebarCursor {
			prefix = styles.BoxChars.Pointer + " "
			style = t.SidebarCursor
		}
		return style.Render(util.PadWidth(prefix+util.TruncateWidth(text, inner-2), inner))
	}

	lines := []string{t.SidebarTitle.Render("Chats")}

	newStyle := t.SidebarItem
	if m.snap.NewChatBlocked {
		newStyle = newStyle.Faint(true)
	}
	lines = append(lines, row(0, "+ New chat", newStyle))

	// Keep the cursor visible when the list is longer than the pane.
	avail := height - len(lines) - 2
	first := 0
	if avail > 0 && m.ui.SidebarCursor > avail {
		first = m.ui.SidebarCursor - avail
	}
	for i, c := range m.snap.Conversations {
		if i < first {
			continue
		}
		if avail > 0 && i-first >= avail {
			break
		}
		style := t.SidebarItem
		if c.ID == m.snap.ActiveID {
			style = t.SidebarActive
		}
		lines = append(lines, row(i+1, util.FirstLine(c.DisplayTitle()), style))
	}
	if len(m.snap.Conversations) == 0 {
		lines = append(lines, t.EmptyState.UnsetPadding().Render("  no chats yet"))
	}

	return t.Sidebar.
		Width(sidebarWidth - 1).
		Height(height).
		MaxHeight(height).
		Render(strings.Join(lines, "\n"))
}

// =============================================================================
// MAIN COLUMN
// =============================================================================

func (m Model) renderMain(height int) string {
	width := m.mainWidth()
	switch {
	case m.ui.HelpOpen:
		return m.placeOverlay(width, height, m.renderHelp())
	case m.ui.ConfigOpen:
		return m.placeOverlay(width, height, m.renderConfigMenu())
	}
	return lipgloss.JoinVertical(lipgloss.Left, m.viewport.View(), m.renderComposer(width))
}

func (m Model) renderComposer(width int) string {
	style := m.theme.InputContainer
	if m.snap.Busy() || m.ui.Focus != focusComposer {
		style = m.theme.InputDisabled
	}
	return style.Width(width - 2).Render(m.composer.View())
}

func (m Model) placeOverlay(width, height int, box string) string {
	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, box)
}

func (m Model) renderConfigMenu() string {
	t := m.theme
	item := func(selected bool, text string) string {
		if selected {
			return t.MenuSelected.Render(" " + text + " ")
		}
		return t.MenuItem.Render(" " + text + " ")
	}

	lines := []string{t.MenuTitle.Render("Settings")}
	onConfig := !m.ui.ThemeMenuOpen
	lines = append(lines,
		item(onConfig && m.ui.ConfigCursor == configItemTheme, fmt.Sprintf("Theme: %s", themeLabel(m.snap.Theme))))

	if m.ui.ThemeMenuOpen {
		for i, th := range prefs.Themes {
			label := "    " + themeLabel(th)
			if th == m.snap.Theme {
				label += " (current)"
			}
			lines = append(lines, item(i == m.ui.ThemeCursor, label))
		}
	}

	lines = append(lines,
		t.StatusHint.UnsetBackground().Render(strings.Repeat(styles.BoxChars.Horizontal, 24)),
		item(onConfig && m.ui.ConfigCursor == configItemLogout, "Log out"),
		t.FormHint.Render("Enter select · Esc close"),
	)
	return t.Menu.Render(strings.Join(lines, "\n"))
}

func (m Model) renderHelp() string {
	h := m.help
	h.ShowAll = true
	return m.theme.Menu.Render(m.theme.MenuTitle.Render("Keys") + "\n" + h.View(m.keys))
}

func themeLabel(t prefs.Theme) string {
	switch t {
	case prefs.ThemeDark:
		return "Dark"
	case prefs.ThemeLight:
		return "Light"
	default:
		return "System"
	}
}

// =============================================================================
// AUTH SCREEN
// =============================================================================

func (m Model) renderAuth() string {
	t := m.theme
	title, action, toggle := "Log in", "Enter to log in", "C-t to create an account"
	if m.ui.AuthMode == authRegister {
		title, action, toggle = "Create account", "Enter to register", "C-t to log in instead"
	}

	lines := []string{
		t.FormTitle.Render(title),
		t.FormLabel.Render("Username") + " " + m.username.View(),
		t.FormLabel.Render("Password") + " " + m.password.View(),
	}
	switch {
	case m.authBusy:
		lines = append(lines, "", t.FormHint.Render("Please wait..."))
	case m.authNotice != "":
		lines = append(lines, "", t.FormError.Render(m.authNotice))
	}
	lines = append(lines, t.FormHint.Render(action+" · Tab next field · "+toggle+" · C-c quit"))

	form := t.Form.Render(strings.Join(lines, "\n"))
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, form)
}
