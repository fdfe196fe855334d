// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/pkg/errors"

	"github.com/jeranaias/chatdesk/internal/app"
	"github.com/jeranaias/chatdesk/internal/conversation"
	"github.com/jeranaias/chatdesk/internal/model"
	"github.com/jeranaias/chatdesk/internal/prefs"
	"github.com/jeranaias/chatdesk/internal/ui/styles"
)

// Update handles messages and updates the model. Application calls that
// change state run in commands, never here.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		return m.handleResize(msg)

	case SnapshotMsg:
		return m.handleSnapshot(app.Snapshot(msg))

	case opDoneMsg:
		return m.handleOpDone(msg)

	case spinner.TickMsg:
		if !m.snap.Busy() {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		m.refreshViewport(false)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m.updateInputs(msg)
}

// =============================================================================
// STATE CHANGES
// =============================================================================

func (m Model) handleResize(msg tea.WindowSizeMsg) (tea.Model, tea.Cmd) {
	m.width = msg.Width
	m.height = msg.Height
	m.theme.SetSize(m.width, m.height)
	m.layout()
	m.refreshViewport(true)
	return m, nil
}

func (m Model) handleSnapshot(s app.Snapshot) (tea.Model, tea.Cmd) {
	if s.Version != 0 && s.Version < m.snap.Version {
		return m, m.updates.wait(m.ctx)
	}
	prev := m.snap
	m.snap = s
	cmds := []tea.Cmd{m.updates.wait(m.ctx)}

	if s.Dark != prev.Dark {
		m.theme = styles.NewTheme(s.Dark)
		m.theme.SetSize(m.width, m.height)
		m.markdown.reset()
	}

	switch {
	case prev.Authenticated() && !s.Authenticated():
		m.dispatch(uiEvent{Kind: evLoggedOut})
		m.password.Reset()
		m.composer.Reset()
		m.flash = ""
		m.notice = ""
	case !prev.Authenticated() && s.Authenticated():
		m.password.Reset()
		m.authNotice = ""
		m.syncFocus()
	}
	m.dispatch(uiEvent{Kind: evListResized})

	if s.Busy() && !prev.Busy() {
		cmds = append(cmds, m.spinner.Tick)
	}

	changed := len(s.Messages) != m.lastCount || s.ActiveID != prev.ActiveID
	m.lastCount = len(s.Messages)
	m.layout()
	m.refreshViewport(changed)
	return m, tea.Batch(cmds...)
}

func (m Model) handleOpDone(msg opDoneMsg) (tea.Model, tea.Cmd) {
	if msg.op == opLogin || msg.op == opRegister {
		m.authBusy = false
	}

	if msg.err != nil {
		if errors.Is(msg.err, app.ErrSendCancelled) || errors.Is(msg.err, conversation.ErrStaleLoad) {
			return m, nil
		}
		switch msg.op {
		case opLogin, opRegister:
			m.authNotice = msg.err.Error()
		default:
			m.flash = msg.err.Error()
		}
		return m, nil
	}

	m.flash = ""
	switch msg.op {
	case opRegister:
		m.dispatch(uiEvent{Kind: evRegistered})
		m.password.Reset()
		m.authNotice = "Account created. Log in to continue."
	case opNew, opLoad:
		m.dispatch(uiEvent{Kind: evFocusComposer})
	}
	m.notice = msg.notice
	return m, nil
}

// =============================================================================
// KEYS
// =============================================================================

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Quit) {
		return m, tea.Quit
	}
	if !m.snap.Authenticated() {
		return m.handleAuthKey(msg)
	}
	if m.ui.HelpOpen {
		if key.Matches(msg, m.keys.Back, m.keys.Help) {
			m.dispatch(uiEvent{Kind: evToggleHelp})
		}
		return m, nil
	}
	if m.ui.ConfigOpen {
		return m.handleMenuKey(msg)
	}

	switch {
	case key.Matches(msg, m.keys.Config):
		m.dispatch(uiEvent{Kind: evToggleConfig})
		return m, nil
	case key.Matches(msg, m.keys.Help):
		m.dispatch(uiEvent{Kind: evToggleHelp})
		return m, nil
	case key.Matches(msg, m.keys.ToggleSidebar):
		m.dispatch(uiEvent{Kind: evToggleSidebar})
		m.layout()
		m.refreshViewport(false)
		return m, nil
	case key.Matches(msg, m.keys.SwitchFocus):
		m.dispatch(uiEvent{Kind: evToggleFocus})
		return m, nil
	case key.Matches(msg, m.keys.NewChat):
		return m, m.newChat()
	case key.Matches(msg, m.keys.Retry):
		return m, m.retry()
	case key.Matches(msg, m.keys.Speak):
		return m, m.speak()
	case key.Matches(msg, m.keys.PageUp, m.keys.PageDown):
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}

	if m.ui.Focus == focusSidebar {
		return m.handleSidebarKey(msg)
	}
	if key.Matches(msg, m.keys.Send) {
		return m, m.send()
	}
	return m.updateInputs(msg)
}

func (m Model) handleAuthKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.AuthMode):
		m.dispatch(uiEvent{Kind: evToggleAuthMode})
		m.authNotice = ""
		return m, nil
	case key.Matches(msg, m.keys.SwitchFocus):
		m.dispatch(uiEvent{Kind: evNextField})
		return m, nil
	case key.Matches(msg, m.keys.Send):
		if m.ui.AuthField == fieldUsername && m.password.Value() == "" {
			m.dispatch(uiEvent{Kind: evNextField})
			return m, nil
		}
		return m, m.submitAuth()
	}
	return m.updateInputs(msg)
}

func (m Model) handleMenuKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Up):
		m.dispatch(uiEvent{Kind: evCursorUp})
	case key.Matches(msg, m.keys.Down):
		m.dispatch(uiEvent{Kind: evCursorDown})
	case key.Matches(msg, m.keys.Back):
		if m.ui.ThemeMenuOpen {
			m.dispatch(uiEvent{Kind: evToggleThemeMenu, Theme: m.snap.Theme})
		} else {
			m.dispatch(uiEvent{Kind: evCloseMenus})
		}
	case key.Matches(msg, m.keys.Config):
		m.dispatch(uiEvent{Kind: evCloseMenus})
	case key.Matches(msg, m.keys.Select):
		return m.selectMenuItem()
	}
	return m, nil
}

func (m Model) selectMenuItem() (tea.Model, tea.Cmd) {
	a := m.app
	if m.ui.ThemeMenuOpen {
		theme := prefs.Themes[clamp(m.ui.ThemeCursor, len(prefs.Themes))]
		m.dispatch(uiEvent{Kind: evThemeChosen})
		return m, run(opTheme, func() error { return a.SetTheme(theme) })
	}

	switch m.ui.ConfigCursor {
	case configItemTheme:
		m.dispatch(uiEvent{Kind: evToggleThemeMenu, Theme: m.snap.Theme})
		return m, nil
	case configItemLogout:
		m.dispatch(uiEvent{Kind: evCloseMenus})
		return m, run(opLogout, a.Logout)
	}
	return m, nil
}

func (m Model) handleSidebarKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Up):
		m.dispatch(uiEvent{Kind: evCursorUp})
	case key.Matches(msg, m.keys.Down):
		m.dispatch(uiEvent{Kind: evCursorDown})
	case key.Matches(msg, m.keys.Back):
		m.dispatch(uiEvent{Kind: evFocusComposer})
	case key.Matches(msg, m.keys.Select):
		row := m.ui.SidebarCursor
		if row == 0 {
			return m, m.newChat()
		}
		if row > len(m.snap.Conversations) {
			return m, nil
		}
		return m, m.load(m.snap.Conversations[row-1].ID)
	case key.Matches(msg, m.keys.Delete):
		row := m.ui.SidebarCursor
		if row == 0 || row > len(m.snap.Conversations) {
			return m, nil
		}
		id := m.snap.Conversations[row-1].ID
		a, ctx := m.app, m.ctx
		return m, run(opDelete, func() error { return a.DeleteConversation(ctx, id) })
	}
	return m, nil
}

// updateInputs forwards msg to whichever text input has focus.
func (m Model) updateInputs(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch {
	case !m.snap.Authenticated() && m.ui.AuthField == fieldUsername:
		m.username, cmd = m.username.Update(msg)
	case !m.snap.Authenticated():
		m.password, cmd = m.password.Update(msg)
	case m.ui.Focus == focusComposer && !m.ui.menuOpen():
		m.composer, cmd = m.composer.Update(msg)
	}
	return m, cmd
}

// =============================================================================
// ACTIONS
// =============================================================================

func (m *Model) send() tea.Cmd {
	text := m.composer.Value()
	if strings.TrimSpace(text) == "" {
		return nil
	}
	if m.snap.Busy() {
		m.flash = conversation.ErrBusy.Error()
		return nil
	}
	m.composer.Reset()
	m.flash = ""
	a, ctx := m.app, m.ctx
	return run(opSend, func() error { return a.SendText(ctx, text) })
}

func (m *Model) newChat() tea.Cmd {
	if m.snap.NewChatBlocked {
		m.flash = app.ErrNewChatBlocked.Error()
		return nil
	}
	a, ctx := m.app, m.ctx
	return run(opNew, func() error {
		_, err := a.NewConversation(ctx)
		return err
	})
}

func (m *Model) load(id string) tea.Cmd {
	if m.snap.Busy() {
		m.flash = conversation.ErrBusy.Error()
		return nil
	}
	a, ctx := m.app, m.ctx
	return run(opLoad, func() error { return a.LoadConversation(ctx, id) })
}

func (m *Model) retry() tea.Cmd {
	if !m.snap.CanRetry {
		return nil
	}
	a, ctx := m.app, m.ctx
	return run(opRetry, func() error { return a.Retry(ctx) })
}

func (m *Model) speak() tea.Cmd {
	if !hasReply(m.snap.Messages) {
		m.flash = app.ErrNothingToSpeak.Error()
		return nil
	}
	m.notice = "Synthesizing speech..."
	a, ctx := m.app, m.ctx
	return runNotice(opSpeak, func() (string, error) {
		file, err := a.SpeakLast(ctx)
		if err != nil {
			return "", err
		}
		return "Audio: " + file, nil
	})
}

func (m *Model) submitAuth() tea.Cmd {
	if m.authBusy {
		return nil
	}
	username := strings.TrimSpace(m.username.Value())
	password := m.password.Value()
	m.authBusy = true
	m.authNotice = ""

	a, ctx := m.app, m.ctx
	if m.ui.AuthMode == authRegister {
		return run(opRegister, func() error { return a.Register(ctx, username, password) })
	}
	return run(opLogin, func() error { return a.Login(ctx, username, password) })
}

func hasReply(msgs []model.Message) bool {
	for _, msg := range msgs {
		if msg.Role == model.RoleAssistant && !msg.IsPlaceholder() && !msg.IsFailed() {
			return true
		}
	}
	return false
}
