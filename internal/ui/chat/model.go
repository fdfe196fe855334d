// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/chatdesk/internal/app"
	"github.com/jeranaias/chatdesk/internal/ui/styles"
)

// Options configures New.
type Options struct {
	// Context bounds every background call. Defaults to context.Background.
	Context context.Context

	SidebarOpen    bool
	RenderMarkdown bool
}

// Model is the Bubble Tea model of the full-screen interface. It owns only
// presentation state; everything else is read from application snapshots.
type Model struct {
	app  *app.App
	ctx  context.Context
	snap app.Snapshot
	ui   uiState

	updates     *mailbox
	unsubscribe func()

	// Styling
	theme    *styles.Theme
	markdown *markdownCache
	keys     KeyMap

	// Dimensions
	width  int
	height int

	// Widgets
	viewport viewport.Model
	composer textarea.Model
	username textinput.Model
	password textinput.Model
	spinner  spinner.Model
	help     help.Model

	// Transient feedback
	flash      string
	notice     string
	authBusy   bool
	authNotice string
	lastCount  int
}

// New creates the interface for a. It subscribes to a immediately; call
// Close when the program has exited.
func New(a *app.App, opts Options) Model {
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}

	composer := textarea.New()
	composer.Placeholder = "Type a message..."
	composer.ShowLineNumbers = false
	composer.Prompt = ""
	composer.CharLimit = 8000
	composer.SetHeight(composerHeight)
	composer.KeyMap.InsertNewline.SetKeys("alt+enter", "ctrl+j")

	username := textinput.New()
	username.Placeholder = "username"
	username.CharLimit = 128
	username.Prompt = ""

	password := textinput.New()
	password.Placeholder = "password"
	password.CharLimit = 256
	password.Prompt = ""
	password.EchoMode = textinput.EchoPassword
	password.EchoCharacter = '•'

	sp := spinner.New()
	sp.Spinner = spinner.Spinner{
		Frames: styles.LineSpinner.Frames,
		FPS:    styles.LineSpinner.Duration(),
	}

	snap := a.Snapshot()
	m := Model{
		app:      a,
		ctx:      ctx,
		snap:     snap,
		ui:       initialState(opts.SidebarOpen),
		updates:  newMailbox(),
		theme:    styles.NewTheme(snap.Dark),
		markdown: newMarkdownCache(opts.RenderMarkdown),
		keys:     DefaultKeyMap(),
		viewport: viewport.New(80, 20),
		composer: composer,
		username: username,
		password: password,
		spinner:  sp,
		help:     help.New(),
	}
	m.unsubscribe = a.Subscribe(m.updates.publish)
	m.lastCount = len(snap.Messages)
	m.syncFocus()
	return m
}

// Close stops delivery of application snapshots.
func (m Model) Close() {
	if m.unsubscribe != nil {
		m.unsubscribe()
	}
}

// Init starts listening for snapshots.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.updates.wait(m.ctx), textarea.Blink}
	if m.snap.Busy() {
		cmds = append(cmds, m.spinner.Tick)
	}
	return tea.Batch(cmds...)
}

// sidebarRows is the number of selectable sidebar rows.
func (m Model) sidebarRows() int {
	return len(m.snap.Conversations) + 1
}

// dispatch applies ev to the UI state.
func (m *Model) dispatch(ev uiEvent) {
	if ev.Count == 0 {
		ev.Count = m.sidebarRows()
	}
	m.ui = reduce(m.ui, ev)
	m.syncFocus()
}

// syncFocus points the text cursor at the input that receives keys.
func (m *Model) syncFocus() {
	if !m.snap.Authenticated() {
		m.composer.Blur()
		if m.ui.AuthField == fieldUsername {
			m.username.Focus()
			m.password.Blur()
		} else {
			m.password.Focus()
			m.username.Blur()
		}
		return
	}

	m.username.Blur()
	m.password.Blur()
	if m.ui.Focus == focusComposer && !m.ui.menuOpen() {
		m.composer.Focus()
	} else {
		m.composer.Blur()
	}
}
