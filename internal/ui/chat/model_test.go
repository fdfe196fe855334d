// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"net/http/httptest"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/chatdesk/internal/app"
	"github.com/jeranaias/chatdesk/internal/model"
	"github.com/jeranaias/chatdesk/internal/prefs"
	"github.com/jeranaias/chatdesk/internal/server"
	"github.com/jeranaias/chatdesk/internal/storage"
)

// =============================================================================
// HARNESS
// =============================================================================

type harness struct {
	t   *testing.T
	srv *server.Server
	app *app.App
	m   Model
}

func newHarness(t *testing.T, sidebar bool) *harness {
	t.Helper()
	srv := server.New(server.Options{})
	srv.AddUser("ana", "pw")
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	a := app.New(app.Options{
		BaseURL:     ts.URL,
		HTTPClient:  ts.Client(),
		Placeholder: "typing...",
		KV:          storage.NewMemory(),
		DetectDark:  func() bool { return false },
		Logger:      zerolog.Nop(),
	})

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	h := &harness{t: t, srv: srv, app: a}
	h.m = New(a, Options{Context: ctx, SidebarOpen: sidebar})
	t.Cleanup(h.m.Close)
	h.send(tea.WindowSizeMsg{Width: 100, Height: 30})
	return h
}

// login authenticates outside the interface and delivers the result.
func (h *harness) login() {
	h.t.Helper()
	require.NoError(h.t, h.app.Login(context.Background(), "ana", "pw"))
	h.drain()
}

func (h *harness) send(msg tea.Msg) tea.Cmd {
	next, cmd := h.m.Update(msg)
	h.m = next.(Model)
	return cmd
}

func (h *harness) key(k tea.KeyType) tea.Cmd {
	return h.send(tea.KeyMsg{Type: k})
}

func (h *harness) typeText(s string) {
	h.send(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)})
}

// exec runs an operation command to completion and applies its result and
// the latest snapshot.
func (h *harness) exec(cmd tea.Cmd) opDoneMsg {
	h.t.Helper()
	require.NotNil(h.t, cmd, "expected a command")
	done, ok := cmd().(opDoneMsg)
	require.True(h.t, ok, "expected an operation result")
	h.send(done)
	h.drain()
	return done
}

// drain applies the pending snapshot, if any.
func (h *harness) drain() {
	select {
	case s := <-h.m.updates.ch:
		h.send(SnapshotMsg(s))
	default:
	}
}

// =============================================================================
// TESTS
// =============================================================================

func TestMailboxKeepsLatest(t *testing.T) {
	b := newMailbox()
	b.publish(app.Snapshot{ActiveID: "1"})
	b.publish(app.Snapshot{ActiveID: "2"})
	b.publish(app.Snapshot{ActiveID: "3"})

	msg := b.wait(context.Background())()
	require.IsType(t, SnapshotMsg{}, msg)
	assert.Equal(t, "3", msg.(SnapshotMsg).ActiveID)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Nil(t, b.wait(ctx)())
}

func TestMailboxDropsOlderVersions(t *testing.T) {
	b := newMailbox()
	b.publish(app.Snapshot{ActiveID: "new", Version: 7})
	b.publish(app.Snapshot{ActiveID: "old", Version: 6})

	msg := b.wait(context.Background())()
	assert.Equal(t, "new", msg.(SnapshotMsg).ActiveID)

	// Already delivered, and still not superseded by an older one.
	b.publish(app.Snapshot{ActiveID: "older", Version: 5})
	select {
	case s := <-b.ch:
		t.Fatalf("stale snapshot %q delivered", s.ActiveID)
	default:
	}

	b.publish(app.Snapshot{ActiveID: "newer", Version: 8})
	msg = b.wait(context.Background())()
	assert.Equal(t, "newer", msg.(SnapshotMsg).ActiveID)
}

func TestViewBeforeResize(t *testing.T) {
	a := app.New(app.Options{
		BaseURL:    "http://127.0.0.1:1",
		KV:         storage.NewMemory(),
		DetectDark: func() bool { return true },
		Logger:     zerolog.Nop(),
	})
	m := New(a, Options{})
	defer m.Close()
	assert.Equal(t, "Loading...", m.View())
}

func TestLoginThroughForm(t *testing.T) {
	h := newHarness(t, true)
	assert.Contains(t, h.m.View(), "Log in")

	h.typeText("ana")
	assert.Nil(t, h.key(tea.KeyEnter), "enter on the username moves to the password")
	assert.Equal(t, fieldPassword, h.m.ui.AuthField)

	h.typeText("pw")
	done := h.exec(h.key(tea.KeyEnter))
	require.NoError(t, done.err)

	assert.True(t, h.m.snap.Authenticated())
	assert.False(t, h.m.authBusy)
	view := h.m.View()
	assert.Contains(t, view, "Chats")
	assert.Contains(t, view, "New chat")
}

func TestLoginFailureShowsNotice(t *testing.T) {
	h := newHarness(t, false)
	h.typeText("ana")
	h.key(tea.KeyTab)
	h.typeText("wrong")

	done := h.exec(h.key(tea.KeyEnter))
	require.Error(t, done.err)
	assert.False(t, h.m.snap.Authenticated())
	assert.NotEmpty(t, h.m.authNotice)
	assert.Contains(t, h.m.View(), h.m.authNotice)
}

func TestRegisterSwitchesBackToLogin(t *testing.T) {
	h := newHarness(t, false)
	h.key(tea.KeyCtrlT)
	assert.Equal(t, authRegister, h.m.ui.AuthMode)
	assert.Contains(t, h.m.View(), "Create account")

	h.typeText("luis")
	h.key(tea.KeyTab)
	h.typeText("secret")
	done := h.exec(h.key(tea.KeyEnter))
	require.NoError(t, done.err)

	assert.Equal(t, authLogin, h.m.ui.AuthMode)
	assert.Equal(t, fieldPassword, h.m.ui.AuthField)
	assert.Equal(t, "luis", h.m.username.Value())
	assert.Empty(t, h.m.password.Value())
	assert.Contains(t, h.m.View(), "Account created")
}

func TestSendFromComposer(t *testing.T) {
	h := newHarness(t, true)
	h.login()
	assert.Contains(t, h.m.View(), "No conversation open")

	h.typeText("hola")
	cmd := h.key(tea.KeyEnter)
	assert.Empty(t, h.m.composer.Value(), "composer clears on send")

	done := h.exec(cmd)
	require.NoError(t, done.err)
	require.Len(t, h.m.snap.Messages, 2)
	assert.Equal(t, model.RoleAssistant, h.m.snap.Messages[1].Role)
	assert.Contains(t, h.m.View(), "Recibido: hola")
}

func TestBlankSendDoesNothing(t *testing.T) {
	h := newHarness(t, false)
	h.login()
	h.typeText("   ")
	assert.Nil(t, h.key(tea.KeyEnter))
}

func TestNewChatBlockedWhileEmpty(t *testing.T) {
	h := newHarness(t, false)
	h.login()

	done := h.exec(h.key(tea.KeyCtrlN))
	require.NoError(t, done.err)
	require.True(t, h.m.snap.NewChatBlocked)

	assert.Nil(t, h.key(tea.KeyCtrlN))
	assert.Equal(t, app.ErrNewChatBlocked.Error(), h.m.flash)
	assert.Contains(t, h.m.View(), app.ErrNewChatBlocked.Error())
}

func TestSpeakWithoutReply(t *testing.T) {
	h := newHarness(t, false)
	h.login()
	assert.Nil(t, h.key(tea.KeyCtrlS))
	assert.Equal(t, app.ErrNothingToSpeak.Error(), h.m.flash)
}

func TestThemeMenu(t *testing.T) {
	h := newHarness(t, false)
	h.login()
	require.False(t, h.m.theme.IsDark)

	h.key(tea.KeyCtrlO)
	require.True(t, h.m.ui.ConfigOpen)
	assert.Contains(t, h.m.View(), "Settings")

	assert.Nil(t, h.key(tea.KeyEnter))
	require.True(t, h.m.ui.ThemeMenuOpen)
	assert.Contains(t, h.m.View(), "(current)")

	h.key(tea.KeyDown)
	done := h.exec(h.key(tea.KeyEnter))
	require.NoError(t, done.err)

	assert.Equal(t, prefs.ThemeDark, h.m.snap.Theme)
	assert.True(t, h.m.theme.IsDark)
	assert.False(t, h.m.ui.ConfigOpen)
}

func TestLogoutFromMenu(t *testing.T) {
	h := newHarness(t, true)
	h.login()

	h.key(tea.KeyCtrlO)
	h.key(tea.KeyDown)
	done := h.exec(h.key(tea.KeyEnter))
	require.NoError(t, done.err)

	assert.False(t, h.m.snap.Authenticated())
	assert.False(t, h.m.ui.ConfigOpen)
	assert.True(t, h.m.ui.SidebarOpen)
	assert.Equal(t, authLogin, h.m.ui.AuthMode)
	assert.Equal(t, fieldUsername, h.m.ui.AuthField)
	assert.Contains(t, h.m.View(), "Log in")
}

func TestSidebarLoadAndDelete(t *testing.T) {
	h := newHarness(t, true)
	h.srv.Seed("ana", "Primera", model.NewUserMessage("uno"), model.NewAssistantMessage("respuesta uno"))
	h.srv.Seed("ana", "Segunda", model.NewUserMessage("dos"), model.NewAssistantMessage("respuesta dos"))
	h.login()

	require.Len(t, h.m.snap.Conversations, 2)
	view := h.m.View()
	assert.Contains(t, view, "Primera")
	assert.Contains(t, view, "Segunda")

	// Pick whichever conversation is not already open.
	row := 1
	if h.m.snap.Conversations[0].ID == h.m.snap.ActiveID {
		row = 2
	}
	target := h.m.snap.Conversations[row-1]

	h.key(tea.KeyTab)
	require.Equal(t, focusSidebar, h.m.ui.Focus)
	for i := 0; i < row; i++ {
		h.key(tea.KeyDown)
	}
	require.Equal(t, row, h.m.ui.SidebarCursor)

	done := h.exec(h.key(tea.KeyEnter))
	require.NoError(t, done.err)
	assert.Equal(t, target.ID, h.m.snap.ActiveID)
	assert.Equal(t, focusComposer, h.m.ui.Focus, "loading returns focus to the composer")

	h.key(tea.KeyTab)
	done = h.exec(h.send(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("d")}))
	require.NoError(t, done.err)
	assert.Empty(t, h.m.snap.ActiveID)
	assert.Len(t, h.m.snap.Conversations, 1)
	assert.Less(t, h.m.ui.SidebarCursor, h.m.sidebarRows())
}

func TestHelpOverlay(t *testing.T) {
	h := newHarness(t, false)
	h.login()

	h.key(tea.KeyF1)
	require.True(t, h.m.ui.HelpOpen)
	assert.Contains(t, h.m.View(), "Keys")

	h.key(tea.KeyEsc)
	assert.False(t, h.m.ui.HelpOpen)
}

func TestQuit(t *testing.T) {
	h := newHarness(t, false)
	cmd := h.key(tea.KeyCtrlC)
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}
