// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import "github.com/jeranaias/chatdesk/internal/prefs"

// =============================================================================
// UI STATE
// =============================================================================

// focus is the pane that receives keys on the chat screen.
type focus int

const (
	focusComposer focus = iota
	focusSidebar
)

// authMode selects between the login and register forms.
type authMode int

const (
	authLogin authMode = iota
	authRegister
)

// authField is the focused input on the auth screen.
type authField int

const (
	fieldUsername authField = iota
	fieldPassword
)

// Config menu entries, in display order.
const (
	configItemTheme = iota
	configItemLogout
	configItemCount
)

// uiState holds every presentation flag of the interface. It is changed only
// by reduce.
type uiState struct {
	SidebarOpen   bool
	Focus         focus
	SidebarCursor int // 0 is the "new chat" row, conversations follow

	ConfigOpen    bool
	ConfigCursor  int
	ThemeMenuOpen bool
	ThemeCursor   int

	AuthMode  authMode
	AuthField authField

	HelpOpen bool
}

func initialState(sidebarOpen bool) uiState {
	return uiState{SidebarOpen: sidebarOpen}
}

// menuOpen reports whether a popup owns the keyboard.
func (s uiState) menuOpen() bool {
	return s.ConfigOpen || s.HelpOpen
}

// =============================================================================
// EVENTS
// =============================================================================

// eventKind names a UI transition.
type eventKind int

const (
	evToggleSidebar eventKind = iota
	evToggleFocus
	evFocusComposer
	evToggleConfig
	evCloseMenus
	evToggleThemeMenu
	evThemeChosen
	evCursorUp
	evCursorDown
	evListResized
	evToggleAuthMode
	evRegistered
	evNextField
	evLoggedOut
	evToggleHelp
)

// uiEvent is one input to reduce. Count is the length of the sidebar list for
// cursor events; Theme is the current preference for evToggleThemeMenu.
type uiEvent struct {
	Kind  eventKind
	Count int
	Theme prefs.Theme
}

// =============================================================================
// REDUCER
// =============================================================================

// reduce returns the state after ev. It has no side effects.
func reduce(s uiState, ev uiEvent) uiState {
	switch ev.Kind {
	case evToggleSidebar:
		s.SidebarOpen = !s.SidebarOpen
		if !s.SidebarOpen {
			s.Focus = focusComposer
		}

	case evToggleFocus:
		if s.Focus == focusSidebar || !s.SidebarOpen {
			s.Focus = focusComposer
		} else {
			s.Focus = focusSidebar
		}

	case evFocusComposer:
		s.Focus = focusComposer

	case evToggleConfig:
		s.ConfigOpen = !s.ConfigOpen
		s.ThemeMenuOpen = false
		s.ConfigCursor = configItemTheme
		s.HelpOpen = false

	case evCloseMenus:
		s.ConfigOpen = false
		s.ThemeMenuOpen = false
		s.HelpOpen = false

	case evToggleThemeMenu:
		if !s.ConfigOpen {
			return s
		}
		s.ThemeMenuOpen = !s.ThemeMenuOpen
		s.ThemeCursor = themeIndex(ev.Theme)

	case evThemeChosen:
		s.ConfigOpen = false
		s.ThemeMenuOpen = false

	case evCursorUp:
		s = moveCursor(s, -1, ev.Count)

	case evCursorDown:
		s = moveCursor(s, 1, ev.Count)

	case evListResized:
		s.SidebarCursor = clamp(s.SidebarCursor, ev.Count)

	case evToggleAuthMode:
		if s.AuthMode == authLogin {
			s.AuthMode = authRegister
		} else {
			s.AuthMode = authLogin
		}
		s.AuthField = fieldUsername

	case evRegistered:
		s.AuthMode = authLogin
		s.AuthField = fieldPassword

	case evNextField:
		if s.AuthField == fieldUsername {
			s.AuthField = fieldPassword
		} else {
			s.AuthField = fieldUsername
		}

	case evLoggedOut:
		s.ConfigOpen = false
		s.ThemeMenuOpen = false
		s.HelpOpen = false
		s.Focus = focusComposer
		s.SidebarCursor = 0
		s.AuthMode = authLogin
		s.AuthField = fieldUsername

	case evToggleHelp:
		s.HelpOpen = !s.HelpOpen
		if s.HelpOpen {
			s.ConfigOpen = false
			s.ThemeMenuOpen = false
		}
	}
	return s
}

// moveCursor moves whichever list owns the keyboard. Sidebar rows wrap; menu
// rows do not.
func moveCursor(s uiState, delta, sidebarCount int) uiState {
	switch {
	case s.ThemeMenuOpen:
		s.ThemeCursor = clamp(s.ThemeCursor+delta, len(prefs.Themes))
	case s.ConfigOpen:
		s.ConfigCursor = clamp(s.ConfigCursor+delta, configItemCount)
	case s.Focus == focusSidebar && sidebarCount > 0:
		s.SidebarCursor = (s.SidebarCursor + delta + sidebarCount) % sidebarCount
	}
	return s
}

func clamp(i, n int) int {
	if n <= 0 || i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}

func themeIndex(t prefs.Theme) int {
	for i, candidate := range prefs.Themes {
		if candidate == t {
			return i
		}
	}
	return 0
}
