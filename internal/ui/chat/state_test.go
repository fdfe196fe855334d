// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/jeranaias/chatdesk/internal/prefs"
)

func TestReduce(t *testing.T) {
	tests := []struct {
		name   string
		start  uiState
		events []uiEvent
		want   uiState
	}{
		{
			name:   "closing the sidebar returns focus to the composer",
			start:  uiState{SidebarOpen: true, Focus: focusSidebar},
			events: []uiEvent{{Kind: evToggleSidebar}},
			want:   uiState{SidebarOpen: false, Focus: focusComposer},
		},
		{
			name:   "focus stays on the composer while the sidebar is hidden",
			start:  uiState{},
			events: []uiEvent{{Kind: evToggleFocus}},
			want:   uiState{},
		},
		{
			name:   "focus alternates with the sidebar open",
			start:  uiState{SidebarOpen: true},
			events: []uiEvent{{Kind: evToggleFocus}},
			want:   uiState{SidebarOpen: true, Focus: focusSidebar},
		},
		{
			name:   "opening config closes help and resets its cursor",
			start:  uiState{HelpOpen: true, ConfigCursor: 1},
			events: []uiEvent{{Kind: evToggleConfig}},
			want:   uiState{ConfigOpen: true},
		},
		{
			name:   "theme menu needs the config menu",
			start:  uiState{},
			events: []uiEvent{{Kind: evToggleThemeMenu, Theme: prefs.ThemeDark}},
			want:   uiState{},
		},
		{
			name:   "theme menu starts on the current theme",
			start:  uiState{ConfigOpen: true},
			events: []uiEvent{{Kind: evToggleThemeMenu, Theme: prefs.ThemeLight}},
			want:   uiState{ConfigOpen: true, ThemeMenuOpen: true, ThemeCursor: 2},
		},
		{
			name:   "choosing a theme closes both menus",
			start:  uiState{ConfigOpen: true, ThemeMenuOpen: true, ThemeCursor: 1},
			events: []uiEvent{{Kind: evThemeChosen}},
			want:   uiState{ThemeCursor: 1},
		},
		{
			name:   "sidebar cursor wraps",
			start:  uiState{SidebarOpen: true, Focus: focusSidebar},
			events: []uiEvent{{Kind: evCursorUp, Count: 3}},
			want:   uiState{SidebarOpen: true, Focus: focusSidebar, SidebarCursor: 2},
		},
		{
			name:  "sidebar cursor moves down and wraps to the top",
			start: uiState{SidebarOpen: true, Focus: focusSidebar, SidebarCursor: 1},
			events: []uiEvent{
				{Kind: evCursorDown, Count: 3},
				{Kind: evCursorDown, Count: 3},
			},
			want: uiState{SidebarOpen: true, Focus: focusSidebar},
		},
		{
			name:   "cursor keys ignore the sidebar while the composer has focus",
			start:  uiState{SidebarOpen: true},
			events: []uiEvent{{Kind: evCursorDown, Count: 3}},
			want:   uiState{SidebarOpen: true},
		},
		{
			name:  "menu cursor clamps",
			start: uiState{ConfigOpen: true, SidebarCursor: 1, Focus: focusSidebar, SidebarOpen: true},
			events: []uiEvent{
				{Kind: evCursorDown, Count: 3},
				{Kind: evCursorDown, Count: 3},
				{Kind: evCursorDown, Count: 3},
			},
			want: uiState{ConfigOpen: true, ConfigCursor: configItemCount - 1, SidebarCursor: 1, Focus: focusSidebar, SidebarOpen: true},
		},
		{
			name:   "theme cursor clamps at the top",
			start:  uiState{ConfigOpen: true, ThemeMenuOpen: true},
			events: []uiEvent{{Kind: evCursorUp}},
			want:   uiState{ConfigOpen: true, ThemeMenuOpen: true},
		},
		{
			name:   "shrinking list pulls the cursor in",
			start:  uiState{SidebarCursor: 4},
			events: []uiEvent{{Kind: evListResized, Count: 2}},
			want:   uiState{SidebarCursor: 1},
		},
		{
			name:   "switching auth mode starts on the username",
			start:  uiState{AuthField: fieldPassword},
			events: []uiEvent{{Kind: evToggleAuthMode}},
			want:   uiState{AuthMode: authRegister},
		},
		{
			name:   "after registering the login form asks for the password",
			start:  uiState{AuthMode: authRegister},
			events: []uiEvent{{Kind: evRegistered}},
			want:   uiState{AuthField: fieldPassword},
		},
		{
			name:   "next field cycles",
			start:  uiState{},
			events: []uiEvent{{Kind: evNextField}, {Kind: evNextField}},
			want:   uiState{},
		},
		{
			name: "logout resets everything but the sidebar",
			start: uiState{
				SidebarOpen: true, Focus: focusSidebar, SidebarCursor: 2,
				ConfigOpen: true, ThemeMenuOpen: true, AuthMode: authRegister, AuthField: fieldPassword,
			},
			events: []uiEvent{{Kind: evLoggedOut}},
			want:   uiState{SidebarOpen: true},
		},
		{
			name:   "help replaces the config menu",
			start:  uiState{ConfigOpen: true, ThemeMenuOpen: true},
			events: []uiEvent{{Kind: evToggleHelp}},
			want:   uiState{HelpOpen: true},
		},
		{
			name:   "close menus",
			start:  uiState{ConfigOpen: true, ThemeMenuOpen: true, HelpOpen: true},
			events: []uiEvent{{Kind: evCloseMenus}},
			want:   uiState{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.start
			for _, ev := range tt.events {
				got = reduce(got, ev)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("reduce() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestMenuOpen(t *testing.T) {
	if (uiState{}).menuOpen() {
		t.Error("empty state should have no menu open")
	}
	if !(uiState{HelpOpen: true}).menuOpen() {
		t.Error("help counts as a menu")
	}
	if !(uiState{ConfigOpen: true}).menuOpen() {
		t.Error("config counts as a menu")
	}
}

func TestClamp(t *testing.T) {
	cases := []struct{ i, n, want int }{
		{-1, 3, 0},
		{0, 0, 0},
		{5, 3, 2},
		{1, 3, 1},
	}
	for _, c := range cases {
		if got := clamp(c.i, c.n); got != c.want {
			t.Errorf("clamp(%d, %d) = %d, want %d", c.i, c.n, got, c.want)
		}
	}
}
