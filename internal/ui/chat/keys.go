// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"github.com/charmbracelet/bubbles/key"
)

// KeyMap defines the keyboard bindings of the chat screen.
type KeyMap struct {
	Quit          key.Binding
	Send          key.Binding
	Newline       key.Binding
	NewChat       key.Binding
	ToggleSidebar key.Binding
	SwitchFocus   key.Binding
	Config        key.Binding
	Retry         key.Binding
	Speak         key.Binding
	Delete        key.Binding
	Up            key.Binding
	Down          key.Binding
	PageUp        key.Binding
	PageDown      key.Binding
	Select        key.Binding
	Back          key.Binding
	Help          key.Binding
	AuthMode      key.Binding
}

// DefaultKeyMap returns the default bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c", "ctrl+q"),
			key.WithHelp("C-c", "quit"),
		),
		Send: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("Enter", "send"),
		),
		Newline: key.NewBinding(
			key.WithKeys("alt+enter", "ctrl+j"),
			key.WithHelp("A-Enter", "new line"),
		),
		NewChat: key.NewBinding(
			key.WithKeys("ctrl+n"),
			key.WithHelp("C-n", "new chat"),
		),
		ToggleSidebar: key.NewBinding(
			key.WithKeys("ctrl+b"),
			key.WithHelp("C-b", "sidebar"),
		),
		SwitchFocus: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("Tab", "switch pane"),
		),
		Config: key.NewBinding(
			key.WithKeys("ctrl+o", "f2"),
			key.WithHelp("C-o", "settings"),
		),
		Retry: key.NewBinding(
			key.WithKeys("ctrl+r"),
			key.WithHelp("C-r", "retry"),
		),
		Speak: key.NewBinding(
			key.WithKeys("ctrl+s"),
			key.WithHelp("C-s", "speak reply"),
		),
		Delete: key.NewBinding(
			key.WithKeys("d", "delete"),
			key.WithHelp("d", "delete chat"),
		),
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("up/k", "up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("down/j", "down"),
		),
		PageUp: key.NewBinding(
			key.WithKeys("pgup"),
			key.WithHelp("PgUp", "scroll up"),
		),
		PageDown: key.NewBinding(
			key.WithKeys("pgdown"),
			key.WithHelp("PgDn", "scroll down"),
		),
		Select: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("Enter", "open"),
		),
		Back: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("Esc", "close"),
		),
		Help: key.NewBinding(
			key.WithKeys("f1"),
			key.WithHelp("F1", "help"),
		),
		AuthMode: key.NewBinding(
			key.WithKeys("ctrl+t"),
			key.WithHelp("C-t", "login/register"),
		),
	}
}

// ShortHelp returns the bindings shown in the status bar.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Send, k.NewChat, k.SwitchFocus, k.Config, k.Help, k.Quit}
}

// FullHelp returns the bindings shown in the help overlay.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Send, k.Newline, k.NewChat, k.Retry, k.Speak},
		{k.ToggleSidebar, k.SwitchFocus, k.Up, k.Down, k.Select, k.Delete},
		{k.PageUp, k.PageDown, k.Config, k.Back, k.Help, k.Quit},
	}
}
