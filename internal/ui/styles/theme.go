// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"github.com/charmbracelet/lipgloss"
)

// Theme holds every style the full-screen interface uses. Build a new one
// whenever the resolved dark flag changes.
type Theme struct {
	IsDark bool
	Colors Colors

	// Layout dimensions
	Width  int
	Height int

	// ==========================================================================
	// HEADER
	// ==========================================================================

	Header         lipgloss.Style
	HeaderTitle    lipgloss.Style
	HeaderSubtitle lipgloss.Style

	// ==========================================================================
	// SIDEBAR
	// ==========================================================================

	Sidebar       lipgloss.Style
	SidebarTitle  lipgloss.Style
	SidebarItem   lipgloss.Style
	SidebarActive lipgloss.Style
	SidebarCursor lipgloss.Style

	// ==========================================================================
	// MESSAGES
	// ==========================================================================

	UserLabel       lipgloss.Style
	UserBubble      lipgloss.Style
	AssistantLabel  lipgloss.Style
	AssistantBubble lipgloss.Style
	Placeholder     lipgloss.Style
	Failed          lipgloss.Style
	EmptyState      lipgloss.Style

	// ==========================================================================
	// INPUT
	// ==========================================================================

	InputContainer lipgloss.Style
	InputPrompt    lipgloss.Style
	InputDisabled  lipgloss.Style

	// ==========================================================================
	// STATUS BAR
	// ==========================================================================

	StatusBar   lipgloss.Style
	StatusError lipgloss.Style
	StatusHint  lipgloss.Style
	StatusBusy  lipgloss.Style

	// ==========================================================================
	// MENUS AND FORMS
	// ==========================================================================

	Menu         lipgloss.Style
	MenuTitle    lipgloss.Style
	MenuItem     lipgloss.Style
	MenuSelected lipgloss.Style

	Form      lipgloss.Style
	FormTitle lipgloss.Style
	FormLabel lipgloss.Style
	FormError lipgloss.Style
	FormHint  lipgloss.Style
}

// NewTheme creates the styles for a dark or light background.
func NewTheme(dark bool) *Theme {
	t := &Theme{IsDark: dark, Colors: ColorsFor(dark)}
	t.initStyles()
	return t
}

func (t *Theme) initStyles() {
	c := t.Colors

	// Header
	t.Header = lipgloss.NewStyle().
		Background(c.SurfaceDim).
		Padding(0, 1)
	t.HeaderTitle = lipgloss.NewStyle().
		Bold(true).
		Foreground(c.Primary)
	t.HeaderSubtitle = lipgloss.NewStyle().
		Foreground(c.TextSecondary).
		Italic(true)

	// Sidebar
	t.Sidebar = lipgloss.NewStyle().
		BorderStyle(lipgloss.NormalBorder()).
		BorderRight(true).
		BorderForeground(c.Overlay).
		Padding(0, 1)
	t.SidebarTitle = lipgloss.NewStyle().
		Bold(true).
		Foreground(c.Secondary).
		MarginBottom(1)
	t.SidebarItem = lipgloss.NewStyle().
		Foreground(c.TextSecondary)
	t.SidebarActive = lipgloss.NewStyle().
		Bold(true).
		Foreground(c.Primary)
	t.SidebarCursor = lipgloss.NewStyle().
		Background(c.Selection).
		Foreground(c.Text)

	// Messages
	t.UserLabel = lipgloss.NewStyle().
		Bold(true).
		Foreground(c.Secondary)
	t.UserBubble = lipgloss.NewStyle().
		Foreground(c.User).
		Background(c.UserBg).
		Padding(0, 1).
		MarginLeft(4)
	t.AssistantLabel = lipgloss.NewStyle().
		Bold(true).
		Foreground(c.Primary)
	t.AssistantBubble = lipgloss.NewStyle().
		Foreground(c.Assistant).
		Background(c.AssistantBg).
		Padding(0, 1).
		MarginRight(4)
	t.Placeholder = lipgloss.NewStyle().
		Foreground(c.TextMuted).
		Italic(true)
	t.Failed = lipgloss.NewStyle().
		Foreground(c.Error).
		Bold(true)
	t.EmptyState = lipgloss.NewStyle().
		Foreground(c.TextMuted).
		Italic(true).
		Padding(1, 2)

	// Input
	t.InputContainer = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(c.Secondary).
		Padding(0, 1)
	t.InputPrompt = lipgloss.NewStyle().
		Bold(true).
		Foreground(c.Primary)
	t.InputDisabled = t.InputContainer.
		BorderForeground(c.Overlay).
		Foreground(c.TextMuted)

	// Status bar
	t.StatusBar = lipgloss.NewStyle().
		Foreground(c.TextSecondary).
		Background(c.SurfaceDim).
		Padding(0, 1)
	t.StatusError = lipgloss.NewStyle().
		Foreground(c.Error).
		Background(c.SurfaceDim).
		Bold(true)
	t.StatusHint = lipgloss.NewStyle().
		Foreground(c.TextMuted).
		Background(c.SurfaceDim)
	t.StatusBusy = lipgloss.NewStyle().
		Foreground(c.Warning).
		Background(c.SurfaceDim)

	// Menus
	t.Menu = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(c.Primary).
		Padding(0, 2)
	t.MenuTitle = lipgloss.NewStyle().
		Bold(true).
		Foreground(c.Primary).
		MarginBottom(1)
	t.MenuItem = lipgloss.NewStyle().
		Foreground(c.Text)
	t.MenuSelected = lipgloss.NewStyle().
		Bold(true).
		Foreground(c.TextInverse).
		Background(c.Primary)

	// Forms
	t.Form = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(c.Secondary).
		Padding(1, 3)
	t.FormTitle = lipgloss.NewStyle().
		Bold(true).
		Foreground(c.Primary).
		MarginBottom(1)
	t.FormLabel = lipgloss.NewStyle().
		Foreground(c.TextSecondary).
		Width(10)
	t.FormError = lipgloss.NewStyle().
		Foreground(c.Error)
	t.FormHint = lipgloss.NewStyle().
		Foreground(c.TextMuted).
		MarginTop(1)
}

// SetSize updates the dimensions used for responsive layouts.
func (t *Theme) SetSize(width, height int) {
	t.Width = width
	t.Height = height
}

// GetLayoutMode returns the current layout mode based on width.
func (t *Theme) GetLayoutMode() LayoutMode {
	if t.Width < 60 {
		return LayoutNarrow
	}
	if t.Width < 100 {
		return LayoutMedium
	}
	return LayoutWide
}

// LayoutMode represents the current responsive layout mode.
type LayoutMode int

const (
	LayoutNarrow LayoutMode = iota // < 60 columns, sidebar hidden
	LayoutMedium                   // 60-100 columns
	LayoutWide                     // > 100 columns
)
