// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import "github.com/charmbracelet/lipgloss"

// Colors is one concrete palette. The theme preference is resolved before
// styles are built, so these are plain colors rather than adaptive ones.
type Colors struct {
	// Accents
	Primary   lipgloss.Color
	Secondary lipgloss.Color

	// Semantic
	Success lipgloss.Color
	Error   lipgloss.Color
	Warning lipgloss.Color

	// Surfaces
	Surface       lipgloss.Color
	SurfaceDim    lipgloss.Color
	SurfaceBright lipgloss.Color
	Overlay       lipgloss.Color

	// Text
	Text          lipgloss.Color
	TextSecondary lipgloss.Color
	TextMuted     lipgloss.Color
	TextInverse   lipgloss.Color

	// Message roles
	User        lipgloss.Color
	UserBg      lipgloss.Color
	Assistant   lipgloss.Color
	AssistantBg lipgloss.Color

	Selection lipgloss.Color
}

// Dark is the palette for dark backgrounds (Catppuccin Mocha based).
var Dark = Colors{
	Primary:   "#A78BFA",
	Secondary: "#22D3EE",

	Success: "#34D399",
	Error:   "#FB7185",
	Warning: "#FBBF24",

	Surface:       "#1E1E2E",
	SurfaceDim:    "#181825",
	SurfaceBright: "#313244",
	Overlay:       "#45475A",

	Text:          "#CDD6F4",
	TextSecondary: "#A6ADC8",
	TextMuted:     "#6C7086",
	TextInverse:   "#1E1E2E",

	User:        "#E0F2FE",
	UserBg:      "#1D4ED8",
	Assistant:   "#E9E4F5",
	AssistantBg: "#3B3655",

	Selection: "#1E3A5F",
}

// Light is the palette for light backgrounds.
var Light = Colors{
	Primary:   "#7C3AED",
	Secondary: "#0891B2",

	Success: "#059669",
	Error:   "#E11D48",
	Warning: "#D97706",

	Surface:       "#FFFFFF",
	SurfaceDim:    "#F5F5F5",
	SurfaceBright: "#FAFAFA",
	Overlay:       "#D4D4D4",

	Text:          "#1F2937",
	TextSecondary: "#6B7280",
	TextMuted:     "#9CA3AF",
	TextInverse:   "#FFFFFF",

	User:        "#1E40AF",
	UserBg:      "#DBEAFE",
	Assistant:   "#5B4B8A",
	AssistantBg: "#F5F3FF",

	Selection: "#BFDBFE",
}

// ColorsFor returns the palette for a dark or light background.
func ColorsFor(dark bool) Colors {
	if dark {
		return Dark
	}
	return Light
}

// StatusIndicators are ASCII markers shown next to colored status text, so
// the state reads without color.
var StatusIndicators = struct {
	Success string
	Error   string
	Warning string
	Pending string
	Active  string
}{
	Success: "[OK]",
	Error:   "[X]",
	Warning: "[!]",
	Pending: "[ ]",
	Active:  "[*]",
}
