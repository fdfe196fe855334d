// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestColorsFor(t *testing.T) {
	assert.Equal(t, Dark, ColorsFor(true))
	assert.Equal(t, Light, ColorsFor(false))
	assert.NotEqual(t, Dark.Text, Light.Text)
	assert.NotEqual(t, Dark.Surface, Light.Surface)
}

func TestPalettesAreComplete(t *testing.T) {
	for name, c := range map[string]Colors{"dark": Dark, "light": Light} {
		for field, color := range map[string]string{
			"Primary":   string(c.Primary),
			"Success":   string(c.Success),
			"Error":     string(c.Error),
			"Warning":   string(c.Warning),
			"Text":      string(c.Text),
			"TextMuted": string(c.TextMuted),
			"User":      string(c.User),
			"Assistant": string(c.Assistant),
			"Selection": string(c.Selection),
		} {
			assert.True(t, strings.HasPrefix(color, "#") && len(color) == 7, "%s.%s = %q", name, field, color)
		}
	}
}

func TestNewTheme(t *testing.T) {
	dark := NewTheme(true)
	require.NotNil(t, dark)
	assert.True(t, dark.IsDark)
	assert.Equal(t, Dark, dark.Colors)

	light := NewTheme(false)
	assert.False(t, light.IsDark)
	assert.Equal(t, Light, light.Colors)

	assert.Contains(t, dark.HeaderTitle.Render("chatdesk"), "chatdesk")
	assert.Contains(t, dark.UserBubble.Render("hola"), "hola")
	assert.Contains(t, light.AssistantBubble.Render("hola"), "hola")
	assert.Contains(t, light.MenuSelected.Render("dark"), "dark")
}

func TestLayoutMode(t *testing.T) {
	th := NewTheme(true)
	cases := []struct {
		width int
		want  LayoutMode
	}{
		{40, LayoutNarrow},
		{59, LayoutNarrow},
		{60, LayoutMedium},
		{99, LayoutMedium},
		{100, LayoutWide},
	}
	for _, tc := range cases {
		th.SetSize(tc.width, 24)
		assert.Equal(t, tc.want, th.GetLayoutMode(), "width %d", tc.width)
	}
}

func TestSpinnerDuration(t *testing.T) {
	assert.Equal(t, 100*time.Millisecond, LineSpinner.Duration())
	assert.Equal(t, time.Second, SpinnerConfig{}.Duration())
}
