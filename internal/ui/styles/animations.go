// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import "time"

// SpinnerConfig holds the frames of a spinner animation.
type SpinnerConfig struct {
	Frames []string
	FPS    int
}

// LineSpinner is a simple line rotation. It shows while a reply is pending.
var LineSpinner = SpinnerConfig{
	Frames: []string{"|", "/", "-", "\\"},
	FPS:    10,
}

// DotsSpinner is the classic three-dot animation, used while a conversation
// loads.
var DotsSpinner = SpinnerConfig{
	Frames: []string{".  ", ".. ", "...", " ..", "  .", "   "},
	FPS:    6,
}

// Duration returns the time each frame is shown.
func (s SpinnerConfig) Duration() time.Duration {
	if s.FPS <= 0 {
		return time.Second
	}
	return time.Second / time.Duration(s.FPS)
}

// Box drawing characters for the sidebar and menus.
var BoxChars = struct {
	Horizontal string
	Vertical   string
	Pointer    string
}{
	Horizontal: "─",
	Vertical:   "│",
	Pointer:    ">",
}
