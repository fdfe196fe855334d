// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package util

import (
	"strings"

	"github.com/mattn/go-runewidth"
)

// UNICODE: width-aware truncation keeps CJK and emoji titles aligned in the
// sidebar and never splits a multi-byte character.

// TruncateWidth shortens s to at most maxWidth terminal columns, ending in an
// ellipsis when anything was cut.
func TruncateWidth(s string, maxWidth int) string {
	if maxWidth <= 0 {
		return ""
	}
	if runewidth.StringWidth(s) <= maxWidth {
		return s
	}
	if maxWidth <= 3 {
		return runewidth.Truncate(s, maxWidth, "")
	}
	return runewidth.Truncate(s, maxWidth, "...")
}

// PadWidth right-pads s with spaces to exactly width columns, truncating first
// when it is too wide.
func PadWidth(s string, width int) string {
	s = TruncateWidth(s, width)
	return runewidth.FillRight(s, width)
}

// FirstLine returns the first non-blank line of s, trimmed.
func FirstLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return line
		}
	}
	return ""
}
