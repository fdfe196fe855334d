// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// =============================================================================
// TTY DETECTION
// =============================================================================

// isTerminal reports whether v is an *os.File attached to a terminal.
func isTerminal(v interface{}) bool {
	f, ok := v.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

const (
	// DefaultTerminalWidth is the fallback width when detection fails.
	DefaultTerminalWidth = 80

	// MinTerminalWidth is the minimum width used for wrapping.
	MinTerminalWidth = 40
)

// terminalWidth returns the width of w when it is a terminal.
func terminalWidth(w io.Writer) int {
	f, ok := w.(*os.File)
	if !ok {
		return DefaultTerminalWidth
	}
	width, _, err := term.GetSize(int(f.Fd()))
	if err != nil || width <= 0 {
		return DefaultTerminalWidth
	}
	if width < MinTerminalWidth {
		return MinTerminalWidth
	}
	return width
}

// =============================================================================
// COLOR OUTPUT CONTROL
// =============================================================================

// colorsEnabled respects NO_COLOR and FORCE_COLOR before falling back to TTY
// detection. See https://no-color.org/.
func colorsEnabled(w io.Writer) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	if os.Getenv("FORCE_COLOR") != "" {
		return true
	}
	return isTerminal(w)
}

// colorProfile returns the termenv profile for w.
func colorProfile(w io.Writer) termenv.Profile {
	if !colorsEnabled(w) {
		return termenv.Ascii
	}
	return termenv.ColorProfile()
}

// =============================================================================
// INTERACTIVE INPUT
// =============================================================================

// prompter reads answers from in, hiding passwords when in is a terminal.
type prompter struct {
	in     io.Reader
	out    io.Writer
	reader *bufio.Reader
}

func newPrompter(in io.Reader, out io.Writer) *prompter {
	return &prompter{in: in, out: out, reader: bufio.NewReader(in)}
}

// Line prints label and reads one line.
func (p *prompter) Line(label string) (string, error) {
	fmt.Fprint(p.out, label)
	line, err := p.reader.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", fmt.Errorf("read %s: %w", strings.TrimSuffix(strings.ToLower(label), ": "), err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// Password reads a secret without echo on a terminal, or a plain line
// otherwise.
func (p *prompter) Password(label string) (string, error) {
	f, ok := p.in.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return p.Line(label)
	}

	fmt.Fprint(p.out, label)
	secret, err := term.ReadPassword(int(f.Fd()))
	fmt.Fprintln(p.out)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return string(secret), nil
}
