// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package prefs stores user display preferences.
package prefs

import (
	"fmt"
	"strings"
	"sync"

	"github.com/muesli/termenv"

	"github.com/jeranaias/chatdesk/internal/storage"
)

// Theme is the user's color preference.
type Theme string

const (
	ThemeSystem Theme = "system"
	ThemeDark   Theme = "dark"
	ThemeLight  Theme = "light"
)

// Themes lists the valid values in menu order.
var Themes = []Theme{ThemeSystem, ThemeDark, ThemeLight}

// ParseTheme validates s.
func ParseTheme(s string) (Theme, error) {
	switch t := Theme(strings.ToLower(strings.TrimSpace(s))); t {
	case ThemeSystem, ThemeDark, ThemeLight:
		return t, nil
	default:
		return "", fmt.Errorf("unknown theme %q (want system, dark or light)", s)
	}
}

// DarkDetector reports whether the terminal background is dark.
type DarkDetector func() bool

// DetectTerminal asks the terminal via termenv.
func DetectTerminal() bool {
	return termenv.HasDarkBackground()
}

// Store holds the theme and persists it under the "theme" key.
type Store struct {
	kv     storage.KV
	detect DarkDetector

	mu    sync.RWMutex
	theme Theme
}

// NewStore creates a store defaulting to ThemeSystem. A nil detector uses
// DetectTerminal.
func NewStore(kv storage.KV, detect DarkDetector) *Store {
	if detect == nil {
		detect = DetectTerminal
	}
	return &Store{kv: kv, detect: detect, theme: ThemeSystem}
}

// Load reads the persisted theme. Missing or unknown values fall back to
// ThemeSystem.
func (s *Store) Load() error {
	raw, ok, err := s.kv.Get(storage.KeyTheme)
	if err != nil {
		return fmt.Errorf("prefs: load theme: %w", err)
	}

	theme := ThemeSystem
	if ok {
		if t, err := ParseTheme(raw); err == nil {
			theme = t
		}
	}

	s.mu.Lock()
	s.theme = theme
	s.mu.Unlock()
	return nil
}

// SetTheme persists t in its canonical spelling and makes it current.
func (s *Store) SetTheme(t Theme) error {
	t, err := ParseTheme(string(t))
	if err != nil {
		return err
	}
	if err := s.kv.Set(storage.KeyTheme, string(t)); err != nil {
		return fmt.Errorf("prefs: save theme: %w", err)
	}

	s.mu.Lock()
	s.theme = t
	s.mu.Unlock()
	return nil
}

// Theme returns the current preference.
func (s *Store) Theme() Theme {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.theme
}

// IsDark resolves the effective flag. ThemeSystem asks the detector on every
// call; the OS setting is not tracked live.
func (s *Store) IsDark() bool {
	switch s.Theme() {
	case ThemeDark:
		return true
	case ThemeLight:
		return false
	default:
		return s.detect()
	}
}
