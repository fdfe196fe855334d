// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package logging configures the global zerolog logger for chatdesk.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options select where log lines go and how they look.
type Options struct {
	Level      string // trace, debug, info, warn, error, disabled
	Format     string // "text" or "json"
	File       string // rotated log file; empty disables
	WithCaller bool

	// Quiet drops the stderr sink. Used by the TUI so log lines never land
	// on the alternate screen.
	Quiet bool

	// Stderr overrides os.Stderr, mostly for tests.
	Stderr io.Writer
}

// Init installs the global logger described by opts and returns it.
func Init(opts Options) (zerolog.Logger, error) {
	level, err := parseLevel(opts.Level)
	if err != nil {
		return zerolog.Nop(), err
	}

	stderr := opts.Stderr
	if stderr == nil {
		stderr = os.Stderr
	}

	var writers []io.Writer
	if !opts.Quiet {
		if opts.Format == "text" {
			writers = append(writers, zerolog.ConsoleWriter{Out: stderr})
		} else {
			writers = append(writers, stderr)
		}
	}
	if opts.File != "" {
		// RELIABILITY: rotation keeps long TUI sessions from filling the disk.
		writers = append(writers, zerolog.ConsoleWriter{
			NoColor: true,
			Out: &lumberjack.Logger{
				Filename:   opts.File,
				MaxSize:    10, // megabytes
				MaxBackups: 3,
				MaxAge:     28, // days
			},
		})
	}

	var out io.Writer = io.Discard
	switch len(writers) {
	case 0:
	case 1:
		out = writers[0]
	default:
		out = io.MultiWriter(writers...)
	}

	ctx := zerolog.New(out).With().Timestamp()
	if opts.WithCaller {
		ctx = ctx.Caller()
	}
	logger := ctx.Logger().Level(level)

	zerolog.SetGlobalLevel(level)
	log.Logger = logger
	return logger, nil
}

func parseLevel(s string) (zerolog.Level, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return zerolog.InfoLevel, nil
	}
	level, err := zerolog.ParseLevel(s)
	if err != nil {
		return zerolog.NoLevel, fmt.Errorf("logging: unknown level %q", s)
	}
	return level, nil
}
