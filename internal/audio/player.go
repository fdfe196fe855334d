// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package audio fetches synthesized speech and hands it to a local player.
package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os/exec"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/jeranaias/chatdesk/internal/util"
)

// MaxAudioSize caps a downloaded clip.
const MaxAudioSize = 50 * 1024 * 1024

// internalHost is the backend's name inside its container network; audio
// URLs minted there are unreachable from the client as-is.
const internalHost = "backend"

// Player plays the clip at a resolved URL and returns where it was saved.
type Player interface {
	Play(ctx context.Context, audioURL string) (string, error)
}

// ResolveURL makes a backend-issued audio URL reachable from this machine.
// Relative URLs are resolved against baseURL and the internal "backend" host
// is replaced with baseURL's host.
func ResolveURL(audioURL, baseURL string) (string, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("audio: bad base URL: %w", err)
	}
	u, err := url.Parse(strings.TrimSpace(audioURL))
	if err != nil || audioURL == "" {
		return "", fmt.Errorf("audio: bad audio URL %q", audioURL)
	}

	if !u.IsAbs() {
		u = base.ResolveReference(u)
	}
	if u.Hostname() == internalHost {
		u.Scheme = base.Scheme
		u.Host = base.Host
	}
	return u.String(), nil
}

// CommandPlayer downloads clips into Dir and, when Command is set, runs it
// with the file path appended as the last argument.
type CommandPlayer struct {
	Dir     string
	Command []string

	client *http.Client
	logger zerolog.Logger
}

// NewCommandPlayer builds a player. command is split on whitespace; an empty
// command only saves files.
func NewCommandPlayer(dir, command string, client *http.Client, logger zerolog.Logger) *CommandPlayer {
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	return &CommandPlayer{
		Dir:     dir,
		Command: strings.Fields(command),
		client:  client,
		logger:  logger.With().Str("component", "audio").Logger(),
	}
}

// Play downloads audioURL and runs the configured command on it.
func (p *CommandPlayer) Play(ctx context.Context, audioURL string) (string, error) {
	file, err := p.download(ctx, audioURL)
	if err != nil {
		return "", err
	}
	p.logger.Debug().Str("file", file).Msg("audio saved")

	if len(p.Command) == 0 {
		return file, nil
	}

	args := append(append([]string{}, p.Command[1:]...), file)
	cmd := exec.CommandContext(ctx, p.Command[0], args...)
	if out, err := cmd.CombinedOutput(); err != nil {
		msg := strings.TrimSpace(string(out))
		if msg != "" {
			return file, fmt.Errorf("audio: %s: %w: %s", p.Command[0], err, msg)
		}
		return file, fmt.Errorf("audio: %s: %w", p.Command[0], err)
	}
	return file, nil
}

func (p *CommandPlayer) download(ctx context.Context, audioURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, audioURL, nil)
	if err != nil {
		return "", fmt.Errorf("audio: %w", err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("audio: download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("audio: download: HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxAudioSize+1))
	if err != nil {
		return "", fmt.Errorf("audio: download: %w", err)
	}
	if len(data) > MaxAudioSize {
		return "", errors.New("audio: clip too large")
	}

	file := filepath.Join(p.Dir, fileName(req.URL))
	if err := util.AtomicWriteFile(file, data, 0644); err != nil {
		return "", fmt.Errorf("audio: save: %w", err)
	}
	return file, nil
}

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9._-]`)

// fileName derives a safe local name from the URL, falling back to a uuid.
func fileName(u *url.URL) string {
	name := unsafeName.ReplaceAllString(path.Base(u.Path), "_")
	name = strings.TrimLeft(name, ".")
	if name == "" || name == "_" {
		return uuid.NewString() + ".mp3"
	}
	if filepath.Ext(name) == "" {
		name += ".mp3"
	}
	return name
}
