// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package audio

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveURL(t *testing.T) {
	tests := []struct {
		name string
		in   string
		base string
		want string
	}{
		{"internal host", "http://backend:8000/audio/a.mp3", "http://localhost:8000", "http://localhost:8000/audio/a.mp3"},
		{"internal host other port", "http://backend:8000/audio/a.mp3", "https://chat.example.com", "https://chat.example.com/audio/a.mp3"},
		{"relative", "/audio/b.mp3", "http://localhost:8000", "http://localhost:8000/audio/b.mp3"},
		{"external untouched", "https://cdn.example.com/c.mp3", "http://localhost:8000", "https://cdn.example.com/c.mp3"},
		{"host that only contains backend", "http://backend-eu.example.com/d.mp3", "http://localhost:8000", "http://backend-eu.example.com/d.mp3"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveURL(tt.in, tt.base)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ResolveURL("", "http://localhost:8000")
	assert.Error(t, err)
}

func TestFileName(t *testing.T) {
	u, _ := url.Parse("http://x/audio/tmp1234.mp3")
	assert.Equal(t, "tmp1234.mp3", fileName(u))

	u, _ = url.Parse("http://x/audio/../../etc/passwd")
	assert.Equal(t, "passwd.mp3", fileName(u))

	u, _ = url.Parse("http://x/")
	assert.Equal(t, ".mp3", filepath.Ext(fileName(u)))
}

func audioServer(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/audio/missing.mp3" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "audio/mpeg")
		w.Write([]byte("ID3-fake-mp3"))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestCommandPlayer_SavesWithoutCommand(t *testing.T) {
	server := audioServer(t)
	dir := t.TempDir()
	p := NewCommandPlayer(dir, "", server.Client(), zerolog.Nop())

	file, err := p.Play(context.Background(), server.URL+"/audio/clip.mp3")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "clip.mp3"), file)

	data, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Equal(t, "ID3-fake-mp3", string(data))
}

func TestCommandPlayer_DownloadFailure(t *testing.T) {
	server := audioServer(t)
	p := NewCommandPlayer(t.TempDir(), "", server.Client(), zerolog.Nop())

	_, err := p.Play(context.Background(), server.URL+"/audio/missing.mp3")
	assert.ErrorContains(t, err, "HTTP 404")
}

func TestCommandPlayer_RunsCommand(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses POSIX test(1)")
	}
	server := audioServer(t)

	ok := NewCommandPlayer(t.TempDir(), "test -s", server.Client(), zerolog.Nop())
	_, err := ok.Play(context.Background(), server.URL+"/audio/clip.mp3")
	assert.NoError(t, err)

	failing := NewCommandPlayer(t.TempDir(), "false", server.Client(), zerolog.Nop())
	file, err := failing.Play(context.Background(), server.URL+"/audio/clip.mp3")
	assert.Error(t, err)
	assert.FileExists(t, file, "the clip is kept even if playback fails")
}
