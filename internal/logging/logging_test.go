// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInit_JSONToStderr(t *testing.T) {
	t.Cleanup(func() { zerolog.SetGlobalLevel(zerolog.TraceLevel) })

	var buf bytes.Buffer
	logger, err := Init(Options{Level: "info", Format: "json", Stderr: &buf})
	require.NoError(t, err)

	logger.Debug().Msg("hidden")
	logger.Info().Str("conversation", "c1").Msg("loaded")

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line))
	assert.Equal(t, "loaded", line["message"])
	assert.Equal(t, "c1", line["conversation"])
	assert.NotContains(t, buf.String(), "hidden")
}

func TestInit_QuietWritesOnlyFile(t *testing.T) {
	t.Cleanup(func() { zerolog.SetGlobalLevel(zerolog.TraceLevel) })

	var buf bytes.Buffer
	path := filepath.Join(t.TempDir(), "chatdesk.log")
	logger, err := Init(Options{Level: "debug", Format: "text", File: path, Quiet: true, Stderr: &buf})
	require.NoError(t, err)

	logger.Debug().Msg("to file")
	assert.Empty(t, buf.String())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "to file")
}

func TestInit_BadLevel(t *testing.T) {
	_, err := Init(Options{Level: "loud"})
	assert.Error(t, err)
}
