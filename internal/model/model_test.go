// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRole_DisplayName(t *testing.T) {
	assert.Equal(t, "You", RoleUser.DisplayName())
	assert.Equal(t, "Assistant", RoleAssistant.DisplayName())
	assert.Equal(t, "System", RoleSystem.DisplayName())
	assert.Equal(t, "tool", Role("tool").DisplayName())
}

func TestMessage_StatusNotSerialized(t *testing.T) {
	data, err := json.Marshal(NewPlaceholder("typing"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"role":"assistant","content":"typing"}`, string(data))

	var m Message
	require.NoError(t, json.Unmarshal([]byte(`{"role":"user","content":"hi","status":2}`), &m))
	assert.Equal(t, StatusConfirmed, m.Status)
}

func TestMessage_Markers(t *testing.T) {
	assert.True(t, NewPlaceholder("x").IsPlaceholder())
	assert.False(t, NewPlaceholder("x").IsFailed())
	assert.True(t, NewFailureMarker("x").IsFailed())
	assert.False(t, NewAssistantMessage("x").IsPlaceholder())
}

func TestMessage_Preview(t *testing.T) {
	m := NewUserMessage("  hello\n\nworld  ")
	assert.Equal(t, "hello world", m.Preview(0))
	assert.Equal(t, "hel...", m.Preview(6))
	assert.Equal(t, "co...", NewUserMessage("conversación").Preview(5))
	assert.Equal(t, "conversación", NewUserMessage("conversación").Preview(12))
}

func TestCountRole(t *testing.T) {
	msgs := []Message{
		NewAssistantMessage("welcome"),
		NewUserMessage("hi"),
		NewAssistantMessage("hello"),
		NewUserMessage("bye"),
	}
	assert.Equal(t, 2, CountRole(msgs, RoleUser))
	assert.Equal(t, 2, CountRole(msgs, RoleAssistant))
	assert.Equal(t, 0, CountRole(nil, RoleUser))
}

func TestCloneAndConfirm(t *testing.T) {
	orig := []Message{NewUserMessage("a"), NewPlaceholder("b")}

	clone := CloneMessages(orig)
	clone[0].Content = "changed"
	assert.Equal(t, "a", orig[0].Content)

	confirmed := Confirm(orig)
	assert.Equal(t, StatusConfirmed, confirmed[1].Status)
	assert.Equal(t, StatusPending, orig[1].Status)

	assert.NotNil(t, CloneMessages(nil))
}

func TestConversationSummary_DisplayTitle(t *testing.T) {
	assert.Equal(t, DefaultTitle, ConversationSummary{ID: "c1"}.DisplayTitle())
	assert.Equal(t, "Trip", ConversationSummary{ID: "c1", Title: "Trip"}.DisplayTitle())
}
