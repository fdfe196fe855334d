// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"strings"
)

// =============================================================================
// ROLE TYPE
// =============================================================================

// Role represents the sender of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// DisplayName returns a human-readable name for the role.
func (r Role) DisplayName() string {
	switch r {
	case RoleUser:
		return "You"
	case RoleAssistant:
		return "Assistant"
	case RoleSystem:
		return "System"
	default:
		return string(r)
	}
}

// =============================================================================
// MESSAGE STATUS
// =============================================================================

// Status is client-side bookkeeping for a message. It is never sent to or
// received from the backend.
type Status int

const (
	// StatusConfirmed marks a message returned by the server.
	StatusConfirmed Status = iota

	// StatusPending marks the optimistic typing placeholder.
	StatusPending

	// StatusFailed marks the assistant slot of an exchange that did not complete.
	StatusFailed
)

// String returns a short label for the status.
func (s Status) String() string {
	switch s {
	case StatusConfirmed:
		return "confirmed"
	case StatusPending:
		return "pending"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// =============================================================================
// MESSAGE TYPE
// =============================================================================

// Message is one entry of a conversation. Messages have no identity beyond
// their position in the sequence.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
	Status  Status `json:"-"`
}

// NewUserMessage creates a user message carrying text verbatim.
func NewUserMessage(text string) Message {
	return Message{Role: RoleUser, Content: text}
}

// NewAssistantMessage creates a confirmed assistant message.
func NewAssistantMessage(text string) Message {
	return Message{Role: RoleAssistant, Content: text}
}

// NewPlaceholder creates the assistant typing indicator.
func NewPlaceholder(text string) Message {
	return Message{Role: RoleAssistant, Content: text, Status: StatusPending}
}

// NewFailureMarker creates the assistant slot shown after a failed send.
func NewFailureMarker(text string) Message {
	return Message{Role: RoleAssistant, Content: text, Status: StatusFailed}
}

// IsPlaceholder reports whether m is the typing indicator.
func (m Message) IsPlaceholder() bool {
	return m.Status == StatusPending
}

// IsFailed reports whether m marks a failed exchange.
func (m Message) IsFailed() bool {
	return m.Status == StatusFailed
}

// Preview returns the content flattened to one line, cut to maxLen runes.
func (m Message) Preview(maxLen int) string {
	s := strings.Join(strings.Fields(m.Content), " ")
	runes := []rune(s)
	if maxLen <= 0 || len(runes) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}

// =============================================================================
// SEQUENCE HELPERS
// =============================================================================

// CountRole returns how many messages in msgs have the given role.
func CountRole(msgs []Message, role Role) int {
	n := 0
	for _, m := range msgs {
		if m.Role == role {
			n++
		}
	}
	return n
}

// CloneMessages returns an independent copy of msgs. A nil input yields an
// empty, non-nil slice.
func CloneMessages(msgs []Message) []Message {
	out := make([]Message, len(msgs))
	copy(out, msgs)
	return out
}

// Confirm returns a copy of msgs with every status reset to confirmed, as
// used for server-returned histories.
func Confirm(msgs []Message) []Message {
	out := CloneMessages(msgs)
	for i := range out {
		out[i].Status = StatusConfirmed
	}
	return out
}
