// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

// DefaultTitle is what the backend names a conversation before it has one.
const DefaultTitle = "Nueva conversación"

// ConversationSummary is the registry entry for one server-side conversation.
type ConversationSummary struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// DisplayTitle returns the title, or DefaultTitle when the server sent none.
func (c ConversationSummary) DisplayTitle() string {
	if c.Title == "" {
		return DefaultTitle
	}
	return c.Title
}
