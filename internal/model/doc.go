// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for conversations and messages.
//
// # Key Types
//
//   - Message: role, content and a client-only Status
//   - Status: confirmed, pending (typing placeholder) or failed
//   - ConversationSummary: registry entry with id and title
//   - Role: user, assistant or system
//
// # Usage
//
//	msgs := []model.Message{
//	    model.NewUserMessage("Hola"),
//	    model.NewPlaceholder("Assistant is typing..."),
//	}
//	users := model.CountRole(msgs, model.RoleUser)
package model
