// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import "github.com/jeranaias/chatdesk/internal/model"

// credentialsRequest is the body for /register and /login.
type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string `json:"token"`
}

// conversationEntry is one value of the /conversations mapping.
type conversationEntry struct {
	Title string `json:"title"`
}

type conversationResponse struct {
	ID      string          `json:"id"`
	Title   string          `json:"title"`
	History []model.Message `json:"history"`
	Error   string          `json:"error"`
}

type chatRequest struct {
	Message string `json:"message"`
}

type chatResponse struct {
	Response string          `json:"response"`
	History  []model.Message `json:"history"`
}

type speakRequest struct {
	Text string `json:"text"`
}

type speakResponse struct {
	AudioURL string `json:"audio_url"`
}

// Conversation is a fetched conversation with its full history.
type Conversation struct {
	ID      string
	Title   string
	History []model.Message
}

// ChatReply is the backend answer to a sent message. History is the
// authoritative sequence for the active conversation after the exchange.
type ChatReply struct {
	Response string
	History  []model.Message
}
