// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package api is the HTTP client for the assistant backend.
//
// Every endpoint of the backend has one typed method. Authenticated methods
// attach the current token from a CredentialSource as a bare Authorization
// header; with no token they fail with ErrNoCredential before touching the
// network.
//
// # Key Types
//
//   - Client: typed endpoint methods, optional rate limiting, request logging
//   - Error: failed call with HTTP status and backend detail message
//   - Conversation, ChatReply: decoded responses
//
// # Usage
//
//	client := api.New("http://localhost:8000", api.WithCredentials(sessionStore))
//	convs, err := client.ListConversations(ctx)
//	if errors.Is(err, api.ErrUnauthorized) {
//	    // token went stale
//	}
//
// # Errors
//
// Non-2xx responses and network failures return *Error. A zero Status means
// no response arrived. The client never retries.
package api
