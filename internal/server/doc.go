// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package server is an in-memory implementation of the chat backend's HTTP
// contract. It exists to exercise the client end to end in tests.
//
// # Endpoints
//
//   - POST   /register            - create an account
//   - POST   /login               - exchange credentials for a token
//   - GET    /conversations       - ordered {id: {title}} mapping
//   - GET    /conversations/{id}  - one conversation with its history
//   - POST   /conversations       - allocate an empty conversation
//   - DELETE /conversations/{id}  - remove a conversation
//   - POST   /chat                - append to the current conversation
//   - POST   /speak               - return an audio URL
//   - GET    /audio/{name}        - serve a generated clip
//
// Conversations are kept per user. Like the real backend, /chat writes to
// the user's current conversation, which is the last one created. Fetching a
// conversation does not make it current; deleting the current one moves it
// to the newest remaining.
//
// # Fault injection
//
// Faults forces status codes on individual routes, Revoke invalidates every
// issued token, HoldChat parks /chat until released and HoldList parks the
// next list response after its contents were read.
//
// # Usage
//
//	srv := server.New(server.Options{})
//	srv.AddUser("ana", "secret")
//	ts := httptest.NewServer(srv.Handler())
//	defer ts.Close()
package server
