// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package app is the control layer between the front ends and the backend.
//
// An App owns one session store, one conversation registry, one active
// conversation controller and one preference store. Front ends call its
// methods from any goroutine and render Snapshot values, either by polling
// Snapshot or by registering with Subscribe.
//
// Failures are returned and also kept in Snapshot.LastError. When the backend
// rejects the token the session is logged out and ErrStaleCredential is
// returned; nothing is retried.
package app
