// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli provides the chatdesk command line.
//
// Commands are built with cobra. Settings come from the config file, then
// CHATDESK_* environment variables, then flags (bound through viper). Every
// command opens the same app.App the full-screen interface uses, so a login
// made here is picked up by the TUI and the other way round.
//
// # Commands Overview
//
// Session:
//   - login, register, logout: manage the stored credential
//   - status: credential state, backend reachability and storage location
//
// Conversations:
//   - conversations list|new|show|delete
//   - ask: send one message, from arguments or standard input
//   - chat: line-based REPL with history and slash commands
//   - speak: synthesize text, or the last reply, and play it
//
// Settings:
//   - theme: show or set system, dark or light
//   - config show|path|init|get|set
//
// With no subcommand, or with tui, the Bubble Tea interface starts.
//
// # Output
//
// Commands that print data accept --json and wrap it in JSONResponse.
// Colors follow NO_COLOR and FORCE_COLOR and are off when output is piped.
//
// # Exit Codes
//
// ExitCode maps errors to stable process statuses: 2 for usage errors, 3
// for invalid settings, 4 for authentication problems, 5 when the backend
// is unreachable, 7 for unknown conversations and 8 for timeouts.
package cli
