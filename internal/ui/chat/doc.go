// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package chat is the full-screen Bubble Tea interface of chatdesk.

The model keeps two kinds of state apart:

  - Application state (session, conversation list, active conversation,
    theme) belongs to app.App. The model holds the latest app.Snapshot and
    never changes it directly; every change runs as a tea.Cmd calling the
    application, which then publishes a new snapshot.
  - Presentation state (sidebar, focus, settings menu, theme submenu, auth
    form mode, help overlay) is one uiState record changed only by the pure
    reduce function.

Snapshots reach the program through a one-slot mailbox that keeps only the
newest value, so publishing never blocks the goroutine that made a change.

# Keys

	Enter        send (composer) / open (sidebar, menus)
	Alt+Enter    new line
	Tab          switch between sidebar and composer
	Ctrl+N       new chat
	Ctrl+B       toggle sidebar
	Ctrl+O       settings (theme, log out)
	Ctrl+R       retry the failed message
	Ctrl+S       read the last reply aloud
	F1           help
	Ctrl+C       quit
*/
package chat
