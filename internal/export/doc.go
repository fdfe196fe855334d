// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package export writes conversations to Markdown or JSON files.
//
// # Usage
//
//	t := export.NewTranscript(snap.ActiveID, snap.ActiveTitle, snap.Messages)
//	e, err := export.ForFormat("markdown", nil)
//	path, err := export.ToFile(t, e, ".")
package export
