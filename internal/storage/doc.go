// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage persists the small amount of client state chatdesk keeps
// between runs: the session token and the theme preference.
//
// # Key Types
//
//   - KV: flat string key/value interface
//   - File: JSON file with atomic rewrites and an fsnotify watch
//   - SQLite: single-table database via modernc.org/sqlite
//   - Memory: in-process map for tests
//
// # Usage
//
//	kv, err := storage.Open(storage.BackendFile, "/home/me/.chatdesk/state.json")
//	if err != nil {
//	    return err
//	}
//	defer kv.Close()
//	_ = kv.Set(storage.KeyTheme, "dark")
//
// # Storage Location
//
// By default state lives in ~/.chatdesk/state.json (or state.db for sqlite).
package storage
