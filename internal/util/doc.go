// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util holds small helpers shared by chatdesk packages: atomic file
// writes for persisted state and display-width aware string handling for the
// terminal front ends.
package util
