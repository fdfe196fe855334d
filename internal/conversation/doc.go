// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package conversation holds the active conversation and drives the
// optimistic send lifecycle.
//
// The Controller moves between three states:
//
//	Empty --Show--> Loaded --BeginSend--> AwaitingResponse
//	                  ^                          |
//	                  +--CompleteSend/FailSend---+
//
// BeginSend appends the user message and a typing placeholder right away.
// CompleteSend replaces the whole sequence with the server's history, so the
// placeholder can never be duplicated or left behind. FailSend turns the
// placeholder into a failure marker that PrepareRetry can undo.
//
// Loads are refused with ErrBusy while a reply is pending, so a late reply
// can never land in a different conversation than the one it was sent from.
// Every in-flight operation carries a ticket (load) or seq (send); Reset and
// newer operations make older results no-ops.
package conversation
