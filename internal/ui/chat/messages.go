// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/chatdesk/internal/app"
)

// =============================================================================
// MESSAGES
// =============================================================================

// SnapshotMsg carries new application state.
type SnapshotMsg app.Snapshot

// opKind names a background operation.
type opKind int

const (
	opLogin opKind = iota
	opRegister
	opLogout
	opLoad
	opNew
	opDelete
	opSend
	opRetry
	opSpeak
	opTheme
	opRefresh
)

// opDoneMsg reports a finished background operation.
type opDoneMsg struct {
	op     opKind
	notice string
	err    error
}

// =============================================================================
// SNAPSHOT MAILBOX
// =============================================================================

// mailbox holds the newest snapshot not yet seen by the program. Older
// undelivered snapshots are replaced, since each one is complete, and a
// snapshot older than one already accepted is dropped. Publishing never
// blocks, so application calls are safe from any goroutine.
type mailbox struct {
	mu     sync.Mutex
	newest uint64
	ch     chan app.Snapshot
}

func newMailbox() *mailbox {
	return &mailbox{ch: make(chan app.Snapshot, 1)}
}

func (b *mailbox) publish(s app.Snapshot) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if s.Version != 0 {
		if s.Version <= b.newest {
			return
		}
		b.newest = s.Version
	}

	// Only publishers send, and they hold mu, so the slot is free after
	// draining.
	select {
	case <-b.ch:
	default:
	}
	b.ch <- s
}

// wait returns a command delivering the next snapshot. It ends with nil
// when ctx is done.
func (b *mailbox) wait(ctx context.Context) tea.Cmd {
	return func() tea.Msg {
		select {
		case s := <-b.ch:
			return SnapshotMsg(s)
		case <-ctx.Done():
			return nil
		}
	}
}

// =============================================================================
// COMMANDS
// =============================================================================

// run wraps an application call as a command.
func run(op opKind, fn func() error) tea.Cmd {
	return func() tea.Msg {
		return opDoneMsg{op: op, err: fn()}
	}
}

// runNotice is run for calls that also produce a status line.
func runNotice(op opKind, fn func() (string, error)) tea.Cmd {
	return func() tea.Msg {
		notice, err := fn()
		return opDoneMsg{op: op, notice: notice, err: err}
	}
}
