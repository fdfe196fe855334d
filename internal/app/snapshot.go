// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package app

import (
	"time"

	"github.com/jeranaias/chatdesk/internal/conversation"
	"github.com/jeranaias/chatdesk/internal/model"
	"github.com/jeranaias/chatdesk/internal/prefs"
	"github.com/jeranaias/chatdesk/internal/session"
)

// Snapshot is a point-in-time copy of everything a front end renders.
type Snapshot struct {
	Credential    session.CredentialState
	ExpiresAt     time.Time
	Conversations []model.ConversationSummary

	State          conversation.State
	ActiveID       string
	ActiveTitle    string
	Messages       []model.Message
	Input          string
	NewChatBlocked bool
	CanRetry       bool

	Theme prefs.Theme
	Dark  bool

	LastError error

	// Version increases with every snapshot taken. A snapshot with a higher
	// version was read after one with a lower version.
	Version uint64
}

// Authenticated reports whether a token is held.
func (s Snapshot) Authenticated() bool {
	return s.Credential != session.CredentialNone
}

// Busy reports whether a reply is pending.
func (s Snapshot) Busy() bool {
	return s.State == conversation.StateAwaitingResponse
}

// Snapshot returns the current state.
func (a *App) Snapshot() Snapshot {
	a.snapMu.Lock()
	defer a.snapMu.Unlock()
	a.version++

	view := a.conv.View()
	snap := Snapshot{
		Credential:     a.session.State(),
		Conversations:  a.registry.List(),
		State:          view.State,
		ActiveID:       view.ActiveID,
		Messages:       view.Messages,
		Input:          view.Input,
		NewChatBlocked: view.NewChatBlocked,
		CanRetry:       view.CanRetry,
		Theme:          a.prefs.Theme(),
		Version:        a.version,
	}
	if exp, ok := a.session.ExpiresAt(); ok {
		snap.ExpiresAt = exp
	}
	if view.ActiveID != "" {
		if summary, ok := a.registry.Get(view.ActiveID); ok {
			snap.ActiveTitle = summary.DisplayTitle()
		} else {
			snap.ActiveTitle = model.DefaultTitle
		}
	}

	a.mu.Lock()
	snap.Dark = a.dark
	snap.LastError = a.lastErr
	a.mu.Unlock()
	return snap
}

// Subscribe registers fn to receive a snapshot after every state change. fn
// runs on the goroutine that made the change and must not block. Changes on
// different goroutines may deliver their snapshots out of order; receivers
// keep the one with the highest Version. The returned function removes the
// subscription.
func (a *App) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	a.mu.Lock()
	id := a.nextID
	a.nextID++
	a.listeners[id] = fn
	a.mu.Unlock()

	return func() {
		a.mu.Lock()
		delete(a.listeners, id)
		a.mu.Unlock()
	}
}

func (a *App) notify() {
	a.mu.Lock()
	if len(a.listeners) == 0 {
		a.mu.Unlock()
		return
	}
	fns := make([]func(Snapshot), 0, len(a.listeners))
	for _, fn := range a.listeners {
		fns = append(fns, fn)
	}
	a.mu.Unlock()

	snap := a.Snapshot()
	for _, fn := range fns {
		fn(snap)
	}
}
