// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package registry holds the ordered list of the user's conversations.
//
// The Registry is the only writer of that list. Its contents always come from
// the backend: Refresh replaces the whole mapping, Create inserts the entry
// the backend just allocated, and Delete never removes locally but re-reads
// the authoritative list instead.
package registry

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/jeranaias/chatdesk/internal/model"
)

// Backend is the slice of the API the registry uses.
type Backend interface {
	ListConversations(ctx context.Context) ([]model.ConversationSummary, error)
	CreateConversation(ctx context.Context) (model.ConversationSummary, error)
	DeleteConversation(ctx context.Context, id string) error
}

// Gate reports whether authenticated calls may be made at all.
type Gate interface {
	Authenticated() bool
}

// Registry is the ordered id -> summary mapping.
type Registry struct {
	backend Backend
	gate    Gate
	logger  zerolog.Logger

	mu    sync.RWMutex
	items *orderedmap.OrderedMap[string, model.ConversationSummary]
	// gen moves on every local change and every refresh start. A refresh
	// only installs its list if gen is where it left it.
	gen uint64
}

// New creates an empty registry.
func New(backend Backend, gate Gate, logger zerolog.Logger) *Registry {
	return &Registry{
		backend: backend,
		gate:    gate,
		logger:  logger.With().Str("component", "registry").Logger(),
		items:   orderedmap.New[string, model.ConversationSummary](),
	}
}

// Refresh replaces the mapping with the backend's list. Without a credential
// it does nothing. On failure the mapping is left as it was. If another
// refresh, a create, a delete or a clear happened while the list was in
// flight, the list is discarded as out of date and nil is returned.
func (r *Registry) Refresh(ctx context.Context) error {
	if !r.gate.Authenticated() {
		return nil
	}

	r.mu.Lock()
	r.gen++
	started := r.gen
	r.mu.Unlock()

	list, err := r.backend.ListConversations(ctx)
	if err != nil {
		return fmt.Errorf("registry: refresh: %w", err)
	}

	items := newItems(list)
	r.mu.Lock()
	if r.gen != started {
		r.mu.Unlock()
		r.logger.Debug().Int("count", len(list)).Msg("discarding superseded list")
		return nil
	}
	r.items = items
	r.mu.Unlock()

	r.logger.Debug().Int("count", len(list)).Msg("refreshed")
	return nil
}

// Create allocates a conversation on the backend and inserts it.
func (r *Registry) Create(ctx context.Context) (model.ConversationSummary, error) {
	summary, err := r.backend.CreateConversation(ctx)
	if err != nil {
		return model.ConversationSummary{}, fmt.Errorf("registry: create: %w", err)
	}

	r.mu.Lock()
	r.gen++
	r.items.Set(summary.ID, summary)
	r.mu.Unlock()
	return summary, nil
}

// Delete asks the backend to remove id and then refreshes. The refresh runs
// even when the delete failed so the mapping reflects what the server holds.
// The delete error wins over the refresh error.
func (r *Registry) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	r.gen++
	r.mu.Unlock()

	deleteErr := r.backend.DeleteConversation(ctx, id)
	if deleteErr != nil {
		r.logger.Warn().Err(deleteErr).Str("conversation", id).Msg("delete failed")
	}
	refreshErr := r.Refresh(ctx)

	if deleteErr != nil {
		return fmt.Errorf("registry: delete %s: %w", id, deleteErr)
	}
	return refreshErr
}

// Replace installs list as the whole mapping, keeping its order. Any refresh
// still in flight is superseded.
func (r *Registry) Replace(list []model.ConversationSummary) {
	items := newItems(list)
	r.mu.Lock()
	r.gen++
	r.items = items
	r.mu.Unlock()
}

// Clear empties the mapping.
func (r *Registry) Clear() {
	r.Replace(nil)
}

func newItems(list []model.ConversationSummary) *orderedmap.OrderedMap[string, model.ConversationSummary] {
	items := orderedmap.New[string, model.ConversationSummary](orderedmap.WithCapacity[string, model.ConversationSummary](len(list)))
	for _, s := range list {
		items.Set(s.ID, s)
	}
	return items
}

// Get returns the summary for id.
func (r *Registry) Get(id string) (model.ConversationSummary, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.items.Get(id)
}

// Contains reports whether id is listed.
func (r *Registry) Contains(id string) bool {
	_, ok := r.Get(id)
	return ok
}

// Latest returns the most recently listed conversation, which is the last
// entry in backend order.
func (r *Registry) Latest() (model.ConversationSummary, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if pair := r.items.Newest(); pair != nil {
		return pair.Value, true
	}
	return model.ConversationSummary{}, false
}

// List returns the summaries in order.
func (r *Registry) List() []model.ConversationSummary {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]model.ConversationSummary, 0, r.items.Len())
	for pair := r.items.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, pair.Value)
	}
	return out
}

// Len returns the number of conversations.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.items.Len()
}
