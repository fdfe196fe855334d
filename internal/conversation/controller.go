// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package conversation

import (
	"errors"
	"strings"
	"sync"

	"github.com/jeranaias/chatdesk/internal/model"
)

// =============================================================================
// STATE
// =============================================================================

// State is the controller's lifecycle position.
type State int

const (
	// StateEmpty means no conversation is active.
	StateEmpty State = iota

	// StateLoaded means a conversation is active and idle.
	StateLoaded

	// StateAwaitingResponse means a message was sent and the reply is pending.
	StateAwaitingResponse
)

// String returns a short label for the state.
func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateLoaded:
		return "loaded"
	case StateAwaitingResponse:
		return "awaiting-response"
	default:
		return "unknown"
	}
}

var (
	// ErrBusy rejects loads and new sends while a reply is pending.
	ErrBusy = errors.New("waiting for the assistant to reply")

	// ErrNoActiveConversation is returned by BeginSend in StateEmpty.
	ErrNoActiveConversation = errors.New("no active conversation")

	// ErrStaleLoad is returned when a newer load or a reset superseded this one.
	ErrStaleLoad = errors.New("load superseded")
)

// DefaultFailureText is shown in place of the reply when a send fails.
const DefaultFailureText = "Message failed to send."

// Request is a send that has been applied optimistically and must now go to
// the backend.
type Request struct {
	ConversationID string
	Text           string
	Seq            uint64

	// Base is the history last received from the server for the
	// conversation. A reply for it must start with Base.
	Base []model.Message
}

// View is a consistent copy of the controller's state.
type View struct {
	State          State
	ActiveID       string
	Messages       []model.Message
	Input          string
	NewChatBlocked bool
	CanRetry       bool
}

// =============================================================================
// CONTROLLER
// =============================================================================

// Controller owns the active conversation id, its message sequence and the
// pending input buffer. The id and the sequence only ever change together.
type Controller struct {
	placeholder string
	failureText string

	mu         sync.RWMutex
	state      State
	activeID   string
	messages   []model.Message
	input      string
	seq        uint64
	pendingSeq uint64
	loadGen    uint64
	failedText *string
	synced     []model.Message
}

// NewController creates an empty controller. placeholder is the text of the
// typing indicator.
func NewController(placeholder string) *Controller {
	return &Controller{
		placeholder: placeholder,
		failureText: DefaultFailureText,
		messages:    []model.Message{},
	}
}

// SetFailureText overrides the text of the failure marker.
func (c *Controller) SetFailureText(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failureText = text
}

// ----- loading -----

// BeginLoad reserves a load ticket. Loads are refused while a reply is
// pending. Starting a new load invalidates older tickets.
func (c *Controller) BeginLoad() (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateAwaitingResponse {
		return 0, ErrBusy
	}
	c.loadGen++
	return c.loadGen, nil
}

// FinishLoad makes id active with history, replacing both atomically.
func (c *Controller) FinishLoad(ticket uint64, id string, history []model.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateAwaitingResponse {
		return ErrBusy
	}
	if ticket != c.loadGen {
		return ErrStaleLoad
	}

	c.activeID = id
	c.messages = model.Confirm(history)
	c.synced = model.CloneMessages(c.messages)
	c.state = StateLoaded
	c.failedText = nil
	return nil
}

// Show is BeginLoad and FinishLoad in one step, for data already at hand.
func (c *Controller) Show(id string, history []model.Message) error {
	ticket, err := c.BeginLoad()
	if err != nil {
		return err
	}
	return c.FinishLoad(ticket, id, history)
}

// Reset returns to StateEmpty. Pending sends and loads are invalidated; their
// results will be ignored. The input buffer is kept.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = StateEmpty
	c.activeID = ""
	c.messages = []model.Message{}
	c.synced = nil
	c.pendingSeq = 0
	c.loadGen++
	c.failedText = nil
}

// ----- input -----

// SetInput replaces the pending input buffer.
func (c *Controller) SetInput(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.input = text
}

// Input returns the pending input buffer.
func (c *Controller) Input() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.input
}

// ----- sending -----

// BeginSend applies the pending input optimistically. With blank input it
// does nothing and returns ok == false. Otherwise it appends the user message
// and the typing placeholder, clears the input and returns the request to
// send. The text is passed through untrimmed.
func (c *Controller) BeginSend() (req Request, ok bool, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if strings.TrimSpace(c.input) == "" {
		return Request{}, false, nil
	}
	switch c.state {
	case StateEmpty:
		return Request{}, false, ErrNoActiveConversation
	case StateAwaitingResponse:
		return Request{}, false, ErrBusy
	}

	text := c.input
	next := model.CloneMessages(c.messages)
	next = append(next, model.NewUserMessage(text), model.NewPlaceholder(c.placeholder))

	c.seq++
	c.messages = next
	c.input = ""
	c.state = StateAwaitingResponse
	c.pendingSeq = c.seq
	c.failedText = nil

	return Request{
		ConversationID: c.activeID,
		Text:           text,
		Seq:            c.seq,
		Base:           model.CloneMessages(c.synced),
	}, true, nil
}

// CompleteSend installs the server's history for the send identified by seq.
// It reports false, changing nothing, when seq is no longer pending.
func (c *Controller) CompleteSend(seq uint64, history []model.Message) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateAwaitingResponse || seq != c.pendingSeq {
		return false
	}

	c.messages = model.Confirm(history)
	c.synced = model.CloneMessages(c.messages)
	c.state = StateLoaded
	c.pendingSeq = 0
	return true
}

// FailSend swaps the typing placeholder for a failure marker and returns to
// StateLoaded. The user message stays so it can be retried.
func (c *Controller) FailSend(seq uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateAwaitingResponse || seq != c.pendingSeq {
		return false
	}

	next := model.CloneMessages(c.messages)
	for i := len(next) - 1; i >= 0; i-- {
		if next[i].IsPlaceholder() {
			next[i] = model.NewFailureMarker(c.failureText)
			break
		}
	}
	// The user message sits right before the marker.
	if n := len(next); n >= 2 && next[n-2].Role == model.RoleUser {
		text := next[n-2].Content
		c.failedText = &text
	}

	c.messages = next
	c.state = StateLoaded
	c.pendingSeq = 0
	return true
}

// PrepareRetry removes a failed exchange and puts its text back into the
// input buffer, ready for BeginSend. It reports whether there was one.
func (c *Controller) PrepareRetry() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateLoaded || c.failedText == nil {
		return false
	}
	n := len(c.messages)
	if n < 2 || !c.messages[n-1].IsFailed() || c.messages[n-2].Role != model.RoleUser {
		c.failedText = nil
		return false
	}

	c.messages = model.CloneMessages(c.messages[:n-2])
	c.input = *c.failedText
	c.failedText = nil
	return true
}

// ----- queries -----

// State returns the lifecycle state.
func (c *Controller) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// ActiveID returns the active conversation id, if any.
func (c *Controller) ActiveID() (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.activeID, c.activeID != ""
}

// PendingSeq returns the seq of the in-flight send, or 0.
func (c *Controller) PendingSeq() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.pendingSeq
}

// Messages returns a copy of the message sequence.
func (c *Controller) Messages() []model.Message {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return model.CloneMessages(c.messages)
}

// NewChatBlocked reports whether starting another conversation should be
// refused: one is active and the user has not written in it yet.
func (c *Controller) NewChatBlocked() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.newChatBlockedLocked()
}

func (c *Controller) newChatBlockedLocked() bool {
	return c.activeID != "" && model.CountRole(c.messages, model.RoleUser) == 0
}

// LastAssistant returns the newest confirmed assistant message. Typing
// placeholders and failure markers are skipped.
func (c *Controller) LastAssistant() (model.Message, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for i := len(c.messages) - 1; i >= 0; i-- {
		m := c.messages[i]
		if m.Role == model.RoleAssistant && m.Status == model.StatusConfirmed {
			return m, true
		}
	}
	return model.Message{}, false
}

// View returns a consistent copy of everything a front end renders.
func (c *Controller) View() View {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return View{
		State:          c.state,
		ActiveID:       c.activeID,
		Messages:       model.CloneMessages(c.messages),
		Input:          c.input,
		NewChatBlocked: c.newChatBlockedLocked(),
		CanRetry:       c.state == StateLoaded && c.failedText != nil,
	}
}
