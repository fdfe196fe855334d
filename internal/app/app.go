// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package app

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/jeranaias/chatdesk/internal/api"
	"github.com/jeranaias/chatdesk/internal/audio"
	"github.com/jeranaias/chatdesk/internal/conversation"
	"github.com/jeranaias/chatdesk/internal/model"
	"github.com/jeranaias/chatdesk/internal/prefs"
	"github.com/jeranaias/chatdesk/internal/registry"
	"github.com/jeranaias/chatdesk/internal/session"
	"github.com/jeranaias/chatdesk/internal/storage"
)

var (
	// ErrStaleCredential means the backend rejected the held token. The
	// session has already been logged out when this is returned.
	ErrStaleCredential = errors.New("session expired, please log in again")

	// ErrNotAuthenticated is returned by operations that need a login.
	ErrNotAuthenticated = errors.New("not logged in")

	// ErrNewChatBlocked refuses a new conversation while the active one has
	// no user message yet.
	ErrNewChatBlocked = errors.New("the current conversation is still empty")

	// ErrNothingToSpeak is returned when there is no assistant reply to read.
	ErrNothingToSpeak = errors.New("no assistant message to speak")

	// ErrNothingToRetry is returned when the last send did not fail.
	ErrNothingToRetry = errors.New("nothing to retry")

	// ErrSendCancelled is returned when the conversation was reset, deleted
	// or logged out while its reply was pending. The reply is discarded.
	ErrSendCancelled = errors.New("send cancelled")

	// ErrReplyMisrouted means the backend stored the message in a different
	// conversation than the active one. The active conversation is reloaded
	// and the foreign history is not shown.
	ErrReplyMisrouted = errors.New("the backend filed this message under another conversation")
)

// Options configures New. Zero values fall back to the api package defaults.
type Options struct {
	BaseURL           string
	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int
	HTTPClient        *http.Client
	UserAgent         string

	// Placeholder is the typing indicator text.
	Placeholder string

	KV         storage.KV
	Player     audio.Player
	DetectDark prefs.DarkDetector
	Logger     zerolog.Logger
}

// inflight tracks the one send that may be waiting on the backend.
type inflight struct {
	conversationID string
	seq            uint64
	cancel         context.CancelFunc
}

// App coordinates the session, the conversation list and the active
// conversation. Every method is safe to call from any goroutine; no lock is
// held while waiting on the network.
type App struct {
	client   *api.Client
	session  *session.Store
	registry *registry.Registry
	conv     *conversation.Controller
	prefs    *prefs.Store
	player   audio.Player
	logger   zerolog.Logger

	// snapMu serializes snapshot reads so versions follow read order.
	snapMu  sync.Mutex
	version uint64

	mu        sync.Mutex
	pending   *inflight
	lastErr   error
	dark      bool
	listeners map[int]func(Snapshot)
	nextID    int
}

// New wires the components together. opts.KV is required.
func New(opts Options) *App {
	logger := opts.Logger.With().Str("component", "app").Logger()

	a := &App{
		player:    opts.Player,
		logger:    logger,
		listeners: make(map[int]func(Snapshot)),
	}

	clientOpts := []api.Option{api.WithLogger(opts.Logger)}
	if opts.HTTPClient != nil {
		clientOpts = append(clientOpts, api.WithHTTPClient(opts.HTTPClient))
	}
	if opts.Timeout > 0 {
		clientOpts = append(clientOpts, api.WithTimeout(opts.Timeout))
	}
	if opts.RequestsPerSecond > 0 {
		clientOpts = append(clientOpts, api.WithRateLimit(opts.RequestsPerSecond, opts.Burst))
	}
	if opts.UserAgent != "" {
		clientOpts = append(clientOpts, api.WithUserAgent(opts.UserAgent))
	}

	// The client reads the token from the session on every call, and the
	// session logs in through the client.
	var creds credentialProxy
	a.client = api.New(opts.BaseURL, append(clientOpts, api.WithCredentials(&creds))...)
	a.session = session.NewStore(opts.KV, a.client, opts.Logger)
	creds.store = a.session

	a.registry = registry.New(a.client, a.session, opts.Logger)
	a.conv = conversation.NewController(opts.Placeholder)
	a.prefs = prefs.NewStore(opts.KV, opts.DetectDark)
	return a
}

type credentialProxy struct {
	store *session.Store
}

func (p *credentialProxy) Credential() string {
	if p.store == nil {
		return ""
	}
	return p.store.Credential()
}

// Client exposes the backend client for read-only front-end needs.
func (a *App) Client() *api.Client {
	return a.client
}

// Session exposes the credential holder.
func (a *App) Session() *session.Store {
	return a.session
}

// =============================================================================
// LIFECYCLE
// =============================================================================

// Restore loads the persisted session and preferences without contacting
// the backend.
func (a *App) Restore() error {
	if err := a.session.Restore(); err != nil {
		return errors.Wrap(err, "restore session")
	}
	if err := a.prefs.Load(); err != nil {
		a.logger.Warn().Err(err).Msg("could not load preferences")
	}
	a.resolveDark()
	a.notify()
	return nil
}

// Start restores the persisted session and preferences, then, when a token
// was found, lists conversations and opens the most recent one. Sync
// failures are recorded in the snapshot and returned.
func (a *App) Start(ctx context.Context) error {
	if err := a.Restore(); err != nil {
		return err
	}
	if !a.session.Authenticated() {
		return nil
	}
	return a.sync(ctx)
}

// sync refreshes the list and opens its most recent entry.
func (a *App) sync(ctx context.Context) error {
	if err := a.Refresh(ctx); err != nil {
		return err
	}
	latest, ok := a.registry.Latest()
	if !ok {
		return nil
	}
	err := a.LoadConversation(ctx, latest.ID)
	if errors.Is(err, conversation.ErrStaleLoad) {
		return nil
	}
	return err
}

// Login authenticates and starts from a clean slate: the previous
// conversation state is dropped, the list is refreshed and the most recent
// conversation is opened. Only the login itself decides the returned error;
// sync failures show up in Snapshot.LastError.
func (a *App) Login(ctx context.Context, username, password string) error {
	if err := a.session.Login(ctx, username, password); err != nil {
		a.setErr(err)
		return err
	}

	a.conv.Reset()
	a.cancelPending()
	a.registry.Clear()
	a.clearErr()
	a.notify()

	if err := a.sync(ctx); err != nil {
		a.logger.Warn().Err(err).Msg("sync after login failed")
	}
	return nil
}

// Register creates an account. The user still has to log in.
func (a *App) Register(ctx context.Context, username, password string) error {
	if err := a.session.Register(ctx, username, password); err != nil {
		a.setErr(err)
		return err
	}
	a.clearErr()
	return nil
}

// Logout drops the token and every piece of conversation state. A pending
// send is cancelled and its reply, if any, is discarded.
func (a *App) Logout() error {
	a.conv.Reset()
	a.cancelPending()
	err := a.session.Logout()
	a.registry.Clear()
	a.conv.SetInput("")
	a.clearErr()
	a.notify()
	if err != nil {
		return errors.Wrap(err, "logout")
	}
	return nil
}

// Reconcile picks up a token written or removed by another process sharing
// the same store. A removed token logs out locally; a new one starts over.
func (a *App) Reconcile(ctx context.Context) error {
	changed, err := a.session.Reconcile()
	if err != nil {
		return errors.Wrap(err, "reconcile session")
	}
	if !changed {
		return nil
	}

	a.logger.Info().Bool("authenticated", a.session.Authenticated()).Msg("credential changed outside this process")
	a.conv.Reset()
	a.cancelPending()
	a.registry.Clear()
	a.clearErr()
	a.notify()

	if !a.session.Authenticated() {
		return nil
	}
	return a.sync(ctx)
}

// =============================================================================
// CONVERSATIONS
// =============================================================================

// Refresh re-reads the conversation list. Without a login it does nothing.
// If the active conversation is no longer listed it is closed.
func (a *App) Refresh(ctx context.Context) error {
	if !a.session.Authenticated() {
		return nil
	}
	if err := a.registry.Refresh(ctx); err != nil {
		return a.fail(err)
	}
	a.session.MarkVerified()

	if id, ok := a.conv.ActiveID(); ok && !a.registry.Contains(id) {
		a.logger.Info().Str("conversation", id).Msg("active conversation no longer listed")
		a.dropActive(id)
	}
	a.notify()
	return nil
}

// LoadConversation fetches id and makes it active. It is refused with
// conversation.ErrBusy while a reply is pending. When loads overlap the most
// recently started one wins and the others return conversation.ErrStaleLoad.
func (a *App) LoadConversation(ctx context.Context, id string) error {
	if !a.session.Authenticated() {
		return ErrNotAuthenticated
	}
	ticket, err := a.conv.BeginLoad()
	if err != nil {
		a.setErr(err)
		return err
	}

	conv, err := a.client.GetConversation(ctx, id)
	if err != nil {
		return a.fail(errors.Wrapf(err, "load conversation %s", id))
	}
	a.session.MarkVerified()

	if err := a.conv.FinishLoad(ticket, id, conv.History); err != nil {
		if errors.Is(err, conversation.ErrStaleLoad) {
			a.logger.Debug().Str("conversation", id).Msg("discarding superseded load")
		}
		return err
	}
	a.clearErr()
	a.notify()
	return nil
}

// NewConversation creates a conversation and opens it empty.
func (a *App) NewConversation(ctx context.Context) (model.ConversationSummary, error) {
	if !a.session.Authenticated() {
		return model.ConversationSummary{}, ErrNotAuthenticated
	}
	if a.conv.State() == conversation.StateAwaitingResponse {
		return model.ConversationSummary{}, conversation.ErrBusy
	}
	if a.conv.NewChatBlocked() {
		return model.ConversationSummary{}, ErrNewChatBlocked
	}

	summary, err := a.registry.Create(ctx)
	if err != nil {
		return model.ConversationSummary{}, a.fail(err)
	}
	a.session.MarkVerified()

	if err := a.conv.Show(summary.ID, nil); err != nil {
		a.notify()
		return summary, err
	}
	a.clearErr()
	a.notify()
	return summary, nil
}

// DeleteConversation removes id on the backend and re-reads the list. If id
// is active it is closed whether or not the backend call succeeded.
func (a *App) DeleteConversation(ctx context.Context, id string) error {
	if !a.session.Authenticated() {
		return ErrNotAuthenticated
	}

	err := a.registry.Delete(ctx, id)
	if active, ok := a.conv.ActiveID(); ok && active == id {
		a.dropActive(id)
	}
	if err != nil {
		a.notify()
		return a.fail(err)
	}
	a.session.MarkVerified()
	a.clearErr()
	a.notify()
	return nil
}

// =============================================================================
// MESSAGES
// =============================================================================

// SetInput replaces the pending input text.
func (a *App) SetInput(text string) {
	a.conv.SetInput(text)
	a.notify()
}

// SendText sets the input to text and sends it.
func (a *App) SendText(ctx context.Context, text string) error {
	a.conv.SetInput(text)
	return a.Send(ctx)
}

// Send submits the pending input. Blank input is a no-op. With no
// conversation open one is created first. The user message and a typing
// placeholder are shown right away; the backend's history replaces them
// when it answers.
func (a *App) Send(ctx context.Context) error {
	if !a.session.Authenticated() {
		return ErrNotAuthenticated
	}
	if strings.TrimSpace(a.conv.Input()) == "" {
		return nil
	}
	if a.conv.State() == conversation.StateEmpty {
		if _, err := a.NewConversation(ctx); err != nil {
			return err
		}
	}

	req, ok, err := a.conv.BeginSend()
	if err != nil {
		a.setErr(err)
		return err
	}
	if !ok {
		return nil
	}

	sendCtx, cancel := context.WithCancel(ctx)
	a.mu.Lock()
	if a.pending != nil {
		a.pending.cancel()
	}
	a.pending = &inflight{conversationID: req.ConversationID, seq: req.Seq, cancel: cancel}
	a.lastErr = nil
	a.mu.Unlock()
	a.notify()

	log := a.logger.With().Str("conversation", req.ConversationID).Uint64("seq", req.Seq).Logger()
	log.Debug().Int("chars", len(req.Text)).Msg("sending")

	reply, err := a.client.Chat(sendCtx, req.Text)
	a.finishPending(req.Seq)

	if err != nil {
		if !a.conv.FailSend(req.Seq) {
			log.Debug().Err(err).Msg("send superseded")
			return ErrSendCancelled
		}
		a.notify()
		return a.fail(errors.Wrap(err, "send message"))
	}

	// The backend writes to its own notion of the current conversation,
	// which a plain fetch does not move. A history that does not continue the
	// active one belongs to another conversation.
	history, misrouted := reply.History, false
	if !continuesHistory(reply.History, req) {
		own, err := a.client.GetConversation(ctx, req.ConversationID)
		if err != nil {
			if !a.conv.FailSend(req.Seq) {
				return ErrSendCancelled
			}
			a.notify()
			return a.fail(errors.Wrapf(err, "reload conversation %s", req.ConversationID))
		}
		history = own.History
		misrouted = !sameMessages(own.History, reply.History)
	}

	if !a.conv.CompleteSend(req.Seq, history) {
		log.Debug().Msg("discarding reply for superseded send")
		return ErrSendCancelled
	}
	a.session.MarkVerified()
	a.notify()

	// The backend retitles a conversation after its first exchange.
	if err := a.Refresh(ctx); err != nil {
		log.Warn().Err(err).Msg("refresh after send failed")
	}
	if misrouted {
		log.Warn().Msg("reply history belongs to another conversation")
		a.setErr(ErrReplyMisrouted)
		return ErrReplyMisrouted
	}
	return nil
}

// continuesHistory reports whether history is the conversation req was sent
// in: the server's last history for it followed by the sent message.
func continuesHistory(history []model.Message, req conversation.Request) bool {
	n := len(req.Base)
	if len(history) <= n || !sameMessages(history[:n], req.Base) {
		return false
	}
	next := history[n]
	return next.Role == model.RoleUser && next.Content == req.Text
}

func sameMessages(a, b []model.Message) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Role != b[i].Role || a[i].Content != b[i].Content {
			return false
		}
	}
	return true
}

// Retry resends the text of the last failed message.
func (a *App) Retry(ctx context.Context) error {
	if !a.conv.PrepareRetry() {
		return ErrNothingToRetry
	}
	a.notify()
	return a.Send(ctx)
}

// SpeakLast asks the backend to read the most recent assistant reply aloud
// and plays it. It returns where the clip was saved, or its URL when no
// player is configured.
func (a *App) SpeakLast(ctx context.Context) (string, error) {
	msg, ok := a.conv.LastAssistant()
	if !ok {
		return "", ErrNothingToSpeak
	}
	return a.Speak(ctx, msg.Content)
}

// Speak synthesizes text and plays it like SpeakLast.
func (a *App) Speak(ctx context.Context, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", ErrNothingToSpeak
	}
	raw, err := a.client.Speak(ctx, text)
	if err != nil {
		return "", a.fail(errors.Wrap(err, "speak"))
	}
	resolved, err := audio.ResolveURL(raw, a.client.BaseURL())
	if err != nil {
		return "", a.fail(err)
	}
	if a.player == nil {
		return resolved, nil
	}

	file, err := a.player.Play(ctx, resolved)
	if err != nil {
		return file, a.fail(errors.Wrap(err, "play audio"))
	}
	return file, nil
}

// =============================================================================
// PREFERENCES
// =============================================================================

// SetTheme persists t and re-resolves the dark flag.
func (a *App) SetTheme(t prefs.Theme) error {
	if err := a.prefs.SetTheme(t); err != nil {
		return errors.Wrap(err, "set theme")
	}
	a.resolveDark()
	a.notify()
	return nil
}

// resolveDark caches the effective dark flag. The detector may talk to the
// terminal, so it only runs on start and on theme changes.
func (a *App) resolveDark() {
	dark := a.prefs.IsDark()
	a.mu.Lock()
	a.dark = dark
	a.mu.Unlock()
}

// =============================================================================
// INTERNALS
// =============================================================================

// fail records err for display. A rejected credential logs out and becomes
// ErrStaleCredential.
func (a *App) fail(err error) error {
	if errors.Is(err, api.ErrUnauthorized) {
		a.logger.Warn().Err(err).Msg("credential rejected, logging out")
		if logoutErr := a.Logout(); logoutErr != nil {
			a.logger.Warn().Err(logoutErr).Msg("logout after rejected credential")
		}
		a.setErr(ErrStaleCredential)
		return ErrStaleCredential
	}
	if errors.Is(err, api.ErrNoCredential) {
		err = ErrNotAuthenticated
	}
	a.setErr(err)
	return err
}

func (a *App) setErr(err error) {
	a.mu.Lock()
	a.lastErr = err
	a.mu.Unlock()
	a.notify()
}

func (a *App) clearErr() {
	a.mu.Lock()
	a.lastErr = nil
	a.mu.Unlock()
}

// dropActive closes the active conversation and cancels its pending send.
// The controller is reset first so the cancelled send finds its seq stale.
func (a *App) dropActive(id string) {
	a.conv.Reset()
	a.mu.Lock()
	if a.pending != nil && a.pending.conversationID == id {
		a.pending.cancel()
		a.pending = nil
	}
	a.mu.Unlock()
}

// cancelPending aborts the pending send. Callers reset the controller first.
func (a *App) cancelPending() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.pending != nil {
		a.pending.cancel()
		a.pending = nil
	}
}

// finishPending releases the send context for seq if it is still current.
func (a *App) finishPending(seq uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.pending != nil && a.pending.seq == seq {
		a.pending.cancel()
		a.pending = nil
	}
}
