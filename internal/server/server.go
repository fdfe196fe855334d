// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/jeranaias/chatdesk/internal/model"
)

// ============================================================================
// CONSTANTS
// ============================================================================

const (
	// DefaultTokenTTL is the lifetime of issued tokens.
	DefaultTokenTTL = time.Hour

	// DefaultAudioBase mimics the backend advertising clips under its
	// container-network name.
	DefaultAudioBase = "http://backend:8000"

	// MaxRequestBodySize caps request bodies (1MB).
	MaxRequestBodySize = 1 * 1024 * 1024

	// missingConversation is the body the backend sends, with a 200, for an
	// unknown conversation id.
	missingConversation = "No existe la conversación"
)

// Responder produces the assistant reply for text given the history so far.
type Responder func(history []model.Message, text string) string

// EchoResponder acknowledges the message the way the reference bot does.
func EchoResponder(_ []model.Message, text string) string {
	return "Recibido: " + text
}

// Options configures a Server.
type Options struct {
	TokenTTL  time.Duration
	AudioBase string
	Responder Responder
	Logger    zerolog.Logger
}

// Faults forces an HTTP status on a route. Zero leaves the route alone.
type Faults struct {
	List   int
	Get    int
	Create int
	Delete int
	Chat   int
	Speak  int
}

// ============================================================================
// SERVER
// ============================================================================

type conversation struct {
	title   string
	history []model.Message
}

type account struct {
	password      string
	conversations *orderedmap.OrderedMap[string, *conversation]
	current       string
}

// Server holds users, tokens and conversations in memory.
type Server struct {
	opts   Options
	secret []byte
	router *http.ServeMux
	logger zerolog.Logger

	mu       sync.Mutex
	accounts map[string]*account
	issued   map[string]string
	audio    map[string][]byte
	faults   Faults
	hold     chan struct{}
	listHold *listHold
	hits     map[string]int
}

type listHold struct {
	held    chan struct{}
	release chan struct{}
}

// New creates an empty server.
func New(opts Options) *Server {
	if opts.TokenTTL <= 0 {
		opts.TokenTTL = DefaultTokenTTL
	}
	if opts.AudioBase == "" {
		opts.AudioBase = DefaultAudioBase
	}
	if opts.Responder == nil {
		opts.Responder = EchoResponder
	}

	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		panic(fmt.Sprintf("server: generate secret: %v", err))
	}

	s := &Server{
		opts:     opts,
		secret:   secret,
		router:   http.NewServeMux(),
		logger:   opts.Logger.With().Str("component", "server").Logger(),
		accounts: make(map[string]*account),
		issued:   make(map[string]string),
		audio:    make(map[string][]byte),
		hits:     make(map[string]int),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("POST /register", s.handleRegister)
	s.router.HandleFunc("POST /login", s.handleLogin)
	s.router.HandleFunc("GET /conversations", s.authed(s.handleList))
	s.router.HandleFunc("GET /conversations/{id}", s.authed(s.handleGet))
	s.router.HandleFunc("POST /conversations", s.authed(s.handleCreate))
	s.router.HandleFunc("DELETE /conversations/{id}", s.authed(s.handleDelete))
	s.router.HandleFunc("POST /chat", s.authed(s.handleChat))
	s.router.HandleFunc("POST /speak", s.handleSpeak)
	s.router.HandleFunc("GET /audio/{name}", s.handleAudio)
}

// Handler returns the routes wrapped in the middleware chain.
func (s *Server) Handler() http.Handler {
	return Chain(
		RecoveryMiddleware(s.logger),
		LoggingMiddleware(s.logger),
		s.countMiddleware,
	)(s.router)
}

// ============================================================================
// TEST CONTROLS
// ============================================================================

// AddUser creates an account directly.
func (s *Server) AddUser(username, password string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[username] = newAccount(password)
}

// Seed appends a conversation with history to username's list and returns
// its id.
func (s *Server) Seed(username, title string, history ...model.Message) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	acct := s.accounts[username]
	if acct == nil {
		acct = newAccount("")
		s.accounts[username] = acct
	}
	id := newConversationID()
	acct.conversations.Set(id, &conversation{title: title, history: model.CloneMessages(history)})
	acct.current = id
	return id
}

// History returns a copy of a stored conversation.
func (s *Server) History(username, id string) []model.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	if acct := s.accounts[username]; acct != nil {
		if conv, ok := acct.conversations.Get(id); ok {
			return model.CloneMessages(conv.history)
		}
	}
	return nil
}

// Current returns username's current conversation id.
func (s *Server) Current(username string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if acct := s.accounts[username]; acct != nil {
		return acct.current
	}
	return ""
}

// SetFaults replaces the injected faults.
func (s *Server) SetFaults(f Faults) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults = f
}

// Revoke invalidates every issued token.
func (s *Server) Revoke() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.issued = make(map[string]string)
}

// HoldChat parks /chat requests until the returned release is called or the
// client goes away. Release is idempotent.
func (s *Server) HoldChat() (release func()) {
	ch := make(chan struct{})
	s.mu.Lock()
	s.hold = ch
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			if s.hold == ch {
				s.hold = nil
			}
			s.mu.Unlock()
			close(ch)
		})
	}
}

// HoldList parks the next GET /conversations after it has read the list, so
// its response shows the list as it was at that moment. held is closed once
// the request is parked. Release is idempotent.
func (s *Server) HoldList() (held <-chan struct{}, release func()) {
	h := &listHold{held: make(chan struct{}), release: make(chan struct{})}
	s.mu.Lock()
	s.listHold = h
	s.mu.Unlock()

	var once sync.Once
	return h.held, func() {
		once.Do(func() {
			s.mu.Lock()
			if s.listHold == h {
				s.listHold = nil
			}
			s.mu.Unlock()
			close(h.release)
		})
	}
}

// Hits returns how many requests matched pattern, e.g. "POST /chat".
func (s *Server) Hits(pattern string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[pattern]
}

func (s *Server) countMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, pattern := s.router.Handler(r)
		s.mu.Lock()
		s.hits[pattern]++
		s.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

// ============================================================================
// AUTH
// ============================================================================

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var in credentials
	if !s.decode(w, r, &in) {
		return
	}
	if strings.TrimSpace(in.Username) == "" || in.Password == "" {
		writeDetail(w, http.StatusBadRequest, "Username and password are required")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.accounts[in.Username]; exists {
		writeDetail(w, http.StatusBadRequest, "Usuario ya existe")
		return
	}
	s.accounts[in.Username] = newAccount(in.Password)
	writeJSON(w, http.StatusOK, map[string]string{"message": "Usuario registrado"})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var in credentials
	if !s.decode(w, r, &in) {
		return
	}

	s.mu.Lock()
	acct := s.accounts[in.Username]
	s.mu.Unlock()
	if acct == nil || acct.password == "" || acct.password != in.Password {
		writeDetail(w, http.StatusUnauthorized, "Credenciales inválidas")
		return
	}

	token, err := s.mint(in.Username)
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

// mint issues a signed token for username.
func (s *Server) mint(username string) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   username,
		ID:        uuid.NewString(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.opts.TokenTTL)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}

	s.mu.Lock()
	s.issued[token] = username
	s.mu.Unlock()
	return token, nil
}

// authed resolves the bare Authorization token to an account.
func (s *Server) authed(next func(http.ResponseWriter, *http.Request, *account)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw := r.Header.Get("Authorization")

		var claims jwt.RegisteredClaims
		_, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (interface{}, error) {
			return s.secret, nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err != nil {
			writeDetail(w, http.StatusUnauthorized, "Token inválido")
			return
		}

		s.mu.Lock()
		username, ok := s.issued[raw]
		acct := s.accounts[username]
		s.mu.Unlock()
		if !ok || acct == nil || username != claims.Subject {
			writeDetail(w, http.StatusUnauthorized, "Token inválido")
			return
		}
		next(w, r, acct)
	}
}

// ============================================================================
// CONVERSATIONS
// ============================================================================

type titleEntry struct {
	Title string `json:"title"`
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request, acct *account) {
	if s.fault(w, func(f Faults) int { return f.List }) {
		return
	}

	s.mu.Lock()
	listing := orderedmap.New[string, titleEntry]()
	for pair := acct.conversations.Oldest(); pair != nil; pair = pair.Next() {
		listing.Set(pair.Key, titleEntry{Title: pair.Value.title})
	}
	hold := s.listHold
	s.listHold = nil
	s.mu.Unlock()

	if hold != nil {
		close(hold.held)
		select {
		case <-hold.release:
		case <-r.Context().Done():
			return
		}
	}

	writeJSON(w, http.StatusOK, listing)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request, acct *account) {
	if s.fault(w, func(f Faults) int { return f.Get }) {
		return
	}
	id := r.PathValue("id")

	s.mu.Lock()
	conv, ok := acct.conversations.Get(id)
	if !ok {
		s.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]string{"error": missingConversation})
		return
	}
	body := map[string]interface{}{
		"id":      id,
		"title":   conv.title,
		"history": model.CloneMessages(conv.history),
	}
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, body)
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request, acct *account) {
	if s.fault(w, func(f Faults) int { return f.Create }) {
		return
	}

	s.mu.Lock()
	id := newConversationID()
	acct.conversations.Set(id, &conversation{title: model.DefaultTitle, history: []model.Message{}})
	acct.current = id
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]string{"id": id, "title": model.DefaultTitle})
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request, acct *account) {
	if s.fault(w, func(f Faults) int { return f.Delete }) {
		return
	}
	id := r.PathValue("id")

	s.mu.Lock()
	if _, present := acct.conversations.Delete(id); present && acct.current == id {
		acct.current = ""
		if newest := acct.conversations.Newest(); newest != nil {
			acct.current = newest.Key
		}
	}
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// ============================================================================
// CHAT / SPEECH
// ============================================================================

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request, acct *account) {
	var in struct {
		Message string `json:"message"`
	}
	if !s.decode(w, r, &in) {
		return
	}

	s.mu.Lock()
	hold := s.hold
	s.mu.Unlock()
	if hold != nil {
		select {
		case <-hold:
		case <-r.Context().Done():
			return
		}
	}
	if s.fault(w, func(f Faults) int { return f.Chat }) {
		return
	}

	s.mu.Lock()
	conv, ok := acct.conversations.Get(acct.current)
	if !ok {
		acct.current = newConversationID()
		conv = &conversation{title: model.DefaultTitle}
		acct.conversations.Set(acct.current, conv)
	}
	conv.history = append(conv.history, model.NewUserMessage(in.Message))
	sofar := model.CloneMessages(conv.history)
	s.mu.Unlock()

	reply := s.opts.Responder(sofar, in.Message)
	if strings.TrimSpace(reply) == "" {
		reply = "Lo siento, no tengo respuesta para eso."
	}

	s.mu.Lock()
	conv.history = append(conv.history, model.NewAssistantMessage(reply))
	if model.CountRole(conv.history, model.RoleUser) == 1 {
		conv.title = generateTitle(in.Message)
	}
	history := model.CloneMessages(conv.history)
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]interface{}{"response": reply, "history": history})
}

func (s *Server) handleSpeak(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Text string `json:"text"`
	}
	if !s.decode(w, r, &in) {
		return
	}
	if s.fault(w, func(f Faults) int { return f.Speak }) {
		return
	}

	name := uuid.NewString()[:8] + ".mp3"
	s.mu.Lock()
	s.audio[name] = append([]byte("ID3"), in.Text...)
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]string{
		"audio_url": strings.TrimSuffix(s.opts.AudioBase, "/") + "/audio/" + name,
	})
}

func (s *Server) handleAudio(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	data, ok := s.audio[r.PathValue("name")]
	s.mu.Unlock()
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "audio/mpeg")
	w.Write(data)
}

// ============================================================================
// HELPERS
// ============================================================================

func newAccount(password string) *account {
	return &account{
		password:      password,
		conversations: orderedmap.New[string, *conversation](),
	}
}

func newConversationID() string {
	return uuid.NewString()[:8]
}

// generateTitle keeps the first three words of the opening message.
func generateTitle(prompt string) string {
	words := strings.Fields(prompt)
	if len(words) <= 3 {
		return strings.Join(words, " ")
	}
	return strings.Join(words[:3], " ") + "..."
}

// fault writes the injected status for a route, if any.
func (s *Server) fault(w http.ResponseWriter, pick func(Faults) int) bool {
	s.mu.Lock()
	status := pick(s.faults)
	s.mu.Unlock()
	if status == 0 {
		return false
	}
	writeDetail(w, status, http.StatusText(status))
	return true
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBodySize)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "invalid JSON body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
