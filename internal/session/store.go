// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	"github.com/jeranaias/chatdesk/internal/api"
	"github.com/jeranaias/chatdesk/internal/storage"
)

// =============================================================================
// CREDENTIAL STATE
// =============================================================================

// CredentialState tracks how much we know about the held token.
type CredentialState int

const (
	// CredentialNone means no token is held.
	CredentialNone CredentialState = iota

	// CredentialUnverified is a token restored from disk that the backend has
	// not accepted yet in this process.
	CredentialUnverified

	// CredentialVerified is a token from a fresh login, or a restored token
	// after its first successful authenticated call.
	CredentialVerified
)

// String returns a short label for the state.
func (s CredentialState) String() string {
	switch s {
	case CredentialNone:
		return "none"
	case CredentialUnverified:
		return "unverified"
	case CredentialVerified:
		return "verified"
	default:
		return "unknown"
	}
}

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrInvalidCredentials is returned when the backend rejects a login.
	ErrInvalidCredentials = errors.New("invalid username or password")

	// ErrRegistrationFailed matches every *RegistrationError.
	ErrRegistrationFailed = errors.New("registration failed")

	// ErrMissingFields is returned before any request when a username or
	// password is blank.
	ErrMissingFields = errors.New("username and password are required")
)

// RegistrationError carries the backend's reason for refusing a registration.
type RegistrationError struct {
	Detail string
}

func (e *RegistrationError) Error() string {
	if e.Detail == "" {
		return ErrRegistrationFailed.Error()
	}
	return ErrRegistrationFailed.Error() + ": " + e.Detail
}

// Is makes errors.Is(err, ErrRegistrationFailed) hold.
func (e *RegistrationError) Is(target error) bool {
	return target == ErrRegistrationFailed
}

// =============================================================================
// STORE
// =============================================================================

// Authenticator is the slice of the backend the store needs.
type Authenticator interface {
	Login(ctx context.Context, username, password string) (string, error)
	Register(ctx context.Context, username, password string) error
}

// Store owns the credential. It is the only writer of the in-memory token and
// of the persisted "token" key.
type Store struct {
	mu     sync.RWMutex
	kv     storage.KV
	auth   Authenticator
	logger zerolog.Logger

	token string
	state CredentialState
}

// NewStore creates a store with no credential. Call Restore to adopt a
// persisted one.
func NewStore(kv storage.KV, auth Authenticator, logger zerolog.Logger) *Store {
	return &Store{
		kv:     kv,
		auth:   auth,
		logger: logger.With().Str("component", "session").Logger(),
	}
}

// Restore adopts the persisted token as unverified without contacting the
// backend. A missing token leaves the store empty.
func (s *Store) Restore() error {
	token, ok, err := s.kv.Get(storage.KeyToken)
	if err != nil {
		return fmt.Errorf("session: restore: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !ok || token == "" {
		s.token, s.state = "", CredentialNone
		return nil
	}
	s.token, s.state = token, CredentialUnverified

	if exp, ok := tokenExpiry(token); ok && exp.Before(time.Now()) {
		// The backend is the authority; a stale token is discovered on first use.
		s.logger.Debug().Time("expires_at", exp).Msg("restored token looks expired")
	}
	return nil
}

// Login authenticates and, on success, holds and persists the token. On any
// failure nothing changes.
func (s *Store) Login(ctx context.Context, username, password string) error {
	if strings.TrimSpace(username) == "" || password == "" {
		return ErrMissingFields
	}

	token, err := s.auth.Login(ctx, username, password)
	if err != nil {
		if isHTTPFailure(err) {
			s.logger.Info().Str("username", username).Msg("login rejected")
			return ErrInvalidCredentials
		}
		return fmt.Errorf("session: login: %w", err)
	}

	s.mu.Lock()
	s.token, s.state = token, CredentialVerified
	s.mu.Unlock()

	if err := s.kv.Set(storage.KeyToken, token); err != nil {
		// Still logged in for this process.
		s.logger.Warn().Err(err).Msg("could not persist token")
	}
	s.logger.Info().Str("username", username).Msg("logged in")
	return nil
}

// Register creates an account. It never authenticates.
func (s *Store) Register(ctx context.Context, username, password string) error {
	if strings.TrimSpace(username) == "" || password == "" {
		return ErrMissingFields
	}

	if err := s.auth.Register(ctx, username, password); err != nil {
		if isHTTPFailure(err) {
			return &RegistrationError{Detail: api.Detail(err)}
		}
		return fmt.Errorf("session: register: %w", err)
	}
	s.logger.Info().Str("username", username).Msg("registered")
	return nil
}

// Logout drops the in-memory and persisted token. The in-memory token is
// cleared even when the persisted copy cannot be removed.
func (s *Store) Logout() error {
	s.mu.Lock()
	s.token, s.state = "", CredentialNone
	s.mu.Unlock()

	if err := s.kv.Delete(storage.KeyToken); err != nil {
		return fmt.Errorf("session: logout: %w", err)
	}
	return nil
}

// Reconcile re-reads the persisted token after another process changed it.
// It reports whether the in-memory credential changed.
func (s *Store) Reconcile() (bool, error) {
	token, ok, err := s.kv.Get(storage.KeyToken)
	if err != nil {
		return false, fmt.Errorf("session: reconcile: %w", err)
	}
	if !ok {
		token = ""
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if token == s.token {
		return false, nil
	}
	s.token = token
	if token == "" {
		s.state = CredentialNone
	} else {
		s.state = CredentialUnverified
	}
	return true, nil
}

// MarkVerified records that the backend accepted the held token.
func (s *Store) MarkVerified() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == CredentialUnverified {
		s.state = CredentialVerified
	}
}

// Credential returns the held token, or "" when logged out.
func (s *Store) Credential() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// State returns the credential state.
func (s *Store) State() CredentialState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Authenticated reports whether a token is held, verified or not.
func (s *Store) Authenticated() bool {
	return s.State() != CredentialNone
}

// ExpiresAt returns the "exp" claim when the token is a JWT. The signature is
// not checked; this is informational only.
func (s *Store) ExpiresAt() (time.Time, bool) {
	token := s.Credential()
	if token == "" {
		return time.Time{}, false
	}
	return tokenExpiry(token)
}

func tokenExpiry(token string) (time.Time, bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

// isHTTPFailure reports whether err is a backend answer (as opposed to a
// request that never got one).
func isHTTPFailure(err error) bool {
	var apiErr *api.Error
	return errors.As(err, &apiErr) && apiErr.Status != 0
}
