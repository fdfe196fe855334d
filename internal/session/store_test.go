// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/chatdesk/internal/api"
	"github.com/jeranaias/chatdesk/internal/storage"
)

type fakeAuth struct {
	loginToken  string
	loginErr    error
	registerErr error
	calls       int
}

func (f *fakeAuth) Login(ctx context.Context, username, password string) (string, error) {
	f.calls++
	return f.loginToken, f.loginErr
}

func (f *fakeAuth) Register(ctx context.Context, username, password string) error {
	f.calls++
	return f.registerErr
}

func newStore(t *testing.T, auth *fakeAuth) (*Store, *storage.Memory) {
	t.Helper()
	kv := storage.NewMemory()
	return NewStore(kv, auth, zerolog.Nop()), kv
}

func TestStore_LoginPersistsVerifiedToken(t *testing.T) {
	s, kv := newStore(t, &fakeAuth{loginToken: "tok"})

	require.NoError(t, s.Login(context.Background(), "ana", "pw"))
	assert.Equal(t, "tok", s.Credential())
	assert.Equal(t, CredentialVerified, s.State())

	v, ok, err := kv.Get(storage.KeyToken)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "tok", v)
}

func TestStore_LoginRejectedWritesNothing(t *testing.T) {
	auth := &fakeAuth{loginErr: &api.Error{Op: "login", Status: http.StatusUnauthorized, Detail: "nope"}}
	s, kv := newStore(t, auth)

	err := s.Login(context.Background(), "ana", "bad")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	assert.False(t, s.Authenticated())
	_, ok, _ := kv.Get(storage.KeyToken)
	assert.False(t, ok)
}

func TestStore_LoginServerErrorIsInvalidCredentials(t *testing.T) {
	s, _ := newStore(t, &fakeAuth{loginErr: &api.Error{Op: "login", Status: http.StatusInternalServerError}})
	assert.ErrorIs(t, s.Login(context.Background(), "ana", "pw"), ErrInvalidCredentials)
}

func TestStore_LoginNetworkErrorIsWrapped(t *testing.T) {
	netErr := &api.Error{Op: "login", Err: errors.New("connection refused")}
	s, _ := newStore(t, &fakeAuth{loginErr: netErr})

	err := s.Login(context.Background(), "ana", "pw")
	assert.NotErrorIs(t, err, ErrInvalidCredentials)
	assert.True(t, api.IsNetwork(err))
	assert.False(t, s.Authenticated())
}

func TestStore_MissingFieldsSkipBackend(t *testing.T) {
	auth := &fakeAuth{loginToken: "tok"}
	s, _ := newStore(t, auth)

	assert.ErrorIs(t, s.Login(context.Background(), "  ", "pw"), ErrMissingFields)
	assert.ErrorIs(t, s.Register(context.Background(), "ana", ""), ErrMissingFields)
	assert.Equal(t, 0, auth.calls)
}

func TestStore_RegisterNeverAuthenticates(t *testing.T) {
	s, _ := newStore(t, &fakeAuth{})

	require.NoError(t, s.Register(context.Background(), "ana", "pw"))
	assert.False(t, s.Authenticated())
	assert.Empty(t, s.Credential())
}

func TestStore_RegisterFailureCarriesDetail(t *testing.T) {
	s, _ := newStore(t, &fakeAuth{registerErr: &api.Error{Op: "register", Status: http.StatusBadRequest, Detail: "Usuario ya existe"}})

	err := s.Register(context.Background(), "ana", "pw")
	assert.ErrorIs(t, err, ErrRegistrationFailed)

	var regErr *RegistrationError
	require.True(t, errors.As(err, &regErr))
	assert.Equal(t, "Usuario ya existe", regErr.Detail)
	assert.Equal(t, "registration failed: Usuario ya existe", err.Error())
}

func TestStore_RegisterFailureWithoutDetail(t *testing.T) {
	s, _ := newStore(t, &fakeAuth{registerErr: &api.Error{Op: "register", Status: http.StatusInternalServerError}})

	err := s.Register(context.Background(), "ana", "pw")
	assert.ErrorIs(t, err, ErrRegistrationFailed)
	assert.Equal(t, "registration failed", err.Error())
}

func TestStore_LogoutClearsMemoryAndDisk(t *testing.T) {
	s, kv := newStore(t, &fakeAuth{loginToken: "tok"})
	require.NoError(t, s.Login(context.Background(), "ana", "pw"))

	require.NoError(t, s.Logout())
	assert.Empty(t, s.Credential())
	assert.Equal(t, CredentialNone, s.State())
	_, ok, _ := kv.Get(storage.KeyToken)
	assert.False(t, ok)
}

func TestStore_RestoreIsUnverifiedUntilMarked(t *testing.T) {
	s, kv := newStore(t, &fakeAuth{})
	require.NoError(t, kv.Set(storage.KeyToken, "persisted"))

	require.NoError(t, s.Restore())
	assert.Equal(t, "persisted", s.Credential())
	assert.Equal(t, CredentialUnverified, s.State())
	assert.True(t, s.Authenticated())

	s.MarkVerified()
	assert.Equal(t, CredentialVerified, s.State())
}

func TestStore_RestoreWithoutToken(t *testing.T) {
	s, _ := newStore(t, &fakeAuth{})
	require.NoError(t, s.Restore())
	assert.False(t, s.Authenticated())

	s.MarkVerified()
	assert.Equal(t, CredentialNone, s.State(), "nothing to verify")
}

func TestStore_Reconcile(t *testing.T) {
	s, kv := newStore(t, &fakeAuth{loginToken: "tok"})
	require.NoError(t, s.Login(context.Background(), "ana", "pw"))

	changed, err := s.Reconcile()
	require.NoError(t, err)
	assert.False(t, changed)

	require.NoError(t, kv.Delete(storage.KeyToken))
	changed, err = s.Reconcile()
	require.NoError(t, err)
	assert.True(t, changed)
	assert.False(t, s.Authenticated())

	require.NoError(t, kv.Set(storage.KeyToken, "other"))
	changed, err = s.Reconcile()
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, CredentialUnverified, s.State())
}

func TestStore_ExpiresAt(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "ana",
		"exp": exp.Unix(),
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	s, _ := newStore(t, &fakeAuth{loginToken: signed})
	_, ok := s.ExpiresAt()
	assert.False(t, ok, "no token held")

	require.NoError(t, s.Login(context.Background(), "ana", "pw"))
	got, ok := s.ExpiresAt()
	require.True(t, ok)
	assert.True(t, exp.Equal(got))
}

func TestStore_ExpiresAtOpaqueToken(t *testing.T) {
	s, _ := newStore(t, &fakeAuth{loginToken: "opaque-session-id"})
	require.NoError(t, s.Login(context.Background(), "ana", "pw"))

	_, ok := s.ExpiresAt()
	assert.False(t, ok)
}

func TestCredentialState_String(t *testing.T) {
	assert.Equal(t, "none", CredentialNone.String())
	assert.Equal(t, "unverified", CredentialUnverified.String())
	assert.Equal(t, "verified", CredentialVerified.String())
}
