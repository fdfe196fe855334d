// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session owns the authentication credential.
//
// A token is held in one of three states: none, unverified (restored from
// disk at startup) or verified (fresh from login, or accepted by the backend
// since restore). The store persists the token under the "token" key so a
// restart resumes the session without asking for a password.
//
// # Key Types
//
//   - Store: login, register, logout, restore; implements api.CredentialSource
//   - CredentialState: none, unverified, verified
//   - RegistrationError: backend reason for a refused registration
//
// # Usage
//
//	store := session.NewStore(kv, client, logger)
//	if err := store.Restore(); err != nil {
//	    return err
//	}
//	if !store.Authenticated() {
//	    err := store.Login(ctx, "ana", password)
//	    if errors.Is(err, session.ErrInvalidCredentials) {
//	        // ask again
//	    }
//	}
package session
