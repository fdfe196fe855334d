// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"errors"
	"fmt"
)

// Well-known keys. Values are flat strings.
const (
	KeyToken = "token"
	KeyTheme = "theme"
)

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("storage: store is closed")

// KV is durable flat key/value storage for client state.
//
// Get reports ok == false for a missing key; that is not an error.
type KV interface {
	Get(key string) (value string, ok bool, err error)
	Set(key, value string) error
	Delete(key string) error
	Close() error
}

// Backend names accepted by Open.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

// Open returns the KV for backend at path.
func Open(backend, path string) (KV, error) {
	switch backend {
	case BackendFile:
		return OpenFile(path)
	case BackendSQLite:
		return OpenSQLite(path)
	case BackendMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("storage: unknown backend %q", backend)
	}
}
