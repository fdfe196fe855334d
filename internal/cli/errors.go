// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/jeranaias/chatdesk/internal/api"
	"github.com/jeranaias/chatdesk/internal/app"
	"github.com/jeranaias/chatdesk/internal/config"
	"github.com/jeranaias/chatdesk/internal/session"
)

// =============================================================================
// EXIT CODES
// =============================================================================

const (
	ExitSuccess      = 0
	ExitGeneralError = 1
	ExitUsageError   = 2
	ExitConfigError  = 3
	ExitAuthError    = 4
	ExitNetworkError = 5
	ExitNotFound     = 7
	ExitTimeout      = 8
)

// UsageError reports bad arguments.
type UsageError struct {
	Msg string
}

func (e *UsageError) Error() string {
	return e.Msg
}

func usageErrorf(format string, args ...interface{}) error {
	return &UsageError{Msg: fmt.Sprintf(format, args...)}
}

// ExitCode maps err to a process exit status.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var usage *UsageError
	var validation config.ValidateErrors
	switch {
	case errors.As(err, &usage):
		return ExitUsageError
	case errors.As(err, &validation):
		return ExitConfigError
	case errors.Is(err, session.ErrInvalidCredentials),
		errors.Is(err, session.ErrRegistrationFailed),
		errors.Is(err, session.ErrMissingFields),
		errors.Is(err, app.ErrStaleCredential),
		errors.Is(err, app.ErrNotAuthenticated),
		errors.Is(err, api.ErrUnauthorized):
		return ExitAuthError
	case errors.Is(err, context.DeadlineExceeded):
		return ExitTimeout
	case errors.Is(err, api.ErrNotFound):
		return ExitNotFound
	case api.IsNetwork(err):
		return ExitNetworkError
	default:
		return ExitGeneralError
	}
}

// hint returns a follow-up suggestion for well-known failures.
func hint(err error) string {
	switch {
	case errors.Is(err, app.ErrNotAuthenticated), errors.Is(err, app.ErrStaleCredential):
		return "Run 'chatdesk login' first."
	case api.IsNetwork(err):
		return "Is the backend running? Check 'chatdesk config get api.base_url'."
	default:
		return ""
	}
}
