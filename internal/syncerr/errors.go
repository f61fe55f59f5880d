// Package syncerr defines the error taxonomy shared by every sync component.
package syncerr

import (
	"errors"
	"fmt"
)

// Kind classifies a sync error so callers (the task runner, the command
// surface) can decide whether to retry, back off, or surface a message.
type Kind string

const (
	KindConfig          Kind = "config"
	KindAuth            Kind = "auth"
	KindCredential      Kind = "credential"
	KindNetwork         Kind = "network"
	KindBackend         Kind = "backend"
	KindDatabase        Kind = "database"
	KindParse           Kind = "parse"
	KindInvalidInput    Kind = "invalid_input"
	KindAccountNotFound Kind = "account_not_found"
	KindMessageNotFound Kind = "message_not_found"
	KindReadOnlyMode    Kind = "read_only_mode"
)

// Error is a classified sync failure. It wraps an underlying cause so
// errors.Is/As keeps working against both the Kind and the original error.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds a classified error for the given operation.
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Is reports whether err is a *Error of the given kind.
func Is(err error, kind Kind) bool {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind == kind
	}
	return false
}

var (
	// ErrReadOnlyMode is returned immediately by any mutating command when
	// the persisted read-only setting is enabled.
	ErrReadOnlyMode = New(KindReadOnlyMode, "command", errors.New("read-only mode is enabled"))
	ErrAccountNotFound = New(KindAccountNotFound, "account", errors.New("account not found"))
	ErrMessageNotFound = New(KindMessageNotFound, "message", errors.New("message not found"))
)
