// Package apperr defines the closed error type returned across the service
// boundary and the conversions from store and transport errors into it.
package apperr

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sort"
	"strings"

	"github.com/mamadbah2/milkmatrix/internal/domain/models"
	"github.com/mamadbah2/milkmatrix/internal/repository"
	"github.com/mamadbah2/milkmatrix/pkg/clients/supabase"
)

// Kind discriminates failures for callers that branch on them.
type Kind string

const (
	KindValidation      Kind = "validation"
	KindDuplicateRecord Kind = "duplicate_record"
	KindLookupFailed    Kind = "lookup_failed"
	KindNotFound        Kind = "not_found"
	KindNetwork         Kind = "network"
	KindUnauthorized    Kind = "unauthorized"
	KindUnknown         Kind = "unknown"
)

const networkMessage = "Network error: Unable to connect to the server. Please check your internet connection."

// Error is the only error type services return.
type Error struct {
	Kind     Kind
	Message  string
	Fields   map[string]string
	Existing *models.ExistingRecord
	Err      error
}

func (e *Error) Error() string {
	switch {
	case e.Message != "":
		return e.Message
	case e.Err != nil:
		return e.Err.Error()
	default:
		return string(e.Kind)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Validation builds a validation error from per-field messages.
func Validation(fields map[string]string) *Error {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fields[k])
	}

	return &Error{Kind: KindValidation, Message: strings.Join(parts, "; "), Fields: fields}
}

// Invalid builds a validation error without field detail.
func Invalid(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

// NotFound builds a not-found error.
func NotFound(format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

// Unauthorized builds an authentication failure.
func Unauthorized(message string, err error) *Error {
	return &Error{Kind: KindUnauthorized, Message: message, Err: err}
}

// Duplicate reports that a milk record already exists for the same cow, date and shift.
func Duplicate(existing *models.ExistingRecord, err error) *Error {
	msg := "A milk record already exists for this cow, date and shift. Please edit the existing record instead."
	if existing != nil {
		msg = fmt.Sprintf("A milk record already exists for this cow on %s during %s shift. Please edit the existing record instead.", existing.Date, existing.Shift)
	}
	return &Error{Kind: KindDuplicateRecord, Message: msg, Existing: existing, Err: err}
}

// LookupFailed wraps a failed duplicate check, keeping the store diagnostic.
func LookupFailed(err error) *Error {
	return &Error{Kind: KindLookupFailed, Message: "checking for an existing record failed: " + Normalize(err), Err: err}
}

// From converts any error into an *Error. Errors that already are *Error pass
// through unchanged.
func From(err error) *Error {
	if err == nil {
		return nil
	}

	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}

	var authErr *supabase.AuthError
	var netErr net.Error

	switch {
	case errors.Is(err, repository.ErrNotFound):
		return &Error{Kind: KindNotFound, Message: "Record not found", Err: err}
	case errors.Is(err, repository.ErrConflict):
		return Duplicate(nil, err)
	case errors.As(err, &authErr):
		return Unauthorized(Normalize(authErr), err)
	case errors.Is(err, repository.ErrUnavailable),
		errors.Is(err, context.DeadlineExceeded),
		errors.As(err, &netErr):
		return &Error{Kind: KindNetwork, Message: networkMessage, Err: err}
	default:
		return &Error{Kind: KindUnknown, Message: Normalize(err), Err: err}
	}
}

// KindOf returns the kind of err, KindUnknown for foreign errors and "" for nil.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	return From(err).Kind
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
