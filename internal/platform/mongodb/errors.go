package mongodb

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"
)

const transientTransactionLabel = "TransientTransactionError"

// Error categorises MongoDB failures for service-level mapping.
type Error struct {
	op          string
	err         error
	notFound    bool
	conflict    bool
	unavailable bool
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.op == "" {
		return e.err.Error()
	}
	return fmt.Sprintf("%s: %v", e.op, e.err)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.err
}

func (e *Error) IsNotFound() bool    { return e != nil && e.notFound }
func (e *Error) IsConflict() bool    { return e != nil && e.conflict }
func (e *Error) IsUnavailable() bool { return e != nil && e.unavailable }

// NotFound builds a not-found error for writes that matched no document.
func NotFound(op, format string, args ...any) error {
	return &Error{op: op, err: fmt.Errorf(format, args...), notFound: true}
}

// WrapError classifies driver errors. Caller cancellation passes through untouched.
func WrapError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return context.Canceled
	}
	var repoErr *Error
	if errors.As(err, &repoErr) {
		return repoErr
	}

	wrapped := &Error{op: op, err: err}
	var labeled mongo.LabeledError
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		wrapped.notFound = true
	case mongo.IsDuplicateKeyError(err):
		wrapped.conflict = true
	case errors.As(err, &labeled) && labeled.HasErrorLabel(transientTransactionLabel):
		wrapped.conflict = true
	case errors.Is(err, context.DeadlineExceeded), mongo.IsTimeout(err), mongo.IsNetworkError(err):
		wrapped.unavailable = true
	case errors.Is(err, mongo.ErrClientDisconnected):
		wrapped.unavailable = true
	}
	return wrapped
}
