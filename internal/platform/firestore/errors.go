package firestore

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Error categorises Firestore failures so services can map them without importing the SDK.
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

// IsNotFound reports a missing document.
func (e *Error) IsNotFound() bool { return e != nil && e.notFound }

// IsConflict reports a contended or precondition-failed write.
func (e *Error) IsConflict() bool { return e != nil && e.conflict }

// IsUnavailable reports a transient backend outage, including operation timeouts.
func (e *Error) IsUnavailable() bool { return e != nil && e.unavailable }

// NotFound builds a not-found error for lookups that resolve to nothing without an SDK error.
func NotFound(op, format string, args ...any) error {
	return &Error{op: op, err: fmt.Errorf(format, args...), notFound: true}
}

// WrapError annotates Firestore errors with repository semantics. Caller cancellation passes through
// untouched while deadline expiry is reported as unavailability.
func WrapError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || status.Code(err) == codes.Canceled {
		return context.Canceled
	}

	var repoErr *Error
	if errors.As(err, &repoErr) {
		if repoErr.op == "" {
			repoErr.op = op
		}
		return repoErr
	}

	wrapped := &Error{op: op, err: err}
	if errors.Is(err, context.DeadlineExceeded) {
		wrapped.unavailable = true
		return wrapped
	}
	switch status.Code(err) {
	case codes.NotFound:
		wrapped.notFound = true
	case codes.AlreadyExists, codes.FailedPrecondition, codes.Aborted:
		wrapped.conflict = true
	case codes.Unavailable, codes.ResourceExhausted, codes.Internal, codes.DeadlineExceeded:
		wrapped.unavailable = true
	}
	return wrapped
}
