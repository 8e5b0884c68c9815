package analytics

import (
	"context"
	"errors"
	"fmt"
)

// Error kinds surfaced to the API layer. Stable machine-readable strings;
// raw driver text never leaves the engine in production responses.
const (
	KindTimeout       = "timeout"
	KindDatabase      = "database_error"
	KindInvalidFilter = "invalid_filter"
)

// TimeoutError: the query exceeded its per-request execution bound.
type TimeoutError struct {
	Op string
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("analytics query timed out (op=%s)", e.Op)
}

// DatabaseError wraps any non-timeout execution failure. The cause is kept
// for logs but not exposed in responses.
type DatabaseError struct {
	Op  string
	Err error
}

func (e *DatabaseError) Error() string {
	return fmt.Sprintf("analytics query failed (op=%s): %v", e.Op, e.Err)
}

func (e *DatabaseError) Unwrap() error {
	return e.Err
}

// InvalidFilterError: the caller supplied an unsatisfiable or malformed
// filter combination.
type InvalidFilterError struct {
	Reason string
}

func (e *InvalidFilterError) Error() string {
	return "invalid filter: " + e.Reason
}

// ErrorKind maps an engine error to its machine-readable kind, or "" for
// errors that did not originate here.
func ErrorKind(err error) string {
	var te *TimeoutError
	if errors.As(err, &te) {
		return KindTimeout
	}
	var de *DatabaseError
	if errors.As(err, &de) {
		return KindDatabase
	}
	var fe *InvalidFilterError
	if errors.As(err, &fe) {
		return KindInvalidFilter
	}
	return ""
}

// PublicMessage is what production responses carry for an engine error.
func PublicMessage(err error) string {
	switch ErrorKind(err) {
	case KindTimeout:
		return "query exceeded the allowed execution time"
	case KindDatabase:
		return "query execution failed"
	case KindInvalidFilter:
		var fe *InvalidFilterError
		errors.As(err, &fe)
		return fe.Error()
	default:
		return "internal error"
	}
}

// classify turns a raw execution error into the typed taxonomy. The engine
// never retries; callers decide on retry/backoff from the kind.
func classify(ctx context.Context, op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &TimeoutError{Op: op}
	}
	return &DatabaseError{Op: op, Err: err}
}
