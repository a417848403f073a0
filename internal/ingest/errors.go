package ingest

import (
	"errors"
	"fmt"
)

// FetchError is a transport failure or a non-2xx response from the remote source.
type FetchError struct {
	URL    string
	Status int // 0 when no response was received
	Err    error
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("fetch %s: status %d", e.URL, e.Status)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ParseError means a feed or detail document could not be decoded.
type ParseError struct {
	What string // "feed" or "detail"
	URL  string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s %s: %v", e.What, e.URL, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// CoercionError means a numeric field was present but not parseable.
type CoercionError struct {
	Field string
	Value string
}

func (e *CoercionError) Error() string {
	return fmt.Sprintf("coerce %s: cannot parse %q", e.Field, e.Value)
}

// PersistenceError wraps a failed catalog operation.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// PartialCommitError means the movie row may exist without its genre associations.
// The catalog needs manual repair for Title.
type PartialCommitError struct {
	Title   string
	MovieID int64
	Err     error
}

func (e *PartialCommitError) Error() string {
	return fmt.Sprintf("partial commit for %q (movie %d): %v", e.Title, e.MovieID, e.Err)
}

func (e *PartialCommitError) Unwrap() error { return e.Err }

// errorKind names the taxonomy bucket of err for logs and reports.
func errorKind(err error) string {
	var (
		fetchErr   *FetchError
		parseErr   *ParseError
		coerceErr  *CoercionError
		persistErr *PersistenceError
		partialErr *PartialCommitError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &partialErr):
		return "partial_commit"
	case errors.As(err, &fetchErr):
		return "fetch"
	case errors.As(err, &parseErr):
		return "parse"
	case errors.As(err, &coerceErr):
		return "coercion"
	case errors.As(err, &persistErr):
		return "persistence"
	default:
		return "unknown"
	}
}
