package stmtcache

import "errors"

// ErrInvalidSize is returned by New when maxSize <= 0. It is the
// ConfigError of the failure taxonomy: it fails the cache fast at
// construction rather than lazily on first use.
var ErrInvalidSize = errors.New("stmtcache: maxSize must be > 0")

// PrepareError wraps an error returned by a caller's PrepareFunc so that
// callers can tell, via errors.As, that the failure happened while this
// cache was trying to produce a fresh handle rather than somewhere else
// in their own code. The underlying error is never modified or retried;
// it propagates as-is (spec: "a failing prepareFn does not modify the
// cache").
type PrepareError struct {
	Key Key
	Err error
}

func (e *PrepareError) Error() string {
	return "stmtcache: prepare failed for " + e.Key.String() + ": " + e.Err.Error()
}

func (e *PrepareError) Unwrap() error {
	return e.Err
}
