// Package connid mints per-connection identity tokens.
//
// The cache keys statement entries by connection identity. The source
// this cache is modeled on relies on JVM object-identity (==) for that
// purpose; Go has no equivalent operator for arbitrary values, so callers
// mint a Token once per physical connection and carry it alongside the
// connection for its whole lifetime.
package connid

import "sync/atomic"

// Token identifies one physical connection for the lifetime of that
// connection. Two tokens compare equal iff they were minted for the same
// connection; a Token is never reused even after its connection closes.
type Token uint64

var counter uint64

// New mints a fresh Token. Safe for concurrent use.
func New() Token {
	return Token(atomic.AddUint64(&counter, 1))
}
