package stmtcache

import "sync/atomic"

// state values for a cached Entry. The zero value is intentionally not a
// valid state; cached entries are always constructed already in
// stateInUse (spec: "entries enter IN_USE").
const (
	stateAvailable int32 = iota + 1
	stateInUse
	stateEvicted
)

// RawHandle is the prepared-statement handle this cache memoizes. It is
// opaque to the cache; the cache never inspects it beyond identity.
type RawHandle any

// Entry holds one prepared handle plus its lifecycle state. A cached
// Entry has a non-nil state and participates in the AVAILABLE/IN_USE/
// EVICTED state machine; an uncached Entry has a nil state, which means
// "always close on Restore" regardless of what the caller does with it.
type Entry struct {
	Handle RawHandle

	// state is nil for uncached entries. Mutated only by atomic
	// CompareAndSwap/Swap; never touched under any mutex.
	state *int32

	// evictKey lets boundedMap's eviction callback report which Key was
	// evicted without the map itself having to round-trip through the
	// caller-visible Key type it stores entries under.
	evictKey Key
}

func newCachedEntry(handle RawHandle) *Entry {
	s := stateInUse
	return &Entry{Handle: handle, state: &s}
}

func newUncachedEntry(handle RawHandle) *Entry {
	return &Entry{Handle: handle, state: nil}
}

// Cached reports whether this entry is tracked by the map and subject to
// the state machine, as opposed to a one-shot handle that Restore will
// simply close.
func (e *Entry) Cached() bool {
	return e.state != nil
}

// tryAcquire CAS AVAILABLE->IN_USE. Wait-free.
func (e *Entry) tryAcquire() bool {
	return atomic.CompareAndSwapInt32(e.state, stateAvailable, stateInUse)
}

// tryRelease CAS IN_USE->AVAILABLE. Wait-free.
func (e *Entry) tryRelease() bool {
	return atomic.CompareAndSwapInt32(e.state, stateInUse, stateAvailable)
}

// markEvicted unconditionally swaps to EVICTED, returning the prior
// state. Wait-free. EVICTED is terminal: once set it is never read back
// to AVAILABLE or IN_USE.
func (e *Entry) markEvicted() int32 {
	return atomic.SwapInt32(e.state, stateEvicted)
}
