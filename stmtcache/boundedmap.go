package stmtcache

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// boundedMap is a fixed-capacity, concurrency-safe mapping from internKey
// to *Entry with approximate-LRU eviction and a one-shot eviction
// listener.
//
// Storage and recency bookkeeping are delegated to golang-lru, which
// already promotes a key on every successful Get and evicts the
// least-recently-used key on a capacity-exceeding Add, invoking its own
// onEvicted callback exactly once for the victim. That callback fires
// synchronously from inside golang-lru's own locked section, which in
// turn runs inside putIfAbsent's critical section here — so it must never
// call back into user code while that lock is held. Victims are
// therefore only ever recorded in pending while locked;
// notifyEvictions (called after the lock is released) is what actually
// invokes the configured onEvict and, from there, any handle close.
type boundedMap struct {
	mu  sync.Mutex
	lru *lru.Cache[internKey, *Entry]

	// suppressEvict is set for the duration of an explicit removeLocked
	// call. golang-lru's Remove invokes the same onEvicted callback used
	// for capacity eviction; StatementCache's own remove/removeAll/clear
	// already do their own close bookkeeping for those paths, so a
	// removal made through removeLocked must not also be queued as a
	// capacity eviction.
	suppressEvict bool

	pending []*Entry
	onEvict func(Key, *Entry)
}

func newBoundedMap(maxSize int, onEvict func(Key, *Entry)) *boundedMap {
	bm := &boundedMap{onEvict: onEvict}

	cache, err := lru.NewWithEvict(maxSize, func(_ internKey, entry *Entry) {
		if bm.suppressEvict {
			return
		}
		bm.pending = append(bm.pending, entry)
	})
	if err != nil {
		// Only returns an error for size <= 0, already validated by New.
		panic(err)
	}
	bm.lru = cache
	return bm
}

// notifyEvictions runs onEvict for every victim queued during the most
// recent locked section, outside any lock.
func (m *boundedMap) notifyEvictions(victims []*Entry) {
	for _, entry := range victims {
		m.onEvict(entry.evictKey, entry)
	}
}

// get returns the entry for key, bumping its recency, or nil if absent.
func (m *boundedMap) get(key Key) *Entry {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.lru.Get(key.intern())
	if !ok {
		return nil
	}
	return entry
}

// putIfAbsent inserts entry under key iff no entry is currently present,
// returning the entry already present, or nil if the insertion won.
// Insertion may trigger eviction of some other key; that victim's
// onEvict runs after the lock is released.
func (m *boundedMap) putIfAbsent(key Key, entry *Entry) *Entry {
	entry.evictKey = key

	var victims []*Entry
	result := func() *Entry {
		m.mu.Lock()
		defer m.mu.Unlock()

		ik := key.intern()
		if existing, ok := m.lru.Peek(ik); ok {
			return existing
		}
		m.lru.Add(ik, entry)
		victims, m.pending = m.pending, nil
		return nil
	}()

	m.notifyEvictions(victims)
	return result
}

// remove deletes key iff its current value is reference-equal to
// expected. Returns whether the removal occurred. Never invokes close or
// any other external callout itself; that is left to the caller, which
// already knows it owns the removal.
func (m *boundedMap) remove(key Key, expected *Entry) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.removeLocked(key, expected)
}

func (m *boundedMap) removeLocked(key Key, expected *Entry) bool {
	ik := key.intern()
	current, ok := m.lru.Peek(ik)
	if !ok || current != expected {
		return false
	}

	m.suppressEvict = true
	m.lru.Remove(ik)
	m.suppressEvict = false
	return true
}

// snapshot returns a point-in-time copy of every stored *Entry (each
// entry's Key is reachable through its evictKey field). It
// never panics or deadlocks under concurrent mutation of the map; callers
// see a weakly consistent view that may miss concurrent inserts or
// include entries removed moments later.
func (m *boundedMap) snapshot() []*Entry {
	m.mu.Lock()
	defer m.mu.Unlock()

	values := m.lru.Values()
	out := make([]*Entry, len(values))
	copy(out, values)
	return out
}

func (m *boundedMap) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lru.Len()
}
