// Package stmtcache implements a bounded, concurrent, approximately-LRU
// cache of prepared-statement handles keyed by (connection identity,
// prepare method, argument tuple).
//
// Preparing a statement is expensive: a network round trip plus
// server-side parse/plan. Cache hits skip both. A cached handle may be
// borrowed by at most one caller at a time; Retrieve hands out either the
// cached handle (marking it borrowed) or, whenever the cache can't adopt
// a fresh one (the cached entry is already borrowed, or another caller
// won the race to insert it), an uncached handle that Restore will simply
// close. A miss on a full cache still caches the fresh handle, evicting a
// least-recently-used entry to make room.
package stmtcache

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	nooptrace "go.opentelemetry.io/otel/trace/noop"

	"github.com/redsnower/vibur-dbcp/internal/connid"
	"github.com/redsnower/vibur-dbcp/log"
)

// PrepareFunc produces a fresh RawHandle for a cache miss. It is called
// at most once per Retrieve invocation, never while any internal lock is
// held. Any error it returns propagates unchanged, wrapped in
// *PrepareError; the cache is left unmodified.
type PrepareFunc func(ctx context.Context) (RawHandle, error)

// CloseFunc closes a RawHandle. It must tolerate being the only call ever
// made on a given handle exactly once; the cache guarantees it is never
// invoked twice for the same handle, no matter which of eviction,
// Restore, or Remove/RemoveAll/Clear ends up owning the close.
// A failing CloseFunc is logged and swallowed.
type CloseFunc func(RawHandle) error

// ClearFunc resets best-effort scratch state (e.g. pending warnings) on a
// RawHandle before it is returned to the pool. A failing ClearFunc is
// logged and swallowed; Restore proceeds to release the entry regardless.
type ClearFunc func(RawHandle) error

// Cache is a bounded, concurrent cache of prepared-statement handles.
// maxSize == 0 is not representable here — "cache disabled" means the
// caller never constructs a Cache at all and prepares uncached handles
// directly.
type Cache struct {
	maxSize int
	m       *boundedMap
	close   CloseFunc
	clear   ClearFunc

	logger log.Logger
	tracer trace.Tracer
}

// New constructs a Cache holding at most maxSize prepared statements.
// closeFn is used to dispose of handles (on eviction, on Restore of an
// evicted entry, and on Remove/RemoveAll/Clear); clearFn resets scratch
// state on Restore when its clear flag is set. Returns ErrInvalidSize if
// maxSize <= 0.
func New(maxSize int, closeFn CloseFunc, clearFn ClearFunc, opts ...Option) (*Cache, error) {
	if maxSize <= 0 {
		return nil, ErrInvalidSize
	}

	c := &Cache{
		maxSize: maxSize,
		close:   closeFn,
		clear:   clearFn,
		logger:  log.Nop(),
		tracer:  nooptrace.NewTracerProvider().Tracer(""),
	}
	c.m = newBoundedMap(maxSize, c.onEvict)

	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// onEvict runs when the underlying map drops an entry to stay within
// capacity. It never touches the map itself and never calls the caller's
// PrepareFunc; it only transitions state and possibly closes a handle.
func (c *Cache) onEvict(key Key, entry *Entry) {
	prior := entry.markEvicted()
	c.logger.Log(log.LevelDebug, "evicted", "key", key.String())
	if prior == stateAvailable {
		c.closeHandle(entry.Handle)
	}
	// prior == stateInUse: the borrower closes it on Restore.
}

// Retrieve returns an Entry whose Handle is ready for use by exactly one
// caller. The caller must eventually call Restore on the returned Entry.
func (c *Cache) Retrieve(ctx context.Context, key Key, prepare PrepareFunc) (*Entry, error) {
	ctx, span := c.tracer.Start(ctx, "stmtcache.retrieve")
	defer span.End()
	span.SetAttributes(attribute.String("stmtcache.key", key.String()))

	entry := c.m.get(key)
	if entry != nil && entry.tryAcquire() {
		span.SetAttributes(attribute.Bool("stmtcache.hit", true))
		c.logger.Log(log.LevelDebug, "cache hit", "key", key.String())
		return entry, nil
	}

	span.SetAttributes(attribute.Bool("stmtcache.hit", false))
	c.logger.Log(log.LevelDebug, "cache miss", "key", key.String())

	prepareCtx, prepareSpan := c.tracer.Start(ctx, "stmtcache.prepare")
	rawHandle, err := prepare(prepareCtx)
	prepareSpan.End()
	if err != nil {
		return nil, &PrepareError{Key: key, Err: err}
	}

	// Only a caller that found no entry at all gets a shot at caching
	// it. A caller that found one but lost the AVAILABLE->IN_USE race
	// (or the entry was mid-eviction) falls straight through to an
	// uncached entry: the slot is already taken, win or lose.
	if entry == nil {
		candidate := newCachedEntry(rawHandle)
		if prev := c.m.putIfAbsent(key, candidate); prev == nil {
			return candidate, nil
		}
	}

	return newUncachedEntry(rawHandle), nil
}

// Restore releases an Entry previously returned by Retrieve. clearWarn
// requests a best-effort ClearFunc call before release. Must be called
// exactly once per successful Retrieve.
func (c *Cache) Restore(entry *Entry, clearWarn bool) {
	if !entry.Cached() {
		c.closeHandle(entry.Handle)
		return
	}

	if clearWarn && c.clear != nil {
		if err := c.clear(entry.Handle); err != nil {
			c.logger.Log(log.LevelWarn, "clear failed, continuing", "error", err.Error())
		}
	}

	if !entry.tryRelease() {
		// Lost the CAS: the eviction listener already swapped this
		// entry to EVICTED while it was borrowed. Ours to close.
		c.closeHandle(entry.Handle)
	}
}

// Remove scans for the entry whose Handle is rawHandle and drops it from
// the cache. If closeHandle is true the handle is closed regardless of
// its current state. Returns whether an entry was found and removed.
func (c *Cache) Remove(rawHandle RawHandle, closeHandle bool) bool {
	for _, entry := range c.m.snapshot() {
		if entry.Handle != rawHandle {
			continue
		}
		if c.m.remove(entry.evictKey, entry) {
			if closeHandle {
				c.closeHandle(rawHandle)
			}
			return true
		}
	}
	return false
}

// RemoveAll drops and closes every cached entry whose key was constructed
// for connID, e.g. when the owning connection is being torn down. Returns
// the number of entries removed.
func (c *Cache) RemoveAll(connID connid.Token) int {
	removed := 0
	for _, entry := range c.m.snapshot() {
		key := entry.evictKey
		if key.ConnID != connID {
			continue
		}
		if c.m.remove(key, entry) {
			c.closeHandle(entry.Handle)
			removed++
		}
	}
	return removed
}

// Clear drops and closes every cached entry. Intended for pool shutdown.
func (c *Cache) Clear() {
	for _, entry := range c.m.snapshot() {
		key := entry.evictKey
		if c.m.remove(key, entry) {
			c.closeHandle(entry.Handle)
		}
	}
}

// closeHandle runs closeFn, logging and swallowing any failure rather
// than propagating it: by the time a handle is closed, the caller that
// cares about the outcome of its own Retrieve has already moved on.
func (c *Cache) closeHandle(h RawHandle) {
	if c.close == nil {
		return
	}
	if err := c.close(h); err != nil {
		c.logger.Log(log.LevelWarn, "close failed, swallowed", "error", err.Error())
	}
}

// Len reports the current number of cached entries. It never exceeds
// the capacity the Cache was constructed with.
func (c *Cache) Len() int {
	return c.m.len()
}

// MaxSize reports the capacity this Cache was constructed with.
func (c *Cache) MaxSize() int {
	return c.maxSize
}
