package stmtcache

import (
	"go.opentelemetry.io/otel/trace"

	"github.com/redsnower/vibur-dbcp/log"
)

// Option configures a Cache at construction time.
type Option func(*Cache)

// WithLogger sets the logger used for reporting a failing close or clear
// callout that this cache swallows rather than propagates, plus
// debug-level hit/miss/evict messages. The default is a no-op logger.
func WithLogger(l log.Logger) Option {
	return func(c *Cache) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithTracer wraps Retrieve and the PrepareFunc callout in OpenTelemetry
// spans. By default New installs a no-op tracer, so a span is always
// created but never exported unless a real tracer is configured here.
func WithTracer(t trace.Tracer) Option {
	return func(c *Cache) {
		if t != nil {
			c.tracer = t
		}
	}
}
