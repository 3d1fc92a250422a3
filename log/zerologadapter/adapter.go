// Package zerologadapter adapts a github.com/rs/zerolog.Logger to the
// log.Logger facade.
package zerologadapter

import (
	"github.com/rs/zerolog"

	"github.com/redsnower/vibur-dbcp/log"
)

// Logger wraps a zerolog.Logger so it can be passed to stmtcache.WithLogger.
type Logger struct {
	logger zerolog.Logger
}

// New wraps logger, tagging every line with module=stmtcache.
func New(logger zerolog.Logger) *Logger {
	return &Logger{logger: logger.With().Str("module", "stmtcache").Logger()}
}

func (l *Logger) Log(level log.Level, msg string, keyvals ...any) {
	var zlevel zerolog.Level
	switch level {
	case log.LevelTrace:
		zlevel = zerolog.TraceLevel
	case log.LevelDebug:
		zlevel = zerolog.DebugLevel
	case log.LevelInfo:
		zlevel = zerolog.InfoLevel
	case log.LevelWarn:
		zlevel = zerolog.WarnLevel
	case log.LevelError:
		zlevel = zerolog.ErrorLevel
	default:
		zlevel = zerolog.DebugLevel
	}

	event := l.logger.WithLevel(zlevel)
	for i := 0; i+1 < len(keyvals); i += 2 {
		key, ok := keyvals[i].(string)
		if !ok {
			continue
		}
		event = event.Interface(key, keyvals[i+1])
	}
	event.Msg(msg)
}
