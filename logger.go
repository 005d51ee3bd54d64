package dcp

import (
	"context"
	"log/slog"
)

// levelTrace sits one step below slog.LevelDebug, for the per-segment chatter
// (every Input/flush decision) that would otherwise drown out normal debug
// logging.
const levelTrace = slog.Level(-8)

// logger wraps an optional *slog.Logger. A zero-value logger is silent: every
// method is a no-op until SetLogger installs a real handler.
type logger struct {
	log *slog.Logger
}

func (l logger) enabled(level slog.Level) bool {
	return l.log != nil && l.log.Enabled(context.Background(), level)
}

func (l logger) logAttrs(level slog.Level, msg string, attrs ...slog.Attr) {
	if !l.enabled(level) {
		return
	}
	l.log.LogAttrs(context.Background(), level, msg, attrs...)
}

func (l logger) error(msg string, attrs ...slog.Attr) { l.logAttrs(slog.LevelError, msg, attrs...) }
func (l logger) warn(msg string, attrs ...slog.Attr)  { l.logAttrs(slog.LevelWarn, msg, attrs...) }
func (l logger) info(msg string, attrs ...slog.Attr)  { l.logAttrs(slog.LevelInfo, msg, attrs...) }
func (l logger) debug(msg string, attrs ...slog.Attr) { l.logAttrs(slog.LevelDebug, msg, attrs...) }
func (l logger) trace(msg string, attrs ...slog.Attr) { l.logAttrs(levelTrace, msg, attrs...) }
