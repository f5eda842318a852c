// Package plog provides the leveled logger used by every tsumugu package.
// It wraps log/slog with a custom NOTICE level sitting between INFO and
// WARN, and dispatches INFO-and-below to stdout while WARN-and-above goes
// to stderr, so a sync's routine progress never interleaves with its
// warnings on the same stream.
package plog

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
)

// Custom levels. slog.LevelInfo is 0 and slog.LevelWarn is 4; NOTICE sits
// at 2 so it prints between them without colliding with either.
const (
	LevelDebug  = slog.LevelDebug
	LevelInfo   = slog.LevelInfo
	LevelNotice = slog.Level(2)
	LevelWarn   = slog.LevelWarn
	LevelError  = slog.LevelError
)

// LevelDispatchHandler is a slog.Handler that writes log records to different
// handlers based on the record's level. NOTICE and below go to one handler,
// while WARNING and above go to another.
type LevelDispatchHandler struct {
	stdoutHandler slog.Handler
	stderrHandler slog.Handler
}

func (h *LevelDispatchHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.stdoutHandler.Enabled(ctx, level) || h.stderrHandler.Enabled(ctx, level)
}

func (h *LevelDispatchHandler) Handle(ctx context.Context, r slog.Record) error {
	if r.Level >= LevelWarn {
		return h.stderrHandler.Handle(ctx, r)
	}
	return h.stdoutHandler.Handle(ctx, r)
}

func (h *LevelDispatchHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &LevelDispatchHandler{
		stdoutHandler: h.stdoutHandler.WithAttrs(attrs),
		stderrHandler: h.stderrHandler.WithAttrs(attrs),
	}
}

func (h *LevelDispatchHandler) WithGroup(name string) slog.Handler {
	return &LevelDispatchHandler{
		stdoutHandler: h.stdoutHandler.WithGroup(name),
		stderrHandler: h.stderrHandler.WithGroup(name),
	}
}

var levelNames = map[slog.Leveler]string{
	LevelNotice: "NOTICE",
}

func replaceLevelName(groups []string, a slog.Attr) slog.Attr {
	if a.Key == slog.LevelKey {
		level := a.Value.Any().(slog.Level)
		if name, ok := levelNames[level]; ok {
			a.Value = slog.StringValue(name)
		}
	}
	return a
}

var (
	defaultLogger *slog.Logger
	currentLevel  atomic.Int64
	currentStdout io.Writer = os.Stdout
	currentStderr io.Writer = os.Stderr
)

func init() {
	currentLevel.Store(int64(LevelInfo))
	rebuild(os.Stdout, os.Stderr)
}

func rebuild(stdout, stderr io.Writer) {
	currentStdout, currentStderr = stdout, stderr
	lvl := slog.Level(currentLevel.Load())
	opts := &slog.HandlerOptions{Level: lvl, ReplaceAttr: replaceLevelName}
	defaultLogger = slog.New(&LevelDispatchHandler{
		stdoutHandler: slog.NewTextHandler(stdout, opts),
		stderrHandler: slog.NewTextHandler(stderr, opts),
	})
}

// SetOutput redirects both streams to w, primarily for testing.
func SetOutput(w io.Writer) {
	rebuild(w, w)
}

// SetLevel sets the minimum level logged by the global logger.
func SetLevel(level slog.Level) {
	currentLevel.Store(int64(level))
	rebuild(currentStdout, currentStderr)
}

// LevelFromString parses a level name ("debug", "notice", "info", "warn", "error").
// Unrecognized names fall back to info.
func LevelFromString(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug
	case "notice":
		return LevelNotice
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

func Debug(msg string, args ...any)  { defaultLogger.Log(context.Background(), LevelDebug, msg, args...) }
func Info(msg string, args ...any)   { defaultLogger.Log(context.Background(), LevelInfo, msg, args...) }
func Notice(msg string, args ...any) { defaultLogger.Log(context.Background(), LevelNotice, msg, args...) }
func Warn(msg string, args ...any)   { defaultLogger.Log(context.Background(), LevelWarn, msg, args...) }
func Error(msg string, args ...any)  { defaultLogger.Log(context.Background(), LevelError, msg, args...) }

// Errorf formats like fmt.Errorf and logs it at error level, returning the
// formatted message for callers that also want to wrap it into an error.
func Errorf(format string, args ...any) string {
	msg := fmt.Sprintf(format, args...)
	Error(msg)
	return msg
}
