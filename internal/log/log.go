package log

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

type Level string

const (
	LevelDebug Level = "DEBUG"
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

var (
	mu       sync.Mutex
	level    = new(slog.LevelVar)
	logger   *slog.Logger
	initOnce sync.Once
)

// initLogger sets up a JSON logger on stderr at INFO.
func initLogger() {
	initOnce.Do(func() {
		level.Set(slog.LevelInfo)
		logger = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	})
}

// ParseLevel maps a config string to a Level. Unknown values map to INFO.
func ParseLevel(s string) Level {
	switch l := Level(strings.ToUpper(strings.TrimSpace(s))); l {
	case LevelDebug, LevelInfo, LevelWarn, LevelError:
		return l
	default:
		return LevelInfo
	}
}

func SetLevel(l Level) {
	initLogger()
	level.Set(toSlog(l))
}

// SetOutput redirects log lines to w, keeping the current level.
func SetOutput(w io.Writer) {
	initLogger()
	mu.Lock()
	defer mu.Unlock()
	logger = slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}

// Logger returns the underlying slog.Logger.
func Logger() *slog.Logger {
	initLogger()
	mu.Lock()
	defer mu.Unlock()
	return logger
}

func Debug(msg string, kv ...any) {
	Logger().Debug(msg, kv...)
}

func Info(msg string, kv ...any) {
	Logger().Info(msg, kv...)
}

func Warn(msg string, kv ...any) {
	Logger().Warn(msg, kv...)
}

func Error(msg string, err error, kv ...any) {
	// Prepend error into key-value list.
	errText := "<nil>"
	if err != nil {
		errText = err.Error()
	}
	extended := append([]any{"err", errText}, kv...)
	Logger().Error(msg, extended...)
}

func toSlog(l Level) slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
