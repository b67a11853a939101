package logging

import (
	"fmt"
	"io"
	"log"
	"strings"
	"sync/atomic"
)

// Level represents logging severity.
type Level int32

const (
	LevelError Level = iota
	LevelWarn
	LevelInfo
	LevelDebug
)

var currentLevel atomic.Int32

func init() {
	currentLevel.Store(int32(LevelInfo))
	log.SetFlags(log.LstdFlags | log.Lmsgprefix)
}

// SetLevel changes the minimum severity that is written.
func SetLevel(l Level) {
	if l < LevelError {
		l = LevelError
	}
	if l > LevelDebug {
		l = LevelDebug
	}
	currentLevel.Store(int32(l))
}

// CurrentLevel returns the active level.
func CurrentLevel() Level {
	return Level(currentLevel.Load())
}

// SetVerbosity maps a count of -v flags onto a level: 0 keeps warn, 1 info, 2+ debug.
func SetVerbosity(count int) {
	switch {
	case count <= 0:
		SetLevel(LevelWarn)
	case count == 1:
		SetLevel(LevelInfo)
	default:
		SetLevel(LevelDebug)
	}
}

func (l Level) String() string {
	switch l {
	case LevelError:
		return "error"
	case LevelWarn:
		return "warn"
	case LevelInfo:
		return "info"
	case LevelDebug:
		return "debug"
	default:
		return "unknown"
	}
}

// ParseLevel converts a level name such as "debug" to a Level.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "error":
		return LevelError, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "", "info":
		return LevelInfo, nil
	case "debug", "trace":
		return LevelDebug, nil
	default:
		return LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

// SetOutput redirects log lines, e.g. away from a full-screen terminal UI.
func SetOutput(w io.Writer) {
	log.SetOutput(w)
}

func enabled(l Level) bool {
	return l <= CurrentLevel()
}

func logf(l Level, prefix, format string, args ...any) {
	if !enabled(l) {
		return
	}
	log.Printf("[%s] %s", prefix, fmt.Sprintf(format, args...))
}

func Errorf(format string, args ...any) {
	logf(LevelError, "ERR", format, args...)
}

func Warnf(format string, args ...any) {
	logf(LevelWarn, "WARN", format, args...)
}

func Infof(format string, args ...any) {
	logf(LevelInfo, "INFO", format, args...)
}

func Debugf(format string, args ...any) {
	logf(LevelDebug, "DBG", format, args...)
}
