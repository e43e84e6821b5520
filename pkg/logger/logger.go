// Package logger provides component-tagged logging for proxima.
//
// Each component ("beacon", "realtime", "chat", ...) gets its own subsystem
// logger on a shared decred/slog backend, so a single level switch controls
// every component.
package logger

import (
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"strings"
	"sync"

	"github.com/decred/slog"
)

type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
)

var (
	mu       sync.Mutex
	out      = &swapWriter{w: os.Stderr}
	backend  = slog.NewBackend(out)
	loggers  = make(map[string]slog.Logger)
	curLevel = INFO
)

// swapWriter lets SetOutput redirect the backend without rebuilding loggers.
type swapWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *swapWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

func (s *swapWriter) set(w io.Writer) {
	s.mu.Lock()
	s.w = w
	s.mu.Unlock()
}

// ParseLevel maps a config string to a LogLevel. Unknown values yield INFO.
func ParseLevel(s string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return DEBUG
	case "warn", "warning":
		return WARN
	case "error":
		return ERROR
	default:
		return INFO
	}
}

func (l LogLevel) String() string {
	switch l {
	case DEBUG:
		return "debug"
	case WARN:
		return "warn"
	case ERROR:
		return "error"
	default:
		return "info"
	}
}

func toSlog(l LogLevel) slog.Level {
	switch l {
	case DEBUG:
		return slog.LevelDebug
	case WARN:
		return slog.LevelWarn
	case ERROR:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// SetLevel changes the level of every component logger, present and future.
func SetLevel(level LogLevel) {
	mu.Lock()
	defer mu.Unlock()
	curLevel = level
	for _, l := range loggers {
		l.SetLevel(toSlog(level))
	}
}

// GetLevel returns the current level.
func GetLevel() LogLevel {
	mu.Lock()
	defer mu.Unlock()
	return curLevel
}

// SetOutput redirects all log output.
func SetOutput(w io.Writer) {
	out.set(w)
}

func component(name string) slog.Logger {
	tag := strings.ToUpper(name)
	if tag == "" {
		tag = "MAIN"
	}
	mu.Lock()
	defer mu.Unlock()
	l, ok := loggers[tag]
	if !ok {
		l = backend.Logger(tag)
		l.SetLevel(toSlog(curLevel))
		loggers[tag] = l
	}
	return l
}

// formatFields renders fields as sorted key=value pairs.
func formatFields(msg string, fields map[string]any) string {
	if len(fields) == 0 {
		return msg
	}
	var b strings.Builder
	b.WriteString(msg)
	for _, k := range slices.Sorted(maps.Keys(fields)) {
		fmt.Fprintf(&b, " %s=%v", k, fields[k])
	}
	return b.String()
}

func DebugC(comp, msg string) { component(comp).Debug(msg) }
func InfoC(comp, msg string)  { component(comp).Info(msg) }
func WarnC(comp, msg string)  { component(comp).Warn(msg) }
func ErrorC(comp, msg string) { component(comp).Error(msg) }

func DebugCF(comp, msg string, fields map[string]any) {
	component(comp).Debug(formatFields(msg, fields))
}

func InfoCF(comp, msg string, fields map[string]any) {
	component(comp).Info(formatFields(msg, fields))
}

func WarnCF(comp, msg string, fields map[string]any) {
	component(comp).Warn(formatFields(msg, fields))
}

func ErrorCF(comp, msg string, fields map[string]any) {
	component(comp).Error(formatFields(msg, fields))
}
