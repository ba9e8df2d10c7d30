package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
)

// Level is a log severity level
type Level int

const (
	TraceLevel Level = iota
	DebugLevel
	InfoLevel
	WarnLevel
	ErrorLevel
	FatalLevel
	PanicLevel
)

var (
	mu       sync.RWMutex
	level    = InfoLevel
	out      io.Writer = os.Stderr
	std      = log.New(os.Stderr, "", log.LstdFlags)
	fileSink *os.File
)

// ParseLevel converts a level name into a Level
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return TraceLevel, nil
	case "debug":
		return DebugLevel, nil
	case "info":
		return InfoLevel, nil
	case "warn", "warning":
		return WarnLevel, nil
	case "error":
		return ErrorLevel, nil
	case "fatal":
		return FatalLevel, nil
	case "panic":
		return PanicLevel, nil
	}
	return InfoLevel, fmt.Errorf("unknown log level: %q", s)
}

// SetLevel sets the minimum level that will be emitted
func SetLevel(l Level) {
	mu.Lock()
	defer mu.Unlock()
	level = l
}

// SetFile mirrors all log output into the given file in addition to stderr.
// Passing an empty path disables the file sink.
func SetFile(path string) error {
	mu.Lock()
	defer mu.Unlock()
	if fileSink != nil {
		fileSink.Close()
		fileSink = nil
	}
	if path == "" {
		out = os.Stderr
		std.SetOutput(out)
		return nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	fileSink = f
	out = io.MultiWriter(os.Stderr, f)
	std.SetOutput(out)
	return nil
}

func (l Level) String() string {
	switch l {
	case TraceLevel:
		return "TRACE"
	case DebugLevel:
		return "DEBUG"
	case InfoLevel:
		return "INFO"
	case WarnLevel:
		return "WARN"
	case ErrorLevel:
		return "ERROR"
	case FatalLevel:
		return "FATAL"
	case PanicLevel:
		return "PANIC"
	}
	return "?"
}

func emit(l Level, format string, args ...any) {
	mu.RLock()
	min := level
	mu.RUnlock()
	if l < min {
		return
	}
	std.Printf("%s %s", l, fmt.Sprintf(format, args...))
}

// Trace logs at trace level
func Trace(format string, args ...any) { emit(TraceLevel, format, args...) }

// Debug logs at debug level
func Debug(format string, args ...any) { emit(DebugLevel, format, args...) }

// Info logs at info level
func Info(format string, args ...any) { emit(InfoLevel, format, args...) }

// Warn logs at warn level
func Warn(format string, args ...any) { emit(WarnLevel, format, args...) }

// Error logs at error level
func Error(format string, args ...any) { emit(ErrorLevel, format, args...) }

// Fatal logs at fatal level and exits
func Fatal(format string, args ...any) {
	emit(FatalLevel, format, args...)
	os.Exit(1)
}

// Panic logs at panic level and panics
func Panic(format string, args ...any) {
	emit(PanicLevel, format, args...)
	panic(fmt.Sprintf(format, args...))
}
