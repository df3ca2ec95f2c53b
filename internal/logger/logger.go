// Package logger provides leveled logging for the vulnsync CLI.
//
// The threshold comes from configuration: log.level picks debug, info, warn
// or error, and --verbose lowers it to debug. Section headers print at info.
// Lines carry an RFC 3339 UTC timestamp when log.timestamps is set, which
// suits scheduled runs whose stderr is collected. All output goes to stderr
// unless redirected with SetOutput.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// Level is a logging threshold.
type Level int

// Levels in increasing severity.
const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

var levelNames = map[Level]string{
	LevelDebug: "DEBUG",
	LevelInfo:  "INFO",
	LevelWarn:  "WARN",
	LevelError: "ERROR",
}

func (l Level) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return fmt.Sprintf("Level(%d)", int(l))
}

// ParseLevel maps a config value to a Level. Matching ignores case and
// accepts "warning" for warn.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, nil
	case "info":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	}
	return LevelWarn, fmt.Errorf("unknown log level %q", s)
}

var (
	mu         sync.Mutex
	level      Level            = LevelWarn
	output     io.Writer        = os.Stderr
	now        func() time.Time = time.Now
	timestamps bool
)

// SetLevel sets the lowest level that is printed.
func SetLevel(l Level) {
	mu.Lock()
	defer mu.Unlock()
	level = l
}

// GetLevel returns the current threshold.
func GetLevel() Level {
	mu.Lock()
	defer mu.Unlock()
	return level
}

// SetVerbose switches between debug output and the quiet default (warn).
func SetVerbose(v bool) {
	if v {
		SetLevel(LevelDebug)
	} else {
		SetLevel(LevelWarn)
	}
}

// IsVerbose returns true if info messages are printed.
func IsVerbose() bool {
	return GetLevel() <= LevelInfo
}

// SetTimestamps prefixes each line with the UTC time when enabled.
func SetTimestamps(enabled bool) {
	mu.Lock()
	defer mu.Unlock()
	timestamps = enabled
}

// SetOutput sets the output writer for logs.
// Defaults to os.Stderr. Useful for testing.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	output = w
}

// write serialises writes so concurrent workers never interleave lines.
func write(l Level, format string, args ...any) {
	mu.Lock()
	defer mu.Unlock()
	if l < level {
		return
	}
	if timestamps {
		fmt.Fprint(output, now().UTC().Format(time.RFC3339)+" ")
	}
	fmt.Fprintf(output, "["+l.String()+"] "+format+"\n", args...)
}

// Debug prints a debug message.
func Debug(format string, args ...any) {
	write(LevelDebug, format, args...)
}

// Section prints a section header at info level.
func Section(name string) {
	mu.Lock()
	defer mu.Unlock()
	if LevelInfo >= level {
		fmt.Fprintf(output, "\n=== %s ===\n", name)
	}
}

// Info prints an informational message.
func Info(format string, args ...any) {
	write(LevelInfo, format, args...)
}

// Warn prints a warning message.
func Warn(format string, args ...any) {
	write(LevelWarn, format, args...)
}

// Error prints an error message.
func Error(format string, args ...any) {
	write(LevelError, format, args...)
}
