// internal/logger/logger.go
package logger

import (
	"log"
	"os"
	"strings"
)

// Level controls which messages are emitted.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelError
)

// ParseLevel maps a LOG_LEVEL string to a Level. Unknown values fall back to info.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

type Logger struct {
	*log.Logger
	level Level
}

func NewLogger(prefix string) *Logger {
	return &Logger{
		Logger: log.New(os.Stdout, "["+prefix+"] ", log.LstdFlags),
		level:  LevelInfo,
	}
}

// NewLeveled creates a prefixed logger honoring the given level.
func NewLeveled(prefix string, level Level) *Logger {
	l := NewLogger(prefix)
	l.level = level
	return l
}

func (l *Logger) Info(msg string, fields ...interface{}) {
	if l.level > LevelInfo {
		return
	}
	if len(fields) == 0 {
		l.Printf("[INFO] %s", msg)
		return
	}
	l.Printf("[INFO] %s %v", msg, fields)
}

func (l *Logger) Error(msg string, err error) {
	l.Printf("[ERROR] %s: %v", msg, err)
}

func (l *Logger) Debug(msg string, fields ...interface{}) {
	if l.level > LevelDebug {
		return
	}
	if len(fields) == 0 {
		l.Printf("[DEBUG] %s", msg)
		return
	}
	l.Printf("[DEBUG] %s %v", msg, fields)
}
