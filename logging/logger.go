// Package logging provides the leveled, structured logger used
// throughout faultfs, wrapping github.com/rs/zerolog the way
// chaos-utils/pkg/reporting/logger.go wraps it.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Level is one of the four levels the config file and CLI accept,
// matching the numeric log_level scale in spec.md §6 (0=ERROR..3=DEBUG).
type Level int

const (
	LevelError Level = iota
	LevelWarn
	LevelInfo
	LevelDebug
)

// ParseLevel maps a numeric or named level onto a Level.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "0", "error":
		return LevelError
	case "1", "warn", "warning":
		return LevelWarn
	case "3", "debug":
		return LevelDebug
	default:
		return LevelInfo
	}
}

func (l Level) zerolog() zerolog.Level {
	switch l {
	case LevelError:
		return zerolog.ErrorLevel
	case LevelWarn:
		return zerolog.WarnLevel
	case LevelDebug:
		return zerolog.DebugLevel
	default:
		return zerolog.InfoLevel
	}
}

// Config configures a Logger.
type Config struct {
	Level  Level
	Output io.Writer // defaults to os.Stdout if nil
}

// Logger is a leveled, structured logger. The zero value is not usable;
// construct one with New.
type Logger struct {
	z zerolog.Logger
}

// New builds a Logger from cfg.
func New(cfg Config) *Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}
	if f, ok := out.(*os.File); ok && isTerminal(f) {
		out = zerolog.ConsoleWriter{Out: f, TimeFormat: time.RFC3339}
	}

	z := zerolog.New(out).Level(cfg.Level.zerolog()).With().Timestamp().Logger()
	return &Logger{z: z}
}

func isTerminal(f *os.File) bool {
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

func (l *Logger) event(e *zerolog.Event, msg string, kv []interface{}) {
	addFields(e, kv)
	e.Msg(msg)
}

// Debug logs msg at debug level with the given alternating key/value
// pairs.
func (l *Logger) Debug(msg string, kv ...interface{}) { l.event(l.z.Debug(), msg, kv) }

// Info logs msg at info level with the given alternating key/value
// pairs.
func (l *Logger) Info(msg string, kv ...interface{}) { l.event(l.z.Info(), msg, kv) }

// Warn logs msg at warn level with the given alternating key/value
// pairs.
func (l *Logger) Warn(msg string, kv ...interface{}) { l.event(l.z.Warn(), msg, kv) }

// Error logs msg at error level with the given alternating key/value
// pairs.
func (l *Logger) Error(msg string, kv ...interface{}) { l.event(l.z.Error(), msg, kv) }

// WithField returns a child Logger with key=value attached to every
// subsequent entry.
func (l *Logger) WithField(key string, value interface{}) *Logger {
	return &Logger{z: l.z.With().Interface(key, value).Logger()}
}

func addFields(e *zerolog.Event, kv []interface{}) {
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			continue
		}
		e.Interface(key, kv[i+1])
	}
}
