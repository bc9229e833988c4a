// Package yalogger is the structured logger used across YaTgPoster. The only
// backend is logrus; callers depend on the Logger interface.
package yalogger

import (
	"maps"
	"os"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Config defines the logger options.
//
// BaseLoggerType: backend to use (only Logrus).
// Level: minimum level written.
// JSON: write JSON lines instead of text.
// FullTimestamp / DisableTimestamp / TimestampFormat: text formatter options.
type Config struct {
	BaseLoggerType   BaseLoggerType
	Level            Level
	JSON             bool
	FullTimestamp    bool
	DisableTimestamp bool
	TimestampFormat  string
}

// BaseLogger produces Logger instances that share one backend.
type BaseLogger interface {
	NewLogger() Logger
}

// Logger is a leveled logger with context fields.
type Logger interface {
	Info(msg string)
	Infof(format string, args ...any)
	Trace(msg string)
	Tracef(format string, args ...any)
	Error(msg string)
	Errorf(format string, args ...any)
	Warn(msg string)
	Warnf(format string, args ...any)
	Debug(msg string)
	Debugf(format string, args ...any)
	Fatal(msg string)
	Fatalf(format string, args ...any)

	// WithField returns a child logger with key set.
	//
	// Example usage:
	//
	//   log.WithField(yalogger.KeyPostID, post.ID).Info("post sent")
	WithField(key string, value any) Logger
	WithFields(fields map[string]any) Logger
	WithRequestStringID(id string) Logger
	WithRequestUUID(id uuid.UUID) Logger
	WithRandomRequestID() Logger

	// GetFields returns a copy of the context fields.
	GetFields() map[string]any
}

type baseLogrus struct {
	logger *logrus.Logger
}

type logrusAdapter struct {
	entry *logrus.Entry
}

// NewBaseLogger configures a logrus backend. A nil config gives a debug level text
// logger on stderr.
//
// Panics on an unknown BaseLoggerType.
func NewBaseLogger(config *Config) BaseLogger {
	if config == nil {
		config = &Config{
			BaseLoggerType:  Logrus,
			Level:           DebugLevel,
			TimestampFormat: defaultTimestampFormat,
		}
	}

	switch config.BaseLoggerType {
	case Logrus:
		base := logrus.New()
		base.SetOutput(os.Stderr)
		base.SetLevel(logrus.Level(config.Level))

		if config.JSON {
			base.SetFormatter(&logrus.JSONFormatter{
				TimestampFormat:  config.TimestampFormat,
				DisableTimestamp: config.DisableTimestamp,
			})
		} else {
			base.SetFormatter(&logrus.TextFormatter{
				FullTimestamp:    config.FullTimestamp,
				TimestampFormat:  config.TimestampFormat,
				DisableTimestamp: config.DisableTimestamp,
			})
		}

		return &baseLogrus{logger: base}
	default:
		panic("unsupported logger type, you are a teapot")
	}
}

// NewLogrusLogger wraps an existing logrus logger, mostly for tests that need
// logrus hooks.
func NewLogrusLogger(logger *logrus.Logger) Logger {
	return &logrusAdapter{entry: logrus.NewEntry(logger)}
}

// Default returns a logger built from the nil config.
func Default() Logger {
	return NewBaseLogger(nil).NewLogger()
}

// OrDefault returns log, or Default when log is nil.
func OrDefault(log Logger) Logger {
	if log == nil {
		return Default()
	}

	return log
}

func (b *baseLogrus) NewLogger() Logger {
	return &logrusAdapter{entry: logrus.NewEntry(b.logger)}
}

func (l *logrusAdapter) Info(msg string) {
	l.entry.Info(msg)
}

func (l *logrusAdapter) Infof(format string, args ...any) {
	l.entry.Infof(format, args...)
}

func (l *logrusAdapter) Trace(msg string) {
	l.entry.Trace(msg)
}

func (l *logrusAdapter) Tracef(format string, args ...any) {
	l.entry.Tracef(format, args...)
}

func (l *logrusAdapter) Error(msg string) {
	l.entry.Error(msg)
}

func (l *logrusAdapter) Errorf(format string, args ...any) {
	l.entry.Errorf(format, args...)
}

func (l *logrusAdapter) Warn(msg string) {
	l.entry.Warn(msg)
}

func (l *logrusAdapter) Warnf(format string, args ...any) {
	l.entry.Warnf(format, args...)
}

func (l *logrusAdapter) Debug(msg string) {
	l.entry.Debug(msg)
}

func (l *logrusAdapter) Debugf(format string, args ...any) {
	l.entry.Debugf(format, args...)
}

func (l *logrusAdapter) Fatal(msg string) {
	l.entry.Fatal(msg)
}

func (l *logrusAdapter) Fatalf(format string, args ...any) {
	l.entry.Fatalf(format, args...)
}

func (l *logrusAdapter) WithField(key string, value any) Logger {
	return &logrusAdapter{entry: l.entry.WithField(key, value)}
}

func (l *logrusAdapter) WithFields(fields map[string]any) Logger {
	return &logrusAdapter{entry: l.entry.WithFields(fields)}
}

func (l *logrusAdapter) WithRequestStringID(id string) Logger {
	return l.WithField(KeyRequestID, id)
}

func (l *logrusAdapter) WithRequestUUID(id uuid.UUID) Logger {
	return l.WithField(KeyRequestID, id.String())
}

func (l *logrusAdapter) WithRandomRequestID() Logger {
	return l.WithRequestUUID(uuid.New())
}

func (l *logrusAdapter) GetFields() map[string]any {
	fields := make(map[string]any, len(l.entry.Data))
	maps.Copy(fields, l.entry.Data)

	return fields
}
