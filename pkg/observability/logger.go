package observability

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// LogLevel represents the severity of a log message
type LogLevel int

const (
	DebugLevel LogLevel = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

func (l LogLevel) String() string {
	return []string{"DEBUG", "INFO", "WARN", "ERROR"}[l]
}

func (l LogLevel) logrusLevel() logrus.Level {
	switch l {
	case DebugLevel:
		return logrus.DebugLevel
	case WarnLevel:
		return logrus.WarnLevel
	case ErrorLevel:
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}

// ParseLogLevel maps "debug", "info", "warn" and "error" to a level; anything else is info
func ParseLogLevel(s string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return DebugLevel
	case "warn", "warning":
		return WarnLevel
	case "error":
		return ErrorLevel
	default:
		return InfoLevel
	}
}

// Logger is a JSON structured logger carrying request-scoped fields
type Logger struct {
	entry *logrus.Entry
}

// NewLogger creates a JSON logger writing to output (stdout when nil)
func NewLogger(level LogLevel, output io.Writer) *Logger {
	if output == nil {
		output = os.Stdout
	}

	base := logrus.New()
	base.SetOutput(output)
	base.SetLevel(level.logrusLevel())
	base.SetFormatter(&logrus.JSONFormatter{})

	return &Logger{entry: logrus.NewEntry(base)}
}

// Logrus returns the underlying logger for components that take a *logrus.Logger
func (l *Logger) Logrus() *logrus.Logger {
	return l.entry.Logger
}

// WithField adds a field to the logger context
func (l *Logger) WithField(key string, value interface{}) *Logger {
	return &Logger{entry: l.entry.WithField(key, value)}
}

// WithFields adds multiple fields to the logger context
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	return &Logger{entry: l.entry.WithFields(logrus.Fields(fields))}
}

// WithError adds an error to the logger context
func (l *Logger) WithError(err error) *Logger {
	if err == nil {
		return l
	}
	return &Logger{entry: l.entry.WithError(err)}
}

func (l *Logger) Debug(message string) { l.entry.Debug(message) }

func (l *Logger) Debugf(format string, args ...interface{}) { l.entry.Debugf(format, args...) }

func (l *Logger) Info(message string) { l.entry.Info(message) }

func (l *Logger) Infof(format string, args ...interface{}) { l.entry.Infof(format, args...) }

func (l *Logger) Warn(message string) { l.entry.Warn(message) }

func (l *Logger) Warnf(format string, args ...interface{}) { l.entry.Warnf(format, args...) }

func (l *Logger) Error(message string) { l.entry.Error(message) }

func (l *Logger) Errorf(format string, args ...interface{}) { l.entry.Errorf(format, args...) }
