// Package logging provides the line-oriented, severity-tagged handle that
// backends stream subprocess output to.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Level is the severity of a log line.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// Logger accepts one message per call. Implementations must be safe for
// concurrent use.
type Logger interface {
	Log(level Level, msg string)
	// WithTask returns a Logger whose lines are tagged with the task id.
	WithTask(taskID string) Logger
}

// Options configures the logrus-backed logger.
type Options struct {
	Level   string // logrus level name; defaults to info
	NoColor bool
	Output  io.Writer // defaults to stderr
}

type logrusLogger struct {
	entry *logrus.Entry
}

// New creates a Logger backed by logrus.
func New(opts Options) Logger {
	l := logrus.New()

	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	l.SetOutput(out)

	level, err := logrus.ParseLevel(strings.ToLower(opts.Level))
	if err != nil {
		level = logrus.InfoLevel
	}
	l.SetLevel(level)

	l.SetFormatter(&logrus.TextFormatter{
		DisableColors:    opts.NoColor,
		DisableTimestamp: true,
	})

	return &logrusLogger{entry: logrus.NewEntry(l)}
}

// FromLogrus wraps an existing logrus logger.
func FromLogrus(l *logrus.Logger) Logger {
	return &logrusLogger{entry: logrus.NewEntry(l)}
}

func (l *logrusLogger) Log(level Level, msg string) {
	switch level {
	case LevelDebug:
		l.entry.Debug(msg)
	case LevelInfo:
		l.entry.Info(msg)
	case LevelWarn:
		l.entry.Warn(msg)
	default:
		l.entry.Error(msg)
	}
}

func (l *logrusLogger) WithTask(taskID string) Logger {
	if taskID == "" {
		return l
	}
	return &logrusLogger{entry: l.entry.WithField("task", taskID)}
}

type nopLogger struct{}

// Nop returns a Logger that discards everything.
func Nop() Logger { return nopLogger{} }

func (nopLogger) Log(Level, string)       {}
func (n nopLogger) WithTask(string) Logger { return n }
