package hpgp

import (
	"os"

	"github.com/charmbracelet/log"
)

// Logger is the pluggable logging sink every component writes through
// instead of calling a concrete logging library directly. The default
// implementation wraps charmbracelet/log; callers may supply their own.
type Logger interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

// charmLogger adapts *log.Logger (charmbracelet/log) to the Logger interface.
type charmLogger struct {
	l *log.Logger
}

// NewDefaultLogger returns a Logger writing structured, leveled output to
// stderr via charmbracelet/log, matching the corpus's logging convention.
func NewDefaultLogger() Logger {
	return &charmLogger{l: log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		Prefix:          "hpgp",
	})}
}

func (c *charmLogger) Debugf(format string, args ...any) { c.l.Debugf(format, args...) }
func (c *charmLogger) Infof(format string, args ...any)  { c.l.Infof(format, args...) }
func (c *charmLogger) Warnf(format string, args ...any)  { c.l.Warnf(format, args...) }
func (c *charmLogger) Errorf(format string, args ...any) { c.l.Errorf(format, args...) }

// noopLogger discards everything; used as the zero-value default so a
// Session constructed without WithLogger never nil-derefs.
type noopLogger struct{}

func (noopLogger) Debugf(string, ...any) {}
func (noopLogger) Infof(string, ...any)  {}
func (noopLogger) Warnf(string, ...any)  {}
func (noopLogger) Errorf(string, ...any) {}
