package main

import (
	"fmt"
	"io"
	"log"
	"time"
)

const rfc3339UsecTz0 = "2006-01-02T15:04:05.000000Z07:00"

// Logger is the levelled logger shared by every command.
type Logger interface {
	Printf(format string, v ...interface{})
	Debugf(format string, v ...interface{})
	Infof(format string, v ...interface{})
	Warnf(format string, v ...interface{})
	Errorf(format string, v ...interface{})
	// WithPrefix returns a Logger writing to the same destination with
	// prefix prepended to every message.
	WithPrefix(prefix string) Logger
}

const (
	levelError = iota
	levelWarn
	levelInfo
	levelDebug
)

func levelPrefix(level int) string {
	return [...]string{"ERROR: ", "WARN:  ", "INFO:  ", "DEBUG: "}[level]
}

var _ Logger = &nopLogger{}

// NopLogger discards everything.
var NopLogger Logger = &nopLogger{}

type nopLogger struct{}

func (n *nopLogger) Printf(format string, v ...interface{}) {}
func (n *nopLogger) Debugf(format string, v ...interface{}) {}
func (n *nopLogger) Infof(format string, v ...interface{})  {}
func (n *nopLogger) Warnf(format string, v ...interface{})  {}
func (n *nopLogger) Errorf(format string, v ...interface{}) {}
func (n *nopLogger) WithPrefix(prefix string) Logger        { return n }

type standardLogger struct {
	logger    *log.Logger
	verbosity int
	prefix    string
	w         io.Writer
}

// formatLog stamps every line in UTC with constant width.
type formatLog struct {
	w io.Writer
}

func (fl formatLog) Write(b []byte) (int, error) {
	return fmt.Fprintf(fl.w, "%v %v", time.Now().UTC().Format(rfc3339UsecTz0), string(b))
}

func newStandardLogger(w io.Writer, verbosity int, prefix string) *standardLogger {
	l := log.New(formatLog{w: w}, "", 0)
	return &standardLogger{
		logger:    l,
		verbosity: verbosity,
		prefix:    prefix,
		w:         w,
	}
}

// NewStandardLogger logs INFO and above to w.
func NewStandardLogger(w io.Writer) Logger {
	return newStandardLogger(w, levelInfo, "")
}

// NewVerboseLogger logs everything, DEBUG included, to w.
func NewVerboseLogger(w io.Writer) Logger {
	return newStandardLogger(w, levelDebug, "")
}

func (s *standardLogger) printf(level int, format string, v ...interface{}) {
	if level > s.verbosity {
		return
	}
	s.logger.Printf(levelPrefix(level)+s.prefix+format, v...)
}

func (s *standardLogger) Printf(format string, v ...interface{}) { s.printf(levelInfo, format, v...) }
func (s *standardLogger) Debugf(format string, v ...interface{}) { s.printf(levelDebug, format, v...) }
func (s *standardLogger) Infof(format string, v ...interface{})  { s.printf(levelInfo, format, v...) }
func (s *standardLogger) Warnf(format string, v ...interface{})  { s.printf(levelWarn, format, v...) }
func (s *standardLogger) Errorf(format string, v ...interface{}) { s.printf(levelError, format, v...) }

func (s *standardLogger) WithPrefix(prefix string) Logger {
	return newStandardLogger(s.w, s.verbosity, s.prefix+prefix)
}

func newLoggerTo(w io.Writer, verbose bool) Logger {
	if verbose {
		return NewVerboseLogger(w)
	}
	return NewStandardLogger(w)
}
