// Package logging provides the small prefixed-logger wrapper used across
// the agent core, in the same spirit as BaseAgent's LogInfo/LogDebug/LogError
// helpers: plain stdlib log.Logger, a component prefix, and a debug gate.
package logging

import (
	"fmt"
	"log"
	"os"
)

// Logger wraps the standard library logger with a component prefix and an
// optional debug gate. It is safe for concurrent use because log.Logger is.
type Logger struct {
	std     *log.Logger
	prefix  string
	agentID string
	debug   bool
}

// New creates a Logger that writes to stderr, tagged with component and
// agentID. Debug-level messages are dropped unless debug is true.
func New(component, agentID string, debug bool) *Logger {
	return &Logger{
		std:     log.New(os.Stderr, "", log.LstdFlags|log.Lmicroseconds),
		prefix:  component,
		agentID: agentID,
		debug:   debug,
	}
}

func (l *Logger) Info(format string, args ...interface{}) {
	l.log("INFO", format, args...)
}

func (l *Logger) Debug(format string, args ...interface{}) {
	if !l.debug {
		return
	}
	l.log("DEBUG", format, args...)
}

func (l *Logger) Error(format string, args ...interface{}) {
	l.log("ERROR", format, args...)
}

func (l *Logger) Warn(format string, args ...interface{}) {
	l.log("WARN", format, args...)
}

func (l *Logger) log(level, format string, args ...interface{}) {
	msg := format
	if len(args) > 0 {
		msg = fmt.Sprintf(format, args...)
	}
	l.std.Printf("[%s] %s agent=%s: %s", level, l.prefix, l.agentID, msg)
}

// With returns a child logger scoped to a different component, sharing the
// same agent ID and debug gate.
func (l *Logger) With(component string) *Logger {
	return &Logger{std: l.std, prefix: component, agentID: l.agentID, debug: l.debug}
}
