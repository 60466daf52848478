// Package logging provides a tiny leveled wrapper over the standard
// library's log package, matching the teacher's habit of building one line
// with a strings.Builder and printing it rather than reaching for a
// structured logging library.
package logging

import (
	"fmt"
	"log"
	"strings"
)

// Level orders the severities this package knows about.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return "unknown"
	}
}

// Logger prints lines at or above Min to the standard logger, prefixed
// with the component name and level.
type Logger struct {
	Component string
	Min       Level
}

// New builds a logger for component at the default Info level.
func New(component string) *Logger {
	return &Logger{Component: component, Min: LevelInfo}
}

func (lg *Logger) log(level Level, format string, args ...any) {
	if level < lg.Min {
		return
	}
	var b strings.Builder
	b.WriteString(lg.Component)
	b.WriteString(" [")
	b.WriteString(level.String())
	b.WriteString("] ")
	fmt.Fprintf(&b, format, args...)
	log.Println(b.String())
}

func (lg *Logger) Debugf(format string, args ...any) { lg.log(LevelDebug, format, args...) }
func (lg *Logger) Infof(format string, args ...any)  { lg.log(LevelInfo, format, args...) }
func (lg *Logger) Warnf(format string, args ...any)  { lg.log(LevelWarn, format, args...) }
func (lg *Logger) Errorf(format string, args ...any) { lg.log(LevelError, format, args...) }
