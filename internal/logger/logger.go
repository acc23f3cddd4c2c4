// Package logger provides the text sinks of a run. Appends are serialised
// by a mutex so that parallel regions may log safely.
package logger

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/regolith-sim/regolith/internal/paths"
	"github.com/regolith-sim/regolith/internal/settings"
)

// Level orders messages by severity; a sink drops everything below its
// verbosity threshold.
type Level int

const (
	Debug Level = iota
	Info
	Warning
	Error
)

func (l Level) String() string {
	switch l {
	case Debug:
		return "debug"
	case Info:
		return "info"
	case Warning:
		return "warning"
	case Error:
		return "error"
	}
	return "unknown"
}

type Logger interface {
	Log(level Level, msg string)
}

func Debugf(l Logger, format string, args ...any) {
	l.Log(Debug, fmt.Sprintf(format, args...))
}

func Infof(l Logger, format string, args ...any) {
	l.Log(Info, fmt.Sprintf(format, args...))
}

func Warnf(l Logger, format string, args ...any) {
	l.Log(Warning, fmt.Sprintf(format, args...))
}

func Errorf(l Logger, format string, args ...any) {
	l.Log(Error, fmt.Sprintf(format, args...))
}

var (
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("242"))
	infoStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("86"))
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
)

// Stdout writes styled lines to a terminal.
type Stdout struct {
	mu        sync.Mutex
	out       io.Writer
	threshold Level
}

func NewStdout(threshold Level) *Stdout {
	return &Stdout{out: os.Stdout, threshold: threshold}
}

// NewWriter logs to an arbitrary writer, used in tests.
func NewWriter(w io.Writer, threshold Level) *Stdout {
	return &Stdout{out: w, threshold: threshold}
}

func (s *Stdout) Log(level Level, msg string) {
	if level < s.threshold {
		return
	}
	var style lipgloss.Style
	switch level {
	case Debug:
		style = dimStyle
	case Info:
		style = infoStyle
	case Warning:
		style = warningStyle
	default:
		style = errorStyle
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintln(s.out, style.Render(msg))
}

// File appends timestamped lines to a log file.
type File struct {
	mu        sync.Mutex
	f         *os.File
	threshold Level
}

func NewFile(p paths.Path, threshold Level) (*File, error) {
	f, err := os.OpenFile(p.Native(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return &File{f: f, threshold: threshold}, nil
}

func (l *File) Log(level Level, msg string) {
	if level < l.threshold {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.f, "%s [%s] %s\n", time.Now().Format("15:04:05.000"), level, msg)
}

func (l *File) Close() error { return l.f.Close() }

// Null drops everything.
type Null struct{}

func (Null) Log(Level, string) {}

// Multi fans out to several sinks.
type Multi []Logger

func (m Multi) Log(level Level, msg string) {
	for _, l := range m {
		l.Log(level, msg)
	}
}

// FromSettings constructs the sink selected by the run settings.
func FromSettings(run *settings.Settings[settings.RunID]) (Logger, error) {
	kind, err := settings.GetEnum[settings.LoggerKind](run, settings.RunLogger)
	if err != nil {
		return nil, err
	}
	verbosity, err := settings.Get[int](run, settings.RunLoggerVerbosity)
	if err != nil {
		return nil, err
	}
	threshold := Level(verbosity)
	switch kind {
	case settings.LoggerNone:
		return Null{}, nil
	case settings.LoggerStdout:
		return NewStdout(threshold), nil
	case settings.LoggerFile:
		p, err := settings.Get[paths.Path](run, settings.RunLoggerFile)
		if err != nil {
			return nil, err
		}
		return NewFile(p, threshold)
	default:
		return nil, fmt.Errorf("logger: unknown logger %d", int(kind))
	}
}
