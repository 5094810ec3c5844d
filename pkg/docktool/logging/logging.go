// Package logging provides component loggers for docktool, written as plain
// text to a rotating log file and, optionally, to stderr.
//
// Basic usage:
//
//	if err := logging.Init(logging.Config{Level: "info", ConsoleLevel: "info"}); err != nil {
//	    log.Fatal(err)
//	}
//	defer logging.Close()
//
//	logger := logging.Get("cleaner")
//	logger.Info("cycle started", "cycle", 1)
package logging

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/adrg/xdg"
	"github.com/charmbracelet/log"
)

// Level is a charmbracelet/log level.
type Level = log.Level

// Levels accepted in configuration.
const (
	LevelDebug = log.DebugLevel
	LevelInfo  = log.InfoLevel
	LevelWarn  = log.WarnLevel
	LevelError = log.ErrorLevel
)

// ErrInvalidLevel is returned when an invalid log level string is provided.
var ErrInvalidLevel = errors.New("invalid log level")

// ParseLevel parses a configured level. Empty means info.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, nil
	case "info", "":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	}
	return LevelInfo, fmt.Errorf("%w: %s", ErrInvalidLevel, s)
}

// Config configures the logging system.
type Config struct {
	// Level is the default file log level (debug, info, warn, error).
	Level string

	// Path is the log file path. Empty uses DefaultLogPath(); "-" disables
	// the log file.
	Path string

	Rotation RotationConfig

	// Components maps component names to their log levels.
	Components map[string]string

	// ConsoleLevel enables console output at the given level. Empty disables it.
	ConsoleLevel string

	// Console overrides the console writer. Nil means os.Stderr.
	Console io.Writer

	// Fields are attached to every log line, e.g. a run ID.
	Fields []interface{}
}

// Logger is a component logger. Loggers handed out before Init keep working
// after it: Init swaps their sinks in place.
type Logger struct {
	mu        sync.RWMutex
	component string
	sinks     []*log.Logger
}

// Debug logs a debug message.
func (l *Logger) Debug(msg string, args ...interface{}) { l.log(LevelDebug, msg, args) }

// Info logs an info message.
func (l *Logger) Info(msg string, args ...interface{}) { l.log(LevelInfo, msg, args) }

// Warn logs a warning message.
func (l *Logger) Warn(msg string, args ...interface{}) { l.log(LevelWarn, msg, args) }

// Error logs an error message.
func (l *Logger) Error(msg string, args ...interface{}) { l.log(LevelError, msg, args) }

// With returns a detached logger carrying additional key/value pairs. It is
// not rewired by a later Init.
func (l *Logger) With(args ...interface{}) *Logger {
	l.mu.RLock()
	defer l.mu.RUnlock()

	child := &Logger{component: l.component, sinks: make([]*log.Logger, len(l.sinks))}
	for i, sink := range l.sinks {
		child.sinks[i] = sink.With(args...)
	}
	return child
}

func (l *Logger) log(level Level, msg string, args []interface{}) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	for _, sink := range l.sinks {
		sink.Log(level, msg, args...)
	}
}

// sinkSet is the output configuration every component logger is built from.
type sinkSet struct {
	file       *RotatingWriter
	level      Level
	components map[string]Level

	console      io.Writer
	consoleLevel Level
	fields       []interface{}
}

// build returns the sinks for one component.
func (s *sinkSet) build(component string) []*log.Logger {
	if s == nil {
		return nil
	}

	level := s.level
	if override, ok := s.components[component]; ok {
		level = override
	}

	var sinks []*log.Logger
	if s.file != nil {
		sinks = append(sinks, log.NewWithOptions(s.file, log.Options{
			Level:           level,
			ReportTimestamp: true,
			TimeFormat:      time.RFC3339,
			Prefix:          component,
		}))
	}
	if s.console != nil {
		// The console never shows more than the component's file level.
		consoleLevel := max(s.consoleLevel, level)
		sinks = append(sinks, log.NewWithOptions(s.console, log.Options{
			Level:           consoleLevel,
			ReportTimestamp: true,
			TimeFormat:      time.DateTime,
			Prefix:          component,
		}))
	}
	if len(s.fields) > 0 {
		for i := range sinks {
			sinks[i] = sinks[i].With(s.fields...)
		}
	}
	return sinks
}

var registry = struct {
	mu      sync.Mutex
	active  *sinkSet
	loggers map[string]*Logger
}{loggers: make(map[string]*Logger)}

// Init configures the logging system and rewires loggers obtained earlier.
// Before Init, and after Close, every logger discards its output.
func Init(cfg Config) error {
	set, err := newSinkSet(cfg)
	if err != nil {
		return err
	}

	registry.mu.Lock()
	defer registry.mu.Unlock()

	if registry.active != nil && registry.active.file != nil {
		if err := registry.active.file.Close(); err != nil {
			return fmt.Errorf("closing existing writer: %w", err)
		}
	}
	registry.active = set
	rewire()
	return nil
}

func newSinkSet(cfg Config) (*sinkSet, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("parsing log level: %w", err)
	}

	set := &sinkSet{
		level:      level,
		components: make(map[string]Level, len(cfg.Components)),
		fields:     cfg.Fields,
	}
	for comp, lvl := range cfg.Components {
		if set.components[comp], err = ParseLevel(lvl); err != nil {
			return nil, fmt.Errorf("parsing level for component %s: %w", comp, err)
		}
	}

	if cfg.ConsoleLevel != "" {
		if set.consoleLevel, err = ParseLevel(cfg.ConsoleLevel); err != nil {
			return nil, fmt.Errorf("parsing console level: %w", err)
		}
		set.console = cfg.Console
		if set.console == nil {
			set.console = os.Stderr
		}
	}

	if cfg.Path != "-" {
		path := cfg.Path
		if path == "" {
			path = DefaultLogPath()
		}
		if set.file, err = NewRotatingWriter(path, cfg.Rotation); err != nil {
			return nil, fmt.Errorf("creating log writer: %w", err)
		}
	}
	return set, nil
}

// Get returns the logger for component, creating it on first use.
func Get(component string) *Logger {
	registry.mu.Lock()
	defer registry.mu.Unlock()

	if logger, ok := registry.loggers[component]; ok {
		return logger
	}
	logger := &Logger{component: component, sinks: registry.active.build(component)}
	registry.loggers[component] = logger
	return logger
}

// rewire rebuilds the sinks of every registered logger. registry.mu must be held.
func rewire() {
	for component, logger := range registry.loggers {
		sinks := registry.active.build(component)
		logger.mu.Lock()
		logger.sinks = sinks
		logger.mu.Unlock()
	}
}

// Close flushes and closes the log file and silences all loggers.
func Close() error {
	registry.mu.Lock()
	defer registry.mu.Unlock()

	if registry.active == nil {
		return nil
	}

	var closeErr error
	if registry.active.file != nil {
		if err := registry.active.file.Close(); err != nil {
			closeErr = fmt.Errorf("closing log writer: %w", err)
		}
	}
	registry.active = nil
	rewire()
	return closeErr
}

// DefaultLogPath returns $XDG_STATE_HOME/docktool/docktool.log.
func DefaultLogPath() string {
	return filepath.Join(xdg.StateHome, "docktool", "docktool.log")
}
