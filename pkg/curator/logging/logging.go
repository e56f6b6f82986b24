// Package logging provides per-component loggers for curator, built on
// charmbracelet/log with optional rotating file output.
//
// Basic usage:
//
//	if err := logging.Init(logging.Config{Level: "info"}); err != nil {
//	    log.Fatal(err)
//	}
//	defer logging.Close()
//
//	logger := logging.Get("engine")
//	logger.Info("bucket resynchronized", "bucket", "textures")
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/adrg/xdg"
	"github.com/charmbracelet/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config configures the logging system.
type Config struct {
	// Level is the default log level (debug, info, warn, error).
	Level string

	// Path is the log file path. Empty logs to stderr instead.
	Path string

	// MaxSizeMB, MaxBackups and MaxAgeDays configure rotation of the log
	// file. Zero values use lumberjack defaults.
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int

	// Components maps component names to per-component level overrides.
	Components map[string]string
}

// DefaultLogPath returns the log file location under the XDG state dir.
func DefaultLogPath() string {
	return filepath.Join(xdg.StateHome, "curator", "curator.log")
}

type state struct {
	mu      sync.Mutex
	out     io.Writer
	closer  io.Closer
	level   log.Level
	levels  map[string]log.Level
	loggers map[string]*log.Logger
}

var global = &state{
	out:     io.Discard,
	level:   log.InfoLevel,
	levels:  make(map[string]log.Level),
	loggers: make(map[string]*log.Logger),
}

// Init configures the logging system. Before Init, all loggers discard
// output. Calling Init again reconfigures and resets existing loggers.
func Init(cfg Config) error {
	global.mu.Lock()
	defer global.mu.Unlock()

	level, err := log.ParseLevel(cfg.Level)
	if err != nil {
		return fmt.Errorf("parsing log level: %w", err)
	}

	levels := make(map[string]log.Level, len(cfg.Components))
	for comp, lvl := range cfg.Components {
		parsed, err := log.ParseLevel(lvl)
		if err != nil {
			return fmt.Errorf("parsing level for component %q: %w", comp, err)
		}
		levels[comp] = parsed
	}

	var out io.Writer = os.Stderr
	var closer io.Closer
	if cfg.Path != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
			return fmt.Errorf("creating log directory: %w", err)
		}
		lj := &lumberjack.Logger{
			Filename:   cfg.Path,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
		}
		out = lj
		closer = lj
	}

	if global.closer != nil {
		_ = global.closer.Close()
	}

	global.out = out
	global.closer = closer
	global.level = level
	global.levels = levels
	global.loggers = make(map[string]*log.Logger)
	return nil
}

// Get returns the named component logger, creating it on first use. Loggers
// created before Init discard their output until Init is called.
func Get(component string) *log.Logger {
	global.mu.Lock()
	defer global.mu.Unlock()

	if l, ok := global.loggers[component]; ok {
		return l
	}

	level := global.level
	if override, ok := global.levels[component]; ok {
		level = override
	}

	l := log.NewWithOptions(global.out, log.Options{
		ReportTimestamp: true,
		Prefix:          component,
		Level:           level,
	})
	global.loggers[component] = l
	return l
}

// Close flushes and closes the log file, if one is open.
func Close() error {
	global.mu.Lock()
	defer global.mu.Unlock()

	if global.closer == nil {
		return nil
	}
	err := global.closer.Close()
	global.closer = nil
	global.out = io.Discard
	global.loggers = make(map[string]*log.Logger)
	return err
}
