// Package logging wraps go-logging with the backend setup shared by
// every command: one leveled backend, per-module loggers, and optional
// logging to a file instead of stderr.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/op/go-logging.v1"
)

const logFormat = "%{time:15:04:05.000} %{level:.4s} %{module}: %{message}"

// Backend hands out per-module loggers sharing one sink and level.
type Backend struct {
	backend logging.LeveledBackend
	f       *os.File
}

// ParseLevel validates a log level string.
func ParseLevel(s string) (logging.Level, error) {
	level, err := logging.LogLevel(strings.ToUpper(s))
	if err != nil {
		return 0, fmt.Errorf("logging: invalid level %q", s)
	}
	return level, nil
}

// New creates a backend writing to the given file path, or to stderr
// when the path is empty.
func New(path, level string) (*Backend, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}

	var w io.Writer = os.Stderr
	var f *os.File
	if path != "" {
		f, err = os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
		if err != nil {
			return nil, fmt.Errorf("logging: failed to open log file: %w", err)
		}
		w = f
	}

	base := logging.NewLogBackend(w, "", 0)
	formatted := logging.NewBackendFormatter(base, logging.MustStringFormatter(logFormat))
	leveled := logging.AddModuleLevel(formatted)
	leveled.SetLevel(lvl, "")

	return &Backend{backend: leveled, f: f}, nil
}

// MustNew is New for defaults that cannot fail.
func MustNew(path, level string) *Backend {
	b, err := New(path, level)
	if err != nil {
		panic(err)
	}
	return b
}

// GetLogger returns a logger scoped to the given module name.
func (b *Backend) GetLogger(module string) *logging.Logger {
	l := logging.MustGetLogger(module)
	l.SetBackend(b.backend)
	return l
}

// Close releases the log file, if any.
func (b *Backend) Close() error {
	if b.f == nil {
		return nil
	}
	return b.f.Close()
}
