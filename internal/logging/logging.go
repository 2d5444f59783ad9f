// Package logging sets up component loggers backed by a rotating log file.
package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Options controls where logs go.
type Options struct {
	// File is the log file path. Empty disables file logging.
	File       string
	MaxSizeMB  int
	MaxBackups int
	Compress   bool

	// Verbose also copies log lines to stderr.
	Verbose bool
	Stderr  io.Writer
}

// Sink fans component loggers into one destination.
type Sink struct {
	out  io.Writer
	file *lumberjack.Logger
}

// Open creates a sink. With no file and no verbose flag, logs are discarded.
func Open(opts Options) (*Sink, error) {
	stderr := opts.Stderr
	if stderr == nil {
		stderr = os.Stderr
	}

	var writers []io.Writer
	s := &Sink{}
	if opts.File != "" {
		if err := os.MkdirAll(filepath.Dir(opts.File), 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		s.file = &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
			Compress:   opts.Compress,
		}
		writers = append(writers, s.file)
	}
	if opts.Verbose {
		writers = append(writers, stderr)
	}

	switch len(writers) {
	case 0:
		s.out = io.Discard
	case 1:
		s.out = writers[0]
	default:
		s.out = io.MultiWriter(writers...)
	}
	return s, nil
}

// Logger returns a logger prefixed with "[component] ".
func (s *Sink) Logger(component string) *log.Logger {
	return log.New(s.out, "["+component+"] ", log.LstdFlags)
}

// Close closes the log file, if any.
func (s *Sink) Close() error {
	if s.file == nil {
		return nil
	}
	return s.file.Close()
}

// DefaultFile returns presetctl.log under the user cache directory.
func DefaultFile() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "presetctl", "presetctl.log")
}
