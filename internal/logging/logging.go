// Package logging builds the component loggers used across wikisync.
//
// Every component logs through a plain *log.Logger with a bracketed prefix
// such as "[publish] ". Output always goes to stderr and, when a log file is
// configured, also to a size-rotated file.
package logging

import (
	"io"
	"log"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Component names used as logger prefixes.
const (
	ComponentSync      = "sync"
	ComponentPublish   = "publish"
	ComponentRemote    = "remote"
	ComponentReconcile = "reconcile"
	ComponentGateway   = "gateway"
	ComponentWatch     = "watch"
)

const (
	// DefaultMaxSizeMB is the size at which the log file is rotated.
	DefaultMaxSizeMB = 10
	// DefaultMaxBackups is how many rotated files are kept.
	DefaultMaxBackups = 3
)

// Options configures the log output.
type Options struct {
	// File is the path of the rotated log file. Empty disables file output.
	File       string
	MaxSizeMB  int
	MaxBackups int
	// Stderr overrides the console writer. Used by tests.
	Stderr io.Writer
}

// Output is the shared destination of all component loggers.
type Output struct {
	w    io.Writer
	file *lumberjack.Logger
}

// Open builds the log output described by opts.
func Open(opts Options) *Output {
	console := opts.Stderr
	if console == nil {
		console = os.Stderr
	}
	if opts.File == "" {
		return &Output{w: console}
	}

	if opts.MaxSizeMB <= 0 {
		opts.MaxSizeMB = DefaultMaxSizeMB
	}
	if opts.MaxBackups <= 0 {
		opts.MaxBackups = DefaultMaxBackups
	}
	file := &lumberjack.Logger{
		Filename:   opts.File,
		MaxSize:    opts.MaxSizeMB,
		MaxBackups: opts.MaxBackups,
	}
	return &Output{w: io.MultiWriter(console, file), file: file}
}

// Writer returns the combined destination.
func (o *Output) Writer() io.Writer {
	return o.w
}

// Logger returns a logger for the named component.
func (o *Output) Logger(component string) *log.Logger {
	return New(o.w, component)
}

// Close closes the log file, if any.
func (o *Output) Close() error {
	if o.file == nil {
		return nil
	}
	return o.file.Close()
}

// New returns a logger writing to w with the "[component] " prefix.
func New(w io.Writer, component string) *log.Logger {
	return log.New(w, "["+component+"] ", log.LstdFlags)
}

// Discard returns a logger that drops everything.
func Discard() *log.Logger {
	return log.New(io.Discard, "", 0)
}
