package core

import (
	"os"
	"time"

	"github.com/charmbracelet/log"
)

// LoggerOptions controls how a component logger is built.
type LoggerOptions struct {
	Prefix string
	Level  log.Level
}

// NewLogger builds a logger to hand to a component at construction time.
// Each component receives its own sink; there is no package-global instance.
func NewLogger(opts LoggerOptions) *log.Logger {
	l := log.NewWithOptions(os.Stderr, log.Options{
		ReportCaller:    true,
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
		Prefix:          opts.Prefix,
	})
	l.SetLevel(opts.Level)
	return l
}

// NopLogger returns a logger that discards everything. Components fall back
// to it when constructed without a sink; tests use it too.
func NopLogger() *log.Logger {
	l := log.New(os.Stderr)
	l.SetLevel(log.FatalLevel + 1)
	return l
}
