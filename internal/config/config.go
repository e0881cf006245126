// Package config creates the logger of a recompiler run.
package config

import (
	"github.com/retroenv/retrogolib/log"
	"github.com/retroenv/retrorecomp/internal/options"
)

// NewLogger returns a logger for the program flags. Debug logging includes
// the per phase details of the pipeline, quiet mode only reports errors so
// that stdout carries nothing but the program output.
func NewLogger(flags options.Flags) *log.Logger {
	cfg := log.DefaultConfig()
	switch {
	case flags.Debug:
		cfg.Level = log.DebugLevel
	case flags.Quiet:
		cfg.Level = log.ErrorLevel
	}
	return log.NewWithConfig(cfg)
}
