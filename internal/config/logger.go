// Package config owns the module's ambient concerns: the verbosity-gated
// logger, the MCU_DEBUG_LOG environment binding, and launch/attach
// argument decoding (spec §6 "Environment").
package config

import (
	"fmt"
	"os"

	"github.com/fatih/color"
)



// Logger mirrors the teacher's package-level VerboseFlag/Verboseln/
// Verbosef/Verbose helpers (engine/base.go) as methods on a per-session
// value instead of a process-wide global, so concurrent sessions (spec §9
// "Global registries" — "prefer per-session ownership") don't share one
// verbosity flag.
type Logger struct {
	verbose bool
}

// NewLogger returns a Logger whose verbosity is the given flag; use
// NewLoggerFromEnv to take it from the MCU_DEBUG_LOG environment variable.
func NewLogger(verbose bool) *Logger {
	return &Logger{verbose: verbose}
}

// NewLoggerFromEnv reports MCU_DEBUG_LOG (bound through viper in env.go)
// as the session's verbosity.
func NewLoggerFromEnv() *Logger {
	return NewLogger(Verbose())
}

// Verbose reports whether verbose tracing is enabled for this session.
func (l *Logger) Verbose() bool { return l.verbose }

// Verboseln prints only when verbose mode is on, matching the teacher's
// Verboseln (no-op otherwise).
func (l *Logger) Verboseln(a ...interface{}) {
	if l.verbose {
		fmt.Fprintln(os.Stderr, a...)
	}
}

// Verbosef prints only when verbose mode is on. Its signature
// (format string, args ...interface{}) matches the "logf" callback every
// component in this module accepts (gdbmi.New, variables.New, ...), so a
// *Logger can be wired in directly as that seam.
func (l *Logger) Verbosef(format string, a ...interface{}) {
	if l.verbose {
		fmt.Fprintf(os.Stderr, format+"\n", a...)
	}
}

// VerbosePrint prints its arguments with no added newline, only when
// verbose mode is on.
func (l *Logger) VerbosePrint(a ...interface{}) {
	if l.verbose {
		fmt.Fprint(os.Stderr, a...)
	}
}

// Warn prints a yellow warning to stderr unconditionally (matching the
// teacher's color.Yellow convention for user-facing notices, e.g.
// cmd/root.go "Using config file").
func (l *Logger) Warn(format string, a ...interface{}) {
	color.New(color.FgYellow).Fprintf(os.Stderr, "mcu-debug: "+format+"\n", a...)
}

// Error prints a red error to stderr unconditionally (matching the
// teacher's color.Red convention, e.g. engine/breakpoints.go).
func (l *Logger) Error(format string, a ...interface{}) {
	color.New(color.FgRed).Fprintf(os.Stderr, "mcu-debug: "+format+"\n", a...)
}
