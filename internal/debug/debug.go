// Package debug prints flag-selected diagnostic messages for the kernel.
//
// Each message belongs to a single-character flag. A Logger prints a message
// only when its flag was enabled at construction:
//
//	t - threads and scheduling
//	i - interrupt controller
//	s - synchronization primitives
//	r - happens-before checking
//	+ - everything
//
// A nil *Logger is valid and prints nothing, so components can hold an
// optional logger without checking for nil.
package debug

import (
	"fmt"
	"io"
	"strings"
)

// Flag identifiers.
const (
	Threads    = 't'
	Interrupts = 'i'
	Synch      = 's'
	Race       = 'r'
	All        = '+'
)

// Logger writes debug messages for the enabled flags.
type Logger struct {
	w     io.Writer
	flags string
}

// New creates a Logger that writes to w the messages whose flag appears in
// flags. An empty flags string disables all output.
func New(w io.Writer, flags string) *Logger {
	return &Logger{w: w, flags: flags}
}

// Enabled reports whether messages for flag are printed.
func (l *Logger) Enabled(flag byte) bool {
	if l == nil || l.w == nil || l.flags == "" {
		return false
	}
	return strings.IndexByte(l.flags, All) >= 0 || strings.IndexByte(l.flags, flag) >= 0
}

// Printf prints a message if flag is enabled. A newline is appended when the
// message does not end with one.
//
//nolint:errcheck // debug output, write errors are not actionable
func (l *Logger) Printf(flag byte, format string, args ...any) {
	if !l.Enabled(flag) {
		return
	}
	msg := fmt.Sprintf(format, args...)
	if !strings.HasSuffix(msg, "\n") {
		msg += "\n"
	}
	io.WriteString(l.w, msg)
}
