package threads

import (
	"errors"
	"fmt"
)

// ErrAlreadyRunning is returned by Run when the system was already booted.
var ErrAlreadyRunning = errors.New("threads: system already running")

// AssertionError reports misuse of the scheduler interface, such as sleeping
// with interrupts enabled. It is raised with panic and surfaces as the error
// returned by Run.
type AssertionError struct {
	Thread  string // Thread that broke the rule (empty outside a thread)
	Message string // Violated condition
}

// Error implements the error interface.
//
// Format: assertion failed in thread NAME: MESSAGE
func (e *AssertionError) Error() string {
	if e.Thread == "" {
		return "assertion failed: " + e.Message
	}
	return fmt.Sprintf("assertion failed in thread %s: %s", e.Thread, e.Message)
}

// assert panics with an AssertionError when cond is false.
func (s *System) assert(cond bool, format string, args ...any) {
	if cond {
		return
	}
	err := &AssertionError{Message: fmt.Sprintf(format, args...)}
	if s.current != nil {
		err.Thread = s.current.String()
	}
	panic(err)
}
