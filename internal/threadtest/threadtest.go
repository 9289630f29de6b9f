// Package threadtest contains the kernel's demonstration programs: small
// multi-threaded workloads that exercise the scheduler and the
// synchronization primitives and check their own results.
//
// Tests are selected by number or name, as with the -q option of the
// kernsync command:
//
//	1  pingpong          two threads yield back and forth
//	2  semaphore-buffer  bounded buffer with semaphores and a lock
//	3  condition-buffer  bounded buffer with a lock and two conditions
//	4  self-deadlock     a thread acquires a lock it already holds
//	5  unsynchronized    bounded buffer ordered only by yields
package threadtest

import (
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"

	"github.com/kolkov/kernsync/kernel"
)

// BufferSize is the capacity of the bounded buffer tests.
const BufferSize = 5

// DefaultItems is the number of items the buffer tests transfer.
const DefaultItems = 10

var (
	// ErrUnknownTest is returned by Lookup for an unknown number or name.
	ErrUnknownTest = errors.New("unknown thread test")

	// ErrDeadlock means threads were still blocked when the kernel halted.
	ErrDeadlock = errors.New("threads still blocked at halt")

	// ErrWrongOrder means the consumer did not see 0..n-1 in order.
	ErrWrongOrder = errors.New("items consumed out of order")

	// ErrOverflow means more than BufferSize items were in flight.
	ErrOverflow = errors.New("buffer capacity exceeded")

	// ErrRaces means the happens-before checker found races in a test that
	// must have none, or none in a test that must have some.
	ErrRaces = errors.New("unexpected race count")

	// ErrNotDetected means a test expecting a fatal kernel error ended
	// without one.
	ErrNotDetected = errors.New("expected fatal error not raised")
)

// Options control a thread test run.
type Options struct {
	// Kernel configures the kernel the test runs on.
	Kernel kernel.Config

	// Out receives the test's progress lines. Nil discards them.
	Out io.Writer

	// Items is the number of items the buffer tests transfer. Zero means
	// DefaultItems.
	Items int

	// Greedy stops the buffer tests from yielding after every item, so the
	// producer runs until the buffer is full.
	Greedy bool
}

// Result is what a thread test observed.
type Result struct {
	// Report is the kernel's end-of-run report.
	Report kernel.Report

	// Trace holds the progress lines, in the order they were printed.
	Trace []string

	// Consumed holds the items taken out of the buffer, in order.
	Consumed []int

	// MaxInFlight is the largest number of items produced but not yet
	// consumed at any point.
	MaxInFlight int

	// Fatal is the kernel error the test expected and observed.
	Fatal error
}

// Test is one demonstration program.
type Test struct {
	Num     int
	Name    string
	Summary string

	// main is the body of the main kernel thread.
	main func(r *run)

	// configure adjusts the kernel configuration before the run.
	configure func(cfg *kernel.Config)

	// expectFatal is the kernel error the test is meant to provoke.
	expectFatal error

	// verify checks the result of a run that ended without a fatal error.
	verify func(r *run) error
}

var tests = []Test{
	{
		Num:     1,
		Name:    "pingpong",
		Summary: "two threads yield back and forth five times each",
		main:    pingPong,
		verify:  noDeadlock,
	},
	{
		Num:     2,
		Name:    "semaphore-buffer",
		Summary: "producer and consumer share a bounded buffer guarded by semaphores and a lock",
		main:    semaphoreBuffer,
		verify:  verifyBuffer(false),
	},
	{
		Num:     3,
		Name:    "condition-buffer",
		Summary: "producer and consumer share a bounded buffer guarded by a lock and two conditions",
		main:    conditionBuffer,
		verify:  verifyBuffer(false),
	},
	{
		Num:         4,
		Name:        "self-deadlock",
		Summary:     "a thread acquires a lock it already holds and the kernel halts",
		main:        selfDeadlock,
		expectFatal: kernel.ErrReentrant,
	},
	{
		Num:       5,
		Name:      "unsynchronized",
		Summary:   "bounded buffer ordered only by yields; the race checker flags it",
		main:      unsynchronizedBuffer,
		configure: func(cfg *kernel.Config) { cfg.RaceDetection = true },
		verify:    verifyBuffer(true),
	},
}

// All returns every thread test in number order.
func All() []Test {
	return slices.Clone(tests)
}

// Lookup finds a test by number ("2") or name ("semaphore-buffer").
func Lookup(key string) (Test, error) {
	if n, err := strconv.Atoi(key); err == nil {
		for _, t := range tests {
			if t.Num == n {
				return t, nil
			}
		}
		return Test{}, fmt.Errorf("%w: %d", ErrUnknownTest, n)
	}
	for _, t := range tests {
		if t.Name == key {
			return t, nil
		}
	}
	return Test{}, fmt.Errorf("%w: %q", ErrUnknownTest, key)
}

// run is the state of one test execution, shared by its kernel threads.
type run struct {
	k    *kernel.Kernel
	opts Options
	res  Result

	produced, consumed int
}

// Run executes t on a fresh kernel and checks its outcome.
//
// The returned error is either the kernel's fatal error, or a violation
// found when checking the result. A test that is expected to provoke a
// fatal error succeeds when it does and records it in Result.Fatal.
func Run(t Test, opts Options) (Result, error) {
	if opts.Out == nil {
		opts.Out = io.Discard
	}
	if opts.Items <= 0 {
		opts.Items = DefaultItems
	}
	cfg := opts.Kernel
	if t.configure != nil {
		t.configure(&cfg)
	}

	r := &run{k: kernel.New(cfg), opts: opts}
	r.k.Debugf('t', "entering thread test %d (%s)", t.Num, t.Name)

	report, err := r.k.Run("main", func() { t.main(r) })
	r.res.Report = report

	if t.expectFatal != nil {
		if !errors.Is(err, t.expectFatal) {
			if err == nil {
				err = fmt.Errorf("%w: %w", ErrNotDetected, t.expectFatal)
			}
			return r.res, err
		}
		r.res.Fatal = err
		r.printf("kernel halted: %v", err)
		return r.res, nil
	}
	if err != nil {
		return r.res, err
	}
	if t.verify != nil {
		if err := t.verify(r); err != nil {
			return r.res, err
		}
	}
	return r.res, nil
}

// printf records and prints one progress line.
//
//nolint:errcheck // progress output is best effort
func (r *run) printf(format string, args ...any) {
	line := fmt.Sprintf(format, args...)
	r.res.Trace = append(r.res.Trace, line)
	fmt.Fprintln(r.opts.Out, line)
}

// pause yields between items unless the run is greedy.
func (r *run) pause() {
	if !r.opts.Greedy {
		r.k.Yield()
	}
}

func (r *run) itemProduced() {
	r.produced++
	r.res.MaxInFlight = max(r.res.MaxInFlight, r.produced-r.consumed)
}

func (r *run) itemConsumed(item int) {
	r.consumed++
	r.res.Consumed = append(r.res.Consumed, item)
}

func noDeadlock(r *run) error {
	if r.res.Report.Deadlocked() {
		return fmt.Errorf("%w: %v", ErrDeadlock, r.res.Report.Blocked)
	}
	return nil
}

// verifyBuffer checks a bounded buffer run. racy selects whether the
// happens-before checker must have found races.
func verifyBuffer(racy bool) func(r *run) error {
	return func(r *run) error {
		if err := noDeadlock(r); err != nil {
			return err
		}
		if len(r.res.Consumed) != r.opts.Items {
			return fmt.Errorf("%w: consumed %d items, want %d", ErrWrongOrder, len(r.res.Consumed), r.opts.Items)
		}
		for i, item := range r.res.Consumed {
			if item != i {
				return fmt.Errorf("%w: position %d holds item %d", ErrWrongOrder, i, item)
			}
		}
		if r.res.MaxInFlight > BufferSize {
			return fmt.Errorf("%w: %d items in flight", ErrOverflow, r.res.MaxInFlight)
		}
		races := r.res.Report.Races
		if racy && races == 0 {
			return fmt.Errorf("%w: no race reported for unsynchronized buffer", ErrRaces)
		}
		if !racy && races > 0 {
			return fmt.Errorf("%w: %d races", ErrRaces, races)
		}
		return nil
	}
}
