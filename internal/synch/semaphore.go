package synch

import (
	"github.com/kolkov/kernsync/internal/debug"
	"github.com/kolkov/kernsync/internal/machine"
	"github.com/kolkov/kernsync/internal/threads"
)

// Semaphore is a counting semaphore with a FIFO wait queue.
//
// Invariant, between operations: Waiting() == max(0, -Value()).
type Semaphore struct {
	env     Env
	name    string
	value   int
	waiters waitQueue
}

// NewSemaphore creates a semaphore holding initial units. A negative
// initial value is fatal.
func NewSemaphore(env Env, name string, initial int) *Semaphore {
	if initial < 0 {
		fatal("semaphore", name, "NewSemaphore", env.Scheduler.CurrentThread(), ErrNegativeValue)
	}
	return &Semaphore{env: env, name: name, value: initial}
}

// Name returns the debug name.
func (s *Semaphore) Name() string { return s.name }

// Value returns the counter. A negative value is minus the number of
// sleeping threads.
func (s *Semaphore) Value() int { return s.value }

// Waiting returns the number of threads asleep in P.
func (s *Semaphore) Waiting() int { return s.waiters.len() }

// P takes one unit, sleeping until a V grants one if none is available.
// When P returns after sleeping, the unit was already taken on the caller's
// behalf by the V that woke it.
func (s *Semaphore) P() {
	old := s.env.Interrupts.SetLevel(machine.IntOff)
	cur := s.env.Scheduler.CurrentThread()

	s.value--
	if s.value < 0 {
		if cur == threads.None {
			fatal("semaphore", s.name, "P", cur, ErrNoThread)
		}
		s.waiters.push(cur)
		s.env.Log.Printf(debug.Synch, "semaphore %q: thread %d waits, value %d", s.name, cur, s.value)
		s.env.Scheduler.Sleep()
	}
	s.env.acquire(s, cur)

	s.env.Interrupts.SetLevel(old)
}

// V returns one unit, readying the longest-waiting thread if any.
// V never blocks and may be called with interrupts already off.
func (s *Semaphore) V() {
	old := s.env.Interrupts.SetLevel(machine.IntOff)
	cur := s.env.Scheduler.CurrentThread()

	s.env.releaseMerge(s, cur)
	s.value++
	if s.value <= 0 {
		id, ok := s.waiters.pop()
		if !ok {
			fatal("semaphore", s.name, "V", cur, ErrInconsistent)
		}
		s.env.Log.Printf(debug.Synch, "semaphore %q: thread %d wakes thread %d", s.name, cur, id)
		s.env.Scheduler.ReadyToRun(id)
	}

	s.env.Interrupts.SetLevel(old)
}

// Destroy checks that the semaphore can be discarded: no thread may be
// waiting on it.
func (s *Semaphore) Destroy() {
	old := s.env.Interrupts.SetLevel(machine.IntOff)
	if s.waiters.len() > 0 {
		fatal("semaphore", s.name, "Destroy", s.env.Scheduler.CurrentThread(), ErrWaitersPending)
	}
	s.env.Interrupts.SetLevel(old)
}
