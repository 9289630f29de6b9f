package synch

import (
	"github.com/gammazero/deque"

	"github.com/kolkov/kernsync/internal/debug"
	"github.com/kolkov/kernsync/internal/machine"
	"github.com/kolkov/kernsync/internal/threads"
)

// Interrupts is the interrupt controller as seen by the primitives.
type Interrupts interface {
	// SetLevel changes the interrupt level and returns the previous one.
	SetLevel(now machine.Level) machine.Level
}

// Scheduler is the thread block/wake facility as seen by the primitives.
type Scheduler interface {
	// CurrentThread returns the running thread.
	CurrentThread() threads.ID

	// ReadyToRun makes a sleeping thread eligible to run. It does not switch
	// to it. Interrupts must be off.
	ReadyToRun(id threads.ID)

	// Sleep deschedules the running thread until a later ReadyToRun.
	// Interrupts must be off.
	Sleep()
}

// Tracker observes the happens-before edges the primitives create.
//
// Release/Acquire pairs order a lock's critical sections. ReleaseMerge is
// used where several releases may feed a single acquire (semaphore V,
// condition Signal).
type Tracker interface {
	OnAcquire(obj any, tid threads.ID)
	OnRelease(obj any, tid threads.ID)
	OnReleaseMerge(obj any, tid threads.ID)
}

// Env bundles the collaborators every primitive is constructed with.
// Interrupts and Scheduler are required; Tracker and Log may be nil.
type Env struct {
	Interrupts Interrupts
	Scheduler  Scheduler
	Tracker    Tracker
	Log        *debug.Logger
}

func (e *Env) acquire(obj any, tid threads.ID) {
	if e.Tracker != nil {
		e.Tracker.OnAcquire(obj, tid)
	}
}

func (e *Env) release(obj any, tid threads.ID) {
	if e.Tracker != nil {
		e.Tracker.OnRelease(obj, tid)
	}
}

func (e *Env) releaseMerge(obj any, tid threads.ID) {
	if e.Tracker != nil {
		e.Tracker.OnReleaseMerge(obj, tid)
	}
}

// waitQueue is a FIFO of sleeping threads. It holds handles only; the
// threads belong to the scheduler.
type waitQueue struct {
	q deque.Deque[threads.ID]
}

func (w *waitQueue) push(id threads.ID) {
	w.q.PushBack(id)
}

// pop removes the longest-waiting thread.
func (w *waitQueue) pop() (threads.ID, bool) {
	if w.q.Len() == 0 {
		return threads.None, false
	}
	return w.q.PopFront(), true
}

func (w *waitQueue) len() int {
	return w.q.Len()
}
