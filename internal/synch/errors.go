package synch

import (
	"errors"
	"fmt"

	"github.com/kolkov/kernsync/internal/threads"
)

// Fatal conditions. A primitive panics with a *SyncError wrapping one of
// these; use errors.Is to tell them apart.
var (
	// ErrReentrant: Acquire by the thread that already owns the lock.
	ErrReentrant = errors.New("lock already held by the calling thread")

	// ErrNotHeld: Release of a free lock.
	ErrNotHeld = errors.New("lock is not held")

	// ErrNotOwner: Release by a thread other than the owner.
	ErrNotOwner = errors.New("lock is held by another thread")

	// ErrWaitNotHeld: Wait without holding the lock passed to it.
	ErrWaitNotHeld = errors.New("wait without holding the lock")

	// ErrWaitersPending: Destroy while threads are queued.
	ErrWaitersPending = errors.New("threads are still waiting")

	// ErrLockHeld: Destroy of a lock that is still owned.
	ErrLockHeld = errors.New("lock is still held")

	// ErrNegativeValue: semaphore created with a negative value.
	ErrNegativeValue = errors.New("negative initial value")

	// ErrNoThread: a blocking operation called outside a kernel thread.
	ErrNoThread = errors.New("no current thread")

	// ErrInconsistent: the primitive's own bookkeeping is broken.
	ErrInconsistent = errors.New("internal inconsistency")
)

// SyncError describes a fatal misuse of a primitive.
//
// Example:
//
//	lock "buffer": Release by thread 3: lock is held by another thread
type SyncError struct {
	Primitive string     // "semaphore", "lock" or "condition"
	Name      string     // Debug name given at construction
	Op        string     // Operation that failed
	Thread    threads.ID // Calling thread (None outside a thread)
	Err       error      // One of the Err* values
}

// Error implements the error interface.
func (e *SyncError) Error() string {
	return fmt.Sprintf("%s %q: %s by thread %d: %v", e.Primitive, e.Name, e.Op, e.Thread, e.Err)
}

// Unwrap returns the underlying Err* value.
func (e *SyncError) Unwrap() error {
	return e.Err
}

// fatal raises err. Interrupts are left off: the kernel halts on the panic
// and no other thread may run with the primitive's state torn.
func fatal(primitive, name, op string, tid threads.ID, err error) {
	panic(&SyncError{
		Primitive: primitive,
		Name:      name,
		Op:        op,
		Thread:    tid,
		Err:       err,
	})
}
