package synch

import (
	"github.com/kolkov/kernsync/internal/debug"
	"github.com/kolkov/kernsync/internal/machine"
	"github.com/kolkov/kernsync/internal/threads"
)

// Lock is a mutual-exclusion lock that records its owner.
//
// The owner is None exactly when the lock is free. Acquire by the owner and
// Release by anyone but the owner are fatal.
type Lock struct {
	env     Env
	name    string
	owner   threads.ID
	waiters waitQueue
}

// NewLock creates a free lock.
func NewLock(env Env, name string) *Lock {
	return &Lock{env: env, name: name}
}

// Name returns the debug name.
func (l *Lock) Name() string { return l.name }

// Owner returns the owning thread, or None if the lock is free.
func (l *Lock) Owner() threads.ID { return l.owner }

// Waiting returns the number of threads asleep in Acquire.
func (l *Lock) Waiting() int { return l.waiters.len() }

// IsHeldByCurrentThread reports whether the running thread owns the lock.
func (l *Lock) IsHeldByCurrentThread() bool {
	return l.owner != threads.None && l.owner == l.env.Scheduler.CurrentThread()
}

// Acquire takes the lock, sleeping until it is handed over if another
// thread owns it. It must be called from a kernel thread even when the lock
// is free, since the caller becomes the owner.
func (l *Lock) Acquire() {
	old := l.env.Interrupts.SetLevel(machine.IntOff)
	cur := l.env.Scheduler.CurrentThread()

	switch {
	case cur == threads.None:
		fatal("lock", l.name, "Acquire", cur, ErrNoThread)
	case l.owner == cur:
		fatal("lock", l.name, "Acquire", cur, ErrReentrant)
	case l.owner == threads.None:
		l.owner = cur
	default:
		l.waiters.push(cur)
		l.env.Log.Printf(debug.Synch, "lock %q: thread %d waits for thread %d", l.name, cur, l.owner)
		l.env.Scheduler.Sleep()
		// Release made us the owner before readying us.
		if l.owner != cur {
			fatal("lock", l.name, "Acquire", cur, ErrInconsistent)
		}
	}
	l.env.acquire(l, cur)

	l.env.Interrupts.SetLevel(old)
}

// Release gives up the lock. If threads are waiting, ownership passes to
// the longest-waiting one, which is made ready.
func (l *Lock) Release() {
	old := l.env.Interrupts.SetLevel(machine.IntOff)
	cur := l.env.Scheduler.CurrentThread()

	switch l.owner {
	case threads.None:
		fatal("lock", l.name, "Release", cur, ErrNotHeld)
	case cur:
	default:
		fatal("lock", l.name, "Release", cur, ErrNotOwner)
	}
	l.env.release(l, cur)
	l.handOff(cur)

	l.env.Interrupts.SetLevel(old)
}

// handOff passes the lock to the next waiter or frees it.
// Interrupts must be off.
func (l *Lock) handOff(cur threads.ID) {
	next, ok := l.waiters.pop()
	if !ok {
		l.owner = threads.None
		return
	}
	l.owner = next
	l.env.Log.Printf(debug.Synch, "lock %q: thread %d hands over to thread %d", l.name, cur, next)
	l.env.Scheduler.ReadyToRun(next)
}

// Destroy checks that the lock can be discarded: it must be free with no
// waiters.
func (l *Lock) Destroy() {
	old := l.env.Interrupts.SetLevel(machine.IntOff)
	cur := l.env.Scheduler.CurrentThread()
	if l.owner != threads.None {
		fatal("lock", l.name, "Destroy", cur, ErrLockHeld)
	}
	if l.waiters.len() > 0 {
		fatal("lock", l.name, "Destroy", cur, ErrWaitersPending)
	}
	l.env.Interrupts.SetLevel(old)
}
