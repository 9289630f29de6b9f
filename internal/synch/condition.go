package synch

import (
	"github.com/kolkov/kernsync/internal/debug"
	"github.com/kolkov/kernsync/internal/machine"
	"github.com/kolkov/kernsync/internal/threads"
)

// Condition is a Mesa-style condition variable. It is not bound to a lock;
// every call names the lock protecting the shared state.
type Condition struct {
	env     Env
	name    string
	waiters waitQueue
}

// NewCondition creates a condition with no waiters.
func NewCondition(env Env, name string) *Condition {
	return &Condition{env: env, name: name}
}

// Name returns the debug name.
func (c *Condition) Name() string { return c.name }

// Waiting returns the number of threads asleep in Wait.
func (c *Condition) Waiting() int { return c.waiters.len() }

// Wait releases lock, sleeps until signalled and re-acquires lock before
// returning. The caller must hold lock.
//
// Enqueueing, releasing and going to sleep happen in one atomic section, so
// a Signal issued by the next owner of lock cannot be missed.
func (c *Condition) Wait(lock *Lock) {
	old := c.env.Interrupts.SetLevel(machine.IntOff)
	cur := c.env.Scheduler.CurrentThread()

	if lock == nil || cur == threads.None || lock.owner != cur {
		fatal("condition", c.name, "Wait", cur, ErrWaitNotHeld)
	}
	c.waiters.push(cur)
	c.env.Log.Printf(debug.Synch, "condition %q: thread %d waits, releasing %q", c.name, cur, lock.name)

	lock.Release()
	c.env.Scheduler.Sleep()
	c.env.acquire(c, cur)
	lock.Acquire()

	c.env.Interrupts.SetLevel(old)
}

// Signal readies the longest-waiting thread, if any. A signal with no
// waiters is lost. lock identifies the protected state and is not touched;
// by convention the caller holds it.
func (c *Condition) Signal(lock *Lock) {
	old := c.env.Interrupts.SetLevel(machine.IntOff)
	cur := c.env.Scheduler.CurrentThread()

	if id, ok := c.waiters.pop(); ok {
		c.wake(cur, id)
	}

	c.env.Interrupts.SetLevel(old)
}

// Broadcast readies every waiting thread in FIFO order. Each of them
// re-acquires lock in turn before its Wait returns.
func (c *Condition) Broadcast(lock *Lock) {
	old := c.env.Interrupts.SetLevel(machine.IntOff)
	cur := c.env.Scheduler.CurrentThread()

	for id, ok := c.waiters.pop(); ok; id, ok = c.waiters.pop() {
		c.wake(cur, id)
	}

	c.env.Interrupts.SetLevel(old)
}

func (c *Condition) wake(cur, id threads.ID) {
	c.env.releaseMerge(c, cur)
	c.env.Log.Printf(debug.Synch, "condition %q: thread %d wakes thread %d", c.name, cur, id)
	c.env.Scheduler.ReadyToRun(id)
}

// Destroy checks that the condition can be discarded: no thread may be
// waiting on it.
func (c *Condition) Destroy() {
	old := c.env.Interrupts.SetLevel(machine.IntOff)
	if c.waiters.len() > 0 {
		fatal("condition", c.name, "Destroy", c.env.Scheduler.CurrentThread(), ErrWaitersPending)
	}
	c.env.Interrupts.SetLevel(old)
}
