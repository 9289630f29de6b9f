// Package synch implements the synchronization primitives of the kernel:
// counting semaphores, locks and condition variables.
//
// All three are built on a single hardware facility, masking interrupts, and
// on the scheduler's ability to put the running thread to sleep and to make a
// sleeping thread ready again. Both are injected through Env, so the
// primitives can run on the simulated machine or on a test double.
//
// Atomic sections:
//
// Every public operation masks interrupts on entry and restores the level
// that was in effect before the call on exit. The only suspension point
// inside a masked region is the explicit Sleep. Sleeping with interrupts off
// is safe because the switch hands the CPU to a thread that restores its own
// level, and the sleeper restores its level when it resumes.
//
// Semaphore:
//
//	P():  value--; if value < 0 { enqueue; sleep }
//	V():  value++; if value <= 0 { wake head of queue }
//
// The decrement is eager, so a negative value counts the sleeping threads and
// a woken thread has already been granted its unit; it never re-checks.
//
// Lock:
//
// A Lock records its owner. Release hands ownership straight to the first
// waiter before readying it, so a woken thread owns the lock when Acquire
// returns and cannot lose it to a thread that ran in between.
//
// Condition:
//
// Conditions are Mesa-style and take the protecting Lock on every call.
// Wait enqueues the caller, releases the lock, sleeps and re-acquires the
// lock before returning. Signal and Broadcast only make waiters ready, so a
// waiter must re-check its predicate:
//
//	lock.Acquire()
//	for !predicate() {
//		cond.Wait(lock)
//	}
//	// predicate holds and lock is held
//	lock.Release()
//
// Errors:
//
// Misuse (re-entrant Acquire, Release by a thread that does not own the lock,
// Wait without the lock, destroying a primitive with waiters) and internal
// inconsistencies are fatal. The operation panics with a *SyncError wrapping
// one of the Err* values; the kernel halts and reports it.
package synch
