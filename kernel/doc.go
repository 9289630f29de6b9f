// Package kernel provides a simulated uniprocessor kernel with the classic
// synchronization primitives: counting semaphores, locks and Mesa-style
// condition variables.
//
// Kernel threads run one at a time on the simulated CPU. A thread keeps the
// CPU until it yields, blocks in a primitive or finishes. Atomic sections
// inside the primitives are built by masking interrupts, exactly as on a
// single-processor teaching kernel.
//
// # Quick Start
//
//	k := kernel.New(kernel.Config{})
//	mutex := k.NewLock("mutex")
//	counter := 0
//
//	report, err := k.Run("main", func() {
//		for i := 0; i < 3; i++ {
//			k.Fork("worker", func(int) {
//				mutex.Acquire()
//				counter++
//				mutex.Release()
//			}, i)
//		}
//	})
//
// Run returns when no thread can run any more. Threads that are still
// blocked at that point are listed in Report.Blocked.
//
// # API Overview
//
//   - Threads: [Kernel.Fork], [Kernel.Yield], [Kernel.CurrentThread]
//   - Primitives: [Kernel.NewSemaphore], [Kernel.NewLock], [Kernel.NewCondition]
//   - Happens-before checking: [Config.RaceDetection], [Kernel.RaceRead],
//     [Kernel.RaceWrite]
//   - Version information: [GetInfo], [Version]
//
// # Condition Variables
//
// Conditions have Mesa semantics: a woken waiter re-acquires the lock after
// the signaller releases it, and another thread may change the state in
// between. Always wait in a loop:
//
//	lock.Acquire()
//	for !ready {
//		cond.Wait(lock)
//	}
//	lock.Release()
//
// # Preemption
//
// Scheduling is cooperative by default. Setting [Config.RandomSeed] arms a
// simulated timer that yields the running thread at pseudo-random
// interrupt-enable points. Runs with the same seed interleave identically.
//
// # Fatal Errors
//
// Misuse of a primitive (releasing a lock the thread does not hold, waiting
// on a condition without its lock, acquiring a lock twice) halts the whole
// machine. Run returns the error, which wraps one of the Err values of this
// package and can be inspected with errors.Is and errors.As.
//
// # Happens-before Checking
//
// With [Config.RaceDetection] set, every primitive feeds a vector-clock
// checker. Threads annotate shared data with [Kernel.RaceRead] and
// [Kernel.RaceWrite]; two accesses not ordered by the primitives, where at
// least one is a write, are reported even if the current schedule happened
// to keep them apart.
package kernel
