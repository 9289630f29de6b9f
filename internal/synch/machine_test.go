package synch

import (
	"github.com/kolkov/kernsync/internal/machine"
	"github.com/kolkov/kernsync/internal/threads"
)

// testMachine is a simulated uniprocessor for tests that need threads to
// really block and resume.
type testMachine struct {
	intr *machine.Interrupt
	sys  *threads.System
	env  Env
}

func newMachine() *testMachine {
	intr := machine.NewInterrupt(nil)
	sys := threads.NewSystem(intr, nil)
	return &testMachine{
		intr: intr,
		sys:  sys,
		env:  Env{Interrupts: intr, Scheduler: sys},
	}
}

// newPreemptiveMachine arms the timer so threads are switched at
// interrupt-enable points without yielding.
func newPreemptiveMachine(seed int64) *testMachine {
	m := newMachine()
	m.intr.StartTimer(seed, m.sys.Yield)
	return m
}
