// Package machine simulates the interrupt controller of a uniprocessor.
//
// The only hardware facility the kernel relies on is the ability to turn
// interrupt delivery off and back on. While interrupts are off the running
// thread cannot be switched away, which is what every synchronization
// primitive uses to build its atomic sections.
//
// Simulated time advances each time interrupts go from off to on. When a
// timer is armed (see StartTimer) its handler runs at those points, which
// gives seeded, reproducible preemption at interrupt-enable boundaries only.
package machine

import (
	"math/rand/v2"

	"github.com/kolkov/kernsync/internal/debug"
)

// Level is the interrupt delivery state.
type Level int

const (
	// IntOff masks interrupts: the running thread keeps the CPU.
	IntOff Level = iota
	// IntOn allows interrupts (and timer preemption) to be delivered.
	IntOn
)

// String returns "off" or "on".
func (l Level) String() string {
	switch l {
	case IntOff:
		return "off"
	case IntOn:
		return "on"
	default:
		return "invalid"
	}
}

const (
	// SystemTick is how far simulated time advances on every re-enable.
	SystemTick = 10

	// TimerTicks is the mean delay between timer interrupts.
	TimerTicks = 100
)

// Stats counts interrupt controller activity.
type Stats struct {
	TotalTicks      uint64 // Simulated time.
	Disables        uint64 // Transitions from on to off.
	TimerInterrupts uint64 // Timer expirations delivered.
}

// Interrupt is the simulated interrupt controller.
//
// It is not safe for concurrent use. The kernel guarantees a single running
// thread, and every thread switch is a channel handoff, so accesses from
// different goroutines are already ordered.
type Interrupt struct {
	level Level
	stats Stats
	timer *timer
	log   *debug.Logger
}

// timer fires at pseudo-random intervals drawn from a seeded source.
type timer struct {
	rng     *rand.Rand
	when    uint64
	handler func()
}

// NewInterrupt returns a controller with interrupts enabled and no timer.
func NewInterrupt(log *debug.Logger) *Interrupt {
	return &Interrupt{level: IntOn, log: log}
}

// SetLevel changes the interrupt level and returns the previous one.
//
// Callers build atomic sections with it and must restore the returned level
// rather than unconditionally enabling:
//
//	old := intr.SetLevel(machine.IntOff)
//	defer intr.SetLevel(old)
//
// Turning interrupts back on advances simulated time and may run the timer
// handler, so it can switch threads.
func (i *Interrupt) SetLevel(now Level) Level {
	old := i.level
	i.level = now
	if old == IntOn && now == IntOff {
		i.stats.Disables++
	}
	i.log.Printf(debug.Interrupts, "interrupts: %v -> %v", old, now)
	if old == IntOff && now == IntOn {
		i.oneTick()
	}
	return old
}

// Enable turns interrupts on.
func (i *Interrupt) Enable() {
	i.SetLevel(IntOn)
}

// Level returns the current interrupt level.
func (i *Interrupt) Level() Level {
	return i.level
}

// Stats returns a snapshot of the controller statistics.
func (i *Interrupt) Stats() Stats {
	return i.stats
}

// StartTimer arms a timer seeded with seed. Whenever it expires, handler is
// called with interrupts on; the kernel uses it to yield the running thread.
func (i *Interrupt) StartTimer(seed int64, handler func()) {
	//nolint:gosec // G404: reproducible simulation, not security sensitive
	t := &timer{
		rng:     rand.New(rand.NewPCG(uint64(seed), uint64(seed)>>32|1)),
		handler: handler,
	}
	t.schedule(i.stats.TotalTicks)
	i.timer = t
}

// oneTick advances simulated time and delivers a due timer interrupt.
func (i *Interrupt) oneTick() {
	i.stats.TotalTicks += SystemTick
	t := i.timer
	if t == nil || i.stats.TotalTicks < t.when {
		return
	}
	i.stats.TimerInterrupts++
	t.schedule(i.stats.TotalTicks)
	i.log.Printf(debug.Interrupts, "timer interrupt at tick %d", i.stats.TotalTicks)
	t.handler()
}

// schedule picks the next expiry in (now, now+2*TimerTicks].
func (t *timer) schedule(now uint64) {
	t.when = now + 1 + t.rng.Uint64N(2*TimerTicks)
}
