package kernel

import (
	"io"
	"os"

	"github.com/kolkov/kernsync/internal/debug"
	"github.com/kolkov/kernsync/internal/hb/detector"
	"github.com/kolkov/kernsync/internal/machine"
	"github.com/kolkov/kernsync/internal/synch"
	"github.com/kolkov/kernsync/internal/threads"
)

// Primitive and thread types, shared with the internal packages.
type (
	// ThreadID identifies a kernel thread. IDs start at 1.
	ThreadID = threads.ID

	// Semaphore is a counting semaphore with FIFO wakeup.
	Semaphore = synch.Semaphore

	// Lock is a mutual-exclusion lock owned by the thread that acquired it.
	Lock = synch.Lock

	// Condition is a Mesa-style condition variable.
	Condition = synch.Condition

	// RaceReport describes two unordered conflicting accesses.
	RaceReport = detector.RaceReport
)

// NoThread is the ThreadID returned outside a kernel thread.
const NoThread = threads.None

// Config controls how a Kernel is assembled.
type Config struct {
	// RandomSeed, when non-zero, arms the timer so threads are preempted at
	// pseudo-random interrupt-enable points. The same seed always yields the
	// same interleaving.
	RandomSeed int64

	// DebugFlags selects debug output: t (threads), i (interrupts),
	// s (synchronization), r (race checking), + (all).
	DebugFlags string

	// Output receives debug messages and race reports. Defaults to os.Stderr.
	Output io.Writer

	// RaceDetection enables the happens-before checker.
	RaceDetection bool
}

// Report summarizes a run.
type Report struct {
	threads.Report

	// Interrupts holds the interrupt controller statistics.
	Interrupts machine.Stats

	// Races is the number of distinct races found (always 0 without
	// RaceDetection).
	Races int
}

// Kernel is one simulated uniprocessor with its thread system.
//
// All methods except New, Run and the primitive constructors must be called
// from a running kernel thread.
type Kernel struct {
	cfg  Config
	log  *debug.Logger
	intr *machine.Interrupt
	sys  *threads.System
	det  *detector.Detector
	env  synch.Env
}

// New assembles a kernel according to cfg. The kernel does nothing until
// Run.
func New(cfg Config) *Kernel {
	if cfg.Output == nil {
		cfg.Output = os.Stderr
	}
	log := debug.New(cfg.Output, cfg.DebugFlags)
	intr := machine.NewInterrupt(log)
	sys := threads.NewSystem(intr, log)

	k := &Kernel{
		cfg:  cfg,
		log:  log,
		intr: intr,
		sys:  sys,
		env:  synch.Env{Interrupts: intr, Scheduler: sys, Log: log},
	}
	if cfg.RaceDetection {
		k.det = detector.New(cfg.Output, log)
		k.det.SetNamer(k.ThreadName)
		sys.SetForkHook(k.det.OnFork)
		k.env.Tracker = k.det
	}
	return k
}

// Fork creates a thread running entry(arg). It is placed at the tail of the
// ready list and runs once the caller yields, blocks or finishes.
func (k *Kernel) Fork(name string, entry func(arg int), arg int) ThreadID {
	return k.sys.Fork(name, entry, arg)
}

// Yield gives the CPU to the next ready thread, if any. The caller goes to
// the back of the ready list.
func (k *Kernel) Yield() {
	k.sys.Yield()
}

// CurrentThread returns the running thread, or NoThread outside Run.
func (k *Kernel) CurrentThread() ThreadID {
	return k.sys.CurrentThread()
}

// ThreadName returns the debug name of a thread, or "" if it is unknown.
func (k *Kernel) ThreadName(id ThreadID) string {
	if t := k.sys.Thread(id); t != nil {
		return t.Name()
	}
	return ""
}

// NewSemaphore creates a semaphore with the given initial value.
func (k *Kernel) NewSemaphore(name string, initial int) *Semaphore {
	return synch.NewSemaphore(k.env, name, initial)
}

// NewLock creates a free lock.
func (k *Kernel) NewLock(name string) *Lock {
	return synch.NewLock(k.env, name)
}

// NewCondition creates a condition variable with no waiters.
func (k *Kernel) NewCondition(name string) *Condition {
	return synch.NewCondition(k.env, name)
}

// RaceRead records that the running thread reads the variable named by addr.
// addr is any comparable value, typically a pointer to the variable. It is
// a no-op without RaceDetection.
//
//nolint:revive // RaceRead naming matches Go's race detector API
func (k *Kernel) RaceRead(addr any) {
	if k.det != nil {
		k.det.OnRead(addr, k.sys.CurrentThread())
	}
}

// RaceWrite records that the running thread writes the variable named by
// addr. It is a no-op without RaceDetection.
//
//nolint:revive // RaceWrite naming matches Go's race detector API
func (k *Kernel) RaceWrite(addr any) {
	if k.det != nil {
		k.det.OnWrite(addr, k.sys.CurrentThread())
	}
}

// Races returns the races found so far.
func (k *Kernel) Races() []*RaceReport {
	if k.det == nil {
		return nil
	}
	return k.det.Races()
}

// Debugf prints a debug message under flag (see Config.DebugFlags).
func (k *Kernel) Debugf(flag byte, format string, args ...any) {
	k.log.Printf(flag, format, args...)
}

// Run boots the kernel with a main thread running entry and returns when no
// thread can make progress. The error is the first fatal error raised by
// any thread. Run may be called only once per Kernel.
func (k *Kernel) Run(name string, entry func()) (Report, error) {
	if k.cfg.RandomSeed != 0 {
		k.intr.StartTimer(k.cfg.RandomSeed, k.sys.Yield)
	}
	tr, err := k.sys.Run(name, entry)
	r := Report{Report: tr, Interrupts: k.intr.Stats()}
	if k.det != nil {
		r.Races = k.det.RacesDetected()
	}
	return r, err
}
