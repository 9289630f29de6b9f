// Package threads implements kernel threads and a cooperative uniprocessor
// scheduler on top of goroutines.
//
// Exactly one kernel thread executes at any time. A context switch hands the
// CPU to the next thread with a send on its wake channel and parks the
// switching goroutine on its own channel, so all kernel state is touched by
// one goroutine at a time and every switch is a happens-before edge.
//
// Threads switch only when they yield, block in Sleep, or finish. When the
// interrupt controller has a timer armed, the timer handler yields the
// running thread at interrupt-enable points, which is the only form of
// preemption the system supports.
//
// Scheduler rules, checked with assertions:
//   - Sleep and ReadyToRun require interrupts to be off.
//   - Yield requires interrupts to be on.
//   - A thread is never put on the ready list twice.
//
// A panic in any thread halts the machine: every parked goroutine exits and
// Run returns the panic value as its error.
package threads

import (
	"fmt"
	"runtime"
	"sync"

	"github.com/gammazero/deque"

	"github.com/kolkov/kernsync/internal/debug"
	"github.com/kolkov/kernsync/internal/machine"
)

// Report summarizes a completed run.
type Report struct {
	Threads  int      // Threads created.
	Finished []string // Threads that returned, in creation order.
	Blocked  []string // Threads still asleep when the machine halted.
	Switches uint64   // Context switches performed.
	Ticks    uint64   // Simulated time at halt.
}

// Deadlocked reports whether the machine halted with sleeping threads.
func (r Report) Deadlocked() bool {
	return len(r.Blocked) > 0
}

// System owns the thread table, the ready list and the running thread.
//
// Thread Safety: the exported methods other than Run must be called from a
// running kernel thread, or before Run. The kernel never runs two threads at
// once, so System needs no locking of its own.
type System struct {
	intr   *machine.Interrupt
	log    *debug.Logger
	onFork func(parent, child ID)

	table  map[ID]*Thread
	order  []*Thread
	nextID ID

	ready    deque.Deque[*Thread]
	current  *Thread
	switches uint64

	started  bool
	halt     chan struct{}
	haltOnce sync.Once
	wg       sync.WaitGroup
	fatal    error
}

// NewSystem creates an idle system on the given interrupt controller.
func NewSystem(intr *machine.Interrupt, log *debug.Logger) *System {
	return &System{
		intr:   intr,
		log:    log,
		table:  make(map[ID]*Thread),
		nextID: 1,
		halt:   make(chan struct{}),
	}
}

// SetForkHook registers fn to be called for every Fork with the forking
// thread (None outside a thread) and the new thread.
func (s *System) SetForkHook(fn func(parent, child ID)) {
	s.onFork = fn
}

// Fork creates a thread that will run entry(arg) and puts it on the ready
// list. The new thread starts with interrupts enabled; it does not run until
// the caller yields, blocks or finishes.
func (s *System) Fork(name string, entry func(arg int), arg int) ID {
	old := s.intr.SetLevel(machine.IntOff)
	defer s.intr.SetLevel(old)

	t := newThread(s.nextID, name)
	s.nextID++
	s.table[t.id] = t
	s.order = append(s.order, t)

	if s.onFork != nil {
		s.onFork(s.CurrentThread(), t.id)
	}
	s.log.Printf(debug.Threads, "forking thread %s", t)

	s.wg.Add(1)
	go s.threadRoot(t, entry, arg)

	s.readyToRun(t)
	return t.id
}

// threadRoot is the body of every thread goroutine.
func (s *System) threadRoot(t *Thread, entry func(arg int), arg int) {
	defer s.wg.Done()
	defer s.recoverFatal(t)

	if !s.park(t) {
		return
	}
	s.intr.Enable()
	entry(arg)
	s.finish()
}

// recoverFatal turns a panic in t into the machine's fatal error.
func (s *System) recoverFatal(t *Thread) {
	r := recover()
	if r == nil {
		return
	}
	err, ok := r.(error)
	if !ok {
		err = fmt.Errorf("%v", r)
	}
	s.log.Printf(debug.Threads, "thread %s: fatal: %v", t, err)
	if s.fatal == nil {
		s.fatal = fmt.Errorf("thread %s: %w", t.name, err)
	}
	s.stop()
}

// Run boots the machine: it forks the main thread with entry, dispatches the
// first ready thread and waits until no thread can run. Threads forked
// before Run are dispatched ahead of the main thread, in fork order.
//
// The returned error is the first fatal panic raised by any thread, or nil.
// Run must not be called from a kernel thread and only once per System.
func (s *System) Run(name string, entry func()) (Report, error) {
	if s.started {
		return Report{}, ErrAlreadyRunning
	}
	s.started = true

	s.Fork(name, func(int) { entry() }, 0)

	s.intr.SetLevel(machine.IntOff)
	first := s.findNextToRun()
	s.current = first
	first.status = Running
	s.log.Printf(debug.Threads, "booting with thread %s", first)
	first.wake <- struct{}{}

	<-s.halt
	s.wg.Wait()
	s.current = nil

	return s.report(), s.fatal
}

// report is only valid once every thread goroutine has exited.
func (s *System) report() Report {
	r := Report{
		Threads:  len(s.order),
		Switches: s.switches,
		Ticks:    s.intr.Stats().TotalTicks,
	}
	for _, t := range s.order {
		switch t.status {
		case Finished:
			r.Finished = append(r.Finished, t.name)
		case Blocked:
			r.Blocked = append(r.Blocked, t.name)
		}
	}
	return r
}

// CurrentThread returns the running thread, or None before Run.
func (s *System) CurrentThread() ID {
	if s.current == nil {
		return None
	}
	return s.current.id
}

// Thread looks up a thread by handle. It returns nil for unknown IDs.
func (s *System) Thread(id ID) *Thread {
	return s.table[id]
}

// ReadyToRun marks a thread eligible to run by appending it to the ready
// list. It does not switch to it. Interrupts must be off.
func (s *System) ReadyToRun(id ID) {
	s.assert(s.intr.Level() == machine.IntOff, "ReadyToRun with interrupts on")
	t := s.table[id]
	s.assert(t != nil, "ReadyToRun of unknown thread %d", id)
	s.readyToRun(t)
}

func (s *System) readyToRun(t *Thread) {
	s.assert(t.status != Ready, "thread %s is already on the ready list", t)
	s.assert(t.status != Finished, "thread %s has finished", t)
	s.log.Printf(debug.Threads, "putting thread %s on ready list", t)
	t.status = Ready
	s.ready.PushBack(t)
}

func (s *System) findNextToRun() *Thread {
	if s.ready.Len() == 0 {
		return nil
	}
	return s.ready.PopFront()
}

// Yield gives up the CPU if another thread is ready; the caller goes to the
// back of the ready list. Interrupts must be on.
func (s *System) Yield() {
	cur := s.current
	if cur == nil {
		return
	}
	s.assert(s.intr.Level() == machine.IntOn, "Yield with interrupts off")

	old := s.intr.SetLevel(machine.IntOff)
	if next := s.findNextToRun(); next != nil {
		s.log.Printf(debug.Threads, "yielding thread %s", cur)
		s.readyToRun(cur)
		s.switchTo(cur, next, false)
	}
	s.intr.SetLevel(old)
}

// Sleep blocks the running thread until another thread passes its ID to
// ReadyToRun. Interrupts must be off; the caller restores its own level
// after Sleep returns.
//
// If no other thread is ready the machine halts and the sleeping thread
// never resumes.
func (s *System) Sleep() {
	cur := s.current
	s.assert(s.intr.Level() == machine.IntOff, "Sleep with interrupts on")
	s.log.Printf(debug.Threads, "sleeping thread %s", cur)

	cur.status = Blocked
	next := s.findNextToRun()
	if next == nil {
		s.idle()
		s.block(cur)
		return
	}
	s.switchTo(cur, next, false)
}

// finish retires the running thread after its entry function returns.
func (s *System) finish() {
	s.intr.SetLevel(machine.IntOff)
	cur := s.current
	s.log.Printf(debug.Threads, "finishing thread %s", cur)

	cur.status = Finished
	next := s.findNextToRun()
	if next == nil {
		s.idle()
		return
	}
	s.switchTo(cur, next, true)
}

// switchTo hands the CPU from cur to next. Unless cur is finishing, it
// returns once some thread switches back to cur.
//
// Nothing shared may be read after the send on next.wake: from that point
// next owns the machine.
func (s *System) switchTo(cur, next *Thread, finishing bool) {
	s.switches++
	s.current = next
	next.status = Running
	s.log.Printf(debug.Threads, "switching from %s to %s", cur, next)
	next.wake <- struct{}{}

	if finishing {
		return
	}
	s.block(cur)
}

// park waits until t is given the CPU. It returns false if the machine
// halted instead.
func (s *System) park(t *Thread) bool {
	select {
	case <-t.wake:
		return true
	case <-s.halt:
		return false
	}
}

// block parks t and unwinds its goroutine if the machine halts meanwhile.
func (s *System) block(t *Thread) {
	if !s.park(t) {
		runtime.Goexit()
	}
}

// idle is reached when the running thread stops and nothing is ready.
// With no devices to wait for, the machine halts.
func (s *System) idle() {
	s.log.Printf(debug.Threads, "no threads ready or runnable, halting")
	s.stop()
}

func (s *System) stop() {
	s.haltOnce.Do(func() { close(s.halt) })
}
