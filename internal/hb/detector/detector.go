// Package detector implements a FastTrack-style happens-before checker for
// kernel threads.
//
// The detector observes three kinds of events:
//   - Fork: the child thread starts knowing everything its parent knew
//   - Acquire and Release on semaphores, locks and condition variables,
//     which carry vector clocks from releasers to acquirers
//   - Read and Write of shared variables annotated by the program
//
// Two accesses to the same variable race when at least one is a write and
// neither happens before the other. Thread switches by themselves create
// no ordering: a program that is correct only because of the current
// schedule is reported, since a different interleaving (for example with
// timer preemption) could break it.
//
// The detector implements synch.Tracker, so it plugs straight into the
// synchronization primitives.
package detector

import (
	"io"
	"sync"

	"github.com/kolkov/kernsync/internal/debug"
	"github.com/kolkov/kernsync/internal/hb/epoch"
	"github.com/kolkov/kernsync/internal/hb/syncshadow"
	"github.com/kolkov/kernsync/internal/hb/vectorclock"
	"github.com/kolkov/kernsync/internal/threads"
)

// Detector is the happens-before checker state.
//
// Thread Safety: All methods are safe for concurrent calls. In practice
// only the running kernel thread calls into the detector, and the mutex
// only guards against the host goroutine reading results after Run.
type Detector struct {
	mu sync.Mutex

	// clocks holds each kernel thread's vector clock.
	clocks map[threads.ID]*vectorclock.VectorClock

	// vars holds the shadow state of annotated variables.
	vars map[any]*varState

	// syncShadow holds release clocks of synchronization objects.
	syncShadow *syncshadow.SyncShadow

	// races holds every distinct race found, in detection order.
	races []*RaceReport

	// reported is the set of deduplication keys already reported.
	reported map[string]bool

	out   io.Writer
	log   *debug.Logger
	names func(threads.ID) string
}

// varState is the shadow state of one variable.
//
// The last read is kept as a single epoch while reads are totally ordered
// and promoted to a full read clock once two reads are concurrent.
type varState struct {
	w     epoch.Epoch
	r     epoch.Epoch
	reads *vectorclock.VectorClock
}

// New creates a detector. Each new race is written to out as soon as it is
// found; out may be nil to only collect them.
func New(out io.Writer, log *debug.Logger) *Detector {
	return &Detector{
		clocks:     make(map[threads.ID]*vectorclock.VectorClock),
		vars:       make(map[any]*varState),
		syncShadow: syncshadow.New(),
		reported:   make(map[string]bool),
		out:        out,
		log:        log,
	}
}

// SetNamer sets the function used to name threads in race reports.
func (d *Detector) SetNamer(fn func(threads.ID) string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.names = fn
}

// OnFork records that parent created child. Everything parent did so far
// happens before anything child does.
//
// A parent of threads.None marks a thread created by the host, such as the
// main kernel thread.
func (d *Detector) OnFork(parent, child threads.ID) {
	d.mu.Lock()
	defer d.mu.Unlock()

	c := vectorclock.New()
	if parent != threads.None {
		pc := d.clock(parent)
		c.Join(pc)
		pc.Increment(parent)
	}
	c.Increment(child)
	d.clocks[child] = c
	d.log.Printf(debug.Race, "hb: fork %d -> %d %v", parent, child, c)
}

// OnAcquire joins the release clock of obj into tid's clock.
//
// Algorithm: FastTrack [FT ACQUIRE], Ct := Ct ⊔ Lm.
func (d *Detector) OnAcquire(obj any, tid threads.ID) {
	if tid == threads.None {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	c := d.clock(tid)
	if rc := d.syncShadow.GetOrCreate(obj).GetReleaseClock(); rc != nil {
		c.Join(rc)
	}
	c.Increment(tid)
}

// OnRelease replaces the release clock of obj with tid's clock.
//
// Algorithm: FastTrack [FT RELEASE], Lm := Ct.
func (d *Detector) OnRelease(obj any, tid threads.ID) {
	if tid == threads.None {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	c := d.clock(tid)
	d.syncShadow.GetOrCreate(obj).SetReleaseClock(c)
	c.Increment(tid)
}

// OnReleaseMerge joins tid's clock into the release clock of obj.
//
// Algorithm: Lm := Lm ⊔ Ct.
func (d *Detector) OnReleaseMerge(obj any, tid threads.ID) {
	if tid == threads.None {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	c := d.clock(tid)
	d.syncShadow.GetOrCreate(obj).MergeReleaseClock(c)
	c.Increment(tid)
}

// OnRead records a read of the variable identified by addr.
//
// addr is any comparable value naming the variable: a pointer to it, or a
// descriptive string such as "buffer[3]".
func (d *Detector) OnRead(addr any, tid threads.ID) {
	if tid == threads.None {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	c := d.clock(tid)
	cur := epoch.New(tid, c.Get(tid))
	vs := d.shadow(addr)

	// Same epoch: already recorded.
	if vs.reads == nil && vs.r == cur {
		return
	}

	if !vs.w.HappensBefore(c) {
		d.report(RaceTypeWriteRead, addr, vs.w, cur)
		return
	}

	switch {
	case vs.reads != nil:
		vs.reads.Set(tid, c.Get(tid))
	case vs.r == 0 || vs.r.TID() == tid || vs.r.HappensBefore(c):
		vs.r = cur
	default:
		// Concurrent readers: promote to a read clock.
		vs.reads = vectorclock.New()
		prevTID, prevClock := vs.r.Decode()
		vs.reads.Set(prevTID, prevClock)
		vs.reads.Set(tid, c.Get(tid))
		vs.r = 0
	}
}

// OnWrite records a write of the variable identified by addr.
func (d *Detector) OnWrite(addr any, tid threads.ID) {
	if tid == threads.None {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	c := d.clock(tid)
	cur := epoch.New(tid, c.Get(tid))
	vs := d.shadow(addr)

	if vs.w == cur {
		return
	}

	if !vs.w.HappensBefore(c) {
		d.report(RaceTypeWriteWrite, addr, vs.w, cur)
		return
	}

	if vs.reads != nil {
		if !vs.reads.LessOrEqual(c) {
			d.report(RaceTypeReadWrite, addr, d.concurrentRead(vs.reads, c), cur)
			return
		}
	} else if !vs.r.HappensBefore(c) {
		d.report(RaceTypeReadWrite, addr, vs.r, cur)
		return
	}

	vs.w = cur
	vs.r = 0
	vs.reads = nil
}

// RacesDetected returns the number of distinct races found.
func (d *Detector) RacesDetected() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.races)
}

// Races returns the distinct races found, in detection order.
func (d *Detector) Races() []*RaceReport {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*RaceReport(nil), d.races...)
}

// Clock returns a copy of tid's vector clock.
func (d *Detector) Clock(tid threads.ID) *vectorclock.VectorClock {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.clock(tid).Clone()
}

// Reset forgets all threads, variables and races.
func (d *Detector) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.clocks = make(map[threads.ID]*vectorclock.VectorClock)
	d.vars = make(map[any]*varState)
	d.syncShadow.Reset()
	d.races = nil
	d.reported = make(map[string]bool)
}

// clock returns tid's clock, creating it for threads never seen in a fork.
// Caller must hold d.mu.
func (d *Detector) clock(tid threads.ID) *vectorclock.VectorClock {
	c, ok := d.clocks[tid]
	if !ok {
		c = vectorclock.New()
		c.Increment(tid)
		d.clocks[tid] = c
	}
	return c
}

// shadow returns the shadow state of addr. Caller must hold d.mu.
func (d *Detector) shadow(addr any) *varState {
	vs, ok := d.vars[addr]
	if !ok {
		vs = &varState{}
		d.vars[addr] = vs
	}
	return vs
}

// concurrentRead picks the first read in reads that c does not know about.
func (d *Detector) concurrentRead(reads, c *vectorclock.VectorClock) epoch.Epoch {
	for tid := threads.ID(1); int(tid) < reads.Len(); tid++ {
		if rc := reads.Get(tid); rc > c.Get(tid) {
			return epoch.New(tid, rc)
		}
	}
	return 0
}

// threadName names tid for reports. Caller must hold d.mu.
func (d *Detector) threadName(tid threads.ID) string {
	if d.names != nil {
		if name := d.names(tid); name != "" {
			return name
		}
	}
	return "thread " + threadIDString(tid)
}
