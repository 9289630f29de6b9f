// Package syncshadow tracks the release clocks of synchronization objects.
//
// Every semaphore, lock and condition variable seen by the happens-before
// checker gets a SyncVar holding the vector clock of its last release. A
// thread that later acquires the object joins that clock into its own,
// which creates the happens-before edge from the releaser to the acquirer.
package syncshadow

import (
	"sync"

	"github.com/kolkov/kernsync/internal/hb/vectorclock"
)

// SyncShadow maps synchronization objects to their SyncVar.
//
// Keys are the objects themselves (usually *synch.Semaphore, *synch.Lock or
// *synch.Condition), compared by identity. Entries are created lazily on
// first use and never freed; primitives normally live as long as the
// kernel.
//
// Thread Safety: All methods are safe for concurrent calls.
type SyncShadow struct {
	vars sync.Map
}

// New creates an empty SyncShadow.
func New() *SyncShadow {
	return &SyncShadow{}
}

// GetOrCreate returns the SyncVar for obj, creating it if needed.
func (s *SyncShadow) GetOrCreate(obj any) *SyncVar {
	if val, ok := s.vars.Load(obj); ok {
		return val.(*SyncVar)
	}
	val, _ := s.vars.LoadOrStore(obj, &SyncVar{})
	return val.(*SyncVar)
}

// Len returns the number of tracked objects.
func (s *SyncShadow) Len() int {
	n := 0
	s.vars.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// Reset forgets every tracked object.
func (s *SyncShadow) Reset() {
	s.vars.Clear()
}

// SyncVar is the shadow state of one synchronization object.
//
// Thread Safety: NOT thread-safe on its own.
type SyncVar struct {
	// releaseClock is nil until the first release.
	releaseClock *vectorclock.VectorClock
}

// GetReleaseClock returns the clock captured by the last release, or nil.
func (sv *SyncVar) GetReleaseClock() *vectorclock.VectorClock {
	return sv.releaseClock
}

// SetReleaseClock replaces the release clock with a copy of clock.
//
// Used by Lock.Release: the next owner only needs to see the previous one.
func (sv *SyncVar) SetReleaseClock(clock *vectorclock.VectorClock) {
	if sv.releaseClock == nil {
		sv.releaseClock = clock.Clone()
		return
	}
	sv.releaseClock.CopyFrom(clock)
}

// MergeReleaseClock joins clock into the release clock.
//
// Used by Semaphore.V and Condition.Signal: units and wakeups accumulate,
// so a later P may be consuming a unit produced by any earlier V.
func (sv *SyncVar) MergeReleaseClock(clock *vectorclock.VectorClock) {
	if sv.releaseClock == nil {
		sv.releaseClock = clock.Clone()
		return
	}
	sv.releaseClock.Join(clock)
}
