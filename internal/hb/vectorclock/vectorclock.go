// Package vectorclock implements the vector clocks used by the
// happens-before checker.
//
// A VectorClock maps each kernel thread to the last logical time of that
// thread known to the owner of the clock. Thread IDs are small and dense
// (they are handed out sequentially by the thread system), so the clock is
// a slice indexed by ID that grows on demand. Entries past the end of the
// slice are implicitly zero.
//
// Operations:
//   - Join: element-wise maximum, used when a thread acquires a lock or is
//     woken by a semaphore
//   - LessOrEqual: the happens-before partial order
//   - Increment: advance one thread's own component
package vectorclock

import (
	"strconv"
	"strings"

	"github.com/kolkov/kernsync/internal/threads"
)

// VectorClock is a growable vector of logical clocks indexed by thread ID.
//
// The zero value is an empty clock where every component is zero.
//
// Thread Safety: NOT thread-safe. The checker only touches clocks from the
// running kernel thread.
type VectorClock struct {
	clocks []uint32
}

// New creates an empty vector clock.
func New() *VectorClock {
	return &VectorClock{}
}

// Get returns the component for tid, zero if it was never set.
func (vc *VectorClock) Get(tid threads.ID) uint32 {
	if tid < 0 || int(tid) >= len(vc.clocks) {
		return 0
	}
	return vc.clocks[tid]
}

// Set stores the component for tid, growing the clock if needed.
func (vc *VectorClock) Set(tid threads.ID, clock uint32) {
	if tid < 0 {
		return
	}
	vc.grow(int(tid) + 1)
	vc.clocks[tid] = clock
}

// Len returns one past the highest thread ID the clock has storage for.
func (vc *VectorClock) Len() int {
	return len(vc.clocks)
}

// Increment advances the component for tid by one.
func (vc *VectorClock) Increment(tid threads.ID) {
	vc.Set(tid, vc.Get(tid)+1)
}

// Join merges other into vc by taking the element-wise maximum.
//
// This implements vc := vc ⊔ other.
func (vc *VectorClock) Join(other *VectorClock) {
	if other == nil {
		return
	}
	vc.grow(len(other.clocks))
	for i, c := range other.clocks {
		if c > vc.clocks[i] {
			vc.clocks[i] = c
		}
	}
}

// LessOrEqual reports whether vc ⊑ other, i.e. every component of vc is at
// most the matching component of other.
func (vc *VectorClock) LessOrEqual(other *VectorClock) bool {
	for i, c := range vc.clocks {
		if c > other.Get(threads.ID(i)) {
			return false
		}
	}
	return true
}

// HappensBefore reports whether vc strictly precedes other: vc ⊑ other and
// the two differ in at least one component.
func (vc *VectorClock) HappensBefore(other *VectorClock) bool {
	return vc.LessOrEqual(other) && !other.LessOrEqual(vc)
}

// Clone returns an independent copy of vc.
func (vc *VectorClock) Clone() *VectorClock {
	c := &VectorClock{clocks: make([]uint32, len(vc.clocks))}
	copy(c.clocks, vc.clocks)
	return c
}

// CopyFrom overwrites vc with the contents of other, reusing storage.
func (vc *VectorClock) CopyFrom(other *VectorClock) {
	vc.clocks = append(vc.clocks[:0], other.clocks...)
}

// String formats the non-zero components as "[tid:clock ...]".
func (vc *VectorClock) String() string {
	var b strings.Builder
	b.WriteByte('[')
	first := true
	for i, c := range vc.clocks {
		if c == 0 {
			continue
		}
		if !first {
			b.WriteByte(' ')
		}
		first = false
		b.WriteString(strconv.Itoa(i))
		b.WriteByte(':')
		b.WriteString(strconv.FormatUint(uint64(c), 10))
	}
	b.WriteByte(']')
	return b.String()
}

func (vc *VectorClock) grow(n int) {
	if n <= len(vc.clocks) {
		return
	}
	vc.clocks = append(vc.clocks, make([]uint32, n-len(vc.clocks))...)
}
