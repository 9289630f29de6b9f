// Package epoch implements compact logical timestamps for the
// happens-before checker.
//
// An Epoch is one thread's logical time packed into 64 bits:
//   - Top 32 bits: thread ID
//   - Bottom 32 bits: clock value
//
// Most accesses to a shadow variable are ordered, so comparing a single
// epoch against a vector clock in O(1) avoids keeping a full clock per
// variable.
package epoch

import (
	"strconv"

	"github.com/kolkov/kernsync/internal/hb/vectorclock"
	"github.com/kolkov/kernsync/internal/threads"
)

// Epoch is a logical timestamp encoding a thread ID and a clock value.
// Layout: [TID:32][Clock:32]
//
// The zero Epoch belongs to threads.None at clock 0 and stands for
// "no access yet". It happens before every vector clock.
type Epoch uint64

// ClockBits is the number of bits allocated to the clock value.
const ClockBits = 32

// New creates an epoch from a thread ID and clock value.
func New(tid threads.ID, clock uint32) Epoch {
	return Epoch(uint64(uint32(tid))<<ClockBits | uint64(clock))
}

// Decode extracts the thread ID and clock value.
func (e Epoch) Decode() (tid threads.ID, clock uint32) {
	return threads.ID(uint32(e >> ClockBits)), uint32(e)
}

// TID returns the thread that owns the epoch.
func (e Epoch) TID() threads.ID {
	tid, _ := e.Decode()
	return tid
}

// HappensBefore reports whether the epoch is known to vc, i.e.
// clock <= vc[tid].
func (e Epoch) HappensBefore(vc *vectorclock.VectorClock) bool {
	tid, clock := e.Decode()
	return clock <= vc.Get(tid)
}

// String formats the epoch as "clock@tid".
func (e Epoch) String() string {
	tid, clock := e.Decode()
	return strconv.FormatUint(uint64(clock), 10) + "@" + strconv.Itoa(int(tid))
}
