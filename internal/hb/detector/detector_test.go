package detector

import (
	"bytes"
	"strings"
	"testing"

	"github.com/kolkov/kernsync/internal/threads"
)

// newForked returns a detector where thread 1 was created by the host and
// forked threads 2..n, in order.
func newForked(n int) *Detector {
	d := New(nil, nil)
	d.OnFork(threads.None, 1)
	for tid := threads.ID(2); int(tid) <= n; tid++ {
		d.OnFork(1, tid)
	}
	return d
}

func TestDetector_ForkOrdersParentBeforeChild(t *testing.T) {
	d := New(nil, nil)
	d.OnFork(threads.None, 1)
	d.OnWrite("x", 1)
	d.OnFork(1, 2)
	d.OnRead("x", 2)
	d.OnWrite("x", 2)

	if n := d.RacesDetected(); n != 0 {
		t.Errorf("RacesDetected() = %d, want 0", n)
	}
	if got := d.Clock(2).Get(1); got != 1 {
		t.Errorf("child clock[parent] = %d, want 1", got)
	}
}

func TestDetector_WriteWrite(t *testing.T) {
	d := newForked(3)
	d.OnWrite("x", 2)
	d.OnWrite("x", 3)

	races := d.Races()
	if len(races) != 1 {
		t.Fatalf("RacesDetected() = %d, want 1", len(races))
	}
	r := races[0]
	if r.Type != RaceTypeWriteWrite {
		t.Errorf("Type = %q, want %q", r.Type, RaceTypeWriteWrite)
	}
	if r.Previous.Thread != 2 || r.Current.Thread != 3 {
		t.Errorf("threads = (%d, %d), want (2, 3)", r.Previous.Thread, r.Current.Thread)
	}
	if r.DeduplicationKey != "write-write:x:2:3" {
		t.Errorf("DeduplicationKey = %q, want %q", r.DeduplicationKey, "write-write:x:2:3")
	}
}

func TestDetector_WriteRead(t *testing.T) {
	d := newForked(2)
	d.OnWrite("y", 2)
	d.OnRead("y", 1)

	races := d.Races()
	if len(races) != 1 {
		t.Fatalf("RacesDetected() = %d, want 1", len(races))
	}
	if races[0].Type != RaceTypeWriteRead {
		t.Errorf("Type = %q, want %q", races[0].Type, RaceTypeWriteRead)
	}
	if races[0].Current.Type != AccessRead || races[0].Previous.Type != AccessWrite {
		t.Errorf("access types = (%v, %v), want (Write, Read)", races[0].Previous.Type, races[0].Current.Type)
	}
}

// TestDetector_SharedReads verifies concurrent reads are not a race but a
// later write that saw none of them is.
func TestDetector_SharedReads(t *testing.T) {
	d := New(nil, nil)
	d.OnFork(threads.None, 1)
	d.OnWrite("x", 1)
	d.OnFork(1, 2)
	d.OnFork(1, 3)

	d.OnRead("x", 2)
	d.OnRead("x", 3)
	if n := d.RacesDetected(); n != 0 {
		t.Fatalf("RacesDetected() after shared reads = %d, want 0", n)
	}

	d.OnWrite("x", 1)
	races := d.Races()
	if len(races) != 1 {
		t.Fatalf("RacesDetected() = %d, want 1", len(races))
	}
	if races[0].Type != RaceTypeReadWrite {
		t.Errorf("Type = %q, want %q", races[0].Type, RaceTypeReadWrite)
	}
	if races[0].Previous.Thread != 2 {
		t.Errorf("Previous.Thread = %d, want 2", races[0].Previous.Thread)
	}
}

func TestDetector_ReleaseAcquireOrders(t *testing.T) {
	lock := new(int)
	d := newForked(2)

	d.OnAcquire(lock, 2)
	d.OnWrite("z", 2)
	d.OnRelease(lock, 2)

	d.OnAcquire(lock, 1)
	d.OnRead("z", 1)
	d.OnWrite("z", 1)
	d.OnRelease(lock, 1)

	if n := d.RacesDetected(); n != 0 {
		t.Errorf("RacesDetected() = %d, want 0", n)
	}
}

// TestDetector_ReleaseMergeAccumulates verifies an acquire sees every
// earlier merging release, not only the last one.
func TestDetector_ReleaseMergeAccumulates(t *testing.T) {
	sem := new(int)
	d := newForked(3)

	d.OnWrite("a", 2)
	d.OnReleaseMerge(sem, 2)
	d.OnWrite("b", 3)
	d.OnReleaseMerge(sem, 3)

	d.OnAcquire(sem, 1)
	d.OnRead("a", 1)
	d.OnRead("b", 1)

	if n := d.RacesDetected(); n != 0 {
		t.Errorf("RacesDetected() = %d, want 0", n)
	}
}

// TestDetector_ReleaseReplaces verifies a plain release only publishes the
// releasing thread's knowledge.
func TestDetector_ReleaseReplaces(t *testing.T) {
	lock := new(int)
	d := newForked(3)

	d.OnWrite("a", 2)
	d.OnRelease(lock, 2)
	d.OnRelease(lock, 3) // 3 never acquired, so it did not see 2's write

	d.OnAcquire(lock, 1)
	d.OnRead("a", 1)

	if n := d.RacesDetected(); n != 1 {
		t.Errorf("RacesDetected() = %d, want 1", n)
	}
}

func TestDetector_Deduplicates(t *testing.T) {
	d := newForked(3)
	for i := 0; i < 3; i++ {
		d.OnWrite("x", 2)
		d.OnWrite("x", 3)
	}
	if n := d.RacesDetected(); n != 1 {
		t.Errorf("RacesDetected() = %d, want 1", n)
	}
}

func TestDetector_IgnoresNoThread(t *testing.T) {
	d := newForked(2)
	d.OnWrite("x", threads.None)
	d.OnRead("x", threads.None)
	d.OnAcquire("l", threads.None)
	d.OnRelease("l", threads.None)
	d.OnReleaseMerge("l", threads.None)
	d.OnWrite("x", 2)

	if n := d.RacesDetected(); n != 0 {
		t.Errorf("RacesDetected() = %d, want 0", n)
	}
}

func TestDetector_Output(t *testing.T) {
	var buf bytes.Buffer
	d := New(&buf, nil)
	d.SetNamer(func(tid threads.ID) string {
		if tid == 3 {
			return "consumer"
		}
		return ""
	})
	d.OnFork(threads.None, 1)
	d.OnFork(1, 2)
	d.OnFork(1, 3)
	d.OnWrite("buffer[0]", 2)
	d.OnRead("buffer[0]", 3)

	out := buf.String()
	for _, want := range []string{
		"WARNING: DATA RACE",
		"Read at buffer[0] by consumer:",
		"Previous write at buffer[0] by thread 2:",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if got := d.Races()[0].String(); got != out {
		t.Errorf("String() = %q, want %q", got, out)
	}
}

func TestDetector_Reset(t *testing.T) {
	d := newForked(3)
	d.OnWrite("x", 2)
	d.OnWrite("x", 3)
	d.Reset()

	if n := d.RacesDetected(); n != 0 {
		t.Errorf("RacesDetected() after Reset = %d, want 0", n)
	}
	d.OnWrite("x", 3)
	if n := d.RacesDetected(); n != 0 {
		t.Errorf("RacesDetected() = %d, want 0 for a fresh variable", n)
	}
}

func TestAccessType_String(t *testing.T) {
	tests := []struct {
		a    AccessType
		want string
	}{
		{AccessRead, "Read"},
		{AccessWrite, "Write"},
		{AccessType(9), "Unknown"},
	}
	for _, tt := range tests {
		if got := tt.a.String(); got != tt.want {
			t.Errorf("AccessType(%d).String() = %q, want %q", tt.a, got, tt.want)
		}
	}
}
