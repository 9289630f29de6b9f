package synch

import (
	"reflect"
	"testing"

	"github.com/kolkov/kernsync/internal/machine"
	"github.com/kolkov/kernsync/internal/threads"
)

// TestSemaphore_Conservation verifies Waiting() == max(0, -Value()) after
// every operation.
func TestSemaphore_Conservation(t *testing.T) {
	f := newFake(t)
	s := NewSemaphore(f.env(), "units", 2)

	check := func(step string) {
		t.Helper()
		want := 0
		if s.Value() < 0 {
			want = -s.Value()
		}
		if s.Waiting() != want {
			t.Errorf("%s: Waiting() = %d with Value() = %d, want %d", step, s.Waiting(), s.Value(), want)
		}
	}

	for id := threads.ID(1); id <= 4; id++ {
		f.current = id
		s.P()
		check("P")
	}
	if s.Value() != -2 {
		t.Errorf("Value() = %d, want -2", s.Value())
	}
	if want := []threads.ID{3, 4}; !reflect.DeepEqual(f.slept, want) {
		t.Errorf("slept = %v, want %v", f.slept, want)
	}

	f.current = 1
	for i := 0; i < 3; i++ {
		s.V()
		check("V")
	}
	if s.Value() != 1 {
		t.Errorf("Value() = %d, want 1", s.Value())
	}
	if want := []threads.ID{3, 4}; !reflect.DeepEqual(f.readied, want) {
		t.Errorf("readied = %v, want %v (FIFO)", f.readied, want)
	}
}

// TestSemaphore_RestoresLevel verifies P and V restore the caller's level
// instead of unconditionally enabling interrupts.
func TestSemaphore_RestoresLevel(t *testing.T) {
	for _, level := range []machine.Level{machine.IntOn, machine.IntOff} {
		t.Run(level.String(), func(t *testing.T) {
			f := newFake(t)
			s := NewSemaphore(f.env(), "level", 1)

			f.level = level
			s.P()
			if f.level != level {
				t.Errorf("after P level = %v, want %v", f.level, level)
			}
			s.V()
			if f.level != level {
				t.Errorf("after V level = %v, want %v", f.level, level)
			}
		})
	}
}

func TestSemaphore_NoWakeWithoutWaiters(t *testing.T) {
	f := newFake(t)
	s := NewSemaphore(f.env(), "idle", 0)

	s.V()
	s.V()

	if len(f.readied) != 0 {
		t.Errorf("readied = %v, want none", f.readied)
	}
	if s.Value() != 2 {
		t.Errorf("Value() = %d, want 2", s.Value())
	}
}

func TestSemaphore_Fatal(t *testing.T) {
	t.Run("negative initial value", func(t *testing.T) {
		f := newFake(t)
		expectFatal(t, ErrNegativeValue, func() { NewSemaphore(f.env(), "bad", -1) })
	})

	t.Run("destroy with waiters", func(t *testing.T) {
		f := newFake(t)
		s := NewSemaphore(f.env(), "busy", 0)
		s.P()
		err := expectFatal(t, ErrWaitersPending, s.Destroy)
		if err.Primitive != "semaphore" || err.Name != "busy" || err.Op != "Destroy" {
			t.Errorf("SyncError = %+v, want semaphore \"busy\" Destroy", err)
		}
	})

	t.Run("block outside a thread", func(t *testing.T) {
		f := newFake(t)
		f.current = threads.None
		s := NewSemaphore(f.env(), "boot", 0)
		expectFatal(t, ErrNoThread, s.P)
	})

	t.Run("waiter missing", func(t *testing.T) {
		f := newFake(t)
		s := NewSemaphore(f.env(), "torn", 0)
		s.value = -1 // bookkeeping says one sleeper, queue is empty
		expectFatal(t, ErrInconsistent, s.V)
	})
}

func TestSemaphore_Destroy(t *testing.T) {
	f := newFake(t)
	s := NewSemaphore(f.env(), "done", 1)
	s.P()
	s.V()
	s.Destroy() // must not panic
}

func TestSemaphore_Tracker(t *testing.T) {
	f := newFake(t)
	tr := &recordingTracker{}
	env := f.env()
	env.Tracker = tr
	s := NewSemaphore(env, "tracked", 1)

	s.P()
	s.V()

	if want := []string{"acquire", "merge"}; !reflect.DeepEqual(tr.events, want) {
		t.Errorf("events = %v, want %v", tr.events, want)
	}
}

// TestSemaphore_FIFOWake verifies sleeping threads resume in arrival order.
func TestSemaphore_FIFOWake(t *testing.T) {
	m := newMachine()
	s := NewSemaphore(m.env, "gate", 0)
	var woken []int

	_, err := m.sys.Run("main", func() {
		for i := 1; i <= 3; i++ {
			m.sys.Fork("waiter", func(which int) {
				s.P()
				woken = append(woken, which)
			}, i)
		}
		m.sys.Yield() // all three block in P

		if s.Value() != -3 || s.Waiting() != 3 {
			t.Errorf("Value() = %d, Waiting() = %d, want -3 and 3", s.Value(), s.Waiting())
		}
		for i := 0; i < 3; i++ {
			s.V()
		}
	})
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	if want := []int{1, 2, 3}; !reflect.DeepEqual(woken, want) {
		t.Errorf("woken = %v, want %v", woken, want)
	}
	if s.Value() != 0 {
		t.Errorf("Value() = %d, want 0", s.Value())
	}
}

// TestSemaphore_WokenThreadOwnsUnit verifies a V that wakes a sleeper cannot
// be stolen by a P issued before the sleeper runs.
func TestSemaphore_WokenThreadOwnsUnit(t *testing.T) {
	m := newMachine()
	s := NewSemaphore(m.env, "unit", 0)
	var trace []string

	report, err := m.sys.Run("main", func() {
		m.sys.Fork("sleeper", func(int) {
			s.P()
			trace = append(trace, "sleeper")
		}, 0)
		m.sys.Yield()

		// thief is ahead of sleeper on the ready list once V runs.
		m.sys.Fork("thief", func(int) {
			s.P()
			trace = append(trace, "thief")
		}, 0)
		s.V() // granted to sleeper, which is only made ready
	})
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	if want := []string{"sleeper"}; !reflect.DeepEqual(trace, want) {
		t.Errorf("trace = %v, want %v", trace, want)
	}
	if want := []string{"thief"}; !reflect.DeepEqual(report.Blocked, want) {
		t.Errorf("Blocked = %v, want %v", report.Blocked, want)
	}
}

// levelRecorder logs every level change requested through SetLevel.
type levelRecorder struct {
	*fakeKernel
	levels []machine.Level
}

func (r *levelRecorder) SetLevel(now machine.Level) machine.Level {
	r.levels = append(r.levels, now)
	return r.fakeKernel.SetLevel(now)
}

// TestDestroy_AtomicSection verifies Destroy masks interrupts around its
// checks and restores the caller's level.
func TestDestroy_AtomicSection(t *testing.T) {
	tests := []struct {
		name    string
		destroy func(env Env)
	}{
		{"semaphore", func(env Env) { NewSemaphore(env, "s", 0).Destroy() }},
		{"lock", func(env Env) { NewLock(env, "l").Destroy() }},
		{"condition", func(env Env) { NewCondition(env, "c").Destroy() }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFake(t)
			rec := &levelRecorder{fakeKernel: f}
			tt.destroy(Env{Interrupts: rec, Scheduler: f})

			want := []machine.Level{machine.IntOff, machine.IntOn}
			if !reflect.DeepEqual(rec.levels, want) {
				t.Errorf("SetLevel calls = %v, want %v", rec.levels, want)
			}
			if f.level != machine.IntOn {
				t.Errorf("level after Destroy = %v, want %v", f.level, machine.IntOn)
			}
		})
	}
}
