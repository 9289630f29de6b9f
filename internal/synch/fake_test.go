package synch

import (
	"errors"
	"testing"

	"github.com/kolkov/kernsync/internal/machine"
	"github.com/kolkov/kernsync/internal/threads"
)

// fakeKernel is a scheduler and interrupt controller that never switches.
// Sleep only records the sleeper and returns, so it suits checks of the
// bookkeeping done before a thread blocks and after it is woken.
type fakeKernel struct {
	t       *testing.T
	level   machine.Level
	current threads.ID
	slept   []threads.ID
	readied []threads.ID
}

func newFake(t *testing.T) *fakeKernel {
	return &fakeKernel{t: t, level: machine.IntOn, current: 1}
}

func (f *fakeKernel) env() Env {
	return Env{Interrupts: f, Scheduler: f}
}

func (f *fakeKernel) SetLevel(now machine.Level) machine.Level {
	old := f.level
	f.level = now
	return old
}

func (f *fakeKernel) CurrentThread() threads.ID { return f.current }

func (f *fakeKernel) ReadyToRun(id threads.ID) {
	if f.level != machine.IntOff {
		f.t.Errorf("ReadyToRun(%d) with interrupts on", id)
	}
	f.readied = append(f.readied, id)
}

func (f *fakeKernel) Sleep() {
	if f.level != machine.IntOff {
		f.t.Errorf("Sleep() of thread %d with interrupts on", f.current)
	}
	f.slept = append(f.slept, f.current)
}

// expectFatal runs fn and checks it panics with a *SyncError wrapping want.
func expectFatal(t *testing.T, want error, fn func()) *SyncError {
	t.Helper()
	var got *SyncError
	func() {
		defer func() {
			r := recover()
			if r == nil {
				return
			}
			err, ok := r.(error)
			if !ok || !errors.As(err, &got) {
				t.Fatalf("panic value = %v, want *SyncError", r)
			}
		}()
		fn()
	}()
	if got == nil {
		t.Fatalf("no fatal error, want %v", want)
	}
	if !errors.Is(got, want) {
		t.Errorf("fatal error = %v, want %v", got, want)
	}
	return got
}

// recordingTracker logs the happens-before hooks it receives.
type recordingTracker struct {
	events []string
}

func (r *recordingTracker) OnAcquire(_ any, _ threads.ID)      { r.events = append(r.events, "acquire") }
func (r *recordingTracker) OnRelease(_ any, _ threads.ID)      { r.events = append(r.events, "release") }
func (r *recordingTracker) OnReleaseMerge(_ any, _ threads.ID) { r.events = append(r.events, "merge") }

var _ Tracker = (*recordingTracker)(nil)
