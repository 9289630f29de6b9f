package syncshadow

import (
	"testing"

	"github.com/kolkov/kernsync/internal/hb/vectorclock"
	"github.com/kolkov/kernsync/internal/threads"
)

type object struct{ name string }

func TestGetOrCreate(t *testing.T) {
	s := New()
	a, b := &object{"a"}, &object{"b"}

	sv1 := s.GetOrCreate(a)
	sv2 := s.GetOrCreate(a)
	if sv1 != sv2 {
		t.Error("GetOrCreate(a) returned different SyncVars for the same object")
	}
	if s.GetOrCreate(b) == sv1 {
		t.Error("GetOrCreate(b) returned a's SyncVar")
	}
	if s.Len() != 2 {
		t.Errorf("Len() = %d, want 2", s.Len())
	}

	s.Reset()
	if s.Len() != 0 {
		t.Errorf("Len() after Reset = %d, want 0", s.Len())
	}
}

func TestSetReleaseClock(t *testing.T) {
	sv := &SyncVar{}
	if sv.GetReleaseClock() != nil {
		t.Fatal("GetReleaseClock() != nil before any release")
	}

	c := vectorclock.New()
	c.Set(1, 5)
	sv.SetReleaseClock(c)
	c.Set(1, 6) // must not alias

	if got := sv.GetReleaseClock().Get(1); got != 5 {
		t.Errorf("release clock[1] = %d, want 5", got)
	}

	d := vectorclock.New()
	d.Set(2, 3)
	sv.SetReleaseClock(d)
	if rc := sv.GetReleaseClock(); rc.Get(1) != 0 || rc.Get(2) != 3 {
		t.Errorf("release clock = %v, want [2:3]", rc)
	}
}

func TestMergeReleaseClock(t *testing.T) {
	sv := &SyncVar{}

	c1 := vectorclock.New()
	c1.Set(1, 5)
	c1.Set(2, 1)
	sv.MergeReleaseClock(c1)

	c2 := vectorclock.New()
	c2.Set(1, 2)
	c2.Set(3, 7)
	sv.MergeReleaseClock(c2)

	rc := sv.GetReleaseClock()
	want := map[threads.ID]uint32{1: 5, 2: 1, 3: 7}
	for tid, clock := range want {
		if got := rc.Get(tid); got != clock {
			t.Errorf("release clock[%d] = %d, want %d", tid, got, clock)
		}
	}
}
