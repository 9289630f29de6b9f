package threads

import "fmt"

// ID is a non-owning handle to a kernel thread.
//
// Synchronization primitives keep IDs in their wait queues; the thread
// itself is owned by the System's thread table. IDs start at 1.
type ID int

// None is the zero ID; it never names a thread.
const None ID = 0

// Status is the scheduling state of a thread.
type Status int

const (
	// JustCreated threads have been forked but never scheduled.
	JustCreated Status = iota
	// Running is the state of the single thread that owns the CPU.
	Running
	// Ready threads are on the ready list.
	Ready
	// Blocked threads sleep until some other thread readies them.
	Blocked
	// Finished threads have returned from their entry function.
	Finished
)

// String returns the lower-case state name.
func (s Status) String() string {
	switch s {
	case JustCreated:
		return "just created"
	case Running:
		return "running"
	case Ready:
		return "ready"
	case Blocked:
		return "blocked"
	case Finished:
		return "finished"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Thread is a simulated kernel thread backed by a goroutine.
//
// The goroutine only executes while the thread is Running. Every other
// moment it is parked on wake, waiting for the thread that switches to it.
type Thread struct {
	id     ID
	name   string
	status Status

	// wake carries the CPU to this thread. Buffered so the switching thread
	// never waits for the target goroutine to reach its receive.
	wake chan struct{}
}

func newThread(id ID, name string) *Thread {
	return &Thread{
		id:     id,
		name:   name,
		status: JustCreated,
		wake:   make(chan struct{}, 1),
	}
}

// ID returns the thread handle.
func (t *Thread) ID() ID { return t.id }

// Name returns the debug name given at Fork.
func (t *Thread) Name() string { return t.name }

// Status returns the scheduling state.
func (t *Thread) Status() Status { return t.status }

// String formats the thread as name#id.
func (t *Thread) String() string {
	return fmt.Sprintf("%s#%d", t.name, t.id)
}
