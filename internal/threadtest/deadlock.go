package threadtest

// selfDeadlock acquires a lock twice from the same thread. On a real
// kernel the thread would sleep forever waiting for itself; here the
// second Acquire is a fatal error.
func selfDeadlock(r *run) {
	l := r.k.NewLock("self")
	l.Acquire()
	r.printf("main acquired lock %q", l.Name())
	l.Acquire()
	r.printf("main acquired lock %q twice", l.Name())
}
