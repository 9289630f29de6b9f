package threadtest

// pingPongLoops is how many times each ping-pong thread loops.
const pingPongLoops = 5

// pingPong forks a thread running simpleThread(1) and then runs
// simpleThread(0) itself, so the two alternate on every Yield.
func pingPong(r *run) {
	r.k.Fork("forked thread", r.simpleThread, 1)
	r.simpleThread(0)
}

func (r *run) simpleThread(which int) {
	for num := 0; num < pingPongLoops; num++ {
		r.printf("*** thread %d looped %d times", which, num)
		r.k.Yield()
	}
}
