package threadtest

import "github.com/kolkov/kernsync/kernel"

// ring is the circular buffer shared by producer and consumer. Accesses
// are reported to the happens-before checker.
type ring struct {
	k     *kernel.Kernel
	slots [BufferSize]int
	front int
	rear  int
	count int
}

func (b *ring) put(item int) {
	b.k.RaceWrite(&b.slots[b.rear])
	b.slots[b.rear] = item
	b.k.RaceRead(&b.rear)
	b.k.RaceWrite(&b.rear)
	b.rear = (b.rear + 1) % BufferSize
}

func (b *ring) take() int {
	b.k.RaceRead(&b.slots[b.front])
	item := b.slots[b.front]
	b.k.RaceRead(&b.front)
	b.k.RaceWrite(&b.front)
	b.front = (b.front + 1) % BufferSize
	return item
}

func (b *ring) readCount() int {
	b.k.RaceRead(&b.count)
	return b.count
}

func (b *ring) addCount(delta int) {
	b.k.RaceRead(&b.count)
	b.k.RaceWrite(&b.count)
	b.count += delta
}

// semaphoreBuffer is the classic producer/consumer: empty counts free
// slots, full counts filled slots and a lock guards the ring itself.
func semaphoreBuffer(r *run) {
	b := &ring{k: r.k}
	mutex := r.k.NewLock("buffer mutex")
	empty := r.k.NewSemaphore("empty", BufferSize)
	full := r.k.NewSemaphore("full", 0)

	r.printf("before fork")
	r.k.Fork("producer", func(int) {
		r.printf("producer started")
		for item := 0; item < r.opts.Items; item++ {
			empty.P()
			r.itemProduced()

			mutex.Acquire()
			b.put(item)
			mutex.Release()

			r.printf("[producer] produced item %d", item)
			full.V()
			r.pause()
		}
	}, 0)
	r.k.Fork("consumer", func(int) {
		r.printf("consumer started")
		for n := 0; n < r.opts.Items; n++ {
			full.P()

			mutex.Acquire()
			item := b.take()
			mutex.Release()

			r.itemConsumed(item)
			r.printf("[consumer] consumed item %d", item)
			empty.V()
			r.pause()
		}
	}, 0)
	r.printf("after fork")
}

// conditionBuffer is the monitor version: a lock guards the ring and its
// count, and threads wait on notFull and notEmpty.
func conditionBuffer(r *run) {
	b := &ring{k: r.k}
	lock := r.k.NewLock("buffer lock")
	notFull := r.k.NewCondition("not full")
	notEmpty := r.k.NewCondition("not empty")

	r.k.Fork("producer", func(int) {
		r.printf("producer started")
		for item := 0; item < r.opts.Items; item++ {
			lock.Acquire()
			for b.readCount() == BufferSize {
				notFull.Wait(lock)
			}
			b.put(item)
			b.addCount(1)
			r.itemProduced()
			notEmpty.Signal(lock)
			lock.Release()

			r.printf("[producer] produced item %d", item)
			r.pause()
		}
	}, 0)
	r.k.Fork("consumer", func(int) {
		r.printf("consumer started")
		for n := 0; n < r.opts.Items; n++ {
			lock.Acquire()
			for b.readCount() == 0 {
				notEmpty.Wait(lock)
			}
			item := b.take()
			b.addCount(-1)
			r.itemConsumed(item)
			notFull.Signal(lock)
			lock.Release()

			r.printf("[consumer] consumed item %d", item)
			r.pause()
		}
	}, 0)
}

// unsynchronizedBuffer shares the ring with no primitives at all. The
// consumer polls the count and both threads yield, so the program happens
// to work on a uniprocessor, but nothing orders the accesses.
func unsynchronizedBuffer(r *run) {
	b := &ring{k: r.k}

	r.k.Fork("producer", func(int) {
		for item := 0; item < r.opts.Items; {
			if b.readCount() < BufferSize {
				b.put(item)
				b.addCount(1)
				r.itemProduced()
				r.printf("[producer] produced item %d", item)
				item++
			}
			r.k.Yield()
		}
	}, 0)
	r.k.Fork("consumer", func(int) {
		for n := 0; n < r.opts.Items; {
			if b.readCount() > 0 {
				item := b.take()
				b.addCount(-1)
				r.itemConsumed(item)
				r.printf("[consumer] consumed item %d", item)
				n++
			}
			r.k.Yield()
		}
	}, 0)
}
