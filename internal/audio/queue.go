package audio

import "sync"

// blockQueue hands blocks from the driver's audio thread to a single
// consumer. It is unbounded; the driver's fixed buffer count limits how far
// production can run ahead.
type blockQueue struct {
	mu        sync.Mutex
	cond      *sync.Cond
	pending   [][]int16
	running   bool
	highWater int
	dropped   int
}

func newBlockQueue() *blockQueue {
	q := &blockQueue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// open marks the queue running so that deliveries are accepted.
func (q *blockQueue) open() {
	q.mu.Lock()
	q.running = true
	q.mu.Unlock()
}

// deliver copies samples into a fresh block and wakes one waiter. It is
// called from the driver callback and must not block beyond the lock.
func (q *blockQueue) deliver(samples []int16) {
	if len(samples) == 0 {
		return
	}
	block := make([]int16, len(samples))
	copy(block, samples)

	q.mu.Lock()
	if !q.running {
		q.dropped++
		q.mu.Unlock()
		return
	}
	q.pending = append(q.pending, block)
	if len(q.pending) > q.highWater {
		q.highWater = len(q.pending)
	}
	q.mu.Unlock()
	q.cond.Signal()
}

// pop blocks until a block is queued or the queue stops. Blocks queued
// before stop are still returned; ok is false once stopped and empty.
func (q *blockQueue) pop() (block []int16, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.pending) == 0 && q.running {
		q.cond.Wait()
	}
	if len(q.pending) == 0 {
		return nil, false
	}
	block = q.pending[0]
	q.pending[0] = nil
	q.pending = q.pending[1:]
	return block, true
}

// stop rejects further deliveries and wakes every waiter.
func (q *blockQueue) stop() {
	q.mu.Lock()
	q.running = false
	q.mu.Unlock()
	q.cond.Broadcast()
}

func (q *blockQueue) depth() (current, highWater int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending), q.highWater
}
