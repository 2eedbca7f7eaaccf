package frontier

import (
	"container/list"
	"sync"
)

// Queue is a FIFO of pending URL keys shared by all workers. It tracks how
// many popped items are still being processed so that an empty queue with
// work in flight blocks instead of ending the crawl.
type Queue struct {
	mu       sync.Mutex
	cond     *sync.Cond
	items    *list.List
	inFlight int
	closed   bool
}

// NewQueue creates an empty queue
func NewQueue() *Queue {
	q := &Queue{items: list.New()}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Push appends keys. It reports false once the queue is closed.
func (q *Queue) Push(keys ...string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return false
	}
	for _, k := range keys {
		q.items.PushBack(k)
	}
	if len(keys) == 1 {
		q.cond.Signal()
	} else if len(keys) > 1 {
		q.cond.Broadcast()
	}
	return true
}

// Pop removes the oldest key and takes an in-flight slot that the caller must
// release with Done. It blocks while the queue is empty and other items are
// in flight, and returns false when the queue is closed or when it is empty
// with nothing in flight.
func (q *Queue) Pop() (string, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for q.items.Len() == 0 && q.inFlight > 0 && !q.closed {
		q.cond.Wait()
	}
	if q.closed || q.items.Len() == 0 {
		return "", false
	}
	front := q.items.Front()
	q.items.Remove(front)
	q.inFlight++
	return front.Value.(string), true
}

// Done releases the in-flight slot taken by Pop
func (q *Queue) Done() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.inFlight > 0 {
		q.inFlight--
	}
	if q.inFlight == 0 || q.items.Len() > 0 {
		q.cond.Broadcast()
	}
}

// Close wakes every waiter; later Pops return false and Pushes are dropped
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.cond.Broadcast()
}

// Len returns the number of pending keys
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.items.Len()
}

// InFlight returns the number of popped keys not yet marked Done
func (q *Queue) InFlight() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.inFlight
}
