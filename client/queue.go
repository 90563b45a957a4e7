package client

import (
	"sync"

	"github.com/gammazero/deque"
)

// queue holds pending requests and the id table shared by the façade and
// the workers. One mutex guards everything; cond wakes idle workers.
type queue struct {
	mu       sync.Mutex
	cond     *sync.Cond
	pending  deque.Deque[*request]
	known    map[RequestID]*request // pending and in flight
	inFlight int
	lastID   RequestID
	shutdown bool
}

func newQueue() *queue {
	q := queue{
		known: make(map[RequestID]*request),
	}
	q.cond = sync.NewCond(&q.mu)

	return &q
}

// push assigns r the next id and enqueues it, waking one worker.
// After shutdown the id is still assigned but r is not enqueued and
// push reports false.
func (q *queue) push(r *request) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.lastID++
	r.id = q.lastID

	if q.shutdown {
		return false
	}

	q.pending.PushBack(r)
	q.known[r.id] = r
	q.cond.Signal()

	return true
}

// pop blocks until a request is pending or the queue is shut down and
// empty, in which case it reports false. The returned request is counted
// as in flight until finish.
func (q *queue) pop() (*request, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for q.pending.Len() == 0 && !q.shutdown {
		q.cond.Wait()
	}

	if q.pending.Len() == 0 {
		return nil, false
	}

	r := q.pending.PopFront()
	q.inFlight++

	return r, true
}

// finish releases r. Cancelling its id afterwards is a no-op.
func (q *queue) finish(r *request) {
	q.mu.Lock()
	defer q.mu.Unlock()

	delete(q.known, r.id)
	q.inFlight--
}

// cancel marks the request canceled if it is still pending or in flight.
func (q *queue) cancel(id RequestID) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	r, ok := q.known[id]
	if !ok {
		return false
	}
	r.markCanceled()

	return true
}

// close cancels every outstanding request and wakes all workers so they
// drain the queue and exit. It reports the counts at the time of closing.
func (q *queue) close() (pending, inFlight int) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.shutdown = true
	for _, r := range q.known {
		r.markCanceled()
	}
	q.cond.Broadcast()

	return q.pending.Len(), q.inFlight
}

func (q *queue) stats() (pending, inFlight int) {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.pending.Len(), q.inFlight
}
