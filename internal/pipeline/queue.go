package pipeline

import (
	"sync"

	"github.com/vheinola/utuputki/internal/domain"
)

// queue is an unbounded FIFO of media snapshots guarded by a condition
// variable. Close(drain=true) lets a consumer finish the remaining items;
// Close(drain=false) makes the next Pop return immediately.
type queue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	items  []domain.Media
	closed bool
	drain  bool
}

func newQueue() *queue {
	q := &queue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

func (q *queue) Push(media domain.Media) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.items = append(q.items, media)
	q.cond.Signal()
}

// Pop blocks until an item is available or the queue is done. The second
// return value is false once the consumer should exit.
func (q *queue) Pop() (domain.Media, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for {
		if q.closed && (!q.drain || len(q.items) == 0) {
			return domain.Media{}, false
		}
		if len(q.items) > 0 {
			media := q.items[0]
			q.items = q.items[1:]
			return media, true
		}
		q.cond.Wait()
	}
}

// Close shuts the queue down and wakes every waiter. Closing again can only
// tighten drain semantics, never loosen them.
func (q *queue) Close(drain bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		q.drain = q.drain && drain
	} else {
		q.closed = true
		q.drain = drain
	}
	q.cond.Broadcast()
}

func (q *queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
