package pipeline

import (
	"context"
	"image"
	"sync"
	"time"
)

// DefaultQueueCapacity bounds the frames waiting for recognition.
const DefaultQueueCapacity = 8

// WorkItem is a changed frame waiting for recognition.
type WorkItem struct {
	Frame          *image.Gray
	SourceLanguage string
	SessionID      string
	CapturedAt     time.Time
}

// workQueue is a bounded FIFO that drops its oldest item when full.
type workQueue struct {
	mu     sync.Mutex
	items  []WorkItem
	cap    int
	drops  int
	notify chan struct{}
}

func newWorkQueue(capacity int) *workQueue {
	if capacity <= 0 {
		capacity = DefaultQueueCapacity
	}
	return &workQueue{cap: capacity, notify: make(chan struct{}, 1)}
}

// Push appends item and reports whether an older item was dropped for it.
func (q *workQueue) Push(item WorkItem) bool {
	q.mu.Lock()
	dropped := false
	if len(q.items) >= q.cap {
		q.items = q.items[1:]
		q.drops++
		dropped = true
	}
	q.items = append(q.items, item)
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
	return dropped
}

// Pop blocks until an item is available or ctx or stop ends.
func (q *workQueue) Pop(ctx context.Context, stop <-chan struct{}) (WorkItem, bool) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			item := q.items[0]
			q.items[0] = WorkItem{}
			q.items = q.items[1:]
			q.mu.Unlock()
			return item, true
		}
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return WorkItem{}, false
		case <-stop:
			return WorkItem{}, false
		case <-q.notify:
		}
	}
}

func (q *workQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *workQueue) Drops() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.drops
}

func (q *workQueue) Clear() {
	q.mu.Lock()
	q.items = nil
	q.mu.Unlock()
}
