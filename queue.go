package prefetch

import (
	"container/list"
	"time"
)

// preloadTask is one pending preload request.
type preloadTask[K comparable] struct {
	id         K
	priority   Priority
	enqueuedAt time.Time
}

// preloadQueue keeps one bucket per priority tier.
// The hover bucket is LIFO, the others are FIFO. Not safe for concurrent use.
type preloadQueue[K comparable] struct {
	buckets [priorityCount]*list.List
	index   map[K]*list.Element
	now     func() time.Time
}

func newPreloadQueue[K comparable]() *preloadQueue[K] {
	q := &preloadQueue[K]{
		index: make(map[K]*list.Element),
		now:   time.Now,
	}
	for i := range q.buckets {
		q.buckets[i] = list.New()
	}

	return q
}

// push inserts a task for id or upgrades an already queued task to a higher tier.
// It returns false when nothing changed.
func (q *preloadQueue[K]) push(id K, priority Priority) bool {
	if el, ok := q.index[id]; ok {
		task := el.Value.(*preloadTask[K]) //nolint:forcetypeassert // only tasks are stored
		if priority <= task.priority {
			return false
		}

		q.buckets[task.priority].Remove(el)
		task.priority = priority
		q.index[id] = q.insert(task)

		return true
	}

	task := &preloadTask[K]{id: id, priority: priority, enqueuedAt: q.now()}
	q.index[id] = q.insert(task)

	return true
}

func (q *preloadQueue[K]) insert(task *preloadTask[K]) *list.Element {
	if task.priority == PriorityHoverIntent {
		return q.buckets[task.priority].PushFront(task)
	}

	return q.buckets[task.priority].PushBack(task)
}

// pop removes and returns the highest priority task.
func (q *preloadQueue[K]) pop() (*preloadTask[K], bool) {
	for p := PriorityHigh; ; p-- {
		if el := q.buckets[p].Front(); el != nil {
			task := q.buckets[p].Remove(el).(*preloadTask[K]) //nolint:forcetypeassert // only tasks are stored
			delete(q.index, task.id)

			return task, true
		}

		if p == PriorityNormal {
			return nil, false
		}
	}
}

func (q *preloadQueue[K]) contains(id K) bool {
	_, ok := q.index[id]
	return ok
}

func (q *preloadQueue[K]) len() int {
	return len(q.index)
}
