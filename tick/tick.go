package tick

import "sync"

// Scheduler defers work until the current unit of work completes.
type Scheduler interface {
	Defer(task func())
}

// Queue is a FIFO Scheduler flushed explicitly by its owner.
type Queue struct {
	mu    sync.Mutex
	tasks []func()
	wake  chan struct{}
}

// Ensure Queue satisfies Scheduler at compile time.
var _ Scheduler = (*Queue)(nil)

// NewQueue returns an empty Queue.
func NewQueue() *Queue {
	return &Queue{wake: make(chan struct{}, 1)}
}

// Defer appends task to the queue. Nil tasks are ignored.
func (q *Queue) Defer(task func()) {
	if task == nil {
		return
	}

	q.mu.Lock()
	q.tasks = append(q.tasks, task)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// Flush runs queued tasks in order, including tasks deferred while flushing,
// and returns how many ran.
func (q *Queue) Flush() int {
	ran := 0
	for {
		q.mu.Lock()
		if len(q.tasks) == 0 {
			q.mu.Unlock()
			return ran
		}
		task := q.tasks[0]
		q.tasks[0] = nil
		q.tasks = q.tasks[1:]
		q.mu.Unlock()

		task()
		ran++
	}
}

// Pending reports the number of queued tasks.
func (q *Queue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}

// Wake is signalled whenever a task is deferred. Blocked readers select on it
// so work deferred from another goroutine is not stranded.
func (q *Queue) Wake() <-chan struct{} {
	return q.wake
}
