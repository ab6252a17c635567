package replication

import (
	"context"
	"sync"

	"github.com/marmos91/ssnode/internal/logger"
	"github.com/marmos91/ssnode/pkg/metrics"
)

// DefaultCapacity bounds the number of pending tasks before Schedule* starts
// dropping new work (logged, never blocking the caller).
const DefaultCapacity = 4096

// Sender performs the actual outbound network operation for a task. C5
// implements this; the queue/worker (C4) only owns scheduling and retry
// policy.
type Sender interface {
	SendUpdate(ctx context.Context, filename string) error
	SendDelete(ctx context.Context, filename string) error
}

// Queue is the FIFO of pending outbound replication tasks (C4). Blocking pop
// is implemented with a condition variable per spec's explicit discipline;
// exactly one worker goroutine consumes it, so the order the backup
// observes matches local commit order for any single filename, except that
// a failed task is re-queued at the tail, behind any later tasks already
// queued for the same filename.
type Queue struct {
	sender   Sender
	retryCap int
	capacity int

	mu       sync.Mutex
	cond     *sync.Cond
	items    []Task
	shutdown bool

	retryMu sync.Mutex
	retries map[string]int

	wg sync.WaitGroup
}

// NewQueue builds a Queue bound to sender, with retryCap bounding per-
// filename re-push attempts before a task is abandoned.
func NewQueue(sender Sender, retryCap int) *Queue {
	if retryCap <= 0 {
		retryCap = 5
	}
	q := &Queue{
		sender:   sender,
		retryCap: retryCap,
		capacity: DefaultCapacity,
		retries:  make(map[string]int),
	}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// ScheduleUpdate enqueues an UPDATE task. Never blocks, never deduplicates,
// never coalesces: the worker may observe a stale version of the file if it
// has since changed again, which is acceptable because the final UPDATE
// wins by overwriting at the backup.
func (q *Queue) ScheduleUpdate(filename string) {
	q.push(Task{Filename: filename, Op: Update})
}

// ScheduleDelete enqueues a DELETE task.
func (q *Queue) ScheduleDelete(filename string) {
	q.push(Task{Filename: filename, Op: Delete})
}

func (q *Queue) push(t Task) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.shutdown {
		return
	}
	if len(q.items) >= q.capacity {
		logger.Warn("replication queue full, dropping task",
			logger.Filename(t.Filename), logger.Operation(t.Op.String()))
		return
	}
	q.items = append(q.items, t)
	metrics.SetReplicationQueueDepth(len(q.items))
	q.cond.Signal()
}

// pop blocks until a task is available or the queue is shut down, in which
// case it returns (Task{}, false).
func (q *Queue) pop() (Task, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.items) == 0 && !q.shutdown {
		q.cond.Wait()
	}
	if len(q.items) == 0 && q.shutdown {
		return Task{}, false
	}

	t := q.items[0]
	q.items = q.items[1:]
	metrics.SetReplicationQueueDepth(len(q.items))
	return t, true
}

// Depth returns the current number of pending tasks, for metrics.
func (q *Queue) Depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Start spawns the single worker goroutine.
func (q *Queue) Start(ctx context.Context) {
	q.wg.Add(1)
	go q.run(ctx)
}

// Stop signals shutdown and waits for the worker to drain and exit.
func (q *Queue) Stop() {
	q.mu.Lock()
	q.shutdown = true
	q.cond.Broadcast()
	q.mu.Unlock()

	q.wg.Wait()
}

func (q *Queue) run(ctx context.Context) {
	defer q.wg.Done()

	for {
		task, ok := q.pop()
		if !ok {
			return
		}
		q.process(ctx, task)
	}
}

func (q *Queue) process(ctx context.Context, task Task) {
	var err error
	switch task.Op {
	case Update:
		err = q.sender.SendUpdate(ctx, task.Filename)
	case Delete:
		err = q.sender.SendDelete(ctx, task.Filename)
	}

	if err == nil {
		q.retryMu.Lock()
		delete(q.retries, task.Filename)
		q.retryMu.Unlock()
		metrics.ObserveReplicationTask(task.Op.String(), "ok")
		return
	}

	if isSkip(err) {
		logger.Info("skipping replication task", logger.Filename(task.Filename),
			logger.Operation(task.Op.String()), logger.Err(err))
		metrics.ObserveReplicationTask(task.Op.String(), "skipped")
		return
	}

	q.retryMu.Lock()
	q.retries[task.Filename]++
	count := q.retries[task.Filename]
	q.retryMu.Unlock()

	if count > q.retryCap {
		logger.Error("abandoning replication task after exceeding retry cap",
			logger.Filename(task.Filename), logger.Operation(task.Op.String()),
			logger.RetryCount(count), logger.Err(err))
		q.retryMu.Lock()
		delete(q.retries, task.Filename)
		q.retryMu.Unlock()
		metrics.ObserveReplicationTask(task.Op.String(), "abandoned")
		return
	}

	logger.Warn("replication task failed, re-queueing",
		logger.Filename(task.Filename), logger.Operation(task.Op.String()),
		logger.RetryCount(count), logger.Err(err))
	q.push(task)
}
