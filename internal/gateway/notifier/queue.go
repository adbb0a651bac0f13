package notifier

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"crossguard/internal/logger"
)

var (
	ErrQueueFull   = errors.New("notifier: queue full")
	ErrQueueClosed = errors.New("notifier: queue closed")
)

const DefaultQueueSize = 64

// Queue 用单个 worker 串行发送；缓冲满时丢弃，交易路径从不阻塞在通知上。
type Queue struct {
	next TextNotifier
	ch   chan string
	done chan struct{}

	mu      sync.RWMutex
	closed  bool
	dropped atomic.Int64
}

func NewQueue(next TextNotifier, size int) *Queue {
	if size <= 0 {
		size = DefaultQueueSize
	}
	q := &Queue{next: next, ch: make(chan string, size), done: make(chan struct{})}
	go q.loop()
	return q
}

// SendText enqueues text without blocking.
func (q *Queue) SendText(text string) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}
	select {
	case q.ch <- text:
		return nil
	default:
		q.dropped.Add(1)
		return ErrQueueFull
	}
}

func (q *Queue) Dropped() int64 { return q.dropped.Load() }

func (q *Queue) loop() {
	defer close(q.done)
	for text := range q.ch {
		if err := q.next.SendText(text); err != nil {
			logger.Warnf("通知发送失败: %v", err)
		}
	}
}

// Close stops accepting messages and waits up to timeout for the backlog.
func (q *Queue) Close(timeout time.Duration) error {
	if q == nil {
		return nil
	}
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.ch)
	}
	q.mu.Unlock()
	select {
	case <-q.done:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("notifier queue: %d messages unsent after %s", len(q.ch), timeout)
	}
}
