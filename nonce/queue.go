package nonce

import (
	"container/list"
	"context"
	"strings"
	"sync"
)

type waiter struct {
	ready   chan struct{}
	granted bool
}

// queue is the FIFO of one identity. refs counts the runner plus every
// waiter; the entry is dropped from Queues when it reaches zero.
type queue struct {
	refs    int
	busy    bool
	waiters *list.List
}

// Queues runs at most one task per identity at a time, in arrival order.
// Identities are compared case-insensitively.
type Queues struct {
	mu     sync.Mutex
	queues map[string]*queue
}

func NewQueues() *Queues {
	return &Queues{queues: make(map[string]*queue)}
}

// Acquire waits until identity's previous holders have released it. The
// returned release must be called exactly once. If ctx ends while waiting
// the position is given up and ctx.Err() is returned.
func (q *Queues) Acquire(ctx context.Context, identity string) (func(), error) {
	key := strings.ToLower(identity)

	q.mu.Lock()
	entry, ok := q.queues[key]
	if !ok {
		entry = &queue{waiters: list.New()}
		q.queues[key] = entry
	}
	entry.refs++
	if !entry.busy {
		entry.busy = true
		q.mu.Unlock()
		return q.releaser(key, entry), nil
	}

	w := &waiter{ready: make(chan struct{})}
	elem := entry.waiters.PushBack(w)
	q.mu.Unlock()

	select {
	case <-w.ready:
		return q.releaser(key, entry), nil
	case <-ctx.Done():
		q.mu.Lock()
		if w.granted {
			// handed the turn just as ctx ended; pass it on
			q.mu.Unlock()
			q.releaser(key, entry)()
			return nil, ctx.Err()
		}
		entry.waiters.Remove(elem)
		q.unref(key, entry)
		q.mu.Unlock()
		return nil, ctx.Err()
	}
}

func (q *Queues) releaser(key string, entry *queue) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			q.mu.Lock()
			defer q.mu.Unlock()

			if front := entry.waiters.Front(); front != nil {
				w := entry.waiters.Remove(front).(*waiter)
				w.granted = true
				close(w.ready)
			} else {
				entry.busy = false
			}
			q.unref(key, entry)
		})
	}
}

// unref must be called with q.mu held
func (q *Queues) unref(key string, entry *queue) {
	entry.refs--
	if entry.refs == 0 {
		delete(q.queues, key)
	}
}

// Len returns the number of identities currently holding a queue entry
func (q *Queues) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.queues)
}

// Pending returns how many tasks are running or waiting for identity
func (q *Queues) Pending(identity string) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	if entry, ok := q.queues[strings.ToLower(identity)]; ok {
		return entry.refs
	}
	return 0
}
