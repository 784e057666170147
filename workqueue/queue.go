// Package workqueue runs deferred work on a single background worker, one
// item at a time, in submission order.
package workqueue

import (
	"context"
	"errors"
	"sync"

	"github.com/sarchlab/i2cflash/hooking"
)

// ErrClosed is returned when submitting to a queue that has been closed.
var ErrClosed = errors.New("work queue is closed")

// HookPosEnqueue marks when an item is appended to the queue.
var HookPosEnqueue = &hooking.HookPos{Name: "Queue Enqueue"}

// HookPosDequeue marks when the worker takes an item from the queue.
var HookPosDequeue = &hooking.HookPos{Name: "Queue Dequeue"}

// HookPosComplete marks when the worker finishes an item.
var HookPosComplete = &hooking.HookPos{Name: "Queue Complete"}

// HookPosDiscard marks an item dropped by a discarding Close.
var HookPosDiscard = &hooking.HookPos{Name: "Queue Discard"}

// An Item is a unit of deferred work. The queue only moves items around; the
// Handler gives them meaning.
type Item interface{}

// A Handler executes items on the worker goroutine.
type Handler interface {
	Handle(item Item)
}

// CloseMode selects what happens to queued items when a queue is closed.
type CloseMode int

const (
	// Drain executes every queued item before the worker exits.
	Drain CloseMode = iota

	// Discard drops the items that have not started.
	Discard
)

// A Queue is an unbounded FIFO with exactly one consumer.
type Queue struct {
	hooking.HookableBase

	name    string
	handler Handler

	lock    sync.Mutex
	items   []Item
	running bool
	closed  bool
	started bool
	idle    chan struct{}

	notify chan struct{}
	stop   chan struct{}
	done   chan struct{}
}

// New creates a queue whose worker passes items to handler. The worker does
// not run until Start is called.
func New(name string, handler Handler) *Queue {
	if handler == nil {
		panic("workqueue: handler is nil")
	}

	idle := make(chan struct{})
	close(idle)

	return &Queue{
		name:    name,
		handler: handler,
		idle:    idle,
		notify:  make(chan struct{}, 1),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Name returns the name of the queue.
func (q *Queue) Name() string {
	return q.name
}

// Start launches the worker goroutine. Calling Start more than once has no
// effect.
func (q *Queue) Start() {
	q.lock.Lock()
	defer q.lock.Unlock()

	if q.started {
		return
	}

	q.started = true

	go q.work()
}

// Submit appends item to the tail of the queue. It never blocks. Enqueue
// hooks run before Submit returns, while the queue is locked, so they must not
// call back into the queue.
func (q *Queue) Submit(item Item) error {
	q.lock.Lock()

	if q.closed {
		q.lock.Unlock()
		return ErrClosed
	}

	q.items = append(q.items, item)
	q.markBusy()
	q.invoke(HookPosEnqueue, item)
	q.lock.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}

	return nil
}

// Len returns the number of items waiting to start.
func (q *Queue) Len() int {
	q.lock.Lock()
	defer q.lock.Unlock()

	return len(q.items)
}

// Running reports whether the worker is executing an item.
func (q *Queue) Running() bool {
	q.lock.Lock()
	defer q.lock.Unlock()

	return q.running
}

// WaitIdle blocks until nothing is queued or running, or ctx ends.
func (q *Queue) WaitIdle(ctx context.Context) error {
	for {
		q.lock.Lock()
		idle := q.idle
		isIdle := len(q.items) == 0 && !q.running
		q.lock.Unlock()

		if isIdle {
			return nil
		}

		select {
		case <-idle:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Close stops accepting items and stops the worker according to mode. The
// item being executed is always allowed to finish. Close returns ctx.Err() if
// ctx ends before the worker exits; the worker still exits on its own.
func (q *Queue) Close(ctx context.Context, mode CloseMode) error {
	q.lock.Lock()

	if q.closed {
		q.lock.Unlock()
		return q.waitDone(ctx)
	}

	q.closed = true

	var dropped []Item
	if mode == Discard {
		dropped = q.items
		q.items = nil
	}

	started := q.started
	if !started {
		dropped = append(dropped, q.items...)
		q.items = nil
		close(q.done)
	}

	q.markIdleIfDone()
	q.lock.Unlock()

	for _, item := range dropped {
		q.invoke(HookPosDiscard, item)
	}

	if started {
		close(q.stop)
	}

	return q.waitDone(ctx)
}

func (q *Queue) waitDone(ctx context.Context) error {
	select {
	case <-q.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *Queue) work() {
	defer close(q.done)

	for {
		item, ok := q.pop()
		if ok {
			q.execute(item)
			continue
		}

		select {
		case <-q.notify:
		case <-q.stop:
			if q.Len() == 0 {
				return
			}
		}
	}
}

func (q *Queue) pop() (Item, bool) {
	q.lock.Lock()
	defer q.lock.Unlock()

	if len(q.items) == 0 {
		return nil, false
	}

	item := q.items[0]
	q.items[0] = nil
	q.items = q.items[1:]
	q.running = true

	return item, true
}

func (q *Queue) execute(item Item) {
	q.invoke(HookPosDequeue, item)

	q.handler.Handle(item)

	q.invoke(HookPosComplete, item)

	q.lock.Lock()
	q.running = false
	q.markIdleIfDone()
	q.lock.Unlock()
}

// markBusy must be called with the lock held.
func (q *Queue) markBusy() {
	select {
	case <-q.idle:
		q.idle = make(chan struct{})
	default:
	}
}

// markIdleIfDone must be called with the lock held.
func (q *Queue) markIdleIfDone() {
	if len(q.items) > 0 || q.running {
		return
	}

	select {
	case <-q.idle:
	default:
		close(q.idle)
	}
}

func (q *Queue) invoke(pos *hooking.HookPos, item Item) {
	if q.NumHooks() == 0 {
		return
	}

	q.InvokeHook(hooking.HookCtx{
		Domain: q,
		Pos:    pos,
		Item:   item,
	})
}
