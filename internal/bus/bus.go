// Package bus provides a minimal in-process publish/subscribe layer for
// exchanging sensor, setpoint and actuator messages between the control
// loop and its collaborators.
//
// Each Topic holds the latest fully-written value plus a sequence number.
// Subscribers hold an Inbox with take-if-newer semantics: at most one
// pending value, no queueing, no torn reads. This mirrors how the control
// loop consumes every input: a non-blocking dirty-check poll that either
// yields a fresh snapshot or leaves the previously copied value in place.
// The gyro topic is additionally waited on with a bounded timeout, which
// is the single blocking point of the loop.
package bus

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrClosed is returned by Inbox.Wait when the topic has been closed by
// its publisher, e.g. a sensor driver that lost its device.
var ErrClosed = errors.New("bus: topic closed")

// Topic is a single-value publish/subscribe channel. The zero value is not
// usable; create topics with NewTopic.
type Topic[T any] struct {
	mu     sync.Mutex
	val    T
	seq    uint64
	closed bool
	notify chan struct{}

	subscribers map[string]*Inbox[T]
}

// NewTopic creates a topic seeded with an initial value at sequence zero.
// Subscribers created before the first Publish observe the initial value
// as already-consumed, so TakeIfNewer reports no update until a publisher
// writes.
func NewTopic[T any](initial T) *Topic[T] {
	return &Topic[T]{
		val:         initial,
		notify:      make(chan struct{}),
		subscribers: make(map[string]*Inbox[T]),
	}
}

// Publish stores v as the latest value and wakes any waiting subscribers.
// Publishing on a closed topic is a no-op.
func (t *Topic[T]) Publish(v T) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	t.val = v
	t.seq++
	close(t.notify)
	t.notify = make(chan struct{})
}

// Get returns the latest value and its sequence number.
func (t *Topic[T]) Get() (T, uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.val, t.seq
}

// Close marks the topic as closed and wakes all waiters. Used by sources
// that can fail permanently; subscribers observe ErrClosed from Wait.
func (t *Topic[T]) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	t.closed = true
	close(t.notify)
	t.notify = make(chan struct{})
}

// Subscribe creates a new Inbox for this topic. The inbox ID identifies
// the subscription for Unsubscribe.
func (t *Topic[T]) Subscribe() *Inbox[T] {
	t.mu.Lock()
	defer t.mu.Unlock()
	in := &Inbox[T]{
		topic: t,
		id:    uuid.NewString(),
		seen:  t.seq,
	}
	t.subscribers[in.id] = in
	return in
}

// Unsubscribe removes an inbox from the topic's subscriber registry.
func (t *Topic[T]) Unsubscribe(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.subscribers, id)
}

// SubscriberCount returns the number of live subscriptions.
func (t *Topic[T]) SubscriberCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.subscribers)
}

// Inbox is a per-subscriber view of a topic with at-most-one-pending-value
// semantics. Inboxes are not safe for concurrent use by multiple
// goroutines; each consumer owns its inbox.
type Inbox[T any] struct {
	topic *Topic[T]
	id    string
	seen  uint64
}

// ID returns the subscription identifier.
func (in *Inbox[T]) ID() string { return in.id }

// TakeIfNewer returns the latest value and true if the topic has been
// published since the last take. Otherwise it returns the current value
// and false, and the caller keeps whatever it copied last.
func (in *Inbox[T]) TakeIfNewer() (T, bool) {
	in.topic.mu.Lock()
	defer in.topic.mu.Unlock()
	if in.topic.seq == in.seen {
		return in.topic.val, false
	}
	in.seen = in.topic.seq
	return in.topic.val, true
}

// Latest returns the topic's current value without consuming the pending
// update, if any.
func (in *Inbox[T]) Latest() T {
	v, _ := in.topic.Get()
	return v
}

// Wait blocks until a value newer than the last take is available or the
// timeout elapses. It returns (true, nil) when an update is pending,
// (false, nil) on timeout and (false, ErrClosed) once the topic has been
// closed. A timeout is an expected outcome, not an error: callers re-check
// their exit condition and wait again.
func (in *Inbox[T]) Wait(timeout time.Duration) (bool, error) {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	for {
		in.topic.mu.Lock()
		if in.topic.seq != in.seen {
			in.topic.mu.Unlock()
			return true, nil
		}
		if in.topic.closed {
			in.topic.mu.Unlock()
			return false, ErrClosed
		}
		notify := in.topic.notify
		in.topic.mu.Unlock()

		select {
		case <-notify:
			// re-check under lock
		case <-deadline.C:
			return false, nil
		}
	}
}
