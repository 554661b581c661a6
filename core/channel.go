package core

import (
	"sync"
	"time"
)

// EventChannel is a bounded multi-producer / single-consumer queue of
// orchestration events. Any number of goroutines may Publish concurrently;
// exactly one consumer drains Events in arrival order.
//
// Contract:
//   - Publish blocks at most the configured publish timeout; a full buffer
//     past that point fails with ErrChannelOverflow so a slow consumer can
//     never wedge a session.
//   - CloseWith publishes the terminal event (Done or ErrorEvent) and closes
//     the channel exactly once; later Publish and CloseWith calls are no-ops
//     returning ErrChannelClosed.
//   - The terminal event is always the last event a consumer observes. One
//     buffer slot is reserved for it, so CloseWith delivers even when
//     producers have filled the buffer.
type EventChannel struct {
	ch             chan Event
	publishTimeout time.Duration

	mu     sync.RWMutex
	closed bool
}

// DefaultPublishTimeout bounds how long a producer may block on a full
// buffer before the session fails with ErrChannelOverflow.
const DefaultPublishTimeout = 5 * time.Second

// NewEventChannel creates a channel with the given buffer size and publish
// timeout. Non-positive arguments fall back to a buffer of 64 events and
// DefaultPublishTimeout. The underlying channel holds one extra slot that
// only the terminal event may occupy.
func NewEventChannel(buffer int, publishTimeout time.Duration) *EventChannel {
	if buffer <= 0 {
		buffer = 64
	}
	if publishTimeout <= 0 {
		publishTimeout = DefaultPublishTimeout
	}
	return &EventChannel{
		ch:             make(chan Event, buffer+1),
		publishTimeout: publishTimeout,
	}
}

// Events returns the consumer side. It is closed after the terminal event.
func (c *EventChannel) Events() <-chan Event { return c.ch }

// Publish enqueues a non-terminal event. It returns ErrChannelClosed after
// CloseWith and ErrChannelOverflow if the consumer does not drain the buffer
// within the publish timeout. Publishers are serialized so they can never
// take the slot reserved for the terminal event.
func (c *EventChannel) Publish(ev Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrChannelClosed
	}

	deadline := time.NewTimer(c.publishTimeout)
	defer deadline.Stop()
	tick := time.NewTicker(time.Millisecond)
	defer tick.Stop()

	// Under the lock only consumer receives change len, so once a free
	// non-reserved slot is observed the send below cannot block.
	for len(c.ch) >= cap(c.ch)-1 {
		select {
		case <-deadline.C:
			return ErrChannelOverflow
		case <-tick.C:
		}
	}
	c.ch <- ev
	return nil
}

// CloseWith publishes the terminal event and closes the channel for writing.
// Exactly one CloseWith succeeds per channel; every later call returns
// ErrChannelClosed without publishing. Delivery is unconditional: the
// reserved slot guarantees room even when producers filled the buffer.
func (c *EventChannel) CloseWith(terminal Event) error {
	// The write lock waits out in-flight Publish calls, so close never races
	// a send.
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrChannelClosed
	}
	c.closed = true

	c.ch <- terminal
	close(c.ch)
	return nil
}

// Closed reports whether the channel has been closed for writing.
func (c *EventChannel) Closed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}
