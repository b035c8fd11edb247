package agent

import (
	"context"
	"errors"
	"fmt"
)

// defaultInboxCapacity bounds the inbound message queue.
const defaultInboxCapacity = 64

// ErrRouterStopped is returned when a message arrives after the
// dispatch loop has exited.
var ErrRouterStopped = errors.New("agent: router stopped")

// Message is one inbound broker message crossing from the transport
// callback into the dispatch goroutine.
type Message struct {
	Topic   string
	Payload []byte
}

// Router moves inbound messages from the paho receive path onto a
// bounded channel drained by a single dispatch goroutine. Handlers
// therefore never run inside the transport callback, and message order
// is preserved. When the queue is full Enqueue blocks rather than
// dropping; backpressure reaches the broker through the transport's
// flow control.
type Router struct {
	inbox chan Message
}

// NewRouter creates a router. capacity <= 0 uses the default.
func NewRouter(capacity int) *Router {
	if capacity <= 0 {
		capacity = defaultInboxCapacity
	}
	return &Router{inbox: make(chan Message, capacity)}
}

// Enqueue hands a message to the dispatch loop, blocking if the queue
// is full until space frees or ctx is cancelled.
func (r *Router) Enqueue(ctx context.Context, topic string, payload []byte) error {
	msg := Message{Topic: topic, Payload: payload}
	select {
	case r.inbox <- msg:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", ErrRouterStopped, ctx.Err())
	}
}

// Run drains the queue with the given dispatch function until ctx is
// cancelled. Dispatch errors are the dispatcher's problem to log; one
// bad message must not stop the loop.
func (r *Router) Run(ctx context.Context, dispatch func(ctx context.Context, msg Message)) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg := <-r.inbox:
			dispatch(ctx, msg)
		}
	}
}

// Pending returns the number of queued messages.
func (r *Router) Pending() int {
	return len(r.inbox)
}
