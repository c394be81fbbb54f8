package chat

import (
	"context"
	"sync"
	"time"
)

// mailbox buffers messages pushed by a reader goroutine until Poll takes
// them.
type mailbox struct {
	mu     sync.Mutex
	msgs   []Message
	alive  bool
	notify chan struct{}
}

func newMailbox() *mailbox {
	return &mailbox{alive: true, notify: make(chan struct{}, 1)}
}

func (b *mailbox) push(m Message) {
	b.mu.Lock()
	b.msgs = append(b.msgs, m)
	b.mu.Unlock()
	b.wake()
}

// hangUp marks the mailbox dead. Buffered messages can still be taken.
func (b *mailbox) hangUp() {
	b.mu.Lock()
	b.alive = false
	b.mu.Unlock()
	b.wake()
}

func (b *mailbox) isAlive() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.alive || len(b.msgs) > 0
}

func (b *mailbox) wake() {
	select {
	case b.notify <- struct{}{}:
	default:
	}
}

// take waits up to wait for at least one message and returns everything
// buffered.
func (b *mailbox) take(ctx context.Context, wait time.Duration) []Message {
	if msgs := b.drain(); len(msgs) > 0 {
		return msgs
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-b.notify:
	case <-timer.C:
	case <-ctx.Done():
	}
	return b.drain()
}

func (b *mailbox) drain() []Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	msgs := b.msgs
	b.msgs = nil
	return msgs
}
