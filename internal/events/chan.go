package events

import (
	"sync"
	"sync/atomic"
)

// ChanSink delivers events on a buffered channel. When the reader falls
// behind, new events are dropped rather than blocking the pipeline.
type ChanSink struct {
	ch      chan Event
	dropped atomic.Int64

	mu     sync.RWMutex
	closed bool
}

// NewChanSink creates a sink with room for size undelivered events.
func NewChanSink(size int) *ChanSink {
	return &ChanSink{ch: make(chan Event, size)}
}

func (s *ChanSink) Emit(e Event) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return
	}
	select {
	case s.ch <- e:
	default:
		s.dropped.Add(1)
	}
}

// C returns the delivery channel. It is closed by Close.
func (s *ChanSink) C() <-chan Event {
	return s.ch
}

// Dropped reports how many events were discarded because the buffer was full.
func (s *ChanSink) Dropped() int64 {
	return s.dropped.Load()
}

// Close closes the channel. Later events are ignored.
func (s *ChanSink) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.closed {
		s.closed = true
		close(s.ch)
	}
}
