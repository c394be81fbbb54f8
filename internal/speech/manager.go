package speech

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/biglexj/prisma-vtuber/internal/events"
	"github.com/biglexj/prisma-vtuber/internal/queue"
	"github.com/biglexj/prisma-vtuber/internal/sanitize"
)

// Manager queues utterances and speaks them one at a time on a single
// worker goroutine. The worker runs until Close, independent of whether
// chat ingestion is running, so queued replies are still spoken after a
// stop.
type Manager struct {
	speaker Speaker
	sink    events.Sink
	queue   *queue.UtteranceQueue

	// Worker lifecycle
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	statsMu sync.RWMutex
	stats   Stats
}

// Stats tracks what the worker has done.
type Stats struct {
	Spoken     int64
	Failed     int64
	Dropped    int64 // blank text rejected by Enqueue
	Speaking   bool
	LastSpoken time.Time
	LastError  error
	Queue      queue.Stats
}

// Option configures a Manager.
type Option func(*Manager)

// WithSink sends speech events to s.
func WithSink(s events.Sink) Option {
	return func(m *Manager) {
		m.sink = s
	}
}

// NewManager creates a Manager and starts its worker.
func NewManager(speaker Speaker, opts ...Option) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		speaker: speaker,
		sink:    events.Discard,
		queue:   queue.NewUtteranceQueue(),
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}

	go m.run()
	return m
}

// Enqueue adds text to the tail of the queue and returns at once. Blank
// text is dropped with a warning. It reports whether the text was queued.
func (m *Manager) Enqueue(text string) bool {
	if sanitize.IsBlank(text) {
		log.Warn("Dropping empty utterance")
		m.statsMu.Lock()
		m.stats.Dropped++
		m.statsMu.Unlock()
		return false
	}

	u, err := m.queue.Enqueue(text)
	if err != nil {
		log.Warn("Speech queue is closed, dropping utterance", "text", text)
		m.statsMu.Lock()
		m.stats.Dropped++
		m.statsMu.Unlock()
		return false
	}

	log.Debug("Queued utterance", "id", u.ID, "pending", m.queue.Size())
	return true
}

// Pending returns how many utterances are waiting to be spoken.
func (m *Manager) Pending() int {
	return m.queue.Size()
}

// Stats returns a snapshot of the worker counters.
func (m *Manager) Stats() Stats {
	m.statsMu.RLock()
	s := m.stats
	m.statsMu.RUnlock()

	s.Queue = m.queue.GetStats()
	return s
}

// Clear drops every utterance that has not started playing.
func (m *Manager) Clear() int {
	n := m.queue.Clear()
	if n > 0 {
		log.Info("Cleared speech queue", "dropped", n)
	}
	return n
}

// Close stops accepting utterances. Already queued ones are still spoken.
func (m *Manager) Close() {
	m.queue.Close()
}

// Wait blocks until the worker has spoken everything queued before Close.
// If ctx ends first, the utterance in progress is abandoned and the rest of
// the queue is discarded.
func (m *Manager) Wait(ctx context.Context) error {
	select {
	case <-m.done:
		return nil
	case <-ctx.Done():
		m.cancel()
		<-m.done
		return ctx.Err()
	}
}

// Shutdown is Close followed by Wait.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.Close()
	return m.Wait(ctx)
}

// Done is closed when the worker exits.
func (m *Manager) Done() <-chan struct{} {
	return m.done
}

func (m *Manager) run() {
	defer close(m.done)
	defer m.cancel()

	for {
		u, err := m.queue.Dequeue(m.ctx)
		if err != nil {
			if !errors.Is(err, queue.ErrQueueClosed) && !errors.Is(err, context.Canceled) {
				log.Error("Speech queue failed", "err", err)
			}
			return
		}
		if m.ctx.Err() != nil {
			n := m.queue.Clear() + 1
			log.Warn("Discarding unspoken utterances", "count", n, "first", u.Text)
			return
		}
		m.speak(u)
	}
}

func (m *Manager) speak(u queue.Utterance) {
	m.statsMu.Lock()
	m.stats.Speaking = true
	m.statsMu.Unlock()

	start := time.Now()
	err := m.callSpeaker(u.Text)

	m.statsMu.Lock()
	m.stats.Speaking = false
	if err != nil {
		m.stats.Failed++
		m.stats.LastError = err
	} else {
		m.stats.Spoken++
		m.stats.LastSpoken = time.Now()
	}
	m.statsMu.Unlock()

	if err != nil {
		log.Error("Failed to speak utterance", "id", u.ID, "err", err)
		events.Emitf(m.sink, events.KindError, "speech failed: %v", err)
		return
	}

	log.Debug("Spoke utterance", "id", u.ID,
		"waited", start.Sub(u.EnqueuedAt).Round(time.Millisecond),
		"took", time.Since(start).Round(time.Millisecond))
	m.sink.Emit(events.New(events.KindSpeech, u.Text))
}

// callSpeaker runs the speaker, turning a panic into an error so one bad
// utterance cannot kill the worker.
func (m *Manager) callSpeaker(text string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = NewSynthesisError(ErrorCodeEngineFailure, "speaker panicked", fmt.Errorf("%v", r))
		}
	}()
	return m.speaker.Speak(m.ctx, text)
}
