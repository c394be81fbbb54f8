package pipeline

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/biglexj/prisma-vtuber/internal/chat"
	"github.com/biglexj/prisma-vtuber/internal/events"
)

// ErrAlreadyRunning is returned by Start while a run is still active.
var ErrAlreadyRunning = errors.New("chat processing is already running")

// Pipeline runs at most one ingestion loop at a time. Each run connects a
// source, opens a fresh conversation and polls until stopped.
type Pipeline struct {
	orch         *Orchestrator
	systemPrompt string
	sink         events.Sink

	// RetryDelay is passed to each Loop.
	RetryDelay time.Duration

	state RunState

	mu     sync.Mutex
	active bool
	done   chan struct{}
}

// New creates an idle Pipeline.
func New(orch *Orchestrator, systemPrompt string, sink events.Sink) *Pipeline {
	if sink == nil {
		sink = events.Discard
	}
	done := make(chan struct{})
	close(done)
	return &Pipeline{orch: orch, systemPrompt: systemPrompt, sink: sink, done: done}
}

// Start connects source to the chat named by identifier and starts polling
// in the background. A *chat.ConnectionError or a failure to open the
// conversation is returned and nothing is started.
func (p *Pipeline) Start(ctx context.Context, source chat.Source, identifier string) error {
	p.mu.Lock()
	if p.active {
		p.mu.Unlock()
		log.Warn("Chat processing is already running")
		return ErrAlreadyRunning
	}
	// Claim the run; connecting happens unlocked.
	done := make(chan struct{})
	p.active, p.done = true, done
	p.mu.Unlock()

	if err := p.open(ctx, source, identifier); err != nil {
		p.finish(done)
		return err
	}

	loop := &Loop{
		State:      &p.state,
		Source:     source,
		Handler:    p.orch,
		Sink:       p.sink,
		RetryDelay: p.RetryDelay,
	}
	p.state.Start()

	log.Info("Chat processing started", "identifier", identifier)
	events.Emitf(p.sink, events.KindState, "chat processing started")

	// The run outlives the caller's context; Stop ends it.
	runCtx := context.WithoutCancel(ctx)
	go func() {
		loop.Run(runCtx)
		p.orch.EndSession()
		p.finish(done)
	}()
	return nil
}

// open connects source and starts the conversation.
func (p *Pipeline) open(ctx context.Context, source chat.Source, identifier string) error {
	events.Emitf(p.sink, events.KindState, "connecting to %s", identifier)
	if err := source.Connect(ctx, identifier); err != nil {
		log.Error("Could not connect to chat", "err", err)
		events.Emitf(p.sink, events.KindError, "%v", err)
		return err
	}
	if err := p.orch.BeginSession(ctx, p.systemPrompt); err != nil {
		log.Error("Could not start conversation", "err", err)
		events.Emitf(p.sink, events.KindError, "%v", err)
		if derr := source.Disconnect(); derr != nil {
			log.Warn("Failed to disconnect chat source", "err", derr)
		}
		return err
	}
	return nil
}

// finish releases the run claimed by Start.
func (p *Pipeline) finish(done chan struct{}) {
	p.mu.Lock()
	p.active = false
	p.mu.Unlock()
	close(done)
}

// Stop asks the running loop to finish after the message in progress.
// Utterances already queued are still spoken.
func (p *Pipeline) Stop() {
	if p.state.IsRunning() {
		log.Info("Stopping chat processing")
		events.Emitf(p.sink, events.KindState, "stopping chat processing")
	}
	p.state.Stop()
}

// IsRunning reports whether the loop should keep polling.
func (p *Pipeline) IsRunning() bool {
	return p.state.IsRunning()
}

// Done is closed when the current, or last, run has ended.
func (p *Pipeline) Done() <-chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.done
}
