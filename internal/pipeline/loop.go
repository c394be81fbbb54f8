package pipeline

import (
	"context"
	"time"

	"github.com/charmbracelet/log"

	"github.com/biglexj/prisma-vtuber/internal/chat"
	"github.com/biglexj/prisma-vtuber/internal/events"
)

// Handler answers one chat message.
type Handler interface {
	Handle(ctx context.Context, msg chat.Message) Result
}

// DefaultRetryDelay is how long the loop waits after a failed poll.
const DefaultRetryDelay = time.Second

// Loop polls a connected source and dispatches messages one at a time, in
// arrival order, for as long as the run state allows and the source is
// alive.
type Loop struct {
	State      *RunState
	Source     chat.Source
	Handler    Handler
	Sink       events.Sink
	RetryDelay time.Duration
}

// Run blocks until the run state is stopped, the source goes away or ctx
// ends. On return the run state is stopped and the source disconnected.
func (l *Loop) Run(ctx context.Context) {
	sink := l.Sink
	if sink == nil {
		sink = events.Discard
	}
	retry := l.RetryDelay
	if retry <= 0 {
		retry = DefaultRetryDelay
	}

	defer func() {
		l.State.Stop()
		if err := l.Source.Disconnect(); err != nil {
			log.Warn("Failed to disconnect chat source", "err", err)
		}
		log.Info("Chat processing finished")
		events.Emitf(sink, events.KindState, "chat processing finished")
	}()

	for l.State.IsRunning() {
		if !l.Source.IsAlive() {
			log.Info("Chat source is gone, stopping")
			events.Emitf(sink, events.KindWarn, "chat disconnected")
			return
		}
		if ctx.Err() != nil {
			return
		}

		msgs, err := l.Source.Poll(ctx)
		if err != nil {
			log.Warn("Chat poll failed", "err", err)
			select {
			case <-time.After(retry):
			case <-ctx.Done():
				return
			}
			continue
		}

		for _, msg := range msgs {
			if !l.State.IsRunning() {
				log.Debug("Stopped mid-batch", "skipped", len(msgs))
				return
			}
			l.Handler.Handle(ctx, msg)
		}
	}
}
