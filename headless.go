package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/muesli/termenv"

	"github.com/biglexj/prisma-vtuber/internal/app"
	"github.com/biglexj/prisma-vtuber/internal/config"
	"github.com/biglexj/prisma-vtuber/internal/events"
)

// transcript prints chat and replies as they happen, one line each, with
// the same tags the stream overlay uses.
type transcript struct {
	mu  sync.Mutex
	out *termenv.Output
}

func newTranscript(w io.Writer) *transcript {
	return &transcript{out: termenv.NewOutput(w)}
}

func (t *transcript) Emit(e events.Event) {
	var tag, color string
	switch e.Kind {
	case events.KindChat:
		tag, color = "CHAT", "#5FAFFF"
	case events.KindRule:
		tag, color = "RULE", "#FFD75F"
	case events.KindSpeech:
		tag, color = "ELY", "#FF5FD2"
	case events.KindState:
		tag, color = "INFO", "#626262"
	default:
		return
	}

	label := t.out.String("[" + tag + "]").Foreground(t.out.Color(color)).Bold()
	line := e.Text
	if e.Author != "" {
		line = t.out.String(e.Author).Bold().String() + ": " + line
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintf(t.out, "%s %s\n", label, line)
}

// runHeadless answers chat until the source closes or the process is
// interrupted, then lets queued speech finish.
func runHeadless(parent context.Context, cfg config.Config, identifier string) error {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, app.Options{Events: newTranscript(os.Stdout)})
	if err != nil {
		return err
	}
	if err := a.Start(ctx, identifier); err != nil {
		_ = a.Shutdown(context.Background())
		return err
	}

	select {
	case <-a.Pipeline.Done():
	case <-ctx.Done():
		// A second signal kills the process.
		stop()
		log.Info("Interrupted, finishing queued speech", "pending", a.Pending())
	}

	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := a.Shutdown(sctx); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			log.Warn("Gave up on queued speech", "timeout", shutdownTimeout)
			return nil
		}
		return err
	}
	return nil
}
