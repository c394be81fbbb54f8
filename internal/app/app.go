// Package app assembles prisma from its configuration: the chat source, the
// language model, the persona, the speech stack and the status sinks.
package app

import (
	"context"
	"errors"
	"io"

	"github.com/charmbracelet/log"

	"github.com/biglexj/prisma-vtuber/internal/chat"
	"github.com/biglexj/prisma-vtuber/internal/config"
	"github.com/biglexj/prisma-vtuber/internal/events"
	"github.com/biglexj/prisma-vtuber/internal/generate"
	"github.com/biglexj/prisma-vtuber/internal/persona"
	"github.com/biglexj/prisma-vtuber/internal/pipeline"
	"github.com/biglexj/prisma-vtuber/internal/rules"
	"github.com/biglexj/prisma-vtuber/internal/speech"
)

// Options are the parts of the process environment the app needs.
type Options struct {
	Events events.Sink // extra sink, e.g. the TUI
	Input  io.Reader   // console chat input, stdin when nil
	Output io.Writer   // where the print engine writes, the log when nil
}

// App is a fully wired prisma instance.
type App struct {
	Config   config.Config
	Persona  persona.Personality
	Rules    rules.RuleSet
	Matcher  *rules.Matcher
	Backend  generate.Backend
	Speech   *speech.Manager
	Pipeline *pipeline.Pipeline
	Events   events.Sink

	input   io.Reader
	speaker speech.Speaker
	closers []io.Closer
}

// New builds an App. Missing rules or personality degrade to defaults;
// a language model or speech backend that cannot be set up is an error.
func New(ctx context.Context, cfg config.Config, opts Options) (*App, error) {
	a := &App{Config: cfg, input: opts.Input}

	sinks := []events.Sink{events.NewLogSink(nil), opts.Events}
	if cfg.Events.RedisURL != "" {
		rs, err := events.NewRedisSink(ctx, cfg.Events.RedisURL, cfg.Events.RedisChannel)
		if err != nil {
			log.Warn("Not publishing events to redis", "err", err)
		} else {
			sinks = append(sinks, rs)
			a.closers = append(a.closers, rs)
		}
	}
	a.Events = events.Multi(sinks...)

	a.Persona = persona.LoadOrDefault(cfg.Persona.Personality)
	a.Rules = rules.LoadOrEmpty(cfg.Persona.Rules)
	a.Matcher = rules.NewMatcher(a.Rules)

	backend, err := NewBackend(ctx, cfg)
	if err != nil {
		a.close()
		return nil, err
	}
	a.Backend = backend

	speaker, err := NewSpeaker(cfg.Speech, opts.Output)
	if err != nil {
		a.close()
		return nil, err
	}
	a.speaker = speaker
	if c, ok := speaker.(io.Closer); ok {
		a.closers = append(a.closers, c)
	}
	a.Speech = speech.NewManager(speaker, speech.WithSink(a.Events))

	orch := pipeline.NewOrchestrator(a.Matcher, backend, a.Speech,
		pipeline.WithEvents(a.Events),
		pipeline.WithFallback(cfg.Persona.Fallback),
		pipeline.WithGenerationTimeout(cfg.Generation.Timeout),
	)
	a.Pipeline = pipeline.New(orch, a.Persona.SystemPrompt(), a.Events)

	log.Debug("App ready",
		"chat", cfg.Chat.Source,
		"backend", backend.Name(),
		"engine", cfg.Speech.Engine,
		"rules", a.Matcher.Len())
	return a, nil
}

// NewSource builds the configured chat source.
func (a *App) NewSource() (chat.Source, error) {
	return chat.New(a.Config.Chat.Source, chat.Options{
		APIKey:       a.Config.Secrets.YouTubeAPIKey,
		PollInterval: a.Config.Chat.PollInterval,
		SkipBacklog:  a.Config.Chat.SkipBacklog,
		Input:        a.input,
	})
}

// Start connects to the chat named by identifier and starts answering.
func (a *App) Start(ctx context.Context, identifier string) error {
	source, err := a.NewSource()
	if err != nil {
		return err
	}
	return a.Pipeline.Start(ctx, source, identifier)
}

// Stop halts chat processing. Queued replies are still spoken.
func (a *App) Stop() {
	a.Pipeline.Stop()
}

func (a *App) IsRunning() bool {
	return a.Pipeline.IsRunning()
}

// Pending returns how many replies wait to be spoken.
func (a *App) Pending() int {
	return a.Speech.Pending()
}

// Shutdown stops processing, waits for the loop and for queued speech, then
// releases everything. If ctx ends first, unspoken replies are dropped.
func (a *App) Shutdown(ctx context.Context) error {
	a.Stop()

	var err error
	select {
	case <-a.Pipeline.Done():
	case <-ctx.Done():
		err = ctx.Err()
	}
	err = errors.Join(err, a.Speech.Shutdown(ctx))
	return errors.Join(err, a.close())
}

func (a *App) close() error {
	var err error
	for i := len(a.closers) - 1; i >= 0; i-- {
		err = errors.Join(err, a.closers[i].Close())
	}
	a.closers = nil
	return err
}
