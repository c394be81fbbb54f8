package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/biglexj/prisma-vtuber/internal/chat"
	"github.com/biglexj/prisma-vtuber/internal/config"
	"github.com/biglexj/prisma-vtuber/internal/events"
	"github.com/biglexj/prisma-vtuber/internal/generate"
	"github.com/biglexj/prisma-vtuber/internal/rules"
	"github.com/biglexj/prisma-vtuber/internal/sanitize"
)

// RuleMatcher finds a canned response for a message.
type RuleMatcher interface {
	Explain(message string) rules.Result
}

// Enqueuer accepts utterances for the speaker without blocking.
type Enqueuer interface {
	Enqueue(text string) bool
}

// ReplySource says where the reply to a message came from.
type ReplySource int

const (
	SourceRule      ReplySource = iota // canned rule response
	SourceGenerated                    // language model reply
	SourceFallback                     // generation failed, fallback phrase
	SourceDiscarded                    // model reply was blank after cleaning
)

func (s ReplySource) String() string {
	switch s {
	case SourceRule:
		return "rule"
	case SourceGenerated:
		return "generated"
	case SourceFallback:
		return "fallback"
	case SourceDiscarded:
		return "discarded"
	default:
		return fmt.Sprintf("ReplySource(%d)", int(s))
	}
}

// Result is the outcome of handling one message.
type Result struct {
	Source ReplySource
	Text   string // what was queued, empty when discarded
	Rule   string // rule key for SourceRule
	Err    error  // generation failure for SourceFallback
}

// Orchestrator decides how to answer each message. Handle and BeginSession
// must not be called concurrently with each other.
type Orchestrator struct {
	rules    RuleMatcher
	backend  generate.Backend
	speech   Enqueuer
	sink     events.Sink
	fallback string
	timeout  time.Duration

	mu      sync.Mutex
	session generate.Session
}

// OrchestratorOption configures an Orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithEvents sends status events to s.
func WithEvents(s events.Sink) OrchestratorOption {
	return func(o *Orchestrator) {
		if s != nil {
			o.sink = s
		}
	}
}

// WithFallback sets the phrase spoken when generation fails.
func WithFallback(phrase string) OrchestratorOption {
	return func(o *Orchestrator) {
		o.fallback = phrase
	}
}

// WithGenerationTimeout bounds one reply stream. Zero means no bound.
func WithGenerationTimeout(d time.Duration) OrchestratorOption {
	return func(o *Orchestrator) {
		o.timeout = d
	}
}

// NewOrchestrator wires the rule matcher, the language model and the speech
// queue together.
func NewOrchestrator(matcher RuleMatcher, backend generate.Backend, speech Enqueuer, opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		rules:    matcher,
		backend:  backend,
		speech:   speech,
		sink:     events.Discard,
		fallback: config.DefaultFallback,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// BeginSession opens a fresh conversation, dropping any earlier one.
func (o *Orchestrator) BeginSession(ctx context.Context, systemPrompt string) error {
	session, err := o.backend.OpenSession(ctx, systemPrompt)
	if err != nil {
		var gerr *generate.GenerationError
		if !errors.As(err, &gerr) {
			err = &generate.GenerationError{Backend: o.backend.Name(), Op: "open session", Err: err}
		}
		return err
	}

	o.mu.Lock()
	o.session = session
	o.mu.Unlock()
	log.Info("New conversation started", "backend", o.backend.Name())
	return nil
}

// EndSession forgets the current conversation.
func (o *Orchestrator) EndSession() {
	o.mu.Lock()
	o.session = nil
	o.mu.Unlock()
}

// Prompt frames a chat message for the language model.
func Prompt(msg chat.Message) string {
	return msg.Author + " dice: " + msg.Text
}

// Handle answers one message. Nothing that goes wrong here is returned to
// the caller; failures end up in the Result and the log.
func (o *Orchestrator) Handle(ctx context.Context, msg chat.Message) Result {
	o.emit(events.KindChat, msg.Author, msg.Text)

	if o.rules != nil {
		if hit := o.rules.Explain(msg.Text); hit.Matched {
			log.Info("Rule matched", "rule", hit.Key, "score", fmt.Sprintf("%.0f", hit.Score))
			events.Emitf(o.sink, events.KindRule, "regla %q (%.0f)", hit.Key, hit.Score)
			o.emit(events.KindReply, "", hit.Response)
			o.enqueue(hit.Response)
			return Result{Source: SourceRule, Text: hit.Response, Rule: hit.Key}
		}
	}

	text, err := o.generate(ctx, msg)
	if err != nil {
		log.Error("Generation failed, speaking fallback", "author", msg.Author, "err", err)
		events.Emitf(o.sink, events.KindError, "generation failed: %v", err)

		phrase := sanitize.Sanitize(o.fallback)
		o.emit(events.KindReply, "", phrase)
		o.enqueue(phrase)
		return Result{Source: SourceFallback, Text: phrase, Err: err}
	}

	if sanitize.IsBlank(text) {
		log.Debug("Discarding blank reply", "author", msg.Author)
		return Result{Source: SourceDiscarded}
	}

	o.emit(events.KindReply, "", text)
	o.enqueue(text)
	return Result{Source: SourceGenerated, Text: text}
}

// generate streams the model's reply, cleaning each fragment as it arrives.
// Fragments are discarded if the stream fails partway.
func (o *Orchestrator) generate(ctx context.Context, msg chat.Message) (string, error) {
	o.mu.Lock()
	session := o.session
	o.mu.Unlock()
	if session == nil {
		return "", &generate.GenerationError{Backend: o.backend.Name(), Op: "stream reply", Err: generate.ErrNoSession}
	}

	if o.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}

	var sb strings.Builder
	for fragment, err := range session.StreamReply(ctx, Prompt(msg)) {
		if err != nil {
			var gerr *generate.GenerationError
			if !errors.As(err, &gerr) {
				err = &generate.GenerationError{Backend: o.backend.Name(), Op: "stream reply", Err: err}
			}
			return "", err
		}
		clean := sanitize.Sanitize(fragment)
		o.emit(events.KindFragment, "", clean)
		sb.WriteString(clean)
	}
	return sb.String(), nil
}

func (o *Orchestrator) enqueue(text string) {
	if !o.speech.Enqueue(text) {
		log.Debug("Utterance was not queued", "text", text)
	}
}

func (o *Orchestrator) emit(kind events.Kind, author, text string) {
	e := events.New(kind, text)
	e.Author = author
	o.sink.Emit(e)
}
