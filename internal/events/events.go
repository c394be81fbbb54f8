// Package events carries pipeline status (incoming chat, rule hits,
// reply fragments, speech) to whoever is watching: the log, the TUI, or a
// Redis channel an overlay subscribes to.
package events

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// Kind classifies an event.
type Kind int

const (
	KindInfo     Kind = iota
	KindState         // pipeline started or stopped
	KindChat          // a message arrived from chat
	KindRule          // a canned rule answered
	KindFragment      // a piece of a streamed reply
	KindReply         // a complete reply was queued for speech
	KindSpeech        // an utterance finished playing
	KindWarn
	KindError
)

var kindNames = [...]string{
	KindInfo:     "info",
	KindState:    "state",
	KindChat:     "chat",
	KindRule:     "rule",
	KindFragment: "fragment",
	KindReply:    "reply",
	KindSpeech:   "speech",
	KindWarn:     "warn",
	KindError:    "error",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "unknown"
	}
	return kindNames[k]
}

// MarshalText encodes the kind by name.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText decodes a kind name.
func (k *Kind) UnmarshalText(b []byte) error {
	name := strings.ToLower(string(b))
	for i, n := range kindNames {
		if n == name {
			*k = Kind(i)
			return nil
		}
	}
	return fmt.Errorf("unknown event kind %q", b)
}

// Event is one status update.
type Event struct {
	Time   time.Time `json:"time"`
	Kind   Kind      `json:"kind"`
	Author string    `json:"author,omitempty"`
	Text   string    `json:"text"`
}

// New stamps an event with the current time.
func New(kind Kind, text string) Event {
	return Event{Time: time.Now(), Kind: kind, Text: text}
}

// Sink receives events. Emit must not block for long.
type Sink interface {
	Emit(Event)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Event)

func (f SinkFunc) Emit(e Event) { f(e) }

// Discard drops every event.
var Discard Sink = SinkFunc(func(Event) {})

// Emitf builds and emits an event. A nil sink is ignored.
func Emitf(s Sink, kind Kind, format string, args ...any) {
	if s == nil {
		return
	}
	s.Emit(New(kind, fmt.Sprintf(format, args...)))
}

type multi []Sink

func (m multi) Emit(e Event) {
	for _, s := range m {
		s.Emit(e)
	}
}

// Multi fans events out to every non-nil sink in order.
func Multi(sinks ...Sink) Sink {
	var m multi
	for _, s := range sinks {
		if s != nil {
			m = append(m, s)
		}
	}
	if len(m) == 1 {
		return m[0]
	}
	return m
}

// Recorder keeps every event it receives.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Emit(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

// Events returns a copy of what was recorded.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Texts returns the text of every recorded event of kind.
func (r *Recorder) Texts(kind Kind) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []string
	for _, e := range r.events {
		if e.Kind == kind {
			out = append(out, e.Text)
		}
	}
	return out
}
