// Package chat reads live chat messages from a stream. A Source is connected
// once per processing run, polled until it stops being alive, then
// disconnected.
package chat

import (
	"context"
	"fmt"
	"io"
	"time"
)

// Message is one chat line.
type Message struct {
	Author string `json:"author"`
	Text   string `json:"text"`
}

// Source delivers chat messages.
type Source interface {
	// Connect attaches to the chat named by identifier. It fails with a
	// *ConnectionError.
	Connect(ctx context.Context, identifier string) error
	// IsAlive reports whether the chat can still deliver messages.
	IsAlive() bool
	// Poll returns the messages received since the last call. It may block
	// briefly and an empty result is valid.
	Poll(ctx context.Context) ([]Message, error)
	Disconnect() error
}

// ConnectionError is returned when a source cannot attach to a chat.
type ConnectionError struct {
	Source     string
	Identifier string
	Err        error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("%s: cannot connect to %q: %v", e.Source, e.Identifier, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// Options tune the sources built by New.
type Options struct {
	APIKey       string        // YouTube Data API key
	PollInterval time.Duration // lower bound between polls
	SkipBacklog  bool          // ignore messages sent before Connect
	Input        io.Reader     // console input, stdin when nil
}

// DefaultPollInterval is used when Options.PollInterval is zero.
const DefaultPollInterval = time.Second

// New builds the source named kind.
func New(kind string, opts Options) (Source, error) {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	switch kind {
	case "youtube":
		return NewYouTube(opts), nil
	case "websocket":
		return NewWebSocket(opts.PollInterval), nil
	case "console":
		return NewConsole(opts.Input, opts.PollInterval), nil
	default:
		return nil, fmt.Errorf("unknown chat source %q", kind)
	}
}
