// Package generate talks to the language model that writes replies. A
// Backend opens a Session per processing run; the session remembers the
// conversation and streams each reply as a sequence of text fragments.
package generate

import (
	"context"
	"errors"
	"fmt"
	"iter"
)

// Fragments is a lazy, finite, single-use stream of reply text. A non-nil
// error ends the stream.
type Fragments = iter.Seq2[string, error]

// Backend opens conversation sessions.
type Backend interface {
	Name() string
	OpenSession(ctx context.Context, systemPrompt string) (Session, error)
}

// Session is one conversation. It is used by a single goroutine.
type Session interface {
	StreamReply(ctx context.Context, prompt string) Fragments
}

// ErrNoSession is reported when a reply is requested before a session was
// opened.
var ErrNoSession = errors.New("no open session")

// GenerationError wraps any failure to produce a reply.
type GenerationError struct {
	Backend string
	Op      string
	Err     error
}

func (e *GenerationError) Error() string {
	if e.Backend == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Backend, e.Op, e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

// Fail returns a stream that yields only err.
func Fail(err error) Fragments {
	return func(yield func(string, error) bool) {
		yield("", err)
	}
}

// Collect drains a stream into one string.
func Collect(fragments Fragments) (string, error) {
	var out []byte
	for text, err := range fragments {
		if err != nil {
			return string(out), err
		}
		out = append(out, text...)
	}
	return string(out), nil
}
