package pipeline

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/biglexj/prisma-vtuber/internal/chat"
	"github.com/biglexj/prisma-vtuber/internal/generate"
)

// fakeBackend replies to every prompt through script.
type fakeBackend struct {
	mu      sync.Mutex
	script  func(prompt string) ([]string, error)
	openErr error
	opened  []string // system prompts
	prompts []string
}

func (b *fakeBackend) Name() string { return "fake" }

func (b *fakeBackend) OpenSession(_ context.Context, systemPrompt string) (generate.Session, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.openErr != nil {
		return nil, b.openErr
	}
	b.opened = append(b.opened, systemPrompt)
	return &fakeSession{b: b}, nil
}

func (b *fakeBackend) Prompts() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.prompts...)
}

func (b *fakeBackend) Opened() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.opened)
}

type fakeSession struct{ b *fakeBackend }

// StreamReply yields the scripted fragments, then the scripted error.
func (s *fakeSession) StreamReply(_ context.Context, prompt string) generate.Fragments {
	s.b.mu.Lock()
	s.b.prompts = append(s.b.prompts, prompt)
	script := s.b.script
	s.b.mu.Unlock()

	return func(yield func(string, error) bool) {
		var (
			fragments []string
			err       error
		)
		if script != nil {
			fragments, err = script(prompt)
		}
		for _, f := range fragments {
			if !yield(f, nil) {
				return
			}
		}
		if err != nil {
			yield("", err)
		}
	}
}

func replyWith(fragments ...string) func(string) ([]string, error) {
	return func(string) ([]string, error) { return fragments, nil }
}

// recordingQueue stands in for the speech manager.
type recordingQueue struct {
	mu    sync.Mutex
	texts []string
}

func (q *recordingQueue) Enqueue(text string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.texts = append(q.texts, text)
	return true
}

func (q *recordingQueue) Texts() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]string(nil), q.texts...)
}

// scriptedSource returns one batch per poll. Once the batches run out it
// either dies or keeps returning nothing.
type scriptedSource struct {
	mu          sync.Mutex
	batches     [][]chat.Message
	dieWhenDone bool
	connectErr  error
	pollErrs    []error
	onPoll      func(n int)   // called before the n-th poll returns, 1-based
	connecting  chan struct{} // closed when Connect is entered
	release     chan struct{} // Connect waits for it when set

	connected   string
	polls       int
	disconnects int
	alive       bool
}

func (s *scriptedSource) Connect(_ context.Context, identifier string) error {
	if s.connecting != nil {
		close(s.connecting)
	}
	if s.release != nil {
		<-s.release
	}
	if s.connectErr != nil {
		return s.connectErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = identifier
	s.alive = true
	return nil
}

func (s *scriptedSource) IsAlive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.alive
}

func (s *scriptedSource) Poll(context.Context) ([]chat.Message, error) {
	s.mu.Lock()
	s.polls++
	n := s.polls
	var err error
	if n <= len(s.pollErrs) {
		err = s.pollErrs[n-1]
	}
	var batch []chat.Message
	if err == nil && len(s.batches) > 0 {
		batch, s.batches = s.batches[0], s.batches[1:]
	} else if err == nil && s.dieWhenDone {
		s.alive = false
	}
	onPoll := s.onPoll
	s.mu.Unlock()

	if onPoll != nil {
		onPoll(n)
	}
	if err != nil {
		return nil, err
	}
	if batch == nil {
		time.Sleep(time.Millisecond)
	}
	return batch, nil
}

func (s *scriptedSource) Disconnect() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.disconnects++
	s.alive = false
	return nil
}

func (s *scriptedSource) Polls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.polls
}

func (s *scriptedSource) Disconnects() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.disconnects
}

var errStream = errors.New("stream broke")

func msg(author, text string) chat.Message {
	return chat.Message{Author: author, Text: text}
}
