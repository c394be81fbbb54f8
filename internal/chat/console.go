package chat

import (
	"bufio"
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// ConsoleAuthor is used for lines without an "author: " prefix.
const ConsoleAuthor = "consola"

// Console reads "author: text" lines from a reader, stdin by default. It is
// meant for rehearsing a persona without a live stream.
type Console struct {
	in   io.Reader
	wait time.Duration

	once sync.Once
	mu   sync.Mutex
	box  *mailbox
	eof  bool
}

// NewConsole creates a console source reading from in.
func NewConsole(in io.Reader, wait time.Duration) *Console {
	if in == nil {
		in = os.Stdin
	}
	return &Console{in: in, wait: wait}
}

// Connect starts delivering lines. The identifier is ignored.
func (c *Console) Connect(_ context.Context, identifier string) error {
	c.mu.Lock()
	if c.eof {
		c.mu.Unlock()
		return &ConnectionError{Source: "console", Identifier: identifier, Err: io.EOF}
	}
	c.box = newMailbox()
	c.mu.Unlock()

	c.once.Do(func() { go c.read() })
	return nil
}

func (c *Console) IsAlive() bool {
	c.mu.Lock()
	box := c.box
	c.mu.Unlock()
	return box != nil && box.isAlive()
}

func (c *Console) Poll(ctx context.Context) ([]Message, error) {
	c.mu.Lock()
	box := c.box
	c.mu.Unlock()
	if box == nil {
		return nil, errors.New("console: not connected")
	}
	return box.take(ctx, c.wait), nil
}

// Disconnect stops delivering lines. Lines typed while disconnected are
// dropped.
func (c *Console) Disconnect() error {
	c.mu.Lock()
	c.box = nil
	c.mu.Unlock()
	return nil
}

// read runs for the life of the reader since a blocked read cannot be
// interrupted.
func (c *Console) read() {
	scanner := bufio.NewScanner(c.in)
	for scanner.Scan() {
		msg, ok := ParseLine(scanner.Text())
		if !ok {
			continue
		}
		c.mu.Lock()
		if c.box != nil {
			c.box.push(msg)
		}
		c.mu.Unlock()
	}
	if err := scanner.Err(); err != nil {
		log.Warn("Console input failed", "err", err)
	}

	c.mu.Lock()
	c.eof = true
	if c.box != nil {
		c.box.hangUp()
	}
	c.mu.Unlock()
}

// ParseLine splits "author: text". Lines without a prefix are attributed to
// ConsoleAuthor. Blank lines are rejected.
func ParseLine(line string) (Message, bool) {
	line = strings.TrimSpace(line)
	if line == "" {
		return Message{}, false
	}
	author, text, found := strings.Cut(line, ":")
	author, text = strings.TrimSpace(author), strings.TrimSpace(text)
	if !found || author == "" || strings.ContainsAny(author, " \t") || text == "" {
		return Message{Author: ConsoleAuthor, Text: line}, true
	}
	return Message{Author: author, Text: text}, true
}
