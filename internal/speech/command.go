package speech

import (
	"context"
	"time"

	"github.com/charmbracelet/log"

	"github.com/biglexj/prisma-vtuber/internal/sanitize"
)

// DefaultCommandTimeout bounds one call to an external speech program.
const DefaultCommandTimeout = 30 * time.Second

// CommandSpeaker hands text to an external program that speaks it itself,
// such as espeak-ng or say. The text is written to the program's stdin.
type CommandSpeaker struct {
	Program string
	Args    []string
	Timeout time.Duration
}

// NewCommandSpeaker creates a CommandSpeaker. A zero timeout means
// DefaultCommandTimeout.
func NewCommandSpeaker(program string, args []string, timeout time.Duration) *CommandSpeaker {
	if timeout <= 0 {
		timeout = DefaultCommandTimeout
	}
	return &CommandSpeaker{Program: program, Args: args, Timeout: timeout}
}

// Speak runs the program and waits for it to exit.
func (c *CommandSpeaker) Speak(ctx context.Context, text string) error {
	if sanitize.IsBlank(text) {
		return NewSynthesisError(ErrorCodeInvalidInput, "nothing to speak", ErrEmptyText)
	}

	log.Debug("Running speech command", "program", c.Program, "chars", len(text))
	if _, err := RunCommand(ctx, c.Timeout, text, c.Program, c.Args...); err != nil {
		return engineError(err).WithContext("program", c.Program)
	}
	return nil
}
