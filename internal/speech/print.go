package speech

import (
	"context"
	"fmt"
	"io"

	"github.com/charmbracelet/log"
)

// PrintSpeaker writes utterances instead of speaking them. With a nil
// writer it logs them.
type PrintSpeaker struct {
	W io.Writer
}

func (p PrintSpeaker) Speak(_ context.Context, text string) error {
	if p.W == nil {
		log.Info("Speaking", "text", text)
		return nil
	}
	_, err := fmt.Fprintln(p.W, text)
	return err
}
