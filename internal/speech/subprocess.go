package speech

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"
)

// RunCommand runs name with args, writing stdin to the process before it
// starts and returning its stdout. The process gets an interrupt when
// timeout passes or ctx ends, and is killed 100ms later if still alive.
func RunCommand(ctx context.Context, timeout time.Duration, stdin string, name string, args ...string) ([]byte, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Cancel = func() error {
		return cmd.Process.Signal(os.Interrupt)
	}
	cmd.WaitDelay = 100 * time.Millisecond

	// Stdin is set before Start so the process never races its input
	if stdin != "" {
		cmd.Stdin = strings.NewReader(stdin)
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		if errors.Is(err, exec.ErrNotFound) || errors.Is(err, os.ErrNotExist) {
			return nil, NewSynthesisError(ErrorCodeEngineUnavailable, name+" not found", err)
		}
		return nil, fmt.Errorf("failed to start %s: %w", name, err)
	}

	err := cmd.Wait()

	switch ctxErr := ctx.Err(); {
	case errors.Is(ctxErr, context.DeadlineExceeded):
		return nil, NewSynthesisError(ErrorCodeEngineTimeout,
			fmt.Sprintf("%s timed out after %v", name, timeout), ctxErr)
	case ctxErr != nil:
		return nil, NewSynthesisError(ErrorCodeCanceled, name+" canceled", ctxErr)
	}

	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("%s failed: %w: %s", name, err, msg)
		}
		return nil, fmt.Errorf("%s failed: %w", name, err)
	}
	return stdout.Bytes(), nil
}
