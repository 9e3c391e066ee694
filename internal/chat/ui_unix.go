//go:build !windows

package chat

import (
	"context"
	"os"
	"syscall"
	"time"

	"golang.org/x/term"
)

// ListenForEscape watches stdin for a standalone Escape key press and calls
// cancel when one arrives. It returns when Escape is pressed, done is closed,
// or ctx is canceled. The terminal is held in raw mode while listening.
//
// Arrow and function keys send ESC followed by more bytes, so a lone ESC has
// to be told apart from an escape sequence: after reading ESC we wait briefly
// and treat any follow-up bytes as a sequence to discard.
func ListenForEscape(ctx context.Context, done <-chan struct{}, cancel context.CancelFunc) {
	fd := int(os.Stdin.Fd())
	oldState, err := term.MakeRaw(fd)
	if err != nil {
		// No raw mode means no key detection; the turn just runs to completion
		return
	}
	defer func() {
		_ = term.Restore(fd, oldState) //nolint:errcheck // Best effort restore
	}()

	buf := make([]byte, 1)

	// Poll with a short select() timeout instead of a blocking read so the
	// loop notices done/ctx within 20ms
	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			return
		default:
		}

		if !stdinHasData(fd, 20*time.Millisecond) {
			continue
		}

		n, err := syscall.Read(fd, buf)
		if err != nil || n == 0 {
			continue
		}

		if buf[0] == KeyEscape {
			if stdinHasData(fd, 50*time.Millisecond) {
				// Escape sequence: drain the remaining bytes and keep listening
				seqBuf := make([]byte, 5)
				_, _ = syscall.Read(fd, seqBuf) //nolint:errcheck // Best effort consume
				continue
			}
			// Standalone Escape
			cancel()
			return
		}
		// Any other key is ignored while a turn is running
	}
}
