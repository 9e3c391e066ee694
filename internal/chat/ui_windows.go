//go:build windows

package chat

import (
	"context"
)

// ListenForEscape is a stub on Windows, where select() on stdin is not
// available. Cancellation with Escape is not supported; the listener just
// waits for the turn to finish.
func ListenForEscape(ctx context.Context, done <-chan struct{}, cancel context.CancelFunc) {
	select {
	case <-done:
	case <-ctx.Done():
	}
}
