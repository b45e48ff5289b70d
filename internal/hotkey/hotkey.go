// Package hotkey listens for global key presses outside the terminal.
package hotkey

import (
	"context"

	hook "github.com/robotn/gohook"
)

// ListenEscape calls fn every time Esc is pressed anywhere on the desktop,
// until ctx is cancelled. It blocks, so run it on its own goroutine.
func ListenEscape(ctx context.Context, fn func()) {
	hook.Register(hook.KeyDown, []string{"esc"}, func(hook.Event) {
		fn()
	})

	events := hook.Start()
	processed := hook.Process(events)

	select {
	case <-ctx.Done():
		hook.End()
	case <-processed:
	}
}
