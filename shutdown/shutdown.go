// Package shutdown routes termination signals to the application.
package shutdown

import (
	"context"
	"os"
	"os/signal"
)

// Context is canceled on the first termination signal or when cancel is
// called.
func Context(parent context.Context) (context.Context, context.CancelFunc) {
	ch := make(chan os.Signal, 1)
	Notify(ch)
	ctx, cancel := context.WithCancel(parent)
	go func() {
		defer signal.Stop(ch)
		select {
		case <-ch:
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}
