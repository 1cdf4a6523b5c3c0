package notifier

import (
	"context"
	"errors"
	"fmt"

	"github.com/pfrederiksen/events-watch/internal/logger"
)

// Notifier defines the interface for delivering new-item notifications
type Notifier interface {
	// Notify delivers one notification listing the given items
	Notify(ctx context.Context, items []string) error
}

// Multi notifies every channel in order. All channels are attempted; the errors of
// the ones that failed are joined.
type Multi []Notifier

// Notify implements Notifier
func (m Multi) Notify(ctx context.Context, items []string) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, items); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// BestEffort wraps a secondary channel. Its failures are logged and never returned,
// so they cannot hold back the state save once the primary channel delivered.
type BestEffort struct {
	Channel  string
	Notifier Notifier
	Log      *logger.Logger
}

// Notify implements Notifier
func (b BestEffort) Notify(ctx context.Context, items []string) error {
	if err := b.Notifier.Notify(ctx, items); err != nil {
		b.Log.Warn("Secondary channel failed, items will not be resent", logger.Fields{
			"channel": b.Channel,
			"items":   len(items),
			"cause":   err.Error(),
		})
	}
	return nil
}

// Func adapts a function to the Notifier interface
type Func func(ctx context.Context, items []string) error

// Notify implements Notifier
func (f Func) Notify(ctx context.Context, items []string) error {
	return f(ctx, items)
}

func channelError(channel string, err error) error {
	return fmt.Errorf("%s: %w", channel, err)
}
