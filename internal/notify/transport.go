package notify

import (
	"context"
	"errors"

	"github.com/play-it-team/healthchecks/internal/domain/channel"
	"github.com/play-it-team/healthchecks/internal/domain/check"
	"github.com/play-it-team/healthchecks/internal/domain/notification"
)

// ErrDeferred is returned by fire-and-forget transports once the delivery
// is handed to their own goroutine. From that point the goroutine owns the
// notification row and the channel's last_error; the dispatcher leaves the
// row in the sending state and touches neither.
var ErrDeferred = errors.New("delivery deferred")

// Transport owns the delivery mechanics for one channel kind.
type Transport interface {
	// Notify reports the check's current status through the channel.
	// nil means delivered; ErrDeferred means handed off, with the outcome
	// recorded later. The notification row is passed so detached sends can
	// record their outcome on it after the fact.
	Notify(ctx context.Context, ch *channel.Channel, c *check.Check, n *notification.Notification) error

	// IsNoop reports whether the channel is configured to ignore the
	// check's current status. No-op dispatches leave no audit trail.
	IsNoop(ch *channel.Channel, c *check.Check) bool
}
