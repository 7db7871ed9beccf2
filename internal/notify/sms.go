package notify

import (
	"context"
	"errors"

	"github.com/play-it-team/healthchecks/internal/domain/channel"
	"github.com/play-it-team/healthchecks/internal/domain/check"
	"github.com/play-it-team/healthchecks/internal/domain/notification"
)

// SMS is a registered kind without a wired provider yet. Channels of this
// kind get audit rows carrying a configuration error instead of silent
// drops, so operators can see the gap.
type SMS struct{}

func (s *SMS) IsNoop(ch *channel.Channel, c *check.Check) bool {
	cfg := ch.Config.SMS
	if cfg == nil {
		return false
	}
	if c.Status == check.StatusDown {
		return !cfg.NotifyDown
	}
	return !cfg.NotifyUp
}

func (s *SMS) Notify(_ context.Context, _ *channel.Channel, _ *check.Check, _ *notification.Notification) error {
	return errors.New("SMS delivery is not implemented")
}
