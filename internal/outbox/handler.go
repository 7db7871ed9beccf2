package outbox

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/play-it-team/healthchecks/internal/domain/event"
	"github.com/play-it-team/healthchecks/internal/domain/outbox"
	"github.com/play-it-team/healthchecks/internal/obs/retry"
)

// StatusChangedKey builds the idempotency key for one status transition.
// Replays of the same transition collapse on it, which is what keeps the
// at-most-one-notification property across writer crashes.
func StatusChangedKey(code string, atUnixNano int64) string {
	return fmt.Sprintf("status:%s:%d", code, atUnixNano)
}

// MakeGlobalHandler routes outbox messages by kind to their publisher,
// wrapped in the retry policy.
func MakeGlobalHandler(pub event.Publisher, pol retry.Policy) outbox.GlobalHandler {
	return func(kind outbox.Kind) (outbox.KindHandler, error) {
		switch kind {
		case outbox.KindStatusChanged:
			return func(ctx context.Context, data []byte) error {
				var ev event.StatusChanged
				if err := json.Unmarshal(data, &ev); err != nil {
					return fmt.Errorf("unmarshal status-changed payload: %w", err)
				}
				return retry.Do(ctx, func() error {
					return pub.PublishStatusChanged(ctx, ev)
				}, pol)
			}, nil
		default:
			return nil, fmt.Errorf("unsupported outbox kind: %d", kind)
		}
	}
}
