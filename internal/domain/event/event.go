package event

import (
	"context"
	"time"
)

// StatusChanged is published whenever a check flips between up and down.
// CheckID plus At also form the idempotency key on the outbox side, so a
// replayed transition reaches the dispatcher at most once.
type StatusChanged struct {
	CheckID int64     `json:"check_id"`
	Code    string    `json:"code"`
	Old     string    `json:"old"`
	New     string    `json:"new"`
	At      time.Time `json:"at"`
}

type Publisher interface {
	PublishStatusChanged(ctx context.Context, ev StatusChanged) error
}
