package notification

import "context"

type Repo interface {
	Create(ctx context.Context, n *Notification) error
	// UpdateError records the final delivery outcome; empty means delivered.
	UpdateError(ctx context.Context, id int64, errText string) error
	ListByChannel(ctx context.Context, channelID int64, limit int) ([]*Notification, error)
}
