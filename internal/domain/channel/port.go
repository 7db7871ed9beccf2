package channel

import "context"

type Repo interface {
	Create(ctx context.Context, ch *Channel) error
	GetByCode(ctx context.Context, code string) (*Channel, error)
	ListByProject(ctx context.Context, projectID int64) ([]*Channel, error)
	// ListForCheck resolves the channels subscribed to a check.
	ListForCheck(ctx context.Context, checkID int64) ([]*Channel, error)
	Subscribe(ctx context.Context, channelID, checkID int64) error
	UpdateLastError(ctx context.Context, channelID int64, lastError string) error
}
