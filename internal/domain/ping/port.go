package ping

import "context"

type Repo interface {
	Append(ctx context.Context, p *Ping) error
	ListByCheck(ctx context.Context, checkID int64, limit int) ([]*Ping, error)
}
