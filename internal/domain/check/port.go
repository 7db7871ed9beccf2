package check

import (
	"context"
	"time"
)

type Repo interface {
	Create(ctx context.Context, c *Check) error
	GetByID(ctx context.Context, id int64) (*Check, error)
	GetByCode(ctx context.Context, code string) (*Check, error)
	ListByProject(ctx context.Context, projectID int64) ([]*Check, error)
	// Update persists the mutable check fields with optimistic concurrency:
	// the write applies only if the stored version still equals c.Version,
	// otherwise ErrConflict from the repository package is returned. On
	// success c.Version is bumped to the new stored value.
	Update(ctx context.Context, c *Check) error
	Delete(ctx context.Context, id int64) error
	// FetchOverdue returns checks whose cached alert_after deadline has
	// passed, locked against concurrent sweeps. The caller still has to
	// recompute the deadline before flipping anything.
	FetchOverdue(ctx context.Context, now time.Time, limit int) ([]*Check, error)
}

type Clock interface {
	Now() time.Time
}
