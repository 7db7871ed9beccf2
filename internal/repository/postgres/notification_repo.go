package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/play-it-team/healthchecks/internal/domain/notification"
)

var _ notification.Repo = (*NotificationRepoImpl)(nil)

type NotificationRepoImpl struct{ db *DB }

func NewNotificationRepo(db *DB) *NotificationRepoImpl { return &NotificationRepoImpl{db: db} }

const (
	qNotifInsert = `
INSERT INTO notifications (code, check_id, channel_id, check_status, error)
VALUES ($1, $2, $3, $4, $5)
RETURNING id, created_at;`

	qNotifSetError = `
UPDATE notifications SET error = $2 WHERE id = $1;`

	qNotifsByChannel = `
SELECT id, code, check_id, channel_id, check_status, error, created_at
FROM notifications
WHERE channel_id = $1
ORDER BY created_at DESC
LIMIT $2;`
)

func (r *NotificationRepoImpl) Create(ctx context.Context, n *notification.Notification) error {
	if n.Code == "" {
		n.Code = uuid.NewString()
	}

	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	eq := r.db.execQueryer(ctx)
	if err := eq.QueryRow(ctx, qNotifInsert,
		n.Code, n.CheckID, n.ChannelID, n.CheckStatus, n.Error,
	).Scan(&n.ID, &n.CreatedAt); err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

func (r *NotificationRepoImpl) UpdateError(ctx context.Context, id int64, errText string) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	if _, err := r.db.execQueryer(ctx).Exec(ctx, qNotifSetError, id, errText); err != nil {
		return fmt.Errorf("update notification: %w", err)
	}
	return nil
}

func (r *NotificationRepoImpl) ListByChannel(ctx context.Context, channelID int64, limit int) ([]*notification.Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	rows, err := r.db.execQueryer(ctx).Query(ctx, qNotifsByChannel, channelID, limit)
	if err != nil {
		return nil, fmt.Errorf("query notifications: %w", err)
	}
	defer rows.Close()

	out := make([]*notification.Notification, 0, limit)
	for rows.Next() {
		var n notification.Notification
		if err := rows.Scan(&n.ID, &n.Code, &n.CheckID, &n.ChannelID, &n.CheckStatus, &n.Error, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		out = append(out, &n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}
