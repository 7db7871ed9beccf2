package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/play-it-team/healthchecks/internal/domain/channel"
)

var _ channel.Repo = (*ChannelRepoImpl)(nil)

type ChannelRepoImpl struct {
	db  *DB
	log *zap.Logger
}

func NewChannelRepo(db *DB, log *zap.Logger) *ChannelRepoImpl {
	return &ChannelRepoImpl{db: db, log: log.With(zap.String("component", "repo.channel"))}
}

const channelCols = `
id, code, project_id, name, kind, value, email_verified, last_error, created_at`

const (
	qChannelInsert = `
INSERT INTO channels (code, project_id, name, kind, value, email_verified)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING` + channelCols + `;`

	qChannelByCode = `
SELECT` + channelCols + `
FROM channels
WHERE code = $1;`

	qChannelsByProject = `
SELECT` + channelCols + `
FROM channels
WHERE project_id = $1
ORDER BY created_at;`

	qChannelsForCheck = `
SELECT ` + channelCols + `
FROM channels c
JOIN channel_checks cc ON cc.channel_id = c.id
WHERE cc.check_id = $1
ORDER BY c.created_at;`

	qSubscribe = `
INSERT INTO channel_checks (channel_id, check_id)
VALUES ($1, $2)
ON CONFLICT DO NOTHING;`

	qChannelLastError = `
UPDATE channels SET last_error = $2 WHERE id = $1;`
)

// scanChannel loads a row and normalizes its value payload. A payload that
// no longer parses (legacy rows with retired kinds) is kept with a zero
// Config; the notifier turns that into a per-channel configuration error
// instead of this scan poisoning a whole list.
func (r *ChannelRepoImpl) scanChannel(row pgx.Row, ch *channel.Channel) error {
	if err := row.Scan(
		&ch.ID, &ch.Code, &ch.ProjectID, &ch.Name, &ch.Kind,
		&ch.Value, &ch.EmailVerified, &ch.LastError, &ch.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("scan channel: %w", err)
	}
	cfg, err := channel.ParseConfig(ch.Kind, ch.Value)
	if err != nil {
		r.log.Warn("channel value did not normalize",
			zap.String("channel", ch.Code), zap.Error(err))
		return nil
	}
	ch.Config = cfg
	return nil
}

// Create validates and normalizes the value payload up front; unknown kinds
// and malformed payloads never reach the table.
func (r *ChannelRepoImpl) Create(ctx context.Context, ch *channel.Channel) error {
	cfg, err := channel.ParseConfig(ch.Kind, ch.Value)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrConstraint, err)
	}
	ch.Config = cfg

	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	eq := r.db.execQueryer(ctx)
	row := eq.QueryRow(ctx, qChannelInsert,
		ch.Code, ch.ProjectID, ch.Name, ch.Kind, ch.Value, ch.EmailVerified,
	)
	return r.scanChannel(row, ch)
}

func (r *ChannelRepoImpl) GetByCode(ctx context.Context, code string) (*channel.Channel, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	var ch channel.Channel
	if err := r.scanChannel(r.db.execQueryer(ctx).QueryRow(ctx, qChannelByCode, code), &ch); err != nil {
		return nil, err
	}
	return &ch, nil
}

func (r *ChannelRepoImpl) ListByProject(ctx context.Context, projectID int64) ([]*channel.Channel, error) {
	return r.list(ctx, qChannelsByProject, projectID)
}

func (r *ChannelRepoImpl) ListForCheck(ctx context.Context, checkID int64) ([]*channel.Channel, error) {
	return r.list(ctx, qChannelsForCheck, checkID)
}

func (r *ChannelRepoImpl) list(ctx context.Context, q string, arg int64) ([]*channel.Channel, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	rows, err := r.db.execQueryer(ctx).Query(ctx, q, arg)
	if err != nil {
		return nil, fmt.Errorf("query channels: %w", err)
	}
	defer rows.Close()

	var out []*channel.Channel
	for rows.Next() {
		var ch channel.Channel
		if err := r.scanChannel(rows, &ch); err != nil {
			return nil, err
		}
		out = append(out, &ch)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}

func (r *ChannelRepoImpl) Subscribe(ctx context.Context, channelID, checkID int64) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	if _, err := r.db.execQueryer(ctx).Exec(ctx, qSubscribe, channelID, checkID); err != nil {
		return fmt.Errorf("subscribe channel: %w", err)
	}
	return nil
}

func (r *ChannelRepoImpl) UpdateLastError(ctx context.Context, channelID int64, lastError string) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	if _, err := r.db.execQueryer(ctx).Exec(ctx, qChannelLastError, channelID, lastError); err != nil {
		return fmt.Errorf("update last_error: %w", err)
	}
	return nil
}
