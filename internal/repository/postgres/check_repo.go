package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/play-it-team/healthchecks/internal/domain/check"
)

var _ check.Repo = (*CheckRepoImpl)(nil)

type CheckRepoImpl struct {
	db *DB
}

func NewCheckRepo(db *DB) *CheckRepoImpl { return &CheckRepoImpl{db: db} }

const checkCols = `
id, code, project_id, name, tags, kind, timeout_sec, grace_sec, schedule,
ping_count, last_start, last_ping, last_duration_ms, last_ping_was_fail,
alert_after, status, version, created_at`

const (
	qCheckInsert = `
INSERT INTO checks (code, project_id, name, tags, kind, timeout_sec, grace_sec, schedule, status)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 'new')
RETURNING` + checkCols + `;`

	qCheckByID = `
SELECT` + checkCols + `
FROM checks
WHERE id = $1;`

	qCheckByCode = `
SELECT` + checkCols + `
FROM checks
WHERE code = $1;`

	qChecksByProject = `
SELECT` + checkCols + `
FROM checks
WHERE project_id = $1
ORDER BY created_at;`

	qCheckDelete = `DELETE FROM checks WHERE id = $1;`

	// Candidates for the reaper sweep. alert_after is a cache of the
	// computed deadline; the caller re-evaluates before flipping.
	qChecksOverdue = `
SELECT` + checkCols + `
FROM checks
WHERE status IN ('up', 'new')
  AND alert_after IS NOT NULL
  AND alert_after < $1
ORDER BY alert_after
FOR UPDATE SKIP LOCKED
LIMIT $2;`

	qCheckUpdate = `
UPDATE checks
SET name = $3, tags = $4, kind = $5, timeout_sec = $6, grace_sec = $7,
    schedule = $8, ping_count = $9, last_start = $10, last_ping = $11,
    last_duration_ms = $12, last_ping_was_fail = $13, alert_after = $14,
    status = $15, version = version + 1
WHERE id = $1 AND version = $2
RETURNING version;`
)

func scanCheck(row pgx.Row, c *check.Check) error {
	var (
		timeoutSec int64
		graceSec   int64
		lastStart  *time.Time
		lastPing   *time.Time
		lastDurMS  *int64
		alertAfter *time.Time
	)
	if err := row.Scan(
		&c.ID,
		&c.Code,
		&c.ProjectID,
		&c.Name,
		&c.Tags,
		&c.Kind,
		&timeoutSec,
		&graceSec,
		&c.Schedule,
		&c.PingCount,
		&lastStart,
		&lastPing,
		&lastDurMS,
		&c.LastPingWasFail,
		&alertAfter,
		&c.Status,
		&c.Version,
		&c.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("scan check: %w", err)
	}
	c.Timeout = time.Duration(timeoutSec) * time.Second
	c.Grace = time.Duration(graceSec) * time.Second
	c.LastStart = fromNullTime(lastStart)
	c.LastPing = fromNullTime(lastPing)
	c.AlertAfter = fromNullTime(alertAfter)
	if lastDurMS != nil {
		c.LastDuration = time.Duration(*lastDurMS) * time.Millisecond
	}
	return nil
}

func (r *CheckRepoImpl) Create(ctx context.Context, c *check.Check) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	eq := r.db.execQueryer(ctx)
	row := eq.QueryRow(ctx, qCheckInsert,
		c.Code, c.ProjectID, c.Name, c.Tags, c.Kind,
		int64(c.Timeout/time.Second), int64(c.Grace/time.Second), c.Schedule,
	)
	return scanCheck(row, c)
}

func (r *CheckRepoImpl) GetByID(ctx context.Context, id int64) (*check.Check, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	var c check.Check
	if err := scanCheck(r.db.execQueryer(ctx).QueryRow(ctx, qCheckByID, id), &c); err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *CheckRepoImpl) GetByCode(ctx context.Context, code string) (*check.Check, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	var c check.Check
	if err := scanCheck(r.db.execQueryer(ctx).QueryRow(ctx, qCheckByCode, code), &c); err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *CheckRepoImpl) ListByProject(ctx context.Context, projectID int64) ([]*check.Check, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	rows, err := r.db.execQueryer(ctx).Query(ctx, qChecksByProject, projectID)
	if err != nil {
		return nil, fmt.Errorf("query checks: %w", err)
	}
	defer rows.Close()

	var out []*check.Check
	for rows.Next() {
		var c check.Check
		if err := scanCheck(rows, &c); err != nil {
			return nil, err
		}
		out = append(out, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}

func (r *CheckRepoImpl) Update(ctx context.Context, c *check.Check) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	eq := r.db.execQueryer(ctx)
	err := eq.QueryRow(ctx, qCheckUpdate,
		c.ID, c.Version,
		c.Name, c.Tags, c.Kind,
		int64(c.Timeout/time.Second), int64(c.Grace/time.Second), c.Schedule,
		c.PingCount, nullTime(c.LastStart), nullTime(c.LastPing),
		nullDur(c.LastDuration), c.LastPingWasFail, nullTime(c.AlertAfter),
		c.Status,
	).Scan(&c.Version)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrConflict
	}
	if err != nil {
		return fmt.Errorf("update check: %w", err)
	}
	return nil
}

func (r *CheckRepoImpl) Delete(ctx context.Context, id int64) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	cmd, err := r.db.execQueryer(ctx).Exec(ctx, qCheckDelete, id)
	if err != nil {
		return fmt.Errorf("delete check: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *CheckRepoImpl) FetchOverdue(ctx context.Context, now time.Time, limit int) ([]*check.Check, error) {
	if limit <= 0 {
		limit = 100
	}
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	rows, err := r.db.execQueryer(ctx).Query(ctx, qChecksOverdue, now, limit)
	if err != nil {
		return nil, fmt.Errorf("fetch overdue: %w", err)
	}
	defer rows.Close()

	var out []*check.Check
	for rows.Next() {
		var c check.Check
		if err := scanCheck(rows, &c); err != nil {
			return nil, err
		}
		out = append(out, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}
