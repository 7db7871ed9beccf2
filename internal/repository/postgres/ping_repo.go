package postgres

import (
	"context"
	"fmt"

	"github.com/play-it-team/healthchecks/internal/domain/ping"
)

var _ ping.Repo = (*PingRepoImpl)(nil)

type PingRepoImpl struct{ db *DB }

func NewPingRepo(db *DB) *PingRepoImpl { return &PingRepoImpl{db: db} }

const (
	qPingInsert = `
INSERT INTO pings (seq, check_id, kind, scheme, remote_addr, method, ua, body)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING id, created_at;`

	qPingsByCheck = `
SELECT id, seq, check_id, kind, scheme, remote_addr, method, ua, body, created_at
FROM pings
WHERE check_id = $1
ORDER BY seq DESC
LIMIT $2;`
)

func (r *PingRepoImpl) Append(ctx context.Context, p *ping.Ping) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	eq := r.db.execQueryer(ctx)
	if err := eq.QueryRow(ctx, qPingInsert,
		p.Seq, p.CheckID, string(p.Kind), p.Scheme, p.RemoteAddr, p.Method, p.UserAgent, p.Body,
	).Scan(&p.ID, &p.CreatedAt); err != nil {
		return fmt.Errorf("insert ping: %w", err)
	}
	return nil
}

func (r *PingRepoImpl) ListByCheck(ctx context.Context, checkID int64, limit int) ([]*ping.Ping, error) {
	if limit <= 0 {
		limit = 50
	}
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	rows, err := r.db.execQueryer(ctx).Query(ctx, qPingsByCheck, checkID, limit)
	if err != nil {
		return nil, fmt.Errorf("query pings: %w", err)
	}
	defer rows.Close()

	out := make([]*ping.Ping, 0, limit)
	for rows.Next() {
		var p ping.Ping
		var kind string
		if err := rows.Scan(&p.ID, &p.Seq, &p.CheckID, &kind, &p.Scheme, &p.RemoteAddr, &p.Method, &p.UserAgent, &p.Body, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan ping: %w", err)
		}
		p.Kind = ping.Kind(kind)
		out = append(out, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}
