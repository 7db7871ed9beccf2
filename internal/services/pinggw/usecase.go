package pinggw

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/play-it-team/healthchecks/internal/domain/check"
	"github.com/play-it-team/healthchecks/internal/domain/event"
	domoutbox "github.com/play-it-team/healthchecks/internal/domain/outbox"
	"github.com/play-it-team/healthchecks/internal/domain/ping"
	intoutbox "github.com/play-it-team/healthchecks/internal/outbox"
	"github.com/play-it-team/healthchecks/internal/repository/postgres"
	"github.com/play-it-team/healthchecks/internal/schedule"
)

// casRetries bounds the re-read loop when a ping races the sweeper over the
// same check row.
const casRetries = 3

// PingMeta carries the request-level attributes recorded alongside a ping.
type PingMeta struct {
	Kind       ping.Kind
	Scheme     string
	RemoteAddr string
	Method     string
	UserAgent  string
	Body       string
}

type Usecase struct {
	Checks     check.Repo
	Pings      ping.Repo
	Outbox     domoutbox.Repository
	Transactor postgres.Transactor
	Clock      check.Clock
	Log        *zap.Logger
}

func NewUC(checks check.Repo, pings ping.Repo, ob domoutbox.Repository, tr postgres.Transactor, clock check.Clock, log *zap.Logger) *Usecase {
	return &Usecase{
		Checks:     checks,
		Pings:      pings,
		Outbox:     ob,
		Transactor: tr,
		Clock:      clock,
		Log:        log.With(zap.String("component", "pinggw-uc")),
	}
}

// RecordPing applies one received signal to the check identified by code:
// it appends the ping row, advances the check's liveness fields, re-evaluates
// its status and, when the status flips between up and down, enqueues a
// status-changed event in the same transaction. A version conflict means a
// concurrent writer won the row; the whole thing is re-read and retried.
func (u *Usecase) RecordPing(ctx context.Context, code string, meta PingMeta) error {
	tr := otel.Tracer("pinggw.uc")
	ctx, span := tr.Start(ctx, "pinggw.record-ping",
		trace.WithAttributes(
			attribute.String("check.code", code),
			attribute.String("ping.kind", string(meta.Kind)),
		),
	)
	defer span.End()

	var lastErr error
	for attempt := 0; attempt < casRetries; attempt++ {
		err := u.recordOnce(ctx, code, meta)
		if err == nil {
			return nil
		}
		if !errors.Is(err, postgres.ErrConflict) {
			span.RecordError(err)
			return err
		}
		lastErr = err
		u.Log.Debug("version conflict, retrying", zap.String("check", code), zap.Int("attempt", attempt+1))
	}
	span.RecordError(lastErr)
	return fmt.Errorf("record ping for %s: %w", code, lastErr)
}

func (u *Usecase) recordOnce(ctx context.Context, code string, meta PingMeta) error {
	c, err := u.Checks.GetByCode(ctx, code)
	if err != nil {
		return fmt.Errorf("get check: %w", err)
	}

	now := u.Clock.Now().UTC()
	prev := c.Status

	c.PingCount++
	p := &ping.Ping{
		Seq:        c.PingCount,
		CheckID:    c.ID,
		Kind:       meta.Kind,
		Scheme:     meta.Scheme,
		RemoteAddr: meta.RemoteAddr,
		Method:     meta.Method,
		UserAgent:  meta.UserAgent,
		Body:       meta.Body,
		CreatedAt:  now,
	}

	switch meta.Kind {
	case ping.KindStart:
		c.LastStart = now
	default:
		if !c.LastStart.IsZero() {
			c.LastDuration = now.Sub(c.LastStart)
			c.LastStart = time.Time{}
		}
	}
	c.LastPing = now
	c.LastPingWasFail = meta.Kind == ping.KindFail

	// Any signal, fail included, lifts a pause; the evaluator then decides
	// from the fresh ping alone.
	if c.Status == check.StatusPaused {
		c.Status = check.StatusNew
	}
	if deadline, derr := schedule.Deadline(c, c.LastPing); derr == nil {
		c.AlertAfter = deadline
	}
	c.Status = schedule.Status(c, now)

	return u.Transactor.WithTx(ctx, func(txCtx context.Context) error {
		if err := u.Pings.Append(txCtx, p); err != nil {
			return fmt.Errorf("append ping: %w", err)
		}
		if err := u.Checks.Update(txCtx, c); err != nil {
			return fmt.Errorf("update check: %w", err)
		}
		if !notifies(prev, c.Status) {
			return nil
		}
		ev := eventPayload(c, prev, now)
		b, _ := json.Marshal(ev)
		key := intoutbox.StatusChangedKey(c.Code, now.UnixNano())
		if err := u.Outbox.Enqueue(txCtx, key, domoutbox.KindStatusChanged, b); err != nil {
			return fmt.Errorf("outbox enqueue: %w", err)
		}
		return nil
	})
}

func eventPayload(c *check.Check, prev check.Status, at time.Time) event.StatusChanged {
	return event.StatusChanged{
		CheckID: c.ID,
		Code:    c.Code,
		Old:     string(prev),
		New:     string(c.Status),
		At:      at,
	}
}

// Pause parks the check: no deadline applies and no alerts fire until the
// next ping arrives. Pausing never notifies, in either direction.
func (u *Usecase) Pause(ctx context.Context, code string) error {
	for attempt := 0; attempt < casRetries; attempt++ {
		c, err := u.Checks.GetByCode(ctx, code)
		if err != nil {
			return fmt.Errorf("get check: %w", err)
		}
		if c.Status == check.StatusPaused {
			return nil
		}
		c.Status = check.StatusPaused
		c.AlertAfter = time.Time{}
		err = u.Checks.Update(ctx, c)
		if err == nil {
			return nil
		}
		if !errors.Is(err, postgres.ErrConflict) {
			return fmt.Errorf("update check: %w", err)
		}
	}
	return fmt.Errorf("pause %s: %w", code, postgres.ErrConflict)
}

// Resume lifts a pause without waiting for a ping. A never-pinged check
// drops back to new and waits for its first signal. A check with ping
// history is re-evaluated on the spot, and a transition landing on up or
// down is published the same way a ping lifting the pause would publish it.
// A check that went overdue while paused surfaces as down right here rather
// than sitting silent until the next ping.
func (u *Usecase) Resume(ctx context.Context, code string) error {
	for attempt := 0; attempt < casRetries; attempt++ {
		c, err := u.Checks.GetByCode(ctx, code)
		if err != nil {
			return fmt.Errorf("get check: %w", err)
		}
		if c.Status != check.StatusPaused {
			return nil
		}
		now := u.Clock.Now().UTC()
		prev := c.Status
		c.Status = check.StatusNew
		if !c.LastPing.IsZero() {
			if deadline, derr := schedule.Deadline(c, c.LastPing); derr == nil {
				c.AlertAfter = deadline
			}
			c.Status = schedule.Status(c, now)
		}
		err = u.Transactor.WithTx(ctx, func(txCtx context.Context) error {
			if err := u.Checks.Update(txCtx, c); err != nil {
				return err
			}
			if !notifies(prev, c.Status) {
				return nil
			}
			ev := eventPayload(c, prev, now)
			b, _ := json.Marshal(ev)
			key := intoutbox.StatusChangedKey(c.Code, now.UnixNano())
			if err := u.Outbox.Enqueue(txCtx, key, domoutbox.KindStatusChanged, b); err != nil {
				return fmt.Errorf("outbox enqueue: %w", err)
			}
			return nil
		})
		if err == nil {
			return nil
		}
		if !errors.Is(err, postgres.ErrConflict) {
			return fmt.Errorf("update check: %w", err)
		}
	}
	return fmt.Errorf("resume %s: %w", code, postgres.ErrConflict)
}

// notifies says whether the prev->next transition reaches subscribers. Only
// flips landing on up or down count, self-transitions never do, and leaving
// new is silent: the first ping of a fresh check is not an alert.
func notifies(prev, next check.Status) bool {
	if next != check.StatusUp && next != check.StatusDown {
		return false
	}
	if prev == next {
		return false
	}
	if prev == check.StatusNew {
		return false
	}
	return true
}
