package reaper

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
	intoutbox "github.com/play-it-team/healthchecks/internal/outbox"
	"github.com/play-it-team/healthchecks/internal/repository/postgres"
	"github.com/play-it-team/healthchecks/internal/schedule"
)

type Usecase struct {
	Checks     check.Repo
	Outbox     domoutbox.Repository
	Transactor postgres.Transactor
	Clock      check.Clock
	Log        *zap.Logger
}

func NewUC(checks check.Repo, ob domoutbox.Repository, tr postgres.Transactor, clock check.Clock, log *zap.Logger) *Usecase {
	return &Usecase{
		Checks:     checks,
		Outbox:     ob,
		Transactor: tr,
		Clock:      clock,
		Log:        log.With(zap.String("component", "reaper-uc")),
	}
}

// Tick sweeps one batch of apparently-overdue checks and flips the truly
// overdue ones to down, enqueueing a status-changed event per flip in the
// same transaction. The cached alert_after only selects candidates; each
// deadline is recomputed from the check's own fields before anything is
// written, so a stale cache can cost a scan but never a false alert.
func (u *Usecase) Tick(ctx context.Context, limit int) (fetched, flipped, errs int, err error) {
	if limit <= 0 {
		limit = 100
	}

	tr := otel.Tracer("reaper.uc")
	ctxTick, span := tr.Start(ctx, "reaper.tick",
		trace.WithAttributes(attribute.Int("batch.limit", limit)),
	)
	defer span.End()

	now := u.Clock.Now().UTC()

	txErr := u.Transactor.WithTx(ctxTick, func(txCtx context.Context) error {
		due, ferr := u.Checks.FetchOverdue(txCtx, now, limit)
		if ferr != nil {
			return fmt.Errorf("fetch overdue: %w", ferr)
		}
		fetched = len(due)
		span.SetAttributes(attribute.Int("batch.fetched", fetched))

		for _, c := range due {
			_, sp := tr.Start(txCtx, "reaper.flip",
				trace.WithAttributes(
					attribute.Int64("check.id", c.ID),
					attribute.String("check.code", c.Code),
				),
			)
			if ferr := u.flip(txCtx, c, now); ferr != nil {
				errs++
				sp.RecordError(ferr)
				sp.End()
				u.Log.Warn("flip failed", zap.String("check", c.Code), zap.Error(ferr))
				continue
			}
			if c.Status == check.StatusDown {
				flipped++
			}
			sp.End()
		}
		return nil
	})
	if txErr != nil {
		span.RecordError(txErr)
		return fetched, flipped, errs + 1, txErr
	}

	span.SetAttributes(
		attribute.Int("batch.flipped", flipped),
		attribute.Int("batch.errors", errs),
	)
	return fetched, flipped, errs, nil
}

// flip re-evaluates one candidate and persists the verdict. Candidates whose
// recomputed status is still up just get their alert_after cache refreshed so
// the next sweep skips them.
func (u *Usecase) flip(ctx context.Context, c *check.Check, now time.Time) error {
	prev := c.Status
	next := schedule.Status(c, now)

	if next != check.StatusDown {
		if deadline, derr := schedule.Deadline(c, c.LastPing); derr == nil && !deadline.Equal(c.AlertAfter) {
			c.AlertAfter = deadline
			if err := u.Checks.Update(ctx, c); err != nil && !errors.Is(err, postgres.ErrConflict) {
				return fmt.Errorf("refresh deadline: %w", err)
			}
		}
		return nil
	}
	if prev == check.StatusDown {
		return nil
	}

	c.Status = check.StatusDown
	if err := u.Checks.Update(ctx, c); err != nil {
		if errors.Is(err, postgres.ErrConflict) {
			// A ping landed between fetch and write; its writer owns the
			// transition now.
			c.Status = prev
			return nil
		}
		return fmt.Errorf("update check: %w", err)
	}

	if prev == check.StatusNew {
		// A check that was never up has nobody expecting an all-clear.
		return nil
	}

	ev := event.StatusChanged{
		CheckID: c.ID,
		Code:    c.Code,
		Old:     string(prev),
		New:     string(check.StatusDown),
		At:      now,
	}
	b, _ := json.Marshal(ev)
	key := intoutbox.StatusChangedKey(c.Code, now.UnixNano())
	if err := u.Outbox.Enqueue(ctx, key, domoutbox.KindStatusChanged, b); err != nil {
		return fmt.Errorf("outbox enqueue: %w", err)
	}
	return nil
}
