package dispatcher

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/play-it-team/healthchecks/internal/domain/check"
	"github.com/play-it-team/healthchecks/internal/domain/event"
	"github.com/play-it-team/healthchecks/internal/notify"
	"github.com/play-it-team/healthchecks/internal/repository/postgres"
)

var (
	mEventsConsumed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dispatcher_events_consumed_total", Help: "Status-changed events consumed",
	})
	mEventsDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dispatcher_events_dropped_total", Help: "Events dropped without dispatch, by reason",
	}, []string{"reason"})
)

type Handler struct {
	Checks   check.Repo
	Notifier *notify.Notifier
	Log      *zap.Logger
}

func NewHandler(checks check.Repo, nf *notify.Notifier, log *zap.Logger) *Handler {
	return &Handler{
		Checks:   checks,
		Notifier: nf,
		Log:      log.With(zap.String("component", "dispatcher")),
	}
}

// HandleStatusChanged fans one consumed transition out to the check's
// channels. The check is re-read for its current name, tags and channel
// subscriptions, but the status rendered is the one the event carries, so a
// transition consumed late still describes itself truthfully.
func (h *Handler) HandleStatusChanged(ctx context.Context, ev event.StatusChanged) error {
	mEventsConsumed.Inc()

	c, err := h.Checks.GetByCode(ctx, ev.Code)
	if err != nil {
		if errors.Is(err, postgres.ErrNotFound) {
			// Deleted between enqueue and consume; nothing to alert on.
			mEventsDropped.WithLabelValues("check_gone").Inc()
			h.Log.Info("check gone, dropping event", zap.String("check", ev.Code))
			return nil
		}
		return fmt.Errorf("get check %s: %w", ev.Code, err)
	}

	next := check.Status(ev.New)
	if next != check.StatusUp && next != check.StatusDown {
		mEventsDropped.WithLabelValues("bad_status").Inc()
		h.Log.Warn("event with unexpected status", zap.String("check", ev.Code), zap.String("status", ev.New))
		return nil
	}
	c.Status = next

	results := h.Notifier.Notify(ctx, c)

	failed := 0
	for code, errText := range results {
		if errText == "" {
			continue
		}
		failed++
		h.Log.Warn("channel delivery failed",
			zap.String("check", c.Code),
			zap.String("channel", code),
			zap.String("error", errText),
		)
	}
	h.Log.Info("dispatched",
		zap.String("check", c.Code),
		zap.String("status", ev.New),
		zap.Int("channels", len(results)),
		zap.Int("failed", failed),
	)
	return nil
}
