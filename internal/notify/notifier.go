package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/play-it-team/healthchecks/internal/domain/channel"
	"github.com/play-it-team/healthchecks/internal/domain/check"
	"github.com/play-it-team/healthchecks/internal/domain/notification"
)

var (
	mDispatched = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "notifier_dispatched_total", Help: "Delivery attempts per channel kind.",
	}, []string{"kind"})
	mDelivered = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "notifier_delivered_total", Help: "Successful deliveries per channel kind.",
	}, []string{"kind"})
	mFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "notifier_failed_total", Help: "Failed deliveries per channel kind.",
	}, []string{"kind"})
	mNoop = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "notifier_noop_total", Help: "Dispatches skipped as no-ops.",
	}, []string{"kind"})
)

// Notifier fans one status transition out to every channel subscribed to
// the check. Channels are independent: each gets its own audit row and its
// own error, dispatched concurrently, and no failure ever propagates back
// into the flow that detected the transition.
type Notifier struct {
	log      *zap.Logger
	channels channel.Repo
	notifs   notification.Repo

	email   Transport
	webhook Transport
	shell   Transport
	sms     Transport
}

func NewNotifier(log *zap.Logger, channels channel.Repo, notifs notification.Repo, email, webhook, shell Transport) *Notifier {
	return &Notifier{
		log:      log.With(zap.String("component", "notifier")),
		channels: channels,
		notifs:   notifs,
		email:    email,
		webhook:  webhook,
		shell:    shell,
		sms:      &SMS{},
	}
}

// Notify dispatches the check's current status to its subscribed channels
// and returns the final error text per channel code, empty for delivered
// and skipped channels alike.
func (nf *Notifier) Notify(ctx context.Context, c *check.Check) map[string]string {
	tr := otel.Tracer("notifier")
	ctx, span := tr.Start(ctx, "notifier.notify")
	span.SetAttributes(
		attribute.String("check.code", c.Code),
		attribute.String("check.status", string(c.Status)),
	)
	defer span.End()

	chans, err := nf.channels.ListForCheck(ctx, c.ID)
	if err != nil {
		span.RecordError(err)
		nf.log.Warn("list channels", zap.String("check", c.Code), zap.Error(err))
		return nil
	}

	results := make(map[string]string, len(chans))
	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for _, ch := range chans {
		wg.Add(1)
		go func(ch *channel.Channel) {
			defer wg.Done()
			errText, skipped := nf.dispatch(ctx, ch, c)
			if skipped {
				return
			}
			mu.Lock()
			results[ch.Code] = errText
			mu.Unlock()
		}(ch)
	}
	wg.Wait()
	return results
}

// dispatch delivers to a single channel. skipped is true for no-ops, which
// leave no notification row at all.
func (nf *Notifier) dispatch(ctx context.Context, ch *channel.Channel, c *check.Check) (errText string, skipped bool) {
	kind := string(ch.Kind)

	t, err := nf.transportFor(ch)
	if err != nil {
		// Channel kinds are validated at creation, so this is a legacy
		// row. It still gets an audit record, per channel, and the
		// failure stays contained to this channel.
		nf.record(ctx, ch, c, err.Error())
		mFailed.WithLabelValues(kind).Inc()
		return err.Error(), false
	}

	if t.IsNoop(ch, c) {
		mNoop.WithLabelValues(kind).Inc()
		return "", true
	}

	n := &notification.Notification{
		CheckID:     c.ID,
		ChannelID:   ch.ID,
		CheckStatus: string(c.Status),
		Error:       notification.ErrSending,
	}
	if err := nf.notifs.Create(ctx, n); err != nil {
		nf.log.Warn("create notification", zap.String("channel", ch.Code), zap.Error(err))
		return err.Error(), false
	}

	mDispatched.WithLabelValues(kind).Inc()
	err = t.Notify(ctx, ch, c, n)
	if errors.Is(err, ErrDeferred) {
		// The transport's goroutine settles the row and the channel's
		// last_error once the delivery finishes. Writing here would clobber
		// a fast async failure with a success that never happened.
		return "", false
	}
	if err != nil {
		errText = err.Error()
	}

	if err := nf.notifs.UpdateError(ctx, n.ID, errText); err != nil {
		nf.log.Warn("update notification", zap.String("channel", ch.Code), zap.Error(err))
	}
	if err := nf.channels.UpdateLastError(ctx, ch.ID, errText); err != nil {
		nf.log.Warn("update channel last_error", zap.String("channel", ch.Code), zap.Error(err))
	}

	if errText == "" {
		mDelivered.WithLabelValues(kind).Inc()
	} else {
		mFailed.WithLabelValues(kind).Inc()
		nf.log.Info("delivery failed",
			zap.String("channel", ch.Code),
			zap.String("kind", kind),
			zap.String("error", errText),
		)
	}
	return errText, false
}

// record writes an audit row for a dispatch that failed before any
// transport was invoked.
func (nf *Notifier) record(ctx context.Context, ch *channel.Channel, c *check.Check, errText string) {
	n := &notification.Notification{
		CheckID:     c.ID,
		ChannelID:   ch.ID,
		CheckStatus: string(c.Status),
		Error:       errText,
	}
	if err := nf.notifs.Create(ctx, n); err != nil {
		nf.log.Warn("create notification", zap.String("channel", ch.Code), zap.Error(err))
	}
	if err := nf.channels.UpdateLastError(ctx, ch.ID, errText); err != nil {
		nf.log.Warn("update channel last_error", zap.String("channel", ch.Code), zap.Error(err))
	}
}

func (nf *Notifier) transportFor(ch *channel.Channel) (Transport, error) {
	switch {
	case ch.Kind == channel.KindEmail && ch.Config.Email != nil:
		return nf.email, nil
	case ch.Kind == channel.KindWebhook && ch.Config.Webhook != nil:
		return nf.webhook, nil
	case ch.Kind == channel.KindShell && ch.Config.Shell != nil:
		return nf.shell, nil
	case ch.Kind == channel.KindSMS && ch.Config.SMS != nil:
		return nf.sms, nil
	}
	return nil, fmt.Errorf("unknown channel kind %q", ch.Kind)
}
