package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/play-it-team/healthchecks/internal/domain/channel"
	"github.com/play-it-team/healthchecks/internal/domain/check"
	"github.com/play-it-team/healthchecks/internal/domain/notification"
)

// Message is a rendered alert mail ready for an SMTP handoff.
type Message struct {
	To      string
	Subject string
	Text    string
	HTML    string
	Headers map[string]string
}

type Mailer interface {
	Send(ctx context.Context, m *Message) error
}

// Email renders and sends alert mail. The send itself is fire-and-forget:
// Notify hands the message to a detached goroutine, returns ErrDeferred
// immediately, and that goroutine records the final outcome on the
// notification row and the channel's last_error once the SMTP conversation
// finishes. The triggering flow never observes an SMTP failure; the audit
// row does.
type Email struct {
	Mailer   Mailer
	Notifs   notification.Repo
	Channels channel.Repo
	BaseURL  string
	Timeout  time.Duration
	Log      *zap.Logger
}

func NewEmail(mailer Mailer, notifs notification.Repo, channels channel.Repo, baseURL string, log *zap.Logger) *Email {
	return &Email{
		Mailer:   mailer,
		Notifs:   notifs,
		Channels: channels,
		BaseURL:  strings.TrimRight(baseURL, "/"),
		Timeout:  30 * time.Second,
		Log:      log.With(zap.String("component", "notify.email")),
	}
}

func (e *Email) IsNoop(ch *channel.Channel, c *check.Check) bool {
	if !ch.EmailVerified {
		return true
	}
	cfg := ch.Config.Email
	if cfg == nil {
		return false
	}
	if c.Status == check.StatusDown {
		return !cfg.NotifyDown
	}
	return !cfg.NotifyUp
}

func (e *Email) Notify(_ context.Context, ch *channel.Channel, c *check.Check, n *notification.Notification) error {
	cfg := ch.Config.Email
	if cfg == nil {
		return fmt.Errorf("email channel %s has no configuration", ch.Code)
	}

	msg := e.render(ch, c, n)
	notifID := n.ID
	chanID := ch.ID

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), e.Timeout)
		defer cancel()

		errText := ""
		if err := e.Mailer.Send(ctx, msg); err != nil {
			errText = err.Error()
			mFailed.WithLabelValues(string(channel.KindEmail)).Inc()
			e.Log.Warn("alert mail failed",
				zap.String("channel", ch.Code),
				zap.String("check", c.Code),
				zap.Error(err),
			)
		} else {
			mDelivered.WithLabelValues(string(channel.KindEmail)).Inc()
		}
		if err := e.Notifs.UpdateError(ctx, notifID, errText); err != nil {
			e.Log.Warn("record mail outcome", zap.Int64("notification_id", notifID), zap.Error(err))
		}
		if err := e.Channels.UpdateLastError(ctx, chanID, errText); err != nil {
			e.Log.Warn("record channel last_error", zap.Int64("channel_id", chanID), zap.Error(err))
		}
	}()

	return ErrDeferred
}

func (e *Email) render(ch *channel.Channel, c *check.Check, n *notification.Notification) *Message {
	name := c.Name
	if name == "" {
		name = c.Code
	}
	subject := fmt.Sprintf("%s is %s", name, strings.ToUpper(string(c.Status)))

	var b strings.Builder
	fmt.Fprintf(&b, "The check %q is %s.\n\n", name, c.Status)
	fmt.Fprintf(&b, "Code:      %s\n", c.Code)
	if c.Tags != "" {
		fmt.Fprintf(&b, "Tags:      %s\n", c.Tags)
	}
	if !c.LastPing.IsZero() {
		fmt.Fprintf(&b, "Last ping: %s\n", c.LastPing.UTC().Format(time.RFC3339))
	}
	fmt.Fprintf(&b, "\nDetails: %s/checks/%s\n", e.BaseURL, c.Code)
	text := b.String()

	html := fmt.Sprintf(
		"<p>The check <b>%s</b> is <b>%s</b>.</p><p><a href=%q>Details</a></p>",
		name, c.Status, e.BaseURL+"/checks/"+c.Code,
	)

	unsub := fmt.Sprintf("%s/channels/%s/unsubscribe", e.BaseURL, ch.Code)
	return &Message{
		To:      ch.Config.Email.Address,
		Subject: subject,
		Text:    text,
		HTML:    html,
		Headers: map[string]string{
			"X-Bounce-Url":          fmt.Sprintf("%s/api/v1/notifications/%s/bounce", e.BaseURL, n.Code),
			"List-Unsubscribe":      "<" + unsub + ">",
			"List-Unsubscribe-Post": "List-Unsubscribe=One-Click",
		},
	}
}
