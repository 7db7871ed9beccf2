package notify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/play-it-team/healthchecks/internal/domain/channel"
	"github.com/play-it-team/healthchecks/internal/domain/check"
	"github.com/play-it-team/healthchecks/internal/domain/notification"
	"github.com/play-it-team/healthchecks/internal/obs/retry"
)

const (
	webhookAttempts   = 3
	webhookTimeout    = 5 * time.Second
	webhookMaxErrBody = 1024
	defaultWebhookUA  = "healthchecks"
)

var webhookOKCodes = map[int]bool{200: true, 201: true, 202: true, 204: true}

// Webhook issues one templated HTTP request per direction. Transient
// failures are retried up to three times per dispatch with no backoff; each
// attempt gets its own timeout.
type Webhook struct {
	Client    *http.Client
	UserAgent string
	Log       *zap.Logger
}

func NewWebhook(log *zap.Logger) *Webhook {
	return &Webhook{
		Client:    &http.Client{Timeout: webhookTimeout},
		UserAgent: defaultWebhookUA,
		Log:       log.With(zap.String("component", "notify.webhook")),
	}
}

func (w *Webhook) IsNoop(ch *channel.Channel, c *check.Check) bool {
	cfg := ch.Config.Webhook
	if cfg == nil {
		return false
	}
	if c.Status == check.StatusDown {
		return cfg.URLDown == ""
	}
	return cfg.URLUp == ""
}

func (w *Webhook) Notify(ctx context.Context, ch *channel.Channel, c *check.Check, _ *notification.Notification) error {
	cfg := ch.Config.Webhook
	if cfg == nil {
		return fmt.Errorf("webhook channel %s has no configuration", ch.Code)
	}

	url, method, body := cfg.URLUp, cfg.MethodUp, cfg.BodyUp
	if c.Status == check.StatusDown {
		url, method, body = cfg.URLDown, cfg.MethodDown, cfg.BodyDown
	}

	vars := Vars(c, time.Now())
	url = Substitute(url, vars)
	body = Substitute(body, vars)
	if method == "" {
		method = http.MethodGet
		if body != "" {
			method = http.MethodPost
		}
	}

	headers := make(map[string]string, len(cfg.Headers)+1)
	for k, v := range cfg.Headers {
		headers[k] = Substitute(v, vars)
	}
	if _, ok := headers["User-Agent"]; !ok {
		headers["User-Agent"] = w.UserAgent
	}

	return retry.Do(ctx, func() error {
		return w.request(ctx, method, url, body, headers)
	}, retry.Policy{
		Name:     "webhook",
		Attempts: webhookAttempts,
		Backoff:  retry.None{},
		OnAttempt: func(attempt int, err error) {
			w.Log.Debug("webhook attempt failed",
				zap.String("channel", ch.Code),
				zap.Int("attempt", attempt+1),
				zap.Error(err),
			)
		},
	})
}

func (w *Webhook) request(ctx context.Context, method, url, body string, headers map[string]string) error {
	actx, cancel := context.WithTimeout(ctx, webhookTimeout)
	defer cancel()

	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req, err := http.NewRequestWithContext(actx, method, url, rd)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := w.Client.Do(req)
	if err != nil {
		if isTimeout(err) {
			return errors.New("Connection timed out")
		}
		return errors.New("Connection failed")
	}
	defer resp.Body.Close()

	if webhookOKCodes[resp.StatusCode] {
		return nil
	}
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, webhookMaxErrBody))
	if text := strings.TrimSpace(string(msg)); text != "" {
		return fmt.Errorf("Received status code %d with a message: %q", resp.StatusCode, text)
	}
	return fmt.Errorf("Received status code %d", resp.StatusCode)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
