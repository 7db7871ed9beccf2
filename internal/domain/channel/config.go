package channel

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Config is the canonical, per-kind shape of a channel's value payload.
// Exactly one member is set, matching the channel kind.
type Config struct {
	Email   *EmailConfig
	Webhook *WebhookConfig
	Shell   *ShellConfig
	SMS     *SMSConfig
}

// EmailConfig controls which status directions produce mail. Legacy values
// are a bare address string, which means both directions are enabled.
type EmailConfig struct {
	Address    string `json:"value"`
	NotifyUp   bool   `json:"up"`
	NotifyDown bool   `json:"down"`
}

// WebhookConfig holds one optional request template per direction. A legacy
// bare-string value is a down URL and nothing else.
type WebhookConfig struct {
	URLUp      string            `json:"url_up"`
	URLDown    string            `json:"url_down"`
	MethodUp   string            `json:"method_up"`
	MethodDown string            `json:"method_down"`
	BodyUp     string            `json:"body_up"`
	BodyDown   string            `json:"body_down"`
	Headers    map[string]string `json:"headers"`
}

type ShellConfig struct {
	CmdUp   string `json:"cmd_up"`
	CmdDown string `json:"cmd_down"`
}

type SMSConfig struct {
	Phone      string `json:"value"`
	NotifyUp   bool   `json:"up"`
	NotifyDown bool   `json:"down"`
}

// ParseConfig normalizes a raw value payload into its typed form. It is
// called at channel creation and again when rows are loaded, and it must
// tolerate every shape older writers produced: bare strings for email, sms
// and webhook, full JSON objects for everything else. Unknown kinds are
// rejected here so the transports never see them.
func ParseConfig(kind Kind, value string) (Config, error) {
	switch kind {
	case KindEmail:
		var ec EmailConfig
		if isJSONObject(value) {
			// A direction key absent from the JSON payload means the
			// writer never opted in, not both directions on.
			if err := json.Unmarshal([]byte(value), &ec); err != nil {
				return Config{}, fmt.Errorf("email value: %w", err)
			}
		} else {
			ec = EmailConfig{Address: strings.TrimSpace(value), NotifyUp: true, NotifyDown: true}
		}
		return Config{Email: &ec}, nil

	case KindWebhook:
		var wc WebhookConfig
		if isJSONObject(value) {
			if err := json.Unmarshal([]byte(value), &wc); err != nil {
				return Config{}, fmt.Errorf("webhook value: %w", err)
			}
		} else {
			wc.URLDown = strings.TrimSpace(value)
		}
		return Config{Webhook: &wc}, nil

	case KindShell:
		var sc ShellConfig
		if isJSONObject(value) {
			if err := json.Unmarshal([]byte(value), &sc); err != nil {
				return Config{}, fmt.Errorf("shell value: %w", err)
			}
		} else {
			sc.CmdDown = strings.TrimSpace(value)
		}
		return Config{Shell: &sc}, nil

	case KindSMS:
		mc := SMSConfig{NotifyUp: false, NotifyDown: true}
		if isJSONObject(value) {
			if err := json.Unmarshal([]byte(value), &mc); err != nil {
				return Config{}, fmt.Errorf("sms value: %w", err)
			}
		} else {
			mc.Phone = strings.TrimSpace(value)
		}
		return Config{SMS: &mc}, nil
	}
	return Config{}, fmt.Errorf("unknown channel kind %q", kind)
}

func isJSONObject(s string) bool {
	return strings.HasPrefix(strings.TrimSpace(s), "{")
}
