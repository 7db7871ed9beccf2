package alert_dispatcher_config

import (
	"github.com/play-it-team/healthchecks/internal/notify"
	"github.com/play-it-team/healthchecks/internal/obs"
	pginfra "github.com/play-it-team/healthchecks/internal/repository/postgres"
)

type KafkaIn struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
	GroupID string   `mapstructure:"group_id"`
}

type NotifyCfg struct {
	BaseURL          string `mapstructure:"base_url"`
	WebhookUserAgent string `mapstructure:"webhook_user_agent"`
}

type ServerCfg struct {
	MetricsAddr string `mapstructure:"metrics_addr"`
}

type Config struct {
	DB     pginfra.Config    `mapstructure:"db"`
	In     KafkaIn           `mapstructure:"kafka_in"`
	SMTP   notify.SMTPConfig `mapstructure:"smtp"`
	Notify NotifyCfg         `mapstructure:"notify"`
	Server ServerCfg         `mapstructure:"server"`
	Log    obs.LogConfig     `mapstructure:"log"`
	OTEL   obs.OTELConfig    `mapstructure:"otel"`
}
