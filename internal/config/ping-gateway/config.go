package ping_gateway_config

import (
	"time"

	"github.com/play-it-team/healthchecks/internal/obs"
	obrunner "github.com/play-it-team/healthchecks/internal/outbox"
	pginfra "github.com/play-it-team/healthchecks/internal/repository/postgres"
)

type KafkaCfg struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

type ServerCfg struct {
	Addr            string        `mapstructure:"addr"`
	MetricsAddr     string        `mapstructure:"metrics_addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type Config struct {
	DB     pginfra.Config  `mapstructure:"db"`
	Kafka  KafkaCfg        `mapstructure:"kafka_out"`
	Outbox obrunner.Config `mapstructure:"outbox"`
	Server ServerCfg       `mapstructure:"server"`
	Log    obs.LogConfig   `mapstructure:"log"`
	OTEL   obs.OTELConfig  `mapstructure:"otel"`
}
