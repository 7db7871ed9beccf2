package reaper_config

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

type SweepCfg struct {
	Tick        time.Duration `mapstructure:"tick"`
	BatchLimit  int           `mapstructure:"batch_limit"`
	MetricsAddr string        `mapstructure:"metrics_addr"`
}

type Config struct {
	DB     pginfra.Config  `mapstructure:"db"`
	Kafka  KafkaCfg        `mapstructure:"kafka_out"`
	Outbox obrunner.Config `mapstructure:"outbox"`
	Sweep  SweepCfg        `mapstructure:"sweep"`
	Log    obs.LogConfig   `mapstructure:"log"`
	OTEL   obs.OTELConfig  `mapstructure:"otel"`
}
