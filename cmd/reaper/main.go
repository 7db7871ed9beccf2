package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	config "github.com/play-it-team/healthchecks/internal/config/reaper"
	"github.com/play-it-team/healthchecks/internal/obs"
	"github.com/play-it-team/healthchecks/internal/obs/retry"
	obrunner "github.com/play-it-team/healthchecks/internal/outbox"
	kafkaRepo "github.com/play-it-team/healthchecks/internal/repository/kafka"
	pg "github.com/play-it-team/healthchecks/internal/repository/postgres"
	"github.com/play-it-team/healthchecks/internal/services/reaper"
)

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

func main() {
	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		log.Fatal(err)
	}

	l, err := obs.NewLogger(cfg.Log)
	if err != nil {
		log.Fatal(err)
	}
	l.Info("starting reaper",
		zap.Any("kafka_out", cfg.Kafka),
		zap.Duration("tick", cfg.Sweep.Tick),
		zap.String("metrics_addr", cfg.Sweep.MetricsAddr),
	)

	otelCloser, err := obs.SetupOTel(rootCtx, cfg.OTEL)
	if err != nil {
		l.Warn("otel init", zap.Error(err))
	} else {
		defer func() { _ = otelCloser.Shutdown(context.Background()) }()
	}

	db, err := pg.NewDB(rootCtx, cfg.DB)
	if err != nil {
		l.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()

	kafkaProd := kafkaRepo.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic)
	defer func() { _ = kafkaProd.Close() }()
	publisher := kafkaRepo.NewStatusEventsKafka(kafkaProd)

	ms := obs.BootstrapMetricsServer(cfg.Sweep.MetricsAddr, func(ctx context.Context) error {
		hctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
		defer cancel()
		return db.Pool.Ping(hctx)
	}, l)

	// wiring
	checks := pg.NewCheckRepo(db)
	outboxRepo := pg.NewOutboxRepo(db)
	tx := pg.NewTransactor(db, l)

	uc := reaper.NewUC(checks, outboxRepo, tx, systemClock{}, l)
	runner := reaper.New(l, uc, &cfg.Sweep)

	relay := obrunner.NewRunner(l, outboxRepo,
		obrunner.MakeGlobalHandler(publisher, retry.DefaultKafkaPolicy(l)),
		cfg.Outbox,
	)
	relay.Start(rootCtx)

	errCh := make(chan error, 1)
	go func() { errCh <- runner.Run(rootCtx) }()

	l.Info("reaper started")

	select {
	case <-rootCtx.Done():
	case err = <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			l.Error("runner error", zap.Error(err))
		}
	}

	shCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	_ = ms.Shutdown(shCtx)
	l.Info("bye")
}
