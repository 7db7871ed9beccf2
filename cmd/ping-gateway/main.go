package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	config "github.com/play-it-team/healthchecks/internal/config/ping-gateway"
	"github.com/play-it-team/healthchecks/internal/obs"
	"github.com/play-it-team/healthchecks/internal/obs/retry"
	obrunner "github.com/play-it-team/healthchecks/internal/outbox"
	kafkaRepo "github.com/play-it-team/healthchecks/internal/repository/kafka"
	pg "github.com/play-it-team/healthchecks/internal/repository/postgres"
	"github.com/play-it-team/healthchecks/internal/services/pinggw"
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
	l.Info("starting ping-gateway",
		zap.String("addr", cfg.Server.Addr),
		zap.Any("kafka_out", cfg.Kafka),
		zap.String("metrics_addr", cfg.Server.MetricsAddr),
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

	ms := obs.BootstrapMetricsServer(cfg.Server.MetricsAddr, func(ctx context.Context) error {
		hctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
		defer cancel()
		return db.Pool.Ping(hctx)
	}, l)

	// wiring
	checks := pg.NewCheckRepo(db)
	pings := pg.NewPingRepo(db)
	outboxRepo := pg.NewOutboxRepo(db)
	tx := pg.NewTransactor(db, l)

	uc := pinggw.NewUC(checks, pings, outboxRepo, tx, systemClock{}, l)
	handler := pinggw.NewHandler(uc, l)

	relay := obrunner.NewRunner(l, outboxRepo,
		obrunner.MakeGlobalHandler(publisher, retry.DefaultKafkaPolicy(l)),
		cfg.Outbox,
	)
	relay.Start(rootCtx)

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      handler.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	l.Info("ping-gateway started")

	select {
	case <-rootCtx.Done():
		l.Info("shutdown signal")
	case err = <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.Error("http server error", zap.Error(err))
		}
	}

	shCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	_ = srv.Shutdown(shCtx)
	_ = ms.Shutdown(shCtx)
	l.Info("bye")
}
