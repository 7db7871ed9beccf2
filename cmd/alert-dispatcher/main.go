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

	config "github.com/play-it-team/healthchecks/internal/config/alert-dispatcher"
	"github.com/play-it-team/healthchecks/internal/notify"
	"github.com/play-it-team/healthchecks/internal/obs"
	kafkaRepo "github.com/play-it-team/healthchecks/internal/repository/kafka"
	pg "github.com/play-it-team/healthchecks/internal/repository/postgres"
	"github.com/play-it-team/healthchecks/internal/services/dispatcher"
)

func wiring(db *pg.DB, cfg *config.Config, cons *kafkaRepo.Consumer, l *zap.Logger) *dispatcher.Controller {
	checks := pg.NewCheckRepo(db)
	channels := pg.NewChannelRepo(db, l)
	notifs := pg.NewNotificationRepo(db)

	mailer := notify.NewSMTPMailer(cfg.SMTP, l)
	email := notify.NewEmail(mailer, notifs, channels, cfg.Notify.BaseURL, l)
	webhook := notify.NewWebhook(l)
	if cfg.Notify.WebhookUserAgent != "" {
		webhook.UserAgent = cfg.Notify.WebhookUserAgent
	}
	shell := notify.NewShell(l)

	nf := notify.NewNotifier(l, channels, notifs, email, webhook, shell)
	uc := dispatcher.NewHandler(checks, nf, l)

	return &dispatcher.Controller{Log: l, Sub: cons, UC: uc}
}

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
	l.Info("starting alert-dispatcher",
		zap.Any("kafka_in", cfg.In),
		zap.String("metrics_addr", cfg.Server.MetricsAddr),
		zap.String("smtp_addr", cfg.SMTP.Addr),
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
	l.Info("db connected")

	ms := obs.BootstrapMetricsServer(cfg.Server.MetricsAddr, func(ctx context.Context) error {
		hctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
		defer cancel()
		return db.Pool.Ping(hctx)
	}, l)

	cons := kafkaRepo.BootstrapConsumer(rootCtx, &kafkaRepo.ConsumerConfig{
		Brokers: cfg.In.Brokers,
		GroupID: cfg.In.GroupID,
		Topic:   cfg.In.Topic,
		Logger:  l,
	}, l)
	defer func() { _ = cons.Close() }()
	l.Info("kafka consumer initialized",
		zap.Strings("brokers", cfg.In.Brokers),
		zap.String("group_id", cfg.In.GroupID),
		zap.String("topic", cfg.In.Topic),
	)

	ctrl := wiring(db, cfg, cons, l)
	errCh := make(chan error, 1)
	go func() {
		l.Info("controller starting")
		errCh <- ctrl.Run(rootCtx)
	}()

	var runErr error
	select {
	case <-rootCtx.Done():
		l.Info("shutdown signal")
	case runErr = <-errCh:
		if runErr != nil && !errors.Is(runErr, context.Canceled) {
			l.Error("controller error", zap.Error(runErr))
		}
	}

	shCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	_ = ms.Shutdown(shCtx)
	l.Info("bye")
}
