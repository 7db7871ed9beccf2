package reaper

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	config "github.com/play-it-team/healthchecks/internal/config/reaper"
)

var (
	mFetched = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reaper_checks_fetched_total", Help: "Overdue candidates fetched from DB",
	})
	mFlipped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reaper_checks_flipped_total", Help: "Checks flipped to down",
	})
	mErr = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reaper_errors_total", Help: "Errors in reaper sweep loop",
	})
	mLoopDur = promauto.NewHistogram(prometheus.HistogramOpts{
		Name: "reaper_loop_duration_seconds", Help: "Sweep duration",
		Buckets: prometheus.DefBuckets,
	})
)

type Runner struct {
	Log *zap.Logger
	UC  *Usecase
	Cfg *config.SweepCfg
}

func New(log *zap.Logger, uc *Usecase, cfg *config.SweepCfg) *Runner {
	return &Runner{Log: log, UC: uc, Cfg: cfg}
}

func (r *Runner) sweep(ctx context.Context) {
	start := time.Now()
	fetched, flipped, errs, err := r.UC.Tick(ctx, r.Cfg.BatchLimit)
	if err != nil {
		mErr.Inc()
		r.Log.Warn("sweep error", zap.Error(err))
	}
	if fetched > 0 {
		mFetched.Add(float64(fetched))
		mFlipped.Add(float64(flipped))
		if errs > 0 {
			mErr.Add(float64(errs))
		}
		r.Log.Debug("swept batch", zap.Int("fetched", fetched), zap.Int("flipped", flipped), zap.Int("errors", errs))
	}
	mLoopDur.Observe(time.Since(start).Seconds())
}

func (r *Runner) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.Cfg.Tick)
	defer ticker.Stop()

	r.sweep(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			r.sweep(ctx)
		}
	}
}
