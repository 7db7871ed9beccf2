package dispatcher

import (
	"context"

	"go.uber.org/zap"

	"github.com/play-it-team/healthchecks/internal/domain/event"
	kafkax "github.com/play-it-team/healthchecks/internal/repository/kafka"
)

type Controller struct {
	Log *zap.Logger
	Sub *kafkax.Consumer
	UC  *Handler
}

func (c *Controller) Run(ctx context.Context) error {
	handler := kafkax.JSONHandler(
		func(ctx context.Context, _ []byte, ev *event.StatusChanged) error {
			c.Log.Debug("status-changed",
				zap.String("check", ev.Code),
				zap.String("old", ev.Old),
				zap.String("new", ev.New),
			)
			return c.UC.HandleStatusChanged(ctx, *ev)
		},
	)
	return c.Sub.Consume(ctx, handler)
}
