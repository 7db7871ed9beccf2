package kafka

import (
	"context"

	"github.com/play-it-team/healthchecks/internal/domain/event"
)

// StatusEventsKafka publishes status-changed events keyed by check code so
// all transitions of one check land on the same partition, in order.
type StatusEventsKafka struct {
	p *Producer
}

func NewStatusEventsKafka(p *Producer) *StatusEventsKafka { return &StatusEventsKafka{p: p} }

var _ event.Publisher = (*StatusEventsKafka)(nil)

func (e *StatusEventsKafka) PublishStatusChanged(ctx context.Context, ev event.StatusChanged) error {
	return e.p.PublishJSON(ctx, []byte(ev.Code), ev)
}
