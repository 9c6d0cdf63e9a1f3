package outbox

import (
	"context"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/whereabout/gate-ticketing/internal/adapters/crdb"
	"github.com/whereabout/gate-ticketing/internal/adapters/rabbit"
	"github.com/whereabout/gate-ticketing/internal/observability"
)

const (
	pollInterval = 5 * time.Second
	batchSize    = 50
	maxRetries   = 3
)

// Publisher drains NEW outbox rows to the gate exchange. Gate transitions are
// written to the outbox in the same transaction as the entry record, so every
// recorded entry/exit eventually reaches the bus at least once.
type Publisher struct {
	repo   *crdb.Repository
	rabbit *rabbit.Publisher
	logger observability.Logger
}

func NewPublisher(repo *crdb.Repository, rabbitPub *rabbit.Publisher, logger observability.Logger) *Publisher {
	return &Publisher{repo: repo, rabbit: rabbitPub, logger: logger}
}

func (p *Publisher) Run(ctx context.Context) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.drain(ctx)
		}
	}
}

func (p *Publisher) drain(ctx context.Context) {
	records, err := p.repo.PendingOutbox(ctx, batchSize)
	if err != nil {
		p.logger.WithError(err).Error("failed to fetch pending outbox")
		return
	}
	if len(records) > 0 {
		observability.OutboxLag.Set(time.Since(records[0].CreatedAt).Seconds())
	} else {
		observability.OutboxLag.Set(0)
	}

	for _, rec := range records {
		if err := p.publishWithRetry(ctx, rec); err != nil {
			p.logger.WithError(err).WithField("outbox_id", rec.ID).Error("outbox record stuck")
			continue
		}
		if err := p.repo.MarkPublished(ctx, rec.ID, time.Now()); err != nil {
			p.logger.WithError(err).WithField("outbox_id", rec.ID).Error("failed to mark published")
		}
	}
}

func (p *Publisher) publishWithRetry(ctx context.Context, rec crdb.OutboxRecord) error {
	msg := amqp.Publishing{
		MessageId:   rec.DedupeKey,
		ContentType: "application/json",
		Body:        rec.Payload,
	}

	var err error
	for i := 0; i < maxRetries; i++ {
		if err = p.rabbit.Publish(ctx, rec.EventType, msg); err == nil {
			return nil
		}
		backoff := time.Duration(1<<i) * time.Second
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
	return err
}
