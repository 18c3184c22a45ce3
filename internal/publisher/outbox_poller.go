package publisher

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	r "github.com/orderflow/checkout-service/internal/repository"
)

const (
	defaultBatchLimit = 100
	defaultPollTick   = time.Second
)

// MessageWriter is the slice of kafka.Writer the poller needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// OutboxPoller ships committed order events from the outbox table to Kafka.
// The committer writes events inside the order's transaction, so anything
// the poller sees is final; publishing is at-least-once and consumers
// deduplicate on the order id key.
type OutboxPoller struct {
	pollTick   time.Duration
	batchLimit int
	repo       r.RepoInterface
	writer     MessageWriter
	breaker    *gobreaker.CircuitBreaker[any]
	logger     *zap.Logger
}

func NewOutboxPoller(repo r.RepoInterface, logger *zap.Logger, brokers ...string) *OutboxPoller {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  "checkout-orders",
		Balancer:               &kafka.LeastBytes{},
		AllowAutoTopicCreation: true,
	}
	return newOutboxPoller(repo, w, logger)
}

func newOutboxPoller(repo r.RepoInterface, writer MessageWriter, logger *zap.Logger) *OutboxPoller {
	breaker := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:    "kafka-publisher",
		Timeout: 10 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})
	return &OutboxPoller{
		pollTick:   defaultPollTick,
		batchLimit: defaultBatchLimit,
		repo:       repo,
		writer:     writer,
		breaker:    breaker,
		logger:     logger,
	}
}

func (p *OutboxPoller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.pollTick)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			p.processUnpublishedEvents(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (p *OutboxPoller) processUnpublishedEvents(ctx context.Context) {
	events, err := p.repo.GetUnprocessedEvents(ctx, p.batchLimit)
	if err != nil {
		p.logger.Error("failed to fetch outbox events", zap.Error(err))
		return
	}

	for _, event := range events {
		if errPublish := p.publish(ctx, event); errPublish != nil {
			p.logger.Error("failed to publish outbox event",
				zap.Int64("event_id", event.ID),
				zap.Error(errPublish))
			continue
		}

		if errMark := p.repo.MarkEventAsProcessed(ctx, event.ID); errMark != nil {
			p.logger.Error("failed to mark outbox event as processed",
				zap.Int64("event_id", event.ID),
				zap.Error(errMark))
			continue
		}
	}
}

func (p *OutboxPoller) publish(ctx context.Context, event *r.OutboxEvent) error {
	msg := kafka.Message{
		Key:   []byte(event.AggregateID), // order id keeps per-order ordering
		Value: event.Payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
		},
	}

	_, err := p.breaker.Execute(func() (any, error) {
		return nil, p.writer.WriteMessages(ctx, msg)
	})
	return err
}
