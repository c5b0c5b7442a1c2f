package kafka

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/IBM/sarama"
)

type MessageHandler interface {
	Handle(ctx context.Context, msg *sarama.ConsumerMessage) error
}

// HandlerFunc adapts a function to MessageHandler.
type HandlerFunc func(ctx context.Context, msg *sarama.ConsumerMessage) error

func (f HandlerFunc) Handle(ctx context.Context, msg *sarama.ConsumerMessage) error { return f(ctx, msg) }

// Consumer feeds a consumer group into a MessageHandler. A message is retried
// Attempts times and then marked anyway so one bad record cannot stall its
// partition.
type Consumer struct {
	group    sarama.ConsumerGroup
	handler  MessageHandler
	logger   *slog.Logger
	Attempts int
	Backoff  time.Duration
}

func NewConsumer(brokers []string, groupID string, cfg *sarama.Config, handler MessageHandler, logger *slog.Logger) (*Consumer, error) {
	if cfg == nil {
		cfg = sarama.NewConfig()
		cfg.Version = sarama.V2_5_0_0
		cfg.Consumer.Offsets.Initial = sarama.OffsetOldest
		cfg.Consumer.Return.Errors = true
	}
	group, err := sarama.NewConsumerGroup(brokers, groupID, cfg)
	if err != nil {
		return nil, err
	}
	return newConsumer(group, handler, logger), nil
}

func newConsumer(group sarama.ConsumerGroup, handler MessageHandler, logger *slog.Logger) *Consumer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Consumer{group: group, handler: handler, logger: logger, Attempts: 3, Backoff: 200 * time.Millisecond}
}

// Run consumes topics until ctx is cancelled. Consume returns on every
// rebalance, so it is called in a loop.
func (c *Consumer) Run(ctx context.Context, topics []string) error {
	c.logger.Info("kafka consumer started", "topics", topics)
	go c.drainErrors(ctx)
	for {
		if err := c.group.Consume(ctx, topics, c.claimHandler()); err != nil {
			if errors.Is(err, sarama.ErrClosedConsumerGroup) {
				return nil
			}
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
	}
}

func (c *Consumer) Close() error {
	return c.group.Close()
}

func (c *Consumer) drainErrors(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case err, ok := <-c.group.Errors():
			if !ok {
				return
			}
			c.logger.Warn("kafka consumer error", "error", err)
		}
	}
}

func (c *Consumer) claimHandler() claimHandler {
	attempts := c.Attempts
	if attempts < 1 {
		attempts = 1
	}
	return claimHandler{handler: c.handler, logger: c.logger, attempts: attempts, backoff: c.Backoff}
}

type claimHandler struct {
	handler  MessageHandler
	logger   *slog.Logger
	attempts int
	backoff  time.Duration
}

func (claimHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (claimHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

func (h claimHandler) ConsumeClaim(sess sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	ctx := sess.Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-claim.Messages():
			if !ok {
				return nil
			}
			if err := h.deliver(ctx, msg); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				h.logger.Warn("kafka message dropped",
					"topic", msg.Topic,
					"partition", msg.Partition,
					"offset", msg.Offset,
					"attempts", h.attempts,
					"error", err,
				)
			}
			sess.MarkMessage(msg, "")
		}
	}
}

func (h claimHandler) deliver(ctx context.Context, msg *sarama.ConsumerMessage) error {
	var err error
	for attempt := 1; attempt <= h.attempts; attempt++ {
		if err = h.handler.Handle(ctx, msg); err == nil {
			return nil
		}
		if attempt == h.attempts || h.backoff <= 0 {
			continue
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(h.backoff * time.Duration(attempt)):
		}
	}
	return err
}
