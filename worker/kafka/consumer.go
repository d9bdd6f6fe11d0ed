package kafka

import (
	"context"
	"errors"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"videotasks/events"
	"videotasks/worker/config"
)

// MessageHandler receives decoded events. A returned error only matters in
// on_success ack mode.
type MessageHandler func(ctx context.Context, ev events.Event) error

type Options struct {
	AckMode       config.AckMode
	MaxDeliveries int
	RetryBackoff  time.Duration
}

type Consumer struct {
	consumer sarama.ConsumerGroup
	topic    string
	opts     Options
	logger   *zap.Logger
}

func NewConsumer(brokers []string, groupID, topic string, opts Options, logger *zap.Logger) (*Consumer, error) {
	cfg := sarama.NewConfig()
	cfg.Version = sarama.V2_8_0_0
	cfg.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}
	cfg.Consumer.Offsets.Initial = sarama.OffsetOldest
	cfg.Consumer.Return.Errors = true

	c, err := sarama.NewConsumerGroup(brokers, groupID, cfg)
	if err != nil {
		return nil, err
	}

	return &Consumer{consumer: c, topic: topic, opts: opts, logger: logger}, nil
}

type consumerHandler struct {
	fn     MessageHandler
	opts   Options
	logger *zap.Logger
	sleep  func(ctx context.Context, d time.Duration) bool
}

func newConsumerHandler(fn MessageHandler, opts Options, logger *zap.Logger) *consumerHandler {
	if opts.MaxDeliveries < 1 {
		opts.MaxDeliveries = 1
	}
	return &consumerHandler{fn: fn, opts: opts, logger: logger, sleep: sleepCtx}
}

func (h *consumerHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (h *consumerHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

// ConsumeClaim handles one message at a time, so a partition never has
// more than one event in flight.
func (h *consumerHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case msg, ok := <-claim.Messages():
			if !ok {
				return nil
			}
			h.handle(session, msg)
		case <-session.Context().Done():
			return nil
		}
	}
}

func (h *consumerHandler) handle(session sarama.ConsumerGroupSession, msg *sarama.ConsumerMessage) {
	ctx := session.Context()
	fields := []zap.Field{
		zap.String("topic", msg.Topic),
		zap.Int32("partition", msg.Partition),
		zap.Int64("offset", msg.Offset),
	}

	ev, err := events.Decode(msg.Value)
	if err != nil {
		h.logger.Warn("Dropping malformed message", append(fields, zap.Error(err))...)
		session.MarkMessage(msg, "")
		return
	}
	fields = append(fields, zap.String("event_type", string(ev.Kind())))

	for attempt := 1; ; attempt++ {
		err := h.fn(ctx, ev)
		if err == nil {
			break
		}
		if h.opts.AckMode != config.AckOnSuccess {
			h.logger.Error("Error processing message", append(fields, zap.Error(err))...)
			break
		}
		if attempt >= h.opts.MaxDeliveries {
			h.logger.Error("Dropping message after max deliveries",
				append(fields, zap.Int("deliveries", attempt), zap.Error(err))...)
			break
		}

		h.logger.Warn("Redelivering message",
			append(fields, zap.Int("delivery", attempt), zap.Error(err))...)
		if !h.sleep(ctx, h.opts.RetryBackoff*time.Duration(attempt)) {
			// Left unmarked so the next owner of the partition gets it.
			return
		}
	}

	session.MarkMessage(msg, "")
	h.logger.Info("Message acknowledged", fields...)
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// Consume joins the group and blocks until ctx is cancelled, rejoining
// after every rebalance.
func (c *Consumer) Consume(ctx context.Context, handler MessageHandler) error {
	h := newConsumerHandler(handler, c.opts, c.logger)

	go func() {
		for err := range c.consumer.Errors() {
			c.logger.Warn("Consumer group error", zap.Error(err))
		}
	}()

	for {
		if err := c.consumer.Consume(ctx, []string{c.topic}, h); err != nil {
			if errors.Is(err, sarama.ErrClosedConsumerGroup) {
				return nil
			}
			return err
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

func (c *Consumer) Close() error {
	return c.consumer.Close()
}
