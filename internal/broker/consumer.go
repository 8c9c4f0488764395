package broker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"

	"github.com/roach88/idocore/internal/resolver"
)

// ErrMalformed marks a message that can never be handled. Such messages
// are rejected without requeue.
var ErrMalformed = errors.New("malformed message")

// Handler processes one message body.
type Handler func(ctx context.Context, body []byte) error

// Consumer reads a durable queue with manual acknowledgement.
type Consumer struct {
	ch    Channel
	queue string
	log   logrus.FieldLogger
}

// NewConsumer declares queue on ch and returns a Consumer for it.
func NewConsumer(ch Channel, queue string, log logrus.FieldLogger) (*Consumer, error) {
	if err := declare(ch, queue); err != nil {
		return nil, err
	}
	return &Consumer{ch: ch, queue: queue, log: log.WithField("queue", queue)}, nil
}

// Consume delivers messages to handler until ctx is cancelled or the
// channel closes. Handled messages are acked. Failed ones are requeued,
// except ErrMalformed failures which are dropped.
func (c *Consumer) Consume(ctx context.Context, handler Handler) error {
	msgs, err := c.ch.Consume(
		c.queue,
		"",    // consumer
		false, // autoAck
		false, // exclusive
		false, // noLocal
		false, // noWait
		nil,
	)
	if err != nil {
		return fmt.Errorf("consume %s: %w", c.queue, err)
	}
	c.log.Info("consumer running")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-msgs:
			if !ok {
				return nil
			}
			c.handle(ctx, msg, handler)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, msg amqp.Delivery, handler Handler) {
	err := handler(ctx, msg.Body)
	switch {
	case err == nil:
		if ackErr := msg.Ack(false); ackErr != nil {
			c.log.WithError(ackErr).Warn("ack failed")
		}
	case errors.Is(err, ErrMalformed):
		c.log.WithError(err).Warn("dropping message")
		if nackErr := msg.Nack(false, false); nackErr != nil {
			c.log.WithError(nackErr).Warn("nack failed")
		}
	default:
		c.log.WithError(err).Warn("handle message failed, requeueing")
		if nackErr := msg.Nack(false, true); nackErr != nil {
			c.log.WithError(nackErr).Warn("nack failed")
		}
	}
}

// Close closes the underlying channel.
func (c *Consumer) Close() error {
	return c.ch.Close()
}

// ResolutionHandler decodes staking resolutions and hands them to sink.
func ResolutionHandler(sink resolver.Sink) Handler {
	return func(ctx context.Context, body []byte) error {
		var res resolver.Resolution
		if err := json.Unmarshal(body, &res); err != nil {
			return fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		if res.QueryID == "" {
			return fmt.Errorf("%w: query_id is required", ErrMalformed)
		}
		if err := res.Continuation.Validate(); err != nil {
			return fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		sink(ctx, res)
		return nil
	}
}
