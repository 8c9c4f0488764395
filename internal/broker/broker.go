// Package broker carries staking queries, staking resolutions and
// settlement transfers over RabbitMQ.
//
// Three durable queues are used: queries go out on the query queue,
// resolutions come back on the resolution queue, and transfers go out on
// the settlement queue. Every message body is JSON.
package broker

import (
	"context"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

// Default queue names.
const (
	DefaultQueryQueue      = "idocore.staking.queries"
	DefaultResolutionQueue = "idocore.staking.resolutions"
	DefaultSettlementQueue = "idocore.settlement.transfers"
)

// Channel is the subset of *amqp.Channel the broker uses.
type Channel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
	Close() error
}

// DialConfig controls Dial.
type DialConfig struct {
	URL        string
	MaxRetries int
	RetryDelay time.Duration
}

// Dial connects to RabbitMQ, retrying up to MaxRetries times.
func Dial(ctx context.Context, cfg DialConfig, log logrus.FieldLogger) (*amqp.Connection, error) {
	retries := cfg.MaxRetries
	if retries <= 0 {
		retries = 1
	}
	delay := cfg.RetryDelay
	if delay <= 0 {
		delay = 3 * time.Second
	}

	var err error
	for i := 0; i < retries; i++ {
		var conn *amqp.Connection
		conn, err = amqp.Dial(cfg.URL)
		if err == nil {
			log.Info("connected to rabbitmq")
			return conn, nil
		}
		if i == retries-1 {
			break
		}
		log.WithError(err).WithFields(logrus.Fields{
			"attempt": i + 1,
			"max":     retries,
		}).Warn("rabbitmq connect failed, retrying")
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}
	return nil, fmt.Errorf("connect to rabbitmq after %d attempts: %w", retries, err)
}

func declare(ch Channel, queue string) error {
	_, err := ch.QueueDeclare(
		queue,
		true,  // durable
		false, // autoDelete
		false, // exclusive
		false, // noWait
		nil,
	)
	if err != nil {
		return fmt.Errorf("declare queue %s: %w", queue, err)
	}
	return nil
}
