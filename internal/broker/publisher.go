package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"

	"github.com/roach88/idocore/internal/allocation"
	"github.com/roach88/idocore/internal/resolver"
)

// Publisher publishes JSON messages to durable queues.
type Publisher struct {
	mu       sync.Mutex
	ch       Channel
	declared map[string]bool
	log      logrus.FieldLogger
}

// NewPublisher wraps ch.
func NewPublisher(ch Channel, log logrus.FieldLogger) *Publisher {
	return &Publisher{ch: ch, declared: make(map[string]bool), log: log}
}

// Publish marshals message and publishes it persistently to queue.
// The queue is declared on first use.
func (p *Publisher) Publish(ctx context.Context, queue string, message any) error {
	body, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.declared[queue] {
		if err := declare(p.ch, queue); err != nil {
			return err
		}
		p.declared[queue] = true
	}
	err = p.ch.PublishWithContext(ctx,
		"",    // exchange
		queue, // routing key
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish to %s: %w", queue, err)
	}
	p.log.WithField("queue", queue).Debugf("published %d bytes", len(body))
	return nil
}

// Close closes the underlying channel.
func (p *Publisher) Close() error {
	if p.ch == nil {
		return nil
	}
	return p.ch.Close()
}

// QueryDispatcher sends staking queries to the query queue. Answers come
// back through a Consumer on the resolution queue.
type QueryDispatcher struct {
	pub   *Publisher
	queue string
}

// NewQueryDispatcher publishes queries through pub to queue.
func NewQueryDispatcher(pub *Publisher, queue string) *QueryDispatcher {
	if queue == "" {
		queue = DefaultQueryQueue
	}
	return &QueryDispatcher{pub: pub, queue: queue}
}

// Dispatch publishes q.
func (d *QueryDispatcher) Dispatch(ctx context.Context, q resolver.Query) error {
	return d.pub.Publish(ctx, d.queue, q)
}

var _ resolver.Dispatcher = (*QueryDispatcher)(nil)

// SettlementPublisher hands transfers to an external settlement worker.
// A transfer counts as done once the broker has accepted it.
type SettlementPublisher struct {
	pub   *Publisher
	queue string
}

// NewSettlementPublisher publishes transfers through pub to queue.
func NewSettlementPublisher(pub *Publisher, queue string) *SettlementPublisher {
	if queue == "" {
		queue = DefaultSettlementQueue
	}
	return &SettlementPublisher{pub: pub, queue: queue}
}

// Transfer publishes t.
func (s *SettlementPublisher) Transfer(ctx context.Context, t allocation.Transfer) error {
	return s.pub.Publish(ctx, s.queue, t)
}

var _ allocation.Settlement = (*SettlementPublisher)(nil)
