package broker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"3tcapital/ms_ecommerce_audit/internal/core/messaging"
)

// PrefetchCount is the number of unacknowledged deliveries the broker may
// hand to a subscriber at once.
const PrefetchCount = 1

// Subscriber consumes the audit queue with manual acknowledgement.
type Subscriber struct {
	cfg Config
	log *slog.Logger

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
	tag  string
}

// NewSubscriber creates a subscriber. The connection is opened by Consume.
func NewSubscriber(cfg Config, log *slog.Logger) *Subscriber {
	tag := cfg.ConsumerTag
	if tag == "" {
		tag = "audit-consumer-" + uuid.NewString()
	}
	return &Subscriber{cfg: cfg, log: log, tag: tag}
}

// Consume connects, declares the topology and starts consuming. The returned
// channel is closed when ctx is cancelled or the broker connection is lost.
func (s *Subscriber) Consume(ctx context.Context) (<-chan messaging.Delivery, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ch != nil {
		return nil, errors.New("subscriber is already consuming")
	}

	conn, err := dial(s.cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.Qos(PrefetchCount, 0, false); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("set prefetch: %w", err)
	}
	if err := DeclareTopology(ch, s.cfg); err != nil {
		_ = conn.Close()
		return nil, err
	}

	msgs, err := ch.Consume(s.cfg.Queue, s.tag, false, false, false, false, nil)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("consume %s: %w", s.cfg.Queue, err)
	}

	s.conn = conn
	s.ch = ch
	s.log.Info("consuming queue",
		"queue", s.cfg.Queue,
		"consumer_tag", s.tag,
		"prefetch", PrefetchCount,
		"dead_letter_exchange", s.cfg.DeadLetterExchange,
	)

	out := make(chan messaging.Delivery)
	go forward(ctx, msgs, out)
	return out, nil
}

func forward(ctx context.Context, msgs <-chan amqp.Delivery, out chan<- messaging.Delivery) {
	defer close(out)
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			d := messaging.NewDelivery(msg.DeliveryTag, msg.Body, msg.ContentType, msg.RoutingKey, msg.Redelivered, msg.Acknowledger)
			select {
			case out <- d:
			case <-ctx.Done():
				// Not settled; the broker redelivers it once the channel closes.
				return
			}
		}
	}
}

// Close cancels the consumer and closes the channel and connection.
func (s *Subscriber) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	if s.ch != nil && !s.ch.IsClosed() {
		if err := s.ch.Cancel(s.tag, false); err != nil {
			errs = append(errs, err)
		}
		errs = append(errs, s.ch.Close())
	}
	if s.conn != nil && !s.conn.IsClosed() {
		errs = append(errs, s.conn.Close())
	}
	s.ch = nil
	s.conn = nil
	return errors.Join(errs...)
}
