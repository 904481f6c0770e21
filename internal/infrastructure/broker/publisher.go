package broker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"3tcapital/ms_ecommerce_audit/internal/core/requestlog"
)

// ErrPublishNacked is returned when the broker refuses a published message.
var ErrPublishNacked = errors.New("broker did not confirm message")

var errPublisherClosed = errors.New("publisher is closed")

// Publisher publishes log records to the audit exchange with publisher
// confirms enabled. The connection is opened on first use and reopened
// lazily after it is lost. At most one reconnect runs at a time, in the
// background; callers wait for it only as long as their context allows.
type Publisher struct {
	cfg     Config
	log     *slog.Logger
	breaker *CircuitBreaker

	mu      sync.Mutex
	conn    *amqp.Connection
	ch      *amqp.Channel
	pending *reconnect
	closed  bool
}

// reconnect is a dial in progress. err is written before done is closed.
type reconnect struct {
	done chan struct{}
	err  error
}

// NewPublisher creates a publisher. No connection is made until the first Publish.
func NewPublisher(cfg Config, log *slog.Logger) *Publisher {
	return &Publisher{
		cfg:     cfg,
		log:     log,
		breaker: NewCircuitBreaker(cfg.BreakerMaxFailures, cfg.BreakerCooldown),
	}
}

// Publish encodes rec and waits for the broker to confirm it. It returns
// ErrCircuitOpen without touching the network while the breaker is open,
// and never outlives ctx.
func (p *Publisher) Publish(ctx context.Context, rec requestlog.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	body, err := requestlog.EncodeEnvelope(rec)
	if err != nil {
		return err
	}

	return p.breaker.Execute(ctx, func() error {
		return p.publish(ctx, body)
	})
}

// Connect opens the channel and declares the topology, waiting at most
// until ctx is done.
func (p *Publisher) Connect(ctx context.Context) error {
	_, err := p.channel(ctx)
	return err
}

// BreakerState reports the state of the publish circuit breaker.
func (p *Publisher) BreakerState() BreakerState {
	return p.breaker.State()
}

func (p *Publisher) publish(ctx context.Context, body []byte) error {
	ch, err := p.channel(ctx)
	if err != nil {
		return err
	}

	p.mu.Lock()
	confirmation, err := ch.PublishWithDeferredConfirmWithContext(ctx, p.cfg.Exchange, p.cfg.RoutingKey, false, false, amqp.Publishing{
		ContentType:  requestlog.ContentType,
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	})
	if err != nil {
		if p.ch == ch {
			p.resetLocked()
		}
		p.mu.Unlock()
		return fmt.Errorf("publish to %s: %w", p.cfg.Exchange, err)
	}
	p.mu.Unlock()

	acked, err := confirmation.WaitContext(ctx)
	if err != nil {
		return fmt.Errorf("await publish confirmation: %w", err)
	}
	if !acked {
		return ErrPublishNacked
	}
	return nil
}

// channel returns an open confirm-mode channel. When none is open it joins
// the reconnect in flight or starts one, then waits for it or for ctx.
func (p *Publisher) channel(ctx context.Context) (*amqp.Channel, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, errPublisherClosed
	}
	if p.ch != nil && !p.ch.IsClosed() {
		ch := p.ch
		p.mu.Unlock()
		return ch, nil
	}
	attempt := p.pending
	if attempt == nil {
		attempt = &reconnect{done: make(chan struct{})}
		p.pending = attempt
		go p.reconnect(attempt)
	}
	p.mu.Unlock()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-attempt.done:
	}
	if attempt.err != nil {
		return nil, attempt.err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, errPublisherClosed
	}
	if p.ch == nil {
		return nil, errors.New("broker channel lost after reconnect")
	}
	return p.ch, nil
}

// reconnect dials and prepares a channel without holding p.mu. The dial is
// bounded by its own timeout, so an abandoned attempt still ends.
func (p *Publisher) reconnect(attempt *reconnect) {
	conn, ch, err := p.open()

	p.mu.Lock()
	defer p.mu.Unlock()
	defer close(attempt.done)
	p.pending = nil

	switch {
	case err != nil:
		attempt.err = err
	case p.closed:
		_ = conn.Close()
		attempt.err = errPublisherClosed
	default:
		p.resetLocked()
		p.conn, p.ch = conn, ch
		p.log.Info("broker connection established", "host", p.cfg.Host, "exchange", p.cfg.Exchange)
	}
}

func (p *Publisher) open() (*amqp.Connection, *amqp.Channel, error) {
	conn, err := dial(p.cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to broker: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.Confirm(false); err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("enable publisher confirms: %w", err)
	}
	if err := DeclareTopology(ch, p.cfg); err != nil {
		_ = conn.Close()
		return nil, nil, err
	}
	return conn, ch, nil
}

func (p *Publisher) resetLocked() {
	if p.ch != nil {
		_ = p.ch.Close()
		p.ch = nil
	}
	if p.conn != nil {
		_ = p.conn.Close()
		p.conn = nil
	}
}

// Close releases the channel and connection. Further publishes fail.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.closed = true
	var errs []error
	if p.ch != nil && !p.ch.IsClosed() {
		errs = append(errs, p.ch.Close())
	}
	if p.conn != nil && !p.conn.IsClosed() {
		errs = append(errs, p.conn.Close())
	}
	p.ch = nil
	p.conn = nil
	return errors.Join(errs...)
}
