package delivery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"3tcapital/ms_ecommerce_audit/internal/core/messaging"
	"3tcapital/ms_ecommerce_audit/internal/core/requestlog"
)

// ErrDeliveriesClosed is returned by Run when the delivery stream ends while
// the consumer is still supposed to be running, typically because the broker
// connection was lost.
var ErrDeliveriesClosed = errors.New("delivery stream closed unexpectedly")

// Source opens a stream of deliveries from the broker.
type Source interface {
	Consume(ctx context.Context) (<-chan messaging.Delivery, error)
}

// Store persists decoded log records.
type Store interface {
	Insert(ctx context.Context, rec requestlog.Record) (string, error)
}

// State is the processing state of a single delivery.
type State int

const (
	StateReceived State = iota
	StateProcessing
	StateAcked
	StateRejected
)

func (s State) String() string {
	switch s {
	case StateReceived:
		return "received"
	case StateProcessing:
		return "processing"
	case StateAcked:
		return "acked"
	case StateRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// Options tunes the consumer.
type Options struct {
	// PersistTimeout bounds a single insert. The insert is not cancelled by shutdown.
	PersistTimeout time.Duration
	// DeadLetter is informational: rejected deliveries are routed to a dead-letter queue.
	DeadLetter bool
}

// Stats counts delivery outcomes since the consumer started.
type Stats struct {
	Received  int64
	Acked     int64
	Rejected  int64
	AckErrors int64
}

// Consumer turns queued envelopes into stored records. A delivery is acked
// only after its record was persisted and rejected without requeue otherwise.
type Consumer struct {
	source Source
	store  Store
	log    *slog.Logger
	opts   Options
	gate   *AdmissionGate

	received  atomic.Int64
	acked     atomic.Int64
	rejected  atomic.Int64
	ackErrors atomic.Int64

	// onSettled is a test hook invoked after a delivery reaches a final state.
	onSettled func(d messaging.Delivery, state State)
}

// NewConsumer creates a delivery consumer.
func NewConsumer(source Source, store Store, log *slog.Logger, opts Options) *Consumer {
	if opts.PersistTimeout <= 0 {
		opts.PersistTimeout = 30 * time.Second
	}
	return &Consumer{
		source: source,
		store:  store,
		log:    log,
		opts:   opts,
		gate:   NewAdmissionGate(1),
	}
}

// Run consumes until ctx is cancelled, then waits for the in-flight delivery
// to settle and returns nil. A failure to start consuming and a delivery
// stream that closes on its own are returned as errors.
func (c *Consumer) Run(ctx context.Context) error {
	deliveries, err := c.source.Consume(ctx)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}

	c.log.Info("delivery consumer started", "persist_timeout", c.opts.PersistTimeout, "dead_letter", c.opts.DeadLetter)

	var wg sync.WaitGroup
	defer func() {
		wg.Wait()
		stats := c.Stats()
		c.log.Info("delivery consumer stopped",
			"received", stats.Received,
			"acked", stats.Acked,
			"rejected", stats.Rejected,
			"ack_errors", stats.AckErrors,
		)
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return ErrDeliveriesClosed
			}

			c.received.Add(1)

			// Acquired here, released by dispatch: deliveries enter
			// processing strictly in the order they were received.
			if err := c.gate.Acquire(ctx); err != nil {
				// Unsettled; the broker redelivers it after the channel closes.
				c.log.Info("shutdown before processing delivery", "delivery_tag", d.Tag)
				return nil
			}

			wg.Add(1)
			go c.dispatch(ctx, d, &wg)
		}
	}
}

func (c *Consumer) dispatch(ctx context.Context, d messaging.Delivery, wg *sync.WaitGroup) {
	defer wg.Done()
	defer c.gate.Release()
	defer func() {
		if r := recover(); r != nil {
			c.log.Error("panic while processing delivery", "delivery_tag", d.Tag, "panic", r)
			c.reject(d)
		}
	}()

	c.process(ctx, d)
}

func (c *Consumer) process(ctx context.Context, d messaging.Delivery) {
	log := c.log.With("delivery_tag", d.Tag, "redelivered", d.Redelivered)
	log.Debug("processing delivery", "state", StateProcessing.String())

	rec, err := requestlog.DecodeEnvelope(d.Body)
	if err != nil {
		log.Warn("rejecting malformed envelope", "error", err, "body_size", len(d.Body))
		c.reject(d)
		return
	}

	persistCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.opts.PersistTimeout)
	defer cancel()

	id, err := c.store.Insert(persistCtx, rec)
	if err != nil {
		log.Error("rejecting delivery after storage failure",
			"error", err,
			"trace_id", rec.TraceID,
			"method", rec.Method,
			"path", rec.Path,
		)
		c.reject(d)
		return
	}

	if err := d.Ack(); err != nil {
		c.ackErrors.Add(1)
		log.Error("failed to ack persisted delivery", "error", err, "record_id", id)
		c.settled(d, StateAcked)
		return
	}

	c.acked.Add(1)
	log.Debug("delivery persisted", "record_id", id, "trace_id", rec.TraceID)
	c.settled(d, StateAcked)
}

func (c *Consumer) reject(d messaging.Delivery) {
	if err := d.Reject(); err != nil {
		c.ackErrors.Add(1)
		c.log.Error("failed to reject delivery", "delivery_tag", d.Tag, "error", err)
	} else {
		c.rejected.Add(1)
		if c.opts.DeadLetter {
			c.log.Info("delivery dead-lettered", "delivery_tag", d.Tag)
		} else {
			c.log.Warn("delivery dropped", "delivery_tag", d.Tag)
		}
	}
	c.settled(d, StateRejected)
}

func (c *Consumer) settled(d messaging.Delivery, state State) {
	if c.onSettled != nil {
		c.onSettled(d, state)
	}
}

// Stats returns a snapshot of delivery outcomes.
func (c *Consumer) Stats() Stats {
	return Stats{
		Received:  c.received.Load(),
		Acked:     c.acked.Load(),
		Rejected:  c.rejected.Load(),
		AckErrors: c.ackErrors.Load(),
	}
}

// GateStats exposes admission gate usage.
func (c *Consumer) GateStats() GateStats {
	return c.gate.Stats()
}
