package testutil

import (
	"context"
	"sync"
	"time"

	"3tcapital/ms_ecommerce_audit/internal/core/requestlog"
)

// FakePublisher records published log records.
type FakePublisher struct {
	mu      sync.Mutex
	records []requestlog.Record
	calls   int

	// Err, when set, is returned by Publish after recording the attempt.
	Err error
	// Delay blocks Publish, honoring ctx.
	Delay time.Duration
	// Panic makes Publish panic.
	Panic bool
}

// Publish records rec.
func (p *FakePublisher) Publish(ctx context.Context, rec requestlog.Record) error {
	if p.Delay > 0 {
		select {
		case <-time.After(p.Delay):
		case <-ctx.Done():
		}
	}

	p.mu.Lock()
	p.calls++
	if p.Panic {
		p.mu.Unlock()
		panic("publisher exploded")
	}
	if p.Err != nil {
		p.mu.Unlock()
		return p.Err
	}
	p.records = append(p.records, rec)
	p.mu.Unlock()
	return ctx.Err()
}

// Records returns the successfully published records.
func (p *FakePublisher) Records() []requestlog.Record {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]requestlog.Record, len(p.records))
	copy(out, p.records)
	return out
}

// Calls returns the number of publish attempts.
func (p *FakePublisher) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

// WaitForCalls polls until at least n publish attempts were made.
func (p *FakePublisher) WaitForCalls(n int, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if p.Calls() >= n {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return p.Calls() >= n
}
