package delivery

import (
	"context"
	"sync"
)

// AdmissionGate limits how many deliveries may be in processing at once.
// The consumer uses a width of one so that deserialize, persist and settle
// never overlap between deliveries.
type AdmissionGate struct {
	slots chan struct{}
	width int

	mu            sync.Mutex
	active        int
	peakActive    int
	totalAcquired int64
}

// NewAdmissionGate creates a gate admitting at most width holders.
func NewAdmissionGate(width int) *AdmissionGate {
	if width <= 0 {
		width = 1
	}
	return &AdmissionGate{
		slots: make(chan struct{}, width),
		width: width,
	}
}

// Acquire blocks until a slot is free or ctx is done.
func (g *AdmissionGate) Acquire(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	select {
	case g.slots <- struct{}{}:
		g.mu.Lock()
		g.active++
		g.totalAcquired++
		if g.active > g.peakActive {
			g.peakActive = g.active
		}
		g.mu.Unlock()
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release frees the slot taken by a successful Acquire.
func (g *AdmissionGate) Release() {
	g.mu.Lock()
	g.active--
	g.mu.Unlock()
	<-g.slots
}

// GateStats is a snapshot of gate usage.
type GateStats struct {
	Width         int
	Active        int
	PeakActive    int
	TotalAcquired int64
}

// Stats returns current statistics
func (g *AdmissionGate) Stats() GateStats {
	g.mu.Lock()
	defer g.mu.Unlock()
	return GateStats{
		Width:         g.width,
		Active:        g.active,
		PeakActive:    g.peakActive,
		TotalAcquired: g.totalAcquired,
	}
}
