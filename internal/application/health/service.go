package health

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	corehealth "3tcapital/ms_ecommerce_audit/internal/core/health"
)

const defaultCheckTimeout = 2 * time.Second

// Metadata describes the running process.
type Metadata struct {
	Service     string
	Version     string
	Environment string
}

// Check probes one backing service. A nil error means it is reachable.
type Check struct {
	Name  string
	Probe func(ctx context.Context) error
}

type Service struct {
	meta      Metadata
	startedAt time.Time
	checks    []Check
	timeout   time.Duration
}

func NewService(meta Metadata, checks ...Check) *Service {
	return &Service{
		meta:      meta,
		startedAt: time.Now().UTC(),
		checks:    checks,
		timeout:   defaultCheckTimeout,
	}
}

// Status probes every dependency concurrently, each bounded by its own
// timeout, and reports DEGRADED when any of them fails. Dependencies are
// listed in registration order.
func (s *Service) Status(ctx context.Context) corehealth.Status {
	deps := make([]corehealth.Dependency, len(s.checks))

	var g errgroup.Group
	for i, check := range s.checks {
		g.Go(func() error {
			deps[i] = s.probe(ctx, check)
			return nil
		})
	}
	_ = g.Wait()

	overall := corehealth.StatusUp
	for _, d := range deps {
		if d.Status != corehealth.StatusUp {
			overall = corehealth.StatusDegraded
		}
	}

	uptime := time.Since(s.startedAt)
	status := corehealth.Status{
		Service:     s.meta.Service,
		Version:     s.meta.Version,
		Environment: s.meta.Environment,
		Status:      overall,
		StartedAt:   s.startedAt,
		Uptime:      uptime.Round(time.Second).String(),
		UptimeSecs:  int64(uptime.Seconds()),
	}
	if len(deps) > 0 {
		status.Dependencies = deps
	}
	return status
}

func (s *Service) probe(ctx context.Context, check Check) (dep corehealth.Dependency) {
	dep = corehealth.Dependency{Name: check.Name, Status: corehealth.StatusUp}
	defer func() {
		if r := recover(); r != nil {
			dep.Status, dep.Error = corehealth.StatusDegraded, fmt.Sprintf("probe panicked: %v", r)
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := check.Probe(ctx); err != nil {
		dep.Status, dep.Error = corehealth.StatusDegraded, err.Error()
	}
	return dep
}
