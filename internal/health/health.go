package health

import (
	"context"
	"sync"
	"time"
)

// Component states, from best to worst.
const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// Probe checks one dependency. A nil error means the dependency is usable.
type Probe func(ctx context.Context) error

// Component is the result of one probe.
type Component struct {
	Name      string  `json:"name"`
	Status    string  `json:"status"`
	Critical  bool    `json:"critical"`
	Error     string  `json:"error,omitempty"`
	LatencyMS float64 `json:"latency_ms"`
}

// Report is the aggregate of all probes.
type Report struct {
	Status     string      `json:"status"`
	Components []Component `json:"components"`
	CheckedAt  time.Time   `json:"checked_at"`
}

type check struct {
	name     string
	critical bool
	probe    Probe
}

// Checker runs registered probes concurrently.
type Checker struct {
	checks  []check
	timeout time.Duration
}

// NewChecker returns a Checker whose probes each get timeout to finish.
func NewChecker(timeout time.Duration) *Checker {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &Checker{timeout: timeout}
}

// Add registers a probe. A failing critical probe makes the report unhealthy;
// a failing non-critical one only degrades it.
func (c *Checker) Add(name string, critical bool, p Probe) *Checker {
	c.checks = append(c.checks, check{name: name, critical: critical, probe: p})
	return c
}

// Check runs every probe and aggregates the results in registration order.
func (c *Checker) Check(ctx context.Context) *Report {
	r := &Report{Components: make([]Component, len(c.checks)), CheckedAt: time.Now().UTC()}

	var wg sync.WaitGroup
	for i, chk := range c.checks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			pctx, cancel := context.WithTimeout(ctx, c.timeout)
			defer cancel()

			start := time.Now()
			err := chk.probe(pctx)
			comp := Component{
				Name:      chk.name,
				Status:    StatusHealthy,
				Critical:  chk.critical,
				LatencyMS: float64(time.Since(start).Microseconds()) / 1000,
			}
			if err != nil {
				comp.Status = StatusUnhealthy
				comp.Error = err.Error()
			}
			r.Components[i] = comp
		}()
	}
	wg.Wait()

	r.Status = overall(r.Components)
	return r
}

func overall(components []Component) string {
	status := StatusHealthy
	for _, comp := range components {
		if comp.Status == StatusHealthy {
			continue
		}
		if comp.Critical {
			return StatusUnhealthy
		}
		status = StatusDegraded
	}
	return status
}
