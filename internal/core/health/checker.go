// Package health implements the Health Checker (C4): a periodic per-backend
// probe that maintains consecutive-success/failure counters and publishes
// an immutable snapshot of the currently healthy backend set.
package health

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/bitshock-src/switchgear/internal/api"
	"github.com/bitshock-src/switchgear/internal/metrics"
)

// Prober is the probe surface a Health Checker consumes; a
// pool.ClientPool's GetMetrics satisfies it directly.
type Prober interface {
	GetMetrics(ctx context.Context, key api.PublicKey) (api.LnMetrics, error)
}

// Config tunes the checker's thresholds and fan-out behaviour.
type Config struct {
	// SuccessThreshold is the number of consecutive successful probes
	// required to mark a backend healthy.
	SuccessThreshold int

	// FailureThreshold is the number of consecutive failed probes
	// required to mark a backend unhealthy.
	FailureThreshold int

	// ParallelHealthCheck selects fan-out semantics: when true, one probe
	// per backend runs concurrently each cycle; when false, probes run
	// serially, bounding peak RPC load.
	ParallelHealthCheck bool
}

type counters struct {
	consecutiveSuccesses int
	consecutiveFailures  int
	healthy              bool
}

// Checker runs health-check cycles over a changing set of discovered
// backends and publishes the healthy subset as an atomic snapshot. Readers
// never lock: Snapshot is a single atomic load.
type Checker struct {
	prober Prober
	cfg    Config

	mu       sync.Mutex
	counters map[api.PublicKey]*counters

	snapshot atomic.Pointer[[]api.DiscoveryBackend]
}

// NewChecker creates a Checker with an empty healthy-set snapshot.
func NewChecker(prober Prober, cfg Config) *Checker {
	if cfg.SuccessThreshold <= 0 {
		cfg.SuccessThreshold = 1
	}
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 1
	}

	c := &Checker{
		prober:   prober,
		cfg:      cfg,
		counters: make(map[api.PublicKey]*counters),
	}
	empty := make([]api.DiscoveryBackend, 0)
	c.snapshot.Store(&empty)
	return c
}

// Snapshot returns the healthy set as of the last completed cycle. It never
// blocks on a probe in progress.
func (c *Checker) Snapshot() []api.DiscoveryBackend {
	return *c.snapshot.Load()
}

// RunCycle probes every backend in the current discovery set once, updates
// each backend's consecutive success/failure counters, and publishes the
// new healthy-set snapshot. It never blocks the request path: the snapshot
// swap only takes effect once the whole cycle completes.
func (c *Checker) RunCycle(ctx context.Context, backends []api.DiscoveryBackend) {
	known := make(map[api.PublicKey]struct{}, len(backends))
	for _, b := range backends {
		known[b.PublicKey] = struct{}{}
	}

	c.forgetStale(known)

	if c.cfg.ParallelHealthCheck {
		var wg sync.WaitGroup
		for _, b := range backends {
			wg.Add(1)
			go func(b api.DiscoveryBackend) {
				defer wg.Done()
				c.probe(ctx, b.PublicKey)
			}(b)
		}
		wg.Wait()
	} else {
		for _, b := range backends {
			c.probe(ctx, b.PublicKey)
		}
	}

	healthy := make([]api.DiscoveryBackend, 0, len(backends))
	for _, b := range backends {
		if c.isHealthy(b.PublicKey) {
			healthy = append(healthy, b)
		}
	}
	c.snapshot.Store(&healthy)

	metrics.KnownBackends.Set(float64(len(backends)))
	metrics.HealthyBackends.Set(float64(len(healthy)))
}

func (c *Checker) probe(ctx context.Context, key api.PublicKey) {
	m, err := c.prober.GetMetrics(ctx, key)
	success := err == nil && m.Healthy

	c.mu.Lock()
	st, ok := c.counters[key]
	if !ok {
		st = &counters{}
		c.counters[key] = st
	}
	if success {
		st.consecutiveSuccesses++
		st.consecutiveFailures = 0
		if st.consecutiveSuccesses >= c.cfg.SuccessThreshold {
			st.healthy = true
		}
	} else {
		st.consecutiveFailures++
		st.consecutiveSuccesses = 0
		if st.consecutiveFailures >= c.cfg.FailureThreshold {
			st.healthy = false
		}
	}
	c.mu.Unlock()

	if !success {
		metrics.HealthProbeFailuresTotal.Inc()
		log.Debugf("health: probe failed for %x: %v", key, err)
	}
}

func (c *Checker) isHealthy(key api.PublicKey) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	st, ok := c.counters[key]
	return ok && st.healthy
}

// forgetStale drops counter state for backends no longer in the discovery
// set, so a disabled-then-re-enabled backend starts from a clean slate.
func (c *Checker) forgetStale(known map[api.PublicKey]struct{}) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key := range c.counters {
		if _, ok := known[key]; !ok {
			delete(c.counters, key)
		}
	}
}
