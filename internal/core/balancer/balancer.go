// Package balancer implements the Balancer (C6): it orchestrates selection,
// invoice requests and retry-with-backoff across the healthy backend set,
// and runs the discovery-polling and health-check background loops.
package balancer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bitshock-src/switchgear/internal/api"
	"github.com/bitshock-src/switchgear/internal/core/selector"
	"github.com/bitshock-src/switchgear/internal/metrics"
)

// DiscoverySource is the subset of discovery.Source the Balancer drives.
type DiscoverySource interface {
	Poll(ctx context.Context) ([]api.DiscoveryBackend, bool, error)
}

// HealthChecker is the subset of health.Checker the Balancer drives.
type HealthChecker interface {
	RunCycle(ctx context.Context, backends []api.DiscoveryBackend)
	Snapshot() []api.DiscoveryBackend
}

// Pool is the subset of pool.ClientPool the Balancer needs.
type Pool interface {
	Connect(key api.PublicKey, backend api.DiscoveryBackendSparse) error
	GetInvoice(ctx context.Context, key api.PublicKey, offer api.Offer,
		amountMsat *uint64, expirySecs *uint32) (string, error)
}

// ErrNoAvailableNodes is returned when the healthy set is empty; no RPC is
// ever issued in this case.
type ErrNoAvailableNodes struct{}

func (ErrNoAvailableNodes) Error() string { return "no available nodes" }

// ServiceErrorSource implements api.HasServiceErrorSource: an empty healthy
// set is the node pool's fault from the caller's point of view.
func (ErrNoAvailableNodes) ServiceErrorSource() api.ServiceErrorSource {
	return api.ErrorSourceUpstream
}

// Config tunes the Balancer's background loop cadence.
type Config struct {
	// BackendUpdateFrequency is the discovery-polling interval.
	BackendUpdateFrequency time.Duration

	// HealthCheckFrequency is the health-check cadence.
	HealthCheckFrequency time.Duration
}

// BackoffFactory builds a fresh Backoff for each get_invoice call.
type BackoffFactory func() Backoff

// Balancer is the single entry point the LNURL-pay Endpoint calls to turn
// an Offer into an invoice.
type Balancer struct {
	pool     Pool
	source   DiscoverySource
	checker  HealthChecker
	policy   selector.Policy
	newBackoff BackoffFactory
	cfg      Config

	mu       sync.RWMutex
	backends []api.DiscoveryBackend

	shutdown chan struct{}
	done     sync.WaitGroup
}

// New creates a Balancer. Call Start to begin the background discovery and
// health-check loops before the first GetInvoice call.
func New(pool Pool, source DiscoverySource, checker HealthChecker,
	policy selector.Policy, newBackoff BackoffFactory, cfg Config) *Balancer {

	if cfg.BackendUpdateFrequency <= 0 {
		cfg.BackendUpdateFrequency = 30 * time.Second
	}
	if cfg.HealthCheckFrequency <= 0 {
		cfg.HealthCheckFrequency = 15 * time.Second
	}
	if newBackoff == nil {
		newBackoff = func() Backoff { return StopBackoff{} }
	}

	return &Balancer{
		pool:       pool,
		source:     source,
		checker:    checker,
		policy:     policy,
		newBackoff: newBackoff,
		cfg:        cfg,
		shutdown:   make(chan struct{}),
	}
}

// Start launches the discovery-polling and health-check background loops.
// Both exit within one cycle of shutdown being signalled.
func (b *Balancer) Start(ctx context.Context) {
	b.done.Add(2)
	go b.runDiscoveryLoop(ctx)
	go b.runHealthLoop(ctx)
}

// Shutdown signals the background loops to stop and waits for them to
// exit.
func (b *Balancer) Shutdown() {
	close(b.shutdown)
	b.done.Wait()
}

func (b *Balancer) runDiscoveryLoop(ctx context.Context) {
	defer b.done.Done()

	ticker := time.NewTicker(b.cfg.BackendUpdateFrequency)
	defer ticker.Stop()

	b.pollDiscovery(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-b.shutdown:
			return
		case <-ticker.C:
			b.pollDiscovery(ctx)
		}
	}
}

func (b *Balancer) pollDiscovery(ctx context.Context) {
	backends, changed, err := b.source.Poll(ctx)
	if err != nil {
		log.Errorf("balancer: discovery poll failed: %v", err)
		return
	}
	if !changed {
		return
	}

	for _, backend := range backends {
		if err := b.pool.Connect(backend.PublicKey, backend.Backend); err != nil {
			log.Errorf("balancer: connecting backend %x: %v",
				backend.PublicKey, err)
		}
	}

	b.mu.Lock()
	b.backends = backends
	b.mu.Unlock()
}

func (b *Balancer) runHealthLoop(ctx context.Context) {
	defer b.done.Done()

	ticker := time.NewTicker(b.cfg.HealthCheckFrequency)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-b.shutdown:
			return
		case <-ticker.C:
			b.checker.RunCycle(ctx, b.currentBackends())
		}
	}
}

func (b *Balancer) currentBackends() []api.DiscoveryBackend {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.backends
}

// Health reports ok iff the healthy set is non-empty.
func (b *Balancer) Health() bool {
	return len(b.checker.Snapshot()) > 0
}

// GetInvoice runs the retry-with-backoff state machine described by the
// Balancer contract: on each attempt it re-reads the healthy snapshot,
// asks the selector for a candidate, and delegates to the pool; transport
// failures are retried per the backoff policy, Downstream errors
// short-circuit immediately.
func (b *Balancer) GetInvoice(ctx context.Context, offer api.Offer,
	amountMsat *uint64, expirySecs *uint32, key []byte) (string, error) {

	attempts := 0
	backoff := b.newBackoff()

	for {
		snapshot := b.checker.Snapshot()
		if len(snapshot) == 0 {
			metrics.InvoiceRequestsTotal.WithLabelValues("no_available_nodes").Inc()
			return "", ErrNoAvailableNodes{}
		}

		backend, iter, err := b.policy.Choose(snapshot, key, attempts)
		if err != nil {
			metrics.InvoiceRequestsTotal.WithLabelValues("selection_error").Inc()
			return "", fmt.Errorf("balancer: selecting backend: %w", err)
		}

		result, err := b.pool.GetInvoice(
			ctx, backend.PublicKey, offer, amountMsat, expirySecs,
		)
		if err == nil {
			metrics.InvoiceRequestsTotal.WithLabelValues("success").Inc()
			metrics.InvoiceRequestAttempts.Observe(float64(attempts + 1))
			return result, nil
		}

		attempts++
		if iter.Exhausted(attempts) {
			metrics.InvoiceRequestsTotal.WithLabelValues("exhausted").Inc()
			metrics.InvoiceRequestAttempts.Observe(float64(attempts))
			return "", err
		}
		if isDownstream(err) {
			metrics.InvoiceRequestsTotal.WithLabelValues("downstream_error").Inc()
			metrics.InvoiceRequestAttempts.Observe(float64(attempts))
			return "", err
		}

		delay, ok := backoff.Next()
		if !ok {
			metrics.InvoiceRequestsTotal.WithLabelValues("backoff_exhausted").Inc()
			metrics.InvoiceRequestAttempts.Observe(float64(attempts))
			return "", err
		}

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			metrics.InvoiceRequestsTotal.WithLabelValues("context_canceled").Inc()
			metrics.InvoiceRequestAttempts.Observe(float64(attempts))
			return "", ctx.Err()
		}
	}
}

func isDownstream(err error) bool {
	var withSource api.HasServiceErrorSource
	if errors.As(err, &withSource) {
		return withSource.ServiceErrorSource() == api.ErrorSourceDownstream
	}
	return false
}
