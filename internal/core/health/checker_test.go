package health

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/bitshock-src/switchgear/internal/api"
	"github.com/stretchr/testify/require"
)

type fakeProber struct {
	mu      sync.Mutex
	results map[api.PublicKey]api.LnMetrics
	errs    map[api.PublicKey]error
}

func newFakeProber() *fakeProber {
	return &fakeProber{
		results: make(map[api.PublicKey]api.LnMetrics),
		errs:    make(map[api.PublicKey]error),
	}
}

func (f *fakeProber) GetMetrics(_ context.Context,
	key api.PublicKey) (api.LnMetrics, error) {

	f.mu.Lock()
	defer f.mu.Unlock()
	return f.results[key], f.errs[key]
}

func keyOf(b byte) api.PublicKey {
	var k api.PublicKey
	k[0] = b
	return k
}

func TestChecker_BecomesHealthyAfterSuccessThreshold(t *testing.T) {
	prober := newFakeProber()
	k := keyOf(1)
	prober.results[k] = api.LnMetrics{Healthy: true}

	c := NewChecker(prober, Config{SuccessThreshold: 2, FailureThreshold: 1})
	backends := []api.DiscoveryBackend{{PublicKey: k}}

	c.RunCycle(context.Background(), backends)
	require.Empty(t, c.Snapshot())

	c.RunCycle(context.Background(), backends)
	require.Len(t, c.Snapshot(), 1)
}

func TestChecker_BecomesUnhealthyAfterFailureThreshold(t *testing.T) {
	prober := newFakeProber()
	k := keyOf(1)
	prober.results[k] = api.LnMetrics{Healthy: true}

	c := NewChecker(prober, Config{SuccessThreshold: 1, FailureThreshold: 2})
	backends := []api.DiscoveryBackend{{PublicKey: k}}

	c.RunCycle(context.Background(), backends)
	require.Len(t, c.Snapshot(), 1)

	prober.errs[k] = errors.New("unreachable")
	c.RunCycle(context.Background(), backends)
	require.Len(t, c.Snapshot(), 1, "one failure must not flip health yet")

	c.RunCycle(context.Background(), backends)
	require.Empty(t, c.Snapshot())
}

func TestChecker_MetricsHealthyFalseCountsAsFailure(t *testing.T) {
	prober := newFakeProber()
	k := keyOf(1)
	prober.results[k] = api.LnMetrics{Healthy: false}

	c := NewChecker(prober, Config{SuccessThreshold: 1, FailureThreshold: 1})
	c.RunCycle(context.Background(), []api.DiscoveryBackend{{PublicKey: k}})
	require.Empty(t, c.Snapshot())
}

func TestChecker_ForgetsStaleBackends(t *testing.T) {
	prober := newFakeProber()
	k1, k2 := keyOf(1), keyOf(2)
	prober.results[k1] = api.LnMetrics{Healthy: true}
	prober.results[k2] = api.LnMetrics{Healthy: true}

	c := NewChecker(prober, Config{SuccessThreshold: 1, FailureThreshold: 1})
	c.RunCycle(context.Background(), []api.DiscoveryBackend{{PublicKey: k1}, {PublicKey: k2}})
	require.Len(t, c.Snapshot(), 2)

	c.RunCycle(context.Background(), []api.DiscoveryBackend{{PublicKey: k1}})
	require.Len(t, c.Snapshot(), 1)
}

func TestChecker_ParallelModeProbesConcurrently(t *testing.T) {
	prober := newFakeProber()
	keys := []api.PublicKey{keyOf(1), keyOf(2), keyOf(3)}
	backends := make([]api.DiscoveryBackend, len(keys))
	for i, k := range keys {
		prober.results[k] = api.LnMetrics{Healthy: true}
		backends[i] = api.DiscoveryBackend{PublicKey: k}
	}

	c := NewChecker(prober, Config{SuccessThreshold: 1, FailureThreshold: 1, ParallelHealthCheck: true})
	c.RunCycle(context.Background(), backends)
	require.Len(t, c.Snapshot(), 3)
}
