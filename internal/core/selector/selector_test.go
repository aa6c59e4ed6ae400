package selector

import (
	"testing"

	"github.com/bitshock-src/switchgear/internal/api"
	"github.com/stretchr/testify/require"
)

func backendWithKey(b byte, weight uint32) api.DiscoveryBackend {
	var k api.PublicKey
	k[0] = b
	return api.DiscoveryBackend{
		PublicKey: k,
		Backend:   api.DiscoveryBackendSparse{Weight: weight},
	}
}

func TestRoundRobin_CyclesInOrder(t *testing.T) {
	healthy := []api.DiscoveryBackend{backendWithKey(1, 1), backendWithKey(2, 1)}
	rr := NewRoundRobin()

	var picks []byte
	for i := 0; i < 4; i++ {
		b, _, err := rr.Choose(healthy, nil, i)
		require.NoError(t, err)
		picks = append(picks, b.PublicKey[0])
	}

	require.Equal(t, []byte{1, 2, 1, 2}, picks)
}

func TestRoundRobin_EmptyHealthySet(t *testing.T) {
	rr := NewRoundRobin()
	_, _, err := rr.Choose(nil, nil, 0)
	require.Error(t, err)
}

func TestRandom_PicksFromHealthySet(t *testing.T) {
	healthy := []api.DiscoveryBackend{backendWithKey(1, 1), backendWithKey(2, 1)}
	r := NewRandom(0, nil)

	b, iter, err := r.Choose(healthy, nil, 0)
	require.NoError(t, err)
	require.Contains(t, []byte{1, 2}, b.PublicKey[0])
	require.Equal(t, 2, iter.budget)
}

func TestConsistent_StableForSameKeyAndSet(t *testing.T) {
	healthy := []api.DiscoveryBackend{
		backendWithKey(1, 1), backendWithKey(2, 1), backendWithKey(3, 1),
	}
	c := NewConsistent(0, nil, 5)

	key := []byte("offer-id-123")
	first, _, err := c.Choose(healthy, key, 0)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		again, _, err := c.Choose(healthy, key, 0)
		require.NoError(t, err)
		require.Equal(t, first.PublicKey, again.PublicKey)
	}
}

func TestConsistent_DifferentAttemptsProbeDifferentBackends(t *testing.T) {
	healthy := []api.DiscoveryBackend{
		backendWithKey(1, 1), backendWithKey(2, 1), backendWithKey(3, 1),
	}
	c := NewConsistent(0, nil, 5)

	seen := map[byte]bool{}
	key := []byte("offer-id-abc")
	for attempt := 0; attempt < 3; attempt++ {
		b, _, err := c.Choose(healthy, key, attempt)
		require.NoError(t, err)
		seen[b.PublicKey[0]] = true
	}
	require.Len(t, seen, 3, "the probe sequence should cover the whole ring")
}

func TestConsistent_IterationBudgetIsConfigured(t *testing.T) {
	healthy := []api.DiscoveryBackend{backendWithKey(1, 1)}
	c := NewConsistent(0, nil, 7)

	_, iter, err := c.Choose(healthy, []byte("k"), 0)
	require.NoError(t, err)
	require.False(t, iter.Exhausted(6))
	require.True(t, iter.Exhausted(7))
}

func TestCapacityBias_PrefersHigherInboundBackend(t *testing.T) {
	healthy := []api.DiscoveryBackend{backendWithKey(1, 1), backendWithKey(2, 1)}

	lookup := func(key api.PublicKey) (api.LnMetrics, bool) {
		if key[0] == 2 {
			return api.LnMetrics{NodeEffectiveInboundMsat: 1_000_000}, true
		}
		return api.LnMetrics{NodeEffectiveInboundMsat: 0}, true
	}

	r := NewRandom(1.0, lookup)

	counts := map[byte]int{}
	for i := 0; i < 2000; i++ {
		b, _, err := r.Choose(healthy, nil, 0)
		require.NoError(t, err)
		counts[b.PublicKey[0]]++
	}

	require.Greater(t, counts[2], counts[1])
}
