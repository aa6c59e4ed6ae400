// Package selector implements the Selector (C5): a policy choosing a
// backend from the healthy set, with an iteration budget and an
// optional capacity bias that favours backends with more inbound
// liquidity.
package selector

import (
	"bytes"
	"hash/maphash"
	"math"
	"math/rand"
	"sort"

	"github.com/bitshock-src/switchgear/internal/api"
)

// MetricsLookup is a non-blocking read of a backend's last-observed
// metrics, used for capacity-bias weighting. A pool.ClientPool's
// GetCachedMetrics satisfies it directly.
type MetricsLookup func(key api.PublicKey) (api.LnMetrics, bool)

// Iterator reports whether the retry budget for one get_invoice call has
// been exhausted.
type Iterator struct {
	budget int
}

// Exhausted reports whether attempts selection steps have already been
// made.
func (i Iterator) Exhausted(attempts int) bool {
	return attempts >= i.budget
}

// Policy is the shared selector contract: choose a candidate for the
// attempt'th selection step (0-indexed) from healthy, optionally keyed by a
// request key (used by Consistent; ignored by RoundRobin and Random).
type Policy interface {
	Choose(healthy []api.DiscoveryBackend, key []byte,
		attempt int) (api.DiscoveryBackend, Iterator, error)
}

// ErrNoCandidates is returned by a Policy when healthy is empty; callers
// (the Balancer) are expected to have already checked this and should treat
// it as a programming error rather than a user-facing one.
type ErrNoCandidates struct{}

func (ErrNoCandidates) Error() string { return "selector: healthy set is empty" }

// effectiveWeight applies the optional capacity bias: weight * (1 + bias *
// normalised_inbound), where normalised_inbound is the backend's cached
// inbound liquidity divided by the maximum across the current candidate
// set. A bias of 0 disables the adjustment.
func effectiveWeight(b api.DiscoveryBackend, lookup MetricsLookup,
	bias float64, maxInbound uint64) float64 {

	weight := float64(b.Backend.Weight)
	if weight == 0 {
		weight = 1
	}
	if bias <= 0 || lookup == nil || maxInbound == 0 {
		return weight
	}

	metrics, ok := lookup(b.PublicKey)
	if !ok {
		return weight
	}

	normalised := float64(metrics.NodeEffectiveInboundMsat) / float64(maxInbound)
	return weight * (1 + bias*normalised)
}

func maxInboundOf(healthy []api.DiscoveryBackend, lookup MetricsLookup) uint64 {
	if lookup == nil {
		return 0
	}
	var max uint64
	for _, b := range healthy {
		if m, ok := lookup(b.PublicKey); ok && m.NodeEffectiveInboundMsat > max {
			max = m.NodeEffectiveInboundMsat
		}
	}
	return max
}

// sortedByKey returns a copy of healthy sorted by public key byte order,
// the deterministic tie-break every policy uses.
func sortedByKey(healthy []api.DiscoveryBackend) []api.DiscoveryBackend {
	out := make([]api.DiscoveryBackend, len(healthy))
	copy(out, healthy)
	sort.Slice(out, func(i, j int) bool {
		return bytes.Compare(out[i].PublicKey[:], out[j].PublicKey[:]) < 0
	})
	return out
}

// RoundRobin cycles through the healthy list in insertion order. The
// cursor is owned by the Policy value, matching the "per-balancer cursor"
// the contract calls for: one RoundRobin instance per Balancer.
type RoundRobin struct {
	cursor uint64
}

var _ Policy = (*RoundRobin)(nil)

// NewRoundRobin creates a RoundRobin selector with a fresh cursor.
func NewRoundRobin() *RoundRobin {
	return &RoundRobin{}
}

func (r *RoundRobin) Choose(healthy []api.DiscoveryBackend, _ []byte,
	_ int) (api.DiscoveryBackend, Iterator, error) {

	if len(healthy) == 0 {
		return api.DiscoveryBackend{}, Iterator{}, ErrNoCandidates{}
	}

	idx := r.cursor % uint64(len(healthy))
	r.cursor++

	return healthy[idx], Iterator{budget: len(healthy)}, nil
}

// Random picks uniformly, or weighted by capacity bias when configured,
// over the healthy set.
type Random struct {
	Bias   float64
	Lookup MetricsLookup
	rand   *rand.Rand
}

var _ Policy = (*Random)(nil)

// NewRandom creates a Random selector. lookup may be nil to disable
// capacity bias regardless of bias.
func NewRandom(bias float64, lookup MetricsLookup) *Random {
	return &Random{Bias: bias, Lookup: lookup, rand: rand.New(rand.NewSource(1))}
}

func (r *Random) Choose(healthy []api.DiscoveryBackend, _ []byte,
	_ int) (api.DiscoveryBackend, Iterator, error) {

	if len(healthy) == 0 {
		return api.DiscoveryBackend{}, Iterator{}, ErrNoCandidates{}
	}

	ordered := sortedByKey(healthy)
	maxInbound := maxInboundOf(ordered, r.Lookup)

	weights := make([]float64, len(ordered))
	var total float64
	for i, b := range ordered {
		weights[i] = effectiveWeight(b, r.Lookup, r.Bias, maxInbound)
		total += weights[i]
	}

	target := r.rand.Float64() * total
	var cum float64
	for i, w := range weights {
		cum += w
		if target < cum {
			return ordered[i], Iterator{budget: len(ordered)}, nil
		}
	}

	return ordered[len(ordered)-1], Iterator{budget: len(ordered)}, nil
}

// Consistent hashes the request key over the backend ring using an
// HRW/rendezvous-style hash: every candidate's score is a deterministic
// function of (key, public key, effective weight), and the candidate with
// the highest score wins. A retry's attempt index selects the attempt'th
// highest score instead, giving the probe sequence the contract calls for.
type Consistent struct {
	Bias        float64
	Lookup      MetricsLookup
	MaxIterations int

	seed maphash.Seed
}

var _ Policy = (*Consistent)(nil)

// NewConsistent creates a Consistent selector. maxIterations bounds the
// retry budget independent of the healthy-set size.
func NewConsistent(bias float64, lookup MetricsLookup,
	maxIterations int) *Consistent {

	if maxIterations <= 0 {
		maxIterations = 1
	}
	return &Consistent{
		Bias:          bias,
		Lookup:        lookup,
		MaxIterations: maxIterations,
		seed:          maphash.MakeSeed(),
	}
}

// logUnit is math.Log split out so the zero-avoidance branch in Choose
// reads clearly at the call site.
func logUnit(u float64) float64 {
	return math.Log(u)
}

type scoredBackend struct {
	backend api.DiscoveryBackend
	score   float64
}

func (c *Consistent) Choose(healthy []api.DiscoveryBackend, key []byte,
	attempt int) (api.DiscoveryBackend, Iterator, error) {

	if len(healthy) == 0 {
		return api.DiscoveryBackend{}, Iterator{}, ErrNoCandidates{}
	}

	ordered := sortedByKey(healthy)
	maxInbound := maxInboundOf(ordered, c.Lookup)

	scored := make([]scoredBackend, len(ordered))
	for i, b := range ordered {
		var h maphash.Hash
		h.SetSeed(c.seed)
		_, _ = h.Write(key)
		_, _ = h.Write(b.PublicKey[:])
		hashed := h.Sum64()

		// Map the hash into (0,1) and weight it by the candidate's
		// effective weight, the standard rendezvous-hash scoring
		// function: higher weight raises a candidate's expected score
		// without needing a virtual-node ring.
		unit := float64(hashed>>11) / float64(1<<53)
		if unit == 0 {
			unit = 1e-9
		}
		weight := effectiveWeight(b, c.Lookup, c.Bias, maxInbound)
		scored[i] = scoredBackend{backend: b, score: weight / -logUnit(unit)}
	}

	sort.Slice(scored, func(i, j int) bool {
		if scored[i].score != scored[j].score {
			return scored[i].score > scored[j].score
		}
		return bytes.Compare(
			scored[i].backend.PublicKey[:], scored[j].backend.PublicKey[:],
		) < 0
	})

	idx := attempt % len(scored)
	budget := c.MaxIterations
	return scored[idx].backend, Iterator{budget: budget}, nil
}
