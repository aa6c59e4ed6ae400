// Package discovery implements the Discovery Source (C3): it wraps a
// DiscoveryBackendStore, polls it with ETag-conditional fetches, and emits
// the filtered set of enabled backends for a partition.
package discovery

import (
	"context"
	"fmt"

	"github.com/bitshock-src/switchgear/internal/api"
)

// Backends is a DiscoveryBackendStore's get_all response: Backends is nil
// when the caller's ETag already matched the current collection.
type Backends struct {
	ETag     uint64
	Backends []api.DiscoveryBackend
}

// Store is the collaborator surface a Discovery Source consumes. CRUD
// administration of the underlying records is out of scope for this
// module; internal/store/memory provides the concrete implementation so the
// core can run end to end.
type Store interface {
	GetAll(ctx context.Context, ifNoneMatch *uint64) (Backends, error)
}

// Source polls a Store and republishes the set of backends enabled for a
// partition. It is the sole writer of the "known backends" view the
// Balancer and Health Checker read; callers drive polling by calling Poll
// on a cadence (see internal/core/balancer's discovery loop).
type Source struct {
	store     Store
	partition string

	lastETag uint64
	haveETag bool
}

// NewSource creates a Source that filters the store's backends down to
// those enabled and tagged with partition.
func NewSource(store Store, partition string) *Source {
	return &Source{store: store, partition: partition}
}

// Poll issues one ETag-conditional fetch. It returns the filtered backend
// set and a bool reporting whether the collection changed since the last
// poll. On no change Poll returns a nil set and the caller keeps the set it
// already holds; Poll itself always recomputes when the store reports a
// change.
func (s *Source) Poll(ctx context.Context) ([]api.DiscoveryBackend, bool, error) {
	var ifNoneMatch *uint64
	if s.haveETag {
		etag := s.lastETag
		ifNoneMatch = &etag
	}

	resp, err := s.store.GetAll(ctx, ifNoneMatch)
	if err != nil {
		return nil, false, fmt.Errorf("polling discovery store: %w", err)
	}

	if s.haveETag && resp.ETag == s.lastETag {
		return nil, false, nil
	}

	s.lastETag, s.haveETag = resp.ETag, true

	filtered := make([]api.DiscoveryBackend, 0, len(resp.Backends))
	for _, b := range resp.Backends {
		if !b.Backend.Enabled {
			continue
		}
		if !b.Backend.HasPartition(s.partition) {
			continue
		}
		filtered = append(filtered, b)
	}

	log.Debugf("discovery: partition %s now has %d enabled backends "+
		"(etag %d)", s.partition, len(filtered), s.lastETag)

	return filtered, true, nil
}
