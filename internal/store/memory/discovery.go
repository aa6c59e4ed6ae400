// Package memory provides in-memory DiscoveryBackendStore and
// OfferStore/OfferMetadataStore collaborators, grounded in the original
// system's memory-backed stores, so the core can be exercised end to end
// without an external admin service. CRUD HTTP surfaces and auth are out of
// scope; these types only expose the Go interfaces the core consumes plus
// the mutation operations an administrative collaborator would call.
package memory

import (
	"context"
	"encoding/hex"
	"fmt"
	"sync"

	"github.com/bitshock-src/switchgear/internal/api"
	"github.com/bitshock-src/switchgear/internal/core/discovery"
)

// DiscoveryStore is an in-memory DiscoveryBackendStore. Its ETag counter
// strictly increases on every successful mutation, including the patch
// path: per the resolved open question, a patch always bumps the ETag,
// even one that happens to leave every field unchanged.
type DiscoveryStore struct {
	mu       sync.Mutex
	backends map[api.PublicKey]api.DiscoveryBackendSparse
	order    []api.PublicKey
	etag     uint64
}

var _ discovery.Store = (*DiscoveryStore)(nil)

// NewDiscoveryStore creates an empty DiscoveryStore at ETag 0.
func NewDiscoveryStore() *DiscoveryStore {
	return &DiscoveryStore{
		backends: make(map[api.PublicKey]api.DiscoveryBackendSparse),
	}
}

// GetAll returns the full collection, or an absent Backends slice when
// ifNoneMatch already equals the current ETag.
func (s *DiscoveryStore) GetAll(_ context.Context,
	ifNoneMatch *uint64) (discovery.Backends, error) {

	s.mu.Lock()
	defer s.mu.Unlock()

	if ifNoneMatch != nil && *ifNoneMatch == s.etag {
		return discovery.Backends{ETag: s.etag}, nil
	}

	out := make([]api.DiscoveryBackend, 0, len(s.order))
	for _, key := range s.order {
		out = append(out, api.DiscoveryBackend{
			PublicKey: key,
			Backend:   s.backends[key],
		})
	}

	return discovery.Backends{ETag: s.etag, Backends: out}, nil
}

// Get returns a single backend by key.
func (s *DiscoveryStore) Get(key api.PublicKey) (api.DiscoveryBackendSparse, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.backends[key]
	return b, ok
}

// Post inserts a new backend. It fails if key is already registered,
// preserving the store's (public_key) uniqueness invariant.
func (s *DiscoveryStore) Post(key api.PublicKey,
	backend api.DiscoveryBackendSparse) error {

	if err := api.ValidatePublicKey(key); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.backends[key]; exists {
		return fmt.Errorf("backend %x already registered", key)
	}

	s.backends[key] = backend
	s.order = append(s.order, key)
	s.bumpETag()
	return nil
}

// Put upserts a backend wholesale.
func (s *DiscoveryStore) Put(key api.PublicKey,
	backend api.DiscoveryBackendSparse) error {

	if err := api.ValidatePublicKey(key); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.backends[key]; !exists {
		s.order = append(s.order, key)
	}
	s.backends[key] = backend
	s.bumpETag()
	return nil
}

// Patch applies a partial update to an existing backend.
func (s *DiscoveryStore) Patch(key api.PublicKey,
	patch api.DiscoveryBackendPatch) error {

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.backends[key]
	if !ok {
		return fmt.Errorf("backend %x not found", key)
	}

	s.backends[key] = patch.Apply(existing)

	// Bump unconditionally: a patch is a successful mutation regardless
	// of whether any field value actually changed.
	s.bumpETag()
	return nil
}

// Delete removes a backend.
func (s *DiscoveryStore) Delete(key api.PublicKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.backends[key]; !ok {
		return fmt.Errorf("backend %x not found", key)
	}

	delete(s.backends, key)
	for i, k := range s.order {
		if k == key {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	s.bumpETag()
	return nil
}

func (s *DiscoveryStore) bumpETag() {
	s.etag++
}

// ETagString renders a u64 ETag as the big-endian hex string used on the
// `ETag` HTTP response header.
func ETagString(etag uint64) string {
	var buf [8]byte
	for i := 0; i < 8; i++ {
		buf[i] = byte(etag >> (56 - 8*i))
	}
	return hex.EncodeToString(buf[:])
}

// ETagFromString parses the hex string produced by ETagString back into a
// u64, satisfying etag_from_str(etag_string(x)) == x.
func ETagFromString(s string) (uint64, error) {
	buf, err := hex.DecodeString(s)
	if err != nil {
		return 0, fmt.Errorf("invalid etag %q: %w", s, err)
	}
	if len(buf) != 8 {
		return 0, fmt.Errorf("invalid etag length %q", s)
	}

	var etag uint64
	for _, b := range buf {
		etag = etag<<8 | uint64(b)
	}
	return etag, nil
}
