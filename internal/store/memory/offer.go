package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/bitshock-src/switchgear/internal/api"
	"github.com/google/uuid"
)

// OfferMetadataStore is an in-memory store of OfferMetadata rows, keyed by
// (partition, id). Delete refuses when its caller reports that a record
// still references the metadata row; the store does not look up records
// itself (see OfferRecordStore.ReferencesMetadata).
type OfferMetadataStore struct {
	mu   sync.Mutex
	rows map[string]map[uuid.UUID]api.OfferMetadata
}

// NewOfferMetadataStore creates an empty metadata store.
func NewOfferMetadataStore() *OfferMetadataStore {
	return &OfferMetadataStore{rows: make(map[string]map[uuid.UUID]api.OfferMetadata)}
}

// GetMetadata returns the row for (partition, id), or nil if absent.
func (s *OfferMetadataStore) GetMetadata(_ context.Context, partition string,
	id uuid.UUID) (*api.OfferMetadata, error) {

	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.rows[partition][id]
	if !ok {
		return nil, nil
	}
	return &row, nil
}

// Put inserts or replaces a metadata row.
func (s *OfferMetadataStore) Put(partition string, md api.OfferMetadata) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.rows[partition] == nil {
		s.rows[partition] = make(map[uuid.UUID]api.OfferMetadata)
	}
	s.rows[partition][md.ID] = md
}

// Delete removes a metadata row. referenced is the referential-integrity
// check the caller must supply: when true, deletion is refused.
func (s *OfferMetadataStore) Delete(partition string, id uuid.UUID, referenced bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if referenced {
		return fmt.Errorf("metadata %s still referenced by an offer record", id)
	}
	delete(s.rows[partition], id)
	return nil
}

// OfferRecordStore is an in-memory store of OfferRecord rows, keyed by
// (partition, id).
type OfferRecordStore struct {
	mu   sync.Mutex
	rows map[string]map[uuid.UUID]api.OfferRecord
}

// NewOfferRecordStore creates an empty record store.
func NewOfferRecordStore() *OfferRecordStore {
	return &OfferRecordStore{rows: make(map[string]map[uuid.UUID]api.OfferRecord)}
}

// GetRecord returns the row for (partition, id), or nil if absent.
func (s *OfferRecordStore) GetRecord(_ context.Context, partition string,
	id uuid.UUID) (*api.OfferRecord, error) {

	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.rows[partition][id]
	if !ok {
		return nil, nil
	}
	return &row, nil
}

// Put inserts or replaces a record row.
func (s *OfferRecordStore) Put(partition string, record api.OfferRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.rows[partition] == nil {
		s.rows[partition] = make(map[uuid.UUID]api.OfferRecord)
	}
	s.rows[partition][record.ID] = record
}

// Delete removes a record row.
func (s *OfferRecordStore) Delete(partition string, id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.rows[partition], id)
}

// ReferencesMetadata reports whether any record in partition still points
// at metadataID, the check OfferMetadataStore.Delete callers must perform.
func (s *OfferRecordStore) ReferencesMetadata(partition string, metadataID uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, record := range s.rows[partition] {
		if record.MetadataID == metadataID {
			return true
		}
	}
	return false
}
