package memory

import (
	"context"
	"testing"
	"time"

	"github.com/bitshock-src/switchgear/internal/api"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestOfferMetadataStore_PutThenGet(t *testing.T) {
	s := NewOfferMetadataStore()
	id := uuid.New()
	s.Put("default", api.OfferMetadata{ID: id, Partition: "default", Text: "tip jar"})

	got, err := s.GetMetadata(context.Background(), "default", id)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, "tip jar", got.Text)
}

func TestOfferMetadataStore_GetMissingReturnsNil(t *testing.T) {
	s := NewOfferMetadataStore()
	got, err := s.GetMetadata(context.Background(), "default", uuid.New())
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestOfferMetadataStore_DeleteRefusedWhileReferenced(t *testing.T) {
	s := NewOfferMetadataStore()
	id := uuid.New()
	s.Put("default", api.OfferMetadata{ID: id, Partition: "default"})

	require.Error(t, s.Delete("default", id, true))
	require.NoError(t, s.Delete("default", id, false))

	got, err := s.GetMetadata(context.Background(), "default", id)
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestOfferRecordStore_ReferencesMetadata(t *testing.T) {
	records := NewOfferRecordStore()
	metadataID := uuid.New()
	recordID := uuid.New()

	require.False(t, records.ReferencesMetadata("default", metadataID))

	records.Put("default", api.OfferRecord{
		ID: recordID, Partition: "default", MetadataID: metadataID,
		Timestamp: time.Now(),
	})

	require.True(t, records.ReferencesMetadata("default", metadataID))

	records.Delete("default", recordID)
	require.False(t, records.ReferencesMetadata("default", metadataID))
}

func TestOfferRecordStore_GetRecordPartitionIsolated(t *testing.T) {
	records := NewOfferRecordStore()
	id := uuid.New()
	records.Put("default", api.OfferRecord{ID: id, Partition: "default"})

	got, err := records.GetRecord(context.Background(), "other", id)
	require.NoError(t, err)
	require.Nil(t, got)
}
