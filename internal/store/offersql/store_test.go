package offersql

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/bitshock-src/switchgear/internal/api"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "offers.db")
	store, err := Open(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestStore_PutThenGetMetadata(t *testing.T) {
	s := newTestStore(t)
	id := uuid.New()

	require.NoError(t, s.PutMetadata(context.Background(), api.OfferMetadata{
		ID: id, Partition: "default", Text: "tip jar",
		Identifier: &api.OfferMetadataIdentifier{
			Kind: api.IdentifierEmail, Value: "tips@example.com",
		},
	}))

	got, err := s.GetMetadata(context.Background(), "default", id)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, "tip jar", got.Text)
	require.Equal(t, api.IdentifierEmail, got.Identifier.Kind)
}

func TestStore_GetMetadataMissingReturnsNil(t *testing.T) {
	s := newTestStore(t)
	got, err := s.GetMetadata(context.Background(), "default", uuid.New())
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestStore_PutRecordRejectsUnknownMetadata(t *testing.T) {
	s := newTestStore(t)
	err := s.PutRecord(context.Background(), api.OfferRecord{
		ID: uuid.New(), Partition: "default", MetadataID: uuid.New(),
		Timestamp: time.Now(),
	})
	require.ErrorIs(t, err, ErrMetadataMissing)
}

func TestStore_DeleteMetadataRefusedWhileReferenced(t *testing.T) {
	s := newTestStore(t)
	metadataID := uuid.New()
	recordID := uuid.New()

	require.NoError(t, s.PutMetadata(context.Background(),
		api.OfferMetadata{ID: metadataID, Partition: "default", Text: "x"}))
	require.NoError(t, s.PutRecord(context.Background(), api.OfferRecord{
		ID: recordID, Partition: "default", MetadataID: metadataID,
		MinSendable: 1000, MaxSendable: 5000, Timestamp: time.Now(),
	}))

	err := s.DeleteMetadata(context.Background(), "default", metadataID)
	require.ErrorIs(t, err, ErrMetadataReferenced)

	require.NoError(t, s.DeleteRecord(context.Background(), "default", recordID))
	require.NoError(t, s.DeleteMetadata(context.Background(), "default", metadataID))
}

func TestStore_GetRecordRoundTripsExpiry(t *testing.T) {
	s := newTestStore(t)
	metadataID := uuid.New()
	recordID := uuid.New()
	expires := time.Now().Add(24 * time.Hour).UTC().Truncate(time.Second)

	require.NoError(t, s.PutMetadata(context.Background(),
		api.OfferMetadata{ID: metadataID, Partition: "default", Text: "x"}))
	require.NoError(t, s.PutRecord(context.Background(), api.OfferRecord{
		ID: recordID, Partition: "default", MetadataID: metadataID,
		MinSendable: 1000, MaxSendable: 5000,
		Timestamp: time.Now().UTC().Truncate(time.Second),
		Expires:   &expires,
	}))

	got, err := s.GetRecord(context.Background(), "default", recordID)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.True(t, expires.Equal(*got.Expires))
}

func TestStore_GetRecordPartitionIsolated(t *testing.T) {
	s := newTestStore(t)
	metadataID := uuid.New()
	recordID := uuid.New()

	require.NoError(t, s.PutMetadata(context.Background(),
		api.OfferMetadata{ID: metadataID, Partition: "default", Text: "x"}))
	require.NoError(t, s.PutRecord(context.Background(), api.OfferRecord{
		ID: recordID, Partition: "default", MetadataID: metadataID,
		Timestamp: time.Now(),
	}))

	got, err := s.GetRecord(context.Background(), "other", recordID)
	require.NoError(t, err)
	require.Nil(t, got)
}
