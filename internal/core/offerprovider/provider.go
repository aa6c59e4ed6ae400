// Package offerprovider implements the Offer Provider (C7): it resolves an
// (partition, id) pair to a fully materialised Offer, serialising the
// bound metadata to its canonical JSON form and hashing it.
package offerprovider

import (
	"context"
	"fmt"

	"github.com/bitshock-src/switchgear/internal/api"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

// RecordStore is the collaborator surface exposing OfferRecord lookups.
type RecordStore interface {
	GetRecord(ctx context.Context, partition string, id uuid.UUID) (*api.OfferRecord, error)
}

// MetadataStore is the collaborator surface exposing OfferMetadata lookups.
type MetadataStore interface {
	GetMetadata(ctx context.Context, partition string, id uuid.UUID) (*api.OfferMetadata, error)
}

// Provider resolves offers from a RecordStore and MetadataStore. Concurrent
// Resolve calls for the same (partition, id) are collapsed into a single
// pair of store lookups via singleflight, since a just-published LNURL-pay
// offer link routinely receives a burst of simultaneous GETs from the same
// wallet's retry/prefetch behaviour.
type Provider struct {
	records  RecordStore
	metadata MetadataStore

	group singleflight.Group
}

// New creates a Provider over the given stores.
func New(records RecordStore, metadata MetadataStore) *Provider {
	return &Provider{records: records, metadata: metadata}
}

// Resolve loads the OfferRecord and its OfferMetadata and materialises an
// Offer. It returns (nil, nil) when either row is missing; a non-nil error
// means serialisation or the store itself failed.
func (p *Provider) Resolve(ctx context.Context, partition string,
	id uuid.UUID) (*api.Offer, error) {

	key := partition + "/" + id.String()

	result, err, _ := p.group.Do(key, func() (any, error) {
		return p.resolve(ctx, partition, id)
	})
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, nil
	}
	return result.(*api.Offer), nil
}

func (p *Provider) resolve(ctx context.Context, partition string,
	id uuid.UUID) (*api.Offer, error) {

	record, err := p.records.GetRecord(ctx, partition, id)
	if err != nil {
		return nil, fmt.Errorf("offer provider: loading record: %w", err)
	}
	if record == nil {
		return nil, nil
	}

	metadata, err := p.metadata.GetMetadata(ctx, partition, record.MetadataID)
	if err != nil {
		return nil, fmt.Errorf("offer provider: loading metadata: %w", err)
	}
	if metadata == nil {
		return nil, nil
	}

	offer, err := api.NewOffer(*record, *metadata)
	if err != nil {
		return nil, fmt.Errorf("offer provider: serialising metadata: %w", err)
	}

	return &offer, nil
}
