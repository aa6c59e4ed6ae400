package pool

import (
	"context"

	"github.com/bitshock-src/switchgear/internal/api"
)

// DescriptionKind tags how a description is bound into an invoice.
type DescriptionKind int

const (
	// DescriptionDirect is an inline text memo with no hash binding.
	DescriptionDirect DescriptionKind = iota

	// DescriptionDirectIntoHash asks the node to hash the given text and
	// place the hash in the invoice.
	DescriptionDirectIntoHash

	// DescriptionHash is a pre-computed 32-byte description hash,
	// inserted directly.
	DescriptionHash
)

// Bolt11Description selects one of the three ways a Backend Client can bind
// a description into an invoice.
type Bolt11Description struct {
	Kind DescriptionKind
	Text string
	Hash [32]byte
}

// Direct builds a Bolt11Description carrying an inline memo.
func Direct(text string) Bolt11Description {
	return Bolt11Description{Kind: DescriptionDirect, Text: text}
}

// DirectIntoHash builds a Bolt11Description asking the node to hash text.
func DirectIntoHash(text string) Bolt11Description {
	return Bolt11Description{Kind: DescriptionDirectIntoHash, Text: text}
}

// HashDescription builds a Bolt11Description carrying a pre-computed hash.
func HashDescription(hash [32]byte) Bolt11Description {
	return Bolt11Description{Kind: DescriptionHash, Hash: hash}
}

// Client is a Backend Client (C1): a per-node RPC client to one Lightning
// implementation, issuing invoice and channel-balance requests. Variants
// (internal/core/pool/lnd, internal/core/pool/cln) connect lazily: the
// first call establishes the transport, later calls reuse it, and any
// transport or RPC failure drops the cached connection so the next call
// re-handshakes.
type Client interface {
	// GetInvoice requests a bolt11 invoice. amountMsat of nil leaves the
	// amount open, per the underlying RPC's own semantics; expirySecs of
	// nil uses the node's default expiry.
	GetInvoice(ctx context.Context, amountMsat *uint64,
		description Bolt11Description, expirySecs *uint32) (string, error)

	// GetMetrics reports the backend's current liveness and capacity.
	// Healthy is true iff the RPC returned; the returned error, if any,
	// should still be inspected by callers that want to distinguish "the
	// node reported itself unhealthy" from "the RPC failed".
	GetMetrics(ctx context.Context) (api.LnMetrics, error)

	// GetFeatures reports the backend's negotiated capabilities. A nil
	// result means the node did not advertise any of the capabilities
	// this gateway understands.
	GetFeatures(ctx context.Context) (*api.LnFeatures, error)
}

// ClientPool is the Client Pool (C2): a mapping from an opaque key to a
// shared Backend Client, with a per-key last-observed-metrics cache.
type ClientPool interface {
	// Connect constructs a client from backend.Implementation and
	// installs it for key, replacing any existing client for that key.
	// It never blocks on network; the client connects lazily.
	Connect(key api.PublicKey, backend api.DiscoveryBackendSparse) error

	// GetInvoice resolves the description form from the backend's
	// negotiated features (Hash when InvoiceFromDescHash, otherwise
	// DirectIntoHash of the metadata string) and delegates to the client
	// registered for key.
	GetInvoice(ctx context.Context, key api.PublicKey, offer api.Offer,
		amountMsat *uint64, expirySecs *uint32) (string, error)

	// GetMetrics probes the client registered for key and updates the
	// per-key metrics cache. A probe failure leaves the cache unchanged.
	GetMetrics(ctx context.Context, key api.PublicKey) (api.LnMetrics, error)

	// GetCachedMetrics is a non-blocking read of the last-observed
	// metrics for key. ok is false if the key has never been probed.
	GetCachedMetrics(key api.PublicKey) (metrics api.LnMetrics, ok bool)
}
