// Package api holds the data types shared by the core request-path engine
// and its store/transport collaborators: discovery backends, offers and
// their metadata, and backend capability/health snapshots.
package api

import (
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
)

// PublicKey is the 33-byte compressed secp256k1 public key identifying a
// registered Lightning backend.
type PublicKey [33]byte

// ImplementationType tags which wire protocol a DiscoveryBackend speaks.
type ImplementationType string

const (
	ImplementationLndGrpc ImplementationType = "lnd-grpc"
	ImplementationClnGrpc ImplementationType = "cln-grpc"
)

// AuthMaterial describes how a Backend Client authenticates to its node.
// Which fields are meaningful depends on the implementation: LND uses
// TLSCertPath+MacaroonPath, CLN uses TLSCertPath+Rune.
type AuthMaterial struct {
	TLSCertPath  string `json:"tlsCertPath,omitempty"`
	MacaroonPath string `json:"macaroonPath,omitempty"`
	Rune         string `json:"rune,omitempty"`
}

// Implementation is the tagged union of backend wire protocols. Exactly one
// of Lnd/Cln is populated, selected by Type.
type Implementation struct {
	Type ImplementationType `json:"type"`
	Lnd  *LndGrpcConfig      `json:"lnd,omitempty"`
	Cln  *ClnGrpcConfig      `json:"cln,omitempty"`
}

// LndGrpcConfig is the connection descriptor for an LND node reached over
// its gRPC interface.
type LndGrpcConfig struct {
	URL         string       `json:"url"`
	Domain      string       `json:"domain,omitempty"`
	Auth        AuthMaterial `json:"auth"`
	AmpInvoice  bool         `json:"ampInvoice"`
}

// ClnGrpcConfig is the connection descriptor for a CLN node. The wire-format
// tag is kept as "cln-grpc" for compatibility with the discovery record
// shape, but the transport underneath is CLN's TLS+rune REST interface (see
// internal/core/pool/cln) rather than CLN's gRPC plugin, which has no
// generally available Go client stub.
type ClnGrpcConfig struct {
	URL    string       `json:"url"`
	Domain string       `json:"domain,omitempty"`
	Auth   AuthMaterial `json:"auth"`
}

// DiscoveryBackendSparse is the mutable body of a DiscoveryBackend: the
// public key is the store's identity and is carried alongside, not inside,
// this struct.
type DiscoveryBackendSparse struct {
	Name           string             `json:"name,omitempty"`
	Partitions     []string           `json:"partitions"`
	Weight         uint32             `json:"weight"`
	Enabled        bool               `json:"enabled"`
	Implementation Implementation     `json:"implementation"`
}

// DiscoveryBackend is a registered Lightning node as stored by a
// DiscoveryBackendStore and read by the Discovery Source.
type DiscoveryBackend struct {
	PublicKey PublicKey `json:"publicKey"`
	Backend   DiscoveryBackendSparse
}

// DiscoveryBackendPatch is an all-optional partial update: only non-nil
// fields are applied.
type DiscoveryBackendPatch struct {
	Name           *string         `json:"name,omitempty"`
	Partitions     *[]string       `json:"partitions,omitempty"`
	Weight         *uint32         `json:"weight,omitempty"`
	Enabled        *bool           `json:"enabled,omitempty"`
	Implementation *Implementation `json:"implementation,omitempty"`
}

// Apply returns a copy of b with every non-nil field in p applied.
func (p *DiscoveryBackendPatch) Apply(b DiscoveryBackendSparse) DiscoveryBackendSparse {
	if p.Name != nil {
		b.Name = *p.Name
	}
	if p.Partitions != nil {
		b.Partitions = *p.Partitions
	}
	if p.Weight != nil {
		b.Weight = *p.Weight
	}
	if p.Enabled != nil {
		b.Enabled = *p.Enabled
	}
	if p.Implementation != nil {
		b.Implementation = *p.Implementation
	}
	return b
}

// HasPartition reports whether the backend is tagged with the given
// partition.
func (b DiscoveryBackendSparse) HasPartition(partition string) bool {
	for _, p := range b.Partitions {
		if p == partition {
			return true
		}
	}
	return false
}

// ValidatePublicKey reports whether key decodes as a valid compressed
// secp256k1 public key, the identity format every DiscoveryBackend is
// keyed by. A DiscoveryBackendStore should reject a registration whose key
// fails this check rather than storing an identity nothing could ever have
// signed with.
func ValidatePublicKey(key PublicKey) error {
	if _, err := btcec.ParsePubKey(key[:]); err != nil {
		return fmt.Errorf("invalid backend public key: %w", err)
	}
	return nil
}
