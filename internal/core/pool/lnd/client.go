// Package lnd implements the Backend Client (C1) contract against an LND
// node's gRPC interface, adapted from the invoice-issuing half of the
// teacher's challenger.LndChallenger: lazy connection, a configured
// per-call timeout, and drop-on-error so the next call re-handshakes.
package lnd

import (
	"context"
	"crypto/sha256"
	"crypto/x509"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/bitshock-src/switchgear/internal/api"
	"github.com/bitshock-src/switchgear/internal/core/pool"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/lightninglabs/lndclient"
	"github.com/lightningnetwork/lnd/lnrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
)

// chainParamsByNetwork maps the network names lndclient accepts to their
// chaincfg.Params, used only to validate Config.Network at construction
// time so a typo is rejected before the first dial rather than surfacing
// as an opaque lndclient error.
var chainParamsByNetwork = map[string]*chaincfg.Params{
	"mainnet": &chaincfg.MainNetParams,
	"testnet": &chaincfg.TestNet3Params,
	"signet":  &chaincfg.SigNetParams,
	"regtest": &chaincfg.RegressionNetParams,
	"simnet":  &chaincfg.SimNetParams,
}

// Config describes how to reach and authenticate to one LND node.
type Config struct {
	// Host is the node's host:port gRPC listener.
	Host string

	// TLSCertPath is the path to the node's TLS certificate chain.
	TLSCertPath string

	// MacaroonDir is the directory holding the node's macaroons.
	MacaroonDir string

	// Domain overrides the TLS server name checked against the node's
	// certificate, for deployments that reach the node through a proxy
	// or load balancer on an address that doesn't match the cert's SAN.
	Domain string

	// Network is the chain network the node is running on ("mainnet",
	// "testnet", "signet", "regtest", "simnet").
	Network string

	// AmpInvoice requests AMP-capable invoices when true.
	AmpInvoice bool

	// CallTimeout bounds every RPC issued by this client.
	CallTimeout time.Duration
}

const defaultCallTimeout = 10 * time.Second

// rpcClient is the slice of lnrpc.LightningClient this package actually
// calls, mirroring the teacher's InvoiceClient seam so tests can fake the
// wire without standing up a real LND node.
type rpcClient interface {
	AddInvoice(ctx context.Context, in *lnrpc.Invoice,
		opts ...grpc.CallOption) (*lnrpc.AddInvoiceResponse, error)
	ChannelBalance(ctx context.Context, in *lnrpc.ChannelBalanceRequest,
		opts ...grpc.CallOption) (*lnrpc.ChannelBalanceResponse, error)
}

// dialFunc abstracts the lndclient dial so tests can substitute a fake.
type dialFunc func(cfg Config) (rpcClient, error)

// Client is an LND-backed pool.Client. It connects lazily: the zero value
// holds no connection until the first call needs one.
type Client struct {
	cfg  Config
	dial dialFunc

	mu     sync.Mutex
	client rpcClient
}

var _ pool.Client = (*Client)(nil)

// New constructs an LND Client. No network I/O happens until the first
// call.
func New(cfg Config) (*Client, error) {
	if cfg.Host == "" {
		return nil, pool.NewError(pool.ErrorKindInvalidConfiguration,
			"lnd client requires a host", nil)
	}
	if cfg.Network == "" {
		cfg.Network = "mainnet"
	}
	if _, ok := chainParamsByNetwork[cfg.Network]; !ok {
		return nil, pool.NewError(pool.ErrorKindInvalidConfiguration,
			fmt.Sprintf("unknown network %q", cfg.Network), nil)
	}
	if cfg.CallTimeout == 0 {
		cfg.CallTimeout = defaultCallTimeout
	}
	return &Client{cfg: cfg, dial: dialBasicClient}, nil
}

// adminMacaroonFilename is the default macaroon lndclient.NewBasicClient
// loads from MacaroonDir; the manual dial path below follows the same
// convention.
const adminMacaroonFilename = "admin.macaroon"

// dialBasicClient is the production dialFunc. lndclient.NewBasicClient
// covers the common case of dialing the node directly; when Domain is set
// the connection is built by hand instead, since NewBasicClient always
// verifies the server's certificate against the dial host and has no hook
// to override that name for a node reached through an SNI-routing proxy.
func dialBasicClient(cfg Config) (rpcClient, error) {
	if cfg.Domain == "" {
		return lndclient.NewBasicClient(
			cfg.Host, cfg.TLSCertPath, cfg.MacaroonDir, cfg.Network,
		)
	}
	return dialWithDomainOverride(cfg)
}

// dialWithDomainOverride dials lnd's gRPC listener with a TLS server name
// distinct from Host, and a macaroon attached as per-RPC metadata.
func dialWithDomainOverride(cfg Config) (rpcClient, error) {
	certBytes, err := os.ReadFile(cfg.TLSCertPath)
	if err != nil {
		return nil, fmt.Errorf("reading lnd tls cert: %w", err)
	}
	certPool := x509.NewCertPool()
	if !certPool.AppendCertsFromPEM(certBytes) {
		return nil, fmt.Errorf("parsing lnd tls cert %s", cfg.TLSCertPath)
	}
	creds := credentials.NewClientTLSFromCert(certPool, cfg.Domain)

	macBytes, err := os.ReadFile(
		filepath.Join(cfg.MacaroonDir, adminMacaroonFilename))
	if err != nil {
		return nil, fmt.Errorf("reading lnd macaroon: %w", err)
	}

	conn, err := grpc.NewClient(cfg.Host,
		grpc.WithTransportCredentials(creds),
		grpc.WithPerRPCCredentials(macaroonCredential{hex.EncodeToString(macBytes)}),
	)
	if err != nil {
		return nil, fmt.Errorf("dialing lnd at %s: %w", cfg.Host, err)
	}

	return lnrpc.NewLightningClient(conn), nil
}

// macaroonCredential attaches a hex-encoded macaroon as per-RPC metadata,
// the same header lnd's own grpc server expects.
type macaroonCredential struct {
	macaroon string
}

func (m macaroonCredential) GetRequestMetadata(context.Context,
	...string) (map[string]string, error) {

	return map[string]string{"macaroon": m.macaroon}, nil
}

func (m macaroonCredential) RequireTransportSecurity() bool {
	return true
}

// connection returns the cached gRPC client, dialing it on first use.
func (c *Client) connection() (rpcClient, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.client != nil {
		return c.client, nil
	}

	client, err := c.dial(c.cfg)
	if err != nil {
		return nil, pool.NewError(pool.ErrorKindTransport,
			fmt.Sprintf("dialing lnd at %s", c.cfg.Host), err)
	}

	c.client = client
	return client, nil
}

// disconnect drops the cached connection so the next call re-dials.
func (c *Client) disconnect() {
	c.mu.Lock()
	c.client = nil
	c.mu.Unlock()
}

func (c *Client) withTimeout(
	ctx context.Context) (context.Context, context.CancelFunc) {

	return context.WithTimeout(ctx, c.cfg.CallTimeout)
}

// GetInvoice requests a bolt11 invoice via AddInvoice, building the request
// from the description form the Client Pool chose.
func (c *Client) GetInvoice(ctx context.Context, amountMsat *uint64,
	description pool.Bolt11Description, expirySecs *uint32) (string, error) {

	client, err := c.connection()
	if err != nil {
		return "", err
	}

	req := &lnrpc.Invoice{
		IsAmp: c.cfg.AmpInvoice,
	}
	if amountMsat != nil {
		req.ValueMsat = int64(*amountMsat)
	}
	if expirySecs != nil {
		req.Expiry = int64(*expirySecs)
	}

	switch description.Kind {
	case pool.DescriptionDirect:
		req.Memo = description.Text
	case pool.DescriptionDirectIntoHash:
		// LND never hashes Memo on our behalf, so DirectIntoHash is
		// delivered by hashing Text ourselves and sending it through
		// the same DescriptionHash field as the Hash form; this case
		// is currently unreachable in practice since GetFeatures
		// always reports InvoiceFromDescHash=true for lnd.
		hash := sha256.Sum256([]byte(description.Text))
		req.DescriptionHash = hash[:]
	case pool.DescriptionHash:
		hash := description.Hash
		req.DescriptionHash = hash[:]
	default:
		return "", pool.NewDownstreamError(pool.ErrorKindInvalidConfiguration,
			"unknown description kind", nil)
	}

	ctxt, cancel := c.withTimeout(ctx)
	defer cancel()

	resp, err := client.AddInvoice(ctxt, req)
	if err != nil {
		c.disconnect()
		return "", pool.FromGrpcError("lnd AddInvoice", err)
	}

	return resp.PaymentRequest, nil
}

// GetMetrics reports liveness and inbound capacity via ChannelBalance.
func (c *Client) GetMetrics(ctx context.Context) (api.LnMetrics, error) {
	client, err := c.connection()
	if err != nil {
		return api.LnMetrics{Healthy: false}, err
	}

	ctxt, cancel := c.withTimeout(ctx)
	defer cancel()

	resp, err := client.ChannelBalance(ctxt, &lnrpc.ChannelBalanceRequest{})
	if err != nil {
		c.disconnect()
		return api.LnMetrics{Healthy: false}, pool.FromGrpcError(
			"lnd ChannelBalance", err)
	}

	inbound := uint64(0)
	if resp.RemoteBalance != nil {
		inbound = resp.RemoteBalance.Msat
	}

	return api.LnMetrics{
		Healthy:                  true,
		NodeEffectiveInboundMsat: inbound,
	}, nil
}

// GetFeatures reports LND's capabilities. LND always accepts a
// pre-computed description hash when creating an invoice.
func (c *Client) GetFeatures(context.Context) (*api.LnFeatures, error) {
	return &api.LnFeatures{InvoiceFromDescHash: true}, nil
}
