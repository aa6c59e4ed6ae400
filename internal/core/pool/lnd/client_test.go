package lnd

import (
	"context"
	"crypto/sha256"
	"errors"
	"testing"

	"github.com/bitshock-src/switchgear/internal/core/pool"
	"github.com/lightningnetwork/lnd/lnrpc"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type fakeRPCClient struct {
	dialCount int

	addInvoiceResp *lnrpc.AddInvoiceResponse
	addInvoiceErr  error
	lastReq        *lnrpc.Invoice

	channelBalanceResp *lnrpc.ChannelBalanceResponse
	channelBalanceErr  error
}

func (f *fakeRPCClient) AddInvoice(_ context.Context, in *lnrpc.Invoice,
	_ ...grpc.CallOption) (*lnrpc.AddInvoiceResponse, error) {

	f.lastReq = in
	return f.addInvoiceResp, f.addInvoiceErr
}

func (f *fakeRPCClient) ChannelBalance(_ context.Context,
	_ *lnrpc.ChannelBalanceRequest, _ ...grpc.CallOption) (
	*lnrpc.ChannelBalanceResponse, error) {

	return f.channelBalanceResp, f.channelBalanceErr
}

func newTestClient(t *testing.T, fake *fakeRPCClient) *Client {
	t.Helper()

	c, err := New(Config{Host: "localhost:10009"})
	require.NoError(t, err)

	c.dial = func(Config) (rpcClient, error) {
		fake.dialCount++
		return fake, nil
	}
	return c
}

func TestClient_ConnectionIsLazyAndCached(t *testing.T) {
	fake := &fakeRPCClient{
		addInvoiceResp: &lnrpc.AddInvoiceResponse{PaymentRequest: "lnbc1"},
	}
	c := newTestClient(t, fake)
	require.Equal(t, 0, fake.dialCount)

	_, err := c.GetInvoice(context.Background(), nil, pool.Direct("memo"), nil)
	require.NoError(t, err)
	require.Equal(t, 1, fake.dialCount)

	_, err = c.GetInvoice(context.Background(), nil, pool.Direct("memo"), nil)
	require.NoError(t, err)
	require.Equal(t, 1, fake.dialCount, "second call must reuse the cached connection")
}

func TestClient_DisconnectsAndRedialsOnFailure(t *testing.T) {
	fake := &fakeRPCClient{
		addInvoiceErr: status.Error(codes.Unavailable, "down"),
	}
	c := newTestClient(t, fake)

	_, err := c.GetInvoice(context.Background(), nil, pool.Direct("memo"), nil)
	require.Error(t, err)
	require.Equal(t, 1, fake.dialCount)

	fake.addInvoiceErr = nil
	fake.addInvoiceResp = &lnrpc.AddInvoiceResponse{PaymentRequest: "lnbc2"}

	_, err = c.GetInvoice(context.Background(), nil, pool.Direct("memo"), nil)
	require.NoError(t, err)
	require.Equal(t, 2, fake.dialCount, "a failed call must force a re-dial")
}

func TestClient_GetInvoice_HashDescription(t *testing.T) {
	fake := &fakeRPCClient{
		addInvoiceResp: &lnrpc.AddInvoiceResponse{PaymentRequest: "lnbc1"},
	}
	c := newTestClient(t, fake)

	hash := [32]byte{1, 2, 3}
	_, err := c.GetInvoice(
		context.Background(), nil, pool.HashDescription(hash), nil,
	)
	require.NoError(t, err)
	require.Equal(t, hash[:], fake.lastReq.DescriptionHash)
	require.Empty(t, fake.lastReq.Memo)
}

func TestClient_GetInvoice_DirectIntoHashDescription_SendsHash(t *testing.T) {
	fake := &fakeRPCClient{
		addInvoiceResp: &lnrpc.AddInvoiceResponse{PaymentRequest: "lnbc1"},
	}
	c := newTestClient(t, fake)

	_, err := c.GetInvoice(
		context.Background(), nil, pool.DirectIntoHash("tip jar"), nil,
	)
	require.NoError(t, err)
	require.Equal(t, sha256.Sum256([]byte("tip jar"))[:], fake.lastReq.DescriptionHash)
	require.Empty(t, fake.lastReq.Memo,
		"direct-into-hash must never carry the plain text as Memo")
}

func TestClient_GetMetrics_ReportsUnhealthyOnError(t *testing.T) {
	fake := &fakeRPCClient{channelBalanceErr: errors.New("unreachable")}
	c := newTestClient(t, fake)

	metrics, err := c.GetMetrics(context.Background())
	require.Error(t, err)
	require.False(t, metrics.Healthy)
}

func TestClient_GetMetrics_SumsRemoteBalance(t *testing.T) {
	fake := &fakeRPCClient{
		channelBalanceResp: &lnrpc.ChannelBalanceResponse{
			RemoteBalance: &lnrpc.Amount{Msat: 500_000},
		},
	}
	c := newTestClient(t, fake)

	metrics, err := c.GetMetrics(context.Background())
	require.NoError(t, err)
	require.True(t, metrics.Healthy)
	require.Equal(t, uint64(500_000), metrics.NodeEffectiveInboundMsat)
}

func TestClient_GetFeatures_AlwaysHashCapable(t *testing.T) {
	c := newTestClient(t, &fakeRPCClient{})
	features, err := c.GetFeatures(context.Background())
	require.NoError(t, err)
	require.True(t, features.InvoiceFromDescHash)
}
