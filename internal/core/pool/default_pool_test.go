package pool

import (
	"context"
	"testing"

	"github.com/bitshock-src/switchgear/internal/api"
	"github.com/stretchr/testify/require"
)

type fakeClient struct {
	invoice       string
	invoiceErr    error
	metrics       api.LnMetrics
	metricsErr    error
	features      *api.LnFeatures
	lastDescKind  DescriptionKind
}

func (f *fakeClient) GetInvoice(_ context.Context, _ *uint64,
	description Bolt11Description, _ *uint32) (string, error) {

	f.lastDescKind = description.Kind
	return f.invoice, f.invoiceErr
}

func (f *fakeClient) GetMetrics(context.Context) (api.LnMetrics, error) {
	return f.metrics, f.metricsErr
}

func (f *fakeClient) GetFeatures(context.Context) (*api.LnFeatures, error) {
	return f.features, nil
}

func TestDefaultClientPool_ConnectedClientServesGetInvoice(t *testing.T) {
	fc := &fakeClient{invoice: "lnbc1"}
	pool := NewDefaultClientPool(func(api.DiscoveryBackendSparse) (Client, error) {
		return fc, nil
	})

	var key api.PublicKey
	key[0] = 1

	require.NoError(t, pool.Connect(key, api.DiscoveryBackendSparse{}))

	offer := api.Offer{MetadataJSONString: "metadata"}
	pr, err := pool.GetInvoice(context.Background(), key, offer, nil, nil)
	require.NoError(t, err)
	require.Equal(t, "lnbc1", pr)
}

func TestDefaultClientPool_GetInvoice_UnknownKey(t *testing.T) {
	pool := NewDefaultClientPool(func(api.DiscoveryBackendSparse) (Client, error) {
		return &fakeClient{}, nil
	})

	var key api.PublicKey
	_, err := pool.GetInvoice(context.Background(), key, api.Offer{}, nil, nil)
	require.Error(t, err)

	var poolErr *Error
	require.ErrorAs(t, err, &poolErr)
	require.Equal(t, ErrorKindUnknownKey, poolErr.Kind)
}

func TestDefaultClientPool_DescriptionFormFollowsFeatures(t *testing.T) {
	cases := []struct {
		name     string
		features *api.LnFeatures
		want     DescriptionKind
	}{
		{"hash capable", &api.LnFeatures{InvoiceFromDescHash: true}, DescriptionHash},
		{"no features", nil, DescriptionDirectIntoHash},
		{"hash incapable", &api.LnFeatures{InvoiceFromDescHash: false}, DescriptionDirectIntoHash},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fc := &fakeClient{invoice: "lnbc1", features: tc.features}
			p := NewDefaultClientPool(func(api.DiscoveryBackendSparse) (Client, error) {
				return fc, nil
			})

			var key api.PublicKey
			require.NoError(t, p.Connect(key, api.DiscoveryBackendSparse{}))

			offer := api.Offer{MetadataJSONString: "metadata"}
			_, err := p.GetInvoice(context.Background(), key, offer, nil, nil)
			require.NoError(t, err)
			require.Equal(t, tc.want, fc.lastDescKind)
		})
	}
}

func TestDefaultClientPool_MetricsCacheRetainsLastGoodValueOnFailure(t *testing.T) {
	fc := &fakeClient{metrics: api.LnMetrics{Healthy: true, NodeEffectiveInboundMsat: 100}}
	p := NewDefaultClientPool(func(api.DiscoveryBackendSparse) (Client, error) {
		return fc, nil
	})

	var key api.PublicKey
	require.NoError(t, p.Connect(key, api.DiscoveryBackendSparse{}))

	_, err := p.GetMetrics(context.Background(), key)
	require.NoError(t, err)

	cached, ok := p.GetCachedMetrics(key)
	require.True(t, ok)
	require.Equal(t, uint64(100), cached.NodeEffectiveInboundMsat)

	fc.metricsErr = context.DeadlineExceeded
	_, err = p.GetMetrics(context.Background(), key)
	require.Error(t, err)

	cached, ok = p.GetCachedMetrics(key)
	require.True(t, ok)
	require.Equal(t, uint64(100), cached.NodeEffectiveInboundMsat)
}

func TestDefaultClientPool_GetCachedMetrics_AbsentBeforeFirstProbe(t *testing.T) {
	p := NewDefaultClientPool(func(api.DiscoveryBackendSparse) (Client, error) {
		return &fakeClient{}, nil
	})

	var key api.PublicKey
	_, ok := p.GetCachedMetrics(key)
	require.False(t, ok)
}
