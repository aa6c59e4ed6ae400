package memory

import (
	"context"
	"encoding/hex"
	"testing"

	"github.com/bitshock-src/switchgear/internal/api"
	"github.com/stretchr/testify/require"
)

func sparse(name string, enabled bool) api.DiscoveryBackendSparse {
	return api.DiscoveryBackendSparse{
		Name:       name,
		Partitions: []string{"default"},
		Weight:     1,
		Enabled:    enabled,
	}
}

// testPublicKey returns the secp256k1 generator point's compressed
// encoding, a fixed, always-valid PublicKey for exercising stores that now
// reject malformed keys.
func testPublicKey() api.PublicKey {
	var key api.PublicKey
	raw, err := hex.DecodeString(
		"0279be667ef9dcbbac55a06295ce870b07029bfcdb2dce28d959f2815b16f81798")
	if err != nil {
		panic(err)
	}
	copy(key[:], raw)
	return key
}

func TestDiscoveryMemoryStore_PostThenGetAll(t *testing.T) {
	s := NewDiscoveryStore()
	key := testPublicKey()

	require.NoError(t, s.Post(key, sparse("node-a", true)))

	all, err := s.GetAll(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, all.Backends, 1)
	require.Equal(t, uint64(1), all.ETag)
}

func TestDiscoveryMemoryStore_GetAllNotModified(t *testing.T) {
	s := NewDiscoveryStore()
	key := testPublicKey()
	require.NoError(t, s.Post(key, sparse("node-a", true)))

	etag := uint64(1)
	all, err := s.GetAll(context.Background(), &etag)
	require.NoError(t, err)
	require.Nil(t, all.Backends)
	require.Equal(t, etag, all.ETag)
}

func TestDiscoveryMemoryStore_PatchBumpsETag(t *testing.T) {
	s := NewDiscoveryStore()
	key := testPublicKey()
	require.NoError(t, s.Post(key, sparse("node-a", true)))

	before, err := s.GetAll(context.Background(), nil)
	require.NoError(t, err)

	enabled := true
	require.NoError(t, s.Patch(key, api.DiscoveryBackendPatch{Enabled: &enabled}))

	after, err := s.GetAll(context.Background(), nil)
	require.NoError(t, err)

	require.Greater(t, after.ETag, before.ETag,
		"a patch that changes nothing must still bump the ETag")
}

func TestDiscoveryMemoryStore_DeleteRemovesAndBumps(t *testing.T) {
	s := NewDiscoveryStore()
	key := testPublicKey()
	require.NoError(t, s.Post(key, sparse("node-a", true)))

	require.NoError(t, s.Delete(key))

	all, err := s.GetAll(context.Background(), nil)
	require.NoError(t, err)
	require.Empty(t, all.Backends)
	require.Equal(t, uint64(2), all.ETag)
}

func TestDiscoveryMemoryStore_PostDuplicateKeyFails(t *testing.T) {
	s := NewDiscoveryStore()
	key := testPublicKey()
	require.NoError(t, s.Post(key, sparse("node-a", true)))
	require.Error(t, s.Post(key, sparse("node-a-again", true)))
}

func TestETagStringRoundTrips(t *testing.T) {
	for _, v := range []uint64{0, 1, 255, 65536, ^uint64(0)} {
		got, err := ETagFromString(ETagString(v))
		require.NoError(t, err)
		require.Equal(t, v, got)
	}
}
