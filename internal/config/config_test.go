package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewConfig_PassesValidationOnceAPartitionIsSet(t *testing.T) {
	cfg := NewConfig()
	require.Error(t, cfg.Validate(), "no partitions configured yet")

	cfg.Lnurl.Partitions = []string{"default"}
	require.NoError(t, cfg.Validate())
}

func TestConfig_Validate_RequiresListenAddr(t *testing.T) {
	cfg := NewConfig()
	cfg.Lnurl.Partitions = []string{"default"}
	cfg.ListenAddr = ""
	require.Error(t, cfg.Validate())
}

func TestConfig_Validate_SqliteBackendRequiresDSN(t *testing.T) {
	cfg := NewConfig()
	cfg.Lnurl.Partitions = []string{"default"}
	cfg.Store.Backend = "sqlite"
	require.Error(t, cfg.Validate())

	cfg.Store.SqliteDSN = "/var/lib/switchgeard/offers.db"
	require.NoError(t, cfg.Validate())
}

func TestConfig_Validate_ConsistentPolicyRequiresPositiveIterations(t *testing.T) {
	cfg := NewConfig()
	cfg.Lnurl.Partitions = []string{"default"}
	cfg.Selector.Policy = "consistent"
	cfg.Selector.ConsistentMaxIterations = 0
	require.Error(t, cfg.Validate())
}
