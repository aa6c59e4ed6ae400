// Package config defines switchgeard's configuration surface and its
// load path: go-flags for the handful of CLI overrides, a YAML file for
// everything else, following the teacher's split between flag-tagged
// structs and a `--configfile` pointing at the bulk of the settings.
package config

import (
	"fmt"
	"time"

	"github.com/lightningnetwork/lnd/build"

	"github.com/bitshock-src/switchgear/internal/metrics"
)

const (
	defaultConfigFilename = "switchgear.yaml"
	defaultLogLevel       = "info"

	defaultListenAddr = "0.0.0.0:8080"

	defaultBackendUpdateFrequency = 30 * time.Second
	defaultHealthCheckFrequency   = 15 * time.Second
	defaultSuccessThreshold       = 2
	defaultFailureThreshold       = 3

	defaultLnClientTimeout = 10 * time.Second

	defaultSelectorPolicy            = "round-robin"
	defaultConsistentMaxIterations    = 10

	defaultInvoiceExpiry = time.Hour
)

// SelectorConfig tunes the Selector's backend-choice policy.
type SelectorConfig struct {
	Policy string `long:"policy" yaml:"policy" description:"Backend selection policy." choice:"round-robin" choice:"random" choice:"consistent"`

	// CapacityBias weights Random/Consistent selection by a backend's
	// reported inbound liquidity; 0 disables the bias.
	CapacityBias float64 `long:"capacitybias" yaml:"capacityBias"`

	// ConsistentMaxIterations bounds the Consistent policy's retry
	// budget (the number of selection attempts a single get_invoice call
	// may make; attempts beyond the healthy-set size revisit backends).
	ConsistentMaxIterations int `long:"consistentmaxiterations" yaml:"consistentMaxIterations"`
}

// HealthConfig tunes the Health Checker.
type HealthConfig struct {
	SuccessThreshold     int           `long:"successthreshold" yaml:"successThreshold"`
	FailureThreshold     int           `long:"failurethreshold" yaml:"failureThreshold"`
	CheckFrequency       time.Duration `long:"checkfrequency" yaml:"checkFrequency"`
	ParallelHealthCheck  bool          `long:"parallel" yaml:"parallelHealthCheck"`
}

// DiscoveryConfig tunes the Discovery Source's poll cadence.
type DiscoveryConfig struct {
	BackendUpdateFrequency time.Duration `long:"updatefrequency" yaml:"backendUpdateFrequency"`
}

// BackoffConfig configures the Balancer's retry backoff. Enabled false
// uses StopBackoff (no retries).
type BackoffConfig struct {
	Enabled              bool          `long:"enabled" yaml:"enabled"`
	InitialInterval      time.Duration `long:"initialinterval" yaml:"initialInterval"`
	Multiplier           float64       `long:"multiplier" yaml:"multiplier"`
	RandomizationFactor  float64       `long:"randomizationfactor" yaml:"randomizationFactor"`
	MaxInterval          time.Duration `long:"maxinterval" yaml:"maxInterval"`
	MaxElapsedTime       time.Duration `long:"maxelapsedtime" yaml:"maxElapsedTime"`
}

// PoolConfig configures Backend Client connections.
type PoolConfig struct {
	// CallTimeout is the `ln_client_timeout` applied to every outbound
	// RPC to a Lightning backend.
	CallTimeout time.Duration `long:"calltimeout" yaml:"callTimeout"`
}

// StoreConfig selects and configures the OfferRecord/OfferMetadata
// persistence backend.
type StoreConfig struct {
	// Backend is "memory" or "sqlite".
	Backend string `long:"backend" yaml:"backend" choice:"memory" choice:"sqlite"`

	// SqliteDSN is the database/sql data source name used when Backend
	// is "sqlite".
	SqliteDSN string `long:"sqlitedsn" yaml:"sqliteDSN"`
}

// LnurlConfig configures the LNURL-pay Endpoint.
type LnurlConfig struct {
	// Partitions is the set of partition names this service answers
	// for.
	Partitions []string `long:"partition" yaml:"partitions"`

	// AllowedHosts is the Host-header allow-set; empty means dev mode.
	AllowedHosts []string `long:"allowedhost" yaml:"allowedHosts"`

	// DefaultScheme is used when no forwarding header names a scheme.
	DefaultScheme string `long:"defaultscheme" yaml:"defaultScheme"`

	// CommentAllowed is the maximum comment length; 0 disables
	// comments. Stored as a plain uint32 so YAML/flags don't need pointer
	// handling; cmd/switchgeard's lnurlConfigFrom converts 0 to "disabled".
	CommentAllowed uint32 `long:"commentallowed" yaml:"commentAllowed"`

	// InvoiceExpiry is the bolt11 expiry requested from the backend.
	InvoiceExpiry time.Duration `long:"invoiceexpiry" yaml:"invoiceExpiry"`
}

// Config is switchgeard's full configuration.
type Config struct {
	ListenAddr string `long:"listenaddr" yaml:"listenAddr" description:"The interface to listen on for LNURL-pay requests."`

	Selector  *SelectorConfig  `group:"selector" namespace:"selector" yaml:"selector"`
	Health    *HealthConfig    `group:"health" namespace:"health" yaml:"health"`
	Discovery *DiscoveryConfig `group:"discovery" namespace:"discovery" yaml:"discovery"`
	Backoff   *BackoffConfig   `group:"backoff" namespace:"backoff" yaml:"backoff"`
	Pool      *PoolConfig      `group:"pool" namespace:"pool" yaml:"pool"`
	Store     *StoreConfig     `group:"store" namespace:"store" yaml:"store"`
	Lnurl     *LnurlConfig     `group:"lnurl" namespace:"lnurl" yaml:"lnurl"`
	Prometheus *metrics.Config `group:"prometheus" namespace:"prometheus" yaml:"prometheus"`

	// DebugLevel is a string defining the log level, either for all
	// subsystems the same or individual level by subsystem.
	DebugLevel string `long:"debuglevel" yaml:"debugLevel" description:"Debug level for switchgeard and its subsystems."`

	// ConfigFile points switchgeard at an alternative config file.
	ConfigFile string `long:"configfile" description:"Custom path to a config file."`

	// Logging controls log rotation, matching the teacher's log
	// plumbing.
	Logging *build.LogConfig `group:"logging" namespace:"logging" yaml:"-"`
}

// NewConfig returns a Config populated with defaults.
func NewConfig() *Config {
	return &Config{
		ListenAddr: defaultListenAddr,
		Selector: &SelectorConfig{
			Policy:                  defaultSelectorPolicy,
			ConsistentMaxIterations: defaultConsistentMaxIterations,
		},
		Health: &HealthConfig{
			SuccessThreshold: defaultSuccessThreshold,
			FailureThreshold: defaultFailureThreshold,
			CheckFrequency:   defaultHealthCheckFrequency,
		},
		Discovery: &DiscoveryConfig{
			BackendUpdateFrequency: defaultBackendUpdateFrequency,
		},
		Backoff: &BackoffConfig{Enabled: false},
		Pool:    &PoolConfig{CallTimeout: defaultLnClientTimeout},
		Store:   &StoreConfig{Backend: "memory"},
		Lnurl: &LnurlConfig{
			DefaultScheme: "https",
			InvoiceExpiry: defaultInvoiceExpiry,
		},
		Prometheus: &metrics.Config{Enabled: false, ListenAddr: "127.0.0.1:9102"},
		DebugLevel: defaultLogLevel,
		Logging:    build.DefaultLogConfig(),
	}
}

// Validate checks the subset of Config invariants that aren't expressible
// as go-flags choice tags.
func (c *Config) Validate() error {
	if c.ListenAddr == "" {
		return fmt.Errorf("missing listen address for server")
	}
	if len(c.Lnurl.Partitions) == 0 {
		return fmt.Errorf("at least one lnurl partition must be configured")
	}
	if c.Store.Backend == "sqlite" && c.Store.SqliteDSN == "" {
		return fmt.Errorf("store.sqliteDSN is required when store.backend is sqlite")
	}
	if c.Selector.Policy == "consistent" && c.Selector.ConsistentMaxIterations <= 0 {
		return fmt.Errorf("selector.consistentMaxIterations must be positive")
	}
	return nil
}
