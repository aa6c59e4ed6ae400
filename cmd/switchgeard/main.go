// Command switchgeard runs the switchgear LNURL-pay gateway: it resolves
// offers, balances invoice requests across a pool of Lightning backends, and
// serves the LNURL-pay HTTP protocol.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/lightningnetwork/lnd/build"

	"github.com/bitshock-src/switchgear/internal/api"
	"github.com/bitshock-src/switchgear/internal/config"
	"github.com/bitshock-src/switchgear/internal/core/balancer"
	"github.com/bitshock-src/switchgear/internal/core/discovery"
	"github.com/bitshock-src/switchgear/internal/core/health"
	"github.com/bitshock-src/switchgear/internal/core/offerprovider"
	"github.com/bitshock-src/switchgear/internal/core/pool"
	"github.com/bitshock-src/switchgear/internal/core/pool/cln"
	"github.com/bitshock-src/switchgear/internal/core/pool/lnd"
	"github.com/bitshock-src/switchgear/internal/core/selector"
	swglog "github.com/bitshock-src/switchgear/internal/log"
	"github.com/bitshock-src/switchgear/internal/lnurlpay"
	"github.com/bitshock-src/switchgear/internal/metrics"
	"github.com/bitshock-src/switchgear/internal/store/memory"
	"github.com/bitshock-src/switchgear/internal/store/offersql"
)

const (
	defaultLogFilename    = "switchgeard.log"
	defaultMaxLogFileSize = 10
	defaultMaxLogFiles    = 3
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(args []string) error {
	cfg, err := config.LoadConfig(args)
	if err != nil {
		return err
	}

	if err := setupLogging(cfg); err != nil {
		return fmt.Errorf("setting up logging: %w", err)
	}
	initLoggers()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bal, offers, err := buildServices(cfg)
	if err != nil {
		return fmt.Errorf("building services: %w", err)
	}

	metrics.Serve(*cfg.Prometheus)

	bal.Start(ctx)
	defer bal.Shutdown()

	handler := lnurlpay.NewHandler(lnurlConfigFrom(cfg), offers, bal)
	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)

	server := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: mux,
	}

	errChan := make(chan error, 1)
	go func() {
		swglog.Logger().Infof("starting the server, listening on %s", cfg.ListenAddr)
		errChan <- server.ListenAndServe()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return err
	case sig := <-sigChan:
		swglog.Logger().Infof("received %v, shutting down", sig)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	return server.Shutdown(shutdownCtx)
}

// setupLogging parses the debug level and initializes the log file rotator.
func setupLogging(cfg *config.Config) error {
	if cfg.DebugLevel == "" {
		cfg.DebugLevel = "info"
	}

	logFile := filepath.Join(os.TempDir(), defaultLogFilename)
	writer := swglog.Writer()
	if err := writer.InitLogRotator(logFile, defaultMaxLogFileSize, defaultMaxLogFiles); err != nil {
		return err
	}
	return build.ParseAndSetDebugLevels(cfg.DebugLevel, writer)
}

// buildServices wires the Backend Client Pool, Discovery Source, Health
// Checker, Selector and Balancer from cfg. Backend registration itself is
// out of scope here: an external Discovery admin surface (§6.4) is assumed
// to populate the in-memory DiscoveryBackendStore this process serves from.
func buildServices(cfg *config.Config) (*balancer.Balancer, *offerprovider.Provider, error) {
	factory := newClientFactory(cfg.Pool.CallTimeout)
	clientPool := pool.NewDefaultClientPool(factory)

	discoveryStore := memory.NewDiscoveryStore()
	partitions := cfg.Lnurl.Partitions
	if len(partitions) == 0 {
		return nil, nil, fmt.Errorf("no lnurl partitions configured")
	}

	source := discovery.NewSource(discoveryStore, partitions[0])

	checker := health.NewChecker(clientPool, health.Config{
		SuccessThreshold:    cfg.Health.SuccessThreshold,
		FailureThreshold:    cfg.Health.FailureThreshold,
		ParallelHealthCheck: cfg.Health.ParallelHealthCheck,
	})

	policy, err := buildSelector(cfg.Selector, clientPool.GetCachedMetrics)
	if err != nil {
		return nil, nil, err
	}

	newBackoff := buildBackoffFactory(cfg.Backoff)

	bal := balancer.New(clientPool, source, checker, policy, newBackoff, balancer.Config{
		BackendUpdateFrequency: cfg.Discovery.BackendUpdateFrequency,
		HealthCheckFrequency:   cfg.Health.CheckFrequency,
	})

	recordStore, metadataStore, err := buildOfferStores(cfg.Store)
	if err != nil {
		return nil, nil, err
	}
	offers := offerprovider.New(recordStore, metadataStore)

	return bal, offers, nil
}

// buildOfferStores resolves the configured OfferRecord/OfferMetadata
// backend: an in-process map, or a modernc.org/sqlite-backed Store.
func buildOfferStores(cfg *config.StoreConfig) (offerprovider.RecordStore,
	offerprovider.MetadataStore, error) {

	switch cfg.Backend {
	case "sqlite":
		store, err := offersql.Open(cfg.SqliteDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("opening sqlite offer store: %w", err)
		}
		return store, store, nil
	case "memory", "":
		return memory.NewOfferRecordStore(), memory.NewOfferMetadataStore(), nil
	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}

func buildSelector(cfg *config.SelectorConfig,
	lookup selector.MetricsLookup) (selector.Policy, error) {

	switch cfg.Policy {
	case "round-robin", "":
		return selector.NewRoundRobin(), nil
	case "random":
		return selector.NewRandom(cfg.CapacityBias, lookup), nil
	case "consistent":
		return selector.NewConsistent(cfg.CapacityBias, lookup, cfg.ConsistentMaxIterations), nil
	default:
		return nil, fmt.Errorf("unknown selector policy %q", cfg.Policy)
	}
}

func buildBackoffFactory(cfg *config.BackoffConfig) balancer.BackoffFactory {
	if !cfg.Enabled {
		return func() balancer.Backoff { return balancer.StopBackoff{} }
	}
	return func() balancer.Backoff {
		return balancer.NewExponentialBackoff(balancer.ExponentialBackoffConfig{
			InitialInterval:     cfg.InitialInterval,
			Multiplier:          cfg.Multiplier,
			RandomizationFactor: cfg.RandomizationFactor,
			MaxInterval:         cfg.MaxInterval,
			MaxElapsedTime:      cfg.MaxElapsedTime,
		})
	}
}

// newClientFactory builds pool.ClientFactory, dispatching on the backend's
// discovered implementation type to construct an lnd or cln Backend Client.
func newClientFactory(callTimeout time.Duration) pool.ClientFactory {
	return func(backend api.DiscoveryBackendSparse) (pool.Client, error) {
		switch backend.Implementation.Type {
		case api.ImplementationLndGrpc:
			impl := backend.Implementation.Lnd
			if impl == nil {
				return nil, fmt.Errorf("lnd-grpc backend missing lnd config")
			}
			return lnd.New(lnd.Config{
				Host:        impl.URL,
				TLSCertPath: impl.Auth.TLSCertPath,
				MacaroonDir: impl.Auth.MacaroonPath,
				Domain:      impl.Domain,
				AmpInvoice:  impl.AmpInvoice,
				CallTimeout: callTimeout,
			})
		case api.ImplementationClnGrpc:
			impl := backend.Implementation.Cln
			if impl == nil {
				return nil, fmt.Errorf("cln-grpc backend missing cln config")
			}
			return cln.New(cln.Config{
				URL:         impl.URL,
				TLSCertPath: impl.Auth.TLSCertPath,
				Domain:      impl.Domain,
				Rune:        impl.Auth.Rune,
				CallTimeout: callTimeout,
			})
		default:
			return nil, fmt.Errorf("unsupported implementation type %q",
				backend.Implementation.Type)
		}
	}
}

func lnurlConfigFrom(cfg *config.Config) lnurlpay.Config {
	partitions := make(map[string]struct{}, len(cfg.Lnurl.Partitions))
	for _, p := range cfg.Lnurl.Partitions {
		partitions[p] = struct{}{}
	}
	allowed := make(map[string]struct{}, len(cfg.Lnurl.AllowedHosts))
	for _, h := range cfg.Lnurl.AllowedHosts {
		allowed[h] = struct{}{}
	}

	var commentAllowed *uint32
	if cfg.Lnurl.CommentAllowed > 0 {
		v := cfg.Lnurl.CommentAllowed
		commentAllowed = &v
	}

	return lnurlpay.Config{
		Partitions:     partitions,
		AllowedHosts:   allowed,
		DefaultScheme:  cfg.Lnurl.DefaultScheme,
		CommentAllowed: commentAllowed,
		InvoiceExpiry:  cfg.Lnurl.InvoiceExpiry,
	}
}
