package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	_ "golang.org/x/crypto/x509roots/fallback" // Embed CA certs for scratch container

	cloudflareadapter "github.com/ericfisherdev/pagesdns/internal/adapter/driven/cloudflare"
	"github.com/ericfisherdev/pagesdns/internal/adapter/driven/dnscheck"
	githubadapter "github.com/ericfisherdev/pagesdns/internal/adapter/driven/github"
	sqliteadapter "github.com/ericfisherdev/pagesdns/internal/adapter/driven/sqlite"
	httphandler "github.com/ericfisherdev/pagesdns/internal/adapter/driving/http"
	"github.com/ericfisherdev/pagesdns/internal/application"
	"github.com/ericfisherdev/pagesdns/internal/config"
	"github.com/ericfisherdev/pagesdns/internal/domain/port/driven"
	"github.com/ericfisherdev/pagesdns/internal/logging"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load configuration (fail fast on missing required env vars).
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// 2. Structured logging with secret masking.
	slog.SetDefault(slog.New(logging.NewHandler(os.Stdout, logging.ParseLevel(cfg.LogLevel), cfg.LogFormat)))
	slog.Info("config loaded",
		"listen_addr", cfg.ListenAddr,
		"db_path", cfg.DBPath,
		"env", cfg.Env,
		"github_app_id", cfg.GitHubAppID,
		"github_installation_id", cfg.GitHubInstallationID,
		"cloudflare_zone_id", cfg.CloudflareZoneID,
		"target_domain", cfg.CloudflareTargetDomain,
	)
	if cfg.WebhookSecret == "" {
		if cfg.IsProduction() {
			slog.Warn("PAGESDNS_WEBHOOK_SECRET not set, all webhook deliveries will be rejected")
		} else {
			slog.Warn("PAGESDNS_WEBHOOK_SECRET not set, accepting unsigned webhook deliveries")
		}
	}
	if cfg.AdminToken == "" {
		slog.Warn("PAGESDNS_ADMIN_TOKEN not set, admin endpoints are unauthenticated")
	}

	// 3. Setup signal-based context (SIGINT, SIGTERM).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 4. Open database (dual reader/writer with WAL mode) and migrate.
	db, err := sqliteadapter.NewDB(ctx, cfg.DBPath)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()
	slog.Info("database opened", "path", cfg.DBPath)

	schemaVersion, err := sqliteadapter.RunMigrations(db.Writer)
	if err != nil {
		return err
	}
	slog.Info("migrations complete", "schema_version", schemaVersion)

	// 5. Wire persistence adapters.
	mappingStore := sqliteadapter.NewMappingRepo(db)
	tokenStore := sqliteadapter.NewTokenRepo(db)

	var installationStore driven.InstallationStore
	if cfg.HasEncryptionKey() {
		cipher, err := sqliteadapter.NewCipher(cfg.EncryptionKey)
		if err != nil {
			return err
		}
		installationStore = sqliteadapter.NewInstallationRepo(db, cipher)
	} else {
		slog.Info("no encryption key configured, per-installation DNS credentials disabled")
	}

	// 6. Metrics registry.
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := application.NewMetrics(registry)

	// 7. GitHub App token lifecycle.
	signer, err := githubadapter.NewAppSigner(cfg.GitHubAppID, cfg.GitHubPrivateKey)
	if err != nil {
		return err
	}
	exchanger, err := githubadapter.NewTokenExchanger(
		signer,
		cfg.GitHubInstallationID,
		cfg.GitHubAPIURL,
		&http.Client{Timeout: cfg.UpstreamTimeout},
	)
	if err != nil {
		return err
	}
	tokens := application.NewTokenManager(exchanger, tokenStore, application.TokenManagerConfig{
		RefreshBuffer: cfg.TokenRefreshBuffer,
		CheckInterval: cfg.TokenCheckInterval,
		FallbackToken: cfg.GitHubFallbackToken,
	}, application.WithTokenMetrics(metrics))

	ghClient, err := githubadapter.NewClient(tokens, cfg.GitHubAPIURL, cfg.UpstreamTimeout)
	if err != nil {
		return err
	}

	// 8. DNS providers: the configured zone plus per-installation overrides.
	defaultProvider, err := cloudflareadapter.NewClient(
		cfg.CloudflareZoneID,
		cfg.CloudflareAPIToken,
		cfg.UpstreamTimeout,
		cloudflareadapter.WithBaseURL(cfg.CloudflareAPIURL),
	)
	if err != nil {
		return err
	}
	providers := application.NewDNSProviderSet(defaultProvider, installationStore,
		func(zoneID, apiToken string) (driven.DNSProvider, error) {
			return cloudflareadapter.NewClient(zoneID, apiToken, cfg.UpstreamTimeout,
				cloudflareadapter.WithBaseURL(cfg.CloudflareAPIURL))
		})

	resolver := dnscheck.NewResolver(cfg.DNSResolver, cfg.UpstreamTimeout)

	// 9. Application services.
	reconciler := application.NewReconciler(mappingStore, providers, cfg.CloudflareTargetDomain, metrics)
	discoverer := application.NewDefaultDiscoverer(ghClient)
	webhooks := application.NewWebhookService(reconciler, discoverer, ghClient, tokens, metrics)

	// 10. Obtain a token before serving, then keep it fresh in the background.
	tokens.EnsureFresh(ctx)
	if tok, err := tokens.Acquire(ctx); err != nil || tok == "" {
		slog.Warn("no installation token available at startup, GitHub lookups will fail until a refresh succeeds")
	}
	go tokens.Start(ctx)

	// 11. HTTP server.
	handler := httphandler.NewHandler(httphandler.Deps{
		Webhooks:      webhooks,
		Tokens:        tokens,
		Records:       reconciler,
		Mappings:      mappingStore,
		Installations: installationStore,
		Providers:     providers,
		Resolver:      resolver,
		Metrics:       promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}),
		Signature:     httphandler.NewSignatureVerifier(cfg.WebhookSecret, cfg.IsProduction()),
		AdminToken:    cfg.AdminToken,
	}, slog.Default())

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           httphandler.NewServeMux(handler, slog.Default()),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("http server starting", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	slog.Info("pagesdns started", "listen_addr", cfg.ListenAddr, "env", cfg.Env)

	// 12. Wait for shutdown signal or a server failure.
	select {
	case <-ctx.Done():
		slog.Info("shutting down")
	case err := <-serveErr:
		if err != nil {
			return err
		}
	}

	// 13. Graceful shutdown with 10s timeout for in-flight requests.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http server shutdown error", "error", err)
	}

	slog.Info("shutdown complete")
	return nil
}
