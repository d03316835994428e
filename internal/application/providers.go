package application

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/ericfisherdev/pagesdns/internal/domain/port/driven"
)

// ProviderFactory builds a DNS provider for one zone and API token.
type ProviderFactory func(zoneID, apiToken string) (driven.DNSProvider, error)

type cachedProvider struct {
	provider  driven.DNSProvider
	updatedAt time.Time
}

// DNSProviderSet selects the DNS provider for an installation. Installations
// with stored credentials get their own provider; everything else uses the
// default provider built from the process configuration. Per-installation
// providers are cached until their stored config changes or Forget is called.
type DNSProviderSet struct {
	fallback      driven.DNSProvider
	installations driven.InstallationStore
	factory       ProviderFactory

	mu    sync.RWMutex
	cache map[int64]cachedProvider
}

// NewDNSProviderSet creates a provider set. installations and factory may be
// nil, in which case every installation uses fallback.
func NewDNSProviderSet(fallback driven.DNSProvider, installations driven.InstallationStore, factory ProviderFactory) *DNSProviderSet {
	return &DNSProviderSet{
		fallback:      fallback,
		installations: installations,
		factory:       factory,
		cache:         make(map[int64]cachedProvider),
	}
}

// Default returns the provider built from process configuration.
func (s *DNSProviderSet) Default() driven.DNSProvider {
	return s.fallback
}

// ForInstallation returns the provider for installationID. Lookup failures
// fall back to the default provider and are logged; only a done context is
// returned as an error.
func (s *DNSProviderSet) ForInstallation(ctx context.Context, installationID int64) (driven.DNSProvider, error) {
	if installationID == 0 || s.installations == nil || s.factory == nil {
		return s.fallback, nil
	}

	cfg, err := s.installations.Get(ctx, installationID)
	switch {
	case err != nil && ctx.Err() != nil:
		return nil, ctx.Err()
	case errors.Is(err, driven.ErrEncryptionKeyNotSet):
		return s.fallback, nil
	case err != nil:
		slog.Warn("loading installation config failed, using default DNS provider",
			"installation_id", installationID, "error", err)
		return s.fallback, nil
	case cfg == nil || cfg.ZoneID == "" || cfg.APIToken == "":
		return s.fallback, nil
	}

	s.mu.RLock()
	cached, ok := s.cache[installationID]
	s.mu.RUnlock()
	if ok && cached.updatedAt.Equal(cfg.UpdatedAt) {
		return cached.provider, nil
	}

	provider, err := s.factory(cfg.ZoneID, cfg.APIToken)
	if err != nil {
		slog.Warn("building installation DNS provider failed, using default",
			"installation_id", installationID, "error", err)
		return s.fallback, nil
	}

	s.mu.Lock()
	s.cache[installationID] = cachedProvider{provider: provider, updatedAt: cfg.UpdatedAt}
	s.mu.Unlock()

	slog.Debug("using installation DNS provider", "installation_id", installationID, "zone_id", cfg.ZoneID)
	return provider, nil
}

// Forget drops the cached provider for installationID so the next lookup
// rebuilds it from the store.
func (s *DNSProviderSet) Forget(installationID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.cache, installationID)
}
