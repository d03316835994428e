package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/sync/singleflight"

	"github.com/ericfisherdev/pagesdns/internal/domain/model"
	"github.com/ericfisherdev/pagesdns/internal/domain/port/driven"
)

const (
	// DefaultRefreshBuffer is how long before expiry a token stops being used.
	DefaultRefreshBuffer = 5 * time.Minute
	// DefaultCheckInterval is the period of the background expiry check.
	DefaultCheckInterval = 45 * time.Minute

	refreshKey         = "installation-token"
	maxRefreshRetries  = 5
	refreshCallTimeout = 2 * time.Minute
)

// ErrNoToken is returned by Refresh when the exchange failed and neither a
// stored nor a configured fallback token is available.
var ErrNoToken = errors.New("no installation token available")

// TokenManagerConfig holds the tunables of a TokenManager.
type TokenManagerConfig struct {
	RefreshBuffer time.Duration
	CheckInterval time.Duration
	// FallbackToken is a statically configured token used when the exchange
	// fails and no stored token is usable.
	FallbackToken string
}

// TokenManager keeps one installation access token valid under concurrent
// use. Concurrent refreshes collapse into a single exchange.
type TokenManager struct {
	exchanger driven.InstallationTokenExchanger
	store     driven.TokenStore
	cfg       TokenManagerConfig
	metrics   *Metrics

	now        func() time.Time
	newBackOff func() backoff.BackOff

	group singleflight.Group

	mu     sync.RWMutex
	cached *model.AccessToken
}

// TokenManagerOption configures a TokenManager.
type TokenManagerOption func(*TokenManager)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) TokenManagerOption {
	return func(m *TokenManager) { m.now = now }
}

// WithRefreshBackOff replaces the retry policy of the token exchange.
func WithRefreshBackOff(newBackOff func() backoff.BackOff) TokenManagerOption {
	return func(m *TokenManager) { m.newBackOff = newBackOff }
}

// WithTokenMetrics records refresh outcomes.
func WithTokenMetrics(metrics *Metrics) TokenManagerOption {
	return func(m *TokenManager) { m.metrics = metrics }
}

// NewTokenManager creates a TokenManager. Zero durations in cfg take the
// package defaults.
func NewTokenManager(
	exchanger driven.InstallationTokenExchanger,
	store driven.TokenStore,
	cfg TokenManagerConfig,
	opts ...TokenManagerOption,
) *TokenManager {
	if cfg.RefreshBuffer <= 0 {
		cfg.RefreshBuffer = DefaultRefreshBuffer
	}
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = DefaultCheckInterval
	}

	m := &TokenManager{
		exchanger:  exchanger,
		store:      store,
		cfg:        cfg,
		now:        time.Now,
		newBackOff: defaultRefreshBackOff,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func defaultRefreshBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Second
	b.Multiplier = 2
	b.RandomizationFactor = 0.2
	b.MaxInterval = 15 * time.Second
	b.MaxElapsedTime = 0
	return b
}

// Acquire returns a usable token: the cached one, else a valid stored one,
// else a freshly exchanged one. When the exchange fails it degrades to the
// stored or configured fallback token, which may be empty. It fails only
// when ctx is done.
func (m *TokenManager) Acquire(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	if tok, ok := m.cachedValid(); ok {
		return tok, nil
	}

	stored, err := m.store.Get(ctx)
	if err != nil {
		slog.Warn("reading stored token failed", "error", err)
	} else if stored != nil && !stored.IsExpired(m.now(), m.cfg.RefreshBuffer) {
		m.setCached(*stored)
		return stored.Value, nil
	}

	tok, err := m.sharedRefresh(ctx, true)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		slog.Warn("token refresh failed, using fallback", "error", err, "has_token", tok != "")
	}
	return tok, nil
}

// Refresh exchanges a new token. Concurrent callers share one exchange and
// receive the same value. On failure the returned string is the best
// available fallback and the error describes what went wrong.
func (m *TokenManager) Refresh(ctx context.Context) (string, error) {
	return m.sharedRefresh(ctx, false)
}

// sharedRefresh runs the single-flight exchange. With reuseCached set, a
// caller that arrives after another flight already cached a valid token
// takes that token instead of starting a second exchange.
func (m *TokenManager) sharedRefresh(ctx context.Context, reuseCached bool) (string, error) {
	ch := m.group.DoChan(refreshKey, func() (any, error) {
		if reuseCached {
			if tok, ok := m.cachedValid(); ok {
				return tok, nil
			}
		}

		// The shared call must not die with whichever caller started it.
		callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), refreshCallTimeout)
		defer cancel()
		return m.refresh(callCtx)
	})

	select {
	case res := <-ch:
		tok, _ := res.Val.(string)
		return tok, res.Err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (m *TokenManager) refresh(ctx context.Context) (string, error) {
	slog.Info("refreshing installation token")

	var fresh model.AccessToken
	attempt := 0
	operation := func() error {
		attempt++
		tok, err := m.exchanger.Exchange(ctx)
		if err != nil {
			if !model.IsTransient(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		fresh = tok
		return nil
	}
	notify := func(err error, wait time.Duration) {
		slog.Warn("token exchange failed, retrying", "attempt", attempt, "retry_in", wait, "error", err)
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(m.newBackOff(), maxRefreshRetries), ctx)
	if err := backoff.RetryNotify(operation, policy, notify); err != nil {
		m.metrics.tokenRefreshed(err)
		fallback := m.fallback(ctx)
		if fallback == "" {
			return "", fmt.Errorf("refresh installation token: %w: %w", ErrNoToken, err)
		}
		return fallback, fmt.Errorf("refresh installation token: %w", err)
	}
	m.metrics.tokenRefreshed(nil)

	m.setCached(fresh)
	if err := m.store.Put(ctx, fresh); err != nil {
		slog.Error("persisting refreshed token failed", "error", err)
	}

	slog.Info("installation token refreshed",
		"token", fresh.Preview(),
		"expires_at", fresh.ExpiresAt.Format(time.RFC3339),
	)
	return fresh.Value, nil
}

// fallback returns the stored token while it has not actually expired, then
// the configured fallback token.
func (m *TokenManager) fallback(ctx context.Context) string {
	stored, err := m.store.Get(ctx)
	if err != nil {
		slog.Warn("reading stored token for fallback failed", "error", err)
	}
	if stored != nil && !stored.IsExpired(m.now(), 0) {
		return stored.Value
	}
	return m.cfg.FallbackToken
}

// IsExpired reports whether the stored token is missing or inside the
// refresh buffer. A store read failure counts as expired.
func (m *TokenManager) IsExpired(ctx context.Context) bool {
	stored, err := m.store.Get(ctx)
	if err != nil {
		slog.Warn("reading stored token failed", "error", err)
		return true
	}
	return stored == nil || stored.IsExpired(m.now(), m.cfg.RefreshBuffer)
}

// EnsureFresh refreshes the token if it is expired and reports whether a
// refresh ran.
func (m *TokenManager) EnsureFresh(ctx context.Context) bool {
	if !m.IsExpired(ctx) {
		return false
	}
	m.Invalidate()
	if _, err := m.Refresh(ctx); err != nil {
		slog.Error("scheduled token refresh failed", "error", err)
	}
	return true
}

// Start runs EnsureFresh immediately and then on the configured interval.
// It blocks until ctx is canceled.
func (m *TokenManager) Start(ctx context.Context) {
	m.EnsureFresh(ctx)

	ticker := time.NewTicker(m.cfg.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("token manager stopped")
			return
		case <-ticker.C:
			m.EnsureFresh(ctx)
		}
	}
}

// Invalidate drops the in-memory token so the next Acquire consults the store.
func (m *TokenManager) Invalidate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cached = nil
}

func (m *TokenManager) cachedValid() (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.cached == nil || m.cached.IsExpired(m.now(), m.cfg.RefreshBuffer) {
		return "", false
	}
	return m.cached.Value, true
}

func (m *TokenManager) setCached(tok model.AccessToken) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cached = &tok
}
