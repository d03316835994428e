// Package httphandler is the HTTP driving adapter: the GitHub webhook
// receiver, the admin API, health endpoints and metrics.
package httphandler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/ericfisherdev/pagesdns/internal/application"
	"github.com/ericfisherdev/pagesdns/internal/domain/port/driven"
)

// WebhookProcessor handles one decoded webhook delivery.
type WebhookProcessor interface {
	Handle(ctx context.Context, kind string, payload []byte) (string, error)
}

// TokenRefresher forces an installation token refresh.
type TokenRefresher interface {
	Refresh(ctx context.Context) (string, error)
}

// RecordUpdater upserts a CNAME record outside the webhook flow.
type RecordUpdater interface {
	UpdateRecord(ctx context.Context, domain, target string, installationID int64) (application.RecordUpdate, error)
}

// ProviderCache drops cached per-installation DNS providers.
type ProviderCache interface {
	Forget(installationID int64)
}

// Deps are the collaborators of a Handler. Installations, Providers,
// Resolver and Metrics may be nil; the routes that need them then report
// the feature as unavailable.
type Deps struct {
	Webhooks      WebhookProcessor
	Tokens        TokenRefresher
	Records       RecordUpdater
	Mappings      driven.MappingStore
	Installations driven.InstallationStore
	Providers     ProviderCache
	Resolver      driven.CNAMEResolver
	Metrics       http.Handler

	Signature  *SignatureVerifier
	AdminToken string
}

// Handler is the HTTP driving adapter.
type Handler struct {
	Deps
	deliveries *deliveryCache
	validate   *validator.Validate
	logger     *slog.Logger
	now        func() time.Time
}

// NewHandler creates a Handler with all required dependencies.
func NewHandler(deps Deps, logger *slog.Logger) *Handler {
	return &Handler{
		Deps:       deps,
		deliveries: newDeliveryCache(deliveryTTL, time.Now),
		validate:   validator.New(validator.WithRequiredStructEnabled()),
		logger:     logger,
		now:        time.Now,
	}
}

// NewServeMux creates an http.Handler with all routes registered and wrapped
// with request id, logging and recovery middleware.
func NewServeMux(h *Handler, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /webhook", h.Webhook)

	admin := adminAuthMiddleware(h.AdminToken)
	mux.Handle("POST /refresh-token", admin(http.HandlerFunc(h.RefreshToken)))
	mux.Handle("POST /update-cname", admin(http.HandlerFunc(h.UpdateCNAME)))
	mux.Handle("POST /test-store", admin(http.HandlerFunc(h.TestStore)))
	mux.Handle("POST /test-remove", admin(http.HandlerFunc(h.TestRemove)))
	mux.Handle("GET /api/v1/mappings", admin(http.HandlerFunc(h.ListMappings)))
	mux.Handle("GET /api/v1/mappings/{owner}/{repo}", admin(http.HandlerFunc(h.GetMapping)))
	mux.Handle("PUT /api/v1/installations/{id}", admin(http.HandlerFunc(h.PutInstallation)))
	mux.Handle("PATCH /api/v1/installations/{id}", admin(http.HandlerFunc(h.PatchInstallation)))
	mux.Handle("GET /api/v1/installations/{id}", admin(http.HandlerFunc(h.GetInstallation)))

	mux.HandleFunc("GET /healthz", h.Health)
	mux.HandleFunc("GET /readyz", h.Health)
	if h.Metrics != nil {
		mux.Handle("GET /metrics", h.Metrics)
	}

	// Recovery innermost so panics are caught before logging.
	wrapped := recoveryMiddleware(logger, mux)
	wrapped = loggingMiddleware(logger, wrapped)
	wrapped = requestIDMiddleware(wrapped)

	return wrapped
}

// Health reports liveness. It deliberately checks nothing downstream.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status: "ok",
		Time:   h.now().UTC().Format(time.RFC3339),
	})
}
