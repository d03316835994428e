package application

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/ericfisherdev/pagesdns/internal/domain/model"
	"github.com/ericfisherdev/pagesdns/internal/domain/port/driven"
)

// Webhook outcomes, used as metric labels and in responses.
const (
	OutcomeIgnored    = "ignored"
	OutcomeReconciled = "reconciled"
	OutcomeRemoved    = "removed"
	OutcomeFailed     = "failed"
)

// TokenFreshener refreshes the installation token when it is near expiry.
type TokenFreshener interface {
	EnsureFresh(ctx context.Context) bool
}

// WebhookService turns GitHub webhook deliveries into reconciliations.
type WebhookService struct {
	reconciler *Reconciler
	discoverer *Discoverer
	source     driven.PagesSource
	tokens     TokenFreshener
	metrics    *Metrics
}

// NewWebhookService creates a WebhookService. tokens may be nil.
func NewWebhookService(
	reconciler *Reconciler,
	discoverer *Discoverer,
	source driven.PagesSource,
	tokens TokenFreshener,
	metrics *Metrics,
) *WebhookService {
	return &WebhookService{
		reconciler: reconciler,
		discoverer: discoverer,
		source:     source,
		tokens:     tokens,
		metrics:    metrics,
	}
}

// Handle dispatches one delivery of the given event kind. Unknown kinds and
// actions are ignored. The returned outcome is one of the Outcome* constants.
func (s *WebhookService) Handle(ctx context.Context, kind string, payload []byte) (string, error) {
	outcome, err := s.dispatch(ctx, kind, payload)
	if err != nil {
		outcome = OutcomeFailed
	}
	s.metrics.WebhookHandled(kind, outcome)
	return outcome, err
}

func (s *WebhookService) dispatch(ctx context.Context, kind string, payload []byte) (string, error) {
	switch kind {
	case model.EventRepository:
		var evt model.RepositoryEvent
		if err := decode(kind, payload, &evt); err != nil {
			return "", err
		}
		return s.handleRepository(ctx, evt)

	case model.EventPageBuild:
		var evt model.PageBuildEvent
		if err := decode(kind, payload, &evt); err != nil {
			return "", err
		}
		s.ensureFresh(ctx)
		return s.reconcile(ctx, evt.Repository.FullName, model.InstallationID(evt.Installation), Subject{Repo: evt.Repository.FullName})

	case model.EventPages:
		var evt model.PagesEvent
		if err := decode(kind, payload, &evt); err != nil {
			return "", err
		}
		return s.handlePages(ctx, evt)

	default:
		slog.Debug("ignoring webhook event", "event", kind)
		return OutcomeIgnored, nil
	}
}

func (s *WebhookService) handleRepository(ctx context.Context, evt model.RepositoryEvent) (string, error) {
	repo := evt.Repository.FullName
	installationID := model.InstallationID(evt.Installation)

	switch evt.Action {
	case model.ActionDeleted:
		if _, err := s.reconciler.RemoveRepository(ctx, repo, installationID); err != nil {
			return "", err
		}
		return OutcomeRemoved, nil

	case model.ActionCreated, model.ActionEdited, model.ActionUpdated:
		s.ensureFresh(ctx)

		info, err := s.source.GetPagesInfo(ctx, repo)
		if err != nil {
			return "", fmt.Errorf("get pages for %q: %w", repo, err)
		}
		if info == nil {
			slog.Debug("repository has no pages site", "repo", repo, "action", evt.Action)
			return OutcomeIgnored, nil
		}

		domain := info.CNAME
		if evt.Repository.Pages != nil && evt.Repository.Pages.CustomDomain != "" {
			domain = evt.Repository.Pages.CustomDomain
		}
		return s.apply(ctx, Observation{
			Repo:           repo,
			InstallationID: installationID,
			Domain:         domain,
			PagesURL:       info.HTMLURL,
		})

	default:
		slog.Debug("ignoring repository action", "repo", repo, "action", evt.Action)
		return OutcomeIgnored, nil
	}
}

func (s *WebhookService) handlePages(ctx context.Context, evt model.PagesEvent) (string, error) {
	repo := evt.Repository.FullName
	installationID := model.InstallationID(evt.Installation)

	switch evt.Action {
	case model.ActionDeleted, model.ActionUndeploy:
		return s.apply(ctx, Observation{Repo: repo, InstallationID: installationID})

	case model.ActionCreated, model.ActionUpdated:
		s.ensureFresh(ctx)
		subject := Subject{Repo: repo}
		if evt.Pages != nil {
			subject.EventCNAME = evt.Pages.CNAME
			subject.EventPagesURL = evt.Pages.HTMLURL
		}
		return s.reconcile(ctx, repo, installationID, subject)

	default:
		slog.Debug("ignoring pages action", "repo", repo, "action", evt.Action)
		return OutcomeIgnored, nil
	}
}

// reconcile runs the discovery chain for subject and applies the result.
func (s *WebhookService) reconcile(ctx context.Context, repo string, installationID int64, subject Subject) (string, error) {
	if _, err := model.ValidateRepoName(repo); err != nil {
		return "", err
	}

	found, err := s.discoverer.Discover(ctx, subject)
	if err != nil {
		return "", err
	}
	return s.apply(ctx, Observation{
		Repo:           repo,
		InstallationID: installationID,
		Domain:         found.Domain,
		PagesURL:       found.PagesURL,
	})
}

func (s *WebhookService) apply(ctx context.Context, obs Observation) (string, error) {
	if _, err := s.reconciler.Apply(ctx, obs); err != nil {
		return "", err
	}
	return OutcomeReconciled, nil
}

func (s *WebhookService) ensureFresh(ctx context.Context) {
	if s.tokens == nil {
		return
	}
	if s.tokens.EnsureFresh(ctx) {
		slog.Debug("installation token refreshed before webhook dispatch")
	}
}

func decode(kind string, payload []byte, v any) error {
	if err := json.Unmarshal(payload, v); err != nil {
		return &model.ValidationError{Field: kind + " payload", Reason: err.Error()}
	}
	return nil
}
