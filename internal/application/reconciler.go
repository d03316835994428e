package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ericfisherdev/pagesdns/internal/domain/model"
	"github.com/ericfisherdev/pagesdns/internal/domain/port/driven"
)

// Transition is the kind of state change a reconciliation applied.
type Transition string

const (
	TransitionUnchanged   Transition = "unchanged"
	TransitionCreated     Transition = "created"
	TransitionRemoved     Transition = "removed"
	TransitionChanged     Transition = "changed"
	TransitionRepoRemoved Transition = "repo_removed"
	// TransitionRepaired re-issues the record for an unchanged domain whose
	// earlier create failed.
	TransitionRepaired Transition = "repaired"
)

// ProviderSource picks the DNS provider for an installation.
type ProviderSource interface {
	ForInstallation(ctx context.Context, installationID int64) (driven.DNSProvider, error)
}

// Observation is a newly resolved domain state for one repository.
type Observation struct {
	Repo           string
	InstallationID int64
	// Domain is the custom domain; empty means none.
	Domain string
	// PagesURL is the site URL; empty keeps the stored one.
	PagesURL string
}

// Outcome describes what a reconciliation did.
type Outcome struct {
	Repo        string
	Transition  Transition
	PriorDomain string
	Domain      string
	RecordID    string
	Degraded    bool
	// DNSErr holds DNS provider failures. They do not stop the state
	// from being persisted.
	DNSErr error
}

// RecordUpdate is the result of a manual record upsert.
type RecordUpdate struct {
	Action   string
	RecordID string
}

// Reconciler turns observations into at most two DNS calls plus one state
// write. Transitions are computed only from persisted state, so replaying an
// observation that matches it issues no DNS calls.
type Reconciler struct {
	store     driven.MappingStore
	providers ProviderSource
	target    string
	metrics   *Metrics
	locks     *keyedMutex
}

// NewReconciler creates a Reconciler that points every record at target.
func NewReconciler(store driven.MappingStore, providers ProviderSource, target string, metrics *Metrics) *Reconciler {
	return &Reconciler{
		store:     store,
		providers: providers,
		target:    target,
		metrics:   metrics,
		locks:     newKeyedMutex(),
	}
}

// Apply reconciles one repository towards obs.
func (r *Reconciler) Apply(ctx context.Context, obs Observation) (Outcome, error) {
	repo, err := model.ValidateRepoName(obs.Repo)
	if err != nil {
		return Outcome{}, err
	}
	domain, err := model.ValidateDomain(obs.Domain)
	if err != nil {
		return Outcome{}, err
	}
	pagesURL, err := model.ValidatePagesURL(obs.PagesURL)
	if err != nil {
		return Outcome{}, err
	}

	unlock := r.locks.Lock(repo)
	defer unlock()

	prior, err := r.store.Get(ctx, repo)
	if err != nil {
		return Outcome{}, fmt.Errorf("load mapping %q: %w", repo, err)
	}

	next := model.DomainMapping{RepoName: repo, PagesURL: pagesURL, CustomDomain: domain}
	out := Outcome{Repo: repo, Domain: domain}
	var priorURL string
	if prior != nil {
		out.PriorDomain = prior.CustomDomain
		priorURL = prior.PagesURL
		next.RecordID = prior.RecordID
	}
	if next.PagesURL == "" {
		next.PagesURL = priorURL
	}

	switch {
	case out.PriorDomain == domain && prior.NeedsRecord():
		out.Transition = TransitionRepaired
		r.ensure(ctx, obs.InstallationID, &next, &out)

	case out.PriorDomain == domain:
		out.Transition = TransitionUnchanged
		out.RecordID = next.RecordID
		if next.PagesURL == priorURL && (prior != nil || next.PagesURL == "") {
			r.metrics.reconciled(out.Transition)
			return out, nil
		}

	case out.PriorDomain == "":
		out.Transition = TransitionCreated
		r.create(ctx, obs.InstallationID, &next, &out)

	case domain == "":
		out.Transition = TransitionRemoved
		out.DNSErr = r.deleteByName(ctx, obs.InstallationID, out.PriorDomain)
		next.RecordID = ""

	default:
		out.Transition = TransitionChanged
		out.DNSErr = r.deleteByName(ctx, obs.InstallationID, out.PriorDomain)
		next.RecordID = ""
		r.create(ctx, obs.InstallationID, &next, &out)
	}

	if err := r.store.Save(ctx, next); err != nil {
		return out, fmt.Errorf("save mapping %q: %w", repo, err)
	}
	r.metrics.reconciled(out.Transition)

	attrs := []any{
		"repo", repo,
		"transition", out.Transition,
		"prior_domain", out.PriorDomain,
		"domain", domain,
		"record_id", out.RecordID,
	}
	if out.DNSErr != nil {
		slog.Error("domain reconciled with DNS errors", append(attrs, "error", out.DNSErr)...)
	} else {
		slog.Info("domain reconciled", attrs...)
	}
	return out, nil
}

// create issues the DNS create for next.CustomDomain and records the result
// in next and out. Failures leave next.RecordID empty.
func (r *Reconciler) create(ctx context.Context, installationID int64, next *model.DomainMapping, out *Outcome) {
	provider, err := r.providers.ForInstallation(ctx, installationID)
	if err != nil {
		out.DNSErr = errors.Join(out.DNSErr, err)
		return
	}

	res, err := provider.Create(ctx, next.CustomDomain, r.target)
	r.metrics.dnsCall("create", err)
	if err != nil {
		out.DNSErr = errors.Join(out.DNSErr, fmt.Errorf("create record %q: %w", next.CustomDomain, err))
		return
	}

	next.RecordID = res.PersistableID()
	out.RecordID = next.RecordID
	out.Degraded = res.IsDegraded()
	if out.Degraded {
		slog.Warn("DNS record created without a usable id", "domain", next.CustomDomain, "reason", res.Reason)
	}
}

// ensure adopts an existing record for next.CustomDomain or creates one. It
// runs when a previous create failed, so the record may exist after all.
func (r *Reconciler) ensure(ctx context.Context, installationID int64, next *model.DomainMapping, out *Outcome) {
	provider, err := r.providers.ForInstallation(ctx, installationID)
	if err != nil {
		out.DNSErr = errors.Join(out.DNSErr, err)
		return
	}

	id, err := provider.FindByName(ctx, next.CustomDomain)
	r.metrics.dnsCall("find", err)
	if err != nil {
		out.DNSErr = errors.Join(out.DNSErr, fmt.Errorf("find record %q: %w", next.CustomDomain, err))
		return
	}
	if id != "" {
		next.RecordID = id
		out.RecordID = id
		return
	}

	r.create(ctx, installationID, next, out)
}

func (r *Reconciler) deleteByName(ctx context.Context, installationID int64, domain string) error {
	provider, err := r.providers.ForInstallation(ctx, installationID)
	if err != nil {
		return err
	}

	err = provider.DeleteByName(ctx, domain)
	r.metrics.dnsCall("delete", err)
	if err != nil {
		return fmt.Errorf("delete record %q: %w", domain, err)
	}
	return nil
}

// RemoveRepository deletes the repository's DNS record by its stored domain
// and then forgets the repository. A DNS failure is logged and does not keep
// the mapping alive.
func (r *Reconciler) RemoveRepository(ctx context.Context, repo string, installationID int64) (Outcome, error) {
	repo, err := model.ValidateRepoName(repo)
	if err != nil {
		return Outcome{}, err
	}

	unlock := r.locks.Lock(repo)
	defer unlock()

	prior, err := r.store.Get(ctx, repo)
	if err != nil {
		return Outcome{}, fmt.Errorf("load mapping %q: %w", repo, err)
	}

	out := Outcome{Repo: repo, Transition: TransitionRepoRemoved}
	if prior.HasDomain() {
		out.PriorDomain = prior.CustomDomain
		out.DNSErr = r.deleteByName(ctx, installationID, prior.CustomDomain)
	}

	if _, err := r.store.Remove(ctx, repo); err != nil {
		return out, fmt.Errorf("remove mapping %q: %w", repo, err)
	}
	r.metrics.reconciled(out.Transition)

	if out.DNSErr != nil {
		slog.Error("repository removed with DNS errors", "repo", repo, "domain", out.PriorDomain, "error", out.DNSErr)
	} else {
		slog.Info("repository removed", "repo", repo, "domain", out.PriorDomain)
	}
	return out, nil
}

// UpdateRecord points the CNAME record for domain at target, creating it if
// it does not exist. An empty target uses the configured one.
func (r *Reconciler) UpdateRecord(ctx context.Context, domain, target string, installationID int64) (RecordUpdate, error) {
	domain, err := model.ValidateDomain(domain)
	if err != nil {
		return RecordUpdate{}, err
	}
	if domain == "" {
		return RecordUpdate{}, &model.ValidationError{Field: "domain", Reason: "must not be empty"}
	}
	if target == "" {
		target = r.target
	}
	target, err = model.ValidateDomain(target)
	var verr *model.ValidationError
	if errors.As(err, &verr) {
		return RecordUpdate{}, &model.ValidationError{Field: "target", Reason: verr.Reason}
	}
	if target == "" {
		return RecordUpdate{}, &model.ValidationError{Field: "target", Reason: "must not be empty"}
	}

	provider, err := r.providers.ForInstallation(ctx, installationID)
	if err != nil {
		return RecordUpdate{}, err
	}

	id, err := provider.FindByName(ctx, domain)
	r.metrics.dnsCall("find", err)
	if err != nil {
		return RecordUpdate{}, fmt.Errorf("find record %q: %w", domain, err)
	}

	if id != "" {
		err := provider.Update(ctx, id, domain, target)
		r.metrics.dnsCall("update", err)
		if err != nil {
			return RecordUpdate{}, fmt.Errorf("update record %q: %w", domain, err)
		}
		slog.Info("DNS record updated", "domain", domain, "target", target, "record_id", id)
		return RecordUpdate{Action: "updated", RecordID: id}, nil
	}

	res, err := provider.Create(ctx, domain, target)
	r.metrics.dnsCall("create", err)
	if err != nil {
		return RecordUpdate{}, fmt.Errorf("create record %q: %w", domain, err)
	}
	if res.IsDegraded() {
		return RecordUpdate{Action: "degraded", RecordID: res.ID}, nil
	}
	return RecordUpdate{Action: "created", RecordID: res.ID}, nil
}
