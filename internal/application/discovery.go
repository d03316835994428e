package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/ericfisherdev/pagesdns/internal/domain/model"
	"github.com/ericfisherdev/pagesdns/internal/domain/port/driven"
)

// DiscoverySource names the strategy that produced a domain.
type DiscoverySource string

const (
	SourceEvent     DiscoverySource = "event"
	SourcePagesAPI  DiscoverySource = "pages_api"
	SourceCNAMEFile DiscoverySource = "cname_file"
	SourceNone      DiscoverySource = "none"
)

// cnameFile is the file GitHub Pages writes the custom domain to.
const cnameFile = "CNAME"

// cnameBranches are tried in order before the repository's default branch.
var cnameBranches = []string{"main", "master", "gh-pages"}

// Subject is what discovery is asked about: a repository plus whatever the
// triggering event already said.
type Subject struct {
	Repo          string
	EventCNAME    string
	EventPagesURL string
}

// Discovery is the resolved domain state of a repository. An empty Domain
// means no custom domain.
type Discovery struct {
	Domain   string
	PagesURL string
	Source   DiscoverySource
}

// Strategy is one way of finding a repository's custom domain. A strategy
// returns an empty Domain when it has no answer.
type Strategy interface {
	Name() DiscoverySource
	Discover(ctx context.Context, subject Subject) (Discovery, error)
}

// Discoverer runs strategies in order and stops at the first one that yields
// a domain.
type Discoverer struct {
	strategies []Strategy
}

// NewDiscoverer creates a Discoverer over strategies, tried in order.
func NewDiscoverer(strategies ...Strategy) *Discoverer {
	return &Discoverer{strategies: strategies}
}

// NewDefaultDiscoverer returns the event field, Pages API, CNAME file chain.
func NewDefaultDiscoverer(source driven.PagesSource) *Discoverer {
	return NewDiscoverer(
		EventFieldStrategy{},
		PagesAPIStrategy{Source: source},
		CNAMEFileStrategy{Source: source},
	)
}

// Discover returns the first non-empty domain. The first non-empty pages URL
// seen along the way is kept. When no strategy yields a domain but one of them
// failed, the failure is returned so callers do not mistake an outage for a
// removed domain.
func (d *Discoverer) Discover(ctx context.Context, subject Subject) (Discovery, error) {
	var pagesURL string
	var errs []error

	for _, s := range d.strategies {
		res, err := s.Discover(ctx, subject)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return Discovery{}, ctxErr
			}
			slog.Warn("domain discovery strategy failed", "repo", subject.Repo, "strategy", s.Name(), "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
			continue
		}
		if pagesURL == "" {
			pagesURL = res.PagesURL
		}
		if res.Domain != "" {
			slog.Debug("domain discovered", "repo", subject.Repo, "strategy", s.Name(), "domain", res.Domain)
			return Discovery{Domain: res.Domain, PagesURL: pagesURL, Source: s.Name()}, nil
		}
	}

	if len(errs) > 0 {
		return Discovery{PagesURL: pagesURL, Source: SourceNone}, fmt.Errorf("discover domain for %q: %w", subject.Repo, errors.Join(errs...))
	}
	return Discovery{PagesURL: pagesURL, Source: SourceNone}, nil
}

// EventFieldStrategy trusts the cname carried by a pages event.
type EventFieldStrategy struct{}

func (EventFieldStrategy) Name() DiscoverySource { return SourceEvent }

func (EventFieldStrategy) Discover(_ context.Context, subject Subject) (Discovery, error) {
	return Discovery{
		Domain:   model.NormalizeDomain(subject.EventCNAME),
		PagesURL: subject.EventPagesURL,
		Source:   SourceEvent,
	}, nil
}

// PagesAPIStrategy reads the live Pages configuration. A repository without
// a Pages site has no domain.
type PagesAPIStrategy struct {
	Source driven.PagesSource
}

func (PagesAPIStrategy) Name() DiscoverySource { return SourcePagesAPI }

func (s PagesAPIStrategy) Discover(ctx context.Context, subject Subject) (Discovery, error) {
	info, err := s.Source.GetPagesInfo(ctx, subject.Repo)
	if err != nil {
		return Discovery{}, err
	}
	if info == nil {
		return Discovery{Source: SourcePagesAPI}, nil
	}
	return Discovery{
		Domain:   model.NormalizeDomain(info.CNAME),
		PagesURL: info.HTMLURL,
		Source:   SourcePagesAPI,
	}, nil
}

// CNAMEFileStrategy reads the CNAME file from the usual publishing branches
// and then the default branch. Missing files are skipped; so are read errors
// on individual branches, which are logged.
type CNAMEFileStrategy struct {
	Source driven.PagesSource
}

func (CNAMEFileStrategy) Name() DiscoverySource { return SourceCNAMEFile }

func (s CNAMEFileStrategy) Discover(ctx context.Context, subject Subject) (Discovery, error) {
	branches := append([]string(nil), cnameBranches...)

	def, err := s.Source.GetDefaultBranch(ctx, subject.Repo)
	switch {
	case err != nil:
		slog.Debug("default branch lookup failed", "repo", subject.Repo, "error", err)
	case def != "" && !slices.Contains(branches, def):
		branches = append(branches, def)
	}

	for _, branch := range branches {
		content, found, err := s.Source.GetFileContent(ctx, subject.Repo, cnameFile, branch)
		if err != nil {
			if ctx.Err() != nil {
				return Discovery{}, ctx.Err()
			}
			slog.Warn("reading CNAME file failed", "repo", subject.Repo, "branch", branch, "error", err)
			continue
		}
		if !found {
			continue
		}
		if domain := parseCNAMEFile(content); domain != "" {
			return Discovery{Domain: domain, Source: SourceCNAMEFile}, nil
		}
	}
	return Discovery{Source: SourceCNAMEFile}, nil
}

// parseCNAMEFile returns the first non-blank line of a CNAME file.
func parseCNAMEFile(content string) string {
	for line := range strings.SplitSeq(content, "\n") {
		if d := model.NormalizeDomain(line); d != "" {
			return d
		}
	}
	return ""
}
