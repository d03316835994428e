package driven

import (
	"context"

	"github.com/ericfisherdev/pagesdns/internal/domain/model"
)

// DNSProvider manages CNAME records in one DNS zone. Every operation is safe
// to call with a stale or already-deleted record id.
type DNSProvider interface {
	// FindByName returns the id of the CNAME record named domain, or "" if
	// there is none.
	FindByName(ctx context.Context, domain string) (string, error)

	// Create adds a CNAME record. A record that already exists yields a
	// degraded result rather than an error.
	Create(ctx context.Context, domain, target string) (model.RecordResult, error)

	// Update rewrites the record recordID. A missing record is not an error.
	Update(ctx context.Context, recordID, domain, target string) error

	// Delete removes recordID. A missing record is not an error.
	Delete(ctx context.Context, recordID string) error

	// DeleteByName finds the CNAME record named domain and deletes it.
	DeleteByName(ctx context.Context, domain string) error
}

// CNAMEResolver looks up the live CNAME target of a hostname.
type CNAMEResolver interface {
	// LookupCNAME returns the target without the trailing dot, or "" when the
	// name has no CNAME record.
	LookupCNAME(ctx context.Context, domain string) (string, error)
}
