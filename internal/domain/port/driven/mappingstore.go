package driven

import (
	"context"
	"errors"

	"github.com/ericfisherdev/pagesdns/internal/domain/model"
)

// ErrPersistence marks a failed state-store transaction. The transaction has
// been rolled back when it is returned.
var ErrPersistence = errors.New("persistence failure")

// MappingStore defines the driven port for the repository -> domain state.
type MappingStore interface {
	// Get returns the mapping for repo, including its DNS record id.
	// Returns nil, nil if no mapping exists.
	Get(ctx context.Context, repo string) (*model.DomainMapping, error)

	// Save upserts the mapping and its record id in one transaction. An empty
	// RecordID removes any stored record id for the repository.
	Save(ctx context.Context, mapping model.DomainMapping) error

	// Remove deletes the mapping and its record id. It reports whether a
	// mapping existed.
	Remove(ctx context.Context, repo string) (bool, error)

	// List returns all mappings ordered by repository name.
	List(ctx context.Context) ([]model.DomainMapping, error)
}
