package driven

import (
	"context"

	"github.com/ericfisherdev/pagesdns/internal/domain/model"
)

// TokenStore persists the single installation access token.
type TokenStore interface {
	// Get returns the stored token, or nil, nil if none has been stored.
	Get(ctx context.Context) (*model.AccessToken, error)

	// Put replaces the stored token inside a transaction.
	Put(ctx context.Context, token model.AccessToken) error
}
