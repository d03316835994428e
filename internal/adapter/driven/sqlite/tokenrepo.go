package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ericfisherdev/pagesdns/internal/domain/model"
	"github.com/ericfisherdev/pagesdns/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.TokenStore = (*TokenRepo)(nil)

// TokenRepo stores the installation access token in the singleton row
// model.TokenID of the tokens table.
type TokenRepo struct {
	db *DB
}

// NewTokenRepo creates a new TokenRepo backed by the given DB.
func NewTokenRepo(db *DB) *TokenRepo {
	return &TokenRepo{db: db}
}

// Get returns the stored token, or nil, nil if none exists.
func (r *TokenRepo) Get(ctx context.Context) (*model.AccessToken, error) {
	const query = `SELECT token, expires_at, created_at FROM tokens WHERE id = ?`

	var token model.AccessToken
	var expiresAt, createdAt string
	err := r.db.Reader.QueryRowContext(ctx, query, model.TokenID).Scan(&token.Value, &expiresAt, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get token: %w", err)
	}

	if token.ExpiresAt, err = parseTime(expiresAt); err != nil {
		return nil, fmt.Errorf("parse token expires_at: %w", err)
	}
	if token.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parse token created_at: %w", err)
	}
	return &token, nil
}

// Put replaces the stored token.
func (r *TokenRepo) Put(ctx context.Context, token model.AccessToken) error {
	value, err := model.Sanitize("token", token.Value)
	if err != nil {
		return err
	}
	if value == "" || token.ExpiresAt.IsZero() {
		return &model.ValidationError{Field: "token", Reason: "value and expiry are required"}
	}

	return r.db.inTx(ctx, "store token", func(tx *sql.Tx) error {
		const query = `INSERT OR REPLACE INTO tokens (id, token, expires_at, created_at) VALUES (?, ?, ?, ?)`
		_, err := tx.ExecContext(ctx, query, model.TokenID, value, formatTime(token.ExpiresAt), formatTime(token.CreatedAt))
		return err
	})
}
