package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/pagesdns/internal/domain/model"
)

func TestTokenRepo_PutAndGet(t *testing.T) {
	db := setupTestDB(t)
	repo := NewTokenRepo(db)
	ctx := context.Background()

	expires := time.Date(2026, 3, 1, 13, 0, 0, 0, time.UTC)
	created := expires.Add(-time.Hour)
	require.NoError(t, repo.Put(ctx, model.AccessToken{Value: "ghs_first", ExpiresAt: expires, CreatedAt: created}))

	got, err := repo.Get(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "ghs_first", got.Value)
	assert.True(t, expires.Equal(got.ExpiresAt))
	assert.True(t, created.Equal(got.CreatedAt))
}

func TestTokenRepo_PutReplacesSingleton(t *testing.T) {
	db := setupTestDB(t)
	repo := NewTokenRepo(db)
	ctx := context.Background()

	now := time.Now().UTC()
	require.NoError(t, repo.Put(ctx, model.AccessToken{Value: "old", ExpiresAt: now.Add(time.Hour), CreatedAt: now}))
	require.NoError(t, repo.Put(ctx, model.AccessToken{Value: "new", ExpiresAt: now.Add(2 * time.Hour), CreatedAt: now}))

	got, err := repo.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "new", got.Value)

	var count int
	require.NoError(t, db.Reader.QueryRowContext(ctx, `SELECT COUNT(*) FROM tokens`).Scan(&count))
	assert.Equal(t, 1, count)
}

func TestTokenRepo_GetEmpty(t *testing.T) {
	db := setupTestDB(t)
	repo := NewTokenRepo(db)

	got, err := repo.Get(context.Background())
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestTokenRepo_PutRequiresFields(t *testing.T) {
	db := setupTestDB(t)
	repo := NewTokenRepo(db)

	err := repo.Put(context.Background(), model.AccessToken{Value: "x"})
	require.Error(t, err)
	assert.True(t, model.IsValidation(err))
}
