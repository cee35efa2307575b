//go:build integration

package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studyforge/studyforge/internal/domain"
	"github.com/studyforge/studyforge/internal/testutil"
)

func insertAPIKey(t *testing.T, repo *APIKeyRepository, ownerID, hash string) *domain.APIKey {
	key := &domain.APIKey{
		ID:        uuid.NewString(),
		OwnerID:   ownerID,
		Name:      "test key",
		KeyHash:   hash,
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, repo.Create(context.Background(), key))
	return key
}

func TestAPIKeyRepository_Integration(t *testing.T) {
	pool := setupTestDB(t)
	repo := NewAPIKeyRepository(pool)
	ctx := context.Background()

	t.Run("CreateAndLookup", func(t *testing.T) {
		require.NoError(t, testutil.TruncateAll(ctx, pool))

		key := insertAPIKey(t, repo, "owner-1", "hash-abc")

		byID, err := repo.GetByID(ctx, key.ID)
		require.NoError(t, err)
		assert.Equal(t, "owner-1", byID.OwnerID)
		assert.Nil(t, byID.RevokedAt)

		byHash, err := repo.GetByHash(ctx, "hash-abc")
		require.NoError(t, err)
		assert.Equal(t, key.ID, byHash.ID)

		_, err = repo.GetByHash(ctx, "hash-unknown")
		assert.ErrorIs(t, err, domain.ErrAPIKeyNotFound)
	})

	t.Run("Revoke", func(t *testing.T) {
		require.NoError(t, testutil.TruncateAll(ctx, pool))

		key := insertAPIKey(t, repo, "owner-1", "hash-revoke")

		require.NoError(t, repo.Revoke(ctx, key.ID))

		got, err := repo.GetByID(ctx, key.ID)
		require.NoError(t, err)
		assert.True(t, got.IsRevoked())

		// A second revoke finds no revocable row.
		assert.ErrorIs(t, repo.Revoke(ctx, key.ID), domain.ErrAPIKeyNotFound)
	})

	t.Run("ListByOwner", func(t *testing.T) {
		require.NoError(t, testutil.TruncateAll(ctx, pool))

		insertAPIKey(t, repo, "owner-1", "hash-1")
		insertAPIKey(t, repo, "owner-1", "hash-2")
		insertAPIKey(t, repo, "owner-2", "hash-3")

		keys, err := repo.GetByOwnerID(ctx, "owner-1")
		require.NoError(t, err)
		assert.Len(t, keys, 2)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, testutil.TruncateAll(ctx, pool))

		key := insertAPIKey(t, repo, "owner-1", "hash-del")

		require.NoError(t, repo.Delete(ctx, key.ID))
		_, err := repo.GetByID(ctx, key.ID)
		assert.ErrorIs(t, err, domain.ErrAPIKeyNotFound)
	})
}

func TestProjectRepository_Integration(t *testing.T) {
	pool := setupTestDB(t)
	repo := NewProjectRepository(pool)
	docRepo := NewDocumentRepository(pool)
	ctx := context.Background()

	t.Run("CreateGetList", func(t *testing.T) {
		require.NoError(t, testutil.TruncateAll(ctx, pool))

		project := insertProject(t, pool, "owner-1")
		insertProject(t, pool, "owner-2")

		got, err := repo.GetByID(ctx, project.ID)
		require.NoError(t, err)
		assert.Equal(t, project.Name, got.Name)

		_, err = repo.GetByID(ctx, uuid.NewString())
		assert.ErrorIs(t, err, domain.ErrProjectNotFound)

		projects, err := repo.ListByOwner(ctx, "owner-1")
		require.NoError(t, err)
		assert.Len(t, projects, 1)
	})

	t.Run("DeleteBlockedByDocuments", func(t *testing.T) {
		require.NoError(t, testutil.TruncateAll(ctx, pool))

		project := insertProject(t, pool, "owner-1")
		doc := insertDocument(t, docRepo, "owner-1", project.ID, domain.DocumentStatusUploaded, time.Now().UTC())

		// RESTRICT constraint: the project cannot go while documents point
		// at it.
		assert.Error(t, repo.Delete(ctx, project.ID))

		require.NoError(t, docRepo.Delete(ctx, doc.ID))
		assert.NoError(t, repo.Delete(ctx, project.ID))
	})
}
