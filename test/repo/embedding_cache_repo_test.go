package repo_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/esgpipe/esgpipe/internal/model"
	"github.com/esgpipe/esgpipe/internal/repo"
	"github.com/esgpipe/esgpipe/test/testutil"
)

func TestEmbeddingCacheRepoRoundTrip(t *testing.T) {
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()

	cacheRepo := repo.NewEmbeddingCacheRepo(db)
	item := &model.EmbeddingCache{
		ModelName:   "test-embed",
		TaskType:    "RETRIEVAL_DOCUMENT",
		ContentHash: "hash-1",
		Embedding:   testVector(0.4),
		Ctime:       time.Now().Unix(),
	}
	require.NoError(t, cacheRepo.Save(context.Background(), item))

	emb, ok, err := cacheRepo.Get(context.Background(), "test-embed", "RETRIEVAL_DOCUMENT", "hash-1")
	require.NoError(t, err)
	require.True(t, ok)
	require.InDelta(t, 0.4, emb[0], 1e-6)

	// Different task type is a different entry.
	_, ok, err = cacheRepo.Get(context.Background(), "test-embed", "RETRIEVAL_QUERY", "hash-1")
	require.NoError(t, err)
	require.False(t, ok)

	// Save on the same key replaces the vector.
	item.Embedding = testVector(0.7)
	require.NoError(t, cacheRepo.Save(context.Background(), item))
	emb, ok, err = cacheRepo.Get(context.Background(), "test-embed", "RETRIEVAL_DOCUMENT", "hash-1")
	require.NoError(t, err)
	require.True(t, ok)
	require.InDelta(t, 0.7, emb[0], 1e-6)
}

func TestEmbeddingCacheRepoDeleteBefore(t *testing.T) {
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()

	cacheRepo := repo.NewEmbeddingCacheRepo(db)
	now := time.Now().Unix()
	require.NoError(t, cacheRepo.Save(context.Background(), &model.EmbeddingCache{
		ModelName: "test-embed", TaskType: "RETRIEVAL_DOCUMENT", ContentHash: "old",
		Embedding: testVector(0.1), Ctime: now - 3600,
	}))
	require.NoError(t, cacheRepo.Save(context.Background(), &model.EmbeddingCache{
		ModelName: "test-embed", TaskType: "RETRIEVAL_DOCUMENT", ContentHash: "fresh",
		Embedding: testVector(0.2), Ctime: now,
	}))

	removed, err := cacheRepo.DeleteBefore(context.Background(), now-60)
	require.NoError(t, err)
	require.EqualValues(t, 1, removed)

	_, ok, err := cacheRepo.Get(context.Background(), "test-embed", "RETRIEVAL_DOCUMENT", "fresh")
	require.NoError(t, err)
	require.True(t, ok)
}
