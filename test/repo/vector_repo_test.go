package repo_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/esgpipe/esgpipe/internal/model"
	appErr "github.com/esgpipe/esgpipe/internal/pkg/errors"
	"github.com/esgpipe/esgpipe/internal/repo"
	"github.com/esgpipe/esgpipe/test/testutil"
)

// testVector fills the whole embedding dimension with a dominant first
// component so cosine ordering between vectors stays predictable.
func testVector(first float32) []float32 {
	vec := make([]float32, 768)
	vec[0] = first
	vec[1] = 1
	return vec
}

func seedEmbeddedDocument(t *testing.T, docs *repo.DocumentRepo, chunks *repo.ChunkRepo, vectors *repo.VectorRepo, docID string, firsts []float32) {
	t.Helper()
	require.NoError(t, docs.Create(context.Background(), newTestDocument(docID)))
	require.NoError(t, chunks.ReplaceForDocument(context.Background(), docID, makeTestChunks(docID, len(firsts))))
	for i, first := range firsts {
		require.NoError(t, vectors.Upsert(context.Background(), &model.ChunkEmbedding{
			ChunkID:    fmt.Sprintf("%s-chunk-%d", docID, i),
			DocumentID: docID,
			Embedding:  testVector(first),
			ModelName:  "test-embed",
			Mtime:      time.Now().UnixMilli(),
		}))
	}
}

func TestVectorRepoUpsertAndGet(t *testing.T) {
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()

	docs := repo.NewDocumentRepo(db)
	chunks := repo.NewChunkRepo(db)
	vectors := repo.NewVectorRepo(db)
	seedEmbeddedDocument(t, docs, chunks, vectors, "doc-vec-1", []float32{0.5})

	emb, err := vectors.GetEmbedding(context.Background(), "doc-vec-1-chunk-0")
	require.NoError(t, err)
	require.Len(t, emb, 768)
	require.InDelta(t, 0.5, emb[0], 1e-6)

	// Upsert replaces in place.
	require.NoError(t, vectors.Upsert(context.Background(), &model.ChunkEmbedding{
		ChunkID:    "doc-vec-1-chunk-0",
		DocumentID: "doc-vec-1",
		Embedding:  testVector(0.9),
		ModelName:  "test-embed",
		Mtime:      time.Now().UnixMilli(),
	}))
	emb, err = vectors.GetEmbedding(context.Background(), "doc-vec-1-chunk-0")
	require.NoError(t, err)
	require.InDelta(t, 0.9, emb[0], 1e-6)

	_, err = vectors.GetEmbedding(context.Background(), "chunk-missing")
	require.ErrorIs(t, err, appErr.ErrNotFound)
}

func TestVectorRepoSearchOrdersByDistance(t *testing.T) {
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()

	docs := repo.NewDocumentRepo(db)
	chunks := repo.NewChunkRepo(db)
	vectors := repo.NewVectorRepo(db)
	seedEmbeddedDocument(t, docs, chunks, vectors, "doc-vec-2", []float32{1.0, 0.2, 0.6})

	results, err := vectors.Search(context.Background(), repo.VectorQuery{
		Embedding: testVector(1.0),
		Limit:     3,
	})
	require.NoError(t, err)
	require.Len(t, results, 3)
	require.Equal(t, "doc-vec-2-chunk-0", results[0].ChunkID)
	require.Equal(t, "doc-vec-2-chunk-2", results[1].ChunkID)
	require.Equal(t, "doc-vec-2-chunk-1", results[2].ChunkID)
	for _, res := range results {
		require.GreaterOrEqual(t, res.Score, 0.0)
		require.LessOrEqual(t, res.Score, 1.0)
		require.Equal(t, res.VectorScore, res.Score)
	}
	require.Greater(t, results[0].Score, results[2].Score)
}

func TestVectorRepoSearchFiltersAndExcludes(t *testing.T) {
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()

	docs := repo.NewDocumentRepo(db)
	chunks := repo.NewChunkRepo(db)
	vectors := repo.NewVectorRepo(db)
	seedEmbeddedDocument(t, docs, chunks, vectors, "doc-vec-3", []float32{1.0, 0.5})

	other := newTestDocument("doc-vec-4")
	other.DocumentType = "policy"
	require.NoError(t, docs.Create(context.Background(), other))
	require.NoError(t, chunks.ReplaceForDocument(context.Background(), "doc-vec-4", makeTestChunks("doc-vec-4", 1)))
	require.NoError(t, vectors.Upsert(context.Background(), &model.ChunkEmbedding{
		ChunkID:    "doc-vec-4-chunk-0",
		DocumentID: "doc-vec-4",
		Embedding:  testVector(0.8),
		ModelName:  "test-embed",
		Mtime:      time.Now().UnixMilli(),
	}))

	results, err := vectors.Search(context.Background(), repo.VectorQuery{
		Embedding: testVector(1.0),
		Limit:     10,
		Filters:   model.SearchFilters{DocumentType: "policy"},
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, "doc-vec-4-chunk-0", results[0].ChunkID)

	results, err = vectors.Search(context.Background(), repo.VectorQuery{
		Embedding:       testVector(1.0),
		Limit:           10,
		ExcludeChunk:    "doc-vec-3-chunk-0",
		ExcludeDocument: "doc-vec-4",
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, "doc-vec-3-chunk-1", results[0].ChunkID)

	require.NoError(t, vectors.DeleteByDocument(context.Background(), "doc-vec-3"))
	results, err = vectors.Search(context.Background(), repo.VectorQuery{Embedding: testVector(1.0), Limit: 10})
	require.NoError(t, err)
	require.Len(t, results, 1)
}
