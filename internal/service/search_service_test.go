package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/esgpipe/esgpipe/internal/cache"
	"github.com/esgpipe/esgpipe/internal/config"
	"github.com/esgpipe/esgpipe/internal/model"
	appErr "github.com/esgpipe/esgpipe/internal/pkg/errors"
	"github.com/esgpipe/esgpipe/internal/repo"
)

type stubIndex struct {
	results    []model.SearchResult
	embeddings map[string][]float32
	searchErr  error
	calls      int
	lastQuery  repo.VectorQuery
}

func (s *stubIndex) Search(ctx context.Context, q repo.VectorQuery) ([]model.SearchResult, error) {
	s.calls++
	s.lastQuery = q
	if s.searchErr != nil {
		return nil, s.searchErr
	}
	limit := q.Limit
	if limit > len(s.results) {
		limit = len(s.results)
	}
	out := make([]model.SearchResult, limit)
	copy(out, s.results[:limit])
	return out, nil
}

func (s *stubIndex) GetEmbedding(ctx context.Context, chunkID string) ([]float32, error) {
	emb, ok := s.embeddings[chunkID]
	if !ok {
		return nil, appErr.ErrNotFound
	}
	return emb, nil
}

type stubEmbedder struct {
	err   error
	down  bool
	calls int
}

func (s *stubEmbedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return []float32{0.1, 0.2, 0.3}, nil
}

func (s *stubEmbedder) EmbedderAvailable() bool { return !s.down }

type stubChunks struct {
	chunks map[string]*model.Chunk
}

func (s *stubChunks) GetByID(ctx context.Context, chunkID string) (*model.Chunk, error) {
	chunk, ok := s.chunks[chunkID]
	if !ok {
		return nil, appErr.ErrNotFound
	}
	return chunk, nil
}

func searchConfigForTest() config.SearchConfig {
	return config.SearchConfig{DefaultTopK: 10, OverFetch: 3, LengthPenalty: 0.03}
}

func newSearchFixture(results []model.SearchResult) (*SearchService, *stubIndex, *stubEmbedder) {
	index := &stubIndex{results: results, embeddings: map[string][]float32{}}
	embedder := &stubEmbedder{}
	svc := NewSearchService(index, embedder, &stubChunks{}, cache.New(64), searchConfigForTest())
	return svc, index, embedder
}

func makeResults(n int, base float64) []model.SearchResult {
	out := make([]model.SearchResult, 0, n)
	for i := 0; i < n; i++ {
		score := base - float64(i)*0.1
		out = append(out, model.SearchResult{
			ChunkID:     fmt.Sprintf("chunk-%d", i),
			DocumentID:  "doc-1",
			ChunkIndex:  i,
			Content:     fmt.Sprintf("passage number %d", i),
			Score:       score,
			VectorScore: score,
		})
	}
	return out
}

func TestSearchRejectsEmptyQuery(t *testing.T) {
	svc, _, _ := newSearchFixture(nil)
	if _, err := svc.Search(context.Background(), SearchOptions{Query: ""}); !errors.Is(err, appErr.ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}
}

func TestSearchMinScoreFilters(t *testing.T) {
	svc, _, _ := newSearchFixture(makeResults(5, 0.9))
	results, err := svc.Search(context.Background(), SearchOptions{Query: "passage", TopK: 5, MinScore: 0.75})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 of 5 results above 0.75, got %d", len(results))
	}
	for _, res := range results {
		if res.Score < 0.75 {
			t.Fatalf("result below min score leaked through: %f", res.Score)
		}
	}
}

func TestSearchDegradesWhenEmbedderDown(t *testing.T) {
	svc, index, embedder := newSearchFixture(makeResults(3, 0.9))
	embedder.down = true
	results, err := svc.Search(context.Background(), SearchOptions{Query: "passage"})
	if err != nil {
		t.Fatalf("degraded search must not error: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("expected empty results, got %d", len(results))
	}
	if index.calls != 0 {
		t.Fatal("index must not be queried without an embedding")
	}
}

func TestSearchDegradesOnEmbedError(t *testing.T) {
	svc, _, embedder := newSearchFixture(makeResults(3, 0.9))
	embedder.err = errors.New("provider timeout")
	results, err := svc.Search(context.Background(), SearchOptions{Query: "passage"})
	if err != nil || len(results) != 0 {
		t.Fatalf("expected empty degraded result, got %d results err=%v", len(results), err)
	}
}

func TestSearchDegradesOnIndexError(t *testing.T) {
	svc, index, _ := newSearchFixture(nil)
	index.searchErr = errors.New("connection refused")
	results, err := svc.Search(context.Background(), SearchOptions{Query: "passage"})
	if err != nil || len(results) != 0 {
		t.Fatalf("expected empty degraded result, got %d results err=%v", len(results), err)
	}
}

func TestSearchOverFetchesForReranking(t *testing.T) {
	svc, index, _ := newSearchFixture(makeResults(30, 0.95))
	results, err := svc.Search(context.Background(), SearchOptions{Query: "passage", TopK: 4, EnableReranking: true})
	if err != nil {
		t.Fatal(err)
	}
	if index.lastQuery.Limit != 12 {
		t.Fatalf("expected over-fetch limit 12, got %d", index.lastQuery.Limit)
	}
	if len(results) != 4 {
		t.Fatalf("expected top_k results after rerank, got %d", len(results))
	}
}

func TestSearchCacheServesRepeatQuery(t *testing.T) {
	svc, index, embedder := newSearchFixture(makeResults(3, 0.9))
	opts := SearchOptions{Query: "passage number", TopK: 3}
	first, err := svc.Search(context.Background(), opts)
	if err != nil {
		t.Fatal(err)
	}
	second, err := svc.Search(context.Background(), opts)
	if err != nil {
		t.Fatal(err)
	}
	if index.calls != 1 || embedder.calls != 1 {
		t.Fatalf("repeat query should hit the cache, index=%d embed=%d calls", index.calls, embedder.calls)
	}
	if len(first) != len(second) {
		t.Fatal("cached response differs from original")
	}
	for i := range first {
		if first[i].ChunkID != second[i].ChunkID || first[i].Score != second[i].Score {
			t.Fatalf("cached result %d differs", i)
		}
	}
}

func TestSearchCacheKeyedByOptions(t *testing.T) {
	svc, index, _ := newSearchFixture(makeResults(3, 0.9))
	if _, err := svc.Search(context.Background(), SearchOptions{Query: "passage", TopK: 2}); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Search(context.Background(), SearchOptions{Query: "passage", TopK: 3}); err != nil {
		t.Fatal(err)
	}
	if index.calls != 2 {
		t.Fatalf("different options must not share a cache entry, got %d index calls", index.calls)
	}
}

func TestSearchCacheTransparency(t *testing.T) {
	results := makeResults(5, 0.9)
	opts := SearchOptions{Query: "passage number", TopK: 5, MinScore: 0.6, EnableReranking: true}

	cached := NewSearchService(&stubIndex{results: results}, &stubEmbedder{}, &stubChunks{}, cache.New(64), searchConfigForTest())
	uncached := NewSearchService(&stubIndex{results: results}, &stubEmbedder{}, &stubChunks{}, nil, searchConfigForTest())

	want, err := uncached.Search(context.Background(), opts)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 2; i++ {
		got, err := cached.Search(context.Background(), opts)
		if err != nil {
			t.Fatal(err)
		}
		if len(got) != len(want) {
			t.Fatalf("cache changed result count: %d vs %d", len(got), len(want))
		}
		for j := range got {
			if got[j].ChunkID != want[j].ChunkID || got[j].Score != want[j].Score {
				t.Fatalf("cache changed result %d", j)
			}
		}
	}
}

func TestFindSimilarUnknownChunk(t *testing.T) {
	svc, _, _ := newSearchFixture(nil)
	if _, err := svc.FindSimilar(context.Background(), "missing", 5, false); !errors.Is(err, appErr.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestFindSimilarExcludesSelfAndDocument(t *testing.T) {
	index := &stubIndex{
		results:    makeResults(3, 0.9),
		embeddings: map[string][]float32{"chunk-0": {0.5, 0.5}},
	}
	chunks := &stubChunks{chunks: map[string]*model.Chunk{
		"chunk-0": {ID: "chunk-0", DocumentID: "doc-1"},
	}}
	svc := NewSearchService(index, &stubEmbedder{}, chunks, cache.New(16), searchConfigForTest())
	if _, err := svc.FindSimilar(context.Background(), "chunk-0", 5, true); err != nil {
		t.Fatal(err)
	}
	if index.lastQuery.ExcludeChunk != "chunk-0" {
		t.Fatal("similar lookup must exclude the anchor chunk")
	}
	if index.lastQuery.ExcludeDocument != "doc-1" {
		t.Fatal("similar lookup must honor exclude_same_document")
	}
}
