package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/esgpipe/esgpipe/internal/cache"
	"github.com/esgpipe/esgpipe/internal/config"
	"github.com/esgpipe/esgpipe/internal/model"
	appErr "github.com/esgpipe/esgpipe/internal/pkg/errors"
	"github.com/esgpipe/esgpipe/internal/repo"
)

// VectorIndex is the slice of the vector repo that search needs.
type VectorIndex interface {
	Search(ctx context.Context, q repo.VectorQuery) ([]model.SearchResult, error)
	GetEmbedding(ctx context.Context, chunkID string) ([]float32, error)
}

// QueryEmbedder turns query text into a vector, usually backed by the
// provider manager.
type QueryEmbedder interface {
	Embed(ctx context.Context, text string, taskType string) ([]float32, error)
	EmbedderAvailable() bool
}

// ChunkGetter resolves single chunks for similarity lookups.
type ChunkGetter interface {
	GetByID(ctx context.Context, chunkID string) (*model.Chunk, error)
}

type SearchOptions struct {
	Query           string              `json:"query"`
	TopK            int                 `json:"top_k"`
	Filters         model.SearchFilters `json:"filters"`
	MinScore        float64             `json:"min_score"`
	EnableReranking bool                `json:"enable_reranking"`
}

const (
	maxTopK = 100
)

// SearchService answers semantic queries against the chunk index. Retrieval
// is best effort: when the embedder or index is down it degrades to an empty
// result set instead of failing the request.
type SearchService struct {
	index    VectorIndex
	embedder QueryEmbedder
	chunks   ChunkGetter
	kv       *cache.Cache
	cfg      config.SearchConfig
}

func NewSearchService(index VectorIndex, embedder QueryEmbedder, chunks ChunkGetter, kv *cache.Cache, cfg config.SearchConfig) *SearchService {
	return &SearchService{
		index:    index,
		embedder: embedder,
		chunks:   chunks,
		kv:       kv,
		cfg:      cfg,
	}
}

func (s *SearchService) normalizeOptions(opts SearchOptions) (SearchOptions, error) {
	if opts.Query == "" {
		return opts, appErr.ErrInvalid
	}
	if opts.TopK <= 0 {
		opts.TopK = s.cfg.DefaultTopK
	}
	if opts.TopK > maxTopK {
		opts.TopK = maxTopK
	}
	if opts.MinScore < 0 {
		opts.MinScore = 0
	}
	if opts.MinScore > 1 {
		opts.MinScore = 1
	}
	return opts, nil
}

func (s *SearchService) cacheKey(opts SearchOptions) string {
	return cache.Key("search",
		opts.Query,
		fmt.Sprintf("%d", opts.TopK),
		fmt.Sprintf("%.4f", opts.MinScore),
		fmt.Sprintf("%t", opts.EnableReranking),
		opts.Filters.DocumentType,
		opts.Filters.SchemaType,
		opts.Filters.Status,
		opts.Filters.FilenameContains,
	)
}

// Search runs vector retrieval plus optional deterministic reranking. Same
// corpus, same query, same results, so the response is cacheable.
func (s *SearchService) Search(ctx context.Context, opts SearchOptions) ([]model.SearchResult, error) {
	opts, err := s.normalizeOptions(opts)
	if err != nil {
		return nil, err
	}
	key := s.cacheKey(opts)
	if payload, ok := s.kv.Get(key); ok {
		var cached []model.SearchResult
		if err := json.Unmarshal(payload, &cached); err == nil {
			return cached, nil
		}
	}

	logger := logutil.GetLogger(ctx)
	if !s.embedder.EmbedderAvailable() {
		logger.Warn("search degraded, no embedder available", zap.String("query", opts.Query))
		return []model.SearchResult{}, nil
	}
	embedding, err := s.embedder.Embed(ctx, opts.Query, "RETRIEVAL_QUERY")
	if err != nil {
		logger.Warn("search degraded, query embedding failed", zap.Error(err))
		return []model.SearchResult{}, nil
	}

	limit := opts.TopK
	if opts.EnableReranking {
		overFetch := s.cfg.OverFetch
		if overFetch < 1 {
			overFetch = 1
		}
		limit = opts.TopK * overFetch
		if limit > maxTopK*overFetch {
			limit = maxTopK * overFetch
		}
	}
	results, err := s.index.Search(ctx, repo.VectorQuery{
		Embedding: embedding,
		Limit:     limit,
		Filters:   opts.Filters,
	})
	if err != nil {
		logger.Warn("search degraded, vector index query failed", zap.Error(err))
		return []model.SearchResult{}, nil
	}

	if opts.EnableReranking {
		results = rerankResults(opts.Query, results, s.cfg.LengthPenalty)
	}
	filtered := make([]model.SearchResult, 0, len(results))
	for _, res := range results {
		if res.Score >= opts.MinScore {
			filtered = append(filtered, res)
		}
		if len(filtered) == opts.TopK {
			break
		}
	}

	if payload, err := json.Marshal(filtered); err == nil {
		s.kv.Set(key, payload, cache.TTLSearch)
	}
	return filtered, nil
}

// FindSimilar returns neighbors of an existing chunk using its stored
// embedding. Unlike Search, a missing chunk is a hard error.
func (s *SearchService) FindSimilar(ctx context.Context, chunkID string, topK int, excludeSameDocument bool) ([]model.SearchResult, error) {
	if chunkID == "" {
		return nil, appErr.ErrInvalid
	}
	if topK <= 0 {
		topK = s.cfg.DefaultTopK
	}
	if topK > maxTopK {
		topK = maxTopK
	}
	chunk, err := s.chunks.GetByID(ctx, chunkID)
	if err != nil {
		return nil, err
	}
	embedding, err := s.index.GetEmbedding(ctx, chunkID)
	if err != nil {
		return nil, err
	}
	q := repo.VectorQuery{
		Embedding:    embedding,
		Limit:        topK,
		ExcludeChunk: chunkID,
	}
	if excludeSameDocument {
		q.ExcludeDocument = chunk.DocumentID
	}
	results, err := s.index.Search(ctx, q)
	if err != nil {
		logutil.GetLogger(ctx).Warn("similar lookup degraded, vector index query failed", zap.Error(err))
		return []model.SearchResult{}, nil
	}
	return results, nil
}
