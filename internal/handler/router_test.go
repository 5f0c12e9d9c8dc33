package handler

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/esgpipe/esgpipe/internal/config"
	"github.com/esgpipe/esgpipe/internal/model"
	"github.com/esgpipe/esgpipe/internal/repo"
	"github.com/esgpipe/esgpipe/internal/service"
)

type routerStubIndex struct{}

func (routerStubIndex) Search(ctx context.Context, q repo.VectorQuery) ([]model.SearchResult, error) {
	return []model.SearchResult{{ChunkID: "c1", Score: 0.9, VectorScore: 0.9}}, nil
}

func (routerStubIndex) GetEmbedding(ctx context.Context, chunkID string) ([]float32, error) {
	return []float32{1, 0}, nil
}

type routerStubEmbedder struct{}

func (routerStubEmbedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	return []float32{1, 0}, nil
}

func (routerStubEmbedder) EmbedderAvailable() bool { return true }

func TestRegisterRoutesThrottlesAIRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	engine := gin.New()

	search := service.NewSearchService(routerStubIndex{}, routerStubEmbedder{}, nil, nil, config.SearchConfig{
		DefaultTopK: 5,
		OverFetch:   3,
	})
	RegisterRoutes(engine.Group("/api/v1"), RouterDeps{
		Search:       NewSearchHandler(search),
		AIRateWindow: 10 * time.Second,
	})

	post := func() *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest("POST", "/api/v1/search", strings.NewReader(`{"query":"scope 1 emissions"}`))
		req.Header.Set("Content-Type", "application/json")
		engine.ServeHTTP(rec, req)
		return rec
	}

	first := post()
	require.NotContains(t, first.Body.String(), "Too Many Requests")

	second := post()
	require.Contains(t, second.Body.String(), "Too Many Requests")
}

func TestRegisterRoutesNoThrottleWhenDisabled(t *testing.T) {
	gin.SetMode(gin.TestMode)
	engine := gin.New()

	search := service.NewSearchService(routerStubIndex{}, routerStubEmbedder{}, nil, nil, config.SearchConfig{
		DefaultTopK: 5,
		OverFetch:   3,
	})
	RegisterRoutes(engine.Group("/api/v1"), RouterDeps{
		Search: NewSearchHandler(search),
	})

	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest("POST", "/api/v1/search", strings.NewReader(`{"query":"scope 1 emissions"}`))
		req.Header.Set("Content-Type", "application/json")
		engine.ServeHTTP(rec, req)
		require.NotContains(t, rec.Body.String(), "Too Many Requests")
	}
}
