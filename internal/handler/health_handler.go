package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/esgpipe/esgpipe/internal/ai"
	"github.com/esgpipe/esgpipe/internal/cache"
	"github.com/esgpipe/esgpipe/internal/pkg/response"
	"github.com/esgpipe/esgpipe/internal/repo"
)

type HealthHandler struct {
	vectors *repo.VectorRepo
	manager *ai.Manager
	kv      *cache.Cache
}

func NewHealthHandler(vectors *repo.VectorRepo, manager *ai.Manager, kv *cache.Cache) *HealthHandler {
	return &HealthHandler{vectors: vectors, manager: manager, kv: kv}
}

func (h *HealthHandler) Health(c *gin.Context) {
	dbOK := h.vectors.Ping(c.Request.Context()) == nil
	status := "ok"
	if !dbOK {
		status = "degraded"
	}
	response.Success(c, gin.H{
		"status":             status,
		"database":           dbOK,
		"embedder_available": h.manager.EmbedderAvailable(),
		"embedding_model":    h.manager.EmbeddingModelName(),
		"providers":          h.manager.ProviderHealth(),
		"cache":              h.kv.Stats(),
	})
}
