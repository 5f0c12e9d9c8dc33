package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/esgpipe/esgpipe/internal/middleware"
)

type RouterDeps struct {
	Documents *DocumentHandler
	Ingest    *IngestHandler
	Search    *SearchHandler
	RAG       *RAGHandler
	Health    *HealthHandler

	// AIRateWindow throttles the search and rag routes, which fan out to
	// embedding and generation providers. Zero disables throttling.
	AIRateWindow time.Duration
}

func RegisterRoutes(api *gin.RouterGroup, deps RouterDeps) {
	api.GET("/health", deps.Health.Health)

	api.POST("/documents", deps.Documents.Create)
	api.GET("/documents", deps.Documents.List)
	api.GET("/documents/:id", deps.Documents.Get)
	api.GET("/documents/:id/chunks", deps.Documents.Chunks)

	api.POST("/ingest/start", deps.Ingest.Start)
	api.POST("/ingest/batch", deps.Ingest.StartBatch)
	api.GET("/ingest/status/:task_id", deps.Ingest.Status)
	api.POST("/ingest/cancel/:task_id", deps.Ingest.Cancel)

	aiLimit := middleware.RateLimit(deps.AIRateWindow)
	api.POST("/search", aiLimit, deps.Search.Search)
	api.POST("/search/similar", aiLimit, deps.Search.Similar)

	api.POST("/rag/answer", aiLimit, deps.RAG.Answer)
	api.POST("/rag/batch", aiLimit, deps.RAG.AnswerBatch)
}
