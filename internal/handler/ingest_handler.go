package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/esgpipe/esgpipe/internal/pkg/errcode"
	"github.com/esgpipe/esgpipe/internal/pkg/response"
	"github.com/esgpipe/esgpipe/internal/service"
)

type IngestHandler struct {
	ingest *service.IngestService
}

func NewIngestHandler(ingest *service.IngestService) *IngestHandler {
	return &IngestHandler{ingest: ingest}
}

// Embedding and classification default to on; absent fields must not turn
// them off.
type ingestOptionsRequest struct {
	ChunkSize          int   `json:"chunk_size"`
	ChunkOverlap       int   `json:"chunk_overlap"`
	GenerateEmbeddings *bool `json:"generate_embeddings"`
	ClassifySchema     *bool `json:"classify_schema"`
}

func (r ingestOptionsRequest) toOptions() service.IngestOptions {
	opts := service.IngestOptions{
		ChunkSize:          r.ChunkSize,
		ChunkOverlap:       r.ChunkOverlap,
		GenerateEmbeddings: true,
		ClassifySchema:     true,
	}
	if r.GenerateEmbeddings != nil {
		opts.GenerateEmbeddings = *r.GenerateEmbeddings
	}
	if r.ClassifySchema != nil {
		opts.ClassifySchema = *r.ClassifySchema
	}
	return opts
}

type startIngestRequest struct {
	DocumentID string               `json:"document_id"`
	Options    ingestOptionsRequest `json:"options"`
}

type startBatchRequest struct {
	DocumentIDs []string             `json:"document_ids"`
	Options     ingestOptionsRequest `json:"options"`
}

func (h *IngestHandler) Start(c *gin.Context) {
	var req startIngestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	if req.DocumentID == "" {
		response.Error(c, errcode.ErrInvalid, "document_id is required")
		return
	}
	task, err := h.ingest.Start(c.Request.Context(), req.DocumentID, req.Options.toOptions())
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, task)
}

func (h *IngestHandler) StartBatch(c *gin.Context) {
	var req startBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	items, err := h.ingest.StartBatch(c.Request.Context(), req.DocumentIDs, req.Options.toOptions())
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"items": items})
}

func (h *IngestHandler) Status(c *gin.Context) {
	task, err := h.ingest.Status(c.Param("task_id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, task)
}

func (h *IngestHandler) Cancel(c *gin.Context) {
	if err := h.ingest.Cancel(c.Param("task_id")); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"cancelled": true})
}
