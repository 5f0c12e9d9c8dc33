package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/esgpipe/esgpipe/internal/pkg/errcode"
	"github.com/esgpipe/esgpipe/internal/pkg/response"
	"github.com/esgpipe/esgpipe/internal/repo"
	"github.com/esgpipe/esgpipe/internal/service"
)

type DocumentHandler struct {
	ingest *service.IngestService
	docs   *repo.DocumentRepo
}

func NewDocumentHandler(ingest *service.IngestService, docs *repo.DocumentRepo) *DocumentHandler {
	return &DocumentHandler{ingest: ingest, docs: docs}
}

type createDocumentRequest struct {
	Filename     string `json:"filename"`
	DocumentType string `json:"document_type"`
	SchemaType   string `json:"schema_type"`
	Text         string `json:"text"`
}

func (h *DocumentHandler) Create(c *gin.Context) {
	var req createDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	doc, err := h.ingest.RegisterDocument(c.Request.Context(), service.RegisterDocumentInput{
		Filename:     req.Filename,
		DocumentType: req.DocumentType,
		SchemaType:   req.SchemaType,
		Text:         req.Text,
	})
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, doc)
}

func (h *DocumentHandler) Get(c *gin.Context) {
	doc, err := h.ingest.GetDocument(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, doc)
}

func (h *DocumentHandler) List(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	docs, err := h.docs.List(c.Request.Context(), c.Query("status"), limit)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"documents": docs})
}

func (h *DocumentHandler) Chunks(c *gin.Context) {
	chunks, err := h.ingest.ListChunks(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"chunks": chunks})
}
