package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/esgpipe/esgpipe/internal/model"
	"github.com/esgpipe/esgpipe/internal/pkg/errcode"
	"github.com/esgpipe/esgpipe/internal/pkg/response"
	"github.com/esgpipe/esgpipe/internal/service"
)

type SearchHandler struct {
	search *service.SearchService
}

func NewSearchHandler(search *service.SearchService) *SearchHandler {
	return &SearchHandler{search: search}
}

type searchRequest struct {
	Query           string              `json:"query"`
	TopK            int                 `json:"top_k"`
	Filters         model.SearchFilters `json:"filters"`
	MinScore        float64             `json:"min_score"`
	EnableReranking *bool               `json:"enable_reranking"`
}

type similarRequest struct {
	ChunkID             string `json:"chunk_id"`
	TopK                int    `json:"top_k"`
	ExcludeSameDocument bool   `json:"exclude_same_document"`
}

func (h *SearchHandler) Search(c *gin.Context) {
	var req searchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	rerank := true
	if req.EnableReranking != nil {
		rerank = *req.EnableReranking
	}
	results, err := h.search.Search(c.Request.Context(), service.SearchOptions{
		Query:           req.Query,
		TopK:            req.TopK,
		Filters:         req.Filters,
		MinScore:        req.MinScore,
		EnableReranking: rerank,
	})
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"results": results})
}

func (h *SearchHandler) Similar(c *gin.Context) {
	var req similarRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	results, err := h.search.FindSimilar(c.Request.Context(), req.ChunkID, req.TopK, req.ExcludeSameDocument)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"results": results})
}
