package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/esgpipe/esgpipe/internal/model"
	"github.com/esgpipe/esgpipe/internal/pkg/errcode"
	"github.com/esgpipe/esgpipe/internal/pkg/response"
	"github.com/esgpipe/esgpipe/internal/service"
)

type RAGHandler struct {
	rag *service.RAGService
}

func NewRAGHandler(rag *service.RAGService) *RAGHandler {
	return &RAGHandler{rag: rag}
}

type ragAnswerRequest struct {
	Question    string              `json:"question"`
	Model       string              `json:"model"`
	TopK        int                 `json:"top_k"`
	Filters     model.SearchFilters `json:"filters"`
	MinScore    float64             `json:"min_score"`
	MaxTokens   int                 `json:"max_tokens"`
	Temperature float64             `json:"temperature"`
}

type ragBatchRequest struct {
	Questions     []string            `json:"questions"`
	MaxConcurrent int                 `json:"max_concurrent"`
	Model         string              `json:"model"`
	TopK          int                 `json:"top_k"`
	Filters       model.SearchFilters `json:"filters"`
	MinScore      float64             `json:"min_score"`
	MaxTokens     int                 `json:"max_tokens"`
	Temperature   float64             `json:"temperature"`
}

func (h *RAGHandler) Answer(c *gin.Context) {
	var req ragAnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	resp, err := h.rag.Answer(c.Request.Context(), service.RAGOptions{
		Question:    req.Question,
		Model:       req.Model,
		TopK:        req.TopK,
		Filters:     req.Filters,
		MinScore:    req.MinScore,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	})
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, resp)
}

func (h *RAGHandler) AnswerBatch(c *gin.Context) {
	var req ragBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	items, err := h.rag.AnswerBatch(c.Request.Context(), req.Questions, req.MaxConcurrent, service.RAGOptions{
		Model:       req.Model,
		TopK:        req.TopK,
		Filters:     req.Filters,
		MinScore:    req.MinScore,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	})
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"items": items})
}
