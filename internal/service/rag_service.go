package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/esgpipe/esgpipe/internal/ai"
	"github.com/esgpipe/esgpipe/internal/cache"
	"github.com/esgpipe/esgpipe/internal/model"
	appErr "github.com/esgpipe/esgpipe/internal/pkg/errors"
)

// ContextRetriever supplies the grounding chunks for a question. SearchService
// satisfies it.
type ContextRetriever interface {
	Search(ctx context.Context, opts SearchOptions) ([]model.SearchResult, error)
}

// Generator is the slice of the provider manager that answering needs.
type Generator interface {
	Generate(ctx context.Context, preferred string, prompt string, opts ai.GenerateOptions) (string, string, error)
}

type RAGOptions struct {
	Question    string              `json:"question"`
	Model       string              `json:"model"`
	TopK        int                 `json:"top_k"`
	Filters     model.SearchFilters `json:"filters"`
	MinScore    float64             `json:"min_score"`
	MaxTokens   int                 `json:"max_tokens"`
	Temperature float64             `json:"temperature"`
}

type BatchAnswerItem struct {
	Question string             `json:"question"`
	Response *model.RAGResponse `json:"response,omitempty"`
	Error    string             `json:"error,omitempty"`
}

const (
	ragDefaultTopK          = 5
	defaultBatchConcurrency = 4
)

// RAGService answers questions grounded in retrieved chunks. Retrieval
// failures degrade to an unsourced answer; generation failure across all
// providers is a hard error.
type RAGService struct {
	retriever ContextRetriever
	generator Generator
	kv        *cache.Cache
}

func NewRAGService(retriever ContextRetriever, generator Generator, kv *cache.Cache) *RAGService {
	return &RAGService{retriever: retriever, generator: generator, kv: kv}
}

// contextFingerprint keys cached answers on the retrieved context itself, so
// re-ingesting a document invalidates answers built on its old chunks.
func contextFingerprint(results []model.SearchResult) string {
	h := sha256.New()
	for _, res := range results {
		h.Write([]byte(res.ChunkID))
		h.Write([]byte{0x1f})
		h.Write([]byte(res.Content))
		h.Write([]byte{0x1e})
	}
	return hex.EncodeToString(h.Sum(nil))
}

func buildPrompt(question string, results []model.SearchResult) string {
	var b strings.Builder
	b.WriteString("You are an assistant answering questions about regulatory and sustainability documents.\n")
	if len(results) == 0 {
		b.WriteString("No source passages were found. Say so, then answer from general knowledge if you can.\n\n")
	} else {
		b.WriteString("Answer using only the numbered source passages below. Cite passages as [Source N]. If the sources do not contain the answer, say so.\n\n")
		for i, res := range results {
			fmt.Fprintf(&b, "[Source %d] (%s)\n%s\n\n", i+1, res.Filename, res.Content)
		}
	}
	b.WriteString("Question: ")
	b.WriteString(question)
	b.WriteString("\nAnswer:")
	return b.String()
}

func (s *RAGService) Answer(ctx context.Context, opts RAGOptions) (*model.RAGResponse, error) {
	question := strings.TrimSpace(opts.Question)
	if question == "" {
		return nil, appErr.ErrInvalid
	}
	if opts.TopK <= 0 {
		opts.TopK = ragDefaultTopK
	}

	logger := logutil.GetLogger(ctx)
	results, err := s.retriever.Search(ctx, SearchOptions{
		Query:           question,
		TopK:            opts.TopK,
		Filters:         opts.Filters,
		MinScore:        opts.MinScore,
		EnableReranking: true,
	})
	if err != nil {
		// Retrieval is advisory for answering; a broken index should not
		// block the question.
		logger.Warn("rag retrieval failed, answering without sources", zap.Error(err))
		results = nil
	}

	key := cache.Key("rag", strings.ToLower(question), opts.Model, contextFingerprint(results))
	if payload, ok := s.kv.Get(key); ok {
		var cached model.RAGResponse
		if err := json.Unmarshal(payload, &cached); err == nil {
			return &cached, nil
		}
	}

	prompt := buildPrompt(question, results)
	text, used, err := s.generator.Generate(ctx, opts.Model, prompt, ai.GenerateOptions{
		MaxTokens:   opts.MaxTokens,
		Temperature: opts.Temperature,
	})
	if err != nil {
		if errors.Is(err, ai.ErrUnavailable) {
			return nil, appErr.ErrNoProvider
		}
		return nil, err
	}

	sourceIDs := make([]string, 0, len(results))
	for _, res := range results {
		sourceIDs = append(sourceIDs, res.ChunkID)
	}
	resp := &model.RAGResponse{
		ID:              newID(),
		Query:           question,
		ResponseText:    text,
		ConfidenceScore: confidenceScore(text, len(results)),
		ModelUsed:       used,
		SourceChunkIDs:  sourceIDs,
		GeneratedAt:     time.Now().UnixMilli(),
	}
	if payload, err := json.Marshal(resp); err == nil {
		s.kv.Set(key, payload, cache.TTLRAG)
	}
	return resp, nil
}

// AnswerBatch answers questions concurrently, at most maxConcurrent at a
// time. Failures are reported per question.
func (s *RAGService) AnswerBatch(ctx context.Context, questions []string, maxConcurrent int, opts RAGOptions) ([]BatchAnswerItem, error) {
	if len(questions) == 0 {
		return nil, appErr.ErrInvalid
	}
	if maxConcurrent <= 0 {
		maxConcurrent = defaultBatchConcurrency
	}
	items := make([]BatchAnswerItem, len(questions))
	sem := make(chan struct{}, maxConcurrent)
	var wg sync.WaitGroup
	for i, question := range questions {
		wg.Add(1)
		go func(i int, question string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			item := BatchAnswerItem{Question: question}
			qopts := opts
			qopts.Question = question
			resp, err := s.Answer(ctx, qopts)
			if err != nil {
				item.Error = err.Error()
			} else {
				item.Response = resp
			}
			items[i] = item
		}(i, question)
	}
	wg.Wait()
	return items, nil
}
