package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/esgpipe/esgpipe/internal/ai"
	"github.com/esgpipe/esgpipe/internal/cache"
	"github.com/esgpipe/esgpipe/internal/config"
	"github.com/esgpipe/esgpipe/internal/filestore"
	"github.com/esgpipe/esgpipe/internal/model"
	appErr "github.com/esgpipe/esgpipe/internal/pkg/errors"
	"github.com/esgpipe/esgpipe/internal/repo"
	"github.com/esgpipe/esgpipe/internal/taskqueue"
)

type IngestOptions struct {
	ChunkSize          int  `json:"chunk_size"`
	ChunkOverlap       int  `json:"chunk_overlap"`
	GenerateEmbeddings bool `json:"generate_embeddings"`
	ClassifySchema     bool `json:"classify_schema"`
}

type RegisterDocumentInput struct {
	Filename     string `json:"filename"`
	DocumentType string `json:"document_type"`
	SchemaType   string `json:"schema_type"`
	Text         string `json:"text"`
}

type BatchStartItem struct {
	DocumentID string `json:"document_id"`
	TaskID     string `json:"task_id,omitempty"`
	Error      string `json:"error,omitempty"`
}

// IngestService drives a document through extraction, chunking, embedding and
// classification as a background job on the shared worker pool. Request
// callers only enqueue and poll.
type IngestService struct {
	docs    *repo.DocumentRepo
	chunks  *repo.ChunkRepo
	vectors *repo.VectorRepo
	store   filestore.Store
	manager *ai.Manager
	pool    *taskqueue.Pool
	tracker *TaskTracker
	kv      *cache.Cache
	cfg     config.IngestConfig
}

func NewIngestService(
	docs *repo.DocumentRepo,
	chunks *repo.ChunkRepo,
	vectors *repo.VectorRepo,
	store filestore.Store,
	manager *ai.Manager,
	pool *taskqueue.Pool,
	kv *cache.Cache,
	cfg config.IngestConfig,
) *IngestService {
	return &IngestService{
		docs:    docs,
		chunks:  chunks,
		vectors: vectors,
		store:   store,
		manager: manager,
		pool:    pool,
		tracker: NewTaskTracker(),
		kv:      kv,
		cfg:     cfg,
	}
}

// RegisterDocument stores the raw text and creates a pending document row.
// The upload layer calls this before Start.
func (s *IngestService) RegisterDocument(ctx context.Context, input RegisterDocumentInput) (*model.Document, error) {
	if strings.TrimSpace(input.Text) == "" || strings.TrimSpace(input.Filename) == "" {
		return nil, appErr.ErrInvalid
	}
	now := time.Now().UnixMilli()
	doc := &model.Document{
		ID:            newID(),
		Filename:      input.Filename,
		DocumentType:  input.DocumentType,
		SchemaType:    input.SchemaType,
		Status:        model.DocumentStatusPending,
		SourceTextRef: "",
		Ctime:         now,
		Mtime:         now,
	}
	doc.SourceTextRef = doc.ID + ".txt"
	if err := filestore.SaveBytes(ctx, s.store, doc.SourceTextRef, []byte(input.Text)); err != nil {
		return nil, fmt.Errorf("save raw text: %w", err)
	}
	if err := s.docs.Create(ctx, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func (s *IngestService) GetDocument(ctx context.Context, id string) (*model.Document, error) {
	return s.docs.Get(ctx, id)
}

func (s *IngestService) normalizeOptions(opts IngestOptions) (IngestOptions, error) {
	if opts.ChunkSize == 0 {
		opts.ChunkSize = s.cfg.ChunkSize
	}
	if opts.ChunkOverlap == 0 {
		opts.ChunkOverlap = s.cfg.ChunkOverlap
	}
	if opts.ChunkSize < 0 || opts.ChunkOverlap < 0 || opts.ChunkOverlap >= opts.ChunkSize {
		return opts, appErr.ErrInvalid
	}
	return opts, nil
}

// Start enqueues an ingestion run and returns its task handle immediately.
// A second Start while the document is in flight fails with
// ErrAlreadyProcessing, never queuing a duplicate.
func (s *IngestService) Start(ctx context.Context, documentID string, opts IngestOptions) (*model.ProcessingTask, error) {
	opts, err := s.normalizeOptions(opts)
	if err != nil {
		return nil, err
	}
	doc, err := s.docs.Get(ctx, documentID)
	if err != nil {
		return nil, err
	}
	task, err := s.tracker.Begin(documentID)
	if err != nil {
		return nil, err
	}
	if err := s.docs.Claim(ctx, documentID); err != nil {
		s.tracker.Fail(task.ID, err.Error())
		return nil, err
	}
	taskID := task.ID
	docCopy := *doc
	if err := s.pool.Submit(func(runCtx context.Context) {
		s.run(runCtx, taskID, &docCopy, opts)
	}); err != nil {
		s.tracker.Fail(taskID, err.Error())
		if uerr := s.docs.UpdateStatus(ctx, documentID, model.DocumentStatusPending, "queue full"); uerr != nil {
			logutil.GetLogger(ctx).Error("failed to release claimed document",
				zap.String("document_id", documentID), zap.Error(uerr))
		}
		return nil, err
	}
	return &task, nil
}

// StartBatch processes documents independently; one failure never aborts the
// rest.
func (s *IngestService) StartBatch(ctx context.Context, documentIDs []string, opts IngestOptions) ([]BatchStartItem, error) {
	if len(documentIDs) == 0 {
		return nil, appErr.ErrInvalid
	}
	items := make([]BatchStartItem, 0, len(documentIDs))
	for _, id := range documentIDs {
		item := BatchStartItem{DocumentID: id}
		task, err := s.Start(ctx, id, opts)
		if err != nil {
			item.Error = err.Error()
		} else {
			item.TaskID = task.ID
		}
		items = append(items, item)
	}
	return items, nil
}

// Status is non-blocking and safe to poll.
func (s *IngestService) Status(taskID string) (model.ProcessingTask, error) {
	task, ok := s.tracker.Get(taskID)
	if !ok {
		return model.ProcessingTask{}, appErr.ErrNotFound
	}
	return task, nil
}

// Cancel is cooperative: the flag is observed between stages, so the current
// stage's in-flight calls finish first.
func (s *IngestService) Cancel(taskID string) error {
	return s.tracker.RequestCancel(taskID)
}

// ReclaimStuck resets documents stuck in a non-terminal stage past the
// threshold back to pending; they restart from scratch on the next Start.
func (s *IngestService) ReclaimStuck(ctx context.Context, olderThan time.Duration) (int64, error) {
	reclaimed, err := s.docs.ReclaimStuck(ctx, olderThan)
	if err != nil {
		return 0, err
	}
	if reclaimed > 0 {
		logutil.GetLogger(ctx).Warn("reclaimed stuck documents", zap.Int64("count", reclaimed))
	}
	s.tracker.Sweep(24 * time.Hour)
	return reclaimed, nil
}

// ProcessPendingEmbeddings re-embeds chunks of completed documents that lack
// a stored vector, e.g. after a degraded ingestion run.
func (s *IngestService) ProcessPendingEmbeddings(ctx context.Context, limit int) error {
	if limit <= 0 {
		limit = 100
	}
	if !s.manager.EmbedderAvailable() {
		return nil
	}
	chunks, err := s.chunks.ListMissingEmbeddings(ctx, limit)
	if err != nil {
		return err
	}
	for _, chunk := range chunks {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := s.embedChunk(ctx, chunk); err != nil {
			logutil.GetLogger(ctx).Warn("resync embedding failed",
				zap.String("chunk_id", chunk.ID), zap.Error(err))
		}
	}
	return nil
}

func (s *IngestService) embedChunk(ctx context.Context, chunk *model.Chunk) error {
	emb, err := s.manager.Embed(ctx, chunk.Content, "RETRIEVAL_DOCUMENT")
	if err != nil {
		return err
	}
	return s.vectors.Upsert(ctx, &model.ChunkEmbedding{
		ChunkID:    chunk.ID,
		DocumentID: chunk.DocumentID,
		Embedding:  emb,
		ModelName:  s.manager.EmbeddingModelName(),
		Mtime:      time.Now().UnixMilli(),
	})
}

// Progress buckets per stage; within a stage progress interpolates between
// the bucket bounds.
const (
	progressExtractDone  = 20
	progressChunkDone    = 40
	progressRecordsDone  = 60
	progressEmbedDone    = 80
	progressClassifyDone = 90
)

func (s *IngestService) run(ctx context.Context, taskID string, doc *model.Document, opts IngestOptions) {
	logger := logutil.GetLogger(ctx).With(
		zap.String("task_id", taskID),
		zap.String("document_id", doc.ID),
	)

	fail := func(stage string, err error) {
		logger.Error("ingestion failed", zap.String("stage", stage), zap.Error(err))
		s.tracker.Fail(taskID, fmt.Sprintf("%s: %v", stage, err))
		if uerr := s.docs.UpdateStatus(ctx, doc.ID, model.DocumentStatusFailed, err.Error()); uerr != nil {
			logger.Error("failed to persist failed status", zap.Error(uerr))
		}
	}
	cancelled := func() bool {
		if !s.tracker.CancelRequested(taskID) && ctx.Err() == nil {
			return false
		}
		logger.Info("ingestion cancelled")
		s.tracker.MarkCancelled(taskID)
		if uerr := s.docs.UpdateStatus(ctx, doc.ID, model.DocumentStatusPending, "cancelled"); uerr != nil {
			logger.Error("failed to release cancelled document", zap.Error(uerr))
		}
		return true
	}

	// Stage: extract.
	s.tracker.SetStage(taskID, model.TaskStageExtracting, 5)
	raw, err := filestore.ReadAll(ctx, s.store, doc.SourceTextRef)
	if err != nil {
		fail("extract", err)
		return
	}
	text := normalizeDocumentText(doc.Filename, string(raw))
	if text == "" {
		fail("extract", fmt.Errorf("document has no extractable text"))
		return
	}
	s.tracker.SetProgress(taskID, progressExtractDone)
	if cancelled() {
		return
	}

	// Stage: chunk.
	s.tracker.SetStage(taskID, model.TaskStageChunking, progressExtractDone)
	drafts := ChunkText(text, opts.ChunkSize, opts.ChunkOverlap)
	if len(drafts) == 0 {
		fail("chunk", fmt.Errorf("chunking produced no chunks"))
		return
	}
	s.tracker.SetProgress(taskID, progressChunkDone)
	if cancelled() {
		return
	}

	// Stage: persist chunk records. Order is fixed here, before any
	// embedding work, so completion order of embeddings can never reorder
	// chunks.
	s.tracker.SetStage(taskID, model.TaskStageStoring, progressChunkDone)
	now := time.Now().UnixMilli()
	chunks := make([]*model.Chunk, 0, len(drafts))
	for _, draft := range drafts {
		chunks = append(chunks, &model.Chunk{
			ID:             newID(),
			DocumentID:     doc.ID,
			Index:          draft.Index,
			Content:        draft.Content,
			TokenCount:     draft.TokenCount,
			SchemaElements: []string{},
			Ctime:          now,
		})
	}
	if err := s.chunks.ReplaceForDocument(ctx, doc.ID, chunks); err != nil {
		fail("store_chunks", err)
		return
	}
	s.cacheChunkBatch(doc.ID, chunks)
	s.tracker.SetProgress(taskID, progressRecordsDone)
	if cancelled() {
		return
	}

	var degraded []string

	// Stage: embed. Per-chunk failures degrade search for those chunks but
	// never fail the document.
	s.tracker.SetStage(taskID, model.TaskStageEmbedding, progressRecordsDone)
	if opts.GenerateEmbeddings {
		if !s.manager.EmbedderAvailable() {
			degraded = append(degraded, "embeddings skipped: no embedder available")
			logger.Warn("embedding skipped, no embedder available")
		} else {
			failures := 0
			for i, chunk := range chunks {
				if err := s.embedChunk(ctx, chunk); err != nil {
					failures++
					logger.Warn("chunk embedding failed",
						zap.String("chunk_id", chunk.ID), zap.Int("index", chunk.Index), zap.Error(err))
				}
				s.tracker.SetProgress(taskID, progressRecordsDone+(i+1)*(progressEmbedDone-progressRecordsDone)/len(chunks))
			}
			if failures > 0 {
				degraded = append(degraded, fmt.Sprintf("embeddings failed for %d/%d chunks", failures, len(chunks)))
			}
		}
	}
	s.tracker.SetProgress(taskID, progressEmbedDone)
	if cancelled() {
		return
	}

	// Stage: classify. Also non-fatal.
	s.tracker.SetStage(taskID, model.TaskStageClassifying, progressEmbedDone)
	if opts.ClassifySchema {
		failures := 0
		for i, chunk := range chunks {
			elements := ClassifyChunk(chunk.Content)
			if err := s.chunks.UpdateSchemaElements(ctx, chunk.ID, elements); err != nil {
				failures++
				logger.Warn("chunk classification update failed",
					zap.String("chunk_id", chunk.ID), zap.Error(err))
			} else {
				chunk.SchemaElements = elements
			}
			s.tracker.SetProgress(taskID, progressEmbedDone+(i+1)*(progressClassifyDone-progressEmbedDone)/len(chunks))
		}
		if failures > 0 {
			degraded = append(degraded, fmt.Sprintf("classification failed for %d/%d chunks", failures, len(chunks)))
		}
	}
	s.tracker.SetProgress(taskID, progressClassifyDone)
	if cancelled() {
		return
	}

	// Finalize. The index changed, so cached search results are stale;
	// clearing is best effort since the cache is advisory.
	note := strings.Join(degraded, "; ")
	if err := s.docs.UpdateStatus(ctx, doc.ID, model.DocumentStatusCompleted, note); err != nil {
		fail("finalize", err)
		return
	}
	s.kv.Clear("search:")
	s.tracker.Complete(taskID, note)
	logger.Info("ingestion completed",
		zap.Int("chunks", len(chunks)),
		zap.String("degraded", note),
	)
}

func (s *IngestService) cacheChunkBatch(documentID string, chunks []*model.Chunk) {
	payload, err := encodeChunks(chunks)
	if err != nil {
		return
	}
	s.kv.Set(cache.Key("chunks", documentID), payload, cache.TTLChunkBatch)
}

// ListChunks serves the chunk batch for a document, preferring the advisory
// cache.
func (s *IngestService) ListChunks(ctx context.Context, documentID string) ([]*model.Chunk, error) {
	if payload, ok := s.kv.Get(cache.Key("chunks", documentID)); ok {
		if chunks, err := decodeChunks(payload); err == nil {
			return chunks, nil
		}
	}
	chunks, err := s.chunks.ListByDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}
	s.cacheChunkBatch(documentID, chunks)
	return chunks, nil
}
