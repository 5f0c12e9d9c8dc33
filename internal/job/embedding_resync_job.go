package job

import (
	"context"

	"github.com/esgpipe/esgpipe/internal/service"
)

// EmbeddingResyncJob backfills vectors for chunks that missed embedding
// during a degraded ingestion run.
type EmbeddingResyncJob struct {
	ingest    *service.IngestService
	batchSize int
}

func NewEmbeddingResyncJob(ingest *service.IngestService, batchSize int) *EmbeddingResyncJob {
	return &EmbeddingResyncJob{ingest: ingest, batchSize: batchSize}
}

func (j *EmbeddingResyncJob) Name() string {
	return "embedding_resync"
}

func (j *EmbeddingResyncJob) Run(ctx context.Context) error {
	if j.ingest == nil {
		return nil
	}
	return j.ingest.ProcessPendingEmbeddings(ctx, j.batchSize)
}
