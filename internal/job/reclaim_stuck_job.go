package job

import (
	"context"
	"time"

	"github.com/esgpipe/esgpipe/internal/service"
)

// ReclaimStuckJob returns documents abandoned mid-processing (crashed worker,
// killed process) to the pending state so they can be re-run.
type ReclaimStuckJob struct {
	ingest       *service.IngestService
	afterMinutes int
}

func NewReclaimStuckJob(ingest *service.IngestService, afterMinutes int) *ReclaimStuckJob {
	return &ReclaimStuckJob{ingest: ingest, afterMinutes: afterMinutes}
}

func (j *ReclaimStuckJob) Name() string {
	return "reclaim_stuck_documents"
}

func (j *ReclaimStuckJob) Run(ctx context.Context) error {
	if j.ingest == nil {
		return nil
	}
	afterMinutes := j.afterMinutes
	if afterMinutes <= 0 {
		afterMinutes = 60
	}
	_, err := j.ingest.ReclaimStuck(ctx, time.Duration(afterMinutes)*time.Minute)
	return err
}
