package model

const (
	TaskStageQueued      = "queued"
	TaskStageExtracting  = "extracting"
	TaskStageChunking    = "chunking"
	TaskStageStoring     = "storing_chunks"
	TaskStageEmbedding   = "embedding"
	TaskStageClassifying = "classifying"
	TaskStageCompleted   = "completed"
	TaskStageFailed      = "failed"
	TaskStageCancelled   = "cancelled"
)

// ProcessingTask tracks one in-flight ingestion run. It lives in memory only;
// the document row carries the durable status.
type ProcessingTask struct {
	ID         string `json:"id"`
	DocumentID string `json:"document_id"`
	Stage      string `json:"stage"`
	Progress   int    `json:"progress"`
	Error      string `json:"error,omitempty"`
	Ctime      int64  `json:"ctime"`
	Mtime      int64  `json:"mtime"`
}

func (t *ProcessingTask) Terminal() bool {
	switch t.Stage {
	case TaskStageCompleted, TaskStageFailed, TaskStageCancelled:
		return true
	}
	return false
}
