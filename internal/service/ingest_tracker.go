package service

import (
	"sync"
	"time"

	"github.com/esgpipe/esgpipe/internal/model"
	appErr "github.com/esgpipe/esgpipe/internal/pkg/errors"
)

type trackedTask struct {
	task      model.ProcessingTask
	cancelled bool
}

// TaskTracker holds the in-memory view of ingestion tasks and enforces the
// at-most-one-in-flight rule per document within this process. The document
// row's status claim covers competing processes.
type TaskTracker struct {
	mu     sync.Mutex
	tasks  map[string]*trackedTask
	active map[string]string // document id -> task id
}

func NewTaskTracker() *TaskTracker {
	return &TaskTracker{
		tasks:  make(map[string]*trackedTask),
		active: make(map[string]string),
	}
}

// Begin registers a new queued task for the document, failing fast when one
// is already in flight.
func (t *TaskTracker) Begin(documentID string) (model.ProcessingTask, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if taskID, ok := t.active[documentID]; ok {
		if tracked, ok := t.tasks[taskID]; ok && !tracked.task.Terminal() {
			return model.ProcessingTask{}, appErr.ErrAlreadyProcessing
		}
	}
	now := time.Now().UnixMilli()
	task := model.ProcessingTask{
		ID:         newID(),
		DocumentID: documentID,
		Stage:      model.TaskStageQueued,
		Progress:   0,
		Ctime:      now,
		Mtime:      now,
	}
	t.tasks[task.ID] = &trackedTask{task: task}
	t.active[documentID] = task.ID
	return task, nil
}

func (t *TaskTracker) Get(taskID string) (model.ProcessingTask, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	tracked, ok := t.tasks[taskID]
	if !ok {
		return model.ProcessingTask{}, false
	}
	return tracked.task, true
}

func (t *TaskTracker) SetStage(taskID, stage string, progress int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	tracked, ok := t.tasks[taskID]
	if !ok || tracked.task.Terminal() {
		return
	}
	tracked.task.Stage = stage
	tracked.task.Progress = progress
	tracked.task.Mtime = time.Now().UnixMilli()
}

func (t *TaskTracker) SetProgress(taskID string, progress int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	tracked, ok := t.tasks[taskID]
	if !ok || tracked.task.Terminal() {
		return
	}
	if progress > tracked.task.Progress {
		tracked.task.Progress = progress
		tracked.task.Mtime = time.Now().UnixMilli()
	}
}

func (t *TaskTracker) finish(taskID, stage, errMsg string, progress int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	tracked, ok := t.tasks[taskID]
	if !ok {
		return
	}
	tracked.task.Stage = stage
	tracked.task.Error = errMsg
	if progress >= 0 {
		tracked.task.Progress = progress
	}
	tracked.task.Mtime = time.Now().UnixMilli()
	if t.active[tracked.task.DocumentID] == taskID {
		delete(t.active, tracked.task.DocumentID)
	}
}

func (t *TaskTracker) Complete(taskID, note string) {
	t.finish(taskID, model.TaskStageCompleted, note, 100)
}

func (t *TaskTracker) Fail(taskID, errMsg string) {
	t.finish(taskID, model.TaskStageFailed, errMsg, -1)
}

func (t *TaskTracker) MarkCancelled(taskID string) {
	t.finish(taskID, model.TaskStageCancelled, "cancelled", -1)
}

// RequestCancel flips the cooperative flag; the pipeline observes it between
// stages.
func (t *TaskTracker) RequestCancel(taskID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	tracked, ok := t.tasks[taskID]
	if !ok {
		return appErr.ErrNotFound
	}
	if tracked.task.Terminal() {
		return appErr.ErrInvalid
	}
	tracked.cancelled = true
	return nil
}

func (t *TaskTracker) CancelRequested(taskID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	tracked, ok := t.tasks[taskID]
	return ok && tracked.cancelled
}

// Sweep drops terminal tasks older than maxAge so the map cannot grow
// without bound.
func (t *TaskTracker) Sweep(maxAge time.Duration) int {
	cutoff := time.Now().Add(-maxAge).UnixMilli()
	t.mu.Lock()
	defer t.mu.Unlock()
	removed := 0
	for id, tracked := range t.tasks {
		if tracked.task.Terminal() && tracked.task.Mtime < cutoff {
			delete(t.tasks, id)
			removed++
		}
	}
	return removed
}
