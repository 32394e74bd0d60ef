package news

import (
	"errors"
	"fmt"
	"time"
)

var ErrInvalidTransition = errors.New("invalid task status transition")

type TaskStatus string

const (
	TaskPending   TaskStatus = "pending"
	TaskRunning   TaskStatus = "running"
	TaskCompleted TaskStatus = "completed"
	TaskFailed    TaskStatus = "failed"
	TaskCancelled TaskStatus = "cancelled"
)

func (s TaskStatus) IsFinal() bool {
	return s == TaskCompleted || s == TaskFailed || s == TaskCancelled
}

// ProcessingTask is one batch pass of the processing pipeline over a set of articles.
type ProcessingTask struct {
	ID          string
	ArticleIDs  []int64
	ScheduledAt time.Time
	Status      TaskStatus
	Total       int
	Processed   int
	Failed      int
	Skipped     int
	Errors      []string
	StartedAt   *time.Time
	CompletedAt *time.Time
	Duration    time.Duration
	MemoryMB    float64
}

func NewProcessingTask(id string, articleIDs []int64, scheduledAt time.Time) *ProcessingTask {
	return &ProcessingTask{
		ID:          id,
		ArticleIDs:  articleIDs,
		ScheduledAt: scheduledAt,
		Status:      TaskPending,
		Total:       len(articleIDs),
	}
}

func (t *ProcessingTask) Start() error {
	if t.Status != TaskPending {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, t.Status, TaskRunning)
	}
	now := time.Now().UTC()
	t.StartedAt = &now
	t.Status = TaskRunning
	return nil
}

// Finish moves a running task to completed, or to failed when nothing succeeded.
func (t *ProcessingTask) Finish(processed, failed, skipped int, errs []string) error {
	if t.Status != TaskRunning {
		return fmt.Errorf("%w: %s -> finished", ErrInvalidTransition, t.Status)
	}
	t.record(processed, failed, skipped, errs)
	if failed > 0 && processed == 0 {
		t.Status = TaskFailed
	} else {
		t.Status = TaskCompleted
	}
	return nil
}

// Cancel is valid from pending (external cancellation) and from running.
func (t *ProcessingTask) Cancel(processed, failed, skipped int, errs []string) error {
	if t.Status != TaskPending && t.Status != TaskRunning {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, t.Status, TaskCancelled)
	}
	t.record(processed, failed, skipped, errs)
	t.Status = TaskCancelled
	return nil
}

func (t *ProcessingTask) record(processed, failed, skipped int, errs []string) {
	now := time.Now().UTC()
	t.CompletedAt = &now
	t.Processed = processed
	t.Failed = failed
	t.Skipped = skipped
	t.Errors = append(t.Errors, errs...)
	if t.StartedAt != nil {
		t.Duration = now.Sub(*t.StartedAt)
	}
}
