package tasks

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type TaskType string

const (
	TaskTypeCollectSource   TaskType = "collect_source"
	TaskTypeExtractContent  TaskType = "extract_content"
	TaskTypeSyncSource      TaskType = "sync_source"
	TaskTypeProcessArticles TaskType = "process_articles"
	TaskTypeGroupDuplicates TaskType = "group_duplicates"
)

const (
	DefaultMaxRetries = 3

	maxRetryDelay = 30 * time.Second
)

type TaskInterface interface {
	Execute(ctx context.Context) error
	GetID() string
	GetType() TaskType
	GetSourceName() string
	// Key is shared by tasks that must not be queued twice.
	Key() string
	GetRetryCount() int
	// Retry books another attempt and returns the wait before it. It returns
	// false once the task is out of retries.
	Retry() (time.Duration, bool)
	Start()
	GetDuration() time.Duration
}

// Task carries the bookkeeping every task type embeds.
type Task struct {
	ID         string
	Type       TaskType
	SourceName string // empty for pipeline-wide tasks
	RetryCount int
	MaxRetries int
	StartedAt  time.Time
}

func NewTask(taskType TaskType, sourceName string) Task {
	return Task{
		ID:         uuid.NewString(),
		Type:       taskType,
		SourceName: sourceName,
		MaxRetries: DefaultMaxRetries,
	}
}

func (t *Task) GetID() string         { return t.ID }
func (t *Task) GetType() TaskType     { return t.Type }
func (t *Task) GetSourceName() string { return t.SourceName }
func (t *Task) GetRetryCount() int    { return t.RetryCount }

func (t *Task) Key() string {
	if t.SourceName == "" {
		return string(t.Type)
	}
	return string(t.Type) + ":" + t.SourceName
}

func (t *Task) Retry() (time.Duration, bool) {
	if t.RetryCount >= t.MaxRetries {
		return 0, false
	}
	t.RetryCount++
	return retryBackoff(t.RetryCount), true
}

func (t *Task) Start() {
	t.StartedAt = time.Now()
}

func (t *Task) GetDuration() time.Duration {
	if t.StartedAt.IsZero() {
		return 0
	}
	return time.Since(t.StartedAt)
}

// retryBackoff doubles from one second and caps at thirty.
func retryBackoff(retry int) time.Duration {
	if retry > 6 {
		return maxRetryDelay
	}
	return min(time.Duration(1<<uint(retry-1))*time.Second, maxRetryDelay)
}

func cancelled(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}
