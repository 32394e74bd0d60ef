package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/lysyi3m/news-comb/app/news"
)

type ProcessingStore interface {
	ListArticles(ctx context.Context, filter news.ArticleFilter) ([]news.Article, error)
	SaveProcessingTask(ctx context.Context, task *news.ProcessingTask) error
}

// ProcessArticlesTask runs one processing pass over articles waiting in the
// given status, optionally narrowed to one source.
type ProcessArticlesTask struct {
	Task
	Status    news.ArticleStatus
	BatchSize int
	runner    TaskRunner
	store     ProcessingStore

	// Result is the persisted task once Execute returned
	Result *news.ProcessingTask
}

func NewProcessArticlesTask(sourceName string, status news.ArticleStatus, batchSize int, runner TaskRunner, store ProcessingStore) *ProcessArticlesTask {
	if status == "" {
		status = news.StatusCollected
	}
	return &ProcessArticlesTask{
		Task:      NewTask(TaskTypeProcessArticles, sourceName),
		Status:    status,
		BatchSize: batchSize,
		runner:    runner,
		store:     store,
	}
}

func (t *ProcessArticlesTask) Execute(ctx context.Context) error {
	if err := cancelled(ctx); err != nil {
		return err
	}

	articles, err := t.store.ListArticles(ctx, news.ArticleFilter{
		Source: t.SourceName,
		Status: t.Status,
		Limit:  t.BatchSize,
	})
	if err != nil {
		return fmt.Errorf("failed to list articles for processing: %w", err)
	}

	if len(articles) == 0 {
		slog.Debug("No articles waiting for processing", "source", t.SourceName, "status", t.Status)
		return nil
	}

	ids := make([]int64, len(articles))
	for i, a := range articles {
		ids[i] = a.ID
	}

	// a retry keeps the same task id, so its row is overwritten
	task := news.NewProcessingTask(t.ID, ids, time.Now().UTC())

	report, runErr := t.runner.RunTask(ctx, task, articles)

	if err := t.store.SaveProcessingTask(context.WithoutCancel(ctx), task); err != nil {
		return fmt.Errorf("failed to save processing task: %w", err)
	}
	t.Result = task

	if runErr != nil {
		return fmt.Errorf("failed to run processing task: %w", runErr)
	}

	slog.Info("Task completed",
		"type", t.GetType(),
		"source", t.SourceName,
		"duration", t.GetDuration(),
		"status", task.Status,
		"total", report.Total,
		"processed", report.Processed,
		"failed", report.Failed,
		"skipped", report.Skipped)

	return nil
}
