package tasks

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lysyi3m/news-comb/app/source"
	"github.com/lysyi3m/news-comb/app/storage"
)

type SyncSourceTask struct {
	Task
	SourceConfig *source.Config
	sourceRepo   storage.SourceRepository
}

func NewSyncSourceTask(sourceConfig *source.Config, sourceRepo storage.SourceRepository) *SyncSourceTask {
	return &SyncSourceTask{
		Task:         NewTask(TaskTypeSyncSource, sourceConfig.Name),
		SourceConfig: sourceConfig,
		sourceRepo:   sourceRepo,
	}
}

func (t *SyncSourceTask) Execute(ctx context.Context) error {
	if err := cancelled(ctx); err != nil {
		return err
	}

	err := t.sourceRepo.UpsertSource(ctx,
		t.SourceConfig.Name,
		t.SourceConfig.URL,
		string(t.SourceConfig.Kind))
	if err != nil {
		slog.Error("Task failed", "type", t.GetType(), "source", t.SourceName, "error", err)
		return fmt.Errorf("failed to sync source config to database: %w", err)
	}

	slog.Info("Task completed",
		"type", t.GetType(),
		"source", t.SourceName,
		"duration", t.GetDuration())

	return nil
}
