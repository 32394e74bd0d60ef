package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lysyi3m/news-comb/app/news"
	"github.com/lysyi3m/news-comb/app/source"
	"github.com/lysyi3m/news-comb/app/storage"
)

type CollectSourceTask struct {
	Task
	SourceConfig *source.Config
	factory      CollectorFactory
	gate         Admitter
	runRepo      storage.RunRepository
	sourceRepo   storage.SourceRepository
}

func NewCollectSourceTask(sourceConfig *source.Config, factory CollectorFactory, gate Admitter, runRepo storage.RunRepository, sourceRepo storage.SourceRepository) *CollectSourceTask {
	return &CollectSourceTask{
		Task:         NewTask(TaskTypeCollectSource, sourceConfig.Name),
		SourceConfig: sourceConfig,
		factory:      factory,
		gate:         gate,
		runRepo:      runRepo,
		sourceRepo:   sourceRepo,
	}
}

// Execute runs one collection and stores its run record. Collection failures
// end up in the record; storage failures and runs that never started are
// returned for a retry.
func (t *CollectSourceTask) Execute(ctx context.Context) error {
	if err := cancelled(ctx); err != nil {
		return t.abort(ctx, fmt.Errorf("collection cancelled before start: %w", err))
	}

	if !t.SourceConfig.Settings.Enabled {
		slog.Debug("Source disabled, skipping", "source", t.SourceName)
		return nil
	}

	c, err := t.factory.New(t.SourceConfig)
	if err != nil {
		return t.abort(ctx, fmt.Errorf("failed to create collector: %w", err))
	}

	candidates, record := c.Collect(ctx, t.SourceConfig)

	admitted, duplicates := 0, 0
	for _, candidate := range candidates {
		if candidate.Source == "" {
			candidate.Source = t.SourceName
		}

		_, ok, err := t.gate.Admit(ctx, candidate)
		if err != nil {
			record.Errors = append(record.Errors, fmt.Sprintf("failed to store %s: %v", candidate.URL, err))
			continue
		}
		if ok {
			admitted++
		} else {
			duplicates++
		}
	}

	record.Collected = admitted
	if record.Status == news.RunSuccess && len(record.Errors) > 0 {
		record.Status = news.RunPartial
	}

	// the record must land even when the run context is gone
	storeCtx := context.WithoutCancel(ctx)
	if _, err := t.runRepo.AppendCollectionRun(storeCtx, record); err != nil {
		return fmt.Errorf("failed to store collection run: %w", err)
	}

	if err := t.reschedule(storeCtx); err != nil {
		return err
	}

	slog.Info("Task completed",
		"type", t.GetType(),
		"source", t.SourceName,
		"duration", t.GetDuration(),
		"status", record.Status,
		"found", record.Found,
		"duplicates", duplicates,
		"new", admitted,
		"errors", len(record.Errors))

	return nil
}

// abort stores an error run record for a collection that never ran and
// returns cause.
func (t *CollectSourceTask) abort(ctx context.Context, cause error) error {
	now := time.Now().UTC()
	record := news.RunRecord{
		Source:      t.SourceName,
		Status:      news.RunError,
		Errors:      []string{cause.Error()},
		StartedAt:   now,
		CompletedAt: now,
	}
	if _, err := t.runRepo.AppendCollectionRun(context.WithoutCancel(ctx), record); err != nil {
		return errors.Join(cause, fmt.Errorf("failed to store collection run: %w", err))
	}
	return cause
}

// reschedule sets the next collection time, registering the source first
// when the collection raced its sync task.
func (t *CollectSourceTask) reschedule(ctx context.Context) error {
	now := time.Now().UTC()
	next := now.Add(t.SourceConfig.Interval())

	err := t.sourceRepo.UpdateSourceSchedule(ctx, t.SourceName, now, next)
	if errors.Is(err, storage.ErrNotFound) {
		if err := t.sourceRepo.UpsertSource(ctx, t.SourceName, t.SourceConfig.URL, string(t.SourceConfig.Kind)); err != nil {
			return fmt.Errorf("failed to register source: %w", err)
		}
		err = t.sourceRepo.UpdateSourceSchedule(ctx, t.SourceName, now, next)
	}
	if err != nil {
		return fmt.Errorf("failed to update source schedule: %w", err)
	}
	return nil
}
