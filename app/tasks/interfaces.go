package tasks

import (
	"context"

	"github.com/lysyi3m/news-comb/app/collector"
	"github.com/lysyi3m/news-comb/app/news"
	"github.com/lysyi3m/news-comb/app/processing"
	"github.com/lysyi3m/news-comb/app/source"
)

// TaskSchedulerInterface defines the interface for task scheduling operations.
// Used by the main application and the HTTP triggers to run background work.
// Example usage:
//
//	scheduler, err := NewScheduler(configCache, store, deps, opts)
//	scheduler.Start()
//	defer scheduler.Stop()
//	scheduler.EnqueueTask(NewCollectSourceTask(...))
type TaskSchedulerInterface interface {
	Start()
	Stop()
	EnqueueTask(task TaskInterface) error
}

// CollectorFactory resolves the collector variant and the shared transport of a source.
type CollectorFactory interface {
	New(src *source.Config) (collector.Collector, error)
	Fetcher(src *source.Config) (collector.Fetcher, error)
}

type Admitter interface {
	Admit(ctx context.Context, c news.Candidate) (int64, bool, error)
}

type TaskRunner interface {
	RunTask(ctx context.Context, task *news.ProcessingTask, articles []news.Article) (processing.BatchReport, error)
}

type PageExtractor interface {
	Fetch(ctx context.Context, fetcher collector.Fetcher, pageURL string) (string, error)
}

var (
	_ CollectorFactory = (*collector.Factory)(nil)
	_ TaskRunner       = (*processing.Manager)(nil)
	_ PageExtractor    = (*collector.ContentExtractor)(nil)
)
