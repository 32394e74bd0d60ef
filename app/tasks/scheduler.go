package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/lysyi3m/news-comb/app/dedup"
	"github.com/lysyi3m/news-comb/app/news"
	"github.com/lysyi3m/news-comb/app/source"
	"github.com/lysyi3m/news-comb/app/storage"
)

var (
	_ TaskSchedulerInterface = (*Scheduler)(nil)

	ErrUnknownSource = errors.New("unknown source")
	ErrAlreadyQueued = errors.New("task already queued")
)

const (
	DefaultTaskTimeout = 5 * time.Minute
	queueSize          = 300
)

type Options struct {
	WorkerCount        int
	Interval           time.Duration
	BatchSize          int
	ProcessingSchedule string // cron spec, empty disables the sweep
	DedupSchedule      string // cron spec, empty disables the sweep
	DedupWindow        time.Duration
	TaskTimeout        time.Duration
	Location           *time.Location
}

type Dependencies struct {
	Factory   CollectorFactory
	Gate      Admitter
	Extractor PageExtractor
	Runner    TaskRunner
	Grouper   *dedup.Grouper
}

type Scheduler struct {
	configCache *source.ConfigCache
	store       storage.Store
	deps        Dependencies
	opts        Options
	cron        *cron.Cron
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	taskQueue   chan TaskInterface

	mu     sync.Mutex
	active map[string]bool // exclusive tasks queued or running
}

func NewScheduler(configCache *source.ConfigCache, store storage.Store, deps Dependencies, opts Options) (*Scheduler, error) {
	if opts.WorkerCount <= 0 {
		opts.WorkerCount = 1
	}
	if opts.Interval <= 0 {
		opts.Interval = time.Minute
	}
	if opts.TaskTimeout <= 0 {
		opts.TaskTimeout = DefaultTaskTimeout
	}
	if opts.DedupWindow <= 0 {
		opts.DedupWindow = 48 * time.Hour
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}

	ctx, cancel := context.WithCancel(context.Background())

	s := &Scheduler{
		configCache: configCache,
		store:       store,
		deps:        deps,
		opts:        opts,
		cron:        cron.New(cron.WithLocation(opts.Location)),
		ctx:         ctx,
		cancel:      cancel,
		taskQueue:   make(chan TaskInterface, queueSize),
		active:      make(map[string]bool),
	}

	if opts.ProcessingSchedule != "" && deps.Runner != nil {
		if _, err := s.cron.AddFunc(opts.ProcessingSchedule, s.enqueueProcessing); err != nil {
			cancel()
			return nil, fmt.Errorf("invalid processing schedule %q: %w", opts.ProcessingSchedule, err)
		}
	}
	if opts.DedupSchedule != "" && deps.Grouper != nil {
		if _, err := s.cron.AddFunc(opts.DedupSchedule, s.enqueueGrouping); err != nil {
			cancel()
			return nil, fmt.Errorf("invalid dedup schedule %q: %w", opts.DedupSchedule, err)
		}
	}

	return s, nil
}

func (s *Scheduler) Start() {
	for i := 0; i < s.opts.WorkerCount; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(s.opts.Interval)
		defer ticker.Stop()

		s.enqueueStartupTasks()

		for {
			select {
			case <-s.ctx.Done():
				return
			case <-ticker.C:
				s.enqueueTasks()
			}
		}
	}()

	s.cron.Start()
	slog.Debug("Scheduler started", "workers", s.opts.WorkerCount, "interval", s.opts.Interval, "cron_entries", len(s.cron.Entries()))
}

func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.cancel()
	s.wg.Wait()
}

func (s *Scheduler) EnqueueTask(task TaskInterface) error {
	select {
	case <-s.ctx.Done():
		return s.ctx.Err()
	default:
	}

	select {
	case s.taskQueue <- task:
		return nil
	case <-s.ctx.Done():
		return s.ctx.Err()
	default:
		return fmt.Errorf("task queue is full")
	}
}

// Collect queues a collection of one configured source.
func (s *Scheduler) Collect(sourceName string) (string, error) {
	sourceConfig, err := s.configCache.GetConfig(sourceName)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrUnknownSource, sourceName)
	}
	task := NewCollectSourceTask(sourceConfig, s.deps.Factory, s.deps.Gate, s.store, s.store)
	if err := s.enqueueExclusive(task); err != nil {
		return "", err
	}
	return task.GetID(), nil
}

// Process queues a processing pass; an empty source covers every source.
func (s *Scheduler) Process(sourceName string, status news.ArticleStatus) (string, error) {
	if s.deps.Runner == nil {
		return "", fmt.Errorf("processing is not configured")
	}
	if sourceName != "" {
		if _, err := s.configCache.GetConfig(sourceName); err != nil {
			return "", fmt.Errorf("%w: %s", ErrUnknownSource, sourceName)
		}
	}
	task := NewProcessArticlesTask(sourceName, status, s.opts.BatchSize, s.deps.Runner, s.store)
	if err := s.enqueueExclusive(task); err != nil {
		return "", err
	}
	return task.GetID(), nil
}

// GroupDuplicates queues a duplicate grouping sweep.
func (s *Scheduler) GroupDuplicates() (string, error) {
	if s.deps.Grouper == nil {
		return "", fmt.Errorf("duplicate grouping is not configured")
	}
	task := NewGroupDuplicatesTask(s.opts.DedupWindow, s.deps.Grouper, s.store)
	if err := s.enqueueExclusive(task); err != nil {
		return "", err
	}
	return task.GetID(), nil
}

// enqueueExclusive refuses a task while another one of the same type and
// source is queued or running.
func (s *Scheduler) enqueueExclusive(task TaskInterface) error {
	key := task.Key()

	s.mu.Lock()
	if s.active[key] {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrAlreadyQueued, key)
	}
	s.active[key] = true
	s.mu.Unlock()

	if err := s.EnqueueTask(task); err != nil {
		s.release(task)
		return err
	}
	return nil
}

func (s *Scheduler) release(task TaskInterface) {
	s.mu.Lock()
	delete(s.active, task.Key())
	s.mu.Unlock()
}

func (s *Scheduler) enqueueStartupTasks() {
	sourceConfigs := s.configCache.GetConfigs()
	if len(sourceConfigs) == 0 {
		slog.Debug("No source configurations found")
		return
	}

	slog.Debug("Processing source configurations", "count", len(sourceConfigs))

	for _, sourceConfig := range sourceConfigs {
		syncTask := NewSyncSourceTask(sourceConfig, s.store)
		if err := s.EnqueueTask(syncTask); err != nil {
			slog.Warn("Failed to enqueue SyncSourceTask", "source", sourceConfig.Name, "error", err)
			continue
		}

		if !sourceConfig.Settings.Enabled {
			slog.Debug("Source disabled, skipping CollectSourceTask", "source", sourceConfig.Name)
			continue
		}

		if _, err := s.Collect(sourceConfig.Name); err != nil {
			slog.Warn("Failed to enqueue CollectSourceTask", "source", sourceConfig.Name, "error", err)
		}
	}
}

func (s *Scheduler) enqueueTasks() {
	sourceConfigs := s.configCache.GetEnabledConfigs()
	if len(sourceConfigs) == 0 {
		slog.Debug("No enabled source configurations found")
		return
	}

	slog.Debug("Processing enabled source configurations for task scheduling", "count", len(sourceConfigs))

	for _, sourceConfig := range sourceConfigs {
		if s.due(sourceConfig.Name) {
			if _, err := s.Collect(sourceConfig.Name); err != nil && !errors.Is(err, ErrAlreadyQueued) {
				slog.Warn("Failed to enqueue CollectSourceTask", "source", sourceConfig.Name, "error", err)
			}
		}

		if sourceConfig.Settings.ExtractContent && s.deps.Extractor != nil {
			extractTask := NewExtractContentTask(sourceConfig, s.deps.Factory, s.deps.Extractor, s.store)
			if err := s.enqueueExclusive(extractTask); err != nil && !errors.Is(err, ErrAlreadyQueued) {
				slog.Warn("Failed to enqueue ExtractContentTask", "source", sourceConfig.Name, "error", err)
			}
		}
	}
}

// due reports whether a source reached its next collection time. Sources the
// database does not know yet are due.
func (s *Scheduler) due(sourceName string) bool {
	state, err := s.store.GetSource(s.ctx, sourceName)
	if errors.Is(err, storage.ErrNotFound) {
		return true
	}
	if err != nil {
		slog.Warn("Failed to get source from database, skipping", "source", sourceName, "error", err)
		return false
	}

	now := time.Now().UTC()
	if state.NextCollectionAt != nil && state.NextCollectionAt.After(now) {
		slog.Debug("Source not due for collection yet", "source", sourceName, "next_collection_at", state.NextCollectionAt)
		return false
	}
	return true
}

func (s *Scheduler) enqueueProcessing() {
	if _, err := s.Process("", news.StatusCollected); err != nil {
		if errors.Is(err, ErrAlreadyQueued) {
			slog.Debug("Previous processing task still running, skipping sweep")
			return
		}
		slog.Warn("Failed to enqueue ProcessArticlesTask", "error", err)
	}
}

func (s *Scheduler) enqueueGrouping() {
	if _, err := s.GroupDuplicates(); err != nil {
		if errors.Is(err, ErrAlreadyQueued) {
			slog.Debug("Previous grouping task still running, skipping sweep")
			return
		}
		slog.Warn("Failed to enqueue GroupDuplicatesTask", "error", err)
	}
}

func (s *Scheduler) worker(id int) {
	defer s.wg.Done()

	for {
		select {
		case task := <-s.taskQueue:
			s.executeTask(id, task)

		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Scheduler) executeTask(workerID int, task TaskInterface) {
	task.Start()

	taskCtx, cancel := context.WithTimeout(s.ctx, s.opts.TaskTimeout)
	defer cancel()

	err := task.Execute(taskCtx)
	if err == nil {
		s.release(task)
		return
	}

	slog.Error("Worker task execution failed", "worker_id", workerID, "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "error", err)

	if s.ctx.Err() != nil {
		s.release(task)
		return
	}

	retryDelay, ok := task.Retry()
	if !ok {
		slog.Error("Task failed after maximum retries", "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "last_error", err)
		s.release(task)
		return
	}

	slog.Warn("Task retry scheduled", "type", string(task.GetType()), "source", task.GetSourceName(), "retry_count", task.GetRetryCount(), "delay", retryDelay.String())

	time.AfterFunc(retryDelay, func() {
		if s.ctx.Err() != nil {
			slog.Debug("Scheduler stopped, skipping task retry", "type", string(task.GetType()), "id", task.GetID())
			s.release(task)
			return
		}
		if retryErr := s.EnqueueTask(task); retryErr != nil {
			slog.Error("Failed to re-enqueue task for retry", "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "error", retryErr)
			s.release(task)
		}
	})
}
