package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/lysyi3m/news-comb/app/api"
	"github.com/lysyi3m/news-comb/app/cfg"
	"github.com/lysyi3m/news-comb/app/collector"
	"github.com/lysyi3m/news-comb/app/dedup"
	"github.com/lysyi3m/news-comb/app/feed"
	"github.com/lysyi3m/news-comb/app/processing"
	"github.com/lysyi3m/news-comb/app/publish"
	"github.com/lysyi3m/news-comb/app/source"
	"github.com/lysyi3m/news-comb/app/storage"
	"github.com/lysyi3m/news-comb/app/tasks"
)

func main() {
	if err := run(); err != nil {
		slog.Error("News Comb stopped with error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// .env is optional; real environment variables take precedence
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("Failed to read .env file", "error", err)
	}

	appConfig, err := cfg.Load()
	if err != nil {
		return err
	}
	if appConfig == nil {
		// Help was shown
		return nil
	}

	level := slog.LevelInfo
	if appConfig.Debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})))

	slog.Info("Starting News Comb server", "version", appConfig.Version)

	slog.Info("Opening storage", "driver", appConfig.DBDriver)
	store, err := storage.Open(appConfig.DBDriver, appConfig.DBPath, appConfig.DBDSN)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	defer store.Close()

	slog.Info("Loading source configurations", "dir", appConfig.SourcesDir)
	configCache := source.NewConfigCache(appConfig.SourcesDir)
	if err := configCache.Run(); err != nil {
		return fmt.Errorf("failed to load source configurations: %w", err)
	}
	slog.Info("Source configurations loaded", "count", configCache.GetConfigCount())

	pipeline, err := processing.LoadConfig(appConfig.PipelineFile)
	if err != nil {
		return fmt.Errorf("failed to load pipeline configuration: %w", err)
	}

	var seen dedup.SeenSet
	if appConfig.RedisEnabled() {
		redisSeen, err := dedup.NewRedisSeenSet(dedup.RedisConfig{
			Addr:     appConfig.RedisAddr,
			Password: appConfig.RedisPassword,
			DB:       appConfig.RedisDB,
			TTL:      appConfig.SeenTTL,
		})
		if err != nil {
			return err
		}
		defer redisSeen.Close()
		seen = redisSeen
		slog.Info("Redis seen-set enabled", "addr", appConfig.RedisAddr)
	}

	publishers, closePublishers, err := buildPublishers(appConfig)
	if err != nil {
		return err
	}
	defer closePublishers()

	managerOpts := []processing.Option{processing.WithStore(store)}
	if len(publishers) > 0 {
		managerOpts = append(managerOpts, processing.WithPublisher(publishers))
	}
	manager, err := pipeline.NewManager(managerOpts...)
	if err != nil {
		return fmt.Errorf("failed to build processing pipeline: %w", err)
	}

	factory := collector.NewFactory(appConfig.UserAgent)

	batchSize := appConfig.BatchSize
	if batchSize == 0 {
		batchSize = pipeline.BatchSize
	}

	slog.Info("Starting background scheduler", "workers", appConfig.WorkerCount)
	scheduler, err := tasks.NewScheduler(configCache, store, tasks.Dependencies{
		Factory:   factory,
		Gate:      dedup.NewGate(store, seen),
		Extractor: collector.NewContentExtractor(),
		Runner:    manager,
		Grouper:   pipeline.Grouper(),
	}, tasks.Options{
		WorkerCount:        appConfig.WorkerCount,
		Interval:           time.Duration(appConfig.SchedulerInterval) * time.Second,
		BatchSize:          batchSize,
		ProcessingSchedule: appConfig.ProcessingSchedule,
		DedupSchedule:      appConfig.DedupSchedule,
		DedupWindow:        time.Duration(pipeline.Dedup.Window) * time.Hour,
		TaskTimeout:        appConfig.TaskTimeout,
		Location:           time.Local,
	})
	if err != nil {
		return fmt.Errorf("failed to create scheduler: %w", err)
	}
	scheduler.Start()
	defer scheduler.Stop()

	generator := feed.NewGenerator(appConfig.BaseUrl, appConfig.Version)
	apiHandler := api.NewHandler(configCache, store, generator, scheduler, manager, factory, appConfig.Version)
	server := api.NewServer(apiHandler, appConfig.APIAccessKey)

	httpServer := &http.Server{
		Addr:         ":" + appConfig.Port,
		Handler:      server,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		slog.Info("Starting HTTP server", "port", appConfig.Port, "api_enabled", appConfig.APIAccessKey != "")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	slog.Info("News Comb server started")

	var runErr error
	select {
	case sig := <-sigChan:
		slog.Info("Received signal", "signal", sig)
	case runErr = <-serverErrChan:
		slog.Error("Server error", "error", runErr)
	}

	slog.Info("Shutting down server gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	} else {
		slog.Info("HTTP server stopped")
	}

	return runErr
}

// buildPublishers connects the optional result sinks.
func buildPublishers(appConfig *cfg.Cfg) (publish.Multi, func(), error) {
	var publishers publish.Multi
	var closers []func() error

	closeAll := func() {
		for _, c := range closers {
			if err := c(); err != nil {
				slog.Warn("Failed to close publisher", "error", err)
			}
		}
	}

	if appConfig.KafkaEnabled() {
		kafka, err := publish.NewKafkaPublisher(publish.KafkaConfig{
			Brokers: appConfig.KafkaBrokers,
			Topic:   appConfig.KafkaTopic,
		})
		if err != nil {
			return nil, func() {}, err
		}
		publishers = append(publishers, kafka)
		closers = append(closers, kafka.Close)
	}

	if appConfig.S3Enabled() {
		archiver, err := publish.NewS3Archiver(context.Background(), appConfig.S3Bucket, appConfig.S3Prefix, appConfig.S3Region)
		if err != nil {
			closeAll()
			return nil, func() {}, err
		}
		publishers = append(publishers, archiver)
		slog.Info("S3 result archive enabled", "bucket", appConfig.S3Bucket)
	}

	return publishers, closeAll, nil
}
