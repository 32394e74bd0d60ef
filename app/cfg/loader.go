package cfg

import (
	"cmp"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/jessevdk/go-flags"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type rawCfg struct {
	// Storage configuration
	DBDriver string `long:"db-driver" env:"DB_DRIVER" default:"sqlite" choice:"sqlite" choice:"postgres" description:"Storage engine"`
	DBPath   string `long:"db-path" env:"DB_PATH" default:"./data/news.db" description:"SQLite database file"`
	DBDSN    string `long:"db-dsn" env:"DB_DSN" description:"Postgres DSN (required with --db-driver=postgres)"`

	// Source and pipeline configuration
	SourcesDir   string `long:"sources-dir" env:"SOURCES_DIR" default:"./sources" description:"Directory containing source configuration files"`
	PipelineFile string `long:"pipeline-file" env:"PIPELINE_FILE" default:"./pipeline.yml" description:"Processing pipeline configuration (rules, analyzers, dedup)"`

	// HTTP configuration
	Port         string `long:"port" env:"PORT" default:"8080" description:"HTTP server port"`
	BaseUrl      string `long:"base-url" env:"BASE_URL" description:"Public base URL for the service (e.g., https://news.example.com)"`
	APIAccessKey string `long:"api-key" env:"API_ACCESS_KEY" description:"API access key for authentication (optional)"`

	// Scheduler configuration
	WorkerCount        int    `long:"worker-count" env:"WORKER_COUNT" default:"5" description:"Number of background workers for collection tasks"`
	SchedulerInterval  int    `long:"scheduler-interval" env:"SCHEDULER_INTERVAL" default:"30" description:"Scheduler interval in seconds"`
	ProcessingSchedule string `long:"processing-schedule" env:"PROCESSING_SCHEDULE" default:"*/5 * * * *" description:"Cron spec for processing sweeps (empty disables)"`
	DedupSchedule      string `long:"dedup-schedule" env:"DEDUP_SCHEDULE" default:"0 * * * *" description:"Cron spec for duplicate grouping sweeps (empty disables)"`
	BatchSize          int    `long:"batch-size" env:"BATCH_SIZE" description:"Articles per processing task (overrides pipeline batch_size)"`
	TaskTimeout        int    `long:"task-timeout" env:"TASK_TIMEOUT" default:"300" description:"Task timeout in seconds"`

	// Redis seen-set (optional)
	RedisAddr     string `long:"redis-addr" env:"REDIS_ADDR" description:"Redis address for the shared seen-URL set (optional)"`
	RedisPassword string `long:"redis-password" env:"REDIS_PASSWORD" description:"Redis password"`
	RedisDB       int    `long:"redis-db" env:"REDIS_DB" default:"0" description:"Redis database number"`
	SeenTTL       int    `long:"seen-ttl" env:"SEEN_TTL" default:"168" description:"Hours a collected URL stays in the seen set"`

	// Result publishing (optional)
	KafkaBrokers string `long:"kafka-brokers" env:"KAFKA_BROKERS" description:"Comma-separated Kafka brokers for analyzed-article events (optional)"`
	KafkaTopic   string `long:"kafka-topic" env:"KAFKA_TOPIC" default:"news.analyzed" description:"Kafka topic for analyzed-article events"`
	S3Bucket     string `long:"s3-bucket" env:"S3_BUCKET" description:"S3 bucket for archived processing results (optional)"`
	S3Region     string `long:"s3-region" env:"S3_REGION" default:"us-east-1" description:"S3 region"`
	S3Prefix     string `long:"s3-prefix" env:"S3_PREFIX" default:"results" description:"S3 key prefix"`

	// Application metadata
	UserAgent string `long:"user-agent" env:"USER_AGENT" default:"News Comb/1.0" description:"User agent string for HTTP requests"`
	Timezone  string `long:"timezone" env:"TZ" default:"UTC" description:"Timezone for timestamps (e.g., UTC, America/Sao_Paulo)"`
	Debug     bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`
}

var globalCfg *Cfg

func Load() (*Cfg, error) {
	return load(os.Args[1:])
}

func load(args []string) (*Cfg, error) {
	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)

	if _, err := parser.ParseArgs(args); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				return nil, nil
			}
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	if err := raw.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	cfg := &Cfg{
		DBDriver:           raw.DBDriver,
		DBPath:             raw.DBPath,
		DBDSN:              raw.DBDSN,
		SourcesDir:         raw.SourcesDir,
		PipelineFile:       raw.PipelineFile,
		Port:               raw.Port,
		BaseUrl:            raw.BaseUrl,
		APIAccessKey:       raw.APIAccessKey,
		WorkerCount:        raw.WorkerCount,
		SchedulerInterval:  raw.SchedulerInterval,
		ProcessingSchedule: raw.ProcessingSchedule,
		DedupSchedule:      raw.DedupSchedule,
		BatchSize:          raw.BatchSize,
		TaskTimeout:        time.Duration(raw.TaskTimeout) * time.Second,
		RedisAddr:          raw.RedisAddr,
		RedisPassword:      raw.RedisPassword,
		RedisDB:            raw.RedisDB,
		SeenTTL:            time.Duration(raw.SeenTTL) * time.Hour,
		KafkaBrokers:       splitList(raw.KafkaBrokers),
		KafkaTopic:         raw.KafkaTopic,
		S3Bucket:           raw.S3Bucket,
		S3Region:           raw.S3Region,
		S3Prefix:           raw.S3Prefix,
		UserAgent:          raw.UserAgent,
		Timezone:           raw.Timezone,
		Debug:              raw.Debug,
		Version:            GetVersion(),
	}

	if err := applyTimezone(cfg.Timezone); err != nil {
		slog.Warn("Invalid timezone, using system default", "timezone", cfg.Timezone, "error", err)
	}

	globalCfg = cfg

	return cfg, nil
}

func (r *rawCfg) validate() error {
	if r.DBDriver == "postgres" && r.DBDSN == "" {
		return fmt.Errorf("--db-dsn is required with the postgres driver")
	}
	if r.WorkerCount < 1 {
		return fmt.Errorf("worker count must be at least 1")
	}
	if r.SchedulerInterval < 1 {
		return fmt.Errorf("scheduler interval must be at least 1 second")
	}
	if r.BatchSize < 0 || r.TaskTimeout < 0 || r.SeenTTL < 0 {
		return fmt.Errorf("batch size, task timeout and seen TTL must be non-negative")
	}
	return nil
}

func Get() *Cfg {
	if globalCfg == nil {
		panic("configuration not loaded - call cfg.Load() first")
	}
	return globalCfg
}

func applyTimezone(timezone string) error {
	if timezone != "" {
		if loc, err := time.LoadLocation(timezone); err != nil {
			return err
		} else {
			time.Local = loc
			slog.Debug("Timezone configured", "timezone", timezone)
		}
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
