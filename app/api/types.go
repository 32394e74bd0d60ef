package api

import (
	"time"

	"github.com/lysyi3m/news-comb/app/feed"
	"github.com/lysyi3m/news-comb/app/news"
	"github.com/lysyi3m/news-comb/app/processing"
	"github.com/lysyi3m/news-comb/app/source"
	"github.com/lysyi3m/news-comb/app/storage"
	"github.com/lysyi3m/news-comb/app/tasks"
)

type GeneratorInterface interface {
	Run(channel feed.Channel, articles []news.Article) (string, error)
}

var _ GeneratorInterface = (*feed.Generator)(nil)

// Scheduler is the part of the task scheduler the triggers use.
type Scheduler interface {
	tasks.TaskSchedulerInterface
	Collect(sourceName string) (string, error)
	Process(sourceName string, status news.ArticleStatus) (string, error)
	GroupDuplicates() (string, error)
}

var _ Scheduler = (*tasks.Scheduler)(nil)

type StatsProvider interface {
	Stats() processing.AnalyzerStats
}

// TransportCache drops per-source transports after a config reload.
type TransportCache interface {
	Forget(sourceName string)
}

type Handler struct {
	configCache *source.ConfigCache
	store       storage.Store
	generator   GeneratorInterface
	scheduler   Scheduler
	analyzers   StatsProvider
	transports  TransportCache
	version     string
}

type resolveRequest struct {
	Method      string `json:"method" binding:"required"`
	CanonicalID int64  `json:"canonical_id"`
}

type sourceInfo struct {
	Name             string      `json:"name"`
	URL              string      `json:"url"`
	Kind             source.Kind `json:"kind"`
	Enabled          bool        `json:"enabled"`
	Interval         string      `json:"collection_interval"`
	MaxArticles      int         `json:"max_articles"`
	ExtractContent   bool        `json:"extract_content"`
	LastCollectedAt  *time.Time  `json:"last_collected_at,omitempty"`
	NextCollectionAt *time.Time  `json:"next_collection_at,omitempty"`
}

type articleResponse struct {
	ID             int64              `json:"id"`
	Title          string             `json:"title"`
	URL            string             `json:"url"`
	Summary        string             `json:"summary,omitempty"`
	Content        string             `json:"content,omitempty"`
	Author         string             `json:"author,omitempty"`
	PublishedAt    *time.Time         `json:"published_at,omitempty"`
	CollectedAt    time.Time          `json:"collected_at"`
	Source         string             `json:"source"`
	Status         news.ArticleStatus `json:"status"`
	SentimentScore *float64           `json:"sentiment_score,omitempty"`
	RelevanceScore *float64           `json:"relevance_score,omitempty"`
	Keywords       []string           `json:"keywords,omitempty"`
	Entities       []news.Entity      `json:"entities,omitempty"`

	Result *news.ProcessingResult `json:"processing_result,omitempty"`
}

type runResponse struct {
	ID          int64          `json:"id"`
	Source      string         `json:"source"`
	Status      news.RunStatus `json:"status"`
	Found       int            `json:"articles_found"`
	Collected   int            `json:"articles_collected"`
	Updated     int            `json:"articles_updated"`
	Errors      []string       `json:"errors"`
	StartedAt   time.Time      `json:"started_at"`
	CompletedAt time.Time      `json:"completed_at"`
	Duration    string         `json:"duration"`
}

type groupResponse struct {
	ID                int64            `json:"id"`
	Members           []int64          `json:"articles"`
	CanonicalID       int64            `json:"canonical_article"`
	TitleSimilarity   float64          `json:"title_similarity"`
	ContentSimilarity float64          `json:"content_similarity"`
	URLSimilarity     float64          `json:"url_similarity"`
	Status            news.GroupStatus `json:"status"`
	ResolutionMethod  string           `json:"resolution_method,omitempty"`
	CreatedAt         time.Time        `json:"created_at"`
	UpdatedAt         time.Time        `json:"updated_at"`
}

type taskResponse struct {
	ID          string          `json:"id"`
	Status      news.TaskStatus `json:"status"`
	Total       int             `json:"total_articles"`
	Processed   int             `json:"processed_articles"`
	Failed      int             `json:"failed_articles"`
	Skipped     int             `json:"skipped_articles"`
	Errors      []string        `json:"errors"`
	ScheduledAt time.Time       `json:"scheduled_at"`
	StartedAt   *time.Time      `json:"started_at,omitempty"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
	Duration    string          `json:"duration"`
	MemoryMB    float64         `json:"memory_usage_mb"`
}
