package storage

import (
	"context"
	"errors"
	"time"

	"github.com/lysyi3m/news-comb/app/news"
)

var (
	// ErrDuplicate is returned by CreateArticle when the URL is already stored.
	ErrDuplicate = errors.New("article with this URL already exists")
	ErrNotFound  = errors.New("record not found")
)

type ArticleRepository interface {
	ExistsByURL(ctx context.Context, url string) (bool, error)
	CreateArticle(ctx context.Context, candidate news.Candidate) (int64, error)
	GetArticle(ctx context.Context, id int64) (*news.Article, error)
	GetArticles(ctx context.Context, ids []int64) ([]news.Article, error)
	ListArticles(ctx context.Context, filter news.ArticleFilter) ([]news.Article, error)
	UpdateArticle(ctx context.Context, id int64, update news.ArticleUpdate) error
}

type RunRepository interface {
	AppendCollectionRun(ctx context.Context, record news.RunRecord) (int64, error)
	ListCollectionRuns(ctx context.Context, sourceName string, limit int) ([]news.RunRecord, error)
}

type ResultRepository interface {
	UpsertProcessingResult(ctx context.Context, result news.ProcessingResult) error
	GetProcessingResult(ctx context.Context, articleID int64) (*news.ProcessingResult, error)
	UpdateArticle(ctx context.Context, id int64, update news.ArticleUpdate) error
}

type GroupRepository interface {
	CreateOrUpdateDuplicateGroup(ctx context.Context, group news.DuplicateGroup) (int64, error)
	GetDuplicateGroup(ctx context.Context, id int64) (*news.DuplicateGroup, error)
	ListDuplicateGroups(ctx context.Context, status news.GroupStatus, limit int) ([]news.DuplicateGroup, error)
}

type TaskRepository interface {
	SaveProcessingTask(ctx context.Context, task *news.ProcessingTask) error
	ListProcessingTasks(ctx context.Context, limit int) ([]news.ProcessingTask, error)
}

type SourceRepository interface {
	UpsertSource(ctx context.Context, name, url, kind string) error
	GetSource(ctx context.Context, name string) (*news.SourceState, error)
	UpdateSourceSchedule(ctx context.Context, name string, collectedAt, nextCollection time.Time) error
}

type Stats struct {
	Articles         int            `json:"articles"`
	ByStatus         map[string]int `json:"by_status"`
	Sources          int            `json:"sources"`
	CollectionRuns   int            `json:"collection_runs"`
	Results          int            `json:"processing_results"`
	UnresolvedGroups int            `json:"unresolved_groups"`
	ProcessingTasks  int            `json:"processing_tasks"`
}

// Store is the full persistence surface. Both engines implement it.
type Store interface {
	ArticleRepository
	RunRepository
	ResultRepository
	GroupRepository
	TaskRepository
	SourceRepository

	Stats(ctx context.Context) (Stats, error)
	Close() error
}

var (
	_ Store = (*SQLiteStore)(nil)
	_ Store = (*GormStore)(nil)
)
