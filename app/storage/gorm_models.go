package storage

import (
	"time"

	"gorm.io/datatypes"

	"github.com/lysyi3m/news-comb/app/news"
)

type sourceModel struct {
	Name             string `gorm:"primaryKey;size:128"`
	URL              string `gorm:"size:1024"`
	Kind             string `gorm:"size:32"`
	LastCollectedAt  *time.Time
	NextCollectionAt *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (sourceModel) TableName() string { return "sources" }

type articleModel struct {
	ID             int64  `gorm:"primaryKey;autoIncrement"`
	Title          string `gorm:"size:512"`
	URL            string `gorm:"size:2048;uniqueIndex"`
	Content        string
	Summary        string
	Author         string `gorm:"size:256"`
	PublishedAt    *time.Time
	CollectedAt    time.Time `gorm:"index"`
	Source         string    `gorm:"size:128;index"`
	Status         string    `gorm:"size:32;index"`
	SentimentScore *float64
	RelevanceScore *float64
	Keywords       datatypes.JSONType[[]string]      `gorm:"type:jsonb"`
	Entities       datatypes.JSONType[[]news.Entity] `gorm:"type:jsonb"`
}

func (articleModel) TableName() string { return "articles" }

func (m articleModel) toArticle() news.Article {
	return news.Article{
		ID:             m.ID,
		Title:          m.Title,
		URL:            m.URL,
		Content:        m.Content,
		Summary:        m.Summary,
		Author:         m.Author,
		PublishedAt:    m.PublishedAt,
		CollectedAt:    m.CollectedAt,
		Source:         m.Source,
		Status:         news.ArticleStatus(m.Status),
		SentimentScore: m.SentimentScore,
		RelevanceScore: m.RelevanceScore,
		Keywords:       m.Keywords.Data(),
		Entities:       m.Entities.Data(),
	}
}

type collectionRunModel struct {
	ID          int64  `gorm:"primaryKey;autoIncrement"`
	Source      string `gorm:"size:128;index:idx_runs_source"`
	Status      string `gorm:"size:32"`
	Found       int
	Collected   int
	Updated     int
	Errors      datatypes.JSONType[[]string] `gorm:"type:jsonb"`
	StartedAt   time.Time                    `gorm:"index:idx_runs_source"`
	CompletedAt time.Time
	DurationMS  int64
}

func (collectionRunModel) TableName() string { return "collection_runs" }

type processingResultModel struct {
	ArticleID   int64                              `gorm:"primaryKey"`
	Sentiment   datatypes.JSONType[news.Sentiment] `gorm:"type:jsonb"`
	Entities    datatypes.JSONType[[]news.Entity]  `gorm:"type:jsonb"`
	Keywords    datatypes.JSONType[[]news.Keyword] `gorm:"type:jsonb"`
	Quality     datatypes.JSONType[news.Quality]   `gorm:"type:jsonb"`
	Overall     float64
	ProcessedAt time.Time
}

func (processingResultModel) TableName() string { return "processing_results" }

type duplicateGroupModel struct {
	ID                int64                       `gorm:"primaryKey;autoIncrement"`
	AnchorID          int64                       `gorm:"uniqueIndex"`
	Members           datatypes.JSONType[[]int64] `gorm:"type:jsonb"`
	CanonicalIndex    int
	TitleSimilarity   float64
	ContentSimilarity float64
	URLSimilarity     float64
	Status            string `gorm:"size:32;index"`
	ResolutionMethod  string `gorm:"size:64"`
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func (duplicateGroupModel) TableName() string { return "duplicate_groups" }

func (m duplicateGroupModel) toGroup() news.DuplicateGroup {
	return news.DuplicateGroup{
		ID:                m.ID,
		Members:           m.Members.Data(),
		Canonical:         m.CanonicalIndex,
		TitleSimilarity:   m.TitleSimilarity,
		ContentSimilarity: m.ContentSimilarity,
		URLSimilarity:     m.URLSimilarity,
		Status:            news.GroupStatus(m.Status),
		ResolutionMethod:  m.ResolutionMethod,
		CreatedAt:         m.CreatedAt,
		UpdatedAt:         m.UpdatedAt,
	}
}

type processingTaskModel struct {
	ID          string                      `gorm:"primaryKey;size:64"`
	ArticleIDs  datatypes.JSONType[[]int64] `gorm:"type:jsonb"`
	ScheduledAt time.Time                   `gorm:"index"`
	Status      string                      `gorm:"size:32"`
	Total       int
	Processed   int
	Failed      int
	Skipped     int
	Errors      datatypes.JSONType[[]string] `gorm:"type:jsonb"`
	StartedAt   *time.Time
	CompletedAt *time.Time
	DurationMS  int64
	MemoryMB    float64
}

func (processingTaskModel) TableName() string { return "processing_tasks" }

func (m processingTaskModel) toTask() news.ProcessingTask {
	return news.ProcessingTask{
		ID:          m.ID,
		ArticleIDs:  m.ArticleIDs.Data(),
		ScheduledAt: m.ScheduledAt,
		Status:      news.TaskStatus(m.Status),
		Total:       m.Total,
		Processed:   m.Processed,
		Failed:      m.Failed,
		Skipped:     m.Skipped,
		Errors:      m.Errors.Data(),
		StartedAt:   m.StartedAt,
		CompletedAt: m.CompletedAt,
		Duration:    time.Duration(m.DurationMS) * time.Millisecond,
		MemoryMB:    m.MemoryMB,
	}
}
