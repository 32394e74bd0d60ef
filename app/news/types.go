package news

import (
	"time"
)

// Collection types

type Candidate struct {
	Title       string
	URL         string
	Content     string
	Author      string
	PublishedAt *time.Time // nil when the source date is missing or unparseable
	Source      string
}

type RunStatus string

const (
	RunSuccess RunStatus = "success"
	RunPartial RunStatus = "partial"
	RunError   RunStatus = "error"
)

type RunRecord struct {
	ID          int64
	Source      string
	Status      RunStatus
	Found       int
	Collected   int
	Updated     int
	Errors      []string
	StartedAt   time.Time
	CompletedAt time.Time
}

func (r RunRecord) Duration() time.Duration {
	if r.CompletedAt.IsZero() {
		return 0
	}
	return r.CompletedAt.Sub(r.StartedAt)
}

// Stored article types

type ArticleStatus string

const (
	StatusCollected ArticleStatus = "collected"
	StatusProcessed ArticleStatus = "processed"
	StatusAnalyzed  ArticleStatus = "analyzed"
)

type Article struct {
	ID             int64
	Title          string
	URL            string
	Content        string
	Summary        string
	Author         string
	PublishedAt    *time.Time
	CollectedAt    time.Time
	Source         string
	Status         ArticleStatus
	SentimentScore *float64
	RelevanceScore *float64
	Keywords       []string
	Entities       []Entity
}

// ArticleUpdate carries the fields a caller wants to change; nil fields are left untouched.
type ArticleUpdate struct {
	Content        *string
	Summary        *string
	Status         *ArticleStatus
	SentimentScore *float64
	RelevanceScore *float64
	Keywords       []string
	Entities       []Entity
}

type ArticleFilter struct {
	Source         string
	Status         ArticleStatus
	MissingContent bool
	Since          *time.Time
	Limit          int
}

// Analysis result types

type SentimentLabel string

const (
	Positive SentimentLabel = "positive"
	Negative SentimentLabel = "negative"
	Neutral  SentimentLabel = "neutral"
)

type Sentiment struct {
	Score      float64            `json:"score"`
	Label      SentimentLabel     `json:"label"`
	Confidence float64            `json:"confidence"`
	Backend    string             `json:"backend"`
	Details    map[string]float64 `json:"details,omitempty"`
}

type Entity struct {
	Text       string  `json:"text"`
	Type       string  `json:"type"`
	Start      int     `json:"start"`
	End        int     `json:"end"`
	Confidence float64 `json:"confidence"`
}

type Keyword struct {
	Text   string  `json:"text"`
	Score  float64 `json:"score"`
	Method string  `json:"method"`
}

type QualityFactors struct {
	HasTitle      bool `json:"has_title"`
	HasContent    bool `json:"has_content"`
	HasAuthor     bool `json:"has_author"`
	HasDate       bool `json:"has_date"`
	ContentLength int  `json:"content_length"`
	TitleLength   int  `json:"title_length"`
	HasKeywords   bool `json:"has_keywords"`
	HasEntities   bool `json:"has_entities"`
	KeywordCount  int  `json:"keyword_count"`
	EntityCount   int  `json:"entity_count"`
}

type Quality struct {
	Readability  float64        `json:"readability"`
	Completeness float64        `json:"completeness"`
	Accuracy     float64        `json:"accuracy"`
	Relevance    float64        `json:"relevance"`
	Overall      float64        `json:"overall"`
	Factors      QualityFactors `json:"factors"`
}

type ProcessingResult struct {
	ArticleID   int64     `json:"article_id"`
	Sentiment   Sentiment `json:"sentiment"`
	Entities    []Entity  `json:"entities"`
	Keywords    []Keyword `json:"keywords"`
	Quality     Quality   `json:"quality"`
	ProcessedAt time.Time `json:"processed_at"`
}

// Duplicate grouping types

type GroupStatus string

const (
	GroupUnresolved GroupStatus = "unresolved"
	GroupResolved   GroupStatus = "resolved"
)

type DuplicateGroup struct {
	ID                int64
	Members           []int64 // article IDs
	Canonical         int     // index into Members
	TitleSimilarity   float64
	ContentSimilarity float64
	URLSimilarity     float64
	Status            GroupStatus
	ResolutionMethod  string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func (g DuplicateGroup) CanonicalID() int64 {
	if g.Canonical < 0 || g.Canonical >= len(g.Members) {
		return 0
	}
	return g.Members[g.Canonical]
}

// Source bookkeeping kept by storage between runs

type SourceState struct {
	Name             string
	URL              string
	Kind             string
	LastCollectedAt  *time.Time
	NextCollectionAt *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}
