package publish

import (
	"context"
	"errors"
	"time"

	"github.com/lysyi3m/news-comb/app/news"
)

const EventArticleAnalyzed = "article.analyzed"

// Event is the JSON document sent downstream for each analyzed article.
type Event struct {
	Type        string         `json:"type"`
	ArticleID   int64          `json:"article_id"`
	Source      string         `json:"source"`
	Title       string         `json:"title"`
	URL         string         `json:"url"`
	Author      string         `json:"author,omitempty"`
	PublishedAt *time.Time     `json:"published_at,omitempty"`
	Sentiment   news.Sentiment `json:"sentiment"`
	Keywords    []news.Keyword `json:"keywords"`
	Entities    []news.Entity  `json:"entities"`
	Quality     news.Quality   `json:"quality"`
	ProcessedAt time.Time      `json:"processed_at"`
}

func NewEvent(article news.Article, result news.ProcessingResult) Event {
	return Event{
		Type:        EventArticleAnalyzed,
		ArticleID:   article.ID,
		Source:      article.Source,
		Title:       article.Title,
		URL:         article.URL,
		Author:      article.Author,
		PublishedAt: article.PublishedAt,
		Sentiment:   result.Sentiment,
		Keywords:    result.Keywords,
		Entities:    result.Entities,
		Quality:     result.Quality,
		ProcessedAt: result.ProcessedAt,
	}
}

type Publisher interface {
	Publish(ctx context.Context, article news.Article, result news.ProcessingResult) error
}

// Multi sends to every publisher and joins their errors.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, article news.Article, result news.ProcessingResult) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, article, result); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
