package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/lysyi3m/news-comb/app/news"
)

var articleColumns = []string{
	"id", "title", "url", "content", "summary", "author", "published_at", "collected_at",
	"source", "status", "sentiment_score", "relevance_score", "keywords", "entities",
}

func (s *SQLiteStore) ExistsByURL(ctx context.Context, url string) (bool, error) {
	row, err := s.queryRow(ctx, s.sb.Select("1").From("articles").Where(sq.Eq{"url": url}).Limit(1))
	if err != nil {
		return false, err
	}

	var one int
	err = row.Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check article URL: %w", err)
	}
	return true, nil
}

func (s *SQLiteStore) CreateArticle(ctx context.Context, c news.Candidate) (int64, error) {
	res, err := s.exec(ctx, s.sb.Insert("articles").
		Columns("title", "url", "content", "author", "published_at", "collected_at", "source", "status").
		Values(c.Title, c.URL, c.Content, c.Author, nullTime(c.PublishedAt), time.Now().UTC(), c.Source, string(news.StatusCollected)))
	if err != nil {
		if isUniqueViolation(err) {
			return 0, ErrDuplicate
		}
		return 0, fmt.Errorf("failed to create article: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get article id: %w", err)
	}
	return id, nil
}

func (s *SQLiteStore) GetArticle(ctx context.Context, id int64) (*news.Article, error) {
	rows, err := s.query(ctx, s.sb.Select(articleColumns...).From("articles").Where(sq.Eq{"id": id}))
	if err != nil {
		return nil, fmt.Errorf("failed to get article: %w", err)
	}
	articles, err := scanArticles(rows)
	if err != nil {
		return nil, err
	}
	if len(articles) == 0 {
		return nil, ErrNotFound
	}
	return &articles[0], nil
}

func (s *SQLiteStore) GetArticles(ctx context.Context, ids []int64) ([]news.Article, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := s.query(ctx, s.sb.Select(articleColumns...).From("articles").Where(sq.Eq{"id": ids}).OrderBy("id"))
	if err != nil {
		return nil, fmt.Errorf("failed to get articles: %w", err)
	}
	return scanArticles(rows)
}

func (s *SQLiteStore) ListArticles(ctx context.Context, filter news.ArticleFilter) ([]news.Article, error) {
	q := s.sb.Select(articleColumns...).From("articles").OrderBy("collected_at DESC", "id DESC")

	if filter.Source != "" {
		q = q.Where(sq.Eq{"source": filter.Source})
	}
	if filter.Status != "" {
		q = q.Where(sq.Eq{"status": string(filter.Status)})
	}
	if filter.MissingContent {
		q = q.Where(sq.Eq{"content": ""})
	}
	if filter.Since != nil {
		q = q.Where(sq.GtOrEq{"collected_at": filter.Since.UTC()})
	}
	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit))
	}

	rows, err := s.query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to list articles: %w", err)
	}
	return scanArticles(rows)
}

func (s *SQLiteStore) UpdateArticle(ctx context.Context, id int64, u news.ArticleUpdate) error {
	q := s.sb.Update("articles").Where(sq.Eq{"id": id})
	changed := false

	set := func(column string, value any) {
		q = q.Set(column, value)
		changed = true
	}

	if u.Content != nil {
		set("content", *u.Content)
	}
	if u.Summary != nil {
		set("summary", *u.Summary)
	}
	if u.Status != nil {
		set("status", string(*u.Status))
	}
	if u.SentimentScore != nil {
		set("sentiment_score", *u.SentimentScore)
	}
	if u.RelevanceScore != nil {
		set("relevance_score", *u.RelevanceScore)
	}
	if u.Keywords != nil {
		set("keywords", encodeJSON(u.Keywords))
	}
	if u.Entities != nil {
		set("entities", encodeJSON(u.Entities))
	}

	if !changed {
		return nil
	}

	res, err := s.exec(ctx, q)
	if err != nil {
		return fmt.Errorf("failed to update article: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func scanArticles(rows *sql.Rows) ([]news.Article, error) {
	defer rows.Close()

	var articles []news.Article
	for rows.Next() {
		var (
			a                    news.Article
			publishedAt          sql.NullTime
			status               string
			sentiment, relevance sql.NullFloat64
			keywords, entities   string
		)
		err := rows.Scan(
			&a.ID, &a.Title, &a.URL, &a.Content, &a.Summary, &a.Author, &publishedAt, &a.CollectedAt,
			&a.Source, &status, &sentiment, &relevance, &keywords, &entities,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan article row: %w", err)
		}

		a.Status = news.ArticleStatus(status)
		a.PublishedAt = timePtr(publishedAt)
		a.SentimentScore = floatPtr(sentiment)
		a.RelevanceScore = floatPtr(relevance)
		if err := decodeJSON(keywords, &a.Keywords); err != nil {
			return nil, err
		}
		if err := decodeJSON(entities, &a.Entities); err != nil {
			return nil, err
		}
		articles = append(articles, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating article rows: %w", err)
	}
	return articles, nil
}

func encodeJSON(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return "null"
	}
	return string(data)
}

func decodeJSON(s string, v any) error {
	if s == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(s), v); err != nil {
		return fmt.Errorf("failed to decode stored JSON: %w", err)
	}
	return nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time.UTC()
	return &v
}

func floatPtr(f sql.NullFloat64) *float64 {
	if !f.Valid {
		return nil
	}
	v := f.Float64
	return &v
}
