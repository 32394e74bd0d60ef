package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/lysyi3m/news-comb/app/news"
)

// Collection runs

func (s *SQLiteStore) AppendCollectionRun(ctx context.Context, r news.RunRecord) (int64, error) {
	res, err := s.exec(ctx, s.sb.Insert("collection_runs").
		Columns("source", "status", "found", "collected", "updated", "errors", "started_at", "completed_at", "duration_ms").
		Values(r.Source, string(r.Status), r.Found, r.Collected, r.Updated, encodeJSON(nonNil(r.Errors)), r.StartedAt.UTC(), r.CompletedAt.UTC(), r.Duration().Milliseconds()))
	if err != nil {
		return 0, fmt.Errorf("failed to append collection run: %w", err)
	}
	return res.LastInsertId()
}

func (s *SQLiteStore) ListCollectionRuns(ctx context.Context, sourceName string, limit int) ([]news.RunRecord, error) {
	q := s.sb.Select("id", "source", "status", "found", "collected", "updated", "errors", "started_at", "completed_at").
		From("collection_runs").OrderBy("started_at DESC", "id DESC")
	if sourceName != "" {
		q = q.Where(sq.Eq{"source": sourceName})
	}
	if limit > 0 {
		q = q.Limit(uint64(limit))
	}

	rows, err := s.query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to list collection runs: %w", err)
	}
	defer rows.Close()

	var records []news.RunRecord
	for rows.Next() {
		var r news.RunRecord
		var status, errs string
		if err := rows.Scan(&r.ID, &r.Source, &status, &r.Found, &r.Collected, &r.Updated, &errs, &r.StartedAt, &r.CompletedAt); err != nil {
			return nil, fmt.Errorf("failed to scan collection run row: %w", err)
		}
		r.Status = news.RunStatus(status)
		if err := decodeJSON(errs, &r.Errors); err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// Processing results

func (s *SQLiteStore) UpsertProcessingResult(ctx context.Context, r news.ProcessingResult) error {
	_, err := s.exec(ctx, s.sb.Insert("processing_results").
		Columns("article_id", "sentiment", "entities", "keywords", "quality", "overall", "processed_at").
		Values(r.ArticleID, encodeJSON(r.Sentiment), encodeJSON(nonNil(r.Entities)), encodeJSON(nonNil(r.Keywords)), encodeJSON(r.Quality), r.Quality.Overall, r.ProcessedAt.UTC()).
		Suffix(`ON CONFLICT (article_id) DO UPDATE SET
			sentiment = excluded.sentiment,
			entities = excluded.entities,
			keywords = excluded.keywords,
			quality = excluded.quality,
			overall = excluded.overall,
			processed_at = excluded.processed_at`))
	if err != nil {
		return fmt.Errorf("failed to upsert processing result: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetProcessingResult(ctx context.Context, articleID int64) (*news.ProcessingResult, error) {
	row, err := s.queryRow(ctx, s.sb.Select("article_id", "sentiment", "entities", "keywords", "quality", "processed_at").
		From("processing_results").Where(sq.Eq{"article_id": articleID}))
	if err != nil {
		return nil, err
	}

	var r news.ProcessingResult
	var sentiment, entities, keywords, quality string
	err = row.Scan(&r.ArticleID, &sentiment, &entities, &keywords, &quality, &r.ProcessedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get processing result: %w", err)
	}

	for _, f := range []struct {
		raw  string
		dest any
	}{{sentiment, &r.Sentiment}, {entities, &r.Entities}, {keywords, &r.Keywords}, {quality, &r.Quality}} {
		if err := decodeJSON(f.raw, f.dest); err != nil {
			return nil, err
		}
	}
	return &r, nil
}

// Duplicate groups

// CreateOrUpdateDuplicateGroup inserts a group keyed by its lowest member ID.
// A regrouping refreshes an unresolved group and leaves a resolved one alone.
// Groups with an ID are updated in place, which is how resolution is stored.
func (s *SQLiteStore) CreateOrUpdateDuplicateGroup(ctx context.Context, g news.DuplicateGroup) (int64, error) {
	if len(g.Members) == 0 {
		return 0, fmt.Errorf("duplicate group has no members")
	}
	now := time.Now().UTC()
	anchor := slices.Min(g.Members)
	status := g.Status
	if status == "" {
		status = news.GroupUnresolved
	}

	if g.ID != 0 {
		res, err := s.exec(ctx, s.sb.Update("duplicate_groups").
			Set("members", encodeJSON(g.Members)).
			Set("canonical_index", g.Canonical).
			Set("title_similarity", g.TitleSimilarity).
			Set("content_similarity", g.ContentSimilarity).
			Set("url_similarity", g.URLSimilarity).
			Set("status", string(status)).
			Set("resolution_method", g.ResolutionMethod).
			Set("updated_at", now).
			Where(sq.Eq{"id": g.ID}))
		if err != nil {
			return 0, fmt.Errorf("failed to update duplicate group: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return 0, ErrNotFound
		}
		return g.ID, nil
	}

	_, err := s.exec(ctx, s.sb.Insert("duplicate_groups").
		Columns("anchor_id", "members", "canonical_index", "title_similarity", "content_similarity", "url_similarity", "status", "resolution_method", "created_at", "updated_at").
		Values(anchor, encodeJSON(g.Members), g.Canonical, g.TitleSimilarity, g.ContentSimilarity, g.URLSimilarity, string(status), g.ResolutionMethod, now, now).
		Suffix(`ON CONFLICT (anchor_id) DO UPDATE SET
			members = excluded.members,
			canonical_index = excluded.canonical_index,
			title_similarity = excluded.title_similarity,
			content_similarity = excluded.content_similarity,
			url_similarity = excluded.url_similarity,
			updated_at = excluded.updated_at
			WHERE duplicate_groups.status = 'unresolved'`))
	if err != nil {
		return 0, fmt.Errorf("failed to save duplicate group: %w", err)
	}

	row, err := s.queryRow(ctx, s.sb.Select("id").From("duplicate_groups").Where(sq.Eq{"anchor_id": anchor}))
	if err != nil {
		return 0, err
	}
	var id int64
	if err := row.Scan(&id); err != nil {
		return 0, fmt.Errorf("failed to get duplicate group id: %w", err)
	}
	return id, nil
}

var groupColumns = []string{"id", "members", "canonical_index", "title_similarity", "content_similarity", "url_similarity", "status", "resolution_method", "created_at", "updated_at"}

func (s *SQLiteStore) GetDuplicateGroup(ctx context.Context, id int64) (*news.DuplicateGroup, error) {
	rows, err := s.query(ctx, s.sb.Select(groupColumns...).From("duplicate_groups").Where(sq.Eq{"id": id}))
	if err != nil {
		return nil, fmt.Errorf("failed to get duplicate group: %w", err)
	}
	groups, err := scanGroups(rows)
	if err != nil {
		return nil, err
	}
	if len(groups) == 0 {
		return nil, ErrNotFound
	}
	return &groups[0], nil
}

func (s *SQLiteStore) ListDuplicateGroups(ctx context.Context, status news.GroupStatus, limit int) ([]news.DuplicateGroup, error) {
	q := s.sb.Select(groupColumns...).From("duplicate_groups").OrderBy("updated_at DESC", "id DESC")
	if status != "" {
		q = q.Where(sq.Eq{"status": string(status)})
	}
	if limit > 0 {
		q = q.Limit(uint64(limit))
	}

	rows, err := s.query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to list duplicate groups: %w", err)
	}
	return scanGroups(rows)
}

func scanGroups(rows *sql.Rows) ([]news.DuplicateGroup, error) {
	defer rows.Close()

	var groups []news.DuplicateGroup
	for rows.Next() {
		var g news.DuplicateGroup
		var members, status string
		if err := rows.Scan(&g.ID, &members, &g.Canonical, &g.TitleSimilarity, &g.ContentSimilarity, &g.URLSimilarity, &status, &g.ResolutionMethod, &g.CreatedAt, &g.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan duplicate group row: %w", err)
		}
		g.Status = news.GroupStatus(status)
		if err := decodeJSON(members, &g.Members); err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

// Processing tasks

func (s *SQLiteStore) SaveProcessingTask(ctx context.Context, t *news.ProcessingTask) error {
	_, err := s.exec(ctx, s.sb.Insert("processing_tasks").
		Columns("id", "article_ids", "scheduled_at", "status", "total", "processed", "failed", "skipped", "errors", "started_at", "completed_at", "duration_ms", "memory_mb").
		Values(t.ID, encodeJSON(nonNil(t.ArticleIDs)), t.ScheduledAt.UTC(), string(t.Status), t.Total, t.Processed, t.Failed, t.Skipped, encodeJSON(nonNil(t.Errors)),
			nullTime(t.StartedAt), nullTime(t.CompletedAt), t.Duration.Milliseconds(), t.MemoryMB).
		Suffix(`ON CONFLICT (id) DO UPDATE SET
			status = excluded.status,
			total = excluded.total,
			processed = excluded.processed,
			failed = excluded.failed,
			skipped = excluded.skipped,
			errors = excluded.errors,
			started_at = excluded.started_at,
			completed_at = excluded.completed_at,
			duration_ms = excluded.duration_ms,
			memory_mb = excluded.memory_mb`))
	if err != nil {
		return fmt.Errorf("failed to save processing task: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListProcessingTasks(ctx context.Context, limit int) ([]news.ProcessingTask, error) {
	q := s.sb.Select("id", "article_ids", "scheduled_at", "status", "total", "processed", "failed", "skipped", "errors", "started_at", "completed_at", "duration_ms", "memory_mb").
		From("processing_tasks").OrderBy("scheduled_at DESC")
	if limit > 0 {
		q = q.Limit(uint64(limit))
	}

	rows, err := s.query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to list processing tasks: %w", err)
	}
	defer rows.Close()

	var tasks []news.ProcessingTask
	for rows.Next() {
		var (
			t                      news.ProcessingTask
			ids, status, errs      string
			startedAt, completedAt sql.NullTime
			durationMS             int64
		)
		if err := rows.Scan(&t.ID, &ids, &t.ScheduledAt, &status, &t.Total, &t.Processed, &t.Failed, &t.Skipped, &errs, &startedAt, &completedAt, &durationMS, &t.MemoryMB); err != nil {
			return nil, fmt.Errorf("failed to scan processing task row: %w", err)
		}
		t.Status = news.TaskStatus(status)
		t.StartedAt = timePtr(startedAt)
		t.CompletedAt = timePtr(completedAt)
		t.Duration = time.Duration(durationMS) * time.Millisecond
		if err := decodeJSON(ids, &t.ArticleIDs); err != nil {
			return nil, err
		}
		if err := decodeJSON(errs, &t.Errors); err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// Sources

func (s *SQLiteStore) UpsertSource(ctx context.Context, name, url, kind string) error {
	now := time.Now().UTC()
	_, err := s.exec(ctx, s.sb.Insert("sources").
		Columns("name", "url", "kind", "created_at", "updated_at").
		Values(name, url, kind, now, now).
		Suffix(`ON CONFLICT (name) DO UPDATE SET
			url = excluded.url,
			kind = excluded.kind,
			updated_at = excluded.updated_at`))
	if err != nil {
		return fmt.Errorf("failed to upsert source: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetSource(ctx context.Context, name string) (*news.SourceState, error) {
	row, err := s.queryRow(ctx, s.sb.Select("name", "url", "kind", "last_collected_at", "next_collection_at", "created_at", "updated_at").
		From("sources").Where(sq.Eq{"name": name}))
	if err != nil {
		return nil, err
	}

	var src news.SourceState
	var lastCollected, nextCollection sql.NullTime
	err = row.Scan(&src.Name, &src.URL, &src.Kind, &lastCollected, &nextCollection, &src.CreatedAt, &src.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get source: %w", err)
	}
	src.LastCollectedAt = timePtr(lastCollected)
	src.NextCollectionAt = timePtr(nextCollection)
	return &src, nil
}

func (s *SQLiteStore) UpdateSourceSchedule(ctx context.Context, name string, collectedAt, nextCollection time.Time) error {
	res, err := s.exec(ctx, s.sb.Update("sources").
		Set("last_collected_at", collectedAt.UTC()).
		Set("next_collection_at", nextCollection.UTC()).
		Set("updated_at", time.Now().UTC()).
		Where(sq.Eq{"name": name}))
	if err != nil {
		return fmt.Errorf("failed to update source schedule: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// nonNil keeps empty lists encoded as [] instead of null.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
