package storage

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/lysyi3m/news-comb/app/news"
)

// GormStore is the PostgreSQL engine. The schema is kept by AutoMigrate.
type GormStore struct {
	db *gorm.DB
}

func OpenPostgres(dsn string) (*GormStore, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.AutoMigrate(
		&sourceModel{},
		&articleModel{},
		&collectionRunModel{},
		&processingResultModel{},
		&duplicateGroupModel{},
		&processingTaskModel{},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &GormStore{db: db}, nil
}

func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Articles

func (s *GormStore) ExistsByURL(ctx context.Context, url string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&articleModel{}).Where("url = ?", url).Limit(1).Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check article URL: %w", err)
	}
	return count > 0, nil
}

func (s *GormStore) CreateArticle(ctx context.Context, c news.Candidate) (int64, error) {
	m := articleModel{
		Title:       c.Title,
		URL:         c.URL,
		Content:     c.Content,
		Author:      c.Author,
		PublishedAt: c.PublishedAt,
		CollectedAt: time.Now().UTC(),
		Source:      c.Source,
		Status:      string(news.StatusCollected),
		Keywords:    datatypes.NewJSONType([]string{}),
		Entities:    datatypes.NewJSONType([]news.Entity{}),
	}
	if err := s.db.WithContext(ctx).Create(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return 0, ErrDuplicate
		}
		return 0, fmt.Errorf("failed to create article: %w", err)
	}
	return m.ID, nil
}

func (s *GormStore) GetArticle(ctx context.Context, id int64) (*news.Article, error) {
	var m articleModel
	err := s.db.WithContext(ctx).First(&m, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get article: %w", err)
	}
	a := m.toArticle()
	return &a, nil
}

func (s *GormStore) GetArticles(ctx context.Context, ids []int64) ([]news.Article, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var models []articleModel
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Order("id").Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to get articles: %w", err)
	}
	return toArticles(models), nil
}

func (s *GormStore) ListArticles(ctx context.Context, filter news.ArticleFilter) ([]news.Article, error) {
	q := s.db.WithContext(ctx).Model(&articleModel{}).Order("collected_at DESC, id DESC")
	if filter.Source != "" {
		q = q.Where("source = ?", filter.Source)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", string(filter.Status))
	}
	if filter.MissingContent {
		q = q.Where("content = ''")
	}
	if filter.Since != nil {
		q = q.Where("collected_at >= ?", filter.Since.UTC())
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}

	var models []articleModel
	if err := q.Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to list articles: %w", err)
	}
	return toArticles(models), nil
}

func (s *GormStore) UpdateArticle(ctx context.Context, id int64, u news.ArticleUpdate) error {
	updates := map[string]any{}
	if u.Content != nil {
		updates["content"] = *u.Content
	}
	if u.Summary != nil {
		updates["summary"] = *u.Summary
	}
	if u.Status != nil {
		updates["status"] = string(*u.Status)
	}
	if u.SentimentScore != nil {
		updates["sentiment_score"] = *u.SentimentScore
	}
	if u.RelevanceScore != nil {
		updates["relevance_score"] = *u.RelevanceScore
	}
	if u.Keywords != nil {
		updates["keywords"] = datatypes.NewJSONType(u.Keywords)
	}
	if u.Entities != nil {
		updates["entities"] = datatypes.NewJSONType(u.Entities)
	}
	if len(updates) == 0 {
		return nil
	}

	res := s.db.WithContext(ctx).Model(&articleModel{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("failed to update article: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func toArticles(models []articleModel) []news.Article {
	articles := make([]news.Article, 0, len(models))
	for _, m := range models {
		articles = append(articles, m.toArticle())
	}
	return articles
}

// Collection runs

func (s *GormStore) AppendCollectionRun(ctx context.Context, r news.RunRecord) (int64, error) {
	m := collectionRunModel{
		Source:      r.Source,
		Status:      string(r.Status),
		Found:       r.Found,
		Collected:   r.Collected,
		Updated:     r.Updated,
		Errors:      datatypes.NewJSONType(nonNil(r.Errors)),
		StartedAt:   r.StartedAt.UTC(),
		CompletedAt: r.CompletedAt.UTC(),
		DurationMS:  r.Duration().Milliseconds(),
	}
	if err := s.db.WithContext(ctx).Create(&m).Error; err != nil {
		return 0, fmt.Errorf("failed to append collection run: %w", err)
	}
	return m.ID, nil
}

func (s *GormStore) ListCollectionRuns(ctx context.Context, sourceName string, limit int) ([]news.RunRecord, error) {
	q := s.db.WithContext(ctx).Order("started_at DESC, id DESC")
	if sourceName != "" {
		q = q.Where("source = ?", sourceName)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}

	var models []collectionRunModel
	if err := q.Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to list collection runs: %w", err)
	}

	records := make([]news.RunRecord, 0, len(models))
	for _, m := range models {
		records = append(records, news.RunRecord{
			ID:          m.ID,
			Source:      m.Source,
			Status:      news.RunStatus(m.Status),
			Found:       m.Found,
			Collected:   m.Collected,
			Updated:     m.Updated,
			Errors:      m.Errors.Data(),
			StartedAt:   m.StartedAt,
			CompletedAt: m.CompletedAt,
		})
	}
	return records, nil
}

// Processing results

func (s *GormStore) UpsertProcessingResult(ctx context.Context, r news.ProcessingResult) error {
	m := processingResultModel{
		ArticleID:   r.ArticleID,
		Sentiment:   datatypes.NewJSONType(r.Sentiment),
		Entities:    datatypes.NewJSONType(nonNil(r.Entities)),
		Keywords:    datatypes.NewJSONType(nonNil(r.Keywords)),
		Quality:     datatypes.NewJSONType(r.Quality),
		Overall:     r.Quality.Overall,
		ProcessedAt: r.ProcessedAt.UTC(),
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "article_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"sentiment", "entities", "keywords", "quality", "overall", "processed_at"}),
	}).Create(&m).Error
	if err != nil {
		return fmt.Errorf("failed to upsert processing result: %w", err)
	}
	return nil
}

func (s *GormStore) GetProcessingResult(ctx context.Context, articleID int64) (*news.ProcessingResult, error) {
	var m processingResultModel
	err := s.db.WithContext(ctx).Where("article_id = ?", articleID).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get processing result: %w", err)
	}
	return &news.ProcessingResult{
		ArticleID:   m.ArticleID,
		Sentiment:   m.Sentiment.Data(),
		Entities:    m.Entities.Data(),
		Keywords:    m.Keywords.Data(),
		Quality:     m.Quality.Data(),
		ProcessedAt: m.ProcessedAt,
	}, nil
}

// Duplicate groups

func (s *GormStore) CreateOrUpdateDuplicateGroup(ctx context.Context, g news.DuplicateGroup) (int64, error) {
	if len(g.Members) == 0 {
		return 0, fmt.Errorf("duplicate group has no members")
	}
	status := g.Status
	if status == "" {
		status = news.GroupUnresolved
	}

	m := duplicateGroupModel{
		ID:                g.ID,
		AnchorID:          slices.Min(g.Members),
		Members:           datatypes.NewJSONType(g.Members),
		CanonicalIndex:    g.Canonical,
		TitleSimilarity:   g.TitleSimilarity,
		ContentSimilarity: g.ContentSimilarity,
		URLSimilarity:     g.URLSimilarity,
		Status:            string(status),
		ResolutionMethod:  g.ResolutionMethod,
	}

	if g.ID != 0 {
		res := s.db.WithContext(ctx).Model(&duplicateGroupModel{}).Where("id = ?", g.ID).Updates(map[string]any{
			"members":            m.Members,
			"canonical_index":    m.CanonicalIndex,
			"title_similarity":   m.TitleSimilarity,
			"content_similarity": m.ContentSimilarity,
			"url_similarity":     m.URLSimilarity,
			"status":             m.Status,
			"resolution_method":  m.ResolutionMethod,
		})
		if res.Error != nil {
			return 0, fmt.Errorf("failed to update duplicate group: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return 0, ErrNotFound
		}
		return g.ID, nil
	}

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "anchor_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"members", "canonical_index", "title_similarity", "content_similarity", "url_similarity", "updated_at"}),
		Where: clause.Where{Exprs: []clause.Expression{
			clause.Eq{Column: clause.Column{Table: "duplicate_groups", Name: "status"}, Value: string(news.GroupUnresolved)},
		}},
	}).Create(&m).Error
	if err != nil {
		return 0, fmt.Errorf("failed to save duplicate group: %w", err)
	}

	var saved duplicateGroupModel
	if err := s.db.WithContext(ctx).Select("id").Where("anchor_id = ?", m.AnchorID).First(&saved).Error; err != nil {
		return 0, fmt.Errorf("failed to get duplicate group id: %w", err)
	}
	return saved.ID, nil
}

func (s *GormStore) GetDuplicateGroup(ctx context.Context, id int64) (*news.DuplicateGroup, error) {
	var m duplicateGroupModel
	err := s.db.WithContext(ctx).First(&m, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get duplicate group: %w", err)
	}
	g := m.toGroup()
	return &g, nil
}

func (s *GormStore) ListDuplicateGroups(ctx context.Context, status news.GroupStatus, limit int) ([]news.DuplicateGroup, error) {
	q := s.db.WithContext(ctx).Order("updated_at DESC, id DESC")
	if status != "" {
		q = q.Where("status = ?", string(status))
	}
	if limit > 0 {
		q = q.Limit(limit)
	}

	var models []duplicateGroupModel
	if err := q.Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to list duplicate groups: %w", err)
	}

	groups := make([]news.DuplicateGroup, 0, len(models))
	for _, m := range models {
		groups = append(groups, m.toGroup())
	}
	return groups, nil
}

// Processing tasks

func (s *GormStore) SaveProcessingTask(ctx context.Context, t *news.ProcessingTask) error {
	m := processingTaskModel{
		ID:          t.ID,
		ArticleIDs:  datatypes.NewJSONType(nonNil(t.ArticleIDs)),
		ScheduledAt: t.ScheduledAt.UTC(),
		Status:      string(t.Status),
		Total:       t.Total,
		Processed:   t.Processed,
		Failed:      t.Failed,
		Skipped:     t.Skipped,
		Errors:      datatypes.NewJSONType(nonNil(t.Errors)),
		StartedAt:   t.StartedAt,
		CompletedAt: t.CompletedAt,
		DurationMS:  t.Duration.Milliseconds(),
		MemoryMB:    t.MemoryMB,
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"status", "total", "processed", "failed", "skipped", "errors", "started_at", "completed_at", "duration_ms", "memory_mb"}),
	}).Create(&m).Error
	if err != nil {
		return fmt.Errorf("failed to save processing task: %w", err)
	}
	return nil
}

func (s *GormStore) ListProcessingTasks(ctx context.Context, limit int) ([]news.ProcessingTask, error) {
	q := s.db.WithContext(ctx).Order("scheduled_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}

	var models []processingTaskModel
	if err := q.Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to list processing tasks: %w", err)
	}

	tasks := make([]news.ProcessingTask, 0, len(models))
	for _, m := range models {
		tasks = append(tasks, m.toTask())
	}
	return tasks, nil
}

// Sources

func (s *GormStore) UpsertSource(ctx context.Context, name, url, kind string) error {
	m := sourceModel{Name: name, URL: url, Kind: kind}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"url", "kind", "updated_at"}),
	}).Create(&m).Error
	if err != nil {
		return fmt.Errorf("failed to upsert source: %w", err)
	}
	return nil
}

func (s *GormStore) GetSource(ctx context.Context, name string) (*news.SourceState, error) {
	var m sourceModel
	err := s.db.WithContext(ctx).Where("name = ?", name).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get source: %w", err)
	}
	return &news.SourceState{
		Name:             m.Name,
		URL:              m.URL,
		Kind:             m.Kind,
		LastCollectedAt:  m.LastCollectedAt,
		NextCollectionAt: m.NextCollectionAt,
		CreatedAt:        m.CreatedAt,
		UpdatedAt:        m.UpdatedAt,
	}, nil
}

func (s *GormStore) UpdateSourceSchedule(ctx context.Context, name string, collectedAt, nextCollection time.Time) error {
	res := s.db.WithContext(ctx).Model(&sourceModel{}).Where("name = ?", name).Updates(map[string]any{
		"last_collected_at":  collectedAt.UTC(),
		"next_collection_at": nextCollection.UTC(),
	})
	if res.Error != nil {
		return fmt.Errorf("failed to update source schedule: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStore) Stats(ctx context.Context) (Stats, error) {
	stats := Stats{ByStatus: make(map[string]int)}
	db := s.db.WithContext(ctx)

	counts := []struct {
		model any
		where string
		dest  *int
	}{
		{&articleModel{}, "", &stats.Articles},
		{&sourceModel{}, "", &stats.Sources},
		{&collectionRunModel{}, "", &stats.CollectionRuns},
		{&processingResultModel{}, "", &stats.Results},
		{&duplicateGroupModel{}, "status = 'unresolved'", &stats.UnresolvedGroups},
		{&processingTaskModel{}, "", &stats.ProcessingTasks},
	}
	for _, c := range counts {
		var n int64
		q := db.Model(c.model)
		if c.where != "" {
			q = q.Where(c.where)
		}
		if err := q.Count(&n).Error; err != nil {
			return stats, fmt.Errorf("failed to get stats: %w", err)
		}
		*c.dest = int(n)
	}

	var rows []struct {
		Status string
		Count  int
	}
	if err := db.Model(&articleModel{}).Select("status, COUNT(*) AS count").Group("status").Scan(&rows).Error; err != nil {
		return stats, fmt.Errorf("failed to get status stats: %w", err)
	}
	for _, r := range rows {
		stats.ByStatus[r.Status] = r.Count
	}
	return stats, nil
}
