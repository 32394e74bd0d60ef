package processing

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/lysyi3m/news-comb/app/analysis"
	"github.com/lysyi3m/news-comb/app/news"
	"github.com/lysyi3m/news-comb/app/quality"
	"github.com/lysyi3m/news-comb/app/rules"
)

// ResultStore persists what the pipeline produces for an article.
type ResultStore interface {
	UpsertProcessingResult(ctx context.Context, result news.ProcessingResult) error
	UpdateArticle(ctx context.Context, id int64, update news.ArticleUpdate) error
}

// Publisher receives every analyzed article. Failures are logged only.
type Publisher interface {
	Publish(ctx context.Context, article news.Article, result news.ProcessingResult) error
}

type Manager struct {
	rules     *rules.Engine
	sentiment *analysis.SentimentAnalyzer
	entities  *analysis.EntityAnalyzer
	keywords  *analysis.KeywordAnalyzer
	store     ResultStore
	publisher Publisher
	workers   int
	now       func() time.Time
}

type Option func(*Manager)

func WithStore(store ResultStore) Option {
	return func(m *Manager) { m.store = store }
}

func WithPublisher(p Publisher) Option {
	return func(m *Manager) { m.publisher = p }
}

func WithWorkers(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.workers = n
		}
	}
}

func NewManager(engine *rules.Engine, sentiment *analysis.SentimentAnalyzer, entities *analysis.EntityAnalyzer, keywords *analysis.KeywordAnalyzer, opts ...Option) *Manager {
	m := &Manager{
		rules:     engine,
		sentiment: sentiment,
		entities:  entities,
		keywords:  keywords,
		workers:   4,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

type AnalyzerStats struct {
	Rules     []rules.Stats          `json:"rules"`
	Sentiment analysis.StatsSnapshot `json:"sentiment"`
	Entities  analysis.StatsSnapshot `json:"entities"`
	Keywords  analysis.StatsSnapshot `json:"keywords"`
}

func (m *Manager) Stats() AnalyzerStats {
	return AnalyzerStats{
		Rules:     m.rules.Stats(),
		Sentiment: m.sentiment.Stats(),
		Entities:  m.entities.Stats(),
		Keywords:  m.keywords.Stats(),
	}
}

// ProcessArticle runs rules, the three analyzers and the quality scorer over
// one article and stores the outcome when a store is configured.
func (m *Manager) ProcessArticle(ctx context.Context, article news.Article) (result news.ProcessingResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic processing article %d: %v", article.ID, r)
		}
	}()

	if err := ctx.Err(); err != nil {
		return result, err
	}

	content := m.rules.Apply(article.Content)

	var (
		wg        sync.WaitGroup
		sentiment news.Sentiment
		entities  []news.Entity
		keywords  []news.Keyword
		errs      [3]error
	)
	wg.Add(3)
	go stage(&wg, &errs[0], "sentiment", func() { sentiment = m.sentiment.Analyze(ctx, content) })
	go stage(&wg, &errs[1], "entities", func() { entities = m.entities.Extract(ctx, content) })
	go stage(&wg, &errs[2], "keywords", func() { keywords = m.keywords.Extract(ctx, content) })
	wg.Wait()

	for _, stageErr := range errs {
		if stageErr != nil {
			return result, fmt.Errorf("article %d: %w", article.ID, stageErr)
		}
	}

	scored := article
	scored.Content = content

	result = news.ProcessingResult{
		ArticleID:   article.ID,
		Sentiment:   sentiment,
		Entities:    entities,
		Keywords:    keywords,
		Quality:     quality.Score(scored, keywords, entities),
		ProcessedAt: m.now().UTC(),
	}

	if m.store != nil {
		if err := m.save(ctx, result); err != nil {
			return result, err
		}
	}

	if m.publisher != nil {
		if err := m.publisher.Publish(ctx, scored, result); err != nil {
			slog.Warn("Failed to publish result", "article_id", article.ID, "error", err)
		}
	}

	return result, nil
}

func stage(wg *sync.WaitGroup, errp *error, name string, fn func()) {
	defer wg.Done()
	defer func() {
		if r := recover(); r != nil {
			*errp = fmt.Errorf("%s stage panic: %v", name, r)
		}
	}()
	fn()
}

func (m *Manager) save(ctx context.Context, result news.ProcessingResult) error {
	if err := m.store.UpsertProcessingResult(ctx, result); err != nil {
		return fmt.Errorf("failed to store result for article %d: %w", result.ArticleID, err)
	}

	texts := make([]string, len(result.Keywords))
	for i, kw := range result.Keywords {
		texts[i] = kw.Text
	}
	status := news.StatusAnalyzed
	score := result.Sentiment.Score
	relevance := result.Quality.Overall

	update := news.ArticleUpdate{
		Status:         &status,
		SentimentScore: &score,
		RelevanceScore: &relevance,
		Keywords:       texts,
		Entities:       result.Entities,
	}
	if err := m.store.UpdateArticle(ctx, result.ArticleID, update); err != nil {
		return fmt.Errorf("failed to update article %d: %w", result.ArticleID, err)
	}
	return nil
}

type BatchReport struct {
	Total     int                     `json:"total"`
	Processed int                     `json:"processed"`
	Failed    int                     `json:"failed"`
	Skipped   int                     `json:"skipped"`
	Errors    []string                `json:"errors,omitempty"`
	Duration  time.Duration           `json:"duration"`
	Results   []news.ProcessingResult `json:"-"`
}

// ProcessBatch fans articles out to the worker pool. A failed item is
// counted and does not stop the batch. Once ctx is done no further item
// starts; items already running finish and the rest are skipped.
func (m *Manager) ProcessBatch(ctx context.Context, articles []news.Article) BatchReport {
	start := time.Now()
	report := BatchReport{Total: len(articles)}

	var mu sync.Mutex
	jobs := make(chan news.Article)
	var wg sync.WaitGroup

	workers := min(m.workers, len(articles))
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for article := range jobs {
				if ctx.Err() != nil {
					mu.Lock()
					report.Skipped++
					mu.Unlock()
					continue
				}
				result, err := m.ProcessArticle(context.WithoutCancel(ctx), article)

				mu.Lock()
				if err != nil {
					report.Failed++
					report.Errors = append(report.Errors, fmt.Sprintf("article %d: %v", article.ID, err))
					slog.Error("Failed to process article", "article_id", article.ID, "error", err)
				} else {
					report.Processed++
					report.Results = append(report.Results, result)
				}
				mu.Unlock()
			}
		}()
	}

	dispatched := 0
dispatch:
	for _, article := range articles {
		if ctx.Err() != nil {
			break
		}
		select {
		case <-ctx.Done():
			break dispatch
		case jobs <- article:
			dispatched++
		}
	}
	close(jobs)
	wg.Wait()

	report.Skipped += len(articles) - dispatched
	report.Duration = time.Since(start)
	return report
}

// RunTask drives a processing task through its lifecycle around one batch.
func (m *Manager) RunTask(ctx context.Context, task *news.ProcessingTask, articles []news.Article) (BatchReport, error) {
	if err := task.Start(); err != nil {
		return BatchReport{}, err
	}

	report := m.ProcessBatch(ctx, articles)
	// ids the caller could not load never reach the batch
	skipped := report.Skipped + max(0, task.Total-len(articles))

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	task.MemoryMB = float64(mem.Alloc) / (1 << 20)

	if ctx.Err() != nil {
		if err := task.Cancel(report.Processed, report.Failed, skipped, report.Errors); err != nil {
			return report, err
		}
		slog.Info("Processing task cancelled", "id", task.ID, "processed", report.Processed, "skipped", skipped)
		return report, nil
	}

	if err := task.Finish(report.Processed, report.Failed, skipped, report.Errors); err != nil {
		return report, err
	}
	return report, nil
}
