package tasks

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lysyi3m/news-comb/app/news"
	"github.com/lysyi3m/news-comb/app/source"
	"github.com/lysyi3m/news-comb/app/storage"
)

// ExtractContentTask fills the body of stored articles that were collected
// without one by running readability over the article page.
type ExtractContentTask struct {
	Task
	SourceConfig *source.Config
	factory      CollectorFactory
	extractor    PageExtractor
	articleRepo  storage.ArticleRepository
}

func NewExtractContentTask(sourceConfig *source.Config, factory CollectorFactory, extractor PageExtractor, articleRepo storage.ArticleRepository) *ExtractContentTask {
	return &ExtractContentTask{
		Task:         NewTask(TaskTypeExtractContent, sourceConfig.Name),
		SourceConfig: sourceConfig,
		factory:      factory,
		extractor:    extractor,
		articleRepo:  articleRepo,
	}
}

func (t *ExtractContentTask) Execute(ctx context.Context) error {
	if err := cancelled(ctx); err != nil {
		return err
	}

	if !t.SourceConfig.Settings.ExtractContent {
		slog.Debug("Content extraction disabled for source", "source", t.SourceName)
		return nil
	}

	articles, err := t.articleRepo.ListArticles(ctx, news.ArticleFilter{
		Source:         t.SourceName,
		Status:         news.StatusCollected,
		MissingContent: true,
		Limit:          t.SourceConfig.Settings.MaxArticles,
	})
	if err != nil {
		return fmt.Errorf("failed to get articles for content extraction: %w", err)
	}

	if len(articles) == 0 {
		slog.Debug("No articles need content extraction", "source", t.SourceName)
		return nil
	}

	// page fetches share the source transport and its rate limit
	fetcher, err := t.factory.Fetcher(t.SourceConfig)
	if err != nil {
		return err
	}

	successCount := 0
	errorCount := 0

	for _, article := range articles {
		if err := cancelled(ctx); err != nil {
			return err
		}

		content, err := t.extractor.Fetch(ctx, fetcher, article.URL)
		if err != nil {
			slog.Error("Failed to extract content for article", "article_id", article.ID, "url", article.URL, "error", err)
			errorCount++
			continue
		}

		if err := t.articleRepo.UpdateArticle(ctx, article.ID, news.ArticleUpdate{Content: &content}); err != nil {
			slog.Error("Failed to store extracted content", "article_id", article.ID, "error", err)
			errorCount++
			continue
		}

		slog.Debug("Content extracted successfully", "article_id", article.ID, "url", article.URL, "content_length", len(content))
		successCount++
	}

	slog.Info("Task completed",
		"type", t.GetType(),
		"source", t.SourceName,
		"duration", t.GetDuration(),
		"success", successCount,
		"errors", errorCount)

	return nil
}
