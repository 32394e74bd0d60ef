package storage

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/lysyi3m/news-comb/app/news"
)

// These tests need a disposable PostgreSQL database.
func newTestGormStore(t *testing.T) *GormStore {
	t.Helper()
	dsn := os.Getenv("NEWS_COMB_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("NEWS_COMB_TEST_POSTGRES_DSN not set")
	}

	store, err := OpenPostgres(dsn)
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	for _, table := range []string{"processing_results", "duplicate_groups", "processing_tasks", "collection_runs", "articles", "sources"} {
		store.db.Exec("DELETE FROM " + table)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestGormStore_ArticleLifecycle(t *testing.T) {
	store := newTestGormStore(t)
	ctx := context.Background()

	id, err := store.CreateArticle(ctx, news.Candidate{Title: "Um", URL: "https://example.com/pg/1", Source: "pg"})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := store.CreateArticle(ctx, news.Candidate{Title: "Um", URL: "https://example.com/pg/1", Source: "pg"}); !errors.Is(err, ErrDuplicate) {
		t.Errorf("Expected ErrDuplicate, got %v", err)
	}

	exists, _ := store.ExistsByURL(ctx, "https://example.com/pg/1")
	if !exists {
		t.Error("Expected article to exist")
	}

	status := news.StatusAnalyzed
	if err := store.UpdateArticle(ctx, id, news.ArticleUpdate{Status: &status, Keywords: []string{"um"}}); err != nil {
		t.Fatal(err)
	}

	article, err := store.GetArticle(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if article.Status != news.StatusAnalyzed || len(article.Keywords) != 1 {
		t.Errorf("Unexpected article after update: %+v", article)
	}
}

func TestGormStore_ResultsAndGroups(t *testing.T) {
	store := newTestGormStore(t)
	ctx := context.Background()

	id, _ := store.CreateArticle(ctx, news.Candidate{Title: "Dois", URL: "https://example.com/pg/2", Source: "pg"})

	result := news.ProcessingResult{ArticleID: id, Quality: news.Quality{Overall: 0.5}, ProcessedAt: time.Now().UTC()}
	store.UpsertProcessingResult(ctx, result)
	result.Quality.Overall = 0.9
	if err := store.UpsertProcessingResult(ctx, result); err != nil {
		t.Fatal(err)
	}

	got, err := store.GetProcessingResult(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if got.Quality.Overall != 0.9 {
		t.Errorf("Expected overwritten overall 0.9, got %f", got.Quality.Overall)
	}

	groupID, err := store.CreateOrUpdateDuplicateGroup(ctx, news.DuplicateGroup{Members: []int64{5, 2}, Canonical: 1})
	if err != nil {
		t.Fatal(err)
	}
	group, _ := store.GetDuplicateGroup(ctx, groupID)
	if group.Status != news.GroupUnresolved || group.CanonicalID() != 2 {
		t.Errorf("Unexpected group: %+v", group)
	}
}
