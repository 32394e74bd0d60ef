package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/lysyi3m/news-comb/app/dedup"
	"github.com/lysyi3m/news-comb/app/news"
)

type GroupStore interface {
	ListArticles(ctx context.Context, filter news.ArticleFilter) ([]news.Article, error)
	CreateOrUpdateDuplicateGroup(ctx context.Context, group news.DuplicateGroup) (int64, error)
}

// GroupDuplicatesTask compares the articles collected within the window and
// stores every group of near duplicates it finds.
type GroupDuplicatesTask struct {
	Task
	Window  time.Duration
	grouper *dedup.Grouper
	store   GroupStore
}

func NewGroupDuplicatesTask(window time.Duration, grouper *dedup.Grouper, store GroupStore) *GroupDuplicatesTask {
	return &GroupDuplicatesTask{
		Task:    NewTask(TaskTypeGroupDuplicates, ""),
		Window:  window,
		grouper: grouper,
		store:   store,
	}
}

func (t *GroupDuplicatesTask) Execute(ctx context.Context) error {
	if err := cancelled(ctx); err != nil {
		return err
	}

	since := time.Now().UTC().Add(-t.Window)
	articles, err := t.store.ListArticles(ctx, news.ArticleFilter{Since: &since})
	if err != nil {
		return fmt.Errorf("failed to list recent articles: %w", err)
	}

	groups := t.grouper.Group(articles)

	stored := 0
	for _, group := range groups {
		if err := cancelled(ctx); err != nil {
			return err
		}
		if _, err := t.store.CreateOrUpdateDuplicateGroup(ctx, group); err != nil {
			return fmt.Errorf("failed to store duplicate group: %w", err)
		}
		stored++
	}

	slog.Info("Task completed",
		"type", t.GetType(),
		"duration", t.GetDuration(),
		"articles", len(articles),
		"groups", stored,
		"threshold", t.grouper.Threshold())

	return nil
}
