package dedup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lysyi3m/news-comb/app/news"
	"github.com/lysyi3m/news-comb/app/storage"
)

// SeenSet is a shared cache of URLs already taken. It only short-circuits
// storage lookups; the unique index on articles.url stays authoritative.
type SeenSet interface {
	Seen(ctx context.Context, url string) (bool, error)
	// Claim marks url as taken and reports whether this caller took it first.
	Claim(ctx context.Context, url string) (bool, error)
	Release(ctx context.Context, url string) error
}

type ArticleStore interface {
	ExistsByURL(ctx context.Context, url string) (bool, error)
	CreateArticle(ctx context.Context, candidate news.Candidate) (int64, error)
}

type Gate struct {
	store ArticleStore
	seen  SeenSet
}

// NewGate builds a gate over store. seen may be nil.
func NewGate(store ArticleStore, seen SeenSet) *Gate {
	return &Gate{store: store, seen: seen}
}

// Accept reports whether the candidate's URL is new.
func (g *Gate) Accept(ctx context.Context, c news.Candidate) (bool, error) {
	canonical := CanonicalURL(c.URL)
	if canonical == "" {
		return false, nil
	}

	if g.seen != nil {
		seen, err := g.seen.Seen(ctx, canonical)
		if err != nil {
			slog.Warn("Seen-set lookup failed, falling back to storage", "url", canonical, "error", err)
		} else if seen {
			return false, nil
		}
	}

	exists, err := g.store.ExistsByURL(ctx, canonical)
	if err != nil {
		return false, fmt.Errorf("failed to check URL: %w", err)
	}
	if exists && g.seen != nil {
		// warm the cache for the next run
		if _, err := g.seen.Claim(ctx, canonical); err != nil {
			slog.Debug("Seen-set claim failed", "url", canonical, "error", err)
		}
	}
	return !exists, nil
}

// Admit accepts and stores the candidate under its canonical URL. Under a
// race exactly one caller wins; the others get admitted=false.
func (g *Gate) Admit(ctx context.Context, c news.Candidate) (int64, bool, error) {
	accepted, err := g.Accept(ctx, c)
	if err != nil || !accepted {
		return 0, false, err
	}

	c.URL = CanonicalURL(c.URL)

	claimed := false
	if g.seen != nil {
		ok, err := g.seen.Claim(ctx, c.URL)
		switch {
		case err != nil:
			slog.Warn("Seen-set claim failed, relying on storage", "url", c.URL, "error", err)
		case !ok:
			return 0, false, nil
		default:
			claimed = true
		}
	}

	id, err := g.store.CreateArticle(ctx, c)
	if errors.Is(err, storage.ErrDuplicate) {
		return 0, false, nil
	}
	if err != nil {
		if claimed {
			if releaseErr := g.seen.Release(context.WithoutCancel(ctx), c.URL); releaseErr != nil {
				slog.Warn("Failed to release seen-set claim", "url", c.URL, "error", releaseErr)
			}
		}
		return 0, false, fmt.Errorf("failed to create article: %w", err)
	}

	return id, true, nil
}
