package collector

import (
	"bytes"
	"cmp"
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/lysyi3m/news-comb/app/news"
	"github.com/lysyi3m/news-comb/app/source"
	"github.com/lysyi3m/news-comb/app/textutil"
)

type RSSCollector struct {
	fetcher      Fetcher
	gofeedParser *gofeed.Parser
}

func NewRSSCollector(fetcher Fetcher) *RSSCollector {
	return &RSSCollector{
		fetcher:      fetcher,
		gofeedParser: gofeed.NewParser(),
	}
}

func (c *RSSCollector) Kind() source.Kind {
	return source.KindRSS
}

// Collect walks every active feed. A failing feed is recorded and the
// remaining feeds are still collected.
func (c *RSSCollector) Collect(ctx context.Context, src *source.Config) ([]news.Candidate, news.RunRecord) {
	l, ok := begin(src, source.KindRSS)
	if !ok {
		return nil, l.finish(0)
	}

	feeds := src.ActiveFeeds()
	if len(feeds) == 0 {
		l.fail(fmt.Errorf("no active feeds configured"))
		return nil, l.finish(0)
	}

	loc, _ := src.Location()
	var candidates []news.Candidate
	seen := make(map[string]bool)

	for _, feedURL := range feeds {
		if cancelled(ctx, l) {
			break
		}

		items, err := c.collectFeed(ctx, feedURL, src, loc, l)
		if err != nil {
			l.errorf("feed %s: %v", feedURL, err)
			continue
		}
		for _, item := range items {
			if seen[item.URL] {
				continue
			}
			seen[item.URL] = true
			candidates = append(candidates, item)
		}
	}

	return candidates, l.finish(len(candidates))
}

func (c *RSSCollector) collectFeed(ctx context.Context, feedURL string, src *source.Config, loc *time.Location, l *runLog) ([]news.Candidate, error) {
	data, err := c.fetcher.Fetch(ctx, feedURL, map[string]string{
		"Accept": "application/rss+xml, application/atom+xml, application/xml;q=0.9, */*;q=0.8",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed: %w", err)
	}

	feed, err := c.gofeedParser.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed: %w", err)
	}

	base, _ := url.Parse(cmp.Or(feed.Link, feedURL))
	set := newCandidateSet(src.Settings.MaxArticles)

	for _, item := range feed.Items {
		if set.full() {
			break
		}
		if item == nil {
			continue
		}
		l.found()

		link := strings.TrimSpace(item.Link)
		if link == "" {
			continue
		}
		resolved, err := resolveEntryLink(base, link)
		if err != nil {
			l.errorf("feed %s: entry %q has malformed link: %v", feedURL, item.Title, err)
			continue
		}

		set.add(news.Candidate{
			Title:       textutil.Clean(item.Title),
			URL:         resolved,
			Content:     textutil.Clean(cmp.Or(item.Description, item.Content)),
			Author:      entryAuthor(item),
			PublishedAt: entryDate(item, src.Settings.DateFormat, loc),
			Source:      src.Name,
		})
	}

	return set.items, nil
}

func resolveEntryLink(base *url.URL, link string) (string, error) {
	ref, err := url.Parse(link)
	if err != nil {
		return "", err
	}
	if ref.IsAbs() || base == nil {
		return ref.String(), nil
	}
	return base.ResolveReference(ref).String(), nil
}

func entryDate(item *gofeed.Item, format string, loc *time.Location) *time.Time {
	if item.PublishedParsed != nil {
		t := *item.PublishedParsed
		return &t
	}
	if item.UpdatedParsed != nil {
		t := *item.UpdatedParsed
		return &t
	}
	return ParseDate(cmp.Or(item.Published, item.Updated), format, loc)
}

func entryAuthor(item *gofeed.Item) string {
	if len(item.Authors) > 0 {
		for _, author := range item.Authors {
			if author != nil {
				if name := formatAuthor(author.Name, author.Email); name != "" {
					return name
				}
			}
		}
	}
	if item.Author != nil {
		return formatAuthor(item.Author.Name, item.Author.Email)
	}
	return ""
}

func formatAuthor(name, email string) string {
	return cmp.Or(strings.TrimSpace(name), strings.TrimSpace(email))
}
