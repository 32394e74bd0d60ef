package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/lysyi3m/news-comb/app/news"
	"github.com/lysyi3m/news-comb/app/source"
	"github.com/lysyi3m/news-comb/app/textutil"
)

var apiListKeys = []string{"articles", "items", "results", "data"}

type APICollector struct {
	fetcher Fetcher
}

func NewAPICollector(fetcher Fetcher) *APICollector {
	return &APICollector{fetcher: fetcher}
}

func (c *APICollector) Kind() source.Kind {
	return source.KindAPI
}

func (c *APICollector) Collect(ctx context.Context, src *source.Config) ([]news.Candidate, news.RunRecord) {
	l, ok := begin(src, source.KindAPI)
	if !ok {
		return nil, l.finish(0)
	}

	endpoint := src.API.Endpoint
	if endpoint == "" {
		endpoint = src.URL
	}

	data, err := c.fetcher.Fetch(ctx, endpoint, authHeaders(src.API.Headers, src.API.Key))
	if err != nil {
		l.fail(fmt.Errorf("failed to fetch API: %w", err))
		return nil, l.finish(0)
	}

	var payload any
	if err := json.Unmarshal(data, &payload); err != nil {
		l.fail(fmt.Errorf("failed to decode API response: %w", err))
		return nil, l.finish(0)
	}

	items, ok := findList(payload, apiListKeys)
	if !ok {
		l.fail(fmt.Errorf("no article list found in API response"))
		return nil, l.finish(0)
	}

	loc, _ := src.Location()
	set := newCandidateSet(src.Settings.MaxArticles)

	for i, raw := range items {
		if set.full() {
			break
		}
		l.found()

		item, ok := raw.(map[string]any)
		if !ok {
			l.errorf("item %d is not an object", i)
			continue
		}

		set.add(news.Candidate{
			Title:       textutil.Clean(stringField(item, "title", "headline")),
			URL:         stringField(item, "url", "link"),
			Content:     textutil.Clean(stringField(item, "content", "body", "summary", "description")),
			Author:      personField(item, "author", "byline"),
			PublishedAt: parseDateValue(firstValue(item, "published_date", "publishedAt", "date", "timestamp"), src.Settings.DateFormat, loc),
			Source:      src.Name,
		})
	}

	return set.items, l.finish(len(set.items))
}

func authHeaders(headers map[string]string, token string) map[string]string {
	out := make(map[string]string, len(headers)+2)
	out["Accept"] = "application/json"
	for k, v := range headers {
		out[k] = v
	}
	if token != "" {
		out["Authorization"] = "Bearer " + token
	}
	return out
}

// findList returns the first list found under keys, or the payload itself
// when it is a top-level array.
func findList(payload any, keys []string) ([]any, bool) {
	switch v := payload.(type) {
	case []any:
		return v, true
	case map[string]any:
		for _, key := range keys {
			if list, ok := v[key].([]any); ok {
				return list, true
			}
		}
	}
	return nil, false
}

func firstValue(item map[string]any, keys ...string) any {
	for _, key := range keys {
		v, ok := item[key]
		if !ok || v == nil {
			continue
		}
		if s, isString := v.(string); isString && strings.TrimSpace(s) == "" {
			continue
		}
		return v
	}
	return nil
}

func stringField(item map[string]any, keys ...string) string {
	switch v := firstValue(item, keys...).(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	return ""
}

// personField reads an author given either as a string or as an object.
func personField(item map[string]any, keys ...string) string {
	switch v := firstValue(item, keys...).(type) {
	case string:
		return strings.TrimSpace(v)
	case map[string]any:
		return stringField(v, "name", "username", "display_name")
	case []any:
		if len(v) > 0 {
			return personField(map[string]any{"author": v[0]}, "author")
		}
	}
	return ""
}

func boolField(item map[string]any, keys ...string) bool {
	for _, key := range keys {
		if b, ok := item[key].(bool); ok && b {
			return true
		}
	}
	return false
}
