package collector

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/lysyi3m/news-comb/app/news"
	"github.com/lysyi3m/news-comb/app/source"
	"github.com/lysyi3m/news-comb/app/textutil"
)

const socialTitleLen = 120

var socialListKeys = []string{"posts", "statuses", "data", "items", "results"}

type SocialCollector struct {
	fetcher Fetcher
}

func NewSocialCollector(fetcher Fetcher) *SocialCollector {
	return &SocialCollector{fetcher: fetcher}
}

func (c *SocialCollector) Kind() source.Kind {
	return source.KindSocial
}

// Collect reads every active account. A failing account is recorded and the
// remaining accounts are still collected.
func (c *SocialCollector) Collect(ctx context.Context, src *source.Config) ([]news.Candidate, news.RunRecord) {
	l, ok := begin(src, source.KindSocial)
	if !ok {
		return nil, l.finish(0)
	}

	accounts := src.ActiveAccounts()
	if len(accounts) == 0 {
		l.fail(fmt.Errorf("no active social accounts configured"))
		return nil, l.finish(0)
	}

	loc, _ := src.Location()
	set := newCandidateSet(src.Settings.MaxArticles)

	for _, account := range accounts {
		if set.full() || cancelled(ctx, l) {
			break
		}
		if err := c.collectAccount(ctx, account, src, loc, l, set); err != nil {
			l.errorf("%s/%s: %v", account.Platform, account.AccountName, err)
		}
	}

	return set.items, l.finish(len(set.items))
}

func (c *SocialCollector) collectAccount(ctx context.Context, account source.SocialAccount, src *source.Config, loc *time.Location, l *runLog, set *candidateSet) error {
	data, err := c.fetcher.Fetch(ctx, account.Endpoint, authHeaders(nil, account.Token))
	if err != nil {
		return fmt.Errorf("failed to fetch posts: %w", err)
	}

	var payload any
	if err := json.Unmarshal(data, &payload); err != nil {
		return fmt.Errorf("failed to decode posts: %w", err)
	}

	posts, ok := findList(payload, socialListKeys)
	if !ok {
		return fmt.Errorf("no post list found in response")
	}

	if account.MaxPosts > 0 && len(posts) > account.MaxPosts {
		posts = posts[:account.MaxPosts]
	}

	for i, raw := range posts {
		if set.full() {
			break
		}
		l.found()

		post, ok := raw.(map[string]any)
		if !ok {
			l.errorf("%s/%s: post %d is not an object", account.Platform, account.AccountName, i)
			continue
		}
		if isReply(post) && !account.IncludeReplies {
			continue
		}
		if isRepost(post) && !account.IncludeReposts {
			continue
		}

		text := stringField(post, "text", "content", "message", "caption")
		set.add(news.Candidate{
			Title:       postTitle(text),
			URL:         stringField(post, "url", "link", "permalink"),
			Content:     textutil.Clean(text),
			Author:      cmp.Or(personField(post, "author", "username"), account.AccountName),
			PublishedAt: parseDateValue(firstValue(post, "created_at", "date", "timestamp"), src.Settings.DateFormat, loc),
			Source:      src.Name,
		})
	}

	return nil
}

// postTitle is the first non-empty line of the post text.
func postTitle(text string) string {
	for _, line := range strings.Split(textutil.StripMarkup(text), "\n") {
		if line = textutil.CollapseWhitespace(line); line != "" {
			return textutil.Truncate(line, socialTitleLen)
		}
	}
	return ""
}

func isReply(post map[string]any) bool {
	if firstValue(post, "in_reply_to_id", "in_reply_to_status_id", "reply_to") != nil {
		return true
	}
	return boolField(post, "is_reply") || strings.EqualFold(stringField(post, "type"), "reply")
}

func isRepost(post map[string]any) bool {
	if firstValue(post, "reblog", "retweeted_status", "repost_of") != nil {
		return true
	}
	if boolField(post, "is_repost", "is_retweet", "is_reblog") {
		return true
	}
	switch strings.ToLower(stringField(post, "type")) {
	case "repost", "retweet", "share", "reblog":
		return true
	}
	return false
}
