package collector

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/lysyi3m/news-comb/app/news"
	"github.com/lysyi3m/news-comb/app/source"
	"github.com/lysyi3m/news-comb/app/textutil"
)

const (
	heuristicLinkLimit = 20
	minLinkTitleLen    = 10
	maxLinkTitleLen    = 200
	defaultContainers  = "article, div[class*=article], div[class*=post], div[class*=news]"
)

var articlePathKeywords = []string{"/noticia/", "/news/", "/artigo/", "/post/", "/article/"}

var navigationWords = []string{"home", "sobre", "contato", "login", "cadastro", "about", "contact", "signup", "sign up", "register"}

type WebsiteCollector struct {
	fetcher Fetcher
}

func NewWebsiteCollector(fetcher Fetcher) *WebsiteCollector {
	return &WebsiteCollector{fetcher: fetcher}
}

func (c *WebsiteCollector) Kind() source.Kind {
	return source.KindWebsite
}

func (c *WebsiteCollector) Collect(ctx context.Context, src *source.Config) ([]news.Candidate, news.RunRecord) {
	l, ok := begin(src, source.KindWebsite)
	if !ok {
		return nil, l.finish(0)
	}

	base, err := url.Parse(src.URL)
	if err != nil {
		l.fail(fmt.Errorf("failed to parse source URL: %w", err))
		return nil, l.finish(0)
	}

	data, err := c.fetcher.Fetch(ctx, src.URL, nil)
	if err != nil {
		l.fail(fmt.Errorf("failed to fetch page: %w", err))
		return nil, l.finish(0)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		l.fail(fmt.Errorf("failed to parse page: %w", err))
		return nil, l.finish(0)
	}

	loc, _ := src.Location()
	set := newCandidateSet(src.Settings.MaxArticles)

	if src.Selectors.Empty() {
		c.scanLinks(doc, base, src, l, set)
	} else {
		c.scanContainers(doc, base, src, loc, l, set)
	}

	return set.items, l.finish(len(set.items))
}

func (c *WebsiteCollector) scanContainers(doc *goquery.Document, base *url.URL, src *source.Config, loc *time.Location, l *runLog, set *candidateSet) {
	sel := src.Selectors
	containerSel := sel.Container
	titleIsContainer := false
	if containerSel == "" && sel.Title != "" {
		containerSel = sel.Title
		titleIsContainer = true
	}
	if containerSel == "" {
		containerSel = defaultContainers
	}

	doc.Find(containerSel).EachWithBreak(func(_ int, el *goquery.Selection) bool {
		if set.full() {
			return false
		}
		l.found()

		var title string
		switch {
		case titleIsContainer:
			title = textutil.Clean(el.Text())
		case sel.Title != "":
			title = textutil.Clean(el.Find(sel.Title).First().Text())
		}
		if title == "" {
			title = textutil.Clean(el.Find("h1, h2, h3, h4").First().Text())
		}

		href, ok := el.Attr("href")
		if !ok || goquery.NodeName(el) != "a" {
			href, _ = el.Find("a[href]").First().Attr("href")
		}
		link, err := resolveLink(base, href)
		if err != nil {
			l.errorf("failed to parse link %q: %v", href, err)
			return true
		}

		candidate := news.Candidate{
			Title:  title,
			URL:    link,
			Source: src.Name,
		}
		if sel.Content != "" {
			candidate.Content = textutil.Clean(el.Find(sel.Content).Text())
		}
		if sel.Author != "" {
			candidate.Author = textutil.Clean(el.Find(sel.Author).First().Text())
		}
		if sel.Date != "" {
			dateEl := el.Find(sel.Date).First()
			raw, ok := dateEl.Attr("datetime")
			if !ok {
				raw = dateEl.Text()
			}
			candidate.PublishedAt = ParseDate(raw, src.Settings.DateFormat, loc)
		}

		set.add(candidate)
		return true
	})
}

func (c *WebsiteCollector) scanLinks(doc *goquery.Document, base *url.URL, src *source.Config, l *runLog, set *candidateSet) {
	links := doc.Find("a[href]")
	links.Slice(0, min(heuristicLinkLimit, links.Length())).EachWithBreak(func(_ int, a *goquery.Selection) bool {
		if set.full() {
			return false
		}

		href, _ := a.Attr("href")
		text := textutil.Clean(a.Text())
		if !looksLikeArticle(href, text) {
			return true
		}
		l.found()

		link, err := resolveLink(base, href)
		if err != nil {
			l.errorf("failed to parse link %q: %v", href, err)
			return true
		}

		set.add(news.Candidate{
			Title:  text,
			URL:    link,
			Source: src.Name,
		})
		return true
	})
}

// looksLikeArticle accepts links with an article path, or whose text has a
// headline length and no navigation word.
func looksLikeArticle(href, text string) bool {
	lowerHref := strings.ToLower(href)
	for _, kw := range articlePathKeywords {
		if strings.Contains(lowerHref, kw) {
			return true
		}
	}

	n := len([]rune(text))
	if n < minLinkTitleLen || n > maxLinkTitleLen {
		return false
	}

	padded := " " + strings.Join(textutil.Words(text), " ") + " "
	for _, w := range navigationWords {
		if strings.Contains(padded, " "+w+" ") {
			return false
		}
	}
	return true
}

func resolveLink(base *url.URL, href string) (string, error) {
	href = strings.TrimSpace(href)
	if href == "" {
		return "", nil
	}
	ref, err := url.Parse(href)
	if err != nil {
		return "", err
	}
	resolved := base.ResolveReference(ref)
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		// mailto:, javascript: and friends are not articles
		return "", nil
	}
	resolved.Fragment = ""
	return resolved.String(), nil
}
