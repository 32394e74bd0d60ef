package analysis

import (
	"cmp"
	"context"
	"log/slog"
	"math"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/lysyi3m/news-comb/app/news"
	"github.com/lysyi3m/news-comb/app/textutil"
)

const (
	DefaultMaxKeywords      = 20
	DefaultMinKeywordLength = 3
	tfidfMaxFeatures        = 100
)

type KeywordBackend interface {
	Name() string
	Extract(ctx context.Context, text string) ([]news.Keyword, error)
}

// TFIDF weighs unigrams and bigrams of a single document. With one document
// every IDF is 1, so weights are L2-normalized term counts.
type TFIDF struct {
	stopWords map[string]struct{}
}

func NewTFIDF(language string) *TFIDF {
	return &TFIDF{stopWords: stopWordsFor(language)}
}

func (t *TFIDF) Name() string { return "tfidf" }

func (t *TFIDF) Extract(ctx context.Context, text string) ([]news.Keyword, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var terms []string
	for _, w := range textutil.Words(text) {
		if utf8.RuneCountInString(w) < 2 {
			continue
		}
		if _, stop := t.stopWords[textutil.FoldAccents(w)]; stop {
			continue
		}
		terms = append(terms, w)
	}

	counts := make(map[string]int)
	for i, w := range terms {
		counts[w]++
		if i+1 < len(terms) {
			counts[w+" "+terms[i+1]]++
		}
	}
	if len(counts) == 0 {
		return nil, nil
	}

	features := make([]news.Keyword, 0, len(counts))
	for term, n := range counts {
		features = append(features, news.Keyword{Text: term, Score: float64(n), Method: t.Name()})
	}
	slices.SortFunc(features, func(a, b news.Keyword) int {
		return cmp.Or(cmp.Compare(b.Score, a.Score), strings.Compare(a.Text, b.Text))
	})
	if len(features) > tfidfMaxFeatures {
		features = features[:tfidfMaxFeatures]
	}

	var norm float64
	for _, f := range features {
		norm += f.Score * f.Score
	}
	norm = math.Sqrt(norm)
	for i := range features {
		features[i].Score /= norm
	}
	return features, nil
}

type KeywordAnalyzer struct {
	backend   KeywordBackend
	max       int
	minLength int
	stopWords map[string]struct{}
	stats     Stats
}

func NewKeywordAnalyzer(backend KeywordBackend, maxKeywords, minLength int, stopWords []string) *KeywordAnalyzer {
	if maxKeywords <= 0 {
		maxKeywords = DefaultMaxKeywords
	}
	if minLength <= 0 {
		minLength = DefaultMinKeywordLength
	}
	return &KeywordAnalyzer{
		backend:   backend,
		max:       maxKeywords,
		minLength: minLength,
		stopWords: foldSet(stopWords),
	}
}

func (a *KeywordAnalyzer) Backend() string {
	if a.backend == nil {
		return "fallback"
	}
	return a.backend.Name()
}

func (a *KeywordAnalyzer) Stats() StatsSnapshot {
	return a.stats.Snapshot()
}

func (a *KeywordAnalyzer) Extract(ctx context.Context, text string) []news.Keyword {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	if a.backend == nil {
		return fallbackKeywords(text)
	}

	start := time.Now()
	keywords, err := guard(func() ([]news.Keyword, error) {
		return a.backend.Extract(ctx, text)
	})
	if err != nil {
		slog.Warn("Keyword backend failed, using fallback", "backend", a.backend.Name(), "error", err)
		return fallbackKeywords(text)
	}
	a.stats.Record(time.Since(start))

	return a.refine(keywords)
}

// refine drops short and stop-listed keywords, sorts by score and caps the list.
func (a *KeywordAnalyzer) refine(keywords []news.Keyword) []news.Keyword {
	kept := make([]news.Keyword, 0, len(keywords))
	for _, kw := range keywords {
		if utf8.RuneCountInString(kw.Text) < a.minLength {
			continue
		}
		if _, stop := a.stopWords[textutil.Normalize(kw.Text)]; stop {
			continue
		}
		kept = append(kept, kw)
	}
	slices.SortStableFunc(kept, func(x, y news.Keyword) int {
		return cmp.Compare(y.Score, x.Score)
	})
	if len(kept) > a.max {
		kept = kept[:a.max]
	}
	return kept
}

// fallbackKeywords scores repeated words of three or more runes by their
// share of all words.
func fallbackKeywords(text string) []news.Keyword {
	words := textutil.Words(text)
	if len(words) == 0 {
		return nil
	}

	freq := make(map[string]int)
	var order []string
	for _, w := range words {
		if utf8.RuneCountInString(w) < 3 {
			continue
		}
		if freq[w] == 0 {
			order = append(order, w)
		}
		freq[w]++
	}

	var keywords []news.Keyword
	for _, w := range order {
		if freq[w] > 1 {
			keywords = append(keywords, news.Keyword{
				Text:   w,
				Score:  float64(freq[w]) / float64(len(words)),
				Method: "frequency",
			})
		}
	}
	slices.SortStableFunc(keywords, func(x, y news.Keyword) int {
		return cmp.Compare(y.Score, x.Score)
	})
	return keywords
}
