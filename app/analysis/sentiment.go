package analysis

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/lysyi3m/news-comb/app/news"
	"github.com/lysyi3m/news-comb/app/textutil"
)

type SentimentBackend interface {
	Name() string
	Analyze(ctx context.Context, text string) (news.Sentiment, error)
}

// SentimentAnalyzer runs the configured backend and falls back to a small
// lexicon count when there is none or it fails.
type SentimentAnalyzer struct {
	backend SentimentBackend
	lexicon lexicon
	stats   Stats
}

func NewSentimentAnalyzer(backend SentimentBackend, language string) *SentimentAnalyzer {
	return &SentimentAnalyzer{backend: backend, lexicon: lexiconFor(language)}
}

func (a *SentimentAnalyzer) Backend() string {
	if a.backend == nil {
		return "fallback"
	}
	return a.backend.Name()
}

func (a *SentimentAnalyzer) Stats() StatsSnapshot {
	return a.stats.Snapshot()
}

func (a *SentimentAnalyzer) Analyze(ctx context.Context, text string) news.Sentiment {
	if strings.TrimSpace(text) == "" {
		return news.Sentiment{Score: 0, Label: news.Neutral, Confidence: 0, Backend: "none"}
	}
	if a.backend == nil {
		return a.fallback(text)
	}

	start := time.Now()
	result, err := guard(func() (news.Sentiment, error) {
		return a.backend.Analyze(ctx, text)
	})
	if err != nil {
		slog.Warn("Sentiment backend failed, using fallback", "backend", a.backend.Name(), "error", err)
		return a.fallback(text)
	}
	a.stats.Record(time.Since(start))

	if result.Backend == "" {
		result.Backend = a.backend.Name()
	}
	return result
}

func (a *SentimentAnalyzer) fallback(text string) news.Sentiment {
	seen := make(map[string]struct{})
	positive, negative := 0, 0
	for _, w := range textutil.Words(textutil.FoldAccents(text)) {
		if _, dup := seen[w]; dup {
			continue
		}
		seen[w] = struct{}{}
		if _, ok := a.lexicon.positive[w]; ok {
			positive++
		}
		if _, ok := a.lexicon.negative[w]; ok {
			negative++
		}
	}

	s := news.Sentiment{
		Label:      news.Neutral,
		Confidence: 0.5,
		Backend:    "fallback",
		Details: map[string]float64{
			"positive_words": float64(positive),
			"negative_words": float64(negative),
		},
	}
	switch {
	case positive > negative:
		s.Score, s.Label = 0.3, news.Positive
	case negative > positive:
		s.Score, s.Label = -0.3, news.Negative
	}
	return s
}

// labelFor maps a score to a label. A zero threshold means any non-zero
// score carries a sign.
func labelFor(score, threshold float64) news.SentimentLabel {
	if threshold <= 0 {
		switch {
		case score > 0:
			return news.Positive
		case score < 0:
			return news.Negative
		}
		return news.Neutral
	}
	switch {
	case score >= threshold:
		return news.Positive
	case score <= -threshold:
		return news.Negative
	}
	return news.Neutral
}

// guard runs fn and turns a panic into an error.
func guard[T any](fn func() (T, error)) (result T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("backend panic: %v", r)
		}
	}()
	return fn()
}
