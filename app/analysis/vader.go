package analysis

import (
	"context"
	"math"

	"github.com/jonreiter/govader"

	"github.com/lysyi3m/news-comb/app/news"
)

const vaderThreshold = 0.05

// Vader scores English text with the VADER lexicon and rules. The compound
// score is labeled at ±0.05.
type Vader struct {
	analyzer *govader.SentimentIntensityAnalyzer
}

// NewVader loads the lexicon once; the analyzer is read-only afterwards and
// shared by all workers.
func NewVader() *Vader {
	return &Vader{analyzer: govader.NewSentimentIntensityAnalyzer()}
}

func (v *Vader) Name() string { return "vader" }

func (v *Vader) Analyze(ctx context.Context, text string) (news.Sentiment, error) {
	if err := ctx.Err(); err != nil {
		return news.Sentiment{}, err
	}

	scores := v.analyzer.PolarityScores(text)
	compound := clamp(scores.Compound, -1, 1)

	return news.Sentiment{
		Score:      compound,
		Label:      labelFor(compound, vaderThreshold),
		Confidence: math.Abs(compound),
		Backend:    v.Name(),
		Details: map[string]float64{
			"compound": compound,
			"pos":      round3(scores.Positive),
			"neg":      round3(scores.Negative),
			"neu":      round3(scores.Neutral),
		},
	}, nil
}

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}
