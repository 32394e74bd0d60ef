package analysis

import (
	"context"

	"github.com/lysyi3m/news-comb/app/news"
	"github.com/lysyi3m/news-comb/app/textutil"
)

// Polarity averages the polarity of opinion words, scaled by a preceding
// intensifier and flipped by a preceding negation.
type Polarity struct{}

func NewPolarity() *Polarity { return &Polarity{} }

func (p *Polarity) Name() string { return "textblob" }

func (p *Polarity) Analyze(ctx context.Context, text string) (news.Sentiment, error) {
	if err := ctx.Err(); err != nil {
		return news.Sentiment{}, err
	}

	words := textutil.Words(textutil.FoldAccents(text))

	var polarity, subjectivity float64
	matched := 0
	for i, w := range words {
		op, ok := opinionLexicon[w]
		if !ok {
			continue
		}
		pol, subj := op.polarity, op.subjectivity
		if i > 0 {
			if mult, ok := intensifiers[words[i-1]]; ok {
				pol = clamp(pol*mult, -1, 1)
				subj = clamp(subj*mult, 0, 1)
			}
		}
		for back := 1; back <= 2 && i-back >= 0; back++ {
			if _, ok := negations[words[i-back]]; ok {
				pol *= -0.5
				break
			}
		}
		polarity += pol
		subjectivity += subj
		matched++
	}

	if matched > 0 {
		polarity /= float64(matched)
		subjectivity /= float64(matched)
	}

	return news.Sentiment{
		Score:      polarity,
		Label:      labelFor(polarity, 0),
		Confidence: abs(polarity),
		Backend:    p.Name(),
		Details: map[string]float64{
			"polarity":     polarity,
			"subjectivity": subjectivity,
		},
	}, nil
}

func clamp(v, lo, hi float64) float64 {
	return max(lo, min(hi, v))
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
