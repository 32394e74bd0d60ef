package analysis

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"sync"
	"time"

	cohere "github.com/cohere-ai/cohere-go/v2"
	cohereclient "github.com/cohere-ai/cohere-go/v2/client"

	"github.com/lysyi3m/news-comb/app/news"
)

type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float64, error)
}

type EmbeddingConfig struct {
	Key      string   `yaml:"key"`
	Model    string   `yaml:"model"`
	Positive []string `yaml:"positive"` // anchor phrases
	Negative []string `yaml:"negative"`
	Scale    float64  `yaml:"scale"`
}

type CohereEmbedder struct {
	client *cohereclient.Client
	model  string
}

func NewCohereEmbedder(key, model string) (*CohereEmbedder, error) {
	if key == "" {
		return nil, fmt.Errorf("embedding backend requires an API key")
	}
	if model == "" {
		model = "embed-multilingual-v3.0"
	}
	client := cohereclient.NewClient(
		cohereclient.WithToken(key),
		cohereclient.WithHTTPClient(&http.Client{Timeout: 60 * time.Second}),
	)
	return &CohereEmbedder{client: client, model: model}, nil
}

func (c *CohereEmbedder) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	resp, err := c.client.V2.Embed(ctx, &cohere.V2EmbedRequest{
		Texts:          texts,
		Model:          c.model,
		InputType:      cohere.EmbedInputTypeSearchDocument,
		EmbeddingTypes: []cohere.EmbeddingType{cohere.EmbeddingTypeFloat},
	})
	if err != nil {
		return nil, fmt.Errorf("cohere embed error: %w", err)
	}
	if resp == nil || resp.Embeddings == nil || resp.Embeddings.Float == nil {
		return nil, errors.New("cohere embed returned no float embeddings")
	}
	if len(resp.Embeddings.Float) != len(texts) {
		return nil, errors.New("embedding count mismatch")
	}
	return resp.Embeddings.Float, nil
}

var defaultAnchors = map[string][2][]string{
	LanguagePT: {
		{"notícia positiva, boa, sucesso, crescimento e conquista"},
		{"notícia negativa, ruim, crise, fracasso e tragédia"},
	},
	LanguageEN: {
		{"positive good news, success, growth and achievement"},
		{"negative bad news, crisis, failure and tragedy"},
	},
}

// EmbeddingSentiment scores text by how much closer its embedding is to the
// positive anchors than to the negative ones.
type EmbeddingSentiment struct {
	embedder Embedder
	positive []string
	negative []string
	scale    float64

	mu      sync.Mutex
	anchors [2][]float64 // mean positive and negative vectors, once embedded
}

func NewEmbeddingSentiment(embedder Embedder, cfg EmbeddingConfig, language string) *EmbeddingSentiment {
	anchors, ok := defaultAnchors[language]
	if !ok {
		anchors = defaultAnchors[LanguagePT]
	}
	positive, negative := anchors[0], anchors[1]
	if len(cfg.Positive) > 0 {
		positive = cfg.Positive
	}
	if len(cfg.Negative) > 0 {
		negative = cfg.Negative
	}
	scale := cfg.Scale
	if scale <= 0 {
		scale = 5
	}
	return &EmbeddingSentiment{embedder: embedder, positive: positive, negative: negative, scale: scale}
}

func (e *EmbeddingSentiment) Name() string { return "embedding" }

func (e *EmbeddingSentiment) loadAnchors(ctx context.Context) ([2][]float64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.anchors[0] != nil {
		return e.anchors, nil
	}

	texts := append(append([]string{}, e.positive...), e.negative...)
	vectors, err := e.embedder.Embed(ctx, texts)
	if err != nil {
		return e.anchors, fmt.Errorf("failed to embed anchors: %w", err)
	}
	e.anchors = [2][]float64{meanVector(vectors[:len(e.positive)]), meanVector(vectors[len(e.positive):])}
	return e.anchors, nil
}

func (e *EmbeddingSentiment) Analyze(ctx context.Context, text string) (news.Sentiment, error) {
	anchors, err := e.loadAnchors(ctx)
	if err != nil {
		return news.Sentiment{}, err
	}

	vectors, err := e.embedder.Embed(ctx, []string{text})
	if err != nil {
		return news.Sentiment{}, err
	}
	if len(vectors) != 1 {
		return news.Sentiment{}, errors.New("embedding count mismatch")
	}

	simPos := cosine(vectors[0], anchors[0])
	simNeg := cosine(vectors[0], anchors[1])
	score := clamp((simPos-simNeg)*e.scale, -1, 1)

	return news.Sentiment{
		Score:      score,
		Label:      labelFor(score, vaderThreshold),
		Confidence: abs(score),
		Backend:    e.Name(),
		Details: map[string]float64{
			"similarity_positive": simPos,
			"similarity_negative": simNeg,
		},
	}, nil
}

func meanVector(vectors [][]float64) []float64 {
	if len(vectors) == 0 {
		return nil
	}
	mean := make([]float64, len(vectors[0]))
	for _, v := range vectors {
		for i := range mean {
			if i < len(v) {
				mean[i] += v[i]
			}
		}
	}
	for i := range mean {
		mean[i] /= float64(len(vectors))
	}
	return mean
}

func cosine(a, b []float64) float64 {
	n := min(len(a), len(b))
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
