package analysis

import (
	"fmt"
)

const (
	BackendNone     = "none"
	BackendVader    = "vader"
	BackendTextBlob = "textblob"
	BackendRemote   = "remote"
	BackendCohere   = "embedding"
	BackendRegex    = "regex"
	BackendTFIDF    = "tfidf"
)

// Label policies for scored backends. Compound labels scores at or beyond
// the threshold; strict labels any score by its sign.
const (
	PolicyCompound = "compound"
	PolicyStrict   = "strict"

	DefaultThreshold = 0.05
)

type SentimentConfig struct {
	Backend   string          `yaml:"backend"`
	Language  string          `yaml:"language"`
	Policy    string          `yaml:"policy"`
	Threshold float64         `yaml:"threshold"` // label cut-off for remote scores under the compound policy
	Remote    RemoteConfig    `yaml:"remote"`
	Embedding EmbeddingConfig `yaml:"embedding"`
}

type EntityConfig struct {
	Backend  string            `yaml:"backend"`
	Types    []string          `yaml:"types"`
	Patterns map[string]string `yaml:"patterns"`
	Remote   RemoteConfig      `yaml:"remote"`
}

type KeywordConfig struct {
	Backend          string       `yaml:"backend"`
	Language         string       `yaml:"language"`
	MaxKeywords      int          `yaml:"max_keywords"`
	MinKeywordLength int          `yaml:"min_keyword_length"`
	StopWords        []string     `yaml:"stop_words"`
	Remote           RemoteConfig `yaml:"remote"`
}

// LabelThreshold is the cut-off handed to scored backends. Strict yields 0.
func (c SentimentConfig) LabelThreshold() float64 {
	switch {
	case c.Policy == PolicyStrict:
		return 0
	case c.Threshold <= 0:
		return DefaultThreshold
	}
	return c.Threshold
}

func (c SentimentConfig) Build() (*SentimentAnalyzer, error) {
	var backend SentimentBackend
	switch c.Backend {
	case "", BackendNone:
	case BackendVader:
		backend = NewVader()
	case BackendTextBlob:
		backend = NewPolarity()
	case BackendRemote:
		remote, err := NewRemoteSentiment(c.Remote, c.LabelThreshold())
		if err != nil {
			return nil, fmt.Errorf("sentiment: %w", err)
		}
		backend = remote
	case BackendCohere:
		embedder, err := NewCohereEmbedder(c.Embedding.Key, c.Embedding.Model)
		if err != nil {
			return nil, fmt.Errorf("sentiment: %w", err)
		}
		backend = NewEmbeddingSentiment(embedder, c.Embedding, c.Language)
	default:
		return nil, fmt.Errorf("sentiment: unknown backend %q", c.Backend)
	}
	return NewSentimentAnalyzer(backend, c.Language), nil
}

func (c EntityConfig) Build() (*EntityAnalyzer, error) {
	var backend EntityBackend
	switch c.Backend {
	case "", BackendNone:
	case BackendRegex:
		regex, err := NewRegexEntities(c.Patterns)
		if err != nil {
			return nil, fmt.Errorf("entities: %w", err)
		}
		backend = regex
	case BackendRemote:
		remote, err := NewRemoteEntities(c.Remote)
		if err != nil {
			return nil, fmt.Errorf("entities: %w", err)
		}
		backend = remote
	default:
		return nil, fmt.Errorf("entities: unknown backend %q", c.Backend)
	}
	return NewEntityAnalyzer(backend, c.Types), nil
}

func (c KeywordConfig) Build() (*KeywordAnalyzer, error) {
	var backend KeywordBackend
	switch c.Backend {
	case "", BackendNone:
	case BackendTFIDF:
		backend = NewTFIDF(c.Language)
	case BackendRemote:
		remote, err := NewRemoteKeywords(c.Remote)
		if err != nil {
			return nil, fmt.Errorf("keywords: %w", err)
		}
		backend = remote
	default:
		return nil, fmt.Errorf("keywords: unknown backend %q", c.Backend)
	}
	return NewKeywordAnalyzer(backend, c.MaxKeywords, c.MinKeywordLength, c.StopWords), nil
}
