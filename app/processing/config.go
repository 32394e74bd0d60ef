package processing

import (
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/lysyi3m/news-comb/app/analysis"
	"github.com/lysyi3m/news-comb/app/dedup"
	"github.com/lysyi3m/news-comb/app/rules"
)

type DedupConfig struct {
	Threshold float64       `yaml:"threshold"`
	Weights   dedup.Weights `yaml:"weights"`
	Window    int           `yaml:"window"` // hours of recent articles compared per sweep
}

// Config is the pipeline.yml document.
type Config struct {
	Workers   int                      `yaml:"workers"`
	BatchSize int                      `yaml:"batch_size"`
	Rules     []*rules.Rule            `yaml:"rules"`
	Sentiment analysis.SentimentConfig `yaml:"sentiment"`
	Entities  analysis.EntityConfig    `yaml:"entities"`
	Keywords  analysis.KeywordConfig   `yaml:"keywords"`
	Dedup     DedupConfig              `yaml:"dedup"`
}

// LoadConfig reads the pipeline file. A missing file yields the defaults,
// which run every analyzer on its fallback.
func LoadConfig(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		slog.Warn("Pipeline config not found, using defaults", "path", path)
	case err != nil:
		return nil, fmt.Errorf("failed to read file: %w", err)
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML: %w", err)
		}
	}

	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid pipeline config %s: %w", path, err)
	}

	slog.Debug("Pipeline configuration loaded", "path", path, "rules", len(cfg.Rules), "sentiment", cfg.Sentiment.Backend, "entities", cfg.Entities.Backend, "keywords", cfg.Keywords.Backend, "workers", cfg.Workers)

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Workers <= 0 {
		c.Workers = 4
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 50
	}
	if c.Sentiment.Language == "" {
		c.Sentiment.Language = analysis.LanguagePT
	}
	if c.Keywords.Language == "" {
		c.Keywords.Language = c.Sentiment.Language
	}
	if c.Sentiment.Policy == "" {
		c.Sentiment.Policy = analysis.PolicyCompound
	}
	if c.Sentiment.Policy == analysis.PolicyCompound && c.Sentiment.Threshold <= 0 {
		c.Sentiment.Threshold = analysis.DefaultThreshold
	}
	if c.Dedup.Threshold <= 0 {
		c.Dedup.Threshold = dedup.DefaultThreshold
	}
	if c.Dedup.Weights == (dedup.Weights{}) {
		c.Dedup.Weights = dedup.DefaultWeights
	}
	if c.Dedup.Window <= 0 {
		c.Dedup.Window = 48
	}

	c.Sentiment.Remote.Key = os.ExpandEnv(c.Sentiment.Remote.Key)
	c.Sentiment.Embedding.Key = os.ExpandEnv(c.Sentiment.Embedding.Key)
	c.Entities.Remote.Key = os.ExpandEnv(c.Entities.Remote.Key)
	c.Keywords.Remote.Key = os.ExpandEnv(c.Keywords.Remote.Key)
}

func (c *Config) validate() error {
	names := make(map[string]bool, len(c.Rules))
	for i, rule := range c.Rules {
		if rule == nil {
			return fmt.Errorf("rule %d is empty", i)
		}
		if err := rule.Validate(); err != nil {
			return err
		}
		if names[rule.Name] {
			return fmt.Errorf("duplicate rule name: %s", rule.Name)
		}
		names[rule.Name] = true
	}

	for _, lang := range []string{c.Sentiment.Language, c.Keywords.Language} {
		if !analysis.SupportedLanguage(lang) {
			return fmt.Errorf("no fallback lexicon for language %q", lang)
		}
	}

	switch c.Sentiment.Policy {
	case analysis.PolicyCompound, analysis.PolicyStrict:
	default:
		return fmt.Errorf("unknown sentiment policy %q", c.Sentiment.Policy)
	}
	if c.Sentiment.Threshold < 0 || c.Sentiment.Threshold >= 1 {
		return fmt.Errorf("sentiment threshold must be within [0, 1)")
	}

	if c.Dedup.Threshold > 1 {
		return fmt.Errorf("dedup threshold must be within (0, 1]")
	}
	w := c.Dedup.Weights
	if w.Title < 0 || w.Content < 0 || w.URL < 0 {
		return fmt.Errorf("dedup weights must not be negative")
	}

	return nil
}

// Grouper returns the duplicate grouper configured by the dedup section.
func (c *Config) Grouper() *dedup.Grouper {
	return dedup.NewGrouper(c.Dedup.Threshold, c.Dedup.Weights)
}

// NewManager builds the analyzers from the config and wires them into a manager.
func (c *Config) NewManager(opts ...Option) (*Manager, error) {
	sentiment, err := c.Sentiment.Build()
	if err != nil {
		return nil, err
	}
	entities, err := c.Entities.Build()
	if err != nil {
		return nil, err
	}
	keywords, err := c.Keywords.Build()
	if err != nil {
		return nil, err
	}

	opts = append([]Option{WithWorkers(c.Workers)}, opts...)
	return NewManager(rules.NewEngine(c.Rules), sentiment, entities, keywords, opts...), nil
}
