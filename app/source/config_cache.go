package source

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

type ConfigCache struct {
	sourcesDir string
	cache      map[string]*Config
	mu         sync.RWMutex
}

func NewConfigCache(sourcesDir string) *ConfigCache {
	return &ConfigCache{
		sourcesDir: sourcesDir,
		cache:      make(map[string]*Config),
	}
}

func (cc *ConfigCache) Run() error {
	if _, err := os.Stat(cc.sourcesDir); os.IsNotExist(err) {
		return nil
	}

	files, err := filepath.Glob(filepath.Join(cc.sourcesDir, "*.yml"))
	if err != nil {
		return fmt.Errorf("failed to find YML files: %w", err)
	}

	for _, file := range files {
		sourceName := strings.TrimSuffix(filepath.Base(file), ".yml")

		config, err := cc.LoadConfig(sourceName)
		if err != nil {
			return fmt.Errorf("error loading %s: %w", file, err)
		}

		slog.Debug("Configuration loaded", "source", sourceName, "kind", config.Kind, "enabled", config.Settings.Enabled, "collection_interval", config.Settings.CollectionInterval)
	}

	return nil
}

func (cc *ConfigCache) LoadConfig(sourceName string) (*Config, error) {
	configFile := cc.getConfigFilePath(sourceName)
	sourceConfig, err := cc.parseConfig(configFile)
	if err != nil {
		return nil, err
	}

	sourceConfig.Name = sourceName

	if err := cc.validateConfig(sourceConfig); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", configFile, err)
	}

	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.cache[sourceConfig.Name] = sourceConfig

	return sourceConfig, nil
}

func (cc *ConfigCache) GetConfig(sourceName string) (*Config, error) {
	cc.mu.RLock()
	defer cc.mu.RUnlock()

	sourceConfig, ok := cc.cache[sourceName]
	if !ok {
		return nil, fmt.Errorf("source config with name '%s' not found", sourceName)
	}
	return sourceConfig, nil
}

func (cc *ConfigCache) GetConfigs() map[string]*Config {
	cc.mu.RLock()
	defer cc.mu.RUnlock()

	configsCopy := make(map[string]*Config, len(cc.cache))
	for k, v := range cc.cache {
		configsCopy[k] = v
	}
	return configsCopy
}

func (cc *ConfigCache) GetEnabledConfigs() map[string]*Config {
	cc.mu.RLock()
	defer cc.mu.RUnlock()

	enabledConfigs := make(map[string]*Config)
	for k, v := range cc.cache {
		if v.Settings.Enabled {
			enabledConfigs[k] = v
		}
	}
	return enabledConfigs
}

// Names returns the cached source names in sorted order.
func (cc *ConfigCache) Names() []string {
	cc.mu.RLock()
	defer cc.mu.RUnlock()

	names := make([]string, 0, len(cc.cache))
	for name := range cc.cache {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (cc *ConfigCache) GetConfigCount() int {
	cc.mu.RLock()
	defer cc.mu.RUnlock()
	return len(cc.cache)
}

func (cc *ConfigCache) parseConfig(configFile string) (*Config, error) {
	data, err := os.ReadFile(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var sourceConfig Config
	if err := yaml.Unmarshal(data, &sourceConfig); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	applyDefaults(&sourceConfig)

	return &sourceConfig, nil
}

func applyDefaults(c *Config) {
	if c.Kind == "" {
		c.Kind = KindWebsite
	}
	if c.Language == "" {
		c.Language = "pt-BR"
	}
	if c.Settings.CollectionInterval == 0 {
		c.Settings.CollectionInterval = 300
	}
	if c.Settings.MaxArticles == 0 {
		c.Settings.MaxArticles = 50
	}
	if c.Settings.Timeout == 0 {
		c.Settings.Timeout = 30
	}
	if c.Settings.RequestDelay == 0 {
		c.Settings.RequestDelay = 1.0
	}
	if c.Settings.MaxRequestsPerMinute == 0 {
		c.Settings.MaxRequestsPerMinute = 60
	}

	// Secrets may be given as ${ENV_VAR} references
	c.API.Key = os.ExpandEnv(c.API.Key)
	for i := range c.Social {
		c.Social[i].Token = os.ExpandEnv(c.Social[i].Token)
		if c.Social[i].MaxPosts == 0 {
			c.Social[i].MaxPosts = 100
		}
		if c.Social[i].AccountName == "" {
			c.Social[i].AccountName = c.Social[i].AccountID
		}
	}
	if c.Proxy != nil {
		c.Proxy.Password = os.ExpandEnv(c.Proxy.Password)
	}
}

func (cc *ConfigCache) validateConfig(sourceConfig *Config) error {
	if sourceConfig == nil {
		return fmt.Errorf("sourceConfig is nil")
	}

	if sourceConfig.Name == "" {
		return fmt.Errorf("source name is required")
	}

	if !sourceConfig.Kind.Valid() {
		return fmt.Errorf("invalid source kind: %s", sourceConfig.Kind)
	}

	switch sourceConfig.Kind {
	case KindWebsite:
		if sourceConfig.URL == "" {
			return fmt.Errorf("source URL is required")
		}
	case KindRSS:
		if sourceConfig.URL == "" && len(sourceConfig.Feeds) == 0 {
			return fmt.Errorf("source URL or at least one feed is required")
		}
		for i, f := range sourceConfig.Feeds {
			if f.URL == "" {
				return fmt.Errorf("feed at index %d has no URL", i)
			}
		}
	case KindAPI:
		if sourceConfig.API.Endpoint == "" {
			sourceConfig.API.Endpoint = sourceConfig.URL
		}
		if sourceConfig.API.Endpoint == "" {
			return fmt.Errorf("API endpoint is required")
		}
	case KindSocial:
		if len(sourceConfig.Social) == 0 {
			return fmt.Errorf("at least one social account is required")
		}
		for i, a := range sourceConfig.Social {
			if a.Endpoint == "" {
				return fmt.Errorf("social account at index %d has no endpoint", i)
			}
			if a.MaxPosts < 0 {
				return fmt.Errorf("social account at index %d: max posts must be non-negative", i)
			}
		}
	}

	nonNegativeFields := map[string]int{
		"collection interval":     sourceConfig.Settings.CollectionInterval,
		"max articles":            sourceConfig.Settings.MaxArticles,
		"timeout":                 sourceConfig.Settings.Timeout,
		"max requests per minute": sourceConfig.Settings.MaxRequestsPerMinute,
	}

	for fieldName, fieldValue := range nonNegativeFields {
		if fieldValue < 0 {
			return fmt.Errorf("%s must be non-negative", fieldName)
		}
	}
	if sourceConfig.Settings.RequestDelay < 0 {
		return fmt.Errorf("request delay must be non-negative")
	}

	if _, err := sourceConfig.Location(); err != nil {
		return err
	}

	if sourceConfig.Proxy != nil {
		if _, err := url.Parse(sourceConfig.Proxy.URL); err != nil || sourceConfig.Proxy.URL == "" {
			return fmt.Errorf("invalid proxy URL: %q", sourceConfig.Proxy.URL)
		}
	}

	return nil
}

func (cc *ConfigCache) getConfigFilePath(sourceName string) string {
	return filepath.Join(cc.sourcesDir, sourceName+".yml")
}
