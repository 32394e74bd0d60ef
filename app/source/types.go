package source

import (
	"fmt"
	"time"
)

type Kind string

const (
	KindWebsite Kind = "website"
	KindRSS     Kind = "rss"
	KindAPI     Kind = "api"
	KindSocial  Kind = "social"
)

func (k Kind) Valid() bool {
	switch k {
	case KindWebsite, KindRSS, KindAPI, KindSocial:
		return true
	}
	return false
}

// Configuration types

type Config struct {
	Name      string          // Derived from filename (without .yml extension)
	URL       string          `yaml:"url"`
	Kind      Kind            `yaml:"kind"`
	Language  string          `yaml:"language"`
	Settings  Settings        `yaml:"settings"`
	Selectors Selectors       `yaml:"selectors"`
	Feeds     []Feed          `yaml:"feeds"`
	API       APIConfig       `yaml:"api"`
	Social    []SocialAccount `yaml:"social"`
	Proxy     *Proxy          `yaml:"proxy"`
}

type Settings struct {
	Enabled              bool    `yaml:"enabled"`
	CollectionInterval   int     `yaml:"collection_interval"` // seconds
	MaxArticles          int     `yaml:"max_articles"`
	Timeout              int     `yaml:"timeout"`       // seconds
	RequestDelay         float64 `yaml:"request_delay"` // seconds between requests
	MaxRequestsPerMinute int     `yaml:"max_requests_per_minute"`
	DateFormat           string  `yaml:"date_format"`
	Timezone             string  `yaml:"timezone"`
	ExtractContent       bool    `yaml:"extract_content"` // fetch article pages for empty bodies
}

type Selectors struct {
	Container string `yaml:"container"`
	Title     string `yaml:"title"`
	Content   string `yaml:"content"`
	Author    string `yaml:"author"`
	Date      string `yaml:"date"`
}

func (s Selectors) Empty() bool {
	return s == Selectors{}
}

type Feed struct {
	URL    string `yaml:"url"`
	Active *bool  `yaml:"active"` // defaults to true
}

func (f Feed) IsActive() bool {
	return f.Active == nil || *f.Active
}

type APIConfig struct {
	Endpoint string            `yaml:"endpoint"`
	Key      string            `yaml:"key"`
	Headers  map[string]string `yaml:"headers"`
}

type SocialAccount struct {
	Platform       string `yaml:"platform"`
	AccountID      string `yaml:"account_id"`
	AccountName    string `yaml:"account_name"`
	Endpoint       string `yaml:"endpoint"`
	Token          string `yaml:"token"`
	MaxPosts       int    `yaml:"max_posts"`
	IncludeReplies bool   `yaml:"include_replies"`
	IncludeReposts bool   `yaml:"include_reposts"`
	Active         *bool  `yaml:"active"`
}

func (a SocialAccount) IsActive() bool {
	return a.Active == nil || *a.Active
}

type Proxy struct {
	URL      string `yaml:"url"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// ActiveFeeds returns the feed URLs to collect, falling back to the source URL.
func (c *Config) ActiveFeeds() []string {
	var urls []string
	for _, f := range c.Feeds {
		if f.IsActive() && f.URL != "" {
			urls = append(urls, f.URL)
		}
	}
	if len(urls) == 0 && len(c.Feeds) == 0 && c.URL != "" {
		urls = append(urls, c.URL)
	}
	return urls
}

func (c *Config) ActiveAccounts() []SocialAccount {
	var accounts []SocialAccount
	for _, a := range c.Social {
		if a.IsActive() {
			accounts = append(accounts, a)
		}
	}
	return accounts
}

func (c *Config) Interval() time.Duration {
	return time.Duration(c.Settings.CollectionInterval) * time.Second
}

func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.Settings.Timeout) * time.Second
}

// Location resolves the configured timezone, UTC when unset.
func (c *Config) Location() (*time.Location, error) {
	if c.Settings.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.Settings.Timezone)
	if err != nil {
		return nil, fmt.Errorf("failed to load timezone %q: %w", c.Settings.Timezone, err)
	}
	return loc, nil
}
