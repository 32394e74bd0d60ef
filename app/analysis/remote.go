package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/lysyi3m/news-comb/app/news"
)

type RemoteConfig struct {
	Endpoint string            `yaml:"endpoint"`
	Key      string            `yaml:"key"`
	Timeout  int               `yaml:"timeout"` // seconds
	Headers  map[string]string `yaml:"headers"`
}

// remoteClient posts {"text": ...} to an analysis service and decodes the
// JSON reply.
type remoteClient struct {
	cfg    RemoteConfig
	client *http.Client
}

func newRemoteClient(cfg RemoteConfig) (*remoteClient, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("remote backend requires an endpoint")
	}
	timeout := time.Duration(cfg.Timeout) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &remoteClient{cfg: cfg, client: &http.Client{Timeout: timeout}}, nil
}

func (c *remoteClient) post(ctx context.Context, text string, out any) error {
	body, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.cfg.Key != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.Key)
	}
	for k, v := range c.cfg.Headers {
		req.Header.Set(k, v)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call %s: %w", c.cfg.Endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("remote backend returned status %d: %s", resp.StatusCode, bytes.TrimSpace(snippet))
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, 4<<20)).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// RemoteSentiment expects {"score": float, "label"?: string, "confidence"?: float}.
// The label is derived from the score with the configured threshold unless
// the service supplies a valid one.
type RemoteSentiment struct {
	client    *remoteClient
	threshold float64
}

func NewRemoteSentiment(cfg RemoteConfig, threshold float64) (*RemoteSentiment, error) {
	client, err := newRemoteClient(cfg)
	if err != nil {
		return nil, err
	}
	return &RemoteSentiment{client: client, threshold: threshold}, nil
}

func (r *RemoteSentiment) Name() string { return "remote" }

func (r *RemoteSentiment) Analyze(ctx context.Context, text string) (news.Sentiment, error) {
	var reply struct {
		Score      *float64           `json:"score"`
		Label      string             `json:"label"`
		Confidence *float64           `json:"confidence"`
		Details    map[string]float64 `json:"details"`
	}
	if err := r.client.post(ctx, text, &reply); err != nil {
		return news.Sentiment{}, err
	}
	if reply.Score == nil {
		return news.Sentiment{}, fmt.Errorf("remote sentiment reply has no score")
	}

	score := clamp(*reply.Score, -1, 1)
	s := news.Sentiment{
		Score:      score,
		Label:      labelFor(score, r.threshold),
		Confidence: abs(score),
		Backend:    r.Name(),
		Details:    reply.Details,
	}
	switch label := news.SentimentLabel(reply.Label); label {
	case news.Positive, news.Negative, news.Neutral:
		s.Label = label
	}
	if reply.Confidence != nil {
		s.Confidence = clamp(*reply.Confidence, 0, 1)
	}
	return s, nil
}

// RemoteEntities expects {"entities": [{"text","type","start","end","confidence"}]}.
type RemoteEntities struct {
	client *remoteClient
}

func NewRemoteEntities(cfg RemoteConfig) (*RemoteEntities, error) {
	client, err := newRemoteClient(cfg)
	if err != nil {
		return nil, err
	}
	return &RemoteEntities{client: client}, nil
}

func (r *RemoteEntities) Name() string { return "remote" }

func (r *RemoteEntities) Extract(ctx context.Context, text string) ([]news.Entity, error) {
	var reply struct {
		Entities []news.Entity `json:"entities"`
	}
	if err := r.client.post(ctx, text, &reply); err != nil {
		return nil, err
	}
	return reply.Entities, nil
}

// RemoteKeywords expects {"keywords": [{"text","score"}]}.
type RemoteKeywords struct {
	client *remoteClient
}

func NewRemoteKeywords(cfg RemoteConfig) (*RemoteKeywords, error) {
	client, err := newRemoteClient(cfg)
	if err != nil {
		return nil, err
	}
	return &RemoteKeywords{client: client}, nil
}

func (r *RemoteKeywords) Name() string { return "remote" }

func (r *RemoteKeywords) Extract(ctx context.Context, text string) ([]news.Keyword, error) {
	var reply struct {
		Keywords []news.Keyword `json:"keywords"`
	}
	if err := r.client.post(ctx, text, &reply); err != nil {
		return nil, err
	}
	for i := range reply.Keywords {
		if reply.Keywords[i].Method == "" {
			reply.Keywords[i].Method = r.Name()
		}
	}
	return reply.Keywords, nil
}
