package collector

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"github.com/lysyi3m/news-comb/app/source"
)

const (
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36"
	maxBodySize      = 10 << 20
)

var defaultHeaders = map[string]string{
	"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
	"Accept-Language": "pt-BR,pt;q=0.9,en;q=0.8",
	"Connection":      "keep-alive",
}

// TransportError covers network failures, timeouts and HTTP status >= 400.
type TransportError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: HTTP error: %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Fetcher is what collectors use to reach the network.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string, headers map[string]string) ([]byte, error)
}

// Transport is a rate-limited HTTP client bound to one source.
type Transport struct {
	client    *http.Client
	limiter   *rate.Limiter
	userAgent string
	timeout   time.Duration
}

func NewTransport(src *source.Config, userAgent string) (*Transport, error) {
	httpTransport := http.DefaultTransport.(*http.Transport).Clone()

	if src.Proxy != nil {
		proxyURL, err := url.Parse(src.Proxy.URL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse proxy URL: %w", err)
		}
		if src.Proxy.Username != "" {
			proxyURL.User = url.UserPassword(src.Proxy.Username, src.Proxy.Password)
		}
		httpTransport.Proxy = http.ProxyURL(proxyURL)
	}

	if userAgent == "" {
		userAgent = DefaultUserAgent
	}

	timeout := src.RequestTimeout()
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Transport{
		client:    &http.Client{Transport: httpTransport},
		limiter:   newLimiter(src.Settings.RequestDelay, src.Settings.MaxRequestsPerMinute),
		userAgent: userAgent,
		timeout:   timeout,
	}, nil
}

// newLimiter spaces requests by the stricter of the per-request delay and the per-minute cap.
func newLimiter(delaySeconds float64, perMinute int) *rate.Limiter {
	interval := time.Duration(delaySeconds * float64(time.Second))
	if perMinute > 0 {
		if perReq := time.Minute / time.Duration(perMinute); perReq > interval {
			interval = perReq
		}
	}
	if interval <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(interval), 1)
}

func (t *Transport) Fetch(ctx context.Context, rawURL string, headers map[string]string) ([]byte, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return nil, &TransportError{URL: rawURL, Err: err}
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(timeoutCtx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &TransportError{URL: rawURL, Err: fmt.Errorf("failed to create request: %w", err)}
	}

	req.Header.Set("User-Agent", t.userAgent)
	for k, v := range defaultHeaders {
		req.Header.Set(k, v)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, &TransportError{URL: rawURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, &TransportError{URL: rawURL, StatusCode: resp.StatusCode}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, &TransportError{URL: rawURL, Err: fmt.Errorf("failed to read response body: %w", err)}
	}

	return data, nil
}
