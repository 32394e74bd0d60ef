package collector

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/lysyi3m/news-comb/app/news"
	"github.com/lysyi3m/news-comb/app/source"
)

type mockFetcher struct {
	mu        sync.Mutex
	responses map[string]string
	errs      map[string]error
	headers   map[string]map[string]string
}

func newMockFetcher() *mockFetcher {
	return &mockFetcher{
		responses: make(map[string]string),
		errs:      make(map[string]error),
		headers:   make(map[string]map[string]string),
	}
}

func (m *mockFetcher) Fetch(ctx context.Context, rawURL string, headers map[string]string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.headers[rawURL] = headers
	if err, ok := m.errs[rawURL]; ok {
		return nil, err
	}
	body, ok := m.responses[rawURL]
	if !ok {
		return nil, &TransportError{URL: rawURL, StatusCode: http.StatusNotFound}
	}
	return []byte(body), nil
}

const homepage = `<html><body>
<nav>
  <a href="/">Home</a>
  <a href="/sobre">Sobre nós e nossa história</a>
  <a href="/contato">Entre em contato com a redação</a>
</nav>
<a href="/noticia/economia-cresce">Economia cresce no trimestre</a>
<a href="https://example.com/2024/05/chuva-forte">Chuva forte atinge a capital paulista</a>
<a href="/x">Curto</a>
<a href="mailto:redacao@example.com">Escreva para a nossa redação</a>
<a href="/noticia/economia-cresce">Economia cresce no trimestre</a>
</body></html>`

func TestWebsiteCollector_HeuristicLinks(t *testing.T) {
	fetcher := newMockFetcher()
	fetcher.responses["https://example.com"] = homepage

	src := &source.Config{Name: "example", URL: "https://example.com", Kind: source.KindWebsite, Settings: source.Settings{MaxArticles: 50}}
	candidates, record := NewWebsiteCollector(fetcher).Collect(context.Background(), src)

	if record.Status != news.RunSuccess {
		t.Fatalf("Expected success, got %s (errors: %v)", record.Status, record.Errors)
	}
	if len(candidates) != 2 {
		t.Fatalf("Expected 2 candidates, got %d: %+v", len(candidates), candidates)
	}
	if candidates[0].URL != "https://example.com/noticia/economia-cresce" {
		t.Errorf("Expected resolved article URL, got '%s'", candidates[0].URL)
	}
	if candidates[1].Title != "Chuva forte atinge a capital paulista" {
		t.Errorf("Expected second title, got '%s'", candidates[1].Title)
	}
	if record.Collected != 2 {
		t.Errorf("Expected collected 2, got %d", record.Collected)
	}
	if record.Found < record.Collected {
		t.Errorf("Expected found >= collected, got %d < %d", record.Found, record.Collected)
	}
	for _, c := range candidates {
		if c.Source != "example" {
			t.Errorf("Expected source 'example', got '%s'", c.Source)
		}
	}
}

func TestWebsiteCollector_Selectors(t *testing.T) {
	fetcher := newMockFetcher()
	fetcher.responses["https://portal.example.com/ultimas"] = `<html><body>
<div class="item">
  <h2 class="headline"><a href="/a/1">Primeira manchete do dia</a></h2>
  <p class="resumo">Resumo da <b>primeira</b> notícia.</p>
  <span class="autor">Maria Souza</span>
  <time datetime="2024-05-10 14:30:00">10/05</time>
</div>
<div class="item">
  <h2 class="headline"><a href="/a/2">Segunda manchete</a></h2>
  <span class="data">11/05/2024 09:15</span>
</div>
<div class="item"><p>Sem título nem link</p></div>
</body></html>`

	src := &source.Config{
		Name: "portal",
		URL:  "https://portal.example.com/ultimas",
		Kind: source.KindWebsite,
		Selectors: source.Selectors{
			Container: "div.item",
			Title:     ".headline",
			Content:   ".resumo",
			Author:    ".autor",
			Date:      "time, .data",
		},
		Settings: source.Settings{MaxArticles: 10, Timezone: "UTC"},
	}

	candidates, record := NewWebsiteCollector(fetcher).Collect(context.Background(), src)

	if record.Status != news.RunSuccess {
		t.Fatalf("Expected success, got %s (errors: %v)", record.Status, record.Errors)
	}
	if record.Found != 3 {
		t.Errorf("Expected found 3, got %d", record.Found)
	}
	if len(candidates) != 2 {
		t.Fatalf("Expected 2 candidates, got %d", len(candidates))
	}

	first := candidates[0]
	if first.Title != "Primeira manchete do dia" {
		t.Errorf("Expected title 'Primeira manchete do dia', got '%s'", first.Title)
	}
	if first.URL != "https://portal.example.com/a/1" {
		t.Errorf("Expected URL 'https://portal.example.com/a/1', got '%s'", first.URL)
	}
	if first.Content != "Resumo da primeira notícia." {
		t.Errorf("Expected cleaned content, got '%s'", first.Content)
	}
	if first.Author != "Maria Souza" {
		t.Errorf("Expected author 'Maria Souza', got '%s'", first.Author)
	}
	if first.PublishedAt == nil || !first.PublishedAt.Equal(time.Date(2024, 5, 10, 14, 30, 0, 0, time.UTC)) {
		t.Errorf("Expected date 2024-05-10 14:30, got %v", first.PublishedAt)
	}

	second := candidates[1]
	if second.PublishedAt == nil || second.PublishedAt.Day() != 11 || second.PublishedAt.Hour() != 9 {
		t.Errorf("Expected date 11/05/2024 09:15, got %v", second.PublishedAt)
	}
}

func TestWebsiteCollector_MaxArticles(t *testing.T) {
	var b strings.Builder
	b.WriteString("<html><body>")
	for i := 0; i < 10; i++ {
		b.WriteString(`<a href="/news/` + string(rune('a'+i)) + `">Manchete número ` + string(rune('a'+i)) + ` do portal</a>`)
	}
	b.WriteString("</body></html>")

	fetcher := newMockFetcher()
	fetcher.responses["https://example.com"] = b.String()

	src := &source.Config{Name: "example", URL: "https://example.com", Kind: source.KindWebsite, Settings: source.Settings{MaxArticles: 3}}
	candidates, _ := NewWebsiteCollector(fetcher).Collect(context.Background(), src)

	if len(candidates) != 3 {
		t.Errorf("Expected 3 candidates, got %d", len(candidates))
	}
}

func TestWebsiteCollector_PrimaryFetchFailure(t *testing.T) {
	fetcher := newMockFetcher()
	fetcher.errs["https://down.example.com"] = &TransportError{URL: "https://down.example.com", Err: errors.New("connection refused")}

	src := &source.Config{Name: "down", URL: "https://down.example.com", Kind: source.KindWebsite}
	candidates, record := NewWebsiteCollector(fetcher).Collect(context.Background(), src)

	if record.Status != news.RunError {
		t.Errorf("Expected error status, got %s", record.Status)
	}
	if len(candidates) != 0 {
		t.Errorf("Expected no candidates, got %d", len(candidates))
	}
	if len(record.Errors) != 1 || !strings.Contains(record.Errors[0], "connection refused") {
		t.Errorf("Expected transport error in record, got %v", record.Errors)
	}
	if record.CompletedAt.IsZero() {
		t.Error("Expected completed_at to be set")
	}
}

func TestCollector_KindMismatch(t *testing.T) {
	src := &source.Config{Name: "feed", URL: "https://example.com/rss", Kind: source.KindRSS}
	_, record := NewWebsiteCollector(newMockFetcher()).Collect(context.Background(), src)

	if record.Status != news.RunError {
		t.Errorf("Expected error status, got %s", record.Status)
	}
	if len(record.Errors) != 1 || !strings.Contains(record.Errors[0], "kind mismatch") {
		t.Errorf("Expected kind mismatch error, got %v", record.Errors)
	}
}

const rssFeed = `<?xml version="1.0"?>
<rss version="2.0">
  <channel>
    <title>Test Feed</title>
    <link>https://example.com</link>
    <item>
      <title>Primeira notícia</title>
      <link>https://example.com/item1</link>
      <description>&lt;p&gt;Resumo   da primeira&lt;/p&gt;</description>
      <pubDate>Mon, 03 Jul 2023 10:00:00 GMT</pubDate>
      <author>reporter@example.com (Ana Lima)</author>
    </item>
    <item>
      <title>Segunda notícia</title>
      <link>https://example.com/item2</link>
    </item>
    <item>
      <title>Sem link</title>
    </item>
    <item>
      <title>Link quebrado</title>
      <link>http://[::1]:namedport/bad</link>
    </item>
  </channel>
</rss>`

func TestRSSCollector_FeedIsolation(t *testing.T) {
	fetcher := newMockFetcher()
	fetcher.responses["https://example.com/ok.xml"] = rssFeed
	fetcher.errs["https://example.com/down.xml"] = &TransportError{URL: "https://example.com/down.xml", StatusCode: 503}

	src := &source.Config{
		Name: "feeds",
		Kind: source.KindRSS,
		Feeds: []source.Feed{
			{URL: "https://example.com/down.xml"},
			{URL: "https://example.com/ok.xml"},
		},
		Settings: source.Settings{MaxArticles: 50},
	}

	candidates, record := NewRSSCollector(fetcher).Collect(context.Background(), src)

	if record.Status != news.RunPartial {
		t.Fatalf("Expected partial status, got %s", record.Status)
	}
	if len(candidates) != 2 {
		t.Fatalf("Expected 2 candidates, got %d", len(candidates))
	}
	if record.Found != 4 {
		t.Errorf("Expected found 4, got %d", record.Found)
	}
	if len(record.Errors) != 2 {
		t.Errorf("Expected 2 errors (feed failure, malformed link), got %v", record.Errors)
	}

	first := candidates[0]
	if first.Content != "Resumo da primeira" {
		t.Errorf("Expected cleaned summary, got '%s'", first.Content)
	}
	if first.PublishedAt == nil || first.PublishedAt.Year() != 2023 {
		t.Errorf("Expected published date in 2023, got %v", first.PublishedAt)
	}
	if first.Author != "Ana Lima" {
		t.Errorf("Expected author 'Ana Lima', got '%s'", first.Author)
	}
	if candidates[1].PublishedAt != nil {
		t.Errorf("Expected nil date for entry without pubDate, got %v", candidates[1].PublishedAt)
	}
}

func TestRSSCollector_AllFeedsFail(t *testing.T) {
	fetcher := newMockFetcher()
	src := &source.Config{Name: "feeds", URL: "https://example.com/missing.xml", Kind: source.KindRSS}

	candidates, record := NewRSSCollector(fetcher).Collect(context.Background(), src)
	if record.Status != news.RunPartial {
		t.Errorf("Expected partial status, got %s", record.Status)
	}
	if len(candidates) != 0 {
		t.Errorf("Expected no candidates, got %d", len(candidates))
	}
}

func TestRSSCollector_MalformedEntry(t *testing.T) {
	fetcher := newMockFetcher()
	fetcher.responses["https://example.com/feed.xml"] = `<?xml version="1.0"?>
<rss version="2.0">
  <channel>
    <title>Single Feed</title>
    <link>https://example.com</link>
    <item><title>Um</title><link>https://example.com/1</link></item>
    <item><title>Dois</title><link>https://example.com/2</link></item>
    <item><title>Quebrado</title><link>http://[::1]:namedport/bad</link></item>
    <item><title>Três</title><link>https://example.com/3</link></item>
  </channel>
</rss>`

	src := &source.Config{Name: "single", URL: "https://example.com/feed.xml", Kind: source.KindRSS, Settings: source.Settings{MaxArticles: 50}}
	candidates, record := NewRSSCollector(fetcher).Collect(context.Background(), src)

	if len(candidates) != 3 {
		t.Fatalf("Expected 3 candidates, got %d: %+v", len(candidates), candidates)
	}
	if len(record.Errors) != 1 || !strings.Contains(record.Errors[0], "malformed link") {
		t.Errorf("Expected exactly 1 malformed link error, got %v", record.Errors)
	}
	if record.Status != news.RunPartial {
		t.Errorf("Expected partial status, got %s", record.Status)
	}
	if record.Found != 4 || record.Collected != 3 {
		t.Errorf("Expected found 4 and collected 3, got %d/%d", record.Found, record.Collected)
	}
	if candidates[2].Title != "Três" {
		t.Errorf("Expected entry after the malformed one to be kept, got '%s'", candidates[2].Title)
	}
}

func TestRSSCollector_Cancelled(t *testing.T) {
	fetcher := newMockFetcher()
	fetcher.responses["https://example.com/ok.xml"] = rssFeed

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	src := &source.Config{Name: "feeds", URL: "https://example.com/ok.xml", Kind: source.KindRSS}
	candidates, record := NewRSSCollector(fetcher).Collect(ctx, src)

	if len(candidates) != 0 {
		t.Errorf("Expected no candidates after cancellation, got %d", len(candidates))
	}
	if record.Status != news.RunPartial {
		t.Errorf("Expected partial status, got %s", record.Status)
	}
}

func TestAPICollector_ListKeysAndAliases(t *testing.T) {
	fetcher := newMockFetcher()
	fetcher.responses["https://api.example.com/news"] = `{
		"status": "ok",
		"items": [
			{"headline": "Mercado fecha em alta", "link": "https://example.com/m1", "body": "Texto", "byline": {"name": "João"}, "date": "2024-03-01T08:00:00"},
			{"title": "Sem URL"},
			{"title": "Timestamp", "url": "https://example.com/m2", "timestamp": 1700000000},
			"not an object"
		]
	}`

	src := &source.Config{
		Name: "api",
		Kind: source.KindAPI,
		API: source.APIConfig{
			Endpoint: "https://api.example.com/news",
			Key:      "k-123",
			Headers:  map[string]string{"X-Client": "news-comb"},
		},
	}

	candidates, record := NewAPICollector(fetcher).Collect(context.Background(), src)

	if record.Status != news.RunPartial {
		t.Errorf("Expected partial status for a non-object item, got %s", record.Status)
	}
	if len(candidates) != 2 {
		t.Fatalf("Expected 2 candidates, got %d", len(candidates))
	}
	if candidates[0].Title != "Mercado fecha em alta" || candidates[0].Author != "João" {
		t.Errorf("Expected aliased fields, got %+v", candidates[0])
	}
	if candidates[0].PublishedAt == nil || candidates[0].PublishedAt.Hour() != 8 {
		t.Errorf("Expected parsed date, got %v", candidates[0].PublishedAt)
	}
	if candidates[1].PublishedAt == nil || candidates[1].PublishedAt.Unix() != 1700000000 {
		t.Errorf("Expected unix timestamp date, got %v", candidates[1].PublishedAt)
	}
	if record.Found != 4 {
		t.Errorf("Expected found 4, got %d", record.Found)
	}

	headers := fetcher.headers["https://api.example.com/news"]
	if headers["Authorization"] != "Bearer k-123" {
		t.Errorf("Expected bearer auth header, got '%s'", headers["Authorization"])
	}
	if headers["X-Client"] != "news-comb" {
		t.Errorf("Expected custom header, got '%s'", headers["X-Client"])
	}
}

func TestAPICollector_TopLevelArray(t *testing.T) {
	fetcher := newMockFetcher()
	fetcher.responses["https://api.example.com/list"] = `[{"title": "Um", "url": "https://example.com/1"}]`

	src := &source.Config{Name: "api", Kind: source.KindAPI, URL: "https://api.example.com/list"}
	candidates, record := NewAPICollector(fetcher).Collect(context.Background(), src)

	if record.Status != news.RunSuccess || len(candidates) != 1 {
		t.Errorf("Expected 1 candidate with success, got %d (%s)", len(candidates), record.Status)
	}
}

func TestAPICollector_ResultsKey(t *testing.T) {
	fetcher := newMockFetcher()
	fetcher.responses["http://x/api"] = `{"results":[{"title":"T","url":"http://x/1"}]}`

	src := &source.Config{Name: "api", Kind: source.KindAPI, URL: "http://x/api"}
	candidates, record := NewAPICollector(fetcher).Collect(context.Background(), src)

	if record.Status != news.RunSuccess {
		t.Errorf("Expected success, got %s (errors: %v)", record.Status, record.Errors)
	}
	if len(candidates) != 1 {
		t.Fatalf("Expected 1 candidate, got %d", len(candidates))
	}
	c := candidates[0]
	if c.Title != "T" || c.URL != "http://x/1" {
		t.Errorf("Expected title 'T' and url 'http://x/1', got %+v", c)
	}
	if c.Content != "" || c.Author != "" {
		t.Errorf("Expected empty content and author, got '%s'/'%s'", c.Content, c.Author)
	}
	if c.PublishedAt != nil {
		t.Errorf("Expected no date, got %v", c.PublishedAt)
	}
}

func TestAPICollector_FirstListKeyWins(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"articles before items", `{"items":[{"title":"I","url":"http://x/i"}],"articles":[{"title":"A","url":"http://x/a"}]}`, "A"},
		{"items before results", `{"results":[{"title":"R","url":"http://x/r"}],"items":[{"title":"I","url":"http://x/i"}]}`, "I"},
		{"results before data", `{"data":[{"title":"D","url":"http://x/d"}],"results":[{"title":"R","url":"http://x/r"}]}`, "R"},
		{"data alone", `{"data":[{"title":"D","url":"http://x/d"}]}`, "D"},
		{"non-list key skipped", `{"articles":{"title":"A"},"data":[{"title":"D","url":"http://x/d"}]}`, "D"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fetcher := newMockFetcher()
			fetcher.responses["http://x/api"] = tt.body

			src := &source.Config{Name: "api", Kind: source.KindAPI, URL: "http://x/api"}
			candidates, _ := NewAPICollector(fetcher).Collect(context.Background(), src)

			if len(candidates) != 1 || candidates[0].Title != tt.want {
				t.Errorf("Expected single candidate '%s', got %+v", tt.want, candidates)
			}
		})
	}
}

func TestAPICollector_Failures(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "no list", body: `{"status": "ok", "count": 0}`},
		{name: "bad json", body: `{"articles": [`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fetcher := newMockFetcher()
			fetcher.responses["https://api.example.com"] = tt.body

			src := &source.Config{Name: "api", Kind: source.KindAPI, API: source.APIConfig{Endpoint: "https://api.example.com"}}
			_, record := NewAPICollector(fetcher).Collect(context.Background(), src)

			if record.Status != news.RunError {
				t.Errorf("Expected error status, got %s", record.Status)
			}
		})
	}
}

func TestSocialCollector_AccountsAndFilters(t *testing.T) {
	fetcher := newMockFetcher()
	fetcher.responses["https://social.example.com/a"] = `{"posts": [
		{"url": "https://social.example.com/p/1", "text": "Primeira linha do post\nsegunda linha", "username": "canal", "created_at": "2024-01-02 10:00:00"},
		{"url": "https://social.example.com/p/2", "text": "Resposta", "in_reply_to_id": "1"},
		{"url": "https://social.example.com/p/3", "text": "Compartilhado", "is_repost": true},
		{"url": "https://social.example.com/p/4", "text": "Quarto post"}
	]}`

	src := &source.Config{
		Name: "social",
		Kind: source.KindSocial,
		Social: []source.SocialAccount{
			{Platform: "mastodon", AccountName: "conta", Endpoint: "https://social.example.com/a", MaxPosts: 3, IncludeReposts: true},
			{Platform: "mastodon", AccountName: "fora", Endpoint: "https://social.example.com/missing"},
		},
	}

	candidates, record := NewSocialCollector(fetcher).Collect(context.Background(), src)

	if record.Status != news.RunPartial {
		t.Errorf("Expected partial status, got %s", record.Status)
	}
	if len(candidates) != 2 {
		t.Fatalf("Expected 2 candidates (reply dropped, max posts 3), got %d", len(candidates))
	}
	if candidates[0].Title != "Primeira linha do post" {
		t.Errorf("Expected first line as title, got '%s'", candidates[0].Title)
	}
	if candidates[0].Author != "canal" {
		t.Errorf("Expected author 'canal', got '%s'", candidates[0].Author)
	}
	if candidates[1].Author != "conta" {
		t.Errorf("Expected account name as default author, got '%s'", candidates[1].Author)
	}
	if candidates[1].URL != "https://social.example.com/p/3" {
		t.Errorf("Expected repost to be kept, got '%s'", candidates[1].URL)
	}
}

func TestSocialCollector_MaxArticles(t *testing.T) {
	fetcher := newMockFetcher()
	fetcher.responses["https://social.example.com/a"] = `{"posts": [
		{"url": "https://social.example.com/a/1", "text": "Post um"},
		{"url": "https://social.example.com/a/2", "text": "Post dois"}
	]}`
	fetcher.responses["https://social.example.com/b"] = `{"posts": [
		{"url": "https://social.example.com/b/1", "text": "Post três"},
		{"url": "https://social.example.com/b/2", "text": "Post quatro"}
	]}`

	src := &source.Config{
		Name: "social",
		Kind: source.KindSocial,
		Social: []source.SocialAccount{
			{Platform: "mastodon", AccountName: "a", Endpoint: "https://social.example.com/a", MaxPosts: 10},
			{Platform: "mastodon", AccountName: "b", Endpoint: "https://social.example.com/b", MaxPosts: 10},
		},
		Settings: source.Settings{MaxArticles: 3},
	}

	candidates, record := NewSocialCollector(fetcher).Collect(context.Background(), src)

	if len(candidates) != 3 {
		t.Fatalf("Expected max_articles to cap the run at 3, got %d", len(candidates))
	}
	if candidates[2].URL != "https://social.example.com/b/1" {
		t.Errorf("Expected the cap to fill across accounts, got '%s'", candidates[2].URL)
	}
	if record.Collected != 3 || record.Status != news.RunSuccess {
		t.Errorf("Expected success with collected 3, got %s/%d", record.Status, record.Collected)
	}
}

func TestFactory_ResolvesVariants(t *testing.T) {
	factory := NewFactory("test-agent")

	tests := []struct {
		kind source.Kind
		want source.Kind
	}{
		{source.KindRSS, source.KindRSS},
		{source.KindAPI, source.KindAPI},
		{source.KindSocial, source.KindSocial},
		{source.KindWebsite, source.KindWebsite},
		{"", source.KindWebsite},
	}

	for _, tt := range tests {
		c, err := factory.New(&source.Config{Name: "s-" + string(tt.kind), URL: "https://example.com", Kind: tt.kind})
		if err != nil {
			t.Fatal(err)
		}
		if c.Kind() != tt.want {
			t.Errorf("Expected %s collector for kind '%s', got %s", tt.want, tt.kind, c.Kind())
		}
	}
}

func TestFactory_ReusesTransportPerSource(t *testing.T) {
	factory := NewFactory("")
	src := &source.Config{Name: "one", URL: "https://example.com"}

	a, _ := factory.Fetcher(src)
	b, _ := factory.Fetcher(src)
	if a != b {
		t.Error("Expected the same transport for repeated lookups")
	}

	factory.Forget("one")
	c, _ := factory.Fetcher(src)
	if a == c {
		t.Error("Expected a new transport after Forget")
	}
}

func TestTransport_StatusError(t *testing.T) {
	var gotUA string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	transport, err := NewTransport(&source.Config{Name: "t", Settings: source.Settings{Timeout: 5}}, "news-comb-test")
	if err != nil {
		t.Fatal(err)
	}

	data, err := transport.Fetch(context.Background(), server.URL+"/ok", nil)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if string(data) != "ok" {
		t.Errorf("Expected body 'ok', got '%s'", string(data))
	}
	if gotUA != "news-comb-test" {
		t.Errorf("Expected user agent 'news-comb-test', got '%s'", gotUA)
	}

	_, err = transport.Fetch(context.Background(), server.URL+"/missing", nil)
	var transportErr *TransportError
	if !errors.As(err, &transportErr) {
		t.Fatalf("Expected TransportError, got %v", err)
	}
	if transportErr.StatusCode != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", transportErr.StatusCode)
	}
}

func TestTransport_RateLimitHonorsContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	transport, err := NewTransport(&source.Config{Name: "slow", Settings: source.Settings{RequestDelay: 10, Timeout: 5}}, "")
	if err != nil {
		t.Fatal(err)
	}

	if _, err := transport.Fetch(context.Background(), server.URL, nil); err != nil {
		t.Fatalf("Expected first request to pass, got %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err = transport.Fetch(ctx, server.URL, nil)
	if err == nil {
		t.Fatal("Expected rate limiter to refuse the second request within the deadline")
	}
	if time.Since(start) > 2*time.Second {
		t.Errorf("Expected limiter to give up early, waited %v", time.Since(start))
	}
}

func TestNewLimiter_Interval(t *testing.T) {
	tests := []struct {
		delay     float64
		perMinute int
		want      time.Duration
	}{
		{1.0, 60, time.Second},
		{0.5, 30, 2 * time.Second},
		{3.0, 60, 3 * time.Second},
	}

	for _, tt := range tests {
		limiter := newLimiter(tt.delay, tt.perMinute)
		got := time.Duration(float64(time.Second) / float64(limiter.Limit()))
		if got.Round(time.Millisecond) != tt.want {
			t.Errorf("delay=%v rpm=%d: expected interval %v, got %v", tt.delay, tt.perMinute, tt.want, got)
		}
	}
}
