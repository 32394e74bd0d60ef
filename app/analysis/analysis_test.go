package analysis

import (
	"context"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/lysyi3m/news-comb/app/news"
)

type failingSentiment struct{ panics bool }

func (f failingSentiment) Name() string { return "failing" }

func (f failingSentiment) Analyze(ctx context.Context, text string) (news.Sentiment, error) {
	if f.panics {
		panic("model exploded")
	}
	return news.Sentiment{}, errors.New("model unavailable")
}

type fixedKeywords []news.Keyword

func (f fixedKeywords) Name() string { return "fixed" }

func (f fixedKeywords) Extract(ctx context.Context, text string) ([]news.Keyword, error) {
	return append([]news.Keyword(nil), f...), nil
}

type fixedEntities []news.Entity

func (f fixedEntities) Name() string { return "fixed" }

func (f fixedEntities) Extract(ctx context.Context, text string) ([]news.Entity, error) {
	return append([]news.Entity(nil), f...), nil
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestStats_RunningMean(t *testing.T) {
	var s Stats

	s.Record(10 * time.Millisecond)
	s.Record(20 * time.Millisecond)
	if got := s.Snapshot().AvgProcessingTime; got != 15*time.Millisecond {
		t.Errorf("Expected 15ms, got %v", got)
	}

	s.Record(5 * time.Millisecond)
	snap := s.Snapshot()
	if snap.AvgProcessingTime != 10*time.Millisecond {
		t.Errorf("Expected 10ms, got %v", snap.AvgProcessingTime)
	}
	if snap.TotalProcessed != 3 {
		t.Errorf("Expected 3 processed, got %d", snap.TotalProcessed)
	}
}

func TestStats_Concurrent(t *testing.T) {
	var s Stats
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Record(time.Millisecond)
		}()
	}
	wg.Wait()

	if got := s.Snapshot().TotalProcessed; got != 100 {
		t.Errorf("Expected 100 processed, got %d", got)
	}
}

func TestSentiment_EmptyText(t *testing.T) {
	a := NewSentimentAnalyzer(NewVader(), LanguagePT)

	s := a.Analyze(context.Background(), "   ")
	if s.Score != 0 || s.Label != news.Neutral || s.Confidence != 0 {
		t.Errorf("Expected {0 neutral 0}, got %+v", s)
	}
	if a.Stats().TotalProcessed != 0 {
		t.Error("Expected empty text not to reach the backend")
	}
}

func TestSentiment_Fallback(t *testing.T) {
	tests := []struct {
		name     string
		language string
		text     string
		score    float64
		label    news.SentimentLabel
	}{
		{"positive pt", LanguagePT, "O resultado foi ótimo e um sucesso, apesar da crise", 0.3, news.Positive},
		{"profit headline", LanguagePT, "Lucro da empresa cresceu e foi um sucesso incrível", 0.3, news.Positive},
		{"negative pt", LanguagePT, "Crise e queda: um PÉSSIMO trimestre", -0.3, news.Negative},
		{"repeated hits count once", LanguagePT, "crise crise crise, mas sucesso e lucro", 0.3, news.Positive},
		{"balanced", LanguagePT, "lucro e perda", 0, news.Neutral},
		{"english lexicon", LanguageEN, "A great success for the team", 0.3, news.Positive},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := NewSentimentAnalyzer(nil, tt.language)
			s := a.Analyze(context.Background(), tt.text)
			if s.Score != tt.score || s.Label != tt.label {
				t.Errorf("Expected %v/%s, got %v/%s", tt.score, tt.label, s.Score, s.Label)
			}
			if s.Confidence != 0.5 {
				t.Errorf("Expected confidence 0.5, got %v", s.Confidence)
			}
			if s.Backend != "fallback" {
				t.Errorf("Expected fallback backend, got %s", s.Backend)
			}
		})
	}
}

func TestSentiment_BackendFailureFallsBack(t *testing.T) {
	for _, panics := range []bool{false, true} {
		a := NewSentimentAnalyzer(failingSentiment{panics: panics}, LanguagePT)

		s := a.Analyze(context.Background(), "um grande sucesso")
		if s.Backend != "fallback" || s.Label != news.Positive {
			t.Errorf("Expected fallback positive (panic=%v), got %s/%s", panics, s.Backend, s.Label)
		}
		if a.Stats().TotalProcessed != 0 {
			t.Errorf("Expected failed calls not to be counted, got %d", a.Stats().TotalProcessed)
		}
	}
}

func TestVader(t *testing.T) {
	v := NewVader()
	ctx := context.Background()

	plain, _ := v.Analyze(ctx, "The results were good")
	boosted, _ := v.Analyze(ctx, "The results were very good")
	negated, _ := v.Analyze(ctx, "The results were not good")
	neutral, _ := v.Analyze(ctx, "The meeting is on Tuesday")

	if plain.Label != news.Positive {
		t.Errorf("Expected positive, got %s (%v)", plain.Label, plain.Score)
	}
	if boosted.Score <= plain.Score {
		t.Errorf("Expected booster to raise score, got %v <= %v", boosted.Score, plain.Score)
	}
	if negated.Label != news.Negative {
		t.Errorf("Expected negation to flip label, got %s (%v)", negated.Label, negated.Score)
	}
	if neutral.Score != 0 || neutral.Label != news.Neutral || neutral.Details["neu"] != 1 {
		t.Errorf("Expected neutral with neu=1, got %+v", neutral)
	}
	if plain.Confidence != math.Abs(plain.Score) {
		t.Errorf("Expected confidence |compound|, got %v", plain.Confidence)
	}
	if plain.Details["compound"] != plain.Score {
		t.Errorf("Expected compound detail to match score, got %v", plain.Details["compound"])
	}

	contrast, _ := v.Analyze(ctx, "The economy is in crisis, but the results were great!")
	if contrast.Label != news.Positive {
		t.Errorf("Expected contrast to favor the second clause, got %s (%v)", contrast.Label, contrast.Score)
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if _, err := v.Analyze(cancelled, "good"); err == nil {
		t.Error("Expected error for cancelled context")
	}
}

func TestVader_LabelCutOff(t *testing.T) {
	tests := []struct {
		score float64
		want  news.SentimentLabel
	}{
		{0.05, news.Positive},
		{0.0499, news.Neutral},
		{-0.0499, news.Neutral},
		{-0.05, news.Negative},
	}
	for _, tt := range tests {
		if got := labelFor(tt.score, vaderThreshold); got != tt.want {
			t.Errorf("labelFor(%v): expected %s, got %s", tt.score, tt.want, got)
		}
	}
}

func TestPolarity(t *testing.T) {
	p := NewPolarity()
	ctx := context.Background()

	s, _ := p.Analyze(ctx, "Um resultado muito bom")
	if !almostEqual(s.Score, 0.91) || s.Label != news.Positive {
		t.Errorf("Expected 0.91 positive, got %v %s", s.Score, s.Label)
	}

	s, _ = p.Analyze(ctx, "Não é bom")
	if !almostEqual(s.Score, -0.35) || s.Label != news.Negative {
		t.Errorf("Expected -0.35 negative, got %v %s", s.Score, s.Label)
	}

	s, _ = p.Analyze(ctx, "A reunião acontece na terça")
	if s.Score != 0 || s.Label != news.Neutral {
		t.Errorf("Expected strict neutral at zero, got %v %s", s.Score, s.Label)
	}
}

func TestRemoteSentiment(t *testing.T) {
	var mu sync.Mutex
	reply := `{"score": 0.02}`
	status := http.StatusOK
	respond := func(body string, code int) {
		mu.Lock()
		defer mu.Unlock()
		reply, status = body, code
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer secret" {
			t.Errorf("Expected bearer token, got %q", r.Header.Get("Authorization"))
		}
		mu.Lock()
		defer mu.Unlock()
		w.WriteHeader(status)
		w.Write([]byte(reply))
	}))
	defer server.Close()

	cfg := RemoteConfig{Endpoint: server.URL, Key: "secret"}
	ctx := context.Background()

	thresholded, _ := NewRemoteSentiment(cfg, 0.05)
	s, err := thresholded.Analyze(ctx, "texto")
	if err != nil || s.Label != news.Neutral {
		t.Errorf("Expected neutral under threshold, got %s (%v)", s.Label, err)
	}

	strict, _ := NewRemoteSentiment(cfg, 0)
	s, _ = strict.Analyze(ctx, "texto")
	if s.Label != news.Positive {
		t.Errorf("Expected strict policy to label positive, got %s", s.Label)
	}

	respond(`{"score": 0.9, "label": "negative", "confidence": 0.7}`, http.StatusOK)
	s, _ = strict.Analyze(ctx, "texto")
	if s.Label != news.Negative || s.Confidence != 0.7 {
		t.Errorf("Expected service label and confidence, got %s %v", s.Label, s.Confidence)
	}

	respond(`{"error": "overloaded"}`, http.StatusInternalServerError)
	a := NewSentimentAnalyzer(strict, LanguagePT)
	s = a.Analyze(ctx, "sucesso")
	if s.Backend != "fallback" {
		t.Errorf("Expected fallback after remote error, got %s", s.Backend)
	}

	if _, err := NewRemoteSentiment(RemoteConfig{}, 0); err == nil {
		t.Error("Expected error without endpoint")
	}

	// Configured through SentimentConfig: compound by default, strict on request.
	tests := []struct {
		name   string
		policy string
		reply  string
		want   news.SentimentLabel
	}{
		{"compound above cut-off", "", `{"score": 0.07}`, news.Positive},
		{"compound below cut-off", PolicyCompound, `{"score": 0.04}`, news.Neutral},
		{"compound negative", PolicyCompound, `{"score": -0.05}`, news.Negative},
		{"strict small positive", PolicyStrict, `{"score": 0.01}`, news.Positive},
		{"strict zero", PolicyStrict, `{"score": 0}`, news.Neutral},
		{"strict small negative", PolicyStrict, `{"score": -0.01}`, news.Negative},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			respond(tt.reply, http.StatusOK)
			analyzer, err := SentimentConfig{Backend: BackendRemote, Language: LanguagePT, Policy: tt.policy, Remote: cfg}.Build()
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if s := analyzer.Analyze(ctx, "texto"); s.Label != tt.want {
				t.Errorf("Expected %s, got %s (score %v)", tt.want, s.Label, s.Score)
			}
		})
	}
}

func TestSentimentConfig_LabelThreshold(t *testing.T) {
	tests := []struct {
		cfg  SentimentConfig
		want float64
	}{
		{SentimentConfig{}, DefaultThreshold},
		{SentimentConfig{Policy: PolicyCompound, Threshold: 0.2}, 0.2},
		{SentimentConfig{Policy: PolicyStrict, Threshold: 0.2}, 0},
	}
	for _, tt := range tests {
		if got := tt.cfg.LabelThreshold(); got != tt.want {
			t.Errorf("LabelThreshold(%+v): expected %v, got %v", tt.cfg, tt.want, got)
		}
	}
}

type fakeEmbedder struct {
	mu    sync.Mutex
	calls int
}

func (f *fakeEmbedder) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()

	out := make([][]float64, len(texts))
	for i, text := range texts {
		switch {
		case text == "pos", strings.Contains(text, "great"):
			out[i] = []float64{1, 0.1}
		default:
			out[i] = []float64{0.1, 1}
		}
	}
	return out, nil
}

func TestEmbeddingSentiment(t *testing.T) {
	embedder := &fakeEmbedder{}
	e := NewEmbeddingSentiment(embedder, EmbeddingConfig{Positive: []string{"pos"}, Negative: []string{"neg"}}, LanguageEN)
	ctx := context.Background()

	s, err := e.Analyze(ctx, "a great day")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if s.Label != news.Positive || s.Score <= 0 {
		t.Errorf("Expected positive, got %s (%v)", s.Label, s.Score)
	}

	s, _ = e.Analyze(ctx, "a dreadful day")
	if s.Label != news.Negative {
		t.Errorf("Expected negative, got %s (%v)", s.Label, s.Score)
	}

	if embedder.calls != 3 {
		t.Errorf("Expected anchors embedded once (3 calls), got %d", embedder.calls)
	}
}

func TestRegexEntities(t *testing.T) {
	r, err := NewRegexEntities(nil)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	text := "O presidente José Silva visitou São Paulo ontem."
	entities, _ := r.Extract(context.Background(), text)

	var found bool
	for _, e := range entities {
		if e.Type == "PERSON" && e.Text == "José Silva" {
			found = true
			if e.Start != strings.Index(text, "José Silva") || text[e.Start:e.End] != "José Silva" {
				t.Errorf("Expected byte span of José Silva, got %d-%d", e.Start, e.End)
			}
			if e.Confidence != 0.6 {
				t.Errorf("Expected confidence 0.6, got %v", e.Confidence)
			}
		}
	}
	if !found {
		t.Errorf("Expected PERSON José Silva, got %+v", entities)
	}

	if _, err := NewRegexEntities(map[string]string{"BAD": "("}); err == nil {
		t.Error("Expected invalid pattern error")
	}
}

func TestEntityAnalyzer_TypesFilter(t *testing.T) {
	backend := fixedEntities{
		{Text: "Ana Lima", Type: "PERSON"},
		{Text: "Recife", Type: "LOC"},
	}
	a := NewEntityAnalyzer(backend, []string{"loc"})

	entities := a.Extract(context.Background(), "Ana Lima em Recife")
	if len(entities) != 1 || entities[0].Text != "Recife" {
		t.Errorf("Expected only LOC entity, got %+v", entities)
	}

	fallback := NewEntityAnalyzer(nil, []string{"ORG"})
	if got := fallback.Extract(context.Background(), "Ontem Maria Souza falou"); len(got) != 0 {
		t.Errorf("Expected allow-list to filter fallback output, got %+v", got)
	}
}

func TestEntityAnalyzer_Fallback(t *testing.T) {
	a := NewEntityAnalyzer(nil, nil)
	text := "Ontem Maria  Souza falou"

	entities := a.Extract(context.Background(), text)
	if len(entities) != 2 {
		t.Fatalf("Expected 2 entities, got %+v", entities)
	}

	e := entities[1]
	if e.Text != "Maria Souza" || e.Type != "PERSON" || e.Confidence != 0.5 {
		t.Errorf("Expected PERSON Maria Souza at 0.5, got %+v", e)
	}
	if text[e.Start:e.End] != "Maria  Souza" {
		t.Errorf("Expected span over the source text, got %q", text[e.Start:e.End])
	}

	if got := a.Extract(context.Background(), ""); got != nil {
		t.Errorf("Expected nil for empty text, got %+v", got)
	}
}

func TestTFIDF(t *testing.T) {
	tf := NewTFIDF(LanguagePT)

	keywords, err := tf.Extract(context.Background(), "O mercado, o mercado e a alta")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(keywords) == 0 || keywords[0].Text != "mercado" {
		t.Fatalf("Expected mercado first, got %+v", keywords)
	}
	if !almostEqual(keywords[0].Score, 2/math.Sqrt(7)) {
		t.Errorf("Expected 2/sqrt(7), got %v", keywords[0].Score)
	}

	var sum float64
	for _, k := range keywords {
		sum += k.Score * k.Score
		if k.Method != "tfidf" {
			t.Errorf("Expected tfidf method, got %s", k.Method)
		}
	}
	if !almostEqual(sum, 1) {
		t.Errorf("Expected unit L2 norm, got %v", sum)
	}
}

func TestKeywordAnalyzer_Refine(t *testing.T) {
	backend := fixedKeywords{
		{Text: "ab", Score: 0.9},
		{Text: "The", Score: 0.8},
		{Text: "economia", Score: 0.5},
		{Text: "inflação", Score: 0.7},
	}
	a := NewKeywordAnalyzer(backend, 2, 3, []string{"the"})

	got := a.Extract(context.Background(), "texto qualquer")
	if len(got) != 2 || got[0].Text != "inflação" || got[1].Text != "economia" {
		t.Errorf("Expected [inflação economia], got %+v", got)
	}
	if a.Stats().TotalProcessed != 1 {
		t.Errorf("Expected 1 processed, got %d", a.Stats().TotalProcessed)
	}
}

func TestKeywordAnalyzer_Fallback(t *testing.T) {
	a := NewKeywordAnalyzer(nil, 0, 0, nil)

	got := a.Extract(context.Background(), "Economia cresce. Economia forte, emprego forte e economia estável.")
	if len(got) != 2 {
		t.Fatalf("Expected 2 keywords, got %+v", got)
	}
	if got[0].Text != "economia" || !almostEqual(got[0].Score, 3.0/9.0) {
		t.Errorf("Expected economia at 3/9, got %+v", got[0])
	}
	if got[1].Text != "forte" || got[1].Method != "frequency" {
		t.Errorf("Expected forte by frequency, got %+v", got[1])
	}
}

func TestConfig_Build(t *testing.T) {
	if _, err := (SentimentConfig{Backend: "spacy"}).Build(); err == nil {
		t.Error("Expected unknown sentiment backend error")
	}
	if _, err := (SentimentConfig{Backend: BackendRemote}).Build(); err == nil {
		t.Error("Expected remote backend to require an endpoint")
	}

	s, err := (SentimentConfig{Backend: BackendVader}).Build()
	if err != nil || s.Backend() != "vader" {
		t.Errorf("Expected vader analyzer, got %v (%v)", s, err)
	}

	k, err := (KeywordConfig{}).Build()
	if err != nil || k.Backend() != "fallback" {
		t.Errorf("Expected fallback keyword analyzer, got %v (%v)", k, err)
	}

	e, err := (EntityConfig{Backend: BackendRegex}).Build()
	if err != nil || e.Backend() != "regex" {
		t.Errorf("Expected regex entity analyzer, got %v (%v)", e, err)
	}
}
