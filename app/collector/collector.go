package collector

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/lysyi3m/news-comb/app/news"
	"github.com/lysyi3m/news-comb/app/source"
)

// Collector fetches raw candidates from one kind of source. A run record is
// always returned, including for failed runs.
type Collector interface {
	Kind() source.Kind
	Collect(ctx context.Context, src *source.Config) ([]news.Candidate, news.RunRecord)
}

type Factory struct {
	userAgent  string
	mu         sync.Mutex
	transports map[string]Fetcher
	newFetcher func(src *source.Config, userAgent string) (Fetcher, error)
}

func NewFactory(userAgent string) *Factory {
	return &Factory{
		userAgent:  userAgent,
		transports: make(map[string]Fetcher),
		newFetcher: func(src *source.Config, userAgent string) (Fetcher, error) {
			return NewTransport(src, userAgent)
		},
	}
}

// New resolves the collector variant from the source kind. Unknown kinds get
// the website collector. The transport is kept per source so its rate limit
// holds across runs.
func (f *Factory) New(src *source.Config) (Collector, error) {
	fetcher, err := f.Fetcher(src)
	if err != nil {
		return nil, err
	}

	switch src.Kind {
	case source.KindRSS:
		return NewRSSCollector(fetcher), nil
	case source.KindAPI:
		return NewAPICollector(fetcher), nil
	case source.KindSocial:
		return NewSocialCollector(fetcher), nil
	default:
		return NewWebsiteCollector(fetcher), nil
	}
}

// Forget drops the cached transport of a source, e.g. after its config changed.
func (f *Factory) Forget(sourceName string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.transports, sourceName)
}

// Fetcher returns the shared transport of a source.
func (f *Factory) Fetcher(src *source.Config) (Fetcher, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if t, ok := f.transports[src.Name]; ok {
		return t, nil
	}

	t, err := f.newFetcher(src, f.userAgent)
	if err != nil {
		return nil, fmt.Errorf("failed to create transport for %s: %w", src.Name, err)
	}
	f.transports[src.Name] = t
	return t, nil
}

// runLog accumulates the outcome of one collection run.
type runLog struct {
	record news.RunRecord
	fatal  bool
}

func newRunLog(sourceName string) *runLog {
	return &runLog{
		record: news.RunRecord{
			Source:    sourceName,
			StartedAt: time.Now().UTC(),
		},
	}
}

// begin opens a run and fails it right away on a kind mismatch.
func begin(src *source.Config, kind source.Kind) (*runLog, bool) {
	l := newRunLog(src.Name)
	if src.Kind != kind {
		l.fail(fmt.Errorf("source kind mismatch: %s collector cannot collect %s source", kind, src.Kind))
		return l, false
	}
	return l, true
}

func (l *runLog) errorf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	l.record.Errors = append(l.record.Errors, msg)
	slog.Warn("Collection error", "source", l.record.Source, "error", msg)
}

// fail records a run-fatal error.
func (l *runLog) fail(err error) {
	l.fatal = true
	l.record.Errors = append(l.record.Errors, err.Error())
	slog.Error("Collection failed", "source", l.record.Source, "error", err)
}

func (l *runLog) found() {
	l.record.Found++
}

func (l *runLog) finish(collected int) news.RunRecord {
	l.record.Collected = collected
	l.record.CompletedAt = time.Now().UTC()

	switch {
	case l.fatal:
		l.record.Status = news.RunError
	case len(l.record.Errors) > 0:
		l.record.Status = news.RunPartial
	default:
		l.record.Status = news.RunSuccess
	}
	return l.record
}

// candidateSet collects validated candidates, skipping repeated URLs within a run.
type candidateSet struct {
	items []news.Candidate
	seen  map[string]bool
	limit int
}

func newCandidateSet(limit int) *candidateSet {
	return &candidateSet{seen: make(map[string]bool), limit: limit}
}

// add reports whether the candidate was kept. Candidates without a title or
// URL fail validation and are dropped silently.
func (s *candidateSet) add(c news.Candidate) bool {
	c.Title = strings.TrimSpace(c.Title)
	c.URL = strings.TrimSpace(c.URL)
	if c.Title == "" || c.URL == "" {
		return false
	}
	if s.seen[c.URL] {
		return false
	}
	s.seen[c.URL] = true
	s.items = append(s.items, c)
	return true
}

func (s *candidateSet) full() bool {
	return s.limit > 0 && len(s.items) >= s.limit
}

func cancelled(ctx context.Context, l *runLog) bool {
	if err := ctx.Err(); err != nil {
		l.errorf("collection interrupted: %v", err)
		return true
	}
	return false
}
