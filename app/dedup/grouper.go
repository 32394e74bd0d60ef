package dedup

import (
	"fmt"
	"net/url"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/lysyi3m/news-comb/app/news"
	"github.com/lysyi3m/news-comb/app/textutil"
)

const (
	DefaultThreshold = 0.8
	shingleSize      = 3
)

type Weights struct {
	Title   float64 `yaml:"title"`
	Content float64 `yaml:"content"`
	URL     float64 `yaml:"url"`
}

var DefaultWeights = Weights{Title: 0.5, Content: 0.35, URL: 0.15}

type Grouper struct {
	threshold float64
	weights   Weights
	now       func() time.Time
}

// NewGrouper returns a grouper; a non-positive threshold or all-zero weights
// fall back to the defaults.
func NewGrouper(threshold float64, weights Weights) *Grouper {
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultThreshold
	}
	if weights.Title <= 0 && weights.Content <= 0 && weights.URL <= 0 {
		weights = DefaultWeights
	}
	return &Grouper{threshold: threshold, weights: weights, now: time.Now}
}

func (g *Grouper) Threshold() float64 { return g.threshold }

// Similarity holds the per-signal scores of one article pair.
type Similarity struct {
	Title    float64
	Content  float64
	URL      float64
	Combined float64
}

type fingerprint struct {
	title    map[string]struct{}
	shingles map[string]struct{}
	url      map[string]struct{}
}

func newFingerprint(a news.Article) fingerprint {
	return fingerprint{
		title:    toSet(textutil.Words(textutil.FoldAccents(a.Title))),
		shingles: shingles(textutil.Words(textutil.FoldAccents(a.Content)), shingleSize),
		url:      urlTokens(a.URL),
	}
}

// Compare scores two articles. Signals that are empty on both sides carry
// no weight and the remaining weights are renormalized.
func (g *Grouper) Compare(a, b news.Article) Similarity {
	return g.compare(newFingerprint(a), newFingerprint(b))
}

func (g *Grouper) compare(a, b fingerprint) Similarity {
	var s Similarity
	var sum, weight float64

	if ts, ok := jaccard(a.title, b.title); ok {
		s.Title = ts
		sum += g.weights.Title * ts
		weight += g.weights.Title
	}
	if cs, ok := jaccard(a.shingles, b.shingles); ok {
		s.Content = cs
		sum += g.weights.Content * cs
		weight += g.weights.Content
	}
	if us, ok := jaccard(a.url, b.url); ok {
		s.URL = us
		sum += g.weights.URL * us
		weight += g.weights.URL
	}

	if weight > 0 {
		s.Combined = sum / weight
	}
	return s
}

// Group partitions articles into duplicate groups. Singletons are not
// returned. Members are sorted by ID and the canonical index points at the
// most complete article.
func (g *Grouper) Group(articles []news.Article) []news.DuplicateGroup {
	n := len(articles)
	if n < 2 {
		return nil
	}

	prints := make([]fingerprint, n)
	for i, a := range articles {
		prints[i] = newFingerprint(a)
	}

	parent := make([]int, n)
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(i int) int {
		if parent[i] != i {
			parent[i] = find(parent[i])
		}
		return parent[i]
	}

	type link struct {
		i, j int
		sim  Similarity
	}
	var links []link
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			sim := g.compare(prints[i], prints[j])
			if sim.Combined < g.threshold {
				continue
			}
			links = append(links, link{i: i, j: j, sim: sim})
			ri, rj := find(i), find(j)
			if ri != rj {
				parent[rj] = ri
			}
		}
	}
	if len(links) == 0 {
		return nil
	}

	members := make(map[int][]int)
	for i := range articles {
		root := find(i)
		members[root] = append(members[root], i)
	}

	type totals struct {
		title, content, url float64
		count               int
	}
	sims := make(map[int]*totals)
	for _, l := range links {
		root := find(l.i)
		t := sims[root]
		if t == nil {
			t = &totals{}
			sims[root] = t
		}
		t.title += l.sim.Title
		t.content += l.sim.Content
		t.url += l.sim.URL
		t.count++
	}

	now := g.now()
	var groups []news.DuplicateGroup
	for root, idx := range members {
		if len(idx) < 2 {
			continue
		}
		slices.SortFunc(idx, func(x, y int) int {
			return compareInt64(articles[x].ID, articles[y].ID)
		})

		best := 0
		ids := make([]int64, len(idx))
		for k, i := range idx {
			ids[k] = articles[i].ID
			if betterCanonical(articles[i], articles[idx[best]]) {
				best = k
			}
		}

		t := sims[root]
		groups = append(groups, news.DuplicateGroup{
			Members:           ids,
			Canonical:         best,
			TitleSimilarity:   t.title / float64(t.count),
			ContentSimilarity: t.content / float64(t.count),
			URLSimilarity:     t.url / float64(t.count),
			Status:            news.GroupUnresolved,
			CreatedAt:         now,
			UpdatedAt:         now,
		})
	}

	slices.SortFunc(groups, func(a, b news.DuplicateGroup) int {
		return compareInt64(a.Members[0], b.Members[0])
	})
	return groups
}

// Resolve marks the group resolved. A non-zero canonicalID moves the
// canonical pointer and must be a member.
func Resolve(group *news.DuplicateGroup, method string, canonicalID int64) error {
	if method == "" {
		return fmt.Errorf("resolution method is required")
	}
	if canonicalID != 0 {
		idx := slices.Index(group.Members, canonicalID)
		if idx < 0 {
			return fmt.Errorf("article %d is not a member of group %d", canonicalID, group.ID)
		}
		group.Canonical = idx
	}
	group.Status = news.GroupResolved
	group.ResolutionMethod = method
	group.UpdatedAt = time.Now()
	return nil
}

func completeness(a news.Article) int {
	score := 0
	if utf8.RuneCountInString(a.Title) > 10 {
		score++
	}
	if utf8.RuneCountInString(a.Content) > 100 {
		score++
	}
	if a.Author != "" {
		score++
	}
	if a.PublishedAt != nil {
		score++
	}
	if a.URL != "" {
		score++
	}
	return score
}

// betterCanonical orders by completeness, then content length, then lowest ID.
func betterCanonical(a, b news.Article) bool {
	if ca, cb := completeness(a), completeness(b); ca != cb {
		return ca > cb
	}
	if la, lb := utf8.RuneCountInString(a.Content), utf8.RuneCountInString(b.Content); la != lb {
		return la > lb
	}
	return a.ID < b.ID
}

func compareInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func toSet(words []string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

func shingles(words []string, size int) map[string]struct{} {
	if len(words) == 0 {
		return nil
	}
	if len(words) < size {
		return map[string]struct{}{strings.Join(words, " "): {}}
	}
	set := make(map[string]struct{}, len(words)-size+1)
	for i := 0; i+size <= len(words); i++ {
		set[strings.Join(words[i:i+size], " ")] = struct{}{}
	}
	return set
}

func urlTokens(raw string) map[string]struct{} {
	canonical := CanonicalURL(raw)
	if canonical == "" {
		return nil
	}
	u, err := url.Parse(canonical)
	if err != nil {
		return toSet(textutil.Words(canonical))
	}
	tokens := []string{strings.TrimPrefix(u.Hostname(), "www.")}
	tokens = append(tokens, textutil.Words(strings.NewReplacer("/", " ", "-", " ", "_", " ", ".", " ").Replace(u.Path))...)
	return toSet(tokens)
}

// jaccard returns false when both sets are empty.
func jaccard(a, b map[string]struct{}) (float64, bool) {
	if len(a) == 0 && len(b) == 0 {
		return 0, false
	}
	if len(a) == 0 || len(b) == 0 {
		return 0, true
	}
	inter := 0
	for k := range a {
		if _, ok := b[k]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union), true
}
