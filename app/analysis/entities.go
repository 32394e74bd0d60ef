package analysis

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"slices"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/lysyi3m/news-comb/app/news"
	"github.com/lysyi3m/news-comb/app/textutil"
)

type EntityBackend interface {
	Name() string
	Extract(ctx context.Context, text string) ([]news.Entity, error)
}

var DefaultEntityPatterns = map[string]string{
	"PERSON": `\p{Lu}\p{Ll}+ \p{Lu}\p{Ll}+`,
	"ORG":    `\p{Lu}[\p{Lu}\s&]+(?:Corp|Inc|Ltd|LLC|SA|LTDA)`,
	"LOC":    `\p{Lu}\p{Ll}+(?: de | da | do )?\p{Lu}\p{Ll}+`,
}

type entityPattern struct {
	kind string
	re   *regexp.Regexp
}

// RegexEntities matches one expression per entity type. Matches must start
// and end on word boundaries in any script.
type RegexEntities struct {
	patterns []entityPattern
}

func NewRegexEntities(patterns map[string]string) (*RegexEntities, error) {
	if len(patterns) == 0 {
		patterns = DefaultEntityPatterns
	}

	kinds := make([]string, 0, len(patterns))
	for kind := range patterns {
		kinds = append(kinds, kind)
	}
	slices.Sort(kinds)

	r := &RegexEntities{}
	for _, kind := range kinds {
		re, err := regexp.Compile(patterns[kind])
		if err != nil {
			return nil, fmt.Errorf("invalid %s pattern: %w", kind, err)
		}
		r.patterns = append(r.patterns, entityPattern{kind: kind, re: re})
	}
	return r, nil
}

func (r *RegexEntities) Name() string { return "regex" }

func (r *RegexEntities) Extract(ctx context.Context, text string) ([]news.Entity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var entities []news.Entity
	for _, p := range r.patterns {
		for _, m := range p.re.FindAllStringIndex(text, -1) {
			if !wordBoundary(text, m[0], m[1]) {
				continue
			}
			entities = append(entities, news.Entity{
				Text:       text[m[0]:m[1]],
				Type:       p.kind,
				Start:      m[0],
				End:        m[1],
				Confidence: 0.6,
			})
		}
	}
	return entities, nil
}

func wordBoundary(text string, start, end int) bool {
	if start > 0 {
		r, _ := utf8.DecodeLastRuneInString(text[:start])
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return false
		}
	}
	if end < len(text) {
		r, _ := utf8.DecodeRuneInString(text[end:])
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

type EntityAnalyzer struct {
	backend EntityBackend
	types   map[string]struct{}
	stats   Stats
}

// NewEntityAnalyzer keeps only entities whose type is in types; an empty
// list keeps all.
func NewEntityAnalyzer(backend EntityBackend, types []string) *EntityAnalyzer {
	a := &EntityAnalyzer{backend: backend}
	if len(types) > 0 {
		a.types = make(map[string]struct{}, len(types))
		for _, t := range types {
			a.types[strings.ToUpper(t)] = struct{}{}
		}
	}
	return a
}

func (a *EntityAnalyzer) Backend() string {
	if a.backend == nil {
		return "fallback"
	}
	return a.backend.Name()
}

func (a *EntityAnalyzer) Stats() StatsSnapshot {
	return a.stats.Snapshot()
}

func (a *EntityAnalyzer) Extract(ctx context.Context, text string) []news.Entity {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	var entities []news.Entity
	if a.backend == nil {
		entities = fallbackEntities(text)
	} else {
		start := time.Now()
		result, err := guard(func() ([]news.Entity, error) {
			return a.backend.Extract(ctx, text)
		})
		if err != nil {
			slog.Warn("Entity backend failed, using fallback", "backend", a.backend.Name(), "error", err)
			entities = fallbackEntities(text)
		} else {
			a.stats.Record(time.Since(start))
			entities = result
		}
	}

	return a.filter(entities)
}

func (a *EntityAnalyzer) filter(entities []news.Entity) []news.Entity {
	if a.types == nil {
		return entities
	}
	kept := entities[:0]
	for _, e := range entities {
		if _, ok := a.types[strings.ToUpper(e.Type)]; ok {
			kept = append(kept, e)
		}
	}
	return kept
}

// fallbackEntities pairs adjacent capitalized words into PERSON entities.
// The first word needs at least three runes.
func fallbackEntities(text string) []news.Entity {
	tokens := textutil.Tokens(text)

	var entities []news.Entity
	for i := 0; i+1 < len(tokens); i++ {
		first, next := tokens[i], tokens[i+1]
		if utf8.RuneCountInString(first.Text) < 3 || !startsUpper(first.Text) || !startsUpper(next.Text) {
			continue
		}
		entities = append(entities, news.Entity{
			Text:       first.Text + " " + next.Text,
			Type:       "PERSON",
			Start:      first.Start,
			End:        next.End,
			Confidence: 0.5,
		})
	}
	return entities
}

func startsUpper(s string) bool {
	r, _ := utf8.DecodeRuneInString(s)
	return unicode.IsUpper(r)
}
