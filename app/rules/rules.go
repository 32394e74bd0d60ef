package rules

import (
	"cmp"
	"fmt"
	"log/slog"
	"regexp"
	"slices"
	"sync"
	"sync/atomic"
	"unicode"
	"unicode/utf8"

	"github.com/lysyi3m/news-comb/app/textutil"
)

type Type string

const (
	TextFilter   Type = "text_filter"
	RegexReplace Type = "regex_replace"
	HTMLClean    Type = "html_clean"
)

type Parameters struct {
	RemoveWords    []string `yaml:"remove_words"`
	RemovePatterns []string `yaml:"remove_patterns"`
	Pattern        string   `yaml:"pattern"`
	Replacement    *string  `yaml:"replacement"`
}

type Rule struct {
	Name       string     `yaml:"name"`
	Type       Type       `yaml:"type"`
	Priority   int        `yaml:"priority"`
	Active     *bool      `yaml:"active"`
	Parameters Parameters `yaml:"parameters"`

	once     sync.Once
	compiled *compiled
	stats    counters
}

type compiled struct {
	words    []*regexp.Regexp
	patterns []*regexp.Regexp
	replace  *regexp.Regexp
	err      error
}

type counters struct {
	applied   atomic.Int64
	succeeded atomic.Int64
	failed    atomic.Int64
}

type Stats struct {
	Name      string `json:"name"`
	Type      Type   `json:"type"`
	Applied   int64  `json:"total_applied"`
	Succeeded int64  `json:"success_count"`
	Failed    int64  `json:"error_count"`
}

func (r *Rule) IsActive() bool {
	return r.Active == nil || *r.Active
}

func (r *Rule) Stats() Stats {
	return Stats{
		Name:      r.Name,
		Type:      r.Type,
		Applied:   r.stats.applied.Load(),
		Succeeded: r.stats.succeeded.Load(),
		Failed:    r.stats.failed.Load(),
	}
}

// Validate compiles the rule's expressions and reports the first error.
func (r *Rule) Validate() error {
	if r.Name == "" {
		return fmt.Errorf("rule name is required")
	}
	switch r.Type {
	case TextFilter, RegexReplace, HTMLClean:
	default:
		return fmt.Errorf("rule %s: unknown type %q", r.Name, r.Type)
	}
	return r.compile().err
}

func (r *Rule) compile() *compiled {
	r.once.Do(func() {
		c := &compiled{}
		for _, w := range r.Parameters.RemoveWords {
			if w == "" {
				continue
			}
			c.words = append(c.words, regexp.MustCompile("(?i)"+regexp.QuoteMeta(w)))
		}
		for _, p := range r.Parameters.RemovePatterns {
			re, err := regexp.Compile(p)
			if err != nil {
				c.err = fmt.Errorf("rule %s: invalid pattern %q: %w", r.Name, p, err)
				break
			}
			c.patterns = append(c.patterns, re)
		}
		if c.err == nil && r.Parameters.Pattern != "" {
			re, err := regexp.Compile(r.Parameters.Pattern)
			if err != nil {
				c.err = fmt.Errorf("rule %s: invalid pattern %q: %w", r.Name, r.Parameters.Pattern, err)
			} else {
				c.replace = re
			}
		}
		r.compiled = c
	})
	return r.compiled
}

func (r *Rule) apply(text string) (string, error) {
	c := r.compile()

	switch r.Type {
	case TextFilter:
		if c.err != nil {
			return text, c.err
		}
		for _, re := range c.words {
			text = removeWholeWords(text, re)
		}
		for _, re := range c.patterns {
			text = re.ReplaceAllString(text, "")
		}
		return text, nil
	case RegexReplace:
		if c.err != nil {
			return text, c.err
		}
		if c.replace == nil || r.Parameters.Replacement == nil {
			return text, nil
		}
		return c.replace.ReplaceAllString(text, *r.Parameters.Replacement), nil
	case HTMLClean:
		return textutil.StripMarkup(text), nil
	default:
		return text, fmt.Errorf("rule %s: unknown type %q", r.Name, r.Type)
	}
}

// Apply runs the active rules over text in ascending priority, ties broken
// by name. A failing rule is logged and counted and the text it received
// is passed on unchanged.
func Apply(text string, rules []*Rule) string {
	if len(rules) == 0 {
		return text
	}

	ordered := slices.Clone(rules)
	slices.SortStableFunc(ordered, func(a, b *Rule) int {
		return cmp.Or(cmp.Compare(a.Priority, b.Priority), cmp.Compare(a.Name, b.Name))
	})

	for _, rule := range ordered {
		if !rule.IsActive() {
			continue
		}
		rule.stats.applied.Add(1)
		out, err := rule.apply(text)
		if err != nil {
			rule.stats.failed.Add(1)
			slog.Error("Failed to apply rule", "rule", rule.Name, "type", rule.Type, "error", err)
			continue
		}
		rule.stats.succeeded.Add(1)
		text = out
	}

	return text
}

// Engine is a fixed rule set.
type Engine struct {
	rules []*Rule
}

func NewEngine(rules []*Rule) *Engine {
	return &Engine{rules: rules}
}

func (e *Engine) Apply(text string) string {
	if e == nil {
		return text
	}
	return Apply(text, e.rules)
}

func (e *Engine) Stats() []Stats {
	if e == nil {
		return nil
	}
	stats := make([]Stats, 0, len(e.rules))
	for _, r := range e.rules {
		stats = append(stats, r.Stats())
	}
	return stats
}

// removeWholeWords deletes case-insensitive matches of re that are not
// embedded in a longer word. Letters, digits and underscore count as word
// runes in any script.
func removeWholeWords(text string, re *regexp.Regexp) string {
	matches := re.FindAllStringIndex(text, -1)
	if len(matches) == 0 {
		return text
	}

	out := make([]byte, 0, len(text))
	last := 0
	for _, m := range matches {
		if !boundaryBefore(text, m[0]) || !boundaryAfter(text, m[1]) {
			continue
		}
		out = append(out, text[last:m[0]]...)
		last = m[1]
	}
	out = append(out, text[last:]...)
	return string(out)
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_'
}

func boundaryBefore(text string, i int) bool {
	if i == 0 {
		return true
	}
	r, _ := utf8.DecodeLastRuneInString(text[:i])
	return !isWordRune(r)
}

func boundaryAfter(text string, i int) bool {
	if i >= len(text) {
		return true
	}
	r, _ := utf8.DecodeRuneInString(text[i:])
	return !isWordRune(r)
}
