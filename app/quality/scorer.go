package quality

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/lysyi3m/news-comb/app/news"
)

const (
	readabilityWeight  = 0.20
	completenessWeight = 0.30
	accuracyWeight     = 0.25
	relevanceWeight    = 0.25

	vowels = "aeiouáéíóúâêîôûãõ"
)

var (
	sentenceSplit = regexp.MustCompile(`[.!?]+`)
	datePattern   = regexp.MustCompile(`\d{1,2}[/-]\d{1,2}[/-]\d{2,4}`)
	digitPattern  = regexp.MustCompile(`\d`)
	namePattern   = regexp.MustCompile(`\p{Lu}\p{Ll}+ \p{Lu}\p{Ll}+`)
)

// Score rates an article on four axes. Keywords and entities are the ones
// just extracted from it.
func Score(a news.Article, keywords []news.Keyword, entities []news.Entity) news.Quality {
	q := news.Quality{
		Readability:  Readability(a.Content),
		Completeness: Completeness(a),
		Accuracy:     Accuracy(a.Content),
		Relevance:    Relevance(len(keywords), len(entities)),
	}
	q.Overall = readabilityWeight*q.Readability +
		completenessWeight*q.Completeness +
		accuracyWeight*q.Accuracy +
		relevanceWeight*q.Relevance

	q.Factors = news.QualityFactors{
		HasTitle:      a.Title != "",
		HasContent:    a.Content != "",
		HasAuthor:     a.Author != "",
		HasDate:       a.PublishedAt != nil,
		ContentLength: utf8.RuneCountInString(a.Content),
		TitleLength:   utf8.RuneCountInString(a.Title),
		HasKeywords:   len(keywords) > 0,
		HasEntities:   len(entities) > 0,
		KeywordCount:  len(keywords),
		EntityCount:   len(entities),
	}
	return q
}

// Readability is a Flesch reading-ease score scaled to [0,1]. Every vowel
// counts as a syllable.
func Readability(text string) float64 {
	if text == "" {
		return 0
	}

	sentences := len(sentenceSplit.Split(text, -1))
	words := len(strings.Fields(text))
	if sentences == 0 || words == 0 {
		return 0
	}

	syllables := 0
	for _, r := range strings.ToLower(text) {
		if strings.ContainsRune(vowels, r) {
			syllables++
		}
	}

	score := 206.835 - 1.015*(float64(words)/float64(sentences)) - 84.6*(float64(syllables)/float64(words))
	return max(0, min(1, score/100))
}

func Completeness(a news.Article) float64 {
	checks := []bool{
		utf8.RuneCountInString(a.Title) > 10,
		utf8.RuneCountInString(a.Content) > 100,
		a.Author != "",
		a.PublishedAt != nil,
		a.URL != "",
	}
	return fraction(checks)
}

// Accuracy looks for the marks of a factual report: a date, a number, a
// full name and a quotation.
func Accuracy(content string) float64 {
	if content == "" {
		return 0
	}
	checks := []bool{
		datePattern.MatchString(content),
		digitPattern.MatchString(content),
		namePattern.MatchString(content),
		strings.ContainsAny(content, "\"“”"),
	}
	return fraction(checks)
}

func Relevance(keywords, entities int) float64 {
	k := min(1, float64(keywords)/10)
	e := min(1, float64(entities)/5)
	return (k + e) / 2
}

func fraction(checks []bool) float64 {
	n := 0
	for _, ok := range checks {
		if ok {
			n++
		}
	}
	return float64(n) / float64(len(checks))
}
