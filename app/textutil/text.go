package textutil

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// StripMarkup returns the text content of an HTML fragment.
// Plain text passes through with entities decoded.
func StripMarkup(s string) string {
	if s == "" {
		return ""
	}
	if !strings.ContainsAny(s, "<&") {
		return s
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return s
	}
	doc.Find("script, style, noscript").Remove()
	return doc.Text()
}

func CollapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Clean strips markup, collapses whitespace and trims.
func Clean(s string) string {
	return CollapseWhitespace(StripMarkup(s))
}

// FoldAccents removes combining marks, so "incrível" becomes "incrivel".
func FoldAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return folded
}

// Normalize lowercases, folds accents and collapses whitespace.
func Normalize(s string) string {
	return CollapseWhitespace(FoldAccents(strings.ToLower(s)))
}

// Words splits s into lowercase alphanumeric tokens. Punctuation is dropped
// rather than used as a separator, so "e-mail" yields "email".
func Words(s string) []string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '_':
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		}
	}
	return strings.Fields(b.String())
}

// Token is a whitespace-delimited word with its byte span in the source text.
type Token struct {
	Text  string
	Start int
	End   int
}

func Tokens(s string) []Token {
	var tokens []Token
	start := -1
	for i, r := range s {
		if unicode.IsSpace(r) {
			if start >= 0 {
				tokens = append(tokens, Token{Text: s[start:i], Start: start, End: i})
				start = -1
			}
			continue
		}
		if start < 0 {
			start = i
		}
	}
	if start >= 0 {
		tokens = append(tokens, Token{Text: s[start:], Start: start, End: len(s)})
	}
	return tokens
}

// Truncate shortens s to at most n runes.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return strings.TrimSpace(string(r[:n]))
}

// Ellipsize truncates s like Truncate and marks the cut with an ellipsis.
func Ellipsize(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return Truncate(s, n) + "…"
}
