package collector

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"unicode/utf8"

	"github.com/go-shiori/go-readability"

	"github.com/lysyi3m/news-comb/app/textutil"
)

// ErrNoContent means the page had no readable body of useful length.
var ErrNoContent = errors.New("no readable content")

const defaultMinContentLength = 140

// ContentExtractor pulls the readable body out of an article page.
// Bodies shorter than minLength runes are index or teaser pages.
type ContentExtractor struct {
	minLength int
}

func NewContentExtractor() *ContentExtractor {
	return &ContentExtractor{minLength: defaultMinContentLength}
}

func (e *ContentExtractor) Run(data []byte, pageURL string) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("%w: HTML data is empty", ErrNoContent)
	}

	parsedURL, _ := url.Parse(pageURL)
	article, err := readability.FromReader(bytes.NewReader(data), parsedURL)
	if err != nil {
		return "", fmt.Errorf("failed to extract content: %w", err)
	}

	content := textutil.CollapseWhitespace(article.TextContent)
	if n := utf8.RuneCountInString(content); n < e.minLength {
		return "", fmt.Errorf("%w: %d characters extracted from %s", ErrNoContent, n, pageURL)
	}

	slog.Debug("Content extracted successfully",
		"title", article.Title,
		"content_length", len(content))

	return content, nil
}

// Fetch downloads pageURL through fetcher and extracts its content.
func (e *ContentExtractor) Fetch(ctx context.Context, fetcher Fetcher, pageURL string) (string, error) {
	data, err := fetcher.Fetch(ctx, pageURL, nil)
	if err != nil {
		return "", err
	}
	return e.Run(data, pageURL)
}
