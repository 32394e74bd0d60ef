package feed

import (
	"strings"
	"testing"
	"time"

	"github.com/lysyi3m/news-comb/app/news"
)

func TestGenerateRSS(t *testing.T) {
	generator := NewGenerator("https://news.example.com", "1.2.0")

	channel := Channel{
		Name:     "g1",
		Title:    "G1",
		Link:     "https://g1.example.com",
		Language: "pt-BR",
	}

	publishedTime := time.Date(2023, 7, 3, 10, 0, 0, 0, time.UTC)
	collectedTime := time.Date(2023, 7, 4, 8, 0, 0, 0, time.UTC)

	articles := []news.Article{
		{
			ID:          1,
			Title:       "Economia cresce",
			URL:         "https://g1.example.com/noticia/1",
			Summary:     "Resumo da notícia",
			Content:     "Conteúdo completo da notícia",
			Author:      "Ana Souza",
			PublishedAt: &publishedTime,
			Keywords:    []string{"economia", "crescimento"},
		},
		{
			ID:          2,
			Title:       "Chuvas no sul",
			URL:         "https://g1.example.com/noticia/2",
			Content:     "Chuvas fortes atingem a região",
			CollectedAt: collectedTime,
		},
	}

	rss, err := generator.Run(channel, articles)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	// Verify RSS structure
	if !strings.Contains(rss, `<?xml version="1.0" encoding="UTF-8"?>`) {
		t.Error("RSS should contain XML declaration")
	}

	if !strings.Contains(rss, `xmlns:content="http://purl.org/rss/1.0/modules/content/"`) {
		t.Error("RSS should contain content namespace")
	}

	// Verify channel metadata
	if !strings.Contains(rss, "<title>G1</title>") {
		t.Error("RSS should contain channel title")
	}

	if !strings.Contains(rss, "<description>Analyzed articles from https://g1.example.com</description>") {
		t.Error("RSS should contain channel description")
	}

	if !strings.Contains(rss, `<atom:link href="https://news.example.com/feeds/g1" rel="self" type="application/rss+xml" />`) {
		t.Error("RSS should contain atom:link self reference")
	}

	if !strings.Contains(rss, "<generator>News-Comb/1.2.0</generator>") {
		t.Error("RSS should contain generator with version")
	}

	if !strings.Contains(rss, "<language>pt-BR</language>") {
		t.Error("RSS should contain language")
	}

	if !strings.Contains(rss, "<lastBuildDate>Mon, 03 Jul 2023 10:00:00 +0000</lastBuildDate>") {
		t.Error("RSS lastBuildDate should follow the newest article")
	}

	// Verify items
	if !strings.Contains(rss, `<guid isPermaLink="true">https://g1.example.com/noticia/1</guid>`) {
		t.Error("RSS should contain first item GUID")
	}

	if !strings.Contains(rss, "<description>Resumo da notícia</description>") {
		t.Error("RSS should prefer the summary as description")
	}

	if !strings.Contains(rss, "<content:encoded><![CDATA[Conteúdo completo da notícia]]></content:encoded>") {
		t.Error("RSS should contain first item content")
	}

	if !strings.Contains(rss, "<author>Ana Souza</author>") {
		t.Error("RSS should contain first item author")
	}

	if !strings.Contains(rss, "<category>economia</category>") || !strings.Contains(rss, "<category>crescimento</category>") {
		t.Error("RSS should list keywords as categories")
	}

	// Second item falls back to content for description and collection time for date
	if !strings.Contains(rss, "<description>Chuvas fortes atingem a região</description>") {
		t.Error("RSS should use content as description when no summary")
	}

	if strings.Count(rss, "<content:encoded>") != 1 {
		t.Error("RSS should not repeat content identical to the description")
	}

	if !strings.Contains(rss, "<pubDate>Tue, 04 Jul 2023 08:00:00 +0000</pubDate>") {
		t.Error("RSS should fall back to the collection time")
	}
}

func TestGenerateWithLongContent(t *testing.T) {
	generator := NewGenerator("", "")

	content := strings.Repeat("palavra ", 100)
	rss, err := generator.Run(Channel{Name: "g1"}, []news.Article{{Title: "Longo", URL: "https://g1.example.com/x", Content: content}})
	if err != nil {
		t.Fatal(err)
	}

	if !strings.Contains(rss, "…</description>") {
		t.Error("Long content should be truncated in the description")
	}
	if !strings.Contains(rss, "<content:encoded>") {
		t.Error("Full content should still be included")
	}
}

func TestGenerateWithSpecialCharacters(t *testing.T) {
	generator := NewGenerator("", "")

	channel := Channel{Name: "special", Title: "Feed with <special> & \"characters\""}
	articles := []news.Article{
		{
			Title:    "Item with <tags> & \"quotes\"",
			URL:      "https://example.com/item",
			Summary:  "Description with <em>emphasis</em>",
			Content:  "Content with <strong>bold</strong> & special chars: <>&\"'",
			Author:   "Author with <brackets>",
			Keywords: []string{"Category & Ampersand"},
		},
	}

	rss, err := generator.Run(channel, articles)
	if err != nil {
		t.Fatalf("Expected no error with special characters, got: %v", err)
	}

	if !strings.Contains(rss, "Feed with &lt;special&gt; &amp; &#34;characters&#34;") {
		t.Error("Channel title should have escaped special characters")
	}

	if !strings.Contains(rss, "Item with &lt;tags&gt; &amp; &#34;quotes&#34;") {
		t.Error("Item title should have escaped special characters")
	}

	// Content should be in CDATA, so it shouldn't be escaped
	if !strings.Contains(rss, "<content:encoded><![CDATA[Content with <strong>bold</strong> & special chars: <>&\"']]></content:encoded>") {
		t.Error("Item content should be in CDATA without escaping")
	}

	if !strings.Contains(rss, "Author with &lt;brackets&gt;") {
		t.Error("Author name should have escaped special characters")
	}

	if !strings.Contains(rss, "<category>Category &amp; Ampersand</category>") {
		t.Error("Category with ampersand should be escaped")
	}
}

func TestGenerateWithEmptyArticles(t *testing.T) {
	generator := NewGenerator("", "")

	rss, err := generator.Run(Channel{Name: "empty"}, nil)
	if err != nil {
		t.Fatalf("Expected no error with empty items, got: %v", err)
	}

	if !strings.Contains(rss, "<title>empty</title>") {
		t.Error("Channel title should fall back to the source name")
	}

	if !strings.Contains(rss, `<atom:link href="http://localhost:8080/feeds/empty" rel="self" type="application/rss+xml" />`) {
		t.Error("RSS should contain localhost atom:link when no base URL is set")
	}

	if strings.Contains(rss, "<item>") {
		t.Error("Empty RSS should not contain any items")
	}

	if !strings.HasSuffix(rss, "</rss>") {
		t.Error("Empty RSS should end with closing rss tag")
	}
}

func TestGenerateLimitsCategories(t *testing.T) {
	generator := NewGenerator("", "")

	article := news.Article{Title: "T", URL: "https://example.com/t", Keywords: []string{"a1", "a2", "a3", "a4", "a5", "a6", "a7"}}
	rss, _ := generator.Run(Channel{Name: "c"}, []news.Article{article})

	if got := strings.Count(rss, "<category>"); got != maxCategories {
		t.Errorf("Expected %d categories, got %d", maxCategories, got)
	}
}

func TestIsURLMethod(t *testing.T) {
	generator := NewGenerator("", "")

	tests := []struct {
		input    string
		expected bool
	}{
		{"", false},
		{"http://example.com", true},
		{"https://example.com", true},
		{"ftp://example.com", false},
		{"not-a-url", false},
		{"http://", false},
		{"https://", false},
	}

	for _, test := range tests {
		result := generator.isURL(test.input)
		if result != test.expected {
			t.Errorf("For input '%s', expected %v, got %v", test.input, test.expected, result)
		}
	}
}
