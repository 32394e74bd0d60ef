package feed

import (
	"bytes"
	"cmp"
	"encoding/xml"
	"fmt"
	"html"
	"time"

	"github.com/lysyi3m/news-comb/app/news"
	"github.com/lysyi3m/news-comb/app/textutil"
)

const (
	summaryLength  = 300
	maxCategories  = 5
	generatorAgent = "News-Comb"
)

// Channel describes the source an output feed is built for.
type Channel struct {
	Name     string
	Title    string
	Link     string
	Language string
}

// Generator renders analyzed articles as an RSS 2.0 document.
type Generator struct {
	baseURL string
	version string
}

func NewGenerator(baseURL, version string) *Generator {
	return &Generator{baseURL: baseURL, version: version}
}

func (g *Generator) Run(channel Channel, articles []news.Article) (string, error) {
	var buf bytes.Buffer

	buf.WriteString(`<?xml version="1.0" encoding="UTF-8"?>`)
	buf.WriteString("\n")
	buf.WriteString(`<rss version="2.0" xmlns:content="http://purl.org/rss/1.0/modules/content/" xmlns:atom="http://www.w3.org/2005/Atom">`)
	buf.WriteString("\n  <channel>\n")

	g.writeElement(&buf, "title", cmp.Or(channel.Title, channel.Name), 4)
	g.writeElement(&buf, "link", channel.Link, 4)
	g.writeElement(&buf, "description", fmt.Sprintf("Analyzed articles from %s", cmp.Or(channel.Link, channel.Name)), 4)

	selfLink := fmt.Sprintf("%s/feeds/%s", cmp.Or(g.baseURL, "http://localhost:8080"), channel.Name)
	buf.WriteString(fmt.Sprintf("    <atom:link href=\"%s\" rel=\"self\" type=\"application/rss+xml\" />\n",
		html.EscapeString(selfLink)))

	lastBuildDate := time.Now().In(time.Local)
	if len(articles) > 0 {
		lastBuildDate = articleDate(articles[0])
	}

	g.writeElement(&buf, "lastBuildDate", lastBuildDate.Format(time.RFC1123Z), 4)
	g.writeElement(&buf, "generator", fmt.Sprintf("%s/%s", generatorAgent, cmp.Or(g.version, "dev")), 4)
	if channel.Language != "" {
		g.writeElement(&buf, "language", channel.Language, 4)
	}

	for _, article := range articles {
		g.writeItem(&buf, article)
	}

	buf.WriteString("  </channel>\n</rss>")

	return buf.String(), nil
}

func (g *Generator) writeItem(buf *bytes.Buffer, article news.Article) {
	buf.WriteString("    <item>\n")

	if article.URL != "" {
		buf.WriteString(fmt.Sprintf("      <guid isPermaLink=\"%t\">", g.isURL(article.URL)))
		xml.EscapeText(buf, []byte(article.URL))
		buf.WriteString("</guid>\n")
	}

	g.writeElement(buf, "title", article.Title, 6)
	g.writeElement(buf, "link", article.URL, 6)

	description := cmp.Or(article.Summary, textutil.Ellipsize(article.Content, summaryLength), "No description available")
	g.writeElement(buf, "description", description, 6)

	if article.Content != "" && article.Content != description {
		buf.WriteString("      <content:encoded><![CDATA[")
		buf.WriteString(article.Content)
		buf.WriteString("]]></content:encoded>\n")
	}

	g.writeElement(buf, "pubDate", articleDate(article).Format(time.RFC1123Z), 6)
	g.writeElement(buf, "author", article.Author, 6)

	for i, keyword := range article.Keywords {
		if i == maxCategories {
			break
		}
		g.writeElement(buf, "category", keyword, 6)
	}

	buf.WriteString("    </item>\n")
}

func (g *Generator) writeElement(buf *bytes.Buffer, tag, content string, indent int) {
	if content == "" {
		return
	}

	for i := 0; i < indent; i++ {
		buf.WriteByte(' ')
	}

	buf.WriteString("<")
	buf.WriteString(tag)
	buf.WriteString(">")
	xml.EscapeText(buf, []byte(content))
	buf.WriteString("</")
	buf.WriteString(tag)
	buf.WriteString(">\n")
}

func (g *Generator) isURL(s string) bool {
	return (len(s) > 7 && s[:7] == "http://") || (len(s) > 8 && s[:8] == "https://")
}

func articleDate(a news.Article) time.Time {
	if a.PublishedAt != nil {
		return *a.PublishedAt
	}
	return a.CollectedAt
}
