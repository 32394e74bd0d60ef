package collector

import (
	"context"
	"errors"
	"strings"
	"testing"
)

const articlePage = `
<!DOCTYPE html>
<html>
<head>
	<title>Governo anuncia novo programa</title>
</head>
<body>
	<header>
		<h1>Portal de Notícias</h1>
		<nav>Navegação</nav>
	</header>
	<main>
		<article>
			<h1>Governo anuncia novo programa</h1>
			<p>O governo federal anunciou nesta segunda-feira um novo programa de investimentos em infraestrutura, com previsão de obras em todas as regiões do país.</p>
			<p>Segundo o ministério, os recursos serão liberados em etapas ao longo dos próximos dois anos, com prioridade para projetos de saneamento e transporte.</p>
			<p>Especialistas ouvidos pela reportagem avaliam que o anúncio pode acelerar a retomada do setor de construção civil, que enfrentou queda nos últimos trimestres.</p>
		</article>
	</main>
	<aside>
		<div>Publicidade</div>
	</aside>
	<footer>
		<p>Copyright 2024</p>
	</footer>
</body>
</html>
`

func TestContentExtractor_Run(t *testing.T) {
	extractor := NewContentExtractor()

	result, err := extractor.Run([]byte(articlePage), "https://example.com/noticia/programa")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if !strings.Contains(result, "novo programa de investimentos") {
		t.Errorf("Expected extracted content to contain article text, got '%s'", result)
	}
	if strings.Contains(result, "Copyright 2024") {
		t.Errorf("Expected extracted content to exclude footer")
	}
	if strings.Contains(result, "<p>") {
		t.Errorf("Expected plain text, got markup")
	}
}

func TestContentExtractor_EmptyInput(t *testing.T) {
	extractor := NewContentExtractor()

	if _, err := extractor.Run(nil, ""); !errors.Is(err, ErrNoContent) {
		t.Errorf("Expected ErrNoContent for empty HTML data, got %v", err)
	}
}

func TestContentExtractor_TeaserPage(t *testing.T) {
	extractor := NewContentExtractor()

	page := `<html><body><nav><a href="/a">Política</a> <a href="/b">Economia</a></nav><p>Leia mais</p></body></html>`
	if _, err := extractor.Run([]byte(page), "https://example.com/"); !errors.Is(err, ErrNoContent) {
		t.Errorf("Expected ErrNoContent for a page without an article body, got %v", err)
	}
}

func TestContentExtractor_Fetch(t *testing.T) {
	fetcher := newMockFetcher()
	fetcher.responses["https://example.com/noticia/programa"] = articlePage

	extractor := NewContentExtractor()
	result, err := extractor.Fetch(context.Background(), fetcher, "https://example.com/noticia/programa")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if !strings.Contains(result, "saneamento e transporte") {
		t.Errorf("Expected extracted content, got '%s'", result)
	}

	if _, err := extractor.Fetch(context.Background(), fetcher, "https://example.com/missing"); err == nil {
		t.Error("Expected error for missing page")
	}
}
