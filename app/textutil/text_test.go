package textutil

import (
	"reflect"
	"testing"
)

func TestClean(t *testing.T) {
	got := Clean("<p>Hello   <b>world</b></p>\n\n<script>var x = 1;</script>  again ")
	if got != "Hello world again" {
		t.Errorf("Expected 'Hello world again', got '%s'", got)
	}

	if Clean("") != "" {
		t.Error("Expected empty string for empty input")
	}

	if got := Clean("Fish &amp; Chips"); got != "Fish & Chips" {
		t.Errorf("Expected entities to be decoded, got '%s'", got)
	}
}

func TestFoldAccents(t *testing.T) {
	if got := FoldAccents("incrível ótimo ação"); got != "incrivel otimo acao" {
		t.Errorf("Expected 'incrivel otimo acao', got '%s'", got)
	}
}

func TestWords(t *testing.T) {
	got := Words("O e-mail, enviado ontem: Sucesso!")
	want := []string{"o", "email", "enviado", "ontem", "sucesso"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Expected %v, got %v", want, got)
	}
}

func TestTokens_Spans(t *testing.T) {
	text := "  João Silva,  disse"
	tokens := Tokens(text)
	if len(tokens) != 3 {
		t.Fatalf("Expected 3 tokens, got %d", len(tokens))
	}
	for _, tok := range tokens {
		if text[tok.Start:tok.End] != tok.Text {
			t.Errorf("Span [%d:%d] does not match token '%s'", tok.Start, tok.End, tok.Text)
		}
	}
}

func TestEllipsize(t *testing.T) {
	if got := Ellipsize("ação rápida", 5); got != "ação…" {
		t.Errorf("Expected 'ação…', got '%s'", got)
	}
	if got := Ellipsize("curto", 5); got != "curto" {
		t.Errorf("Expected 'curto' untouched, got '%s'", got)
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("ação rápida", 4); got != "ação" {
		t.Errorf("Expected 'ação', got '%s'", got)
	}
	if got := Truncate("short", 10); got != "short" {
		t.Errorf("Expected 'short', got '%s'", got)
	}
}
