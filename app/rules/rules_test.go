package rules

import (
	"sync"
	"testing"
)

func ptr[T any](v T) *T { return &v }

func TestApply_NoRules(t *testing.T) {
	text := "Texto <b>original</b> intacto"

	if got := Apply(text, nil); got != text {
		t.Errorf("Expected %q, got %q", text, got)
	}
	if got := Apply(text, []*Rule{}); got != text {
		t.Errorf("Expected %q, got %q", text, got)
	}

	var engine *Engine
	if got := engine.Apply(text); got != text {
		t.Errorf("Expected nil engine to pass text through, got %q", got)
	}
}

func TestApply_TextFilterWholeWords(t *testing.T) {
	rule := &Rule{
		Name: "drop-words",
		Type: TextFilter,
		Parameters: Parameters{
			RemoveWords: []string{"urgente", "ação"},
		},
	}

	got := Apply("URGENTE: ação judicial e transação urgentemente", []*Rule{rule})
	want := ":  judicial e transação urgentemente"
	if got != want {
		t.Errorf("Expected %q, got %q", want, got)
	}
}

func TestApply_TextFilterPatterns(t *testing.T) {
	rule := &Rule{
		Name:       "strip-refs",
		Type:       TextFilter,
		Parameters: Parameters{RemovePatterns: []string{`\[\d+\]`}},
	}

	got := Apply("Fato[1] confirmado[23].", []*Rule{rule})
	if got != "Fato confirmado." {
		t.Errorf("Expected references removed, got %q", got)
	}
}

func TestApply_RegexReplace(t *testing.T) {
	rule := &Rule{
		Name: "collapse",
		Type: RegexReplace,
		Parameters: Parameters{
			Pattern:     `\s+`,
			Replacement: ptr(" "),
		},
	}

	if got := Apply("a   b\n\tc", []*Rule{rule}); got != "a b c" {
		t.Errorf("Expected %q, got %q", "a b c", got)
	}

	// without a replacement the rule is a no-op
	noop := &Rule{Name: "noop", Type: RegexReplace, Parameters: Parameters{Pattern: `a`}}
	if got := Apply("abc", []*Rule{noop}); got != "abc" {
		t.Errorf("Expected unchanged text, got %q", got)
	}
}

func TestApply_HTMLClean(t *testing.T) {
	rule := &Rule{Name: "html", Type: HTMLClean}

	got := Apply("<p>Olá <b>mundo</b></p><script>alert(1)</script>", []*Rule{rule})
	if got != "Olá mundo" {
		t.Errorf("Expected %q, got %q", "Olá mundo", got)
	}
}

func TestApply_OrderByPriorityThenName(t *testing.T) {
	rules := []*Rule{
		{Name: "b", Type: RegexReplace, Priority: 1, Parameters: Parameters{Pattern: "$", Replacement: ptr("b")}},
		{Name: "c", Type: RegexReplace, Priority: 0, Parameters: Parameters{Pattern: "$", Replacement: ptr("c")}},
		{Name: "a", Type: RegexReplace, Priority: 1, Parameters: Parameters{Pattern: "$", Replacement: ptr("a")}},
	}

	if got := Apply("", rules); got != "cab" {
		t.Errorf("Expected %q, got %q", "cab", got)
	}
}

func TestApply_SkipsInactive(t *testing.T) {
	rule := &Rule{
		Name:       "off",
		Type:       RegexReplace,
		Active:     ptr(false),
		Parameters: Parameters{Pattern: "x", Replacement: ptr("y")},
	}

	if got := Apply("xx", []*Rule{rule}); got != "xx" {
		t.Errorf("Expected inactive rule to be skipped, got %q", got)
	}
	if rule.Stats().Applied != 0 {
		t.Errorf("Expected 0 applications, got %d", rule.Stats().Applied)
	}
}

func TestApply_FailingRuleContinues(t *testing.T) {
	bad := &Rule{Name: "bad", Type: TextFilter, Priority: 1, Parameters: Parameters{RemovePatterns: []string{"("}}}
	unknown := &Rule{Name: "unknown", Type: "translate", Priority: 2}
	good := &Rule{Name: "good", Type: RegexReplace, Priority: 3, Parameters: Parameters{Pattern: "o", Replacement: ptr("0")}}
	upper := &Rule{Name: "first", Type: RegexReplace, Priority: 0, Parameters: Parameters{Pattern: "f", Replacement: ptr("F")}}

	got := Apply("foo", []*Rule{bad, unknown, good, upper})
	if got != "F00" {
		t.Errorf("Expected %q, got %q", "F00", got)
	}

	if s := bad.Stats(); s.Applied != 1 || s.Failed != 1 || s.Succeeded != 0 {
		t.Errorf("Expected bad rule 1/0/1, got %d/%d/%d", s.Applied, s.Succeeded, s.Failed)
	}
	if s := unknown.Stats(); s.Failed != 1 {
		t.Errorf("Expected unknown rule to fail once, got %d", s.Failed)
	}
	if s := good.Stats(); s.Succeeded != 1 || s.Failed != 0 {
		t.Errorf("Expected good rule to succeed once, got %d/%d", s.Succeeded, s.Failed)
	}
}

func TestRule_Validate(t *testing.T) {
	tests := []struct {
		name    string
		rule    *Rule
		wantErr bool
	}{
		{"valid filter", &Rule{Name: "f", Type: TextFilter, Parameters: Parameters{RemoveWords: []string{"x"}}}, false},
		{"valid html", &Rule{Name: "h", Type: HTMLClean}, false},
		{"missing name", &Rule{Type: HTMLClean}, true},
		{"unknown type", &Rule{Name: "u", Type: "nope"}, true},
		{"bad pattern", &Rule{Name: "p", Type: RegexReplace, Parameters: Parameters{Pattern: "[", Replacement: ptr("")}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.rule.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Expected error %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestEngine_ConcurrentStats(t *testing.T) {
	rule := &Rule{Name: "trim", Type: RegexReplace, Parameters: Parameters{Pattern: `^\s+`, Replacement: ptr("")}}
	engine := NewEngine([]*Rule{rule})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			engine.Apply("  texto")
		}()
	}
	wg.Wait()

	stats := engine.Stats()
	if len(stats) != 1 {
		t.Fatalf("Expected 1 stats entry, got %d", len(stats))
	}
	if stats[0].Applied != 50 || stats[0].Succeeded != 50 {
		t.Errorf("Expected 50 applied and succeeded, got %d/%d", stats[0].Applied, stats[0].Succeeded)
	}
}
