package engine

import (
	"errors"
	"testing"
)

func testScope() *Scope {
	return &Scope{
		Vars: map[string]any{
			"threshold": 60000.0,
			"symbol":    "ETH/USDT",
		},
		Nodes: map[string]any{
			"fetch": map[string]any{"price": 67000.0, "symbol": "BTC/USDT"},
			"list":  []any{"a", "b"},
		},
		Input: map[string]any{"symbol": "BTC/USDT", "qty": 2.0},
		Inputs: map[string]any{
			"fetch": map[string]any{"price": 67000.0},
		},
	}
}

func TestScope_Lookup(t *testing.T) {
	s := testScope()

	tests := []struct {
		path  string
		want  any
		found bool
	}{
		{"threshold", 60000.0, true},
		// Переменная имеет приоритет над полем основного входа
		{"symbol", "ETH/USDT", true},
		{"input.symbol", "BTC/USDT", true},
		{"qty", 2.0, true},
		{"fetch.price", 67000.0, true},
		{"nodes.fetch.symbol", "BTC/USDT", true},
		{"vars.threshold", 60000.0, true},
		{"list.1", "b", true},
		{"list.5", nil, false},
		{"missing", nil, false},
		{"fetch.missing", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, ok := s.Lookup(tt.path)
			if ok != tt.found {
				t.Fatalf("found = %v, want %v", ok, tt.found)
			}
			if got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestScope_LookupNil(t *testing.T) {
	var s *Scope
	if _, ok := s.Lookup("x"); ok {
		t.Error("nil scope should not resolve anything")
	}
}

func TestResolve_FullReferenceKeepsType(t *testing.T) {
	s := testScope()

	v, err := Resolve("{{ threshold }}", s)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f, ok := v.(float64); !ok || f != 60000 {
		t.Errorf("expected float64 60000, got %T %v", v, v)
	}

	v, err = Resolve("{{missing}}", s)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != nil {
		t.Errorf("missing reference should resolve to nil, got %v", v)
	}
}

func TestResolve_Nested(t *testing.T) {
	s := testScope()

	v, err := Resolve(map[string]any{
		"alert": true,
		"price": "{{ fetch.price }}",
		"tags":  []any{"{{ input.symbol }}", 1},
		"text":  "price={{ fetch.price }}",
	}, s)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	m := v.(map[string]any)
	if m["alert"] != true {
		t.Errorf("alert should stay true, got %v", m["alert"])
	}
	if m["price"] != 67000.0 {
		t.Errorf("expected price 67000, got %v", m["price"])
	}
	tags := m["tags"].([]any)
	if tags[0] != "BTC/USDT" || tags[1] != 1 {
		t.Errorf("unexpected tags: %v", tags)
	}
	if m["text"] != "price=67000" {
		t.Errorf("unexpected text: %v", m["text"])
	}
}

func TestRender(t *testing.T) {
	s := testScope()

	tests := []struct {
		name     string
		template string
		expected string
	}{
		{"plain", "hello", "hello"},
		{"short reference", "BTC at {{ fetch.price }}", "BTC at 67000"},
		{"missing reference", "value={{ nope }}", "value="},
		{"go template", "{{ .Vars.symbol }}", "ETH/USDT"},
		{"function", "{{ upper .Input.symbol }}", "BTC/USDT"},
		{"if else", "{{ if gt (number .Input.qty) 1.0 }}many{{ else }}one{{ end }}", "many"},
		{"mixed", "{{ symbol }}:{{ lower .Vars.symbol }}", "ETH/USDT:eth/usdt"},
		{"map as json", "{{ nodes.fetch }}", `{"price":67000,"symbol":"BTC/USDT"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Render(tt.template, s)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestRender_InvalidTemplate(t *testing.T) {
	_, err := Render("{{ .Vars.x ", testScope())
	if !errors.Is(err, ErrTemplateParse) {
		t.Errorf("expected ErrTemplateParse, got %v", err)
	}
}

func TestResolveString(t *testing.T) {
	s := testScope()

	got, err := ResolveString("{{ threshold }}", s)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "60000" {
		t.Errorf("expected 60000, got %q", got)
	}

	got, err = ResolveString(nil, s)
	if err != nil || got != "" {
		t.Errorf("nil should resolve to empty string, got %q, %v", got, err)
	}
}

func TestToFloat(t *testing.T) {
	tests := []struct {
		in   any
		want float64
		ok   bool
	}{
		{1.5, 1.5, true},
		{3, 3, true},
		{int64(7), 7, true},
		{" 42.5 ", 42.5, true},
		{"abc", 0, false},
		{nil, 0, false},
		{true, 0, false},
	}
	for _, tt := range tests {
		got, ok := ToFloat(tt.in)
		if ok != tt.ok || got != tt.want {
			t.Errorf("ToFloat(%v) = %v, %v; want %v, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}
