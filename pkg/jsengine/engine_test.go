package jsengine

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestEval(t *testing.T) {
	engine := New()

	tests := []struct {
		name     string
		script   string
		expected interface{}
	}{
		{"simple number", "1 + 2", int64(3)},
		{"string concat", "'hello' + ' ' + 'world'", "hello world"},
		{"boolean", "true && false", false},
		{"null coalescing", "null ?? 'default'", "default"},
		{"array length", "[1, 2, 3].length", int64(3)},
		{"object property", "({name: 'test'}).name", "test"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := engine.Eval(tt.script)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if result != tt.expected {
				t.Errorf("expected %v (%T), got %v (%T)", tt.expected, tt.expected, result, result)
			}
		})
	}
}

func TestEval_SyntaxError(t *testing.T) {
	engine := New()
	if _, err := engine.Eval("1 +"); err == nil {
		t.Error("expected syntax error")
	}
}

func TestEval_Timeout(t *testing.T) {
	engine := New()
	engine.SetTimeout(50 * time.Millisecond)

	_, err := engine.Eval("while (true) {}")
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}

	// The runtime stays usable after an interrupt.
	result, err := engine.EvalString("'ok'")
	if err != nil {
		t.Fatalf("unexpected error after interrupt: %v", err)
	}
	if result != "ok" {
		t.Errorf("expected ok, got %s", result)
	}
}

func TestEvalString(t *testing.T) {
	engine := New()
	engine.SetVariable("count", 42)

	result, err := engine.EvalString("count + 1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "43" {
		t.Errorf("expected 43, got %s", result)
	}

	result, err = engine.EvalString("undefined")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "" {
		t.Errorf("expected empty string for undefined, got %q", result)
	}
}

func TestExpandVariables(t *testing.T) {
	engine := New()
	engine.SetVariable("name", "Save")

	tests := []struct {
		name     string
		text     string
		expected string
	}{
		{"no expressions", "//button", "//button"},
		{"single", "//button[@text='${name}']", "//button[@text='Save']"},
		{"two", "${name}-${name.toLowerCase()}", "Save-save"},
		{"nested braces", "${({a: name}).a}", "Save"},
		{"unbalanced", "${name", "${name"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := engine.ExpandVariables(tt.text)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if result != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, result)
			}
		})
	}
}

func TestExpandVariables_Error(t *testing.T) {
	engine := New()
	_, err := engine.ExpandVariables("//a[@id=${missing.field}]")
	if err == nil {
		t.Fatal("expected error for undefined variable")
	}
	if !strings.Contains(err.Error(), "missing.field") {
		t.Errorf("expected expression in error, got %v", err)
	}
}

func TestXPathLiteral(t *testing.T) {
	tests := []struct {
		in       string
		expected string
	}{
		{"OK", "'OK'"},
		{"it's", `"it's"`},
		{`say "it's"`, `concat('say "it', "'", 's"')`},
	}
	for _, tt := range tests {
		if got := XPathLiteral(tt.in); got != tt.expected {
			t.Errorf("XPathLiteral(%q) = %s, want %s", tt.in, got, tt.expected)
		}
	}
}

func TestRewriter(t *testing.T) {
	engine := New()
	rewrite := engine.Rewriter("//android.widget.Button[@text=${xpathLiteral(criteria)}]")

	got, err := rewrite("Don't save")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != `//android.widget.Button[@text="Don't save"]` {
		t.Errorf("unexpected rewrite: %s", got)
	}

	got, err = rewrite("OK")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "//android.widget.Button[@text='OK']" {
		t.Errorf("criteria should rebind per call, got %s", got)
	}
}
