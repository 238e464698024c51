// Package jsengine evaluates the JavaScript snippets that custom locator
// strategies use to rewrite their criteria.
package jsengine

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dop251/goja"

	"github.com/devicelab-dev/uiscope/pkg/logger"
)

// DefaultTimeout bounds a single evaluation.
const DefaultTimeout = time.Second

// ErrTimeout is returned when a script runs longer than the engine timeout.
var ErrTimeout = errors.New("script timed out")

// Engine wraps a goja runtime. Calls are serialized.
type Engine struct {
	runtime *goja.Runtime
	timeout time.Duration
	mu      sync.Mutex
}

// New creates an engine with the built-in helpers installed.
func New() *Engine {
	e := &Engine{
		runtime: goja.New(),
		timeout: DefaultTimeout,
	}
	e.setupBuiltins()
	return e
}

// SetTimeout changes the per-evaluation limit. Zero or less disables it.
func (e *Engine) SetTimeout(d time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.timeout = d
}

func (e *Engine) setupBuiltins() {
	// console.log goes to the debug log, never stdout.
	console := e.runtime.NewObject()
	log := func(call goja.FunctionCall) goja.Value {
		args := make([]string, len(call.Arguments))
		for i, arg := range call.Arguments {
			args[i] = arg.String()
		}
		logger.Debug("js: %s", strings.Join(args, " "))
		return goja.Undefined()
	}
	_ = console.Set("log", log)
	_ = console.Set("warn", log)
	_ = console.Set("error", log)
	_ = e.runtime.Set("console", console)

	// xpathLiteral quotes a string for use inside an XPath expression,
	// falling back to concat() when it holds both quote kinds.
	_ = e.runtime.Set("xpathLiteral", XPathLiteral)
}

// SetVariable sets a global visible to later scripts.
func (e *Engine) SetVariable(name string, value interface{}) {
	e.mu.Lock()
	defer e.mu.Unlock()
	_ = e.runtime.Set(name, value)
}

// Eval evaluates a JavaScript expression and returns the exported result.
func (e *Engine) Eval(script string) (interface{}, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.timeout > 0 {
		timer := time.AfterFunc(e.timeout, func() {
			e.runtime.Interrupt(ErrTimeout)
		})
		defer func() {
			timer.Stop()
			e.runtime.ClearInterrupt()
		}()
	}

	result, err := e.runtime.RunString(script)
	if err != nil {
		var interrupted *goja.InterruptedError
		if errors.As(err, &interrupted) {
			return nil, ErrTimeout
		}
		return nil, fmt.Errorf("JS eval error: %w", err)
	}
	return result.Export(), nil
}

// EvalString evaluates a JavaScript expression and returns it as a string.
// null and undefined become "".
func (e *Engine) EvalString(script string) (string, error) {
	result, err := e.Eval(script)
	if err != nil {
		return "", err
	}
	if result == nil {
		return "", nil
	}
	return fmt.Sprintf("%v", result), nil
}

// ExpandVariables replaces every ${...} expression in text with its value.
// Unbalanced braces are left as they are.
func (e *Engine) ExpandVariables(text string) (string, error) {
	result := text
	start := 0

	for {
		idx := strings.Index(result[start:], "${")
		if idx == -1 {
			break
		}
		idx += start

		depth := 1
		end := idx + 2
		for end < len(result) && depth > 0 {
			switch result[end] {
			case '{':
				depth++
			case '}':
				depth--
			}
			end++
		}
		if depth != 0 {
			start = idx + 2
			continue
		}

		expr := result[idx+2 : end-1]
		value, err := e.EvalString(expr)
		if err != nil {
			return "", fmt.Errorf("expand ${%s}: %w", expr, err)
		}

		result = result[:idx] + value + result[end:]
		start = idx + len(value)
	}

	return result, nil
}

// XPathLiteral returns s as an XPath string literal.
func XPathLiteral(s string) string {
	if !strings.Contains(s, "'") {
		return "'" + s + "'"
	}
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}
	parts := strings.Split(s, "'")
	quoted := make([]string, len(parts))
	for i, p := range parts {
		quoted[i] = "'" + p + "'"
	}
	return "concat(" + strings.Join(quoted, `, "'", `) + ")"
}
