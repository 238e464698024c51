// Package pattern evaluates attribute-pattern rules ("attr[.mode]=value")
// against element attributes.
package pattern

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dlclark/regexp2"
	"github.com/tidwall/match"

	"github.com/devicelab-dev/uiscope/pkg/core"
)

// Mode selects how a rule compares the attribute value.
type Mode int

const (
	Glob  Mode = iota // shell-style * and ? (default)
	Exact             // byte equality
	Lower             // case-folded equality
	Regex             // full-string regular expression
)

// String returns the mode keyword used in rule text.
func (m Mode) String() string {
	switch m {
	case Glob:
		return "glob"
	case Exact:
		return "exact"
	case Lower:
		return "lower"
	case Regex:
		return "regex"
	default:
		return "unknown"
	}
}

// ParseMode converts a rule mode keyword.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "glob":
		return Glob, nil
	case "exact":
		return Exact, nil
	case "lower":
		return Lower, nil
	case "regex":
		return Regex, nil
	default:
		return Glob, core.ErrInvalidLocator.WithMessagef("unknown pattern mode %q (want exact, lower, glob or regex)", s)
	}
}

// DefaultAliases maps shorthand attribute names to the canonical names
// used by the accessibility tree.
var DefaultAliases = map[string]string{
	"name":  "Name",
	"class": "ClassName",
}

// regexTimeout bounds a single regex evaluation against pathological patterns.
const regexTimeout = 200 * time.Millisecond

// Rule is one parsed attribute condition.
type Rule struct {
	Attribute string // canonical attribute name, aliases applied
	Mode      Mode
	Expected  string

	raw string

	once  sync.Once
	re    *regexp2.Regexp
	reErr error
}

// ParseRule parses "attribute[.mode]=value" using DefaultAliases.
func ParseRule(text string) (*Rule, error) {
	return ParseRuleWithAliases(text, DefaultAliases)
}

// ParseRuleWithAliases parses a rule, renaming the attribute through aliases.
func ParseRuleWithAliases(text string, aliases map[string]string) (*Rule, error) {
	key, expected, ok := strings.Cut(text, "=")
	if !ok {
		return nil, core.ErrInvalidLocator.WithMessagef("pattern rule %q must have the form attribute[.mode]=value", text)
	}
	key = strings.TrimSpace(key)
	expected = strings.TrimSpace(expected)

	attr, modeText, _ := strings.Cut(key, ".")
	attr = strings.TrimSpace(attr)
	if attr == "" {
		return nil, core.ErrInvalidLocator.WithMessagef("pattern rule %q has no attribute name", text)
	}
	mode, err := ParseMode(modeText)
	if err != nil {
		return nil, err
	}
	if canonical, ok := aliases[attr]; ok {
		attr = canonical
	}

	return &Rule{
		Attribute: attr,
		Mode:      mode,
		Expected:  expected,
		raw:       strings.TrimSpace(text),
	}, nil
}

// String returns the rule in its textual form.
func (r *Rule) String() string {
	if r.raw != "" {
		return r.raw
	}
	return fmt.Sprintf("%s.%s=%s", r.Attribute, r.Mode, r.Expected)
}

// MatchValue applies the rule to an attribute value.
func (r *Rule) MatchValue(value string) bool {
	switch r.Mode {
	case Exact:
		return value == r.Expected
	case Lower:
		return strings.ToLower(value) == strings.ToLower(r.Expected)
	case Glob:
		// "\" is literal in fnmatch but an escape for match.Match.
		return match.Match(value, strings.ReplaceAll(r.Expected, `\`, `\\`))
	case Regex:
		re, err := r.regex()
		if err != nil {
			return false
		}
		ok, err := re.MatchString(value)
		return err == nil && ok
	default:
		return false
	}
}

func (r *Rule) regex() (*regexp2.Regexp, error) {
	r.once.Do(func() {
		// Validate on its own first so "a)|(b" cannot escape the group.
		if _, err := regexp2.Compile(r.Expected, regexp2.None); err != nil {
			r.reErr = err
			return
		}
		re, err := regexp2.Compile(`\A(?:`+r.Expected+`)\z`, regexp2.None)
		if err != nil {
			r.reErr = err
			return
		}
		re.MatchTimeout = regexTimeout
		r.re = re
	})
	return r.re, r.reErr
}

// Match reads the rule's attribute from el and applies the rule. An absent
// attribute never matches. Backend errors are returned unchanged so the
// caller can decide whether they are retryable.
func Match(ctx context.Context, el core.Element, r *Rule) (bool, error) {
	if el == nil || r == nil {
		return false, nil
	}
	value, ok, err := el.Attribute(ctx, r.Attribute)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	return r.MatchValue(value), nil
}

// MatchAll reports whether every rule matches (AND). No rules matches.
func MatchAll(ctx context.Context, el core.Element, rules []*Rule) (bool, error) {
	for _, r := range rules {
		ok, err := Match(ctx, el, r)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

// Filter keeps the elements that satisfy every rule, preserving order.
func Filter(ctx context.Context, elements []core.Element, rules []*Rule) ([]core.Element, error) {
	if len(rules) == 0 {
		return elements, nil
	}
	kept := make([]core.Element, 0, len(elements))
	for _, el := range elements {
		ok, err := MatchAll(ctx, el, rules)
		if err != nil {
			return nil, err
		}
		if ok {
			kept = append(kept, el)
		}
	}
	return kept, nil
}
