// Package locator parses locator strings and resolves them to elements
// through a collaborator search context.
package locator

import (
	"strings"

	"github.com/devicelab-dev/uiscope/pkg/core"
	"github.com/devicelab-dev/uiscope/pkg/pattern"
)

// Locator is a parsed locator. The zero value is invalid.
type Locator struct {
	Text     string          // original text
	Prefix   string          // lower-cased prefix as written, "" when implied
	Strategy Strategy        // Extension when Prefix is not a built-in
	Criteria string          // strategy argument
	Extras   []*pattern.Rule // AND-combined post filters
}

// Parse parses locator text using the default attribute aliases.
//
//	id=btn1
//	//android.widget.Button[@text='OK']
//	xpath=//button | name.lower=submit | class=*btn*
func Parse(text string) (Locator, error) {
	return ParseWithAliases(text, pattern.DefaultAliases)
}

// ParseWithAliases parses locator text, applying aliases to extra rules.
func ParseWithAliases(text string, aliases map[string]string) (Locator, error) {
	primary, extras, err := splitExtras(text)
	if err != nil {
		return Locator{}, err
	}
	return newLocator(text, primary, extras, aliases)
}

// New builds a locator from a primary part and separate extra rules, the
// structured alternative to the "|" form.
func New(primary string, extras ...string) (Locator, error) {
	text := primary
	for _, e := range extras {
		text += " | " + e
	}
	return newLocator(text, strings.TrimSpace(primary), extras, pattern.DefaultAliases)
}

func newLocator(text, primary string, extras []string, aliases map[string]string) (Locator, error) {
	if primary == "" {
		return Locator{}, core.ErrInvalidLocator.WithMessagef("locator %q has an empty primary part", text)
	}

	loc := Locator{Text: strings.TrimSpace(text), Strategy: Default, Criteria: primary}
	if !isPath(primary) {
		if prefix, criteria, ok := strings.Cut(primary, "="); ok {
			loc.Prefix = strings.ToLower(strings.TrimSpace(prefix))
			loc.Criteria = strings.TrimSpace(criteria)
			if s, ok := LookupStrategy(loc.Prefix); ok {
				loc.Strategy = s
			} else {
				loc.Strategy = Extension
			}
		}
	}

	for _, e := range extras {
		rule, err := pattern.ParseRuleWithAliases(e, aliases)
		if err != nil {
			return Locator{}, core.ErrInvalidLocator.
				WithMessagef("locator %q has an invalid extra rule %q", text, strings.TrimSpace(e)).
				WithCause(err)
		}
		loc.Extras = append(loc.Extras, rule)
	}
	return loc, nil
}

// Primary returns the primary part in "prefix=criteria" form.
func (l Locator) Primary() string {
	if l.Prefix == "" {
		return l.Criteria
	}
	return l.Prefix + "=" + l.Criteria
}

// ExtraStrings returns the extra rules in text form.
func (l Locator) ExtraStrings() []string {
	out := make([]string, len(l.Extras))
	for i, r := range l.Extras {
		out[i] = r.String()
	}
	return out
}

// String returns the locator in its compound text form.
func (l Locator) String() string {
	if len(l.Extras) == 0 {
		return l.Primary()
	}
	return l.Primary() + " | " + strings.Join(l.ExtraStrings(), " | ")
}

// IsZero reports whether l is the zero Locator.
func (l Locator) IsZero() bool {
	return l.Text == "" && l.Criteria == ""
}

// splitExtras splits compound text on "|" outside brackets and quotes.
// A segment that does not look like "attr[.mode]=..." stays part of the
// primary, so path unions such as "//a | //b" are left intact.
func splitExtras(text string) (string, []string, error) {
	segments := splitTopLevel(text, '|')
	primary := segments[0]
	var extras []string
	for _, seg := range segments[1:] {
		switch {
		case looksLikeRule(seg):
			extras = append(extras, strings.TrimSpace(seg))
		case len(extras) == 0:
			primary += "|" + seg
		default:
			return "", nil, core.ErrInvalidLocator.WithMessagef(
				"locator %q: %q follows an extra rule but is not of the form attribute[.mode]=value", text, strings.TrimSpace(seg))
		}
	}
	return strings.TrimSpace(primary), extras, nil
}

func splitTopLevel(text string, sep rune) []string {
	var (
		parts []string
		depth int
		quote rune
		start int
	)
	for i, c := range text {
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case depth > 0 && (c == '\'' || c == '"'):
			quote = c
		case c == '[' || c == '(':
			depth++
		case (c == ']' || c == ')') && depth > 0:
			depth--
		case c == sep && depth == 0:
			parts = append(parts, text[start:i])
			start = i + 1
		}
	}
	return append(parts, text[start:])
}

// looksLikeRule matches `\s*[A-Za-z_][\w:-]*(\.[A-Za-z]+)?\s*=`.
func looksLikeRule(seg string) bool {
	key, _, ok := strings.Cut(seg, "=")
	if !ok {
		return false
	}
	key = strings.TrimSpace(key)
	attr, mode, hasMode := strings.Cut(key, ".")
	if attr == "" || !(isLetter(rune(attr[0])) || attr[0] == '_') {
		return false
	}
	for _, c := range attr {
		if !(isLetter(c) || isDigit(c) || c == '_' || c == '-' || c == ':') {
			return false
		}
	}
	if hasMode {
		if mode == "" {
			return false
		}
		for _, c := range mode {
			if !isLetter(c) {
				return false
			}
		}
	}
	return true
}

func isLetter(c rune) bool { return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' }
func isDigit(c rune) bool  { return c >= '0' && c <= '9' }

// ForElement returns the label locator for a context set directly from an
// element handle.
func ForElement(id string) Locator {
	return Locator{Text: "element=" + id, Prefix: "element", Strategy: Extension, Criteria: id}
}
