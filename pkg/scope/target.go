package scope

import (
	"github.com/devicelab-dev/uiscope/pkg/core"
)

// Target is what a context is set from: a locator string, or an element
// already in hand with an optional label.
type Target struct {
	Locator  string
	Element  core.Element
	Label    string
	Metadata map[string]string
}

// ByLocator targets the elements matching a locator.
func ByLocator(text string) Target { return Target{Locator: text} }

// ByElement targets an element directly. label names it in the frame.
func ByElement(el core.Element, label string) Target { return Target{Element: el, Label: label} }

// FromFrame targets a previously returned frame, restoring its element.
func FromFrame(f Frame) Target {
	return Target{Element: f.Element, Label: f.Locator.Text, Metadata: f.Metadata}
}

// String describes the target for logs.
func (t Target) String() string {
	switch {
	case t.Locator != "":
		return t.Locator
	case t.Label != "":
		return t.Label
	case t.Element != nil:
		return "element=" + t.Element.ID()
	default:
		return ""
	}
}

// TargetFrom converts a loosely typed value: a string, a core.Element,
// a Frame, a Target, or a map with a "locator" key and optional string
// metadata.
func TargetFrom(v interface{}) (Target, error) {
	switch t := v.(type) {
	case Target:
		return t, nil
	case string:
		return ByLocator(t), nil
	case Frame:
		if t.IsZero() {
			return Target{}, core.ErrInvalidLocator.WithMessage("context frame is empty")
		}
		return FromFrame(t), nil
	case core.Element:
		return ByElement(t, ""), nil
	case map[string]string:
		return targetFromMap(t["locator"], t)
	case map[string]interface{}:
		loc, _ := t["locator"].(string)
		meta := make(map[string]string, len(t))
		for k, val := range t {
			if s, ok := val.(string); ok {
				meta[k] = s
			}
		}
		return targetFromMap(loc, meta)
	default:
		return Target{}, core.ErrInvalidLocator.WithMessagef("unsupported context target type %T", v)
	}
}

func targetFromMap(loc string, meta map[string]string) (Target, error) {
	if loc == "" {
		return Target{}, core.ErrInvalidLocator.WithMessage("context map has no \"locator\" entry")
	}
	rest := make(map[string]string, len(meta))
	for k, v := range meta {
		if k != "locator" {
			rest[k] = v
		}
	}
	return Target{Locator: loc, Metadata: rest}, nil
}
