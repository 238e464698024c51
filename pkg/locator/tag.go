package locator

import (
	"context"
	"strings"

	"github.com/devicelab-dev/uiscope/pkg/core"
)

// TagFilter is a translated tag: the element tag name plus attribute
// constraints that must hold exactly.
type TagFilter struct {
	Tag         string
	Constraints map[string]string
}

// TranslateTag maps a user-facing element kind to a TagFilter.
// An empty tag yields the zero TagFilter (no filtering).
func TranslateTag(tag string) TagFilter {
	tag = strings.ToLower(strings.TrimSpace(tag))
	switch tag {
	case "":
		return TagFilter{}
	case "link":
		return TagFilter{Tag: "a"}
	case "image":
		return TagFilter{Tag: "img"}
	case "list":
		return TagFilter{Tag: "select"}
	case "radio button":
		return TagFilter{Tag: "input", Constraints: map[string]string{"type": "radio"}}
	case "checkbox":
		return TagFilter{Tag: "input", Constraints: map[string]string{"type": "checkbox"}}
	case "text field":
		return TagFilter{Tag: "input", Constraints: map[string]string{"type": "text"}}
	case "file upload":
		return TagFilter{Tag: "input", Constraints: map[string]string{"type": "file"}}
	default:
		return TagFilter{Tag: tag}
	}
}

// Matches reports whether el satisfies the filter.
func (f TagFilter) Matches(ctx context.Context, el core.Element) (bool, error) {
	if f.Tag == "" {
		return true, nil
	}
	name, err := el.TagName(ctx)
	if err != nil {
		return false, err
	}
	if strings.ToLower(name) != f.Tag {
		return false, nil
	}
	for attr, want := range f.Constraints {
		got, ok, err := el.Attribute(ctx, attr)
		if err != nil {
			return false, err
		}
		if !ok || got != want {
			return false, nil
		}
	}
	return true, nil
}

func filterTag(ctx context.Context, elements []core.Element, tag string) ([]core.Element, error) {
	f := TranslateTag(tag)
	if f.Tag == "" {
		return elements, nil
	}
	kept := make([]core.Element, 0, len(elements))
	for _, el := range elements {
		ok, err := f.Matches(ctx, el)
		if err != nil {
			return nil, err
		}
		if ok {
			kept = append(kept, el)
		}
	}
	return kept, nil
}
