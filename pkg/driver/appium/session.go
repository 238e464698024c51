package appium

import (
	"context"
	"strings"

	"github.com/devicelab-dev/uiscope/pkg/core"
)

// Session is the application root of a live Appium session. It
// implements core.SearchContext and core.Diagnoser.
type Session struct {
	client *Client
}

// NewSession wraps a connected or attached client.
func NewSession(c *Client) *Session {
	return &Session{client: c}
}

// Client returns the underlying client.
func (s *Session) Client() *Client { return s.client }

// FindElements implements core.SearchContext. core.ByScript runs the
// criteria as a script and collects the elements it returns.
func (s *Session) FindElements(ctx context.Context, by core.By, criteria string) ([]core.Element, error) {
	if by == core.ByScript {
		v, err := s.client.ExecuteScript(ctx, criteria)
		if err != nil {
			return nil, err
		}
		return s.wrap(elementIDs(v)), nil
	}
	ids, err := s.client.FindElements(ctx, string(by), criteria)
	if err != nil {
		return nil, err
	}
	return s.wrap(ids), nil
}

// Screenshot implements core.Diagnoser.
func (s *Session) Screenshot(ctx context.Context) ([]byte, error) {
	return s.client.Screenshot(ctx)
}

// Source implements core.Diagnoser.
func (s *Session) Source(ctx context.Context) (string, error) {
	return s.client.Source(ctx)
}

// Element returns a handle for a known element ID.
func (s *Session) Element(id string) *Element {
	return &Element{client: s.client, id: id}
}

func (s *Session) wrap(ids []string) []core.Element {
	out := make([]core.Element, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.Element(id))
	}
	return out
}

// Element is a server-side element handle.
type Element struct {
	client *Client
	id     string
}

// ID implements core.Element.
func (e *Element) ID() string { return e.id }

// FindElements implements core.SearchContext below this element. Scripts
// receive the element as their first argument and jQuery selectors are
// searched under it.
func (e *Element) FindElements(ctx context.Context, by core.By, criteria string) ([]core.Element, error) {
	var ids []string
	var err error
	if by == core.ByScript {
		var v interface{}
		v, err = e.client.ExecuteScript(ctx, scopedScript(criteria), map[string]interface{}{w3cElementKey: e.id})
		ids = elementIDs(v)
	} else {
		ids, err = e.client.FindElementsFrom(ctx, e.id, string(by), criteria)
	}
	if err != nil {
		return nil, err
	}
	out := make([]core.Element, 0, len(ids))
	for _, id := range ids {
		out = append(out, &Element{client: e.client, id: id})
	}
	return out, nil
}

// TagName implements core.Element.
func (e *Element) TagName(ctx context.Context) (string, error) {
	return e.client.ElementTagName(ctx, e.id)
}

// Attribute implements core.Element.
func (e *Element) Attribute(ctx context.Context, name string) (string, bool, error) {
	return e.client.ElementAttribute(ctx, e.id, name)
}

// IsDisplayed implements core.Element.
func (e *Element) IsDisplayed(ctx context.Context) (bool, error) {
	return e.client.ElementDisplayed(ctx, e.id)
}

// Rect implements core.Element.
func (e *Element) Rect(ctx context.Context) (core.Bounds, error) {
	return e.client.ElementRect(ctx, e.id)
}

const jQueryCall = "return jQuery("

// scopedScript narrows a document-wide jQuery lookup to arguments[0].
func scopedScript(script string) string {
	if rest, ok := strings.CutPrefix(script, jQueryCall); ok {
		return "return jQuery(arguments[0]).find(" + rest
	}
	return script
}
