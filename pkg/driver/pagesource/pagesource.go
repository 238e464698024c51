// Package pagesource is an offline backend that searches a UI hierarchy
// dump such as the XML returned by Appium's /source endpoint. Android
// UiAutomator2, iOS XCUITest and Windows dumps are understood.
package pagesource

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/beevik/etree"

	"github.com/devicelab-dev/uiscope/pkg/core"
)

// ErrStale is returned by handles from a dump that has since been reloaded.
var ErrStale = errors.New("stale element reference: page source was reloaded")

// Loader returns the current page source.
type Loader func(ctx context.Context) (string, error)

// FileLoader reads the page source from path on every call.
func FileLoader(path string) Loader {
	return func(ctx context.Context) (string, error) {
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("read page source: %w", err)
		}
		return string(data), nil
	}
}

// Source is the application root over a parsed dump.
type Source struct {
	mu     sync.Mutex
	loader Loader
	raw    string
	doc    *etree.Document
	gen    int
	ids    map[*etree.Element]string
	byID   map[string]*etree.Element
}

// Parse builds a Source from an XML string.
func Parse(xml string) (*Source, error) {
	s := &Source{}
	if err := s.load(xml); err != nil {
		return nil, err
	}
	return s, nil
}

// New builds a Source that re-runs loader before every root search, so
// waits observe a changing dump.
func New(ctx context.Context, loader Loader) (*Source, error) {
	xml, err := loader(ctx)
	if err != nil {
		return nil, err
	}
	s := &Source{loader: loader}
	if err := s.load(xml); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Source) load(xml string) error {
	doc := etree.NewDocument()
	if err := doc.ReadFromString(xml); err != nil {
		return fmt.Errorf("parse page source: %w", err)
	}
	if doc.Root() == nil {
		return fmt.Errorf("parse page source: document has no root element")
	}

	s.raw = xml
	s.doc = doc
	s.gen++
	s.ids = make(map[*etree.Element]string)
	s.byID = make(map[string]*etree.Element)
	n := 0
	var walk func(e *etree.Element)
	walk = func(e *etree.Element) {
		id := "ps-" + strconv.Itoa(s.gen) + "-" + strconv.Itoa(n)
		n++
		s.ids[e] = id
		s.byID[id] = e
		for _, c := range e.ChildElements() {
			walk(c)
		}
	}
	walk(doc.Root())
	return nil
}

func (s *Source) refresh(ctx context.Context) error {
	if s.loader == nil {
		return nil
	}
	xml, err := s.loader(ctx)
	if err != nil {
		return core.Retryable(err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if xml == s.raw {
		return nil
	}
	if err := s.load(xml); err != nil {
		// A half-written dump is read again on the next attempt.
		return core.Retryable(err)
	}
	return nil
}

// FindElements implements core.SearchContext from the document root.
func (s *Source) FindElements(ctx context.Context, by core.By, criteria string) ([]core.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.refresh(ctx); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.find(s.doc.Root(), true, by, criteria)
}

// Screenshot implements core.Diagnoser; a dump carries no image.
func (s *Source) Screenshot(ctx context.Context) ([]byte, error) {
	return nil, fmt.Errorf("screenshots are not available from a page source dump")
}

// Source implements core.Diagnoser.
func (s *Source) Source(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.raw, nil
}

// find searches below scope. includeScope is true for the document root,
// which is itself a candidate.
func (s *Source) find(scope *etree.Element, includeScope bool, by core.By, criteria string) ([]core.Element, error) {
	var hits []*etree.Element
	switch by {
	case core.ByXPath:
		path, err := etree.CompilePath(criteria)
		if err != nil {
			return nil, core.ErrInvalidLocator.WithMessagef("unsupported xpath %q", criteria).WithCause(err)
		}
		base := scope
		if includeScope {
			base = &s.doc.Element
		}
		hits = base.FindElementsPath(path)
	case core.ByID, core.ByName, core.ByClassName, core.ByTagName, core.ByAccessibilityID:
		var walk func(e *etree.Element)
		walk = func(e *etree.Element) {
			if matches(e, by, criteria) {
				hits = append(hits, e)
			}
			for _, c := range e.ChildElements() {
				walk(c)
			}
		}
		if includeScope {
			walk(scope)
		} else {
			for _, c := range scope.ChildElements() {
				walk(c)
			}
		}
	default:
		return nil, core.ErrUnsupportedStrategy.WithMessagef("strategy %q is not supported on a page source dump", by)
	}

	out := make([]core.Element, 0, len(hits))
	for _, e := range hits {
		if id, ok := s.ids[e]; ok {
			out = append(out, &Element{src: s, e: e, id: id, gen: s.gen})
		}
	}
	return out, nil
}

func matches(e *etree.Element, by core.By, criteria string) bool {
	switch by {
	case core.ByID:
		rid := e.SelectAttrValue("resource-id", "")
		return rid == criteria || strings.HasSuffix(rid, ":id/"+criteria) ||
			attrIs(e, criteria, "id", "AutomationId", "name")
	case core.ByName:
		return attrIs(e, criteria, "name", "Name", "text")
	case core.ByClassName:
		return e.Tag == criteria || attrIs(e, criteria, "class", "ClassName", "type")
	case core.ByTagName:
		return strings.EqualFold(e.Tag, criteria)
	case core.ByAccessibilityID:
		return attrIs(e, criteria, "content-desc", "accessibility-id", "AutomationId", "name")
	}
	return false
}

func attrIs(e *etree.Element, want string, keys ...string) bool {
	for _, k := range keys {
		if a := e.SelectAttr(k); a != nil && a.Value == want {
			return true
		}
	}
	return false
}

// Element is a node of a parsed dump.
type Element struct {
	src *Source
	e   *etree.Element
	id  string
	gen int
}

// ID implements core.Element.
func (el *Element) ID() string { return el.id }

// Path returns the node's tag path from the document root.
func (el *Element) Path() string { return el.e.GetPath() }

func (el *Element) stale() error {
	if el.gen != el.src.gen {
		return core.Retryable(ErrStale)
	}
	return nil
}

// FindElements implements core.SearchContext below this node.
func (el *Element) FindElements(ctx context.Context, by core.By, criteria string) ([]core.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	el.src.mu.Lock()
	defer el.src.mu.Unlock()
	if err := el.stale(); err != nil {
		return nil, err
	}
	return el.src.find(el.e, false, by, criteria)
}

// TagName implements core.Element.
func (el *Element) TagName(ctx context.Context) (string, error) {
	el.src.mu.Lock()
	defer el.src.mu.Unlock()
	if err := el.stale(); err != nil {
		return "", err
	}
	return el.e.Tag, nil
}

// Attribute implements core.Element.
func (el *Element) Attribute(ctx context.Context, name string) (string, bool, error) {
	el.src.mu.Lock()
	defer el.src.mu.Unlock()
	if err := el.stale(); err != nil {
		return "", false, err
	}
	a := el.e.SelectAttr(name)
	if a == nil {
		return "", false, nil
	}
	return a.Value, true, nil
}

// IsDisplayed implements core.Element. Nodes are visible unless a
// platform flag says otherwise.
func (el *Element) IsDisplayed(ctx context.Context) (bool, error) {
	el.src.mu.Lock()
	defer el.src.mu.Unlock()
	if err := el.stale(); err != nil {
		return false, err
	}
	e := el.e
	if strings.EqualFold(e.SelectAttrValue("displayed", "true"), "false") ||
		strings.EqualFold(e.SelectAttrValue("visible", "true"), "false") ||
		strings.EqualFold(e.SelectAttrValue("IsOffscreen", "false"), "true") {
		return false, nil
	}
	return true, nil
}

// Rect implements core.Element.
func (el *Element) Rect(ctx context.Context) (core.Bounds, error) {
	el.src.mu.Lock()
	defer el.src.mu.Unlock()
	if err := el.stale(); err != nil {
		return core.Bounds{}, err
	}
	if b := el.e.SelectAttrValue("bounds", ""); b != "" {
		return parseBounds(b), nil
	}
	num := func(k string) int {
		v, _ := strconv.ParseFloat(el.e.SelectAttrValue(k, "0"), 64)
		return int(v)
	}
	return core.Bounds{X: num("x"), Y: num("y"), Width: num("width"), Height: num("height")}, nil
}

// parseBounds reads the Android "[x1,y1][x2,y2]" form.
func parseBounds(s string) core.Bounds {
	s = strings.ReplaceAll(s, "][", ",")
	s = strings.Trim(s, "[]")
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return core.Bounds{}
	}

	x1, _ := strconv.Atoi(parts[0])
	y1, _ := strconv.Atoi(parts[1])
	x2, _ := strconv.Atoi(parts[2])
	y2, _ := strconv.Atoi(parts[3])

	return core.Bounds{
		X:      x1,
		Y:      y1,
		Width:  x2 - x1,
		Height: y2 - y1,
	}
}
