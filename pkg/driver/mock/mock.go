// Package mock provides an in-memory element tree that implements the core
// collaborator contract, for testing without a real device.
package mock

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/devicelab-dev/uiscope/pkg/core"
)

// ErrStale is returned (marked retryable) for handles whose node was removed.
var ErrStale = errors.New("stale element reference: element is no longer attached to the UI tree")

// Node is one element in the fake UI tree.
type Node struct {
	ID       string
	Tag      string
	Attrs    map[string]string
	Hidden   bool
	Bounds   core.Bounds
	Children []*Node

	parent   *Node
	detached bool
}

// N builds a node. attrs are key/value pairs.
func N(tag string, attrs map[string]string, children ...*Node) *Node {
	return &Node{Tag: tag, Attrs: attrs, Children: children}
}

// Call records one FindElements invocation.
type Call struct {
	Scope    string // "" for the root
	By       core.By
	Criteria string
}

// Config configures mock driver behavior.
type Config struct {
	// BeforeFind runs before every FindElements call (1-indexed count).
	// A non-nil error is returned from the call instead of searching.
	BeforeFind func(call int) error
}

// Driver is the application root of a fake UI tree.
type Driver struct {
	Config Config

	mu     sync.Mutex
	root   *Node
	nextID int
	calls  []Call
}

// New creates a new mock driver around the given top-level nodes.
func New(cfg Config, nodes ...*Node) *Driver {
	d := &Driver{Config: cfg, root: &Node{Tag: "hierarchy", ID: "root"}}
	for _, n := range nodes {
		d.appendLocked(d.root, n)
	}
	return d
}

// Append attaches n (and its subtree) under parent; nil parent means the root.
func (d *Driver) Append(parent, n *Node) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if parent == nil {
		parent = d.root
	}
	d.appendLocked(parent, n)
}

func (d *Driver) appendLocked(parent, n *Node) {
	if !containsNode(parent, n) {
		parent.Children = append(parent.Children, n)
	}
	n.parent = parent
	d.attach(n)
}

func containsNode(parent, n *Node) bool {
	for _, c := range parent.Children {
		if c == n {
			return true
		}
	}
	return false
}

func (d *Driver) attach(n *Node) {
	n.detached = false
	if n.ID == "" {
		d.nextID++
		n.ID = fmt.Sprintf("mock-element-%d", d.nextID)
	}
	if n.Attrs == nil {
		n.Attrs = map[string]string{}
	}
	for _, c := range n.Children {
		c.parent = n
		d.attach(c)
	}
}

// Remove detaches n from the tree; existing handles to it (or its
// descendants) go stale.
func (d *Driver) Remove(n *Node) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if n.parent != nil {
		kids := n.parent.Children[:0]
		for _, c := range n.parent.Children {
			if c != n {
				kids = append(kids, c)
			}
		}
		n.parent.Children = kids
	}
	markDetached(n)
}

func markDetached(n *Node) {
	n.detached = true
	for _, c := range n.Children {
		markDetached(c)
	}
}

// SetHidden toggles the visibility of n.
func (d *Driver) SetHidden(n *Node, hidden bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	n.Hidden = hidden
}

// Calls returns a copy of the recorded FindElements calls.
func (d *Driver) Calls() []Call {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Call, len(d.calls))
	copy(out, d.calls)
	return out
}

// ResetCalls clears the call log.
func (d *Driver) ResetCalls() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = nil
}

// Element returns a handle for n.
func (d *Driver) Element(n *Node) *Element {
	return &Element{d: d, n: n}
}

// FindElements implements core.SearchContext for the application root.
func (d *Driver) FindElements(ctx context.Context, by core.By, criteria string) ([]core.Element, error) {
	return d.find(ctx, d.root, "", by, criteria)
}

func (d *Driver) find(ctx context.Context, scope *Node, scopeID string, by core.By, criteria string) ([]core.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d.mu.Lock()
	d.calls = append(d.calls, Call{Scope: scopeID, By: by, Criteria: criteria})
	count := len(d.calls)
	hook := d.Config.BeforeFind
	d.mu.Unlock()

	if hook != nil {
		if err := hook(count); err != nil {
			return nil, err
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if scope.detached {
		return nil, core.Retryable(ErrStale)
	}

	found := []core.Element{}
	var walk func(n *Node)
	walk = func(n *Node) {
		for _, c := range n.Children {
			if matches(c, by, criteria) {
				found = append(found, &Element{d: d, n: c})
			}
			walk(c)
		}
	}
	walk(scope)
	return found, nil
}

func matches(n *Node, by core.By, criteria string) bool {
	switch by {
	case core.ByID:
		return n.Attrs["id"] == criteria || n.Attrs["resource-id"] == criteria
	case core.ByName:
		return n.Attrs["name"] == criteria || n.Attrs["Name"] == criteria
	case core.ByClassName:
		return n.Attrs["class"] == criteria || n.Attrs["ClassName"] == criteria || n.Tag == criteria
	case core.ByTagName:
		return strings.EqualFold(n.Tag, criteria)
	case core.ByAccessibilityID:
		return n.Attrs["accessibility-id"] == criteria || n.Attrs["content-desc"] == criteria
	case core.ByXPath:
		return matchSimplePath(n, criteria)
	default:
		// Other dialects match on an attribute named after the strategy,
		// which lets tests assert dispatch without a real engine.
		return n.Attrs[string(by)] == criteria
	}
}

// matchSimplePath understands "//tag", "//*", ".//tag" and
// "//tag[@attr='value']".
func matchSimplePath(n *Node, path string) bool {
	p := strings.TrimPrefix(strings.TrimPrefix(path, "."), "//")
	tag, pred, hasPred := strings.Cut(p, "[")
	if tag != "*" && !strings.EqualFold(tag, n.Tag) {
		return false
	}
	if !hasPred {
		return true
	}
	pred = strings.TrimSuffix(pred, "]")
	attr, val, ok := strings.Cut(strings.TrimPrefix(pred, "@"), "=")
	if !ok {
		return false
	}
	return n.Attrs[attr] == strings.Trim(val, `'"`)
}

// Screenshot returns a mock PNG image.
func (d *Driver) Screenshot(ctx context.Context) ([]byte, error) {
	// Minimal valid PNG (1x1 transparent pixel)
	return []byte{
		0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A, // PNG signature
		0x00, 0x00, 0x00, 0x0D, 0x49, 0x48, 0x44, 0x52, // IHDR chunk
		0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
		0x08, 0x06, 0x00, 0x00, 0x00, 0x1F, 0x15, 0xC4,
		0x89, 0x00, 0x00, 0x00, 0x0A, 0x49, 0x44, 0x41,
		0x54, 0x78, 0x9C, 0x63, 0x00, 0x01, 0x00, 0x00,
		0x05, 0x00, 0x01, 0x0D, 0x0A, 0x2D, 0xB4, 0x00,
		0x00, 0x00, 0x00, 0x49, 0x45, 0x4E, 0x44, 0xAE,
		0x42, 0x60, 0x82,
	}, nil
}

// Source renders the tree as XML-like page source.
func (d *Driver) Source(ctx context.Context) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var b strings.Builder
	writeNode(&b, d.root, 0)
	return b.String(), nil
}

func writeNode(b *strings.Builder, n *Node, depth int) {
	b.WriteString(strings.Repeat("  ", depth))
	b.WriteString("<" + n.Tag)
	keys := make([]string, 0, len(n.Attrs))
	for k := range n.Attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(b, " %s=%q", k, n.Attrs[k])
	}
	if len(n.Children) == 0 {
		b.WriteString("/>\n")
		return
	}
	b.WriteString(">\n")
	for _, c := range n.Children {
		writeNode(b, c, depth+1)
	}
	b.WriteString(strings.Repeat("  ", depth) + "</" + n.Tag + ">\n")
}

// Element is a handle to a Node.
type Element struct {
	d *Driver
	n *Node
}

// Node returns the underlying node.
func (e *Element) Node() *Node { return e.n }

// ID implements core.Element.
func (e *Element) ID() string { return e.n.ID }

func (e *Element) stale() error {
	if e.n.detached {
		return core.Retryable(ErrStale)
	}
	return nil
}

// FindElements implements core.SearchContext scoped to this element.
func (e *Element) FindElements(ctx context.Context, by core.By, criteria string) ([]core.Element, error) {
	return e.d.find(ctx, e.n, e.n.ID, by, criteria)
}

// TagName implements core.Element.
func (e *Element) TagName(ctx context.Context) (string, error) {
	e.d.mu.Lock()
	defer e.d.mu.Unlock()
	if err := e.stale(); err != nil {
		return "", err
	}
	return e.n.Tag, nil
}

// Attribute implements core.Element.
func (e *Element) Attribute(ctx context.Context, name string) (string, bool, error) {
	e.d.mu.Lock()
	defer e.d.mu.Unlock()
	if err := e.stale(); err != nil {
		return "", false, err
	}
	v, ok := e.n.Attrs[name]
	return v, ok, nil
}

// IsDisplayed implements core.Element.
func (e *Element) IsDisplayed(ctx context.Context) (bool, error) {
	e.d.mu.Lock()
	defer e.d.mu.Unlock()
	if err := e.stale(); err != nil {
		return false, err
	}
	return !e.n.Hidden, nil
}

// Rect implements core.Element.
func (e *Element) Rect(ctx context.Context) (core.Bounds, error) {
	e.d.mu.Lock()
	defer e.d.mu.Unlock()
	if err := e.stale(); err != nil {
		return core.Bounds{}, err
	}
	return e.n.Bounds, nil
}
