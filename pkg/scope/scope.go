// Package scope keeps the stack of context elements that locators are
// resolved within.
package scope

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/devicelab-dev/uiscope/pkg/core"
	"github.com/devicelab-dev/uiscope/pkg/locator"
	"github.com/devicelab-dev/uiscope/pkg/logger"
	"github.com/devicelab-dev/uiscope/pkg/retry"
)

const (
	DefaultTimeout          = 10 * time.Second
	DefaultReferenceTimeout = 5 * time.Second
)

// Frame is one scoping level. Element and Locator are both set or both zero.
type Frame struct {
	Element  core.Element
	Locator  locator.Locator
	Metadata map[string]string
}

// IsZero reports whether f is the empty frame.
func (f Frame) IsZero() bool { return f.Element == nil }

// Snapshot is a copy of the context stack, bottom first.
type Snapshot struct {
	frames []Frame
}

// Frames returns the frames, bottom first.
func (s Snapshot) Frames() []Frame {
	out := make([]Frame, len(s.frames))
	copy(out, s.frames)
	return out
}

// Top returns the innermost frame.
func (s Snapshot) Top() (Frame, bool) {
	if len(s.frames) == 0 {
		return Frame{}, false
	}
	return s.frames[len(s.frames)-1], true
}

// IsEmpty reports whether the snapshot has no frames.
func (s Snapshot) IsEmpty() bool { return len(s.frames) == 0 }

// Selector chooses what Get returns.
type Selector int

const (
	Full        Selector = iota // Frame
	ElementOnly                 // core.Element
	LocatorOnly                 // locator.Locator
)

// Manager owns the context stack for one session. It is not safe for
// concurrent use.
type Manager struct {
	root             core.SearchContext
	resolver         *locator.Resolver
	stack            []Frame
	timeout          time.Duration
	referenceTimeout time.Duration
	retryOpts        []retry.Option
	log              *zap.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithTimeout sets the timeout used when Set is called with zero.
func WithTimeout(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.timeout = d
		}
	}
}

// WithReferenceTimeout bounds each per-candidate sub-locator search.
func WithReferenceTimeout(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.referenceTimeout = d
		}
	}
}

// WithRetryOptions passes options (interval, clock) to every poll.
func WithRetryOptions(opts ...retry.Option) Option {
	return func(m *Manager) { m.retryOpts = append(m.retryOpts, opts...) }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.log = l
		}
	}
}

// NewManager creates an empty context over the application root.
func NewManager(root core.SearchContext, resolver *locator.Resolver, opts ...Option) *Manager {
	if resolver == nil {
		resolver = locator.NewResolver()
	}
	m := &Manager{
		root:             root,
		resolver:         resolver,
		timeout:          DefaultTimeout,
		referenceTimeout: DefaultReferenceTimeout,
		log:              logger.L(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Resolver returns the resolver used for context lookups.
func (m *Manager) Resolver() *locator.Resolver { return m.resolver }

// SetRoot replaces the application root, e.g. after attaching a session.
// The stack is cleared because its elements belong to the old root.
func (m *Manager) SetRoot(root core.SearchContext) {
	m.root = root
	m.stack = nil
}

// Root returns the search context lookups should use: the innermost
// context element, or the application root when the stack is empty.
func (m *Manager) Root() core.SearchContext {
	if top, ok := m.top(); ok {
		return top.Element
	}
	return m.root
}

// Application returns the application root regardless of the stack.
func (m *Manager) Application() core.SearchContext { return m.root }

// Depth returns the number of frames.
func (m *Manager) Depth() int { return len(m.stack) }

// Current returns the innermost frame, or the zero Frame.
func (m *Manager) Current() Frame {
	top, _ := m.top()
	return top
}

// Element returns the innermost context element, or nil.
func (m *Manager) Element() core.Element { return m.Current().Element }

// Locator returns the innermost context locator, or the zero Locator.
func (m *Manager) Locator() locator.Locator { return m.Current().Locator }

// Get returns the frame, element or locator depending on sel.
func (m *Manager) Get(sel Selector) interface{} {
	switch sel {
	case ElementOnly:
		return m.Element()
	case LocatorOnly:
		return m.Locator()
	default:
		return m.Current()
	}
}

// Snapshot returns a copy of the stack.
func (m *Manager) Snapshot() Snapshot {
	return Snapshot{frames: append([]Frame(nil), m.stack...)}
}

// Clear empties the stack and returns what it held.
func (m *Manager) Clear() Snapshot {
	prev := m.Snapshot()
	m.stack = nil
	return prev
}

// Restore replaces the stack with s.
func (m *Manager) Restore(s Snapshot) {
	m.stack = append([]Frame(nil), s.frames...)
}

// Pop removes and returns the innermost frame.
func (m *Manager) Pop() (Frame, bool) {
	top, ok := m.top()
	if ok {
		m.stack = m.stack[:len(m.stack)-1]
	}
	return top, ok
}

// Push resolves target within the current context and pushes it.
func (m *Manager) Push(ctx context.Context, target Target, ref Reference, timeout time.Duration) (Snapshot, error) {
	return m.Set(ctx, target, ref, timeout, false)
}

// Set resolves target and makes it the context. With clear the lookup
// starts at the application root and the stack is replaced by the new
// frame; otherwise the lookup runs inside the current context and the
// frame is pushed. Any failure leaves the stack empty. The stack as it
// was before the call is returned in both cases.
func (m *Manager) Set(ctx context.Context, target Target, ref Reference, timeout time.Duration, clear bool) (Snapshot, error) {
	prev := m.Snapshot()
	if timeout == 0 {
		timeout = m.timeout
	}

	base := m.Root()
	if clear {
		base = m.root
	}

	frame, err := m.resolveTarget(ctx, base, target, ref, timeout)
	if err != nil {
		m.log.Warn("failed to set context element; context cleared",
			zap.String("target", target.String()),
			zap.String("reference", ref.String()),
			zap.Error(err))
		m.stack = nil
		return prev, err
	}

	if clear {
		m.stack = []Frame{frame}
	} else {
		m.stack = append(m.stack, frame)
	}
	m.log.Debug("context set",
		zap.String("locator", frame.Locator.Text),
		zap.String("element", frame.Element.ID()),
		zap.Int("depth", len(m.stack)))
	return prev, nil
}

func (m *Manager) resolveTarget(ctx context.Context, base core.SearchContext, target Target, ref Reference, timeout time.Duration) (Frame, error) {
	if target.Element != nil {
		label := target.Label
		if sub, ok := ref.AsSubLocator(); ok && label == "" {
			label = sub
		}
		return Frame{Element: target.Element, Locator: labelLocator(label, target.Element), Metadata: target.Metadata}, nil
	}
	if target.Locator == "" {
		return Frame{}, core.ErrInvalidLocator.WithMessage("context target has neither a locator nor an element")
	}

	loc, err := m.resolver.Parse(target.Locator)
	if err != nil {
		return Frame{}, err
	}
	el, err := m.find(ctx, base, loc, ref, timeout)
	if err != nil {
		return Frame{}, err
	}
	return Frame{Element: el, Locator: loc, Metadata: target.Metadata}, nil
}

// find resolves loc within base, then picks one match using ref.
func (m *Manager) find(ctx context.Context, base core.SearchContext, loc locator.Locator, ref Reference, timeout time.Duration) (core.Element, error) {
	probe := func(ctx context.Context) ([]core.Element, bool, error) {
		found, err := m.resolver.ResolveLocator(ctx, base, loc, "")
		return found, len(found) > 0, err
	}
	opts := append([]retry.Option{retry.Describe(loc.Text), retry.WithLogger(m.log)}, m.retryOpts...)
	out, err := retry.Poll(ctx, timeout, probe, opts...)
	if err != nil {
		return nil, err
	}
	if !out.Found() {
		return nil, core.ErrNoElementsFound.
			WithMessagef("no elements found for locator %q within %s", loc.Text, timeout).
			WithCause(out.Err)
	}
	elements := out.Result

	if i, ok := ref.AsIndex(); ok {
		if i < 0 || i >= len(elements) {
			return nil, core.ErrIndexOutOfRange.
				WithMessagef("reference index %d is out of range (0-%d) for locator %q", i, len(elements)-1, loc.Text).
				WithDetails(map[string]interface{}{"index": i, "count": len(elements)})
		}
		return elements[i], nil
	}

	if sub, ok := ref.AsSubLocator(); ok {
		subLoc, err := m.resolver.Parse(sub)
		if err != nil {
			return nil, err
		}
		for _, el := range elements {
			has, err := m.contains(ctx, el, subLoc)
			if err != nil {
				return nil, err
			}
			if has {
				return el, nil
			}
		}
		return nil, core.ErrElementNotFound.
			WithMessagef("could not find context element for locator %q with reference %q", loc.Text, sub)
	}

	return elements[0], nil
}

// contains polls for sub inside el, bounded by the reference timeout.
func (m *Manager) contains(ctx context.Context, el core.Element, sub locator.Locator) (bool, error) {
	probe := func(ctx context.Context) (bool, bool, error) {
		found, err := m.resolver.ResolveLocator(ctx, el, sub, "")
		return true, len(found) > 0, err
	}
	opts := append([]retry.Option{retry.Describe(sub.Text), retry.WithLogger(m.log)}, m.retryOpts...)
	out, err := retry.Poll(ctx, m.referenceTimeout, probe, opts...)
	if err != nil {
		return false, err
	}
	return out.Found(), nil
}

func (m *Manager) top() (Frame, bool) {
	if len(m.stack) == 0 {
		return Frame{}, false
	}
	return m.stack[len(m.stack)-1], true
}

func labelLocator(label string, el core.Element) locator.Locator {
	if label != "" {
		if loc, err := locator.Parse(label); err == nil {
			return loc
		}
	}
	return locator.ForElement(el.ID())
}
