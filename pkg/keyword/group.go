// Package keyword exposes named operations with a run-on-failure hook and
// the element keyword library built on locator, retry and scope.
package keyword

import (
	"context"
	"errors"
	"sort"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/devicelab-dev/uiscope/pkg/core"
	"github.com/devicelab-dev/uiscope/pkg/logger"
)

// Func is the uniform signature keywords are registered under.
type Func func(ctx context.Context, args ...interface{}) (interface{}, error)

// Entry registers one keyword. Exempt keywords never fire the failure hook.
type Entry struct {
	Name   string
	Func   Func
	Exempt bool
}

// FailureHook runs once per failure that escapes a wrapped keyword. err
// is the *HandledError the caller will receive.
type FailureHook func(ctx context.Context, keyword string, err error)

// HandledError marks an error whose failure hook already ran. Outer
// wrapped keywords pass it through without firing again.
type HandledError struct {
	ID      uuid.UUID
	Keyword string
	Err     error
}

func (e *HandledError) Error() string { return e.Err.Error() }

func (e *HandledError) Unwrap() error { return e.Err }

// IsHandled reports whether err already went through a failure hook.
func IsHandled(err error) bool {
	var h *HandledError
	return errors.As(err, &h)
}

// Group is a table of keywords. Call runs the wrapped form and
// CallOriginal the bare one.
type Group struct {
	entries map[string]Entry
	hook    FailureHook
	log     *zap.Logger
}

// NewGroup builds a group from entries. Names must be unique.
func NewGroup(entries []Entry) (*Group, error) {
	g := &Group{entries: make(map[string]Entry, len(entries)), log: logger.L()}
	for _, e := range entries {
		if err := g.Add(e); err != nil {
			return nil, err
		}
	}
	return g, nil
}

// Add registers one more keyword.
func (g *Group) Add(e Entry) error {
	if e.Name == "" || e.Func == nil {
		return core.NewExecutionError(core.ErrCategoryUsage, "invalid_keyword", "keyword needs a name and a function")
	}
	if _, dup := g.entries[e.Name]; dup {
		return core.NewExecutionError(core.ErrCategoryUsage, "duplicate_keyword", "keyword "+e.Name+" is already registered")
	}
	g.entries[e.Name] = e
	return nil
}

// SetFailureHook installs the hook; nil disables it.
func (g *Group) SetFailureHook(h FailureHook) { g.hook = h }

// SetLogger replaces the logger.
func (g *Group) SetLogger(l *zap.Logger) {
	if l != nil {
		g.log = l
	}
}

// Names returns the registered keyword names, sorted.
func (g *Group) Names() []string {
	names := make([]string, 0, len(g.entries))
	for n := range g.entries {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Has reports whether name is registered.
func (g *Group) Has(name string) bool {
	_, ok := g.entries[name]
	return ok
}

// IsExempt reports whether name is registered as exempt.
func (g *Group) IsExempt(name string) bool { return g.entries[name].Exempt }

// Call invokes the wrapped keyword.
func (g *Group) Call(ctx context.Context, name string, args ...interface{}) (interface{}, error) {
	e, err := g.lookup(name)
	if err != nil {
		return nil, err
	}
	return Run(ctx, g, name, func() (interface{}, error) {
		return e.Func(ctx, args...)
	})
}

// CallOriginal invokes the keyword without the failure hook, for
// composing keywords inside other keywords.
func (g *Group) CallOriginal(ctx context.Context, name string, args ...interface{}) (interface{}, error) {
	e, err := g.lookup(name)
	if err != nil {
		return nil, err
	}
	return e.Func(ctx, args...)
}

func (g *Group) lookup(name string) (Entry, error) {
	e, ok := g.entries[name]
	if !ok {
		return Entry{}, core.ErrUnknownKeyword.WithMessagef("no keyword named %q", name)
	}
	return e, nil
}

// Run executes fn as keyword name under g's failure hook. The hook fires
// at most once per failure however deeply wrapped keywords nest.
func Run[T any](ctx context.Context, g *Group, name string, fn func() (T, error)) (T, error) {
	v, err := fn()
	if err == nil || g == nil {
		return v, err
	}
	if IsHandled(err) || g.IsExempt(name) {
		return v, err
	}

	handled := &HandledError{ID: uuid.New(), Keyword: name, Err: err}
	g.log.Error("keyword failed",
		zap.String("keyword", name),
		zap.String("failure_id", handled.ID.String()),
		zap.Error(err))
	if g.hook != nil {
		g.hook(ctx, name, handled)
	}
	return v, handled
}
