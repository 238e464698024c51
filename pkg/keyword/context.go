package keyword

import (
	"context"
	"time"

	"github.com/devicelab-dev/uiscope/pkg/scope"
)

// GetContext returns the current frame, element or locator.
func (l *Library) GetContext(ctx context.Context, sel scope.Selector) interface{} {
	return l.scope.Get(sel)
}

// SetContext makes target the only context frame. target is a locator
// string, a core.Element, a scope.Frame or a {"locator": ...} map;
// reference is nil, an index or a sub-locator string. The context held
// before the call is returned.
func (l *Library) SetContext(ctx context.Context, target, reference interface{}, timeout time.Duration) (scope.Snapshot, error) {
	return Run(ctx, l.group, "set_context", func() (scope.Snapshot, error) {
		return l.setContext(ctx, target, reference, timeout, true)
	})
}

// PushContext resolves target within the current context and nests it.
func (l *Library) PushContext(ctx context.Context, target, reference interface{}, timeout time.Duration) (scope.Snapshot, error) {
	return Run(ctx, l.group, "push_context", func() (scope.Snapshot, error) {
		return l.setContext(ctx, target, reference, timeout, false)
	})
}

func (l *Library) setContext(ctx context.Context, target, reference interface{}, timeout time.Duration, clear bool) (scope.Snapshot, error) {
	prev := l.scope.Snapshot()
	if err := checkTimeout(timeout); err != nil {
		l.scope.Clear()
		return prev, err
	}
	t, err := scope.TargetFrom(target)
	if err != nil {
		l.scope.Clear()
		return prev, err
	}
	ref, err := scope.ParseReference(reference)
	if err != nil {
		l.scope.Clear()
		return prev, err
	}
	return l.scope.Set(ctx, t, ref, l.timeoutOr(timeout), clear)
}

// PopContext removes the innermost frame.
func (l *Library) PopContext(ctx context.Context) (scope.Frame, bool) {
	return l.scope.Pop()
}

// ClearContext empties the context and returns what it held.
func (l *Library) ClearContext(ctx context.Context) scope.Snapshot {
	return l.scope.Clear()
}

// RestoreContext puts back a snapshot returned by another context keyword.
func (l *Library) RestoreContext(ctx context.Context, s scope.Snapshot) {
	l.scope.Restore(s)
}
