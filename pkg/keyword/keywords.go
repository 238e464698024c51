package keyword

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/devicelab-dev/uiscope/pkg/core"
	"github.com/devicelab-dev/uiscope/pkg/scope"
)

// Keywords returns the name table the library registers with its group.
// Funcs call the unwrapped implementations; Group.Call adds the hook.
func (l *Library) Keywords() []Entry {
	return []Entry{
		{Name: "get_context", Exempt: true, Func: func(ctx context.Context, args ...interface{}) (interface{}, error) {
			sel, err := selectorArg(args, 0)
			if err != nil {
				return nil, err
			}
			return l.scope.Get(sel), nil
		}},
		{Name: "set_context", Func: func(ctx context.Context, args ...interface{}) (interface{}, error) {
			return l.contextKeyword(ctx, args, true)
		}},
		{Name: "push_context", Func: func(ctx context.Context, args ...interface{}) (interface{}, error) {
			return l.contextKeyword(ctx, args, false)
		}},
		{Name: "pop_context", Exempt: true, Func: func(ctx context.Context, args ...interface{}) (interface{}, error) {
			f, _ := l.scope.Pop()
			return f, nil
		}},
		{Name: "clear_context", Exempt: true, Func: func(ctx context.Context, args ...interface{}) (interface{}, error) {
			return l.scope.Clear(), nil
		}},
		{Name: "restore_context", Exempt: true, Func: func(ctx context.Context, args ...interface{}) (interface{}, error) {
			if len(args) == 0 {
				return nil, usageError("restore_context needs a snapshot")
			}
			s, ok := args[0].(scope.Snapshot)
			if !ok {
				return nil, usageError(fmt.Sprintf("restore_context: expected a snapshot, got %T", args[0]))
			}
			l.scope.Restore(s)
			return nil, nil
		}},
		{Name: "element_exists", Func: l.locatorKeyword(func(ctx context.Context, loc string, timeout time.Duration) (interface{}, error) {
			return l.elementExists(ctx, loc, timeout)
		})},
		{Name: "elements_exist", Func: l.locatorKeyword(func(ctx context.Context, loc string, timeout time.Duration) (interface{}, error) {
			return l.elementsExist(ctx, loc, timeout)
		})},
		{Name: "wait_until_visible", Func: l.locatorKeyword(func(ctx context.Context, loc string, timeout time.Duration) (interface{}, error) {
			out, err := l.waitVisible(ctx, loc, timeout)
			if err != nil || !out.Found() {
				return nil, err
			}
			return out.Result, nil
		})},
		{Name: "wait_until_not_visible", Func: l.locatorKeyword(func(ctx context.Context, loc string, timeout time.Duration) (interface{}, error) {
			out, err := l.waitNotVisible(ctx, loc, timeout, 2)
			return out.Found(), err
		})},
		{Name: "element_should_be_visible", Func: l.locatorKeyword(func(ctx context.Context, loc string, timeout time.Duration) (interface{}, error) {
			return nil, l.elementShouldBeVisible(ctx, loc, timeout)
		})},
		{Name: "element_should_not_be_visible", Func: l.locatorKeyword(func(ctx context.Context, loc string, timeout time.Duration) (interface{}, error) {
			return nil, l.elementShouldNotBeVisible(ctx, loc, timeout)
		})},
		{Name: "first_found_element", Func: func(ctx context.Context, args ...interface{}) (interface{}, error) {
			locs, timeout, err := l.locatorsWithTimeout(args)
			if err != nil {
				return nil, err
			}
			i, _, err := l.firstFound(ctx, timeout, locs)
			return i, err
		}},
		{Name: "get_element", Func: func(ctx context.Context, args ...interface{}) (interface{}, error) {
			loc, timeout, err := l.locatorArgs(args)
			if err != nil {
				return nil, err
			}
			required := true
			if len(args) > 2 {
				if required, err = boolArg(args, 2); err != nil {
					return nil, err
				}
			}
			return l.getElement(ctx, loc, timeout, required)
		}},
		{Name: "get_elements", Func: l.locatorKeyword(func(ctx context.Context, loc string, timeout time.Duration) (interface{}, error) {
			els, err := l.elementsExist(ctx, loc, timeout)
			if els == nil && err == nil {
				els = []core.Element{}
			}
			return els, err
		})},
		{Name: "find_elements", Func: func(ctx context.Context, args ...interface{}) (interface{}, error) {
			loc, err := stringArg(args, 0)
			if err != nil {
				return nil, err
			}
			var tag string
			if len(args) > 1 && args[1] != nil {
				if tag, err = stringArg(args, 1); err != nil {
					return nil, err
				}
			}
			timeout, err := l.timeoutArg(args, 2)
			if err != nil {
				return nil, err
			}
			return l.findElements(ctx, loc, tag, timeout)
		}},
		{Name: "get_elements_in_element", Func: func(ctx context.Context, args ...interface{}) (interface{}, error) {
			parent, err := elementArg(args, 0)
			if err != nil {
				return nil, err
			}
			loc, timeout, err := l.locatorArgs(args[1:])
			if err != nil {
				return nil, err
			}
			return l.elementsIn(ctx, parent, loc, timeout)
		}},
		{Name: "get_element_attribute", Func: func(ctx context.Context, args ...interface{}) (interface{}, error) {
			loc, err := stringArg(args, 0)
			if err != nil {
				return nil, err
			}
			attr, err := stringArg(args, 1)
			if err != nil {
				return nil, err
			}
			timeout, err := l.timeoutArg(args, 2)
			if err != nil {
				return nil, err
			}
			el, err := l.getElement(ctx, loc, timeout, true)
			if err != nil {
				return nil, err
			}
			v, ok, err := el.Attribute(ctx, attr)
			if err != nil || !ok {
				return nil, err
			}
			return v, nil
		}},
		{Name: "get_element_attributes_in_element", Func: func(ctx context.Context, args ...interface{}) (interface{}, error) {
			parent, err := elementArg(args, 0)
			if err != nil {
				return nil, err
			}
			loc, err := stringArg(args, 1)
			if err != nil {
				return nil, err
			}
			attr, err := stringArg(args, 2)
			if err != nil {
				return nil, err
			}
			timeout, err := l.timeoutArg(args, 3)
			if err != nil {
				return nil, err
			}
			return l.attributesIn(ctx, parent, loc, attr, timeout)
		}},
		{Name: "get_table_data", Func: l.tableKeyword(func(ctx context.Context, spec TableSpec, timeout time.Duration) (interface{}, error) {
			return l.tableData(ctx, spec, timeout)
		})},
		{Name: "get_table_headers", Func: l.tableKeyword(func(ctx context.Context, spec TableSpec, timeout time.Duration) (interface{}, error) {
			return l.tableHeaders(ctx, spec, timeout)
		})},
		{Name: "get_table_rows", Func: l.tableKeyword(func(ctx context.Context, spec TableSpec, timeout time.Duration) (interface{}, error) {
			return l.tableRows(ctx, spec, timeout)
		})},
	}
}

func (l *Library) contextKeyword(ctx context.Context, args []interface{}, clear bool) (interface{}, error) {
	if len(args) == 0 {
		return nil, usageError("context keyword needs a target")
	}
	var ref interface{}
	if len(args) > 1 {
		ref = args[1]
	}
	timeout, err := l.timeoutArg(args, 2)
	if err != nil {
		return nil, err
	}
	return l.setContext(ctx, args[0], ref, timeout, clear)
}

// locatorKeyword adapts (locator, [timeout]) keywords.
func (l *Library) locatorKeyword(fn func(ctx context.Context, loc string, timeout time.Duration) (interface{}, error)) Func {
	return func(ctx context.Context, args ...interface{}) (interface{}, error) {
		loc, timeout, err := l.locatorArgs(args)
		if err != nil {
			return nil, err
		}
		return fn(ctx, loc, timeout)
	}
}

// tableKeyword adapts (spec, [timeout]) keywords. The spec is a TableSpec
// or a map keyed like TableSpec's yaml tags.
func (l *Library) tableKeyword(fn func(ctx context.Context, spec TableSpec, timeout time.Duration) (interface{}, error)) Func {
	return func(ctx context.Context, args ...interface{}) (interface{}, error) {
		if len(args) == 0 {
			return nil, usageError("table keyword needs a table spec")
		}
		spec, err := tableSpecArg(args[0])
		if err != nil {
			return nil, err
		}
		timeout, err := l.timeoutArg(args, 1)
		if err != nil {
			return nil, err
		}
		return fn(ctx, spec, timeout)
	}
}

func (l *Library) locatorArgs(args []interface{}) (string, time.Duration, error) {
	loc, err := stringArg(args, 0)
	if err != nil {
		return "", 0, err
	}
	timeout, err := l.timeoutArg(args, 1)
	return loc, timeout, err
}

// locatorsWithTimeout splits variadic locators from an optional trailing
// timeout, given either as a non-string value or as "timeout=<value>".
func (l *Library) locatorsWithTimeout(args []interface{}) ([]string, time.Duration, error) {
	var raw interface{}
	if n := len(args); n > 0 {
		switch v := args[n-1].(type) {
		case string:
			if t, ok := strings.CutPrefix(strings.TrimSpace(v), "timeout="); ok {
				raw, args = t, args[:n-1]
			}
		default:
			raw, args = v, args[:n-1]
		}
	}
	timeout, err := core.ParseTimeout(raw, l.timeout)
	if err != nil {
		return nil, 0, err
	}

	locs := make([]string, 0, len(args))
	for i := range args {
		s, err := stringArg(args, i)
		if err != nil {
			return nil, 0, err
		}
		locs = append(locs, s)
	}
	return locs, timeout, nil
}

// timeoutArg parses the optional timeout at args[i].
func (l *Library) timeoutArg(args []interface{}, i int) (time.Duration, error) {
	var v interface{}
	if i < len(args) {
		v = args[i]
	}
	return core.ParseTimeout(v, l.timeout)
}

func stringArg(args []interface{}, i int) (string, error) {
	if i >= len(args) {
		return "", usageError(fmt.Sprintf("missing argument %d", i+1))
	}
	s, ok := args[i].(string)
	if !ok {
		return "", usageError(fmt.Sprintf("argument %d: expected a string, got %T", i+1, args[i]))
	}
	return s, nil
}

func boolArg(args []interface{}, i int) (bool, error) {
	switch v := args[i].(type) {
	case bool:
		return v, nil
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return false, usageError(fmt.Sprintf("argument %d: %q is not a boolean", i+1, v))
		}
		return b, nil
	}
	return false, usageError(fmt.Sprintf("argument %d: expected a boolean, got %T", i+1, args[i]))
}

func elementArg(args []interface{}, i int) (core.Element, error) {
	if i >= len(args) {
		return nil, usageError(fmt.Sprintf("missing argument %d", i+1))
	}
	el, ok := args[i].(core.Element)
	if !ok {
		return nil, usageError(fmt.Sprintf("argument %d: expected an element, got %T", i+1, args[i]))
	}
	return el, nil
}

func selectorArg(args []interface{}, i int) (scope.Selector, error) {
	if i >= len(args) || args[i] == nil {
		return scope.Full, nil
	}
	switch v := args[i].(type) {
	case scope.Selector:
		return v, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "", "full", "frame":
			return scope.Full, nil
		case "element":
			return scope.ElementOnly, nil
		case "locator":
			return scope.LocatorOnly, nil
		}
		return scope.Full, usageError(fmt.Sprintf("unknown context selector %q", v))
	}
	return scope.Full, usageError(fmt.Sprintf("expected a context selector, got %T", args[i]))
}

func tableSpecArg(v interface{}) (TableSpec, error) {
	switch t := v.(type) {
	case TableSpec:
		return t, nil
	case *TableSpec:
		if t != nil {
			return *t, nil
		}
	case map[string]string:
		return TableSpec{
			Table:           t["table"],
			Header:          t["header"],
			HeaderAttribute: t["headerAttribute"],
			Row:             t["row"],
			Cell:            t["cell"],
			CellAttribute:   t["cellAttribute"],
		}, nil
	case map[string]interface{}:
		m := make(map[string]string, len(t))
		for k, val := range t {
			m[k] = fmt.Sprint(val)
		}
		return tableSpecArg(m)
	}
	return TableSpec{}, usageError(fmt.Sprintf("expected a table spec, got %T", v))
}

func usageError(msg string) error {
	return core.NewExecutionError(core.ErrCategoryUsage, "invalid_argument", msg)
}
