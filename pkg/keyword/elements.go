package keyword

import (
	"context"
	"fmt"
	"time"

	"github.com/devicelab-dev/uiscope/pkg/core"
	"github.com/devicelab-dev/uiscope/pkg/retry"
)

// ElementExists reports whether locator matches within timeout.
func (l *Library) ElementExists(ctx context.Context, locator string, timeout time.Duration) (bool, error) {
	return Run(ctx, l.group, "element_exists", func() (bool, error) {
		return l.elementExists(ctx, locator, timeout)
	})
}

func (l *Library) elementExists(ctx context.Context, locator string, timeout time.Duration) (bool, error) {
	els, err := l.elementsExist(ctx, locator, timeout)
	return len(els) > 0, err
}

// ElementsExist returns the matches for locator, or nil when none appear
// within timeout.
func (l *Library) ElementsExist(ctx context.Context, locator string, timeout time.Duration) ([]core.Element, error) {
	return Run(ctx, l.group, "elements_exist", func() ([]core.Element, error) {
		return l.elementsExist(ctx, locator, timeout)
	})
}

func (l *Library) elementsExist(ctx context.Context, locator string, timeout time.Duration) ([]core.Element, error) {
	out, err := poll(ctx, l, timeout, locator, func(ctx context.Context) ([]core.Element, bool, error) {
		els, err := l.find(ctx, locator)
		return els, len(els) > 0, err
	})
	if err != nil || !out.Found() {
		return nil, err
	}
	return out.Result, nil
}

// WaitUntilVisible waits for the first match of locator to be displayed
// and returns it, or nil when it is not within timeout.
func (l *Library) WaitUntilVisible(ctx context.Context, locator string, timeout time.Duration) (core.Element, error) {
	return Run(ctx, l.group, "wait_until_visible", func() (core.Element, error) {
		out, err := l.waitVisible(ctx, locator, timeout)
		if err != nil || !out.Found() {
			return nil, err
		}
		return out.Result, nil
	})
}

func (l *Library) waitVisible(ctx context.Context, locator string, timeout time.Duration) (retry.Outcome[core.Element], error) {
	return poll(ctx, l, timeout, locator, func(ctx context.Context) (core.Element, bool, error) {
		els, err := l.find(ctx, locator)
		if err != nil || len(els) == 0 {
			return nil, false, err
		}
		shown, err := els[0].IsDisplayed(ctx)
		if err != nil || !shown {
			return nil, false, err
		}
		return els[0], true, nil
	})
}

// WaitUntilNotVisible waits until locator is absent or hidden on two
// consecutive attempts. It returns false when that does not happen
// within timeout.
func (l *Library) WaitUntilNotVisible(ctx context.Context, locator string, timeout time.Duration) (bool, error) {
	return Run(ctx, l.group, "wait_until_not_visible", func() (bool, error) {
		out, err := l.waitNotVisible(ctx, locator, timeout, 2)
		return out.Found(), err
	})
}

func (l *Library) waitNotVisible(ctx context.Context, locator string, timeout time.Duration, needed int) (retry.Outcome[bool], error) {
	streak := 0
	return poll(ctx, l, timeout, locator, func(ctx context.Context) (bool, bool, error) {
		hidden, err := l.hidden(ctx, locator)
		if err != nil {
			streak = 0
			return false, false, err
		}
		if !hidden {
			streak = 0
			return false, false, nil
		}
		streak++
		return true, streak >= needed, nil
	})
}

// hidden reports whether locator has no match or its first match is not
// displayed.
func (l *Library) hidden(ctx context.Context, locator string) (bool, error) {
	els, err := l.find(ctx, locator)
	if err != nil {
		return false, err
	}
	if len(els) == 0 {
		return true, nil
	}
	shown, err := els[0].IsDisplayed(ctx)
	if err != nil {
		return false, err
	}
	return !shown, nil
}

// ElementShouldBeVisible fails unless locator becomes visible within timeout.
func (l *Library) ElementShouldBeVisible(ctx context.Context, locator string, timeout time.Duration) error {
	_, err := Run(ctx, l.group, "element_should_be_visible", func() (struct{}, error) {
		return struct{}{}, l.elementShouldBeVisible(ctx, locator, timeout)
	})
	return err
}

func (l *Library) elementShouldBeVisible(ctx context.Context, locator string, timeout time.Duration) error {
	out, err := l.waitVisible(ctx, locator, timeout)
	if err != nil {
		return err
	}
	if !out.Found() {
		return core.ErrElementNotVisible.
			WithMessagef("element %q should be visible but is not within %s", locator, l.timeoutOr(timeout)).
			WithCause(out.Err)
	}
	return nil
}

// ElementShouldNotBeVisible fails unless locator is absent or hidden
// within timeout.
func (l *Library) ElementShouldNotBeVisible(ctx context.Context, locator string, timeout time.Duration) error {
	_, err := Run(ctx, l.group, "element_should_not_be_visible", func() (struct{}, error) {
		return struct{}{}, l.elementShouldNotBeVisible(ctx, locator, timeout)
	})
	return err
}

func (l *Library) elementShouldNotBeVisible(ctx context.Context, locator string, timeout time.Duration) error {
	out, err := l.waitNotVisible(ctx, locator, timeout, 1)
	if err != nil {
		return err
	}
	if !out.Found() {
		return core.ErrElementVisible.
			WithMessagef("element %q should not be visible but is within %s", locator, l.timeoutOr(timeout)).
			WithCause(out.Err)
	}
	return nil
}

// FirstFoundElement returns the index of the first locator that matches,
// with its first element. It returns -1 and nil when none match within
// timeout.
func (l *Library) FirstFoundElement(ctx context.Context, timeout time.Duration, locators ...string) (int, core.Element, error) {
	type hit struct {
		index int
		el    core.Element
	}
	h, err := Run(ctx, l.group, "first_found_element", func() (hit, error) {
		i, el, err := l.firstFound(ctx, timeout, locators)
		return hit{i, el}, err
	})
	return h.index, h.el, err
}

func (l *Library) firstFound(ctx context.Context, timeout time.Duration, locators []string) (int, core.Element, error) {
	type hit struct {
		index int
		el    core.Element
	}
	out, err := poll(ctx, l, timeout, fmt.Sprintf("any of %q", locators), func(ctx context.Context) (hit, bool, error) {
		for i, loc := range locators {
			els, err := l.find(ctx, loc)
			if err != nil {
				return hit{}, false, err
			}
			if len(els) > 0 {
				return hit{i, els[0]}, true, nil
			}
		}
		return hit{}, false, nil
	})
	if err != nil || !out.Found() {
		return -1, nil, err
	}
	return out.Result.index, out.Result.el, nil
}

// GetElement returns the first match for locator. When nothing matches
// within timeout it fails if required, else returns nil.
func (l *Library) GetElement(ctx context.Context, locator string, timeout time.Duration, required bool) (core.Element, error) {
	return Run(ctx, l.group, "get_element", func() (core.Element, error) {
		return l.getElement(ctx, locator, timeout, required)
	})
}

func (l *Library) getElement(ctx context.Context, locator string, timeout time.Duration, required bool) (core.Element, error) {
	out, err := poll(ctx, l, timeout, locator, func(ctx context.Context) (core.Element, bool, error) {
		els, err := l.find(ctx, locator)
		if err != nil || len(els) == 0 {
			return nil, false, err
		}
		return els[0], true, nil
	})
	if err != nil {
		return nil, err
	}
	if !out.Found() {
		if required {
			return nil, core.ErrElementNotFound.
				WithMessagef("element %q not found within %s", locator, l.timeoutOr(timeout)).
				WithCause(out.Err)
		}
		return nil, nil
	}
	return out.Result, nil
}

// GetElements returns every match for locator, or an empty slice when
// none appear within timeout.
func (l *Library) GetElements(ctx context.Context, locator string, timeout time.Duration) ([]core.Element, error) {
	return Run(ctx, l.group, "get_elements", func() ([]core.Element, error) {
		els, err := l.elementsExist(ctx, locator, timeout)
		if els == nil && err == nil {
			els = []core.Element{}
		}
		return els, err
	})
}

// GetElementsInElement returns the matches for locator inside parent.
func (l *Library) GetElementsInElement(ctx context.Context, parent core.Element, locator string, timeout time.Duration) ([]core.Element, error) {
	return Run(ctx, l.group, "get_elements_in_element", func() ([]core.Element, error) {
		return l.elementsIn(ctx, parent, locator, timeout)
	})
}

func (l *Library) elementsIn(ctx context.Context, parent core.Element, locator string, timeout time.Duration) ([]core.Element, error) {
	if parent == nil {
		return nil, core.ErrElementNotFound.WithMessage("parent element is nil")
	}
	out, err := poll(ctx, l, timeout, locator, func(ctx context.Context) ([]core.Element, bool, error) {
		els, err := l.resolver.Resolve(ctx, parent, locator, "")
		return els, len(els) > 0, err
	})
	if err != nil {
		return nil, err
	}
	if !out.Found() {
		return []core.Element{}, nil
	}
	return out.Result, nil
}

// GetElementAttribute reads attribute from the first match for locator.
// ok is false when the element lacks the attribute.
func (l *Library) GetElementAttribute(ctx context.Context, locator, attribute string, timeout time.Duration) (value string, ok bool, err error) {
	type attr struct {
		value string
		ok    bool
	}
	a, err := Run(ctx, l.group, "get_element_attribute", func() (attr, error) {
		el, err := l.getElement(ctx, locator, timeout, true)
		if err != nil {
			return attr{}, err
		}
		v, ok, err := el.Attribute(ctx, attribute)
		return attr{v, ok}, err
	})
	return a.value, a.ok, err
}

// GetElementAttributesInElement reads attribute from every match for
// locator inside parent. Missing attributes read as "".
func (l *Library) GetElementAttributesInElement(ctx context.Context, parent core.Element, locator, attribute string, timeout time.Duration) ([]string, error) {
	return Run(ctx, l.group, "get_element_attributes_in_element", func() ([]string, error) {
		return l.attributesIn(ctx, parent, locator, attribute, timeout)
	})
}

func (l *Library) attributesIn(ctx context.Context, parent core.Element, locator, attribute string, timeout time.Duration) ([]string, error) {
	els, err := l.elementsIn(ctx, parent, locator, timeout)
	if err != nil {
		return nil, err
	}
	values := make([]string, 0, len(els))
	for _, el := range els {
		v, _, err := el.Attribute(ctx, attribute)
		if err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	return values, nil
}

// FindElements returns the matches for locator restricted to tag ("" for
// any tag), waiting up to timeout for at least one. No match is an empty
// slice.
func (l *Library) FindElements(ctx context.Context, locator, tag string, timeout time.Duration) ([]core.Element, error) {
	return Run(ctx, l.group, "find_elements", func() ([]core.Element, error) {
		return l.findElements(ctx, locator, tag, timeout)
	})
}

func (l *Library) findElements(ctx context.Context, locator, tag string, timeout time.Duration) ([]core.Element, error) {
	out, err := poll(ctx, l, timeout, locator, func(ctx context.Context) ([]core.Element, bool, error) {
		els, err := l.resolver.Resolve(ctx, l.scope.Root(), locator, tag)
		return els, len(els) > 0, err
	})
	if err != nil {
		return nil, err
	}
	if !out.Found() {
		return []core.Element{}, nil
	}
	return out.Result, nil
}
