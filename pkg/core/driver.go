// Package core defines the contract between the locator machinery and the
// automation backend that owns the live UI, plus the shared error taxonomy.
package core

import (
	"context"
	"fmt"
)

// By identifies a lookup strategy on the wire. The values are the W3C /
// Appium "using" identifiers so backends can forward them unchanged.
type By string

// Supported wire strategies.
const (
	ByID                 By = "id"
	ByName               By = "name"
	ByXPath              By = "xpath"
	ByClassName          By = "class name"
	ByTagName            By = "tag name"
	ByAccessibilityID    By = "accessibility id"
	ByAndroidUIAutomator By = "-android uiautomator"
	ByAndroidViewTag     By = "-android viewtag"
	ByAndroidDataMatcher By = "-android datamatcher"
	ByAndroidViewMatcher By = "-android viewmatcher"
	ByIOSUIAutomation    By = "-ios uiautomation"
	ByIOSPredicate       By = "-ios predicate string"
	ByIOSClassChain      By = "-ios class chain"
	ByCSSSelector        By = "css selector"
	ByScript             By = "script" // criteria is a script returning elements
)

// SearchContext is anything elements can be searched from: the application
// root (a session) or a previously found element.
// FindElements never returns nil on success; an empty slice means no match.
type SearchContext interface {
	FindElements(ctx context.Context, by By, criteria string) ([]Element, error)
}

// Element is an opaque handle owned by the automation backend.
// Handles may go stale between calls; backends report that with a
// Retryable error.
type Element interface {
	SearchContext

	// ID returns the backend's identifier for the handle.
	ID() string

	// TagName returns the element's tag / role / class.
	TagName(ctx context.Context) (string, error)

	// Attribute returns the named attribute. ok is false when the
	// attribute is absent.
	Attribute(ctx context.Context, name string) (value string, ok bool, err error)

	// IsDisplayed reports visibility.
	IsDisplayed(ctx context.Context) (bool, error)

	// Rect returns the element geometry.
	Rect(ctx context.Context) (Bounds, error)
}

// Diagnoser is optionally implemented by backends that can capture state
// when a keyword fails (screenshot, page source).
type Diagnoser interface {
	Screenshot(ctx context.Context) ([]byte, error)
	Source(ctx context.Context) (string, error)
}

// Bounds represents element position and size
type Bounds struct {
	X      int `json:"x" yaml:"x"`
	Y      int `json:"y" yaml:"y"`
	Width  int `json:"width" yaml:"width"`
	Height int `json:"height" yaml:"height"`
}

// Center returns the center point of the bounds
func (b Bounds) Center() (int, int) {
	return b.X + b.Width/2, b.Y + b.Height/2
}

// Contains checks if a point is within the bounds
func (b Bounds) Contains(x, y int) bool {
	return x >= b.X && x < b.X+b.Width && y >= b.Y && y < b.Y+b.Height
}

// String formats the bounds as [x,y][x2,y2], the page-source convention.
func (b Bounds) String() string {
	return fmt.Sprintf("[%d,%d][%d,%d]", b.X, b.Y, b.X+b.Width, b.Y+b.Height)
}

// SameElement reports whether two handles refer to the same backend element.
func SameElement(a, b Element) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.ID() == b.ID()
}
