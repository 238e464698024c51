package locator

import (
	"strings"

	"github.com/devicelab-dev/uiscope/pkg/core"
)

// Strategy is a built-in lookup algorithm selected by a locator prefix.
type Strategy int

const (
	Default Strategy = iota // path if the criteria looks like one, else id
	Identifier              // id lookup, then name lookup, unioned
	ID
	Name
	Path
	Class
	AccessibilityID
	AndroidUIAutomator
	AndroidViewTag
	AndroidDataMatcher
	AndroidViewMatcher
	IOSUIAutomation
	IOSPredicate
	IOSClassChain
	CSS
	ScriptSelector
	TagName

	// Extension marks a strategy added with Resolver.Register.
	Extension
)

var strategyNames = [...]string{
	Default:            "default",
	Identifier:         "identifier",
	ID:                 "id",
	Name:               "name",
	Path:               "xpath",
	Class:              "class",
	AccessibilityID:    "accessibility_id",
	AndroidUIAutomator: "android",
	AndroidViewTag:     "viewtag",
	AndroidDataMatcher: "data_matcher",
	AndroidViewMatcher: "view_matcher",
	IOSUIAutomation:    "ios",
	IOSPredicate:       "predicate",
	IOSClassChain:      "chain",
	CSS:                "css",
	ScriptSelector:     "jquery",
	TagName:            "tag",
	Extension:          "extension",
}

// String returns the canonical locator prefix.
func (s Strategy) String() string {
	if s >= 0 && int(s) < len(strategyNames) {
		return strategyNames[s]
	}
	return "unknown"
}

// prefixes maps every accepted prefix spelling to a built-in strategy.
var prefixes = map[string]Strategy{
	"default":          Default,
	"identifier":       Identifier,
	"id":               ID,
	"name":             Name,
	"xpath":            Path,
	"path":             Path,
	"class":            Class,
	"accessibility_id": AccessibilityID,
	"accessibility-id": AccessibilityID,
	"android":          AndroidUIAutomator,
	"viewtag":          AndroidViewTag,
	"data_matcher":     AndroidDataMatcher,
	"view_matcher":     AndroidViewMatcher,
	"ios":              IOSUIAutomation,
	"predicate":        IOSPredicate,
	"chain":            IOSClassChain,
	"css":              CSS,
	"jquery":           ScriptSelector,
	"sizzle":           ScriptSelector,
	"script-selector":  ScriptSelector,
	"tag":              TagName,
}

// wireBy is the collaborator strategy for built-ins that map one-to-one.
var wireBy = map[Strategy]core.By{
	ID:                 core.ByID,
	Name:               core.ByName,
	Path:               core.ByXPath,
	Class:              core.ByClassName,
	AccessibilityID:    core.ByAccessibilityID,
	AndroidUIAutomator: core.ByAndroidUIAutomator,
	AndroidViewTag:     core.ByAndroidViewTag,
	AndroidDataMatcher: core.ByAndroidDataMatcher,
	AndroidViewMatcher: core.ByAndroidViewMatcher,
	IOSUIAutomation:    core.ByIOSUIAutomation,
	IOSPredicate:       core.ByIOSPredicate,
	IOSClassChain:      core.ByIOSClassChain,
	CSS:                core.ByCSSSelector,
	TagName:            core.ByTagName,
}

// LookupStrategy returns the built-in strategy for a prefix.
func LookupStrategy(prefix string) (Strategy, bool) {
	s, ok := prefixes[strings.ToLower(strings.TrimSpace(prefix))]
	return s, ok
}

// isPath reports whether criteria is a raw path expression.
func isPath(criteria string) bool {
	return strings.HasPrefix(criteria, "/") || strings.HasPrefix(criteria, "(")
}

// scriptSelector builds the script sent for jquery/sizzle locators.
func scriptSelector(criteria string) string {
	return "return jQuery('" + strings.ReplaceAll(criteria, "'", `\'`) + "').get();"
}
