package locator

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/devicelab-dev/uiscope/pkg/core"
	"github.com/devicelab-dev/uiscope/pkg/logger"
	"github.com/devicelab-dev/uiscope/pkg/pattern"
)

// extension is a platform strategy added with Register.
type extension struct {
	by      core.By
	rewrite Rewrite
}

// Rewrite transforms extension criteria before they reach the collaborator.
type Rewrite func(criteria string) (string, error)

// Resolver turns locators into elements. It performs no waiting and no
// retry; wrap calls in retry.Poll for that. A Resolver belongs to one
// session and is not safe for concurrent Register calls.
type Resolver struct {
	extensions map[string]extension
	aliases    map[string]string
	log        *zap.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithAliases adds attribute aliases for extra rules on top of the defaults.
func WithAliases(aliases map[string]string) Option {
	return func(r *Resolver) {
		for k, v := range aliases {
			r.aliases[k] = v
		}
	}
}

// WithLogger sets the logger used for debug tracing.
func WithLogger(l *zap.Logger) Option {
	return func(r *Resolver) {
		if l != nil {
			r.log = l
		}
	}
}

// NewResolver creates a resolver with the built-in strategies.
func NewResolver(opts ...Option) *Resolver {
	r := &Resolver{
		extensions: map[string]extension{},
		aliases:    map[string]string{},
		log:        logger.L(),
	}
	for k, v := range pattern.DefaultAliases {
		r.aliases[k] = v
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds a platform-specific strategy under prefix. rewrite, when
// non-nil, transforms the criteria before it reaches the collaborator.
// Built-in prefixes cannot be overridden.
func (r *Resolver) Register(prefix string, by core.By, rewrite Rewrite) error {
	prefix = strings.ToLower(strings.TrimSpace(prefix))
	if prefix == "" || strings.ContainsAny(prefix, "=|/") {
		return core.ErrInvalidLocator.WithMessagef("invalid strategy prefix %q", prefix)
	}
	if _, builtin := LookupStrategy(prefix); builtin {
		return core.ErrUnsupportedStrategy.WithMessagef("strategy prefix %q is built in and cannot be replaced", prefix)
	}
	r.extensions[prefix] = extension{by: by, rewrite: rewrite}
	return nil
}

// Supported returns every accepted prefix, sorted.
func (r *Resolver) Supported() []string {
	out := make([]string, 0, len(prefixes)+len(r.extensions))
	for p := range prefixes {
		out = append(out, p)
	}
	for p := range r.extensions {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Parse parses text with this resolver's attribute aliases.
func (r *Resolver) Parse(text string) (Locator, error) {
	return ParseWithAliases(text, r.aliases)
}

// Resolve parses text and resolves it within scope. tag is an optional
// user-facing element kind such as "link" or "checkbox".
func (r *Resolver) Resolve(ctx context.Context, scope core.SearchContext, text, tag string) ([]core.Element, error) {
	if strings.TrimSpace(text) == "" {
		return nil, core.ErrInvalidLocator.WithMessage("locator must not be empty")
	}
	loc, err := r.Parse(text)
	if err != nil {
		return nil, err
	}
	return r.ResolveLocator(ctx, scope, loc, tag)
}

// ResolveLocator resolves a parsed locator within scope. Results keep the
// order the collaborator returned them in.
func (r *Resolver) ResolveLocator(ctx context.Context, scope core.SearchContext, loc Locator, tag string) ([]core.Element, error) {
	if loc.Criteria == "" && loc.Prefix == "" {
		return nil, core.ErrInvalidLocator.WithMessage("locator must not be empty")
	}
	if scope == nil {
		return nil, core.ErrSessionNotConnected
	}

	found, err := r.dispatch(ctx, scope, loc)
	if err != nil {
		return nil, err
	}
	if found, err = filterTag(ctx, found, tag); err != nil {
		return nil, err
	}
	if found, err = pattern.Filter(ctx, found, loc.Extras); err != nil {
		return nil, err
	}

	r.log.Debug("resolved locator",
		zap.String("locator", loc.Text),
		zap.Stringer("strategy", loc.Strategy),
		zap.Int("matches", len(found)))
	return found, nil
}

func (r *Resolver) dispatch(ctx context.Context, scope core.SearchContext, loc Locator) ([]core.Element, error) {
	switch loc.Strategy {
	case Default:
		if isPath(loc.Criteria) {
			return find(ctx, scope, core.ByXPath, loc.Criteria)
		}
		return find(ctx, scope, core.ByID, loc.Criteria)
	case Identifier:
		byID, err := find(ctx, scope, core.ByID, loc.Criteria)
		if err != nil {
			return nil, err
		}
		byName, err := find(ctx, scope, core.ByName, loc.Criteria)
		if err != nil {
			return nil, err
		}
		return union(byID, byName), nil
	case ScriptSelector:
		return find(ctx, scope, core.ByScript, scriptSelector(loc.Criteria))
	case Extension:
		ext, ok := r.extensions[loc.Prefix]
		if !ok {
			return nil, core.ErrUnsupportedStrategy.
				WithMessagef("element locator with prefix %q is not supported (supported: %s)",
					loc.Prefix, strings.Join(r.Supported(), ", ")).
				WithDetails(map[string]interface{}{
					"prefix":    loc.Prefix,
					"supported": r.Supported(),
				})
		}
		criteria := loc.Criteria
		if ext.rewrite != nil {
			var err error
			if criteria, err = ext.rewrite(criteria); err != nil {
				return nil, core.ErrInvalidLocator.
					WithMessagef("rewrite criteria for %q: %v", loc.Text, err).
					WithCause(err)
			}
		}
		return find(ctx, scope, ext.by, criteria)
	default:
		by, ok := wireBy[loc.Strategy]
		if !ok {
			return nil, core.ErrUnsupportedStrategy.WithMessagef("strategy %s has no collaborator mapping", loc.Strategy)
		}
		return find(ctx, scope, by, loc.Criteria)
	}
}

func find(ctx context.Context, scope core.SearchContext, by core.By, criteria string) ([]core.Element, error) {
	found, err := scope.FindElements(ctx, by, criteria)
	if err != nil {
		return nil, fmt.Errorf("find elements by %s %q: %w", by, criteria, err)
	}
	if found == nil {
		found = []core.Element{}
	}
	return found, nil
}

// union appends b to a, skipping elements already present by ID.
func union(a, b []core.Element) []core.Element {
	seen := make(map[string]bool, len(a))
	out := make([]core.Element, 0, len(a)+len(b))
	for _, list := range [][]core.Element{a, b} {
		for _, el := range list {
			if id := el.ID(); id != "" {
				if seen[id] {
					continue
				}
				seen[id] = true
			}
			out = append(out, el)
		}
	}
	return out
}
