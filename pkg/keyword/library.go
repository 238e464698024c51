package keyword

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/devicelab-dev/uiscope/pkg/config"
	"github.com/devicelab-dev/uiscope/pkg/core"
	"github.com/devicelab-dev/uiscope/pkg/jsengine"
	"github.com/devicelab-dev/uiscope/pkg/locator"
	"github.com/devicelab-dev/uiscope/pkg/logger"
	"github.com/devicelab-dev/uiscope/pkg/retry"
	"github.com/devicelab-dev/uiscope/pkg/scope"
)

// Library is the element keyword surface for one session. Every public
// keyword runs under the group's failure hook. Not safe for concurrent use.
type Library struct {
	group    *Group
	scope    *scope.Manager
	resolver *locator.Resolver
	timeout  time.Duration
	retry    []retry.Option
	diag     core.Diagnoser
	js       *jsengine.Engine
	log      *zap.Logger
}

type libraryOptions struct {
	timeout          time.Duration
	pollInterval     time.Duration
	referenceTimeout time.Duration
	aliases          map[string]string
	clock            retry.Clock
	diag             core.Diagnoser
	log              *zap.Logger
}

// Option configures a Library.
type Option func(*libraryOptions)

// WithConfig applies timing and alias settings from cfg.
func WithConfig(cfg *config.Config) Option {
	return func(o *libraryOptions) {
		if cfg == nil {
			return
		}
		o.timeout = cfg.Timeout.Duration()
		o.pollInterval = cfg.PollInterval.Duration()
		o.referenceTimeout = cfg.ReferenceTimeout.Duration()
		if len(cfg.Aliases) > 0 {
			o.aliases = cfg.Aliases
		}
	}
}

// WithTimeout sets the default keyword timeout.
func WithTimeout(d time.Duration) Option { return func(o *libraryOptions) { o.timeout = d } }

// WithPollInterval sets the pause between attempts.
func WithPollInterval(d time.Duration) Option { return func(o *libraryOptions) { o.pollInterval = d } }

// WithReferenceTimeout bounds sub-locator context references.
func WithReferenceTimeout(d time.Duration) Option {
	return func(o *libraryOptions) { o.referenceTimeout = d }
}

// WithAliases adds attribute aliases for extra rules.
func WithAliases(aliases map[string]string) Option {
	return func(o *libraryOptions) { o.aliases = aliases }
}

// WithClock replaces the wall clock used by every poll.
func WithClock(c retry.Clock) Option { return func(o *libraryOptions) { o.clock = c } }

// WithDiagnoser sets where failure diagnostics come from. By default the
// root is used when it implements core.Diagnoser.
func WithDiagnoser(d core.Diagnoser) Option { return func(o *libraryOptions) { o.diag = d } }

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option { return func(o *libraryOptions) { o.log = l } }

// NewLibrary creates a keyword library over the application root.
func NewLibrary(root core.SearchContext, opts ...Option) *Library {
	o := libraryOptions{
		timeout:          config.DefaultTimeout,
		pollInterval:     config.DefaultPollInterval,
		referenceTimeout: config.DefaultReferenceTimeout,
		log:              logger.L(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.timeout <= 0 {
		o.timeout = config.DefaultTimeout
	}
	if o.diag == nil {
		o.diag, _ = root.(core.Diagnoser)
	}

	retryOpts := []retry.Option{retry.Interval(o.pollInterval), retry.WithLogger(o.log)}
	if o.clock != nil {
		retryOpts = append(retryOpts, retry.WithClock(o.clock))
	}

	resolver := locator.NewResolver(locator.WithAliases(o.aliases), locator.WithLogger(o.log))
	l := &Library{
		resolver: resolver,
		scope: scope.NewManager(root, resolver,
			scope.WithTimeout(o.timeout),
			scope.WithReferenceTimeout(o.referenceTimeout),
			scope.WithRetryOptions(retryOpts...),
			scope.WithLogger(o.log)),
		timeout: o.timeout,
		retry:   retryOpts,
		diag:    o.diag,
		log:     o.log,
	}

	group, err := NewGroup(l.Keywords())
	if err != nil {
		panic(err)
	}
	group.SetLogger(o.log)
	l.group = group
	return l
}

// Group returns the keyword group for name-based invocation.
func (l *Library) Group() *Group { return l.group }

// Scope returns the context manager.
func (l *Library) Scope() *scope.Manager { return l.scope }

// Resolver returns the locator resolver, e.g. to Register extensions.
func (l *Library) Resolver() *locator.Resolver { return l.resolver }

// Diagnoser returns the diagnostics source, or nil.
func (l *Library) Diagnoser() core.Diagnoser { return l.diag }

// SetRunOnFailure installs the failure hook; nil disables it.
func (l *Library) SetRunOnFailure(h FailureHook) { l.group.SetFailureHook(h) }

// SetRoot points the library at a new application root and clears the
// context stack.
func (l *Library) SetRoot(root core.SearchContext) {
	l.scope.SetRoot(root)
	if d, ok := root.(core.Diagnoser); ok {
		l.diag = d
	}
}

// checkTimeout rejects negative timeouts. Zero means the default.
func checkTimeout(d time.Duration) error {
	if d < 0 {
		return core.ErrInvalidTimeout.WithMessagef("timeout must not be negative, got %s", d).
			WithDetails(map[string]interface{}{"timeout": d.String()})
	}
	return nil
}

func (l *Library) timeoutOr(d time.Duration) time.Duration {
	if d <= 0 {
		return l.timeout
	}
	return d
}

// find resolves text within the current context.
func (l *Library) find(ctx context.Context, text string) ([]core.Element, error) {
	return l.resolver.Resolve(ctx, l.scope.Root(), text, "")
}

// poll runs probe under the library's retry settings.
func poll[T any](ctx context.Context, l *Library, timeout time.Duration, what string, probe retry.Probe[T], extra ...retry.Option) (retry.Outcome[T], error) {
	if err := checkTimeout(timeout); err != nil {
		return retry.Outcome[T]{}, err
	}
	opts := append(append([]retry.Option{retry.Describe(what)}, l.retry...), extra...)
	return retry.Poll(ctx, l.timeoutOr(timeout), probe, opts...)
}
