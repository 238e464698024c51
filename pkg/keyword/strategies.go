package keyword

import (
	"sort"
	"strings"

	"github.com/devicelab-dev/uiscope/pkg/config"
	"github.com/devicelab-dev/uiscope/pkg/core"
	"github.com/devicelab-dev/uiscope/pkg/jsengine"
	"github.com/devicelab-dev/uiscope/pkg/locator"
)

// RegisterStrategy adds a custom locator prefix that looks elements up
// with the wire strategy using. A non-empty rewrite is a template whose
// ${...} JavaScript expressions see the written criteria as "criteria".
func (l *Library) RegisterStrategy(prefix, using, rewrite string) error {
	using = strings.TrimSpace(using)
	if using == "" {
		return core.ErrInvalidLocator.WithMessagef("strategy %q needs a wire strategy to use", prefix)
	}
	var fn locator.Rewrite
	if rewrite != "" {
		if l.js == nil {
			l.js = jsengine.New()
		}
		fn = l.js.Rewriter(rewrite)
	}
	return l.resolver.Register(prefix, core.By(using), fn)
}

// RegisterStrategies registers every configured strategy, in prefix order.
func (l *Library) RegisterStrategies(strategies map[string]config.Strategy) error {
	prefixes := make([]string, 0, len(strategies))
	for p := range strategies {
		prefixes = append(prefixes, p)
	}
	sort.Strings(prefixes)
	for _, p := range prefixes {
		s := strategies[p]
		if err := l.RegisterStrategy(p, s.Using, s.Rewrite); err != nil {
			return err
		}
	}
	return nil
}
