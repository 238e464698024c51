package cli

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	json "github.com/json-iterator/go"
	"github.com/urfave/cli/v2"

	"github.com/devicelab-dev/uiscope/pkg/config"
	"github.com/devicelab-dev/uiscope/pkg/core"
	"github.com/devicelab-dev/uiscope/pkg/driver/appium"
	"github.com/devicelab-dev/uiscope/pkg/driver/pagesource"
	"github.com/devicelab-dev/uiscope/pkg/keyword"
	"github.com/devicelab-dev/uiscope/pkg/logger"
)

// loadConfig reads --config, or uiscope.yaml in the working directory,
// and applies flag overrides.
func loadConfig(c *cli.Context) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if path := c.String("config"); path != "" {
		cfg, err = config.Load(path)
	} else {
		cfg, err = config.LoadFromDir(".")
	}
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	if c.IsSet("appium-url") {
		cfg.AppiumURL = c.String("appium-url")
	}
	if c.IsSet("session") {
		cfg.SessionID = c.String("session")
	}
	if c.IsSet("caps") {
		caps, err := parseCaps(c.String("caps"))
		if err != nil {
			return nil, err
		}
		cfg.Capabilities = caps
	}
	if c.IsSet("timeout") {
		d, err := core.ParseTimeout(c.String("timeout"), cfg.Timeout.Duration())
		if err != nil {
			return nil, err
		}
		cfg.Timeout = config.Timeout(d)
	}
	if c.IsSet("poll-interval") {
		d, err := core.ParseTimeout(c.String("poll-interval"), cfg.PollInterval.Duration())
		if err != nil {
			return nil, err
		}
		cfg.PollInterval = config.Timeout(d)
	}
	return cfg, nil
}

// parseCaps accepts inline JSON or @path to a JSON file.
func parseCaps(s string) (map[string]interface{}, error) {
	data := []byte(s)
	if path, ok := strings.CutPrefix(s, "@"); ok {
		b, err := os.ReadFile(path) //#nosec G304 -- user-provided capabilities file
		if err != nil {
			return nil, fmt.Errorf("read capabilities: %w", err)
		}
		data = b
	}
	var caps map[string]interface{}
	if err := json.Unmarshal(data, &caps); err != nil {
		return nil, fmt.Errorf("parse capabilities: %w", err)
	}
	return caps, nil
}

// openRoot opens the search root named by the flags: a page source dump
// when --source is set, otherwise an Appium session. The returned func
// releases it.
func openRoot(c *cli.Context, cfg *config.Config) (core.SearchContext, func(), error) {
	ctx := c.Context
	if path := c.String("source"); path != "" {
		src, err := pagesource.New(ctx, pagesource.FileLoader(path))
		if err != nil {
			return nil, nil, err
		}
		return src, func() {}, nil
	}

	if cfg.AppiumURL == "" {
		return nil, nil, fmt.Errorf("either --source or --appium-url is required")
	}
	client := appium.NewClient(cfg.AppiumURL, appium.WithClientLogger(logger.L()))
	if cfg.SessionID != "" {
		client.Attach(cfg.SessionID)
		logger.Info("attached to session %s", cfg.SessionID)
		// Attached sessions belong to someone else.
		return appium.NewSession(client), func() {}, nil
	}
	if len(cfg.Capabilities) == 0 {
		return nil, nil, fmt.Errorf("--session or --caps is required with --appium-url")
	}
	if err := client.Connect(ctx, cfg.Capabilities); err != nil {
		return nil, nil, fmt.Errorf("create session: %w", err)
	}
	logger.Info("created session %s (%s)", client.SessionID(), client.Platform())
	closer := func() {
		dctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := client.Disconnect(dctx); err != nil {
			logger.Warn("delete session %s: %v", client.SessionID(), err)
		}
	}
	return appium.NewSession(client), closer, nil
}

// openLibrary opens the root and builds a keyword library over it with
// failure diagnostics enabled.
func openLibrary(c *cli.Context) (*keyword.Library, func(), error) {
	cfg := configFrom(c)
	root, closer, err := openRoot(c, cfg)
	if err != nil {
		return nil, nil, err
	}
	lib := keyword.NewLibrary(root, keyword.WithConfig(cfg), keyword.WithLogger(logger.L()))
	if err := lib.RegisterStrategies(cfg.Strategies); err != nil {
		closer()
		return nil, nil, fmt.Errorf("register strategies: %w", err)
	}

	lib.UseDefaultDiagnostics(failuresDir(c))
	return lib, closer, nil
}

// failuresDir returns --failures-dir or the default location.
func failuresDir(c *cli.Context) string {
	if dir := c.String("failures-dir"); dir != "" {
		return dir
	}
	return config.GetFailuresDir()
}
