// Package cli provides the command-line interface for uiscope.
package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"

	"github.com/devicelab-dev/uiscope/pkg/config"
	"github.com/devicelab-dev/uiscope/pkg/logger"
)

// Version is set at build time.
var Version = "dev"

// GlobalFlags are available to all commands.
var GlobalFlags = []cli.Flag{
	&cli.StringFlag{
		Name:    "appium-url",
		Usage:   "Appium server URL",
		EnvVars: []string{"APPIUM_URL"},
	},
	&cli.StringFlag{
		Name:    "session",
		Usage:   "Attach to an existing Appium session ID",
		EnvVars: []string{"UISCOPE_SESSION"},
	},
	&cli.StringFlag{
		Name:    "caps",
		Usage:   "Capabilities for a new session (JSON or @file.json)",
		EnvVars: []string{"UISCOPE_CAPS"},
	},
	&cli.StringFlag{
		Name:    "source",
		Aliases: []string{"s"},
		Usage:   "Search a page source XML dump instead of a live session",
		EnvVars: []string{"UISCOPE_SOURCE"},
	},
	&cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to uiscope.yaml (default: ./uiscope.yaml if present)",
		EnvVars: []string{"UISCOPE_CONFIG"},
	},
	&cli.StringFlag{
		Name:    "timeout",
		Aliases: []string{"t"},
		Usage:   "Default timeout (e.g. 10, 2.5, 20s, \"1 min\")",
		EnvVars: []string{"UISCOPE_TIMEOUT"},
	},
	&cli.StringFlag{
		Name:    "poll-interval",
		Usage:   "Pause between attempts (e.g. 0.5, 200ms)",
		EnvVars: []string{"UISCOPE_POLL_INTERVAL"},
	},
	&cli.StringFlag{
		Name:    "failures-dir",
		Usage:   "Where failure records are written (default: $UISCOPE_HOME/failures)",
		EnvVars: []string{"UISCOPE_FAILURES_DIR"},
	},
	&cli.BoolFlag{
		Name:    "verbose",
		Aliases: []string{"v"},
		Usage:   "Enable verbose logging to stderr",
		EnvVars: []string{"UISCOPE_VERBOSE"},
	},
	&cli.StringFlag{
		Name:    "log-file",
		Usage:   "Write logs to this file",
		EnvVars: []string{"UISCOPE_LOG_FILE"},
	},
	&cli.BoolFlag{
		Name:    "log",
		Usage:   "Write logs to $UISCOPE_HOME/logs/uiscope.log",
		EnvVars: []string{"UISCOPE_LOG"},
	},
	&cli.BoolFlag{
		Name:  "no-ansi",
		Usage: "Disable ANSI colors",
	},
}

// NewApp builds the CLI application. Output goes to stdout and stderr.
func NewApp(stdout, stderr io.Writer) *cli.App {
	return &cli.App{
		Name:    "uiscope",
		Usage:   "Locate, wait for and scope UI elements",
		Version: Version,
		Description: `uiscope resolves locators against a live Appium session or a page
source dump, retrying until elements appear or the timeout passes.

Examples:
  uiscope parse "id=row | text.regex=Item [0-9]+"
  uiscope --source page.xml find "//android.widget.Button" --attr text
  uiscope --appium-url http://127.0.0.1:4723 --session 3f2a... wait "accessibility_id=done"
  uiscope --source page.xml call get_element_attribute "id=title" text`,
		Flags:     GlobalFlags,
		Writer:    stdout,
		ErrWriter: stderr,
		Before:    before,
		After:     after,
		Commands: []*cli.Command{
			parseCommand,
			findCommand,
			waitCommand,
			keywordsCommand,
			callCommand,
			failuresCommand,
		},
	}
}

// Execute runs the CLI.
func Execute() {
	app := NewApp(os.Stdout, os.Stderr)
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", color.RedString("Error:"), err)
		os.Exit(1)
	}
}

// before loads .env and the config file and sets up logging.
func before(c *cli.Context) error {
	// A missing .env is normal.
	_ = godotenv.Load()

	if c.Bool("no-ansi") {
		color.NoColor = true
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	c.App.Metadata = map[string]interface{}{configKey: cfg}

	opts := logger.Options{
		File:       cfg.Log.File,
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
	}
	switch {
	case c.String("log-file") != "":
		opts.File = c.String("log-file")
	case c.Bool("log") && opts.File == "":
		opts.File = filepath.Join(config.GetLogDir(), "uiscope.log")
	}
	if c.Bool("verbose") {
		opts.Level = "debug"
		opts.Console = c.App.ErrWriter
	}
	return logger.Setup(opts)
}

func after(c *cli.Context) error {
	logger.Close()
	return nil
}

const configKey = "config"

// configFrom returns the config loaded in before.
func configFrom(c *cli.Context) *config.Config {
	if cfg, ok := c.App.Metadata[configKey].(*config.Config); ok {
		return cfg
	}
	return config.Defaults()
}
