package cli

import (
	"fmt"

	json "github.com/json-iterator/go"
	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/devicelab-dev/uiscope/pkg/core"
	"github.com/devicelab-dev/uiscope/pkg/keyword"
	"github.com/devicelab-dev/uiscope/pkg/locator"
	"github.com/devicelab-dev/uiscope/pkg/report"
)

var parseCommand = &cli.Command{
	Name:      "parse",
	Usage:     "Show how a locator is parsed",
	ArgsUsage: "<locator>",
	Description: `Parses a locator without touching any device and prints the
strategy, criteria and extra attribute rules as YAML.

Examples:
  uiscope parse "//android.widget.Button"
  uiscope parse "id=row | text.regex=Item [0-9]+ | enabled=true"`,
	Action: runParse,
}

type ruleView struct {
	Attribute string `yaml:"attribute"`
	Mode      string `yaml:"mode"`
	Expected  string `yaml:"expected"`
}

type locatorView struct {
	Text     string     `yaml:"text"`
	Prefix   string     `yaml:"prefix,omitempty"`
	Strategy string     `yaml:"strategy"`
	Criteria string     `yaml:"criteria"`
	Extras   []ruleView `yaml:"extras,omitempty"`
}

func runParse(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("parse needs exactly one locator")
	}
	cfg := configFrom(c)
	loc, err := locator.NewResolver(locator.WithAliases(cfg.Aliases)).Parse(c.Args().First())
	if err != nil {
		return err
	}

	view := locatorView{
		Text:     loc.Text,
		Prefix:   loc.Prefix,
		Strategy: loc.Strategy.String(),
		Criteria: loc.Criteria,
	}
	for _, r := range loc.Extras {
		view.Extras = append(view.Extras, ruleView{Attribute: r.Attribute, Mode: r.Mode.String(), Expected: r.Expected})
	}
	enc := yaml.NewEncoder(c.App.Writer)
	enc.SetIndent(2)
	defer enc.Close()
	return enc.Encode(view)
}

var findCommand = &cli.Command{
	Name:      "find",
	Usage:     "List the elements a locator matches",
	ArgsUsage: "<locator>",
	Description: `Waits up to the timeout for the locator to match, then prints each
element. An empty result is not an error.

Examples:
  uiscope --source page.xml find "class=android.widget.TextView" --attr text
  uiscope --source page.xml find "id=title" --context "id=list" --reference 2
  uiscope --source page.xml find "//node" --tag button`,
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "tag",
			Usage: "Only keep elements of this tag (link, button, checkbox, ...)",
		},
		&cli.StringFlag{
			Name:  "context",
			Usage: "Search inside the element this locator matches",
		},
		&cli.StringFlag{
			Name:  "reference",
			Usage: "Pick the context candidate by index or by a sub-locator it contains",
		},
		&cli.StringSliceFlag{
			Name:  "attr",
			Usage: "Print this attribute for every match (repeatable)",
		},
	},
	Action: runFind,
}

func runFind(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("find needs exactly one locator")
	}
	lib, closer, err := openLibrary(c)
	if err != nil {
		return err
	}
	defer closer()

	ctx := c.Context
	if target := c.String("context"); target != "" {
		var ref interface{}
		if r := c.String("reference"); r != "" {
			ref = r
		}
		if _, err := lib.SetContext(ctx, target, ref, 0); err != nil {
			return err
		}
	}

	elements, err := lib.FindElements(ctx, c.Args().First(), c.String("tag"), 0)
	if err != nil {
		return err
	}
	if len(elements) == 0 {
		dimColor.Fprintln(c.App.Writer, "(no elements)")
		return nil
	}
	for i, el := range elements {
		printElement(ctx, c.App.Writer, i, el, c.StringSlice("attr"))
	}
	return nil
}

var waitCommand = &cli.Command{
	Name:      "wait",
	Usage:     "Wait until an element is visible, or gone with --gone",
	ArgsUsage: "<locator>",
	Description: `Polls until the first match of the locator is displayed. With --gone,
polls until nothing visible matches. Fails after the timeout.

Examples:
  uiscope --source page.xml --timeout 5 wait "accessibility_id=done"
  uiscope --appium-url http://127.0.0.1:4723 --session abc wait --gone "id=spinner"`,
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:  "gone",
			Usage: "Wait for the element to disappear instead",
		},
	},
	Action: runWait,
}

func runWait(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("wait needs exactly one locator")
	}
	lib, closer, err := openLibrary(c)
	if err != nil {
		return err
	}
	defer closer()

	loc := c.Args().First()
	if c.Bool("gone") {
		gone, err := lib.WaitUntilNotVisible(c.Context, loc, 0)
		if err != nil {
			return err
		}
		if !gone {
			return core.ErrElementVisible.WithMessagef("%s is still visible", loc)
		}
		passColor.Fprintf(c.App.Writer, "gone: %s\n", loc)
		return nil
	}

	el, err := lib.WaitUntilVisible(c.Context, loc, 0)
	if err != nil {
		return err
	}
	if el == nil {
		return core.ErrElementNotVisible.WithMessagef("%s did not become visible", loc)
	}
	passColor.Fprint(c.App.Writer, "visible: ")
	printElement(c.Context, c.App.Writer, 0, el, nil)
	return nil
}

var keywordsCommand = &cli.Command{
	Name:   "keywords",
	Usage:  "List the keywords available to call",
	Action: runKeywords,
}

func runKeywords(c *cli.Context) error {
	lib := keyword.NewLibrary(nil)
	g := lib.Group()
	for _, name := range g.Names() {
		fmt.Fprint(c.App.Writer, name)
		if g.IsExempt(name) {
			dimColor.Fprint(c.App.Writer, " (no failure hook)")
		}
		fmt.Fprintln(c.App.Writer)
	}
	return nil
}

var callCommand = &cli.Command{
	Name:      "call",
	Usage:     "Run one keyword by name",
	ArgsUsage: "<keyword> [args...]",
	Description: `Runs a keyword through the failure hook, so a failure writes a
screenshot and page source to the failures directory.

Examples:
  uiscope --source page.xml call element_exists "id=login" 2
  uiscope --source page.xml call get_element_attribute "id=title" text
  uiscope --source page.xml call first_found_element "id=a" "id=b"`,
	Action: runCall,
}

func runCall(c *cli.Context) error {
	if c.NArg() < 1 {
		return fmt.Errorf("call needs a keyword name")
	}
	lib, closer, err := openLibrary(c)
	if err != nil {
		return err
	}
	defer closer()

	rest := c.Args().Tail()
	args := make([]interface{}, len(rest))
	for i, a := range rest {
		args[i] = a
	}
	result, err := lib.Group().Call(c.Context, c.Args().First(), args...)
	if err != nil {
		return err
	}
	printResult(c.Context, c.App.Writer, result)
	return nil
}

var failuresCommand = &cli.Command{
	Name:  "failures",
	Usage: "List recorded keyword failures",
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:  "json",
			Usage: "Print the records as JSON",
		},
	},
	Action: runFailures,
}

func runFailures(c *cli.Context) error {
	failures, err := report.Read(failuresDir(c))
	if err != nil {
		return err
	}
	if c.Bool("json") {
		if failures == nil {
			failures = []report.Failure{}
		}
		data, err := json.MarshalIndent(failures, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(c.App.Writer, string(data))
		return nil
	}
	if len(failures) == 0 {
		dimColor.Fprintln(c.App.Writer, "no failures recorded")
		return nil
	}
	for _, f := range failures {
		printFailure(c.App.Writer, f)
	}
	return nil
}
