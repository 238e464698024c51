package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/devicelab-dev/uiscope/pkg/core"
	"github.com/devicelab-dev/uiscope/pkg/locator"
	"github.com/devicelab-dev/uiscope/pkg/report"
	"github.com/devicelab-dev/uiscope/pkg/scope"
	"github.com/devicelab-dev/uiscope/pkg/table"
)

var (
	indexColor = color.New(color.FgCyan)
	tagColor   = color.New(color.FgGreen)
	dimColor   = color.New(color.Faint)
	passColor  = color.New(color.FgGreen, color.Bold)
	failColor  = color.New(color.FgRed, color.Bold)
	warnColor  = color.New(color.FgYellow)
)

// printElement writes one line describing el: index, tag, backend ID
// and the requested attributes.
func printElement(ctx context.Context, w io.Writer, i int, el core.Element, attrs []string) {
	indexColor.Fprintf(w, "[%d] ", i)
	tag, err := el.TagName(ctx)
	if err != nil {
		tag = "?"
	}
	tagColor.Fprintf(w, "%s", tag)
	dimColor.Fprintf(w, " %s", el.ID())
	if b, err := el.Rect(ctx); err == nil && b.Width > 0 && b.Height > 0 {
		x, y := b.Center()
		dimColor.Fprintf(w, " @(%d,%d)", x, y)
	}
	for _, name := range attrs {
		v, ok, err := el.Attribute(ctx, name)
		switch {
		case err != nil:
			fmt.Fprintf(w, " %s=", name)
			failColor.Fprintf(w, "<%v>", err)
		case !ok:
			fmt.Fprintf(w, " %s=", name)
			dimColor.Fprint(w, "<none>")
		default:
			fmt.Fprintf(w, " %s=%q", name, v)
		}
	}
	fmt.Fprintln(w)
}

// printResult formats a keyword return value.
func printResult(ctx context.Context, w io.Writer, v interface{}) {
	switch r := v.(type) {
	case nil:
		dimColor.Fprintln(w, "None")
	case bool:
		if r {
			passColor.Fprintln(w, "True")
		} else {
			failColor.Fprintln(w, "False")
		}
	case core.Element:
		printElement(ctx, w, 0, r, nil)
	case []core.Element:
		if len(r) == 0 {
			dimColor.Fprintln(w, "(no elements)")
		}
		for i, el := range r {
			printElement(ctx, w, i, el, nil)
		}
	case []string:
		for i, s := range r {
			indexColor.Fprintf(w, "[%d] ", i)
			fmt.Fprintf(w, "%q\n", s)
		}
	case table.Data:
		printTable(w, r)
	case [][]string:
		printTable(w, table.Data(r))
	case locator.Locator:
		fmt.Fprintln(w, r.String())
	case scope.Frame:
		printFrame(ctx, w, 0, r)
	case scope.Snapshot:
		frames := r.Frames()
		if len(frames) == 0 {
			dimColor.Fprintln(w, "(empty context)")
		}
		for i, f := range frames {
			printFrame(ctx, w, i, f)
		}
	default:
		fmt.Fprintf(w, "%v\n", r)
	}
}

func printFrame(ctx context.Context, w io.Writer, i int, f scope.Frame) {
	if f.IsZero() {
		dimColor.Fprintln(w, "(no context)")
		return
	}
	indexColor.Fprintf(w, "[%d] ", i)
	fmt.Fprint(w, f.Locator.String())
	if len(f.Metadata) > 0 {
		dimColor.Fprintf(w, " %v", f.Metadata)
	}
	fmt.Fprintln(w)
}

// printTable writes rows as tab-separated text, the header row bold.
func printTable(w io.Writer, d table.Data) {
	if len(d) == 0 {
		dimColor.Fprintln(w, "(empty table)")
		return
	}
	header := color.New(color.Bold)
	for i, row := range d {
		line := strings.Join(row, "\t")
		if i == 0 {
			header.Fprintln(w, line)
			continue
		}
		fmt.Fprintln(w, line)
	}
}

func printFailure(w io.Writer, f report.Failure) {
	dimColor.Fprintf(w, "%s ", f.Time.Format("2006-01-02 15:04:05"))
	failColor.Fprintf(w, "%s", f.Keyword)
	warnColor.Fprintf(w, " [%s]", f.Category)
	fmt.Fprintf(w, " %s\n", f.Message)
	for _, a := range f.Attachments {
		dimColor.Fprintf(w, "    %s: %s\n", a.Name, a.Source)
	}
	for _, p := range f.Problems {
		warnColor.Fprintf(w, "    ! %s\n", p)
	}
}
