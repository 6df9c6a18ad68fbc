package output

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/list"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/bgricker/taptree/internal/report"
	"github.com/bgricker/taptree/internal/tree"
)

// PrettyRenderer renders the test tree and run results for a terminal.
type PrettyRenderer struct {
	out   io.Writer
	color bool
}

// NewPretty creates a PrettyRenderer writing to the provided writer.
func NewPretty(out io.Writer) *PrettyRenderer {
	return &PrettyRenderer{out: out}
}

// WithColor enables colored status glyphs and summary styles.
func (p *PrettyRenderer) WithColor(color bool) *PrettyRenderer {
	p.color = color
	return p
}

// RenderTree draws the persistent tree. When run is non-nil, nodes with a
// reported outcome carry its status glyph.
func (p *PrettyRenderer) RenderTree(t *tree.Tree, run *report.Run) error {
	if len(t.Roots()) == 0 {
		_, err := fmt.Fprintln(p.out, "No tests discovered")
		return err
	}

	l := list.NewWriter()
	l.SetStyle(list.StyleConnectedRounded)
	level := 0
	t.Walk(func(n tree.Node, depth int) bool {
		for level < depth {
			l.Indent()
			level++
		}
		for level > depth {
			l.UnIndent()
			level--
		}
		l.AppendItem(p.label(n, run))
		return true
	})
	_, err := fmt.Fprintln(p.out, l.Render())
	return err
}

func (p *PrettyRenderer) label(n tree.Node, run *report.Run) string {
	name := n.Name
	switch n.Kind {
	case tree.Directory:
		name += "/"
	case tree.Group:
		name = fmt.Sprintf("%s (#%s)", name, n.ID)
	}
	if run == nil {
		return name
	}
	res, ok := run.Result(n.Ref)
	if !ok {
		return name
	}
	return p.glyph(res.Status) + " " + name
}

// RenderResults lists failures, optionally the raw run output, then a table
// of targets with the summary in its footer.
func (p *PrettyRenderer) RenderResults(run *report.Run, summary report.Summary, verbose bool) error {
	var failures []report.NodeResult
	for _, res := range run.Results() {
		if res.Status == report.StatusFailed {
			failures = append(failures, res)
		}
	}
	var b strings.Builder
	if len(failures) > 0 {
		b.WriteString("Failures:\n")
		for _, res := range failures {
			fmt.Fprintf(&b, "  %s %s\n", p.glyph(res.Status), res.Name)
			if msg := indent(res.Message, "      "); msg != "" {
				b.WriteString(msg + "\n")
			}
		}
	}
	if verbose {
		if out := strings.TrimRight(run.Output(), "\r\n"); out != "" {
			b.WriteString("Output:\n")
			b.WriteString(indent(out, "  ") + "\n")
		}
	}

	t := table.NewWriter()
	t.AppendHeader(table.Row{"TARGET", "STATUS", "ERROR"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "ERROR", WidthMax: 80, WidthMaxEnforcer: text.WrapSoft},
	})
	for _, target := range run.Targets() {
		status := "ok"
		if target.Error != "" {
			status = "failed"
		}
		t.AppendRow(table.Row{target.Name, status, target.Error})
	}
	t.AppendFooter(table.Row{
		fmt.Sprintf("%d passed, %d failed", summary.Passed, summary.Failed),
		fmt.Sprintf("%d/%d targets", summary.Targets-summary.FailedTargets, summary.Targets),
		formatDuration(summary.Duration),
	})
	switch {
	case !p.color:
		t.SetStyle(table.StyleLight)
	case summary.ExitCode != 0:
		t.SetStyle(table.StyleColoredBlackOnRedWhite)
	default:
		t.SetStyle(table.StyleColoredBlackOnGreenWhite)
	}
	t.Style().Format.Footer = text.FormatDefault
	b.WriteString(t.Render() + "\n")

	_, err := io.WriteString(p.out, b.String())
	return err
}

func (p *PrettyRenderer) glyph(status report.Status) string {
	g := statusGlyph(status)
	if !p.color {
		return g
	}
	switch status {
	case report.StatusPassed:
		return text.FgGreen.Sprint(g)
	case report.StatusFailed:
		return text.FgRed.Sprint(g)
	default:
		return g
	}
}

func statusGlyph(status report.Status) string {
	switch status {
	case report.StatusPassed:
		return "✓"
	case report.StatusFailed:
		return "✗"
	default:
		return "?"
	}
}

func indent(s, pad string) string {
	s = strings.TrimSpace(strings.ReplaceAll(s, "\r\n", "\n"))
	if s == "" {
		return ""
	}
	lines := strings.Split(s, "\n")
	for i := range lines {
		lines[i] = pad + lines[i]
	}
	return strings.Join(lines, "\n")
}

func formatDuration(d time.Duration) string {
	if d <= 0 {
		return "0s"
	}
	if d < time.Second {
		return d.Round(time.Millisecond).String()
	}
	return d.Truncate(time.Millisecond).String()
}
