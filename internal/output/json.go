package output

import (
	"encoding/json"
	"io"

	"github.com/bgricker/taptree/internal/report"
	"github.com/bgricker/taptree/internal/tree"
)

// JSONRenderer emits structured tree and run data.
type JSONRenderer struct {
	out io.Writer
}

// NewJSON creates a JSON renderer writing to out.
func NewJSON(out io.Writer) *JSONRenderer {
	return &JSONRenderer{out: out}
}

// Node is the JSON form of a persistent tree node.
type Node struct {
	ID       string        `json:"id"`
	Name     string        `json:"name"`
	Kind     string        `json:"kind"`
	Locator  string        `json:"locator,omitempty"`
	Runnable bool          `json:"runnable"`
	Status   report.Status `json:"status,omitempty"`
	Message  string        `json:"message,omitempty"`
	Children []Node        `json:"children,omitempty"`
}

// Report captures JSON output schema.
type Report struct {
	Tree     []Node                `json:"tree"`
	Results  []report.NodeResult   `json:"results,omitempty"`
	Targets  []report.TargetResult `json:"targets,omitempty"`
	Summary  *report.Summary       `json:"summary,omitempty"`
	Output   string                `json:"output,omitempty"`
	Warnings []string              `json:"warnings,omitempty"`
}

// NewReport assembles a Report from the tree and, when non-nil, a finished run.
func NewReport(t *tree.Tree, run *report.Run, warnings []string) Report {
	rep := Report{Tree: Nodes(t, run), Warnings: warnings}
	if run != nil {
		summary := run.End()
		rep.Results = run.Results()
		rep.Targets = run.Targets()
		rep.Summary = &summary
		rep.Output = run.Output()
	}
	return rep
}

// Nodes converts the tree into nested JSON nodes, annotated with outcomes
// from run when it is non-nil.
func Nodes(t *tree.Tree, run *report.Run) []Node {
	nodes := make([]Node, 0, len(t.Roots()))
	for _, ref := range t.Roots() {
		nodes = append(nodes, convert(t, ref, run))
	}
	return nodes
}

func convert(t *tree.Tree, ref tree.Ref, run *report.Run) Node {
	n, _ := t.Node(ref)
	out := Node{
		ID:       n.ID,
		Name:     n.Name,
		Kind:     n.Kind.String(),
		Locator:  n.Locator,
		Runnable: n.Runnable,
	}
	if run != nil {
		if res, ok := run.Result(ref); ok {
			out.Status = res.Status
			out.Message = res.Message
		}
	}
	for _, child := range t.Children(ref) {
		out.Children = append(out.Children, convert(t, child, run))
	}
	return out
}

// Render encodes the report as JSON.
func (j *JSONRenderer) Render(report Report) error {
	enc := json.NewEncoder(j.out)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}
