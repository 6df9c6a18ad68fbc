package reconcile

import (
	"strings"

	"github.com/bgricker/taptree/internal/subtree"
	"github.com/bgricker/taptree/internal/tree"
)

func (r *Reconciler) project(ref tree.Ref, outcome subtree.Outcome, rec Recorder) {
	node, ok := r.tree.Node(ref)
	if !ok {
		return
	}
	if outcome.Passed() {
		rec.Passed(node)
		return
	}

	f := outcome.Failure
	rec.AppendOutput(r.normalize(f.Stack))
	rec.AppendOutput(r.normalize(f.Source))
	rec.AppendOutput("Comparison: " + f.Compare + r.opts.Newline)
	rec.AppendOutput("Found: " + f.Found + r.opts.Newline)
	rec.AppendOutput("Wanted: " + f.Wanted + r.opts.Newline + r.opts.Newline + r.opts.Newline)
	rec.Failed(node, f.Source)
}

func (r *Reconciler) normalize(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	if r.opts.Newline == "\n" {
		return text
	}
	return strings.ReplaceAll(text, "\n", r.opts.Newline)
}
