package reconcile

import (
	"path/filepath"

	"github.com/ethereum/go-ethereum/log"

	"github.com/bgricker/taptree/internal/discovery"
	"github.com/bgricker/taptree/internal/logging"
	"github.com/bgricker/taptree/internal/metrics"
	"github.com/bgricker/taptree/internal/subtree"
	"github.com/bgricker/taptree/internal/tree"
)

// DefaultSuffix marks test names that are file paths.
const DefaultSuffix = ".js"

// DefaultNewline is the line ending used for run output.
const DefaultNewline = "\r\n"

// Recorder receives outcomes for one run.
type Recorder interface {
	Passed(n tree.Node)
	Failed(n tree.Node, message string)
	AppendOutput(text string)
}

// Options configure one reconciliation pass.
type Options struct {
	// Root is the absolute workspace root. File names are resolved against it.
	Root string
	// Cwd is the working directory recorded in bindings. Defaults to Root.
	Cwd string
	// Suffix marks names to decompose into directory chains.
	Suffix string
	// RefreshPath, when set, clears the children of the node whose locator
	// points at this path before it is repopulated.
	RefreshPath string
	// Newline replaces line endings in run output.
	Newline string
	Logger  log.Logger
}

// Reconciler performs get-or-create merges into a tree. It is used for a
// single pass and is not safe for concurrent use.
type Reconciler struct {
	tree     *tree.Tree
	bindings *tree.Bindings
	opts     Options
	log      log.Logger
}

// New returns a Reconciler writing into t and recording bindings in b.
func New(t *tree.Tree, b *tree.Bindings, opts Options) *Reconciler {
	if opts.Cwd == "" {
		opts.Cwd = opts.Root
	}
	if opts.Suffix == "" {
		opts.Suffix = DefaultSuffix
	}
	if opts.Newline == "" {
		opts.Newline = DefaultNewline
	}
	if opts.RefreshPath != "" {
		opts.RefreshPath = filepath.Clean(opts.RefreshPath)
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	return &Reconciler{tree: t, bindings: b, opts: opts, log: logger}
}

// ReconcileRoot resolves the workspace root node and merges nodes beneath it.
// A nil rec skips projection; the tree is still built.
func (r *Reconciler) ReconcileRoot(nodes []subtree.Node, rec Recorder) tree.Ref {
	spec := tree.Spec{
		Name: filepath.Base(r.opts.Root),
		Kind: tree.Directory,
	}
	loc, err := tree.FileLocator(r.opts.Root, "")
	if err != nil {
		r.log.Warn("Workspace root has no locator", "root", r.opts.Root, "err", err)
		spec.ID = r.opts.Root
	} else {
		spec.ID = loc
		spec.Locator = loc
	}

	root := r.resolve(tree.NoRef, spec)
	for _, n := range nodes {
		r.Reconcile(root, n, rec)
	}
	return root
}

// Reconcile merges one ephemeral node, and its children, under parent.
func (r *Reconciler) Reconcile(parent tree.Ref, n subtree.Node, rec Recorder) tree.Ref {
	spec := tree.Spec{ID: n.NodeID(), Name: n.NodeName(), Kind: tree.Group}
	leaf, isLeaf := n.(*subtree.Leaf)
	if isLeaf {
		spec.Kind = tree.Assertion
	}

	if segments, file, ok := discovery.Decompose(spec.Name, r.opts.Suffix); ok {
		for _, seg := range segments {
			parent = r.resolve(parent, tree.Spec{ID: seg, Name: seg, Kind: tree.Directory})
		}
		loc, err := tree.FileLocator(r.opts.Root, spec.Name)
		if err != nil {
			r.log.Warn("Degrading node without locator", "name", spec.Name, "err", err)
			spec.ID = spec.Name
		} else {
			spec.ID = loc
			spec.Locator = loc
		}
		spec.Name = file
		spec.Kind = tree.File
	}

	ref := r.resolve(parent, spec)

	if isLeaf && rec != nil {
		r.project(ref, leaf.Outcome, rec)
	}
	if g, ok := n.(*subtree.Group); ok {
		for _, child := range g.Children {
			r.Reconcile(ref, child, rec)
		}
		if g.Outcome != nil && rec != nil {
			r.project(ref, *g.Outcome, rec)
		}
	}
	return ref
}

func (r *Reconciler) resolve(parent tree.Ref, spec tree.Spec) tree.Ref {
	ref, created := r.tree.GetOrCreate(parent, spec)
	if created {
		r.bindings.Set(ref, tree.Binding{Locator: spec.Locator, Cwd: r.opts.Cwd})
		metrics.RecordNodeCreated(spec.Kind.String())
		r.log.Trace("Created node", "id", spec.ID, "kind", spec.Kind)
	}

	if r.opts.RefreshPath == "" || spec.Locator == "" {
		return ref
	}
	path, err := tree.LocatorPath(spec.Locator)
	if err != nil {
		r.log.Warn("Ignoring unreadable locator", "locator", spec.Locator, "err", err)
		return ref
	}
	if filepath.Clean(path) == r.opts.RefreshPath {
		if n := r.tree.ClearChildren(ref); n > 0 {
			r.log.Debug("Cleared stale nodes", "path", path, "removed", n)
		}
	}
	return ref
}
