package explorer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/ethereum/go-ethereum/log"

	"github.com/bgricker/taptree/internal/discovery"
	"github.com/bgricker/taptree/internal/logging"
	"github.com/bgricker/taptree/internal/metrics"
	"github.com/bgricker/taptree/internal/reconcile"
	"github.com/bgricker/taptree/internal/report"
	"github.com/bgricker/taptree/internal/runner"
	"github.com/bgricker/taptree/internal/subtree"
	"github.com/bgricker/taptree/internal/tap"
	"github.com/bgricker/taptree/internal/tree"
)

var (
	// ErrNotDiscovered is reported for nodes missing from the side-table.
	ErrNotDiscovered = errors.New("node was never discovered")
	// ErrNotRunnable is reported for nodes that cannot be run on their own.
	ErrNotRunnable = errors.New("node is not runnable")
)

// ProcessRunner spawns the test command for one invocation.
type ProcessRunner interface {
	Run(ctx context.Context, inv runner.Invocation, stdout io.Writer) error
}

// Options configure an Explorer.
type Options struct {
	Suffix  string
	Newline string
	Logger  log.Logger
	Now     func() time.Time
}

// Explorer owns the persistent tree and its side-table. Targets are processed
// one at a time; an Explorer must not be used from several goroutines.
type Explorer struct {
	runner   ProcessRunner
	tree     *tree.Tree
	bindings *tree.Bindings
	opts     Options
	log      log.Logger

	roots   []string
	rootRef map[string]tree.Ref
}

// New returns an Explorer with an empty tree.
func New(r ProcessRunner, opts Options) *Explorer {
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Explorer{
		runner:   r,
		tree:     tree.New(),
		bindings: tree.NewBindings(),
		opts:     opts,
		log:      opts.Logger,
		rootRef:  make(map[string]tree.Ref),
	}
}

// Tree returns the persistent tree.
func (e *Explorer) Tree() *tree.Tree { return e.tree }

// Bindings returns the node side-table.
func (e *Explorer) Bindings() *tree.Bindings { return e.bindings }

// Roots returns the registered workspace roots in order.
func (e *Explorer) Roots() []string { return append([]string(nil), e.roots...) }

// RootRef returns the tree node of a discovered workspace root.
func (e *Explorer) RootRef(root string) (tree.Ref, bool) {
	ref, ok := e.rootRef[filepath.Clean(root)]
	return ref, ok
}

type target struct {
	name    string
	root    string
	file    string
	refresh string
}

func (e *Explorer) register(root string) string {
	root = filepath.Clean(root)
	for _, r := range e.roots {
		if r == root {
			return root
		}
	}
	e.roots = append(e.roots, root)
	return root
}

// Discover runs every root once without recording outcomes and rebuilds each
// root's subtree. A failing root does not stop the others; their errors are
// joined. Cancellation stops the loop.
func (e *Explorer) Discover(ctx context.Context, roots []string) error {
	var errs []error
	for _, root := range roots {
		root = e.register(root)
		err := e.pass(ctx, "discover", target{name: root, root: root, refresh: root}, nil)
		if ctx.Err() != nil {
			return fmt.Errorf("discover %s: %w", root, ctx.Err())
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("discover %s: %w", root, err))
		}
	}
	return errors.Join(errs...)
}

// Refresh re-runs one file of root without recording outcomes and replaces
// that file's subtree.
func (e *Explorer) Refresh(ctx context.Context, root, path string) error {
	root = e.register(root)
	if !filepath.IsAbs(path) {
		path = filepath.Join(root, path)
	}
	path = filepath.Clean(path)
	t := target{name: discovery.Rel(root, path), root: root, file: path, refresh: path}
	if err := e.pass(ctx, "refresh", t, nil); err != nil {
		return fmt.Errorf("refresh %s: %w", t.name, err)
	}
	return nil
}

// Forget removes the nodes located at path. Deleted files are handled here
// rather than by reconciliation.
func (e *Explorer) Forget(path string) int {
	loc, err := tree.FileLocator(filepath.Clean(path), "")
	if err != nil {
		e.log.Warn("Cannot forget path", "path", path, "err", err)
		return 0
	}
	if _, ok := e.tree.FindLocator(loc); !ok {
		e.log.Debug("Deleted path is not in the tree", "path", path)
		return 0
	}
	n := e.tree.RemoveLocator(loc)
	e.log.Info("Removed deleted file from tree", "path", path, "nodes", n)
	return n
}

// RunWorkspaces registers roots and runs all of them.
func (e *Explorer) RunWorkspaces(ctx context.Context, roots []string) *report.Run {
	for _, root := range roots {
		e.register(root)
	}
	return e.Run(ctx, nil)
}

// Run executes refs, or every registered root when refs is empty, recording
// outcomes on a new run. Refs without a binding or that are not runnable are
// reported as failed and skipped.
func (e *Explorer) Run(ctx context.Context, refs []tree.Ref) *report.Run {
	run := report.NewRun(e.opts.Now)
	logger := e.log.New("run", run.ID)

	var targets []target
	if len(refs) == 0 {
		for _, root := range e.roots {
			targets = append(targets, target{name: root, root: root, refresh: root})
		}
	}
	for _, ref := range refs {
		t, err := e.targetFor(ref)
		if err != nil {
			logger.Warn("Skipping target", "ref", ref, "err", err)
			node, ok := e.tree.Node(ref)
			if !ok {
				node = tree.Node{Ref: ref, ID: fmt.Sprint(ref), Name: fmt.Sprintf("node %d", ref), Kind: tree.File}
			}
			run.Failed(node, err.Error())
			run.TargetFailed(node.Name, err)
			continue
		}
		targets = append(targets, t)
	}

	for _, t := range targets {
		if ctx.Err() != nil {
			run.TargetFailed(t.name, ctx.Err())
			break
		}
		err := e.pass(ctx, "run", t, run)
		if ctx.Err() != nil {
			run.TargetFailed(t.name, ctx.Err())
			logger.Info("Run canceled", "target", t.name)
			break
		}
		if err != nil {
			run.TargetFailed(t.name, err)
			continue
		}
		run.TargetPassed(t.name)
	}
	return run
}

func (e *Explorer) targetFor(ref tree.Ref) (target, error) {
	binding, ok := e.bindings.Get(ref)
	if !ok {
		return target{}, ErrNotDiscovered
	}
	node, ok := e.tree.Node(ref)
	if !ok {
		return target{}, ErrNotDiscovered
	}
	if !node.Runnable {
		return target{}, fmt.Errorf("%w: %s %q", ErrNotRunnable, node.Kind, node.Name)
	}

	t := target{name: node.Name, root: binding.Cwd}
	if binding.Locator == "" {
		return t, nil
	}
	path, err := tree.LocatorPath(binding.Locator)
	if err != nil {
		e.log.Warn("Running whole workspace for unreadable locator", "locator", binding.Locator, "err", err)
		return t, nil
	}
	t.refresh = path
	if node.Kind == tree.File {
		t.file = path
		t.name = discovery.Rel(binding.Cwd, path)
	}
	return t, nil
}

// pass runs one target and reconciles its output. A launch failure or
// cancellation leaves the tree untouched; a non-zero exit is normal.
func (e *Explorer) pass(ctx context.Context, mode string, t target, run *report.Run) error {
	logger := e.log.New("target", t.name)
	start := e.opts.Now()

	builder := subtree.NewBuilder()
	parser := tap.NewParser(builder.Handle)

	logger.Info("Starting target", "mode", mode, "cwd", t.root, "file", t.file)
	err := e.runner.Run(ctx, runner.Invocation{Dir: t.root, File: t.file}, parser)
	closeErr := parser.Close()

	if ctx.Err() != nil {
		metrics.RecordTarget(mode, ctx.Err(), e.opts.Now().Sub(start))
		return ctx.Err()
	}

	var exitErr *runner.ExitError
	switch {
	case err == nil:
	case errors.As(err, &exitErr):
		logger.Debug("Test command exited non-zero", "code", exitErr.Code, "stderr", exitErr.Stderr)
	default:
		if errors.Is(err, runner.ErrLaunch) {
			logger.Warn("Test command failed to launch", "err", err)
		} else {
			logger.Warn("Test command failed", "err", err)
		}
		metrics.RecordTarget(mode, err, e.opts.Now().Sub(start))
		return err
	}

	if closeErr != nil {
		metrics.RecordTarget(mode, closeErr, e.opts.Now().Sub(start))
		return fmt.Errorf("parse output: %w", closeErr)
	}
	if res := parser.Result(); res.BailOut {
		logger.Warn("Test run bailed out", "reason", res.Reason)
	}

	var rec reconcile.Recorder
	if run != nil {
		rec = run
	}
	r := reconcile.New(e.tree, e.bindings, reconcile.Options{
		Root:        t.root,
		Suffix:      e.opts.Suffix,
		RefreshPath: t.refresh,
		Newline:     e.opts.Newline,
		Logger:      logger,
	})
	ref := r.ReconcileRoot(builder.Nodes(), rec)
	e.rootRef[t.root] = ref

	metrics.RecordTarget(mode, nil, e.opts.Now().Sub(start))
	logger.Info("Finished target", "mode", mode, "nodes", len(builder.Nodes()), "elapsed", e.opts.Now().Sub(start))
	return nil
}
