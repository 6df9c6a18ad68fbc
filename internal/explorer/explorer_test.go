package explorer

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bgricker/taptree/internal/report"
	"github.com/bgricker/taptree/internal/runner"
	"github.com/bgricker/taptree/internal/tree"
)

type response struct {
	fixture string
	err     error
	before  func()
}

type fakeRunner struct {
	t         *testing.T
	responses map[runner.Invocation]response
	calls     []runner.Invocation
}

func (f *fakeRunner) Run(ctx context.Context, inv runner.Invocation, stdout io.Writer) error {
	f.calls = append(f.calls, inv)
	resp, ok := f.responses[inv]
	require.Truef(f.t, ok, "unexpected invocation %+v", inv)
	if resp.before != nil {
		resp.before()
	}
	if resp.fixture != "" {
		data, err := os.ReadFile(filepath.Join("..", "..", "testdata", "tap", resp.fixture))
		require.NoError(f.t, err)
		if _, err := stdout.Write(data); err != nil {
			return err
		}
	}
	if resp.err == nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return resp.err
}

func workspace(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "test"), 0o755))
	return root
}

func names(tr *tree.Tree, ref tree.Ref) []string {
	var out []string
	for _, c := range tr.Children(ref) {
		n, _ := tr.Node(c)
		out = append(out, n.Name)
	}
	return out
}

func TestDiscoverThenRun(t *testing.T) {
	root := workspace(t)
	fake := &fakeRunner{t: t, responses: map[runner.Invocation]response{
		{Dir: root}: {fixture: "math.tap", err: &runner.ExitError{Code: 1}},
	}}
	e := New(fake, Options{Newline: "\n"})

	require.NoError(t, e.Discover(context.Background(), []string{root}))

	rootRef, ok := e.RootRef(root)
	require.True(t, ok)
	fileRef, ok := e.Tree().Lookup(rootRef, "test", "math.test.js")
	require.True(t, ok)
	assert.Equal(t, []string{"adds", "subtracts"}, names(e.Tree(), fileRef))

	run := e.Run(context.Background(), nil)
	summary := run.End()
	assert.Equal(t, 2, summary.Total)
	assert.Equal(t, 1, summary.Passed)
	assert.Equal(t, 1, summary.Failed)
	assert.Zero(t, summary.FailedTargets, "non-zero exit is a normal completion")
	assert.Contains(t, run.Output(), "Wanted: 5\n")
	assert.Len(t, fake.calls, 2)
}

func TestFailingClosingPointFailsRun(t *testing.T) {
	root := workspace(t)
	fake := &fakeRunner{t: t, responses: map[runner.Invocation]response{
		{Dir: root}: {fixture: "closing.tap", err: &runner.ExitError{Code: 1}},
	}}
	e := New(fake, Options{Newline: "\n"})

	summary := e.RunWorkspaces(context.Background(), []string{root}).End()
	assert.Equal(t, 1, summary.Passed)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 1, summary.ExitCode)
}

func TestLaunchFailureDoesNotStopNextTarget(t *testing.T) {
	a, b := workspace(t), workspace(t)
	launch := &runner.LaunchError{Command: "npx", Dir: a, Err: errors.New("not found")}
	fake := &fakeRunner{t: t, responses: map[runner.Invocation]response{
		{Dir: a}: {err: launch},
		{Dir: b}: {fixture: "nested.tap"},
	}}
	e := New(fake, Options{})

	err := e.Discover(context.Background(), []string{a, b})
	require.ErrorIs(t, err, runner.ErrLaunch)

	_, ok := e.RootRef(a)
	assert.False(t, ok, "no nodes for a target that failed to launch")
	bRef, ok := e.RootRef(b)
	require.True(t, ok)
	_, ok = e.Tree().Lookup(bRef, "test", "util.test.js")
	assert.True(t, ok)
	assert.Len(t, e.Tree().Roots(), 1)

	run := e.Run(context.Background(), nil)
	targets := run.Targets()
	require.Len(t, targets, 2)
	assert.NotEmpty(t, targets[0].Error)
	assert.Empty(t, targets[1].Error)

	summary := run.End()
	assert.Equal(t, 1, summary.FailedTargets)
	assert.Equal(t, 4, summary.Passed)
}

func TestRunFileRefreshesItsSubtree(t *testing.T) {
	root := workspace(t)
	file := filepath.Join(root, "test", "math.test.js")
	fake := &fakeRunner{t: t, responses: map[runner.Invocation]response{
		{Dir: root}:             {fixture: "math.tap"},
		{Dir: root, File: file}: {fixture: "math_fixed.tap"},
	}}
	e := New(fake, Options{})
	require.NoError(t, e.Discover(context.Background(), []string{root}))

	rootRef, _ := e.RootRef(root)
	fileRef, ok := e.Tree().Lookup(rootRef, "test", "math.test.js")
	require.True(t, ok)

	run := e.Run(context.Background(), []tree.Ref{fileRef})
	assert.Equal(t, []string{"adds"}, names(e.Tree(), fileRef))

	results := run.Results()
	require.Len(t, results, 1)
	assert.Equal(t, report.StatusPassed, results[0].Status)
	require.Len(t, run.Targets(), 1)
	assert.Equal(t, filepath.Join("test", "math.test.js"), run.Targets()[0].Name)
}

func TestRunDirectoryRunsWorkspaceWithoutClearing(t *testing.T) {
	root := workspace(t)
	fake := &fakeRunner{t: t, responses: map[runner.Invocation]response{
		{Dir: root}: {fixture: "nested.tap"},
	}}
	e := New(fake, Options{})
	require.NoError(t, e.Discover(context.Background(), []string{root}))

	rootRef, _ := e.RootRef(root)
	dir, ok := e.Tree().Lookup(rootRef, "test")
	require.True(t, ok)
	before := e.Tree().Len()

	run := e.Run(context.Background(), []tree.Ref{dir})
	assert.Equal(t, before, e.Tree().Len())
	assert.Equal(t, 4, run.End().Passed)
}

func TestRunReportsUnknownAndUnrunnableRefs(t *testing.T) {
	root := workspace(t)
	file := filepath.Join(root, "test", "math.test.js")
	fake := &fakeRunner{t: t, responses: map[runner.Invocation]response{
		{Dir: root}:             {fixture: "math.tap"},
		{Dir: root, File: file}: {fixture: "math.tap"},
	}}
	e := New(fake, Options{})
	require.NoError(t, e.Discover(context.Background(), []string{root}))

	rootRef, _ := e.RootRef(root)
	fileRef, _ := e.Tree().Lookup(rootRef, "test", "math.test.js")
	adds, ok := e.Tree().Lookup(fileRef, "adds")
	require.True(t, ok)

	run := e.Run(context.Background(), []tree.Ref{tree.Ref(9999), adds, fileRef})

	missing, ok := run.Result(tree.Ref(9999))
	require.True(t, ok)
	assert.Equal(t, report.StatusFailed, missing.Status)
	assert.Contains(t, missing.Message, ErrNotDiscovered.Error())

	targets := run.Targets()
	require.Len(t, targets, 3)
	assert.Contains(t, targets[0].Error, ErrNotDiscovered.Error())
	assert.Contains(t, targets[1].Error, ErrNotRunnable.Error())
	assert.Empty(t, targets[2].Error, "later targets still run")
	assert.Equal(t, 2, len(fake.calls))
}

func TestCancelStopsLoopAndSkipsReconcile(t *testing.T) {
	a, b := workspace(t), workspace(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fake := &fakeRunner{t: t, responses: map[runner.Invocation]response{
		{Dir: a}: {fixture: "math.tap", before: cancel},
		{Dir: b}: {fixture: "math.tap"},
	}}
	e := New(fake, Options{})

	err := e.Discover(ctx, []string{a, b})
	require.ErrorIs(t, err, context.Canceled)
	assert.Len(t, fake.calls, 1)
	assert.Zero(t, e.Tree().Len())

	run := e.Run(ctx, nil)
	require.Len(t, run.Targets(), 1)
	assert.Equal(t, context.Canceled.Error(), run.Targets()[0].Error)
}

func TestRefreshAndForget(t *testing.T) {
	root := workspace(t)
	file := filepath.Join(root, "test", "math.test.js")
	fake := &fakeRunner{t: t, responses: map[runner.Invocation]response{
		{Dir: root}:             {fixture: "math.tap"},
		{Dir: root, File: file}: {fixture: "math_fixed.tap"},
	}}
	e := New(fake, Options{})
	require.NoError(t, e.Discover(context.Background(), []string{root}))

	require.NoError(t, e.Refresh(context.Background(), root, filepath.Join("test", "math.test.js")))
	rootRef, _ := e.RootRef(root)
	fileRef, ok := e.Tree().Lookup(rootRef, "test", "math.test.js")
	require.True(t, ok)
	assert.Equal(t, []string{"adds"}, names(e.Tree(), fileRef))

	assert.Equal(t, 2, e.Forget(file))
	_, ok = e.Tree().Lookup(rootRef, "test", "math.test.js")
	assert.False(t, ok)
	_, ok = e.Tree().Lookup(rootRef, "test")
	assert.True(t, ok, "directories are left to the next discovery")
	assert.Zero(t, e.Forget(file))
}

func TestStreamErrorFailsTarget(t *testing.T) {
	root := workspace(t)
	fake := &fakeRunner{t: t, responses: map[runner.Invocation]response{
		{Dir: root}: {err: errors.New("stream output: broken pipe")},
	}}
	e := New(fake, Options{})

	err := e.Discover(context.Background(), []string{root})
	require.Error(t, err)
	assert.Zero(t, e.Tree().Len())
}
