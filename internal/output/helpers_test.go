package output

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bgricker/taptree/internal/reconcile"
	"github.com/bgricker/taptree/internal/report"
	"github.com/bgricker/taptree/internal/subtree"
	"github.com/bgricker/taptree/internal/tap"
	"github.com/bgricker/taptree/internal/tree"
)

func mathRun(t *testing.T) (*tree.Tree, *report.Run) {
	t.Helper()
	f, err := os.Open(filepath.Join("..", "..", "testdata", "tap", "math.tap"))
	require.NoError(t, err)
	defer f.Close()

	b := subtree.NewBuilder()
	_, err = tap.Parse(f, b.Handle)
	require.NoError(t, err)

	tr := tree.New()
	now := time.Unix(0, 0)
	run := report.NewRun(func() time.Time {
		now = now.Add(1500 * time.Millisecond)
		return now
	})
	reconcile.New(tr, tree.NewBindings(), reconcile.Options{Root: t.TempDir()}).ReconcileRoot(b.Nodes(), run)
	run.TargetPassed("app")
	return tr, run
}
