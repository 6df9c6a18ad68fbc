package subtree

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bgricker/taptree/internal/tap"
)

func build(t *testing.T, input string) *Builder {
	t.Helper()
	b := NewBuilder()
	_, err := tap.Parse(strings.NewReader(input), b.Handle)
	require.NoError(t, err)
	require.True(t, b.Done())
	return b
}

func TestCollectorKeepsArrivalOrder(t *testing.T) {
	var c Collector
	c.OnAssertion(tap.Assert{ID: 1, OK: true, Name: "first"})
	c.OnChildComplete(&Group{ID: "2", Name: "group"})
	c.OnAssertion(tap.Assert{ID: 3, OK: false, Name: "third"})

	nodes := c.Nodes()
	require.Len(t, nodes, 3)
	assert.Equal(t, "first", nodes[0].NodeName())
	assert.Equal(t, "group", nodes[1].NodeName())
	assert.Equal(t, "third", nodes[2].NodeName())
	assert.False(t, nodes[2].(*Leaf).Outcome.Passed())
}

func TestCollectorDropsTimeOnlyAssertions(t *testing.T) {
	var c Collector
	c.OnAssertion(tap.Assert{ID: 1, OK: true, Name: "file.test.js", Time: "12ms"})
	c.OnAssertion(tap.Assert{ID: 2, OK: false, Name: "other.test.js", Time: "3ms"})

	assert.Empty(t, c.Nodes())
}

func TestCollectorClosingPointSetsGroupOutcome(t *testing.T) {
	var c Collector
	c.OnChildComplete(&Group{ID: "1", Name: "inner"})
	c.OnAssertion(tap.Assert{ID: 1, OK: false, Name: "inner", Diag: &tap.Diagnostics{Source: "plan mismatch"}})
	c.OnAssertion(tap.Assert{ID: 2, OK: true, Name: "after"})

	nodes := c.Nodes()
	require.Len(t, nodes, 2)
	group, ok := nodes[0].(*Group)
	require.True(t, ok)
	require.NotNil(t, group.Outcome)
	require.NotNil(t, group.Outcome.Failure)
	assert.Equal(t, "plan mismatch", group.Outcome.Failure.Source)
	assert.Equal(t, "after", nodes[1].NodeName())
}

func TestCollectorTimedClosingPointLeavesGroupOpen(t *testing.T) {
	var c Collector
	c.OnChildComplete(&Group{ID: "1", Name: "test/a.test.js"})
	c.OnAssertion(tap.Assert{ID: 1, OK: false, Name: "test/a.test.js", Time: "12ms"})

	nodes := c.Nodes()
	require.Len(t, nodes, 1)
	assert.Nil(t, nodes[0].(*Group).Outcome)
}

func TestOutcome(t *testing.T) {
	tests := []struct {
		name   string
		assert tap.Assert
		passed bool
	}{
		{name: "ok", assert: tap.Assert{OK: true}, passed: true},
		{name: "not ok", assert: tap.Assert{}, passed: false},
		{name: "todo", assert: tap.Assert{Todo: true}, passed: true},
		{name: "skip", assert: tap.Assert{Skip: true}, passed: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.passed, outcome(tc.assert).Passed())
		})
	}
}

func TestOutcomeWithoutDiagnostics(t *testing.T) {
	out := outcome(tap.Assert{Name: "bare"})
	require.NotNil(t, out.Failure)
	assert.Equal(t, Failure{}, *out.Failure)
}

func TestBuilderMathFixture(t *testing.T) {
	data, err := os.ReadFile(filepath.Join("..", "..", "testdata", "tap", "math.tap"))
	require.NoError(t, err)

	b := build(t, string(data))
	nodes := b.Nodes()
	require.Len(t, nodes, 1)

	file, ok := nodes[0].(*Group)
	require.True(t, ok)
	assert.Equal(t, "1", file.ID)
	assert.Equal(t, "test/math.test.js", file.Name)
	require.Len(t, file.Children, 2)

	adds := file.Children[0].(*Leaf)
	assert.Equal(t, "adds", adds.Name)
	assert.True(t, adds.Outcome.Passed())

	subtracts := file.Children[1].(*Leaf)
	assert.Equal(t, "subtracts", subtracts.Name)
	require.NotNil(t, subtracts.Outcome.Failure)
	assert.Equal(t, "4", subtracts.Outcome.Failure.Found)
	assert.Equal(t, "5", subtracts.Outcome.Failure.Wanted)
	assert.False(t, b.Result().OK)
}

func TestBuilderNestedGroups(t *testing.T) {
	data, err := os.ReadFile(filepath.Join("..", "..", "testdata", "tap", "nested.tap"))
	require.NoError(t, err)

	nodes := build(t, string(data)).Nodes()
	require.Len(t, nodes, 2)

	strs := nodes[0].(*Group)
	assert.Equal(t, "test/lib/strings.test.js", strs.Name)
	require.Len(t, strs.Children, 2)

	trim := strs.Children[0].(*Group)
	assert.Equal(t, "1", trim.ID)
	assert.Equal(t, "trim", trim.Name)
	assert.Len(t, trim.Children, 2)

	pad := strs.Children[1].(*Group)
	assert.Equal(t, "2", pad.ID)
	require.Len(t, pad.Children, 1)
	assert.True(t, pad.Children[0].(*Leaf).Outcome.Passed(), "skipped assertion passes")

	util := nodes[1].(*Group)
	assert.Equal(t, "2", util.ID)
	assert.Equal(t, "test/util.test.js", util.Name)
}

func TestBuilderBufferedSubtest(t *testing.T) {
	nodes := build(t, "ok 1 - group {\n    ok 1 - a\n    ok 2 - b\n    1..2\n}\n1..1\n").Nodes()

	require.Len(t, nodes, 1, "opener point is not duplicated as a leaf")
	group := nodes[0].(*Group)
	assert.Equal(t, "group", group.Name)
	assert.Len(t, group.Children, 2)
	require.NotNil(t, group.Outcome)
	assert.True(t, group.Outcome.Passed())
}

func TestBuilderFailingClosingPoint(t *testing.T) {
	input := strings.Join([]string{
		"TAP version 14",
		"# Subtest: grp",
		"    ok 1 - a",
		"    1..1",
		"not ok 1 - grp",
		"  ---",
		"  source: plan mismatch",
		"  compare: ===",
		"  found: 1",
		"  wanted: 2",
		"  ...",
		"1..1",
		"",
	}, "\n")

	nodes := build(t, input).Nodes()
	require.Len(t, nodes, 1)
	group := nodes[0].(*Group)
	assert.Equal(t, "grp", group.Name)
	require.Len(t, group.Children, 1)
	require.NotNil(t, group.Outcome)
	require.NotNil(t, group.Outcome.Failure)
	assert.Equal(t, Failure{Source: "plan mismatch", Compare: "===", Found: "1", Wanted: "2"}, *group.Outcome.Failure)
}

func TestBuilderRejectsDepthMismatch(t *testing.T) {
	b := NewBuilder()
	err := b.Handle(tap.Assert{Depth: 2, ID: 1, OK: true})
	require.Error(t, err)

	err = b.Handle(tap.SubtestComplete{Depth: 1, ID: "1"})
	require.Error(t, err)
}

func TestBuilderIgnoresEventsAfterComplete(t *testing.T) {
	b := NewBuilder()
	require.NoError(t, b.Handle(tap.Complete{Result: tap.Result{OK: true}}))
	require.NoError(t, b.Handle(tap.Assert{ID: 1, OK: true, Name: "late"}))

	assert.Empty(t, b.Nodes())
	assert.True(t, b.Result().OK)
}
