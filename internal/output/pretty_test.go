package output

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bgricker/taptree/internal/report"
	"github.com/bgricker/taptree/internal/tree"
)

func TestPrettyRenderTree(t *testing.T) {
	tr, run := mathRun(t)

	buf := &bytes.Buffer{}
	require.NoError(t, NewPretty(buf).RenderTree(tr, run))

	out := buf.String()
	for _, want := range []string{"test/", "math.test.js", "✓ adds", "✗ subtracts"} {
		assert.Contains(t, out, want)
	}
	assert.Less(t, strings.Index(out, "adds"), strings.Index(out, "subtracts"), "emission order preserved")
}

func TestPrettyRenderTreeWithoutRun(t *testing.T) {
	tr, _ := mathRun(t)

	buf := &bytes.Buffer{}
	require.NoError(t, NewPretty(buf).RenderTree(tr, nil))
	assert.False(t, strings.ContainsAny(buf.String(), "✓✗"), "no status glyphs without a run:\n%s", buf.String())
}

func TestPrettyRenderTreeEmpty(t *testing.T) {
	buf := &bytes.Buffer{}
	require.NoError(t, NewPretty(buf).RenderTree(tree.New(), nil))
	assert.Contains(t, buf.String(), "No tests discovered")
}

func TestPrettyRenderResults(t *testing.T) {
	_, run := mathRun(t)
	summary := run.End()

	buf := &bytes.Buffer{}
	require.NoError(t, NewPretty(buf).RenderResults(run, summary, false))

	out := buf.String()
	for _, want := range []string{"Failures:", "✗ subtracts", "t.equal(4, 5)", "TARGET", "1 passed, 1 failed", "1/1 targets"} {
		assert.Contains(t, out, want)
	}
	assert.NotContains(t, out, "Output:", "run output only when verbose")
}

func TestPrettyRenderResultsVerbose(t *testing.T) {
	_, run := mathRun(t)

	buf := &bytes.Buffer{}
	require.NoError(t, NewPretty(buf).RenderResults(run, run.End(), true))
	assert.Contains(t, buf.String(), "Output:")
	assert.Contains(t, buf.String(), "Wanted: 5")
}

type brokenWriter struct{}

func (brokenWriter) Write([]byte) (int, error) { return 0, errors.New("closed pipe") }

func TestPrettyPropagatesWriteErrors(t *testing.T) {
	tr, run := mathRun(t)
	renderer := NewPretty(brokenWriter{})

	assert.ErrorContains(t, renderer.RenderTree(tr, run), "closed pipe")
	assert.ErrorContains(t, renderer.RenderResults(run, run.End(), true), "closed pipe")
}

func TestFormatDuration(t *testing.T) {
	cases := map[time.Duration]string{
		0:                       "0s",
		1500 * time.Microsecond: "2ms",
		2*time.Second + 345*time.Millisecond + 999*time.Microsecond: "2.345s",
	}
	for in, want := range cases {
		assert.Equal(t, want, formatDuration(in), "formatDuration(%v)", in)
	}
}

func TestStatusGlyph(t *testing.T) {
	assert.Equal(t, "✓", statusGlyph(report.StatusPassed))
	assert.Equal(t, "✗", statusGlyph(report.StatusFailed))
	assert.Equal(t, "?", statusGlyph(report.Status("unknown")))
}
