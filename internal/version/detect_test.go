package version

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSemverPrefix(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"20.11.1", "20.11"},
		{"v18.19.0", "18.19"},
		{"", ""},
		{"20", ""},
		{"lts/*", ""},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, semverPrefix(c.in), "semverPrefix(%q)", c.in)
	}
}

func TestCompareMajorMinor(t *testing.T) {
	tests := []struct {
		desired string
		actual  string
		match   bool
	}{
		{"20.11.1", "20.11.0", true},
		{"v20.11", "20.11.0", true},
		{"18.19", "20.11.1", false},
		{"", "20.11.1", true},
		{"20.11", "", true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.match, CompareMajorMinor(tt.desired, tt.actual), "CompareMajorMinor(%q,%q)", tt.desired, tt.actual)
	}
}

func detected(v string, err error) func(context.Context) (Info, error) {
	return func(context.Context) (Info, error) {
		return Info{Name: "node", Version: v}, err
	}
}

func writePin(t *testing.T, dir, name, contents string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(contents), 0o644))
}

func TestNodeWarning(t *testing.T) {
	ctx := context.Background()

	t.Run("no pin", func(t *testing.T) {
		assert.Empty(t, NodeWarning(ctx, t.TempDir(), detected("20.11.1", nil)))
	})

	t.Run("match", func(t *testing.T) {
		dir := t.TempDir()
		writePin(t, dir, ".node-version", "20.11.0\n")
		assert.Empty(t, NodeWarning(ctx, dir, detected("20.11.1", nil)))
	})

	t.Run("mismatch from nvmrc", func(t *testing.T) {
		dir := t.TempDir()
		writePin(t, dir, ".nvmrc", "v18.19.0\n")
		got := NodeWarning(ctx, dir, detected("20.11.1", nil))
		assert.Contains(t, got, "mismatch")
		assert.Contains(t, got, ".nvmrc")
	})

	t.Run("alias pin ignored", func(t *testing.T) {
		dir := t.TempDir()
		writePin(t, dir, ".nvmrc", "lts/*\n")
		assert.Empty(t, NodeWarning(ctx, dir, detected("", errors.New("boom"))))
	})

	t.Run("missing executable", func(t *testing.T) {
		dir := t.TempDir()
		writePin(t, dir, ".node-version", "20.11")
		missing := fmt.Errorf("start: %w", exec.ErrNotFound)
		assert.Contains(t, NodeWarning(ctx, dir, detected("", missing)), "not found")
	})
}
