package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompile(t *testing.T) {
	patterns, err := Compile([]string{"  ", "Math", `/^test/.+\.js$/`})
	require.NoError(t, err)
	require.Len(t, patterns, 2)

	assert.True(t, patterns[0].Match("test/math.test.js"), "substring match ignores case")
	assert.True(t, patterns[1].Match("test/a.js"))
	assert.False(t, patterns[1].Match("lib/a.js"))
	assert.False(t, patterns[0].Match(""), "empty input never matches")
}

func TestCompileInvalidRegex(t *testing.T) {
	_, err := Compile([]string{"/(unclosed/"})
	require.Error(t, err)
}

func TestSetMatch(t *testing.T) {
	set, err := NewSet([]string{`/(^|/)test/.+\.js$/`}, []string{"fixtures"})
	require.NoError(t, err)

	assert.True(t, set.Match("test/math.test.js"))
	assert.True(t, set.Match("pkg/test/strings.test.js"))
	assert.False(t, set.Match("lib/math.js"))
	assert.False(t, set.Match("test/fixtures/data.js"))
}

func TestEmptySetMatchesEverything(t *testing.T) {
	var set Set
	assert.True(t, set.Match("anything.js"))
}
