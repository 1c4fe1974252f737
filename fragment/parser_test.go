package fragment

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testNamer struct{}

func (testNamer) DefaultFileName(index int) string {
	if index == 0 {
		return "main.py"
	}
	return fmt.Sprintf("file_%d.py", index)
}

func TestParse_MultiFile(t *testing.T) {
	raw := "### FILE: app/main.py\n" +
		"### REQUIRES: flask@>=2.0, requests\n" +
		"```python\n" +
		"import flask\n" +
		"```\n" +
		"\n" +
		"### FILE: app/util.py\n" +
		"```python\n" +
		"def add(a, b):\n" +
		"    return a + b\n" +
		"```\n"

	frags, err := Parse(raw, testNamer{})
	require.NoError(t, err)
	require.Len(t, frags, 2)

	assert.Equal(t, "app/main.py", frags[0].Path)
	assert.Equal(t, "import flask", frags[0].Content)
	require.Len(t, frags[0].Dependencies, 2)
	assert.Equal(t, Dependency{Name: "flask", Constraint: ">=2.0"}, frags[0].Dependencies[0])
	assert.Equal(t, Dependency{Name: "requests"}, frags[0].Dependencies[1])

	assert.Equal(t, "app/util.py", frags[1].Path)
	assert.Equal(t, "def add(a, b):\n    return a + b", frags[1].Content)
	assert.Empty(t, frags[1].Dependencies)
}

func TestParse_NoMarkers(t *testing.T) {
	t.Run("bare text becomes single fragment", func(t *testing.T) {
		frags, err := Parse("def add(a, b):\n    return a + b\n", testNamer{})
		require.NoError(t, err)
		require.Len(t, frags, 1)
		assert.Equal(t, "main.py", frags[0].Path)
		assert.Equal(t, "def add(a, b):\n    return a + b", frags[0].Content)
	})

	t.Run("fenced text is unwrapped", func(t *testing.T) {
		frags, err := Parse("```python\nx = 1\n```\n", testNamer{})
		require.NoError(t, err)
		require.Len(t, frags, 1)
		assert.Equal(t, "x = 1", frags[0].Content)
	})

	t.Run("blank candidate is malformed", func(t *testing.T) {
		_, err := Parse("   \n\n", testNamer{})
		assert.ErrorIs(t, err, ErrMalformedOutput)
	})
}

func TestParse_DuplicatePaths(t *testing.T) {
	raw := "### FILE: main.py\nx = 1\n### FILE: main.py\nx = 2\n"
	_, err := Parse(raw, testNamer{})
	assert.ErrorIs(t, err, ErrMalformedOutput)
}

func TestParse_PathEscapes(t *testing.T) {
	tests := []struct {
		name string
		path string
	}{
		{"parent traversal", "../secrets.py"},
		{"nested traversal", "pkg/../../escape.py"},
		{"absolute", "/etc/passwd"},
		{"bare dot", "."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := "### FILE: " + tt.path + "\nx = 1\n"
			_, err := Parse(raw, testNamer{})
			assert.ErrorIs(t, err, ErrMalformedOutput)
		})
	}
}

func TestParse_EmptyContentRetained(t *testing.T) {
	raw := "### FILE: __init__.py\n\n### FILE: main.py\nx = 1\n"
	frags, err := Parse(raw, testNamer{})
	require.NoError(t, err)
	require.Len(t, frags, 2)
	assert.Equal(t, "__init__.py", frags[0].Path)
	assert.Equal(t, "", frags[0].Content)
}

func TestParse_UnterminatedFence(t *testing.T) {
	raw := "### FILE: main.py\n```python\nx = 1\n"
	frags, err := Parse(raw, testNamer{})
	require.NoError(t, err)
	require.Len(t, frags, 1)
	assert.Equal(t, "x = 1", frags[0].Content)
}

func TestParse_Idempotent(t *testing.T) {
	raw := "### FILE: a.py\n```python\nimport os\n```\n### FILE: b.py\nprint('hi')\n"
	first, err := Parse(raw, testNamer{})
	require.NoError(t, err)
	second, err := Parse(raw, testNamer{})
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestParse_ResidualPromptEchoStripped(t *testing.T) {
	raw := "### FILE: main.py\n```python\n# Response: here is the code\nx = 1\n```\n"
	frags, err := Parse(raw, testNamer{})
	require.NoError(t, err)
	assert.Equal(t, "x = 1", frags[0].Content)
}

func TestParseDependency(t *testing.T) {
	tests := []struct {
		raw        string
		name       string
		constraint string
		wantErr    bool
	}{
		{"flask@>=2.0", "flask", ">=2.0", false},
		{"requests", "requests", "", false},
		{" lodash @ ^4.17 ", "lodash", "^4.17", false},
		{"", "", "", true},
		{"@1.0", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			dep, err := ParseDependency(tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.name, dep.Name)
			assert.Equal(t, tt.constraint, dep.Constraint)
		})
	}
}

func TestCleanPath(t *testing.T) {
	p, err := CleanPath(" src\\app.js ")
	require.NoError(t, err)
	assert.Equal(t, "src/app.js", p)

	_, err = CleanPath("C:\\temp\\x.js")
	assert.Error(t, err)
}
