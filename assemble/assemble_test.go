package assemble

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"omegacode/fragment"
	"omegacode/language"
	"omegacode/loop"
	"omegacode/validate"
)

func pythonAdapter(t *testing.T) language.Adapter {
	t.Helper()
	adapter, err := language.NewRegistry().Lookup("python")
	require.NoError(t, err)
	return adapter
}

func acceptedResult(frags ...fragment.Fragment) *loop.Result {
	return &loop.Result{
		Accepted:  true,
		State:     loop.StateAccepted,
		Fragments: frags,
		Attempts:  []loop.Attempt{{Number: 1, Fragments: frags, Verdict: validate.Verdict{Passed: true}}},
	}
}

func TestAssemble_MergesDependenciesFirstSeen(t *testing.T) {
	res := acceptedResult(
		fragment.Fragment{Path: "app.py", Content: "import flask\n", Dependencies: []fragment.Dependency{
			{Name: "flask", Constraint: "2.0"},
			{Name: "requests"},
		}},
		fragment.Fragment{Path: "db.py", Content: "import sqlalchemy\n", Dependencies: []fragment.Dependency{
			{Name: "sqlalchemy"},
			{Name: "flask", Constraint: "2.0"},
		}},
	)

	m, err := New(pythonAdapter(t)).Assemble(res)
	require.NoError(t, err)

	require.Len(t, m.Dependencies, 3)
	assert.Equal(t, "flask", m.Dependencies[0].Name)
	assert.Equal(t, "requests", m.Dependencies[1].Name)
	assert.Equal(t, "sqlalchemy", m.Dependencies[2].Name)
	assert.Equal(t, 1, m.Attempts)
	assert.True(t, m.Accepted)
}

func TestAssemble_ConflictingConstraints(t *testing.T) {
	res := acceptedResult(
		fragment.Fragment{Path: "a.py", Dependencies: []fragment.Dependency{{Name: "flask", Constraint: "1.0"}}},
		fragment.Fragment{Path: "b.py", Dependencies: []fragment.Dependency{{Name: "flask", Constraint: "2.0"}}},
	)

	_, err := New(pythonAdapter(t)).Assemble(res)
	require.ErrorIs(t, err, ErrConflictingDependencyVersion)
	assert.Contains(t, err.Error(), "flask")
}

func TestAssemble_EmptyConstraintIntersects(t *testing.T) {
	res := acceptedResult(
		fragment.Fragment{Path: "a.py", Dependencies: []fragment.Dependency{{Name: "flask"}}},
		fragment.Fragment{Path: "b.py", Dependencies: []fragment.Dependency{{Name: "flask", Constraint: "2.0"}}},
	)

	m, err := New(pythonAdapter(t)).Assemble(res)
	require.NoError(t, err)
	require.Len(t, m.Dependencies, 1)
	assert.Equal(t, "2.0", m.Dependencies[0].Constraint)
}

func TestAssemble_WritesDependencyFileFragment(t *testing.T) {
	res := acceptedResult(
		fragment.Fragment{Path: "app.py", Content: "import flask\n", Dependencies: []fragment.Dependency{
			{Name: "flask", Constraint: "2.0"},
		}},
	)

	m, err := New(pythonAdapter(t)).Assemble(res)
	require.NoError(t, err)

	require.Len(t, m.Fragments, 2)
	assert.Equal(t, "requirements.txt", m.Fragments[1].Path)
	assert.Contains(t, m.Fragments[1].Content, "flask==2.0")
}

func TestAssemble_OracleProvidedManifestWins(t *testing.T) {
	res := acceptedResult(
		fragment.Fragment{Path: "app.py", Dependencies: []fragment.Dependency{{Name: "flask"}}},
		fragment.Fragment{Path: "requirements.txt", Content: "flask>=1.0\n"},
	)

	m, err := New(pythonAdapter(t)).Assemble(res)
	require.NoError(t, err)

	var manifests int
	for _, frag := range m.Fragments {
		if frag.Path == "requirements.txt" {
			manifests++
			assert.Equal(t, "flask>=1.0\n", frag.Content)
		}
	}
	assert.Equal(t, 1, manifests)
}

func TestAssemble_Excludes(t *testing.T) {
	res := acceptedResult(
		fragment.Fragment{Path: "app.py", Content: "x = 1\n"},
		fragment.Fragment{Path: "tests/test_app.py", Content: "y = 2\n"},
		fragment.Fragment{Path: "docs/notes.md", Content: "n\n"},
	)

	m, err := New(pythonAdapter(t), WithExcludes([]string{"tests/**", "**/*.md"})).Assemble(res)
	require.NoError(t, err)

	require.Len(t, m.Fragments, 1)
	assert.Equal(t, "app.py", m.Fragments[0].Path)
}

func TestWriteTree(t *testing.T) {
	dir := t.TempDir()

	manifest := &Manifest{
		Language: "python",
		Accepted: true,
		Attempts: 2,
		Fragments: []fragment.Fragment{
			{Path: "app.py", Content: "x = 1\n"},
			{Path: "pkg/util.py", Content: "y = 2\n"},
		},
	}
	res := &loop.Result{Accepted: true, Attempts: []loop.Attempt{{Number: 1}, {Number: 2}}}
	report := NewReport("run-1", manifest, res)

	require.NoError(t, WriteTree(dir, manifest, report))

	data, err := os.ReadFile(filepath.Join(dir, "app.py"))
	require.NoError(t, err)
	assert.Equal(t, "x = 1\n", string(data))

	data, err = os.ReadFile(filepath.Join(dir, "pkg", "util.py"))
	require.NoError(t, err)
	assert.Equal(t, "y = 2\n", string(data))

	data, err = os.ReadFile(filepath.Join(dir, ReportFileName))
	require.NoError(t, err)

	var parsed Report
	require.NoError(t, yaml.Unmarshal(data, &parsed))
	assert.Equal(t, "run-1", parsed.RunID)
	assert.Equal(t, 2, parsed.Attempts)
	assert.Len(t, parsed.History, 2)
}

func TestNewReport_ListsFiles(t *testing.T) {
	manifest := &Manifest{
		Language: "python",
		Fragments: []fragment.Fragment{
			{Path: "a.py"}, {Path: "b.py"},
		},
	}
	report := NewReport("run-2", manifest, &loop.Result{Reason: "no accepted candidate after 5 attempts"})

	assert.Equal(t, []string{"a.py", "b.py"}, report.Files)
	assert.Equal(t, "no accepted candidate after 5 attempts", report.Reason)
	assert.False(t, report.GeneratedAt.IsZero())
}
