package language

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_Lookup(t *testing.T) {
	r := NewRegistry()

	tests := []struct {
		id     string
		wantID string
	}{
		{"go", "go"},
		{"golang", "go"},
		{"go-like", "go"},
		{"Python", "python"},
		{"py", "python"},
		{"javascript", "javascript"},
		{"node", "javascript"},
		{"ts", "typescript"},
	}

	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			a, err := r.Lookup(tt.id)
			require.NoError(t, err)
			assert.Equal(t, tt.wantID, a.ID())
		})
	}
}

func TestRegistry_LookupUnsupported(t *testing.T) {
	r := NewRegistry()
	_, err := r.Lookup("cobol")
	assert.ErrorIs(t, err, ErrUnsupportedLanguage)
}

func TestRegistry_LookupByPath(t *testing.T) {
	r := NewRegistry()

	a, err := r.LookupByPath("src/app/main.PY")
	require.NoError(t, err)
	assert.Equal(t, "python", a.ID())

	_, err = r.LookupByPath("README.md")
	assert.ErrorIs(t, err, ErrUnsupportedLanguage)
}

func TestRegistry_RegisterOverrides(t *testing.T) {
	r := NewRegistry()

	checker, err := NewExecAdapter(ExecConfig{
		Language:   "python",
		Command:    "pyflakes",
		Extensions: []string{".py"},
	})
	require.NoError(t, err)
	r.Register(checker)

	a, err := r.Lookup("python")
	require.NoError(t, err)
	_, isExec := a.(*ExecAdapter)
	assert.True(t, isExec)
}

func TestRegistry_IDs(t *testing.T) {
	r := NewRegistry()
	assert.Equal(t, []string{"go", "javascript", "python", "typescript"}, r.IDs())
}
