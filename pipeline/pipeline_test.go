package pipeline

import (
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"omegacode/assemble"
	"omegacode/config"
	"omegacode/language"
	"omegacode/loop"
	"omegacode/metrics"
	"omegacode/prompt"
)

type scriptedOracle struct {
	outputs  []string
	requests []prompt.Request
}

func (o *scriptedOracle) Generate(_ context.Context, req prompt.Request) (string, error) {
	o.requests = append(o.requests, req)
	i := len(o.requests) - 1
	if i >= len(o.outputs) {
		i = len(o.outputs) - 1
	}
	return o.outputs[i], nil
}

func newPipeline(t *testing.T, oracle loop.Oracle, opts ...Option) *Pipeline {
	t.Helper()
	p, err := New(config.DefaultConfig(), append([]Option{WithOracle(oracle)}, opts...)...)
	require.NoError(t, err)
	return p
}

const validPython = "### FILE: main.py\n```python\ndef add(a, b):\n    return a + b\n```\n"

func TestRun_Accepted(t *testing.T) {
	oracle := &scriptedOracle{outputs: []string{validPython}}
	p := newPipeline(t, oracle)

	res, err := p.Run(context.Background(), Input{
		Description: "a function that adds two integers",
		Language:    "python",
	})
	require.NoError(t, err)

	assert.NotEmpty(t, res.RunID)
	assert.True(t, res.Manifest.Accepted)
	assert.Equal(t, 1, res.Manifest.Attempts)
	assert.Equal(t, "python", res.Manifest.Language)
	require.NotNil(t, res.Report)
	assert.Equal(t, res.RunID, res.Report.RunID)
}

func TestRun_UnsupportedLanguage(t *testing.T) {
	p := newPipeline(t, &scriptedOracle{outputs: []string{validPython}})

	_, err := p.Run(context.Background(), Input{Description: "x", Language: "cobol"})
	assert.ErrorIs(t, err, language.ErrUnsupportedLanguage)
}

func TestRun_ExhaustedIsNotAnError(t *testing.T) {
	broken := "### FILE: main.py\n```python\ndef add(a, b:\n```\n"
	oracle := &scriptedOracle{outputs: []string{broken}}
	p := newPipeline(t, oracle)

	res, err := p.Run(context.Background(), Input{
		Description: "adder",
		Language:    "python",
		MaxAttempts: 2,
	})
	require.NoError(t, err)

	assert.False(t, res.Manifest.Accepted)
	assert.Equal(t, 2, res.Manifest.Attempts)
	assert.NotEmpty(t, res.Report.Reason)
	assert.Len(t, oracle.requests, 2)
}

func TestRun_SingleFileInstruction(t *testing.T) {
	oracle := &scriptedOracle{outputs: []string{validPython}}
	p := newPipeline(t, oracle)

	_, err := p.Run(context.Background(), Input{
		Description: "adder",
		Language:    "python",
		SingleFile:  "calc.py",
	})
	require.NoError(t, err)
	require.NotEmpty(t, oracle.requests)
	assert.Contains(t, oracle.requests[0].User, `exactly one file named "calc.py"`)
}

func TestRun_ConflictingDependenciesFailAssembly(t *testing.T) {
	candidate := "### FILE: a.py\n### REQUIRES: flask@1.0\n```python\nimport flask\n```\n" +
		"### FILE: b.py\n### REQUIRES: flask@2.0\n```python\nimport flask\n```\n"
	oracle := &scriptedOracle{outputs: []string{candidate}}
	p := newPipeline(t, oracle)

	_, err := p.Run(context.Background(), Input{Description: "web app", Language: "python"})
	assert.ErrorIs(t, err, assemble.ErrConflictingDependencyVersion)
}

func TestRun_MetricsCounted(t *testing.T) {
	m := metrics.New()
	oracle := &scriptedOracle{outputs: []string{validPython}}
	p := newPipeline(t, oracle, WithMetrics(m))

	_, err := p.Run(context.Background(), Input{Description: "adder", Language: "python"})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body := rec.Body.String()
	assert.Contains(t, body, `omegacode_pipeline_runs_total{outcome="accepted"} 1`)
	assert.Contains(t, body, "omegacode_loop_attempts_total 1")
}

func TestResult_Write(t *testing.T) {
	oracle := &scriptedOracle{outputs: []string{validPython}}
	p := newPipeline(t, oracle)

	res, err := p.Run(context.Background(), Input{Description: "adder", Language: "python"})
	require.NoError(t, err)

	dir := t.TempDir()
	require.NoError(t, res.Write(dir))

	_, err = os.Stat(filepath.Join(dir, "main.py"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, assemble.ReportFileName))
	assert.NoError(t, err)
}

func TestLanguages(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Checkers = []language.ExecConfig{{
		Language:   "ruby",
		Command:    "ruby -c",
		Extensions: []string{".rb"},
	}}

	p, err := New(cfg, WithOracle(&scriptedOracle{outputs: []string{validPython}}))
	require.NoError(t, err)

	ids := p.Languages()
	assert.Contains(t, ids, "python")
	assert.Contains(t, ids, "go")
	assert.Contains(t, ids, "ruby")
}
