package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"omegacode/config"
	"omegacode/metrics"
	"omegacode/pipeline"
	"omegacode/prompt"
)

type fixedOracle struct {
	output string
}

func (o *fixedOracle) Generate(context.Context, prompt.Request) (string, error) {
	return o.output, nil
}

const validPython = "### FILE: main.py\n### REQUIRES: flask@2.0\n```python\nimport flask\n```\n"

func newTestServer(t *testing.T, output string) *Server {
	t.Helper()
	m := metrics.New()
	p, err := pipeline.New(config.DefaultConfig(),
		pipeline.WithOracle(&fixedOracle{output: output}),
		pipeline.WithMetrics(m),
	)
	require.NoError(t, err)
	return New(p, m, nil)
}

func postGenerate(t *testing.T, h http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/generate", strings.NewReader(body))
	h.ServeHTTP(rec, req)
	return rec
}

func TestGenerate_Accepted(t *testing.T) {
	h := newTestServer(t, validPython).Handler()

	rec := postGenerate(t, h, `{"description": "a flask app", "language": "python"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp GenerateResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Accepted)
	assert.Equal(t, 1, resp.Attempts)
	assert.Contains(t, resp.Dependencies, "flask@2.0")

	paths := make([]string, 0, len(resp.Files))
	for _, f := range resp.Files {
		paths = append(paths, f.Path)
	}
	assert.Contains(t, paths, "main.py")
	assert.Contains(t, paths, "requirements.txt")
	require.NotNil(t, resp.Report)
	assert.Equal(t, resp.RunID, resp.Report.RunID)
}

func TestGenerate_ExhaustedStillOK(t *testing.T) {
	h := newTestServer(t, "### FILE: main.py\n```python\ndef broken(:\n```\n").Handler()

	rec := postGenerate(t, h, `{"description": "x", "language": "python", "max_attempts": 2}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp GenerateResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Accepted)
	assert.Equal(t, 2, resp.Attempts)
	assert.NotEmpty(t, resp.Reason)
}

func TestGenerate_UnsupportedLanguage(t *testing.T) {
	h := newTestServer(t, validPython).Handler()

	rec := postGenerate(t, h, `{"description": "x", "language": "cobol"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGenerate_MissingFields(t *testing.T) {
	h := newTestServer(t, validPython).Handler()

	rec := postGenerate(t, h, `{"language": "python"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGenerate_InvalidJSON(t *testing.T) {
	h := newTestServer(t, validPython).Handler()

	rec := postGenerate(t, h, `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGenerate_BodyTooLarge(t *testing.T) {
	h := newTestServer(t, validPython).Handler()

	var buf bytes.Buffer
	buf.WriteString(`{"description": "`)
	buf.Write(bytes.Repeat([]byte("a"), maxRequestBodySize+1))
	buf.WriteString(`", "language": "python"}`)

	rec := postGenerate(t, h, buf.String())
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGenerate_MethodNotAllowed(t *testing.T) {
	h := newTestServer(t, validPython).Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/generate", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestLanguages(t *testing.T) {
	h := newTestServer(t, validPython).Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/languages", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string][]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Contains(t, resp["languages"], "python")
	assert.Contains(t, resp["languages"], "go")
}

func TestHealthz(t *testing.T) {
	h := newTestServer(t, validPython).Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t, validPython)
	h := srv.Handler()

	postGenerate(t, h, `{"description": "a flask app", "language": "python"}`)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "omegacode_pipeline_runs_total")
}