package config

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"omegacode/language"
	"omegacode/llm"
)

func TestDefaultConfigIsValid(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "no endpoints",
			mutate:  func(c *Config) { c.Oracle.Endpoints = nil },
			wantErr: "endpoints",
		},
		{
			name: "endpoint missing provider",
			mutate: func(c *Config) {
				c.Oracle.Endpoints = []llm.Endpoint{{Model: "m"}}
			},
			wantErr: "provider",
		},
		{
			name:    "temperature out of range",
			mutate:  func(c *Config) { c.Oracle.Temperature = 1.5 },
			wantErr: "temperature",
		},
		{
			name:    "zero attempts",
			mutate:  func(c *Config) { c.Pipeline.MaxAttempts = 0 },
			wantErr: "max_attempts",
		},
		{
			name: "checker without command",
			mutate: func(c *Config) {
				c.Checkers = []language.ExecConfig{{Language: "ruby", Extensions: []string{".rb"}}}
			},
			wantErr: "command",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := DefaultConfig()
			tt.mutate(c)
			err := c.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestMerge(t *testing.T) {
	base := DefaultConfig()
	base.Merge(&Config{
		Oracle: OracleConfig{
			Endpoints:   []llm.Endpoint{{Name: "prod", Provider: "anthropic", Model: "claude"}},
			CallTimeout: time.Minute,
		},
		Pipeline: PipelineConfig{MaxAttempts: 8},
		Assemble: AssembleConfig{OutputDir: "/tmp/out", Excludes: []string{"**/*.md"}},
		NATS:     NATSConfig{URL: "nats://localhost:4222"},
	})

	assert.Equal(t, "prod", base.Oracle.Endpoints[0].Name)
	assert.Equal(t, time.Minute, base.Oracle.CallTimeout)
	assert.Equal(t, 8, base.Pipeline.MaxAttempts)
	assert.Equal(t, "/tmp/out", base.Assemble.OutputDir)
	assert.Equal(t, "nats://localhost:4222", base.NATS.URL)
	// Untouched fields keep their defaults.
	assert.Equal(t, 20, base.Pipeline.MaxDiagnosticsCarried)
	assert.Equal(t, "omegacode.pipeline", base.NATS.Subject)
}

func TestMergeNil(t *testing.T) {
	c := DefaultConfig()
	c.Merge(nil)
	assert.NoError(t, c.Validate())
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "omegacode.yaml")

	c := DefaultConfig()
	c.Pipeline.MaxAttempts = 7
	c.Checkers = []language.ExecConfig{{
		Language:   "ruby",
		Command:    "ruby -c",
		Extensions: []string{".rb"},
		Timeout:    10 * time.Second,
	}}
	require.NoError(t, c.SaveToFile(path))

	loaded, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, 7, loaded.Pipeline.MaxAttempts)
	require.Len(t, loaded.Checkers, 1)
	assert.Equal(t, "ruby -c", loaded.Checkers[0].Command)
}

func TestLoadFromFileMissing(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoaderMissingUserConfigIsSilent(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	var buf bytes.Buffer
	cfg, err := NewLoader(slog.New(slog.NewTextHandler(&buf, nil))).Load()
	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.NotContains(t, buf.String(), "failed to load user config")
}

func TestLoaderBrokenUserConfigWarns(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	path := filepath.Join(home, UserConfigDir, UserConfigFile)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("oracle: [unclosed"), 0o644))

	var buf bytes.Buffer
	_, err := NewLoader(slog.New(slog.NewTextHandler(&buf, nil))).Load()
	require.NoError(t, err, "a broken user config falls back to defaults")
	assert.Contains(t, buf.String(), "failed to load user config")
}

func TestLoadFromFileInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("oracle: [unclosed"), 0o644))

	_, err := LoadFromFile(path)
	assert.Error(t, err)
}
