// Package config provides layered configuration loading for omegacode.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"omegacode/language"
	"omegacode/llm"
)

// Config is the complete omegacode configuration.
type Config struct {
	Oracle   OracleConfig          `yaml:"oracle"`
	Pipeline PipelineConfig        `yaml:"pipeline"`
	Assemble AssembleConfig        `yaml:"assemble"`
	Checkers []language.ExecConfig `yaml:"checkers"`
	NATS     NATSConfig            `yaml:"nats"`
	Server   ServerConfig          `yaml:"server"`
}

// OracleConfig configures the generation client.
type OracleConfig struct {
	// Endpoints lists the oracle endpoints, primary first. Empty defaults
	// to a local ollama endpoint.
	Endpoints []llm.Endpoint `yaml:"endpoints"`

	// Temperature controls randomness (0.0-1.0).
	Temperature float64 `yaml:"temperature"`

	// CallTimeout bounds one oracle call.
	CallTimeout time.Duration `yaml:"call_timeout"`
}

// PipelineConfig configures the corrector loop and validator.
type PipelineConfig struct {
	// MaxAttempts bounds the corrector loop.
	MaxAttempts int `yaml:"max_attempts"`

	// MaxDiagnosticsCarried caps the diagnostics embedded in retry prompts.
	MaxDiagnosticsCarried int `yaml:"max_diagnostics_carried"`

	// CheckTimeout bounds each per-fragment syntax check.
	CheckTimeout time.Duration `yaml:"check_timeout"`
}

// AssembleConfig configures project assembly.
type AssembleConfig struct {
	// OutputDir is where generated projects are written.
	OutputDir string `yaml:"output_dir"`

	// Excludes lists glob patterns for fragment paths to drop.
	Excludes []string `yaml:"excludes"`
}

// NATSConfig configures optional pipeline event publishing. An empty URL
// disables events.
type NATSConfig struct {
	URL     string `yaml:"url"`
	Subject string `yaml:"subject"`
}

// ServerConfig configures serve mode.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Oracle: OracleConfig{
			Endpoints: []llm.Endpoint{{
				Name:     "local",
				Provider: "ollama",
				URL:      "http://localhost:11434/v1",
				Model:    "qwen2.5-coder:32b",
			}},
			Temperature: 0.2,
			CallTimeout: 2 * time.Minute,
		},
		Pipeline: PipelineConfig{
			MaxAttempts:           5,
			MaxDiagnosticsCarried: 20,
			CheckTimeout:          30 * time.Second,
		},
		Assemble: AssembleConfig{
			OutputDir: "generated",
		},
		NATS: NATSConfig{
			Subject: "omegacode.pipeline",
		},
		Server: ServerConfig{
			Addr: ":8080",
		},
	}
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if len(c.Oracle.Endpoints) == 0 {
		return fmt.Errorf("oracle.endpoints must not be empty")
	}
	for i, ep := range c.Oracle.Endpoints {
		if ep.Provider == "" {
			return fmt.Errorf("oracle.endpoints[%d].provider is required", i)
		}
		if ep.Model == "" {
			return fmt.Errorf("oracle.endpoints[%d].model is required", i)
		}
	}
	if c.Oracle.Temperature < 0 || c.Oracle.Temperature > 1 {
		return fmt.Errorf("oracle.temperature must be between 0 and 1")
	}
	if c.Pipeline.MaxAttempts < 1 {
		return fmt.Errorf("pipeline.max_attempts must be at least 1")
	}
	for i, checker := range c.Checkers {
		if err := checker.Validate(); err != nil {
			return fmt.Errorf("checkers[%d]: %w", i, err)
		}
	}
	return nil
}

// Merge overlays non-zero fields of other onto c.
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}
	if len(other.Oracle.Endpoints) > 0 {
		c.Oracle.Endpoints = other.Oracle.Endpoints
	}
	if other.Oracle.Temperature != 0 {
		c.Oracle.Temperature = other.Oracle.Temperature
	}
	if other.Oracle.CallTimeout != 0 {
		c.Oracle.CallTimeout = other.Oracle.CallTimeout
	}
	if other.Pipeline.MaxAttempts != 0 {
		c.Pipeline.MaxAttempts = other.Pipeline.MaxAttempts
	}
	if other.Pipeline.MaxDiagnosticsCarried != 0 {
		c.Pipeline.MaxDiagnosticsCarried = other.Pipeline.MaxDiagnosticsCarried
	}
	if other.Pipeline.CheckTimeout != 0 {
		c.Pipeline.CheckTimeout = other.Pipeline.CheckTimeout
	}
	if other.Assemble.OutputDir != "" {
		c.Assemble.OutputDir = other.Assemble.OutputDir
	}
	if len(other.Assemble.Excludes) > 0 {
		c.Assemble.Excludes = other.Assemble.Excludes
	}
	if len(other.Checkers) > 0 {
		c.Checkers = other.Checkers
	}
	if other.NATS.URL != "" {
		c.NATS.URL = other.NATS.URL
	}
	if other.NATS.Subject != "" {
		c.NATS.Subject = other.NATS.Subject
	}
	if other.Server.Addr != "" {
		c.Server.Addr = other.Server.Addr
	}
}

// LoadFromFile loads configuration from a YAML file on top of defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	return config, nil
}

// SaveToFile writes the configuration as YAML, creating parent directories.
func (c *Config) SaveToFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}
