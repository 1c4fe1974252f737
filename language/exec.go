package language

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"omegacode/fragment"
)

// checkerLineRe matches the machine-readable diagnostic format external
// checkers are expected to emit: "line:col: severity: message". Severity
// defaults to error when omitted.
var checkerLineRe = regexp.MustCompile(`^(?:[^:\s]+:)?(\d+):(\d+):\s*(?:(error|warning):\s*)?(.*)$`)

// ExecConfig describes an external syntax checker bound to a language.
type ExecConfig struct {
	// Language is the identifier the adapter registers under.
	Language string `yaml:"language"`

	// Command is the checker invocation; the fragment's temp file path is
	// appended as the final argument. Tokenised without a shell.
	Command string `yaml:"command"`

	// Extensions lists file extensions with leading dot (e.g. ".rb").
	Extensions []string `yaml:"extensions"`

	// DependencyFile is the manifest convention, "" for none.
	DependencyFile string `yaml:"dependency_file"`

	// Timeout bounds one checker invocation. Zero means 30s.
	Timeout time.Duration `yaml:"timeout"`
}

// Validate checks the config is usable.
func (c ExecConfig) Validate() error {
	if c.Language == "" {
		return fmt.Errorf("checker language is required")
	}
	if strings.TrimSpace(c.Command) == "" {
		return fmt.Errorf("checker %s: command is required", c.Language)
	}
	if len(c.Extensions) == 0 {
		return fmt.Errorf("checker %s: at least one extension is required", c.Language)
	}
	return nil
}

// ExecAdapter validates fragments by invoking an external checker process.
// The checked content originates from an untrusted generative source, so
// the process runs with a scrubbed environment, a throwaway working
// directory, and a hard deadline.
type ExecAdapter struct {
	cfg ExecConfig
}

// NewExecAdapter creates an adapter from a checker configuration.
func NewExecAdapter(cfg ExecConfig) (*ExecAdapter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &ExecAdapter{cfg: cfg}, nil
}

func (e *ExecAdapter) ID() string { return e.cfg.Language }

func (e *ExecAdapter) Extensions() []string { return e.cfg.Extensions }

func (e *ExecAdapter) DefaultFileName(index int) string {
	ext := e.cfg.Extensions[0]
	if index == 0 {
		return "main" + ext
	}
	return fmt.Sprintf("file_%d%s", index, ext)
}

func (e *ExecAdapter) DependencyFileName() string { return e.cfg.DependencyFile }

// RenderDependencyFile emits one name@constraint per line; external
// checkers carry no richer manifest convention.
func (e *ExecAdapter) RenderDependencyFile(deps []fragment.Dependency) string {
	var b strings.Builder
	for _, dep := range deps {
		b.WriteString(dep.String())
		b.WriteString("\n")
	}
	return b.String()
}

// References returns nil: external checkers only provide syntax verdicts,
// so the cross-fragment check has nothing to resolve.
func (e *ExecAdapter) References(_ fragment.Fragment) []Reference { return nil }

// Validate writes the fragment to a temp file and runs the checker against
// it. Checker stdout/stderr is parsed as diagnostics; a nonzero exit with
// no parseable diagnostics becomes a single error diagnostic.
func (e *ExecAdapter) Validate(ctx context.Context, frag fragment.Fragment) ([]Diagnostic, error) {
	dir, err := os.MkdirTemp("", "omegacode-check-*")
	if err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	target := filepath.Join(dir, "fragment"+filepath.Ext(frag.Path))
	if err := os.WriteFile(target, []byte(frag.Content), 0o600); err != nil {
		return nil, fmt.Errorf("write temp file: %w", err)
	}

	args := splitCommand(e.cfg.Command)
	if len(args) == 0 {
		return nil, fmt.Errorf("checker %s: empty command", e.cfg.Language)
	}
	args = append(args, target)

	cmdCtx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	cmd := exec.CommandContext(cmdCtx, args[0], args[1:]...)
	cmd.Dir = dir
	// Scrubbed environment: the checker gets PATH and nothing else.
	cmd.Env = []string{"PATH=" + os.Getenv("PATH")}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	if cmdCtx.Err() != nil {
		return nil, fmt.Errorf("checker %s: %w", e.cfg.Language, cmdCtx.Err())
	}

	diags := parseCheckerOutput(stdout.String()+"\n"+stderr.String(), frag.Path)

	if runErr != nil && !hasError(diags) {
		diags = append(diags, Diagnostic{
			Path:     frag.Path,
			Severity: SeverityError,
			Message:  fmt.Sprintf("checker failed: %s", firstLine(stderr.String(), runErr.Error())),
		})
	}

	return diags, nil
}

// parseCheckerOutput normalises checker output lines into diagnostics.
func parseCheckerOutput(out, path string) []Diagnostic {
	var diags []Diagnostic
	for _, line := range strings.Split(out, "\n") {
		m := checkerLineRe.FindStringSubmatch(strings.TrimSpace(line))
		if m == nil {
			continue
		}
		lineNo, _ := strconv.Atoi(m[1])
		col, _ := strconv.Atoi(m[2])
		severity := SeverityError
		if m[3] == string(SeverityWarning) {
			severity = SeverityWarning
		}
		diags = append(diags, Diagnostic{
			Path:     path,
			Severity: severity,
			Message:  m[4],
			Line:     lineNo,
			Column:   col,
		})
	}
	return diags
}

func hasError(diags []Diagnostic) bool {
	for _, d := range diags {
		if d.Severity == SeverityError {
			return true
		}
	}
	return false
}

func firstLine(s, fallback string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return fallback
	}
	line, _, _ := strings.Cut(s, "\n")
	return line
}

// splitCommand performs minimal whitespace-based tokenisation of a command
// string, preserving single- and double-quoted tokens. It does not support
// escape sequences or nested quoting; complex commands should be wrapped in
// an explicit shell invocation.
func splitCommand(cmd string) []string {
	var tokens []string
	var current strings.Builder
	inSingle := false
	inDouble := false

	for _, r := range cmd {
		switch {
		case r == '\'' && !inDouble:
			inSingle = !inSingle
		case r == '"' && !inSingle:
			inDouble = !inDouble
		case r == ' ' && !inSingle && !inDouble:
			if current.Len() > 0 {
				tokens = append(tokens, current.String())
				current.Reset()
			}
		default:
			current.WriteRune(r)
		}
	}
	if current.Len() > 0 {
		tokens = append(tokens, current.String())
	}
	return tokens
}
